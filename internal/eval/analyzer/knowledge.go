package analyzer

import "github.com/AmrMustafa282/skillify-analysis/internal/eval/model"

// ScoreKnowledge grades multiple-choice answers against the assessment key.
// Single-answer questions score 1 on an exact match. Multi-answer questions
// score 1 on set equality; otherwise they earn partial credit, the fraction
// of correct choices selected, with wrong selections ignored rather than
// penalized. Unanswered questions score 0.
func ScoreKnowledge(questions []model.MCQQuestion, answers []model.MCQAnswer) *model.KnowledgeResult {
	if len(questions) == 0 {
		return nil
	}

	byQuestion := make(map[string][]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Selected
	}

	res := &model.KnowledgeResult{TotalCount: len(questions)}
	var sum float64
	for _, q := range questions {
		s := scoreMCQ(q.CorrectChoices, byQuestion[q.QuestionID])
		sum += s
		if s == 1.0 {
			res.CorrectCount++
		}
	}
	res.Score = sum / float64(len(questions))
	return res
}

func scoreMCQ(correct, selected []string) float64 {
	if len(correct) == 0 || len(selected) == 0 {
		return 0
	}
	if len(correct) == 1 {
		if len(selected) == 1 && selected[0] == correct[0] {
			return 1.0
		}
		return 0
	}

	want := make(map[string]bool, len(correct))
	for _, c := range correct {
		want[c] = true
	}
	hit := 0
	extra := false
	for _, s := range selected {
		if want[s] {
			// Duplicate selections of the same choice count once.
			delete(want, s)
			hit++
		} else {
			extra = true
		}
	}
	if !extra && hit == len(correct) {
		return 1.0
	}
	return float64(hit) / float64(len(correct))
}
