// Package pipeline runs the full analyzer suite over one solution and merges
// the per-question results into a single analysis record.
package pipeline

import (
	"context"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/analyzer"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/mr"
	"go.uber.org/zap"
)

// Dimension weights. They deliberately sum to 0.90; the composite divides by
// the weight mass of the dimensions that actually scored, so a fully scored
// record and a record with a null dimension both land in [0,1].
const (
	weightCorrectness = 0.40
	weightQuality     = 0.15
	weightStyle       = 0.10
	weightPerformance = 0.15
	weightNaming      = 0.10
)

// Pipeline owns one analyzer of each kind. Correctness runs first since it
// is the only dynamic analyzer and by far the most expensive; the statics
// then run in parallel, they have no cross-dependencies.
type Pipeline struct {
	correctness *analyzer.Correctness
	quality     *analyzer.Quality
	style       *analyzer.Style
	performance *analyzer.Performance
	naming      *analyzer.Naming
	aiDetect    *analyzer.AIDetection

	now   func() time.Time
	newID func() string
}

// New builds a pipeline around the given correctness analyzer. The static
// analyzers are stateless and constructed here.
func New(correctness *analyzer.Correctness) *Pipeline {
	return &Pipeline{
		correctness: correctness,
		quality:     analyzer.NewQuality(),
		style:       analyzer.NewStyle(),
		performance: analyzer.NewPerformance(),
		naming:      analyzer.NewNaming(),
		aiDetect:    analyzer.NewAIDetection(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Run analyzes every answer of the solution against its assessment and
// returns the merged record. Analyzer failures never fail the run: the
// affected dimension goes null with a reason and the composite renormalizes
// over the rest. Run itself errors only on context cancellation.
func (p *Pipeline) Run(ctx context.Context, sol model.Solution, assessment model.Assessment) (model.AnalysisRecord, error) {
	record := model.AnalysisRecord{
		AnalysisID:    p.newID(),
		SolutionID:    sol.SolutionID,
		TestID:        sol.TestID,
		CandidateID:   sol.CandidateID,
		SchemaVersion: model.AnalysisSchemaVersion,
		AnalyzedAt:    p.now().UTC(),
	}

	questions := make(map[string]model.CodingQuestion, len(assessment.CodingQuestions))
	for _, q := range assessment.CodingQuestions {
		questions[q.QuestionID] = q
	}

	var corr, qual, style, perf, naming dimAccumulator

	for _, answer := range sol.CodingAnswers {
		if err := ctx.Err(); err != nil {
			return record, err
		}

		q, ok := questions[answer.QuestionID]
		if !ok {
			logger.Warn(ctx, "coding answer has no matching question, skipping",
				zap.String("solution_id", sol.SolutionID),
				zap.String("question_id", answer.QuestionID))
			continue
		}

		qa := model.QuestionAnalysis{QuestionID: answer.QuestionID, Language: answer.Language}

		lang, err := model.ParseLanguage(answer.Language)
		if err != nil {
			corr.fail(err)
			qual.fail(err)
			style.fail(err)
			perf.fail(err)
			naming.fail(err)
			record.Questions = append(record.Questions, qa)
			continue
		}

		in := analyzer.Input{
			SolutionID:   sol.SolutionID,
			QuestionID:   answer.QuestionID,
			Language:     lang,
			Code:         answer.Code,
			QuestionText: q.Text,
			Criteria:     q.Evaluation,
		}

		exec, score, err := p.correctness.Analyze(ctx, in)
		if err != nil {
			corr.fail(err)
			logger.Warn(ctx, "correctness analysis failed",
				zap.String("solution_id", sol.SolutionID),
				zap.String("question_id", answer.QuestionID),
				zap.Error(err))
		} else {
			corr.add(score)
			qa.Execution = &exec
			qa.CorrectnessScore = score
		}

		var (
			qm   model.QualityMetrics
			qerr error
			st   model.StyleResult
			serr error
			pf   model.PerformanceResult
			perr error
			nm   model.NamingResult
			nerr error
			ai   model.AIDetectionResult
			aerr error
		)
		if ferr := mr.Finish(
			func() error { qm, qerr = p.quality.Analyze(in); return nil },
			func() error { st, serr = p.style.Analyze(in); return nil },
			func() error { pf, perr = p.performance.Analyze(in); return nil },
			func() error { nm, nerr = p.naming.Analyze(in); return nil },
			func() error { ai, aerr = p.aiDetect.Analyze(in); return nil },
		); ferr != nil {
			qerr, serr, perr, nerr, aerr = ferr, ferr, ferr, ferr, ferr
		}

		if qerr != nil {
			qual.fail(qerr)
		} else {
			qual.add(p.quality.Score(qm))
			qa.Quality = &qm
		}
		if serr != nil {
			style.fail(serr)
		} else {
			style.add(st.Score)
			qa.Style = &st
		}
		if perr != nil {
			perf.fail(perr)
		} else {
			perf.add(pf.EfficiencyScore)
			qa.Performance = &pf
		}
		if nerr != nil {
			naming.fail(nerr)
		} else {
			naming.add(nm.Score)
			qa.Naming = &nm
		}
		if aerr == nil {
			qa.AIDetection = &ai
			// The record-level estimate is the most suspicious question.
			if record.AIDetection == nil || ai.Probability > record.AIDetection.Probability {
				record.AIDetection = &ai
			}
		}

		record.Questions = append(record.Questions, qa)
	}

	record.Correctness = corr.dimension()
	record.Quality = qual.dimension()
	record.Style = style.dimension()
	record.Performance = perf.dimension()
	record.Naming = naming.dimension()
	record.Composite = Composite(record)
	record.Knowledge = analyzer.ScoreKnowledge(assessment.MCQQuestions, sol.MCQAnswers)

	return record, nil
}

// Composite folds the record's dimensions into the weighted score,
// renormalized over the dimensions that are present. All dimensions null
// yields zero.
func Composite(record model.AnalysisRecord) float64 {
	weighted := []struct {
		dim    model.Dimension
		weight float64
	}{
		{record.Correctness, weightCorrectness},
		{record.Quality, weightQuality},
		{record.Style, weightStyle},
		{record.Performance, weightPerformance},
		{record.Naming, weightNaming},
	}

	var sum, mass float64
	for _, w := range weighted {
		if w.dim.Score == nil {
			continue
		}
		sum += w.weight * *w.dim.Score
		mass += w.weight
	}
	if mass == 0 {
		return 0
	}
	return sum / mass
}

// dimAccumulator folds per-question scores into one dimension. Questions
// whose analyzer failed contribute a reason instead of a score; the
// dimension is null only when no question scored at all.
type dimAccumulator struct {
	sum    float64
	count  int
	reason string
}

func (d *dimAccumulator) add(score float64) {
	d.sum += score
	d.count++
}

func (d *dimAccumulator) fail(err error) {
	if d.reason == "" {
		d.reason = err.Error()
	}
}

func (d *dimAccumulator) dimension() model.Dimension {
	if d.count > 0 {
		return model.ValidDimension(d.sum / float64(d.count))
	}
	if d.reason == "" {
		d.reason = "no coding answers analyzed"
	}
	return model.NullDimension(d.reason)
}
