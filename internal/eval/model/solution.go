package model

import "time"

// Solution is one candidate's submission for an assessment.
type Solution struct {
	SolutionID    string         `json:"solution_id"`
	TestID        string         `json:"test_id"`
	CandidateID   string         `json:"candidate_id"`
	CodingAnswers []CodingAnswer `json:"coding_answers"`
	MCQAnswers    []MCQAnswer    `json:"mcq_answers,omitempty"`
	SubmittedAt   time.Time      `json:"submitted_at"`
}

// CodingAnswer is submitted source code for one coding question.
type CodingAnswer struct {
	QuestionID string `json:"question_id"`
	Language   string `json:"language"`
	Code       string `json:"code"`
}

// MCQAnswer is the candidate's selected choice ids for one MCQ question.
type MCQAnswer struct {
	QuestionID string   `json:"question_id"`
	Selected   []string `json:"selected"`
}
