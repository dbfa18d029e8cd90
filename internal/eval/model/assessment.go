package model

// Assessment is one coding test: a set of questions with grading material.
type Assessment struct {
	TestID          string           `json:"test_id"`
	Title           string           `json:"title,omitempty"`
	CodingQuestions []CodingQuestion `json:"coding_questions"`
	MCQQuestions    []MCQQuestion    `json:"mcq_questions,omitempty"`
}

// CodingQuestion carries the statement and evaluation material for one
// programming task.
type CodingQuestion struct {
	QuestionID  string             `json:"question_id"`
	Text        string             `json:"text"`
	Language    string             `json:"language"`
	StarterCode string             `json:"starter_code,omitempty"`
	Evaluation  EvaluationCriteria `json:"evaluation_criteria"`
}

// EvaluationCriteria holds test cases and expected complexity classes.
type EvaluationCriteria struct {
	TestCases       []TestCase `json:"test_cases"`
	TimeComplexity  string     `json:"time_complexity,omitempty"`
	SpaceComplexity string     `json:"space_complexity,omitempty"`
	FunctionName    string     `json:"function_name,omitempty"`
}

// TestCase is one weighted input/expected pair. Weights for a question
// typically sum to 1.0 but any positive total is accepted; scoring divides
// by the actual sum.
type TestCase struct {
	ID             string  `json:"id"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	Weight         float64 `json:"weight"`
	Hidden         bool    `json:"hidden,omitempty"`
}

// MCQQuestion is a multiple-choice question with one or more correct choices.
type MCQQuestion struct {
	QuestionID     string   `json:"question_id"`
	Text           string   `json:"text"`
	Choices        []Choice `json:"choices"`
	CorrectChoices []string `json:"correct_choices"`
}

// Choice is one selectable option of an MCQ question.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
