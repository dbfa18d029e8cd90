// Package analyzer holds the static and dynamic analyzers the pipeline runs
// over one coding answer. Each analyzer is independent: a failing analyzer
// nulls its own dimension and never takes the others down.
package analyzer

import (
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

// Input is one coding answer joined with its question. Criteria carries the
// test cases and expected complexity classes; QuestionText feeds entry point
// selection when no function name is configured.
type Input struct {
	SolutionID   string
	QuestionID   string
	Language     model.Language
	Code         string
	QuestionText string
	Criteria     model.EvaluationCriteria
}

func countLines(code string) int {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "\n"))
}

func splitLines(code string) []string {
	return strings.Split(strings.TrimSpace(code), "\n")
}
