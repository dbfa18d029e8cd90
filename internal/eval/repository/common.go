// Package repository persists assessments, solutions, analysis records,
// jobs, and reports in MySQL. Documents keep their nested shape in a JSON
// payload column; columns are extracted only where queries filter or order
// by them.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSolutionNotFound   = errors.New("solution not found")
	ErrAnalysisNotFound   = errors.New("analysis not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrReportNotFound     = errors.New("report not found")
	ErrDuplicate          = errors.New("record already exists")
)

func marshalPayload(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(raw), nil
}

func unmarshalPayload(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
