package model

// ResourceLimits bounds one sandboxed execution.
type ResourceLimits struct {
	WallTimeMS int64 `json:"wall_time_ms"`
	MemoryMB   int64 `json:"memory_mb"`
	OutputKB   int64 `json:"output_kb"`
	PIDs       int64 `json:"pids,omitempty"`
}

// ExecutionResult is the outcome of running one solution against the test
// cases of one question. The shape is identical for container and fallback
// execution paths.
type ExecutionResult struct {
	QuestionID      string           `json:"question_id"`
	TestCaseResults []TestCaseResult `json:"test_case_results"`
	CompileOutput   string           `json:"compile_output,omitempty"`
	Isolated        bool             `json:"isolated"`
}

// TestCaseResult records one (code, test case) execution.
type TestCaseResult struct {
	TestCaseID      string  `json:"test_case_id"`
	Passed          bool    `json:"passed"`
	ActualOutput    string  `json:"actual_output"`
	ExpectedOutput  string  `json:"expected_output"`
	ExecutionTimeMS float64 `json:"execution_time_ms"`
	MemoryUsageKB   float64 `json:"memory_usage_kb,omitempty"`
	ExitCode        int     `json:"exit_code"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// PassedWeight sums the weights of passed cases over results paired with
// their test cases by id.
func PassedWeight(cases []TestCase, results []TestCaseResult) (passed, total float64) {
	byID := make(map[string]TestCaseResult, len(results))
	for _, r := range results {
		byID[r.TestCaseID] = r
	}
	for _, tc := range cases {
		w := tc.Weight
		if w <= 0 {
			w = 1.0
		}
		total += w
		if r, ok := byID[tc.ID]; ok && r.Passed {
			passed += w
		}
	}
	return passed, total
}
