package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	TraceID    key = "trace_id"
	RequestID  key = "request_id"
	OperatorID key = "operator_id"

	// JobID and SolutionID scope log lines produced inside evaluation runs.
	JobID      key = "job_id"
	SolutionID key = "solution_id"
)
