package model

import "time"

// JobScope selects what a job analyzes.
type JobScope string

const (
	ScopeSolution JobScope = "solution" // one solution
	ScopeTest     JobScope = "test"     // every solution of a test
	ScopeAll      JobScope = "all"      // every solution lacking a record
)

// ParseJobScope validates a raw scope string.
func ParseJobScope(raw string) (JobScope, bool) {
	switch JobScope(raw) {
	case ScopeSolution, ScopeTest, ScopeAll:
		return JobScope(raw), true
	}
	return "", false
}

// JobStatus is the job lifecycle state. Terminal states are final; there is
// no cancelled state, mid-run cancellation is unsupported.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobPartial   JobStatus = "PARTIAL"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobPartial, JobFailed:
		return true
	}
	return false
}

// Job is one asynchronous analysis run.
type Job struct {
	JobID      string     `json:"job_id"`
	Scope      JobScope   `json:"scope"`
	TargetID   string     `json:"target_id,omitempty"` // solution or test id; empty for scope all
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Items carries per-solution outcomes for batch scopes.
	Items []JobItem `json:"items,omitempty"`
}

// JobItem is the outcome for one solution inside a batch job.
type JobItem struct {
	SolutionID string `json:"solution_id"`
	AnalysisID string `json:"analysis_id,omitempty"`
	Succeeded  bool   `json:"succeeded"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JobSummary condenses item outcomes for status responses.
type JobSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize counts item outcomes.
func (j *Job) Summarize() JobSummary {
	s := JobSummary{Total: len(j.Items)}
	for _, it := range j.Items {
		if it.Succeeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// LogEntry is one line of a job's append-only log.
type LogEntry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
