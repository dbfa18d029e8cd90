package model

import "time"

// AnalysisSchemaVersion is stamped on every record so composite-weight
// changes in later versions do not silently reinterpret historical rows.
const AnalysisSchemaVersion = 1

// Dimension is one scored axis of the analysis. A nil Score marks an
// analyzer failure: Reason says why, and the dimension is excluded from the
// composite (remaining weights renormalize).
type Dimension struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
}

// ValidDimension builds a scored dimension.
func ValidDimension(score float64) Dimension {
	return Dimension{Score: &score}
}

// NullDimension builds a failed dimension carrying the failure reason.
func NullDimension(reason string) Dimension {
	return Dimension{Reason: reason}
}

// AnalysisRecord is the persisted outcome of one pipeline run over one
// solution. Re-analysis overwrites the prior record for the solution.
type AnalysisRecord struct {
	AnalysisID    string    `json:"analysis_id"`
	SolutionID    string    `json:"solution_id"`
	TestID        string    `json:"test_id"`
	CandidateID   string    `json:"candidate_id"`
	SchemaVersion int       `json:"schema_version"`
	AnalyzedAt    time.Time `json:"analyzed_at"`

	Correctness Dimension `json:"correctness"`
	Quality     Dimension `json:"quality"`
	Style       Dimension `json:"style"`
	Performance Dimension `json:"performance"`
	Naming      Dimension `json:"naming"`

	// AIDetection is informational and never enters the composite.
	AIDetection *AIDetectionResult `json:"ai_detection,omitempty"`

	Composite float64 `json:"composite"`

	// Per-question raw material behind the dimensions.
	Questions []QuestionAnalysis `json:"questions"`

	// Knowledge summarizes MCQ answers; informational like AIDetection.
	Knowledge *KnowledgeResult `json:"knowledge,omitempty"`
}

// QuestionAnalysis holds the per-question metrics feeding the dimensions.
type QuestionAnalysis struct {
	QuestionID       string             `json:"question_id"`
	Language         string             `json:"language"`
	Execution        *ExecutionResult   `json:"execution,omitempty"`
	Quality          *QualityMetrics    `json:"quality,omitempty"`
	Style            *StyleResult       `json:"style,omitempty"`
	Performance      *PerformanceResult `json:"performance,omitempty"`
	Naming           *NamingResult      `json:"naming,omitempty"`
	AIDetection      *AIDetectionResult `json:"ai_detection,omitempty"`
	CorrectnessScore float64            `json:"correctness_score"`
}

// QualityMetrics are the static code quality measurements.
type QualityMetrics struct {
	CyclomaticComplexity float64 `json:"cyclomatic_complexity"`
	MaintainabilityIndex float64 `json:"maintainability_index"`
	CommentRatio         float64 `json:"comment_ratio"`
	FunctionCount        int     `json:"function_count"`
	LineCount            int     `json:"line_count"`
}

// AIDetectionResult is the heuristic generation-likelihood estimate.
type AIDetectionResult struct {
	Probability     float64  `json:"probability"`
	DetectionMethod string   `json:"detection_method"`
	FlaggedPatterns []string `json:"flagged_patterns,omitempty"`
}

// StyleResult lists convention violations and the derived score.
type StyleResult struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// NamingResult lists identifier convention violations and the derived score.
type NamingResult struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// PerformanceResult compares estimated complexity classes to expectations.
type PerformanceResult struct {
	TimeComplexityScore  float64  `json:"time_complexity_score"`
	SpaceComplexityScore float64  `json:"space_complexity_score"`
	EfficiencyScore      float64  `json:"efficiency_score"`
	EstimatedTime        string   `json:"estimated_time,omitempty"`
	EstimatedSpace       string   `json:"estimated_space,omitempty"`
	Suggestions          []string `json:"suggestions,omitempty"`
}

// KnowledgeResult summarizes MCQ scoring across the solution.
type KnowledgeResult struct {
	Score        float64 `json:"score"`
	CorrectCount int     `json:"correct_count"`
	TotalCount   int     `json:"total_count"`
}
