package model

import "time"

const (
	ReportKindIndividual  = "individual"
	ReportKindComparative = "comparative"
)

// RankingEntry is one candidate's position for a test. Ordering is composite
// descending, then earlier submission, then candidate id, so ranks are a
// strict total order.
type RankingEntry struct {
	Rank        int       `json:"rank"`
	CandidateID string    `json:"candidate_id"`
	SolutionID  string    `json:"solution_id"`
	AnalysisID  string    `json:"analysis_id"`
	Composite   float64   `json:"composite"`
	Correctness *float64  `json:"correctness"`
	Quality     *float64  `json:"quality"`
	Style       *float64  `json:"style"`
	Performance *float64  `json:"performance"`
	Naming      *float64  `json:"naming"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Report is a generated document for a test: the comparative ranked table
// plus aggregate statistics, or an individual candidate breakdown.
// Regeneration replaces the previous report for the same test (latest wins).
type Report struct {
	ReportID    string    `json:"report_id"`
	TestID      string    `json:"test_id"`
	Kind        string    `json:"kind"` // "individual" or "comparative"
	GeneratedAt time.Time `json:"generated_at"`

	// Individual report fields.
	Individual *IndividualReport `json:"individual,omitempty"`

	// Comparative report fields.
	Comparative *ComparativeReport `json:"comparative,omitempty"`
}

// IndividualReport is one candidate's full breakdown.
type IndividualReport struct {
	CandidateID     string              `json:"candidate_id"`
	SolutionID      string              `json:"solution_id"`
	AnalysisID      string              `json:"analysis_id"`
	Composite       float64             `json:"composite"`
	Summary         string              `json:"summary"`
	Dimensions      map[string]*float64 `json:"dimensions"`
	Strengths       []string            `json:"strengths,omitempty"`
	Improvements    []string            `json:"improvements,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
	PassedTests     int                 `json:"passed_tests"`
	TotalTests      int                 `json:"total_tests"`
}

// ComparativeReport ranks all candidates of a test with aggregates.
type ComparativeReport struct {
	CandidateCount    int                `json:"candidate_count"`
	AverageComposite  float64            `json:"average_composite"`
	TopCandidates     []RankingEntry     `json:"top_candidates"`
	Rankings          []RankingEntry     `json:"rankings"`
	ScoreDistribution ScoreDistribution  `json:"score_distribution"`
	DimensionAverages map[string]float64 `json:"dimension_averages"`
}

// ScoreDistribution buckets composite scores.
type ScoreDistribution struct {
	Excellent int `json:"excellent"` // [0.8, 1.0]
	Good      int `json:"good"`      // [0.6, 0.8)
	Average   int `json:"average"`   // [0.4, 0.6)
	Poor      int `json:"poor"`      // [0.0, 0.4)
}

// Add places one composite score into its bucket.
func (d *ScoreDistribution) Add(score float64) {
	switch {
	case score >= 0.8:
		d.Excellent++
	case score >= 0.6:
		d.Good++
	case score >= 0.4:
		d.Average++
	default:
		d.Poor++
	}
}
