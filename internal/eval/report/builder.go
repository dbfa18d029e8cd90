// Package report turns analysis records into candidate-facing documents: an
// individual breakdown per candidate and a comparative summary per test.
// Reports are snapshots of the analysis records existing at generation time;
// regenerating replaces the stored copy for the same test.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/ranking"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/repository"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

// Score thresholds behind the report prose. A dimension at or above strong
// is listed as a strength; below weak it is listed as an improvement area.
const (
	strongScore = 0.8
	weakScore   = 0.6

	topCandidateCount = 5

	// AI probabilities above this add an originality note to the
	// recommendations.
	aiFlagThreshold = 0.7
)

// Config carries the Builder dependencies.
type Config struct {
	Analyses  repository.AnalysisRepository
	Solutions repository.SolutionRepository
	Reports   repository.ReportRepository
}

// Builder generates and stores reports. It reads analysis records directly
// rather than through the ranking cache, so a generated report always
// reflects the records present at generation time.
type Builder struct {
	analyses  repository.AnalysisRepository
	solutions repository.SolutionRepository
	reports   repository.ReportRepository

	newID func() string
	now   func() time.Time
}

func New(cfg Config) (*Builder, error) {
	if cfg.Analyses == nil {
		return nil, fmt.Errorf("analysis repository is required")
	}
	if cfg.Solutions == nil {
		return nil, fmt.Errorf("solution repository is required")
	}
	if cfg.Reports == nil {
		return nil, fmt.Errorf("report repository is required")
	}
	return &Builder{
		analyses:  cfg.Analyses,
		solutions: cfg.Solutions,
		reports:   cfg.Reports,
		newID:     uuid.NewString,
		now:       time.Now,
	}, nil
}

// GenerateForTest builds and stores one individual report per analyzed
// candidate plus the comparative report, all stamped with the same
// generation time, and returns the comparative report. Tests without any
// analysis records yield a NoAnalysesForTest error.
func (b *Builder) GenerateForTest(ctx context.Context, testID string) (*model.Report, error) {
	records, err := b.analyses.ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list analyses failed")
	}
	if len(records) == 0 {
		return nil, appErr.Newf(appErr.NoAnalysesForTest, "no analysis records exist for test %s", testID)
	}
	solutions, err := b.solutions.ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list solutions failed")
	}

	generatedAt := b.now().UTC()

	for i := range records {
		individual := BuildIndividual(records[i])
		rpt := model.Report{
			ReportID:    b.newID(),
			TestID:      testID,
			Kind:        model.ReportKindIndividual,
			GeneratedAt: generatedAt,
			Individual:  &individual,
		}
		if err := b.reports.Save(ctx, nil, &rpt); err != nil {
			return nil, appErr.Wrapf(err, appErr.ReportBuildFailed, "store individual report for candidate %s failed", individual.CandidateID)
		}
	}

	comparative := BuildComparative(records, solutions)
	rpt := &model.Report{
		ReportID:    b.newID(),
		TestID:      testID,
		Kind:        model.ReportKindComparative,
		GeneratedAt: generatedAt,
		Comparative: &comparative,
	}
	if err := b.reports.Save(ctx, nil, rpt); err != nil {
		return nil, appErr.Wrapf(err, appErr.ReportBuildFailed, "store comparative report failed")
	}
	return rpt, nil
}

// Comparative returns the stored comparative report for a test.
func (b *Builder) Comparative(ctx context.Context, testID string) (*model.Report, error) {
	rpt, err := b.reports.GetComparative(ctx, nil, testID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, appErr.Newf(appErr.ReportNotFound, "no comparative report generated for test %s", testID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get report failed")
	}
	return rpt, nil
}

// Individual returns the stored individual report for one candidate of a test.
func (b *Builder) Individual(ctx context.Context, testID, candidateID string) (*model.Report, error) {
	rpt, err := b.reports.GetIndividual(ctx, nil, testID, candidateID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, appErr.Newf(appErr.ReportNotFound, "no individual report generated for candidate %s on test %s", candidateID, testID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get report failed")
	}
	return rpt, nil
}

// BuildIndividual derives one candidate's breakdown from their analysis
// record.
func BuildIndividual(record model.AnalysisRecord) model.IndividualReport {
	passed, total := passedTestCounts(record)
	return model.IndividualReport{
		CandidateID: record.CandidateID,
		SolutionID:  record.SolutionID,
		AnalysisID:  record.AnalysisID,
		Composite:   record.Composite,
		Summary:     summarize(record, passed, total),
		Dimensions: map[string]*float64{
			"correctness": record.Correctness.Score,
			"quality":     record.Quality.Score,
			"style":       record.Style.Score,
			"performance": record.Performance.Score,
			"naming":      record.Naming.Score,
		},
		Strengths:       strengths(record, passed, total),
		Improvements:    improvements(record, passed, total),
		Recommendations: recommendations(record),
		PassedTests:     passed,
		TotalTests:      total,
	}
}

// BuildComparative derives the test-wide ranked summary from the given
// records.
func BuildComparative(records []model.AnalysisRecord, solutions []model.Solution) model.ComparativeReport {
	rankings := ranking.Compute(records, solutions)
	if len(rankings) == 0 {
		return model.ComparativeReport{DimensionAverages: map[string]float64{}}
	}

	var distribution model.ScoreDistribution
	var sum float64
	for _, entry := range rankings {
		distribution.Add(entry.Composite)
		sum += entry.Composite
	}

	top := rankings
	if len(top) > topCandidateCount {
		top = top[:topCandidateCount]
	}

	return model.ComparativeReport{
		CandidateCount:    len(rankings),
		AverageComposite:  sum / float64(len(rankings)),
		TopCandidates:     top,
		Rankings:          rankings,
		ScoreDistribution: distribution,
		DimensionAverages: dimensionAverages(records),
	}
}

func summarize(record model.AnalysisRecord, passed, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The candidate demonstrated %s performance with an overall score of %.2f.",
		performanceLevel(record.Composite), record.Composite)
	if total > 0 {
		fmt.Fprintf(&sb, " Passed %d of %d test cases across %d coding question(s).", passed, total, len(record.Questions))
	}
	if record.Knowledge != nil && record.Knowledge.TotalCount > 0 {
		fmt.Fprintf(&sb, " In multiple-choice questions, the candidate scored %.2f.", record.Knowledge.Score)
	}
	return sb.String()
}

func performanceLevel(score float64) string {
	switch {
	case score >= 0.8:
		return "excellent"
	case score >= 0.6:
		return "good"
	case score >= 0.4:
		return "average"
	default:
		return "below average"
	}
}

func strengths(record model.AnalysisRecord, passed, total int) []string {
	var out []string
	if atLeast(record.Correctness, strongScore) {
		out = append(out, "Strong problem-solving skills with high correctness in coding solutions")
	}
	if total > 0 {
		if rate := float64(passed) / float64(total); rate >= strongScore {
			out = append(out, fmt.Sprintf("Passed %d out of %d test cases (%.0f%%)", passed, total, rate*100))
		}
	}
	if atLeast(record.Quality, strongScore) {
		out = append(out, "Excellent code quality and maintainability")
	}
	if atLeast(record.Style, strongScore) {
		out = append(out, "Good coding style and adherence to conventions")
	}
	if atLeast(record.Performance, strongScore) {
		out = append(out, "Efficient code with good performance characteristics")
	}
	if atLeast(record.Naming, strongScore) {
		out = append(out, "Clear and consistent identifier naming")
	}
	if record.Knowledge != nil && record.Knowledge.TotalCount > 0 && record.Knowledge.Score >= strongScore {
		out = append(out, "Strong knowledge base demonstrated in multiple-choice questions")
	}
	return out
}

func improvements(record model.AnalysisRecord, passed, total int) []string {
	var out []string
	if below(record.Correctness, weakScore) {
		out = append(out, "Needs improvement in problem-solving and solution correctness")
	}
	if total > 0 {
		if rate := float64(passed) / float64(total); rate < weakScore {
			out = append(out, fmt.Sprintf("Failed %d out of %d test cases (%.0f%%)", total-passed, total, (1-rate)*100))
		}
	}
	if below(record.Quality, weakScore) {
		out = append(out, "Code quality and maintainability could be improved")
	}
	if below(record.Style, weakScore) {
		out = append(out, "Should focus on improving coding style and conventions")
	}
	if below(record.Performance, weakScore) {
		out = append(out, "Code efficiency and performance need attention")
	}
	if below(record.Naming, weakScore) {
		out = append(out, "Identifier naming should follow language conventions")
	}
	if record.Knowledge != nil && record.Knowledge.TotalCount > 0 && record.Knowledge.Score < weakScore {
		out = append(out, "Knowledge gaps identified in multiple-choice questions")
	}
	return out
}

// recommendations collects the optimization suggestions across questions
// (first occurrence wins, order preserved so regeneration is deterministic),
// an originality note when AI detection is high, and a review pointer per
// question with failed test cases.
func recommendations(record model.AnalysisRecord) []string {
	var out []string
	seen := make(map[string]bool)
	for _, question := range record.Questions {
		if question.Performance == nil {
			continue
		}
		for _, suggestion := range question.Performance.Suggestions {
			if seen[suggestion] {
				continue
			}
			seen[suggestion] = true
			out = append(out, suggestion)
		}
	}

	if record.AIDetection != nil && record.AIDetection.Probability > aiFlagThreshold {
		out = append(out, "Candidate should demonstrate more original work in coding solutions")
	}

	for _, question := range record.Questions {
		if question.Execution == nil {
			continue
		}
		failed := 0
		for _, result := range question.Execution.TestCaseResults {
			if !result.Passed {
				failed++
			}
		}
		if failed > 0 {
			out = append(out, fmt.Sprintf("Review failed test cases for question %s", question.QuestionID))
		}
	}
	return out
}

func passedTestCounts(record model.AnalysisRecord) (passed, total int) {
	for _, question := range record.Questions {
		if question.Execution == nil {
			continue
		}
		for _, result := range question.Execution.TestCaseResults {
			total++
			if result.Passed {
				passed++
			}
		}
	}
	return passed, total
}

func dimensionAverages(records []model.AnalysisRecord) map[string]float64 {
	sums := make(map[string]float64, 5)
	counts := make(map[string]int, 5)
	add := func(name string, d model.Dimension) {
		if d.Score == nil {
			return
		}
		sums[name] += *d.Score
		counts[name]++
	}
	for _, record := range records {
		add("correctness", record.Correctness)
		add("quality", record.Quality)
		add("style", record.Style)
		add("performance", record.Performance)
		add("naming", record.Naming)
	}
	out := make(map[string]float64, len(sums))
	for name, sum := range sums {
		out[name] = sum / float64(counts[name])
	}
	return out
}

func atLeast(d model.Dimension, threshold float64) bool {
	return d.Score != nil && *d.Score >= threshold
}

func below(d model.Dimension, threshold float64) bool {
	return d.Score != nil && *d.Score < threshold
}
