// Package service exposes the evaluation system behind one facade:
// ingestion of assessments and solutions, job submission and inspection,
// analysis reads, report generation, and rankings. Handlers and the CLI talk
// to this package only; repositories and the orchestrator stay internal.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/job"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/ranking"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/report"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/repository"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"
)

const defaultMaxCodeBytes = 128 * 1024

// Config holds evaluation service dependencies and settings.
type Config struct {
	Assessments  repository.AssessmentRepository
	Solutions    repository.SolutionRepository
	Analyses     repository.AnalysisRepository
	Orchestrator *job.Orchestrator
	Ranking      *ranking.Engine
	Reports      *report.Builder

	MaxCodeBytes int
	Timeouts     TimeoutConfig
}

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB time.Duration
}

// EvalService is the operation facade over the evaluation subsystems.
type EvalService struct {
	assessments repository.AssessmentRepository
	solutions   repository.SolutionRepository
	analyses    repository.AnalysisRepository
	orch        *job.Orchestrator
	ranking     *ranking.Engine
	reports     *report.Builder

	maxCodeBytes int
	timeouts     TimeoutConfig
	now          func() time.Time
}

// NewEvalService creates a new evaluation service.
func NewEvalService(cfg Config) (*EvalService, error) {
	if cfg.Assessments == nil {
		return nil, fmt.Errorf("assessment repository is required")
	}
	if cfg.Solutions == nil {
		return nil, fmt.Errorf("solution repository is required")
	}
	if cfg.Analyses == nil {
		return nil, fmt.Errorf("analysis repository is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Ranking == nil {
		return nil, fmt.Errorf("ranking engine is required")
	}
	if cfg.Reports == nil {
		return nil, fmt.Errorf("report builder is required")
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	return &EvalService{
		assessments:  cfg.Assessments,
		solutions:    cfg.Solutions,
		analyses:     cfg.Analyses,
		orch:         cfg.Orchestrator,
		ranking:      cfg.Ranking,
		reports:      cfg.Reports,
		maxCodeBytes: cfg.MaxCodeBytes,
		timeouts:     cfg.Timeouts,
		now:          time.Now,
	}, nil
}

// UpsertAssessment validates and stores an assessment document, replacing
// any previous version with the same test id.
func (s *EvalService) UpsertAssessment(ctx context.Context, assessment *model.Assessment) error {
	if err := validateAssessment(assessment); err != nil {
		return err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.assessments.Upsert(ctxDB.ctx, nil, assessment); err != nil {
		return appErr.Wrapf(err, appErr.AssessmentStoreFailed, "store assessment failed")
	}
	return nil
}

// UpsertSolution validates and stores a candidate submission. The referenced
// assessment must already exist; resubmission under the same solution id
// replaces the earlier payload.
func (s *EvalService) UpsertSolution(ctx context.Context, solution *model.Solution) error {
	if err := s.validateSolution(solution); err != nil {
		return err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if _, err := s.assessments.Get(ctxDB.ctx, nil, solution.TestID); err != nil {
		if errors.Is(err, repository.ErrAssessmentNotFound) {
			return appErr.Newf(appErr.AssessmentNotFound, "unknown test id %s", solution.TestID)
		}
		return appErr.Wrapf(err, appErr.DatabaseError, "get assessment failed")
	}
	if solution.SubmittedAt.IsZero() {
		solution.SubmittedAt = s.now().UTC()
	}
	if err := s.solutions.Upsert(ctxDB.ctx, nil, solution); err != nil {
		return appErr.Wrapf(err, appErr.SolutionStoreFailed, "store solution failed")
	}
	return nil
}

// SubmitJob queues an analysis job and returns it in QUEUED state. Scope
// preconditions are checked by the job itself and surface through its
// status, not here.
func (s *EvalService) SubmitJob(ctx context.Context, scope model.JobScope, targetID string) (*model.Job, error) {
	return s.orch.Submit(ctx, scope, targetID)
}

// GetJob returns the current job state including per-item outcomes.
func (s *EvalService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, appErr.ValidationError("job_id", "required")
	}
	return s.orch.Get(ctx, jobID)
}

// GetJobLogs returns job log entries with seq greater than afterSeq, oldest
// first. Logs are readable while the job is still running.
func (s *EvalService) GetJobLogs(ctx context.Context, jobID string, afterSeq int) ([]model.LogEntry, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, appErr.ValidationError("job_id", "required")
	}
	return s.orch.Logs(ctx, jobID, afterSeq)
}

// ListJobs returns the most recent jobs.
func (s *EvalService) ListJobs(ctx context.Context, limit int) ([]model.Job, error) {
	return s.orch.List(ctx, limit)
}

// GetAnalysis returns the stored analysis record for a solution.
func (s *EvalService) GetAnalysis(ctx context.Context, solutionID string) (*model.AnalysisRecord, error) {
	if strings.TrimSpace(solutionID) == "" {
		return nil, appErr.ValidationError("solution_id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	record, err := s.analyses.GetBySolution(ctxDB.ctx, nil, solutionID)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			return nil, appErr.Newf(appErr.AnalysisNotFound, "no analysis for solution %s", solutionID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get analysis failed")
	}
	return record, nil
}

// GenerateReport regenerates the reports for one test and returns the
// comparative report. The ranking cache for the test is invalidated so the
// next read reflects the same records the report saw.
func (s *EvalService) GenerateReport(ctx context.Context, testID string) (*model.Report, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, appErr.ValidationError("test_id", "required")
	}
	rpt, err := s.reports.GenerateForTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.ranking.Invalidate(ctx, testID); err != nil {
		logger.Warn(ctx, "invalidate ranking cache failed",
			zap.String("test_id", testID), zap.Error(err))
	}
	return rpt, nil
}

// GenerateAllReports regenerates reports for every stored assessment that
// has analysis records. Tests without analyses are skipped.
func (s *EvalService) GenerateAllReports(ctx context.Context) ([]model.Report, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	assessments, err := s.assessments.List(ctxDB.ctx, nil)
	ctxDB.cancel()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list assessments failed")
	}

	var out []model.Report
	for _, assessment := range assessments {
		rpt, err := s.GenerateReport(ctx, assessment.TestID)
		if err != nil {
			if appErr.GetCode(err) == appErr.NoAnalysesForTest {
				continue
			}
			return nil, err
		}
		out = append(out, *rpt)
	}
	return out, nil
}

// GetComparativeReport returns the stored comparative report for a test.
func (s *EvalService) GetComparativeReport(ctx context.Context, testID string) (*model.Report, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, appErr.ValidationError("test_id", "required")
	}
	return s.reports.Comparative(ctx, testID)
}

// GetIndividualReport returns the stored individual report for one
// candidate of a test.
func (s *EvalService) GetIndividualReport(ctx context.Context, testID, candidateID string) (*model.Report, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, appErr.ValidationError("test_id", "required")
	}
	if strings.TrimSpace(candidateID) == "" {
		return nil, appErr.ValidationError("candidate_id", "required")
	}
	return s.reports.Individual(ctx, testID, candidateID)
}

// Rankings returns the ranked candidate table for a test.
func (s *EvalService) Rankings(ctx context.Context, testID string) ([]model.RankingEntry, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, appErr.ValidationError("test_id", "required")
	}
	return s.ranking.Rankings(ctx, testID)
}

// Close drains in-flight jobs.
func (s *EvalService) Close(ctx context.Context) error {
	return s.orch.Close(ctx)
}

func validateAssessment(assessment *model.Assessment) error {
	if assessment == nil {
		return appErr.ValidationError("assessment", "required")
	}
	if strings.TrimSpace(assessment.TestID) == "" {
		return appErr.ValidationError("test_id", "required")
	}
	if len(assessment.CodingQuestions) == 0 && len(assessment.MCQQuestions) == 0 {
		return appErr.ValidationError("questions", "required")
	}
	for _, question := range assessment.CodingQuestions {
		if strings.TrimSpace(question.QuestionID) == "" {
			return appErr.ValidationError("question_id", "required")
		}
		if _, err := model.ParseLanguage(question.Language); err != nil {
			return appErr.Newf(appErr.LanguageNotSupported, "question %s: %v", question.QuestionID, err)
		}
		if len(question.Evaluation.TestCases) == 0 {
			return appErr.Newf(appErr.TestCaseInvalid, "question %s has no test cases", question.QuestionID)
		}
		for _, testCase := range question.Evaluation.TestCases {
			if strings.TrimSpace(testCase.ID) == "" {
				return appErr.Newf(appErr.TestCaseInvalid, "question %s has a test case without id", question.QuestionID)
			}
			if testCase.Weight < 0 {
				return appErr.Newf(appErr.TestCaseWeightInvalid, "question %s test case %s has negative weight", question.QuestionID, testCase.ID)
			}
		}
	}
	for _, question := range assessment.MCQQuestions {
		if strings.TrimSpace(question.QuestionID) == "" {
			return appErr.ValidationError("question_id", "required")
		}
		if len(question.Choices) == 0 {
			return appErr.ValidationError("choices", "required")
		}
		if len(question.CorrectChoices) == 0 {
			return appErr.ValidationError("correct_choices", "required")
		}
	}
	return nil
}

func (s *EvalService) validateSolution(solution *model.Solution) error {
	if solution == nil {
		return appErr.ValidationError("solution", "required")
	}
	if strings.TrimSpace(solution.SolutionID) == "" {
		return appErr.ValidationError("solution_id", "required")
	}
	if strings.TrimSpace(solution.TestID) == "" {
		return appErr.ValidationError("test_id", "required")
	}
	if strings.TrimSpace(solution.CandidateID) == "" {
		return appErr.ValidationError("candidate_id", "required")
	}
	if len(solution.CodingAnswers) == 0 && len(solution.MCQAnswers) == 0 {
		return appErr.ValidationError("answers", "required")
	}
	for _, answer := range solution.CodingAnswers {
		if strings.TrimSpace(answer.Code) == "" {
			return appErr.Newf(appErr.CodeEmpty, "answer for question %s has no code", answer.QuestionID)
		}
		if len([]byte(answer.Code)) > s.maxCodeBytes {
			return appErr.Newf(appErr.CodeTooLarge, "answer for question %s exceeds %d bytes", answer.QuestionID, s.maxCodeBytes)
		}
	}
	return nil
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
