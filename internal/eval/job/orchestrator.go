// Package job schedules analysis runs. A job fans out over one solution, a
// test's solutions, or every solution without a stored record; sub-items run
// on a worker pool shared by all jobs and commit their outcomes as they
// finish. The job table is owned here; callers read job state and logs
// through the Orchestrator only.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/repository"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"
)

// Pipeline runs the full analyzer suite for one solution.
type Pipeline interface {
	Run(ctx context.Context, solution model.Solution, assessment model.Assessment) (model.AnalysisRecord, error)
}

// Archiver stores the evaluation artifacts of a finished analysis. Archive
// failures are logged and never fail the item.
type Archiver interface {
	Archive(ctx context.Context, solution model.Solution, record model.AnalysisRecord) error
}

// Config holds orchestrator dependencies and settings.
type Config struct {
	Pipeline       Pipeline
	Assessments    repository.AssessmentRepository
	Solutions      repository.SolutionRepository
	Analyses       repository.AnalysisRepository
	Jobs           repository.JobRepository
	Archiver       Archiver
	WorkerPoolSize int
	ItemTimeout    time.Duration
}

const defaultItemTimeout = 5 * time.Minute

type Orchestrator struct {
	pipeline    Pipeline
	assessments repository.AssessmentRepository
	solutions   repository.SolutionRepository
	analyses    repository.AnalysisRepository
	jobs        repository.JobRepository
	archiver    Archiver
	itemTimeout time.Duration
	sem         chan struct{}
	newID       func() string
	now         func() time.Time

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Assessments == nil {
		return nil, fmt.Errorf("assessment repository is required")
	}
	if cfg.Solutions == nil {
		return nil, fmt.Errorf("solution repository is required")
	}
	if cfg.Analyses == nil {
		return nil, fmt.Errorf("analysis repository is required")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	itemTimeout := cfg.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		pipeline:    cfg.Pipeline,
		assessments: cfg.Assessments,
		solutions:   cfg.Solutions,
		analyses:    cfg.Analyses,
		jobs:        cfg.Jobs,
		archiver:    cfg.Archiver,
		itemTimeout: itemTimeout,
		sem:         make(chan struct{}, poolSize),
		newID:       uuid.NewString,
		now:         time.Now,
		runCtx:      runCtx,
		cancel:      cancel,
	}, nil
}

// Submit creates a job and starts it in the background. Scope preconditions
// are checked inside the job so failures surface through job status, not the
// submit call.
func (o *Orchestrator) Submit(ctx context.Context, scope model.JobScope, targetID string) (*model.Job, error) {
	switch scope {
	case model.ScopeSolution, model.ScopeTest:
		if targetID == "" {
			return nil, appErr.ValidationError("target_id", "required for scope "+string(scope))
		}
	case model.ScopeAll:
		targetID = ""
	default:
		return nil, appErr.ValidationError("scope", "must be solution, test, or all")
	}

	job := &model.Job{
		JobID:     o.newID(),
		Scope:     scope,
		TargetID:  targetID,
		Status:    model.JobQueued,
		CreatedAt: o.now().UTC(),
	}
	if err := o.jobs.Create(ctx, nil, job); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "create job failed")
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(job.JobID, scope, targetID)
	}()
	return job, nil
}

// Get returns the job with its per-item outcomes so far.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := o.jobs.Get(ctx, nil, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, appErr.Newf(appErr.JobNotFound, "job %s not found", jobID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load job failed")
	}
	return job, nil
}

// Logs returns ordered log entries with seq greater than afterSeq. The log
// is readable while the job is still running.
func (o *Orchestrator) Logs(ctx context.Context, jobID string, afterSeq int) ([]model.LogEntry, error) {
	if _, err := o.Get(ctx, jobID); err != nil {
		return nil, err
	}
	entries, err := o.jobs.Logs(ctx, nil, jobID, afterSeq)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load job logs failed")
	}
	return entries, nil
}

// List returns recent jobs, newest first.
func (o *Orchestrator) List(ctx context.Context, limit int) ([]model.Job, error) {
	jobs, err := o.jobs.List(ctx, nil, limit)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list jobs failed")
	}
	return jobs, nil
}

// Close waits for running jobs to finish. If ctx expires first the run
// context is canceled, which fails the in-flight items and lets their jobs
// reach a terminal state.
func (o *Orchestrator) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) run(jobID string, scope model.JobScope, targetID string) {
	ctx := o.runCtx
	jl := &jobLog{orch: o, jobID: jobID}

	if err := o.jobs.MarkRunning(ctx, nil, jobID, o.now()); err != nil {
		logger.Error(ctx, "mark job running failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	jl.logf(ctx, "job started: scope=%s target=%s", scope, targetID)

	solutions, err := o.resolveTargets(ctx, scope, targetID)
	if err != nil {
		jl.logf(ctx, "job failed: %s", err.Error())
		o.finish(jl, model.JobFailed, err.Error())
		return
	}
	if len(solutions) == 0 {
		// Only scope all reaches here; an empty test fails the precondition.
		jl.logf(ctx, "no solutions pending analysis")
		o.finish(jl, model.JobSucceeded, "")
		return
	}
	jl.logf(ctx, "analyzing %d solution(s)", len(solutions))

	var itemWG sync.WaitGroup
	for _, solution := range solutions {
		itemWG.Add(1)
		go func(solution model.Solution) {
			defer itemWG.Done()
			select {
			case o.sem <- struct{}{}:
			case <-ctx.Done():
				jl.commit(ctx, failedItem(solution.SolutionID, ctx.Err()))
				return
			}
			defer func() { <-o.sem }()
			jl.commit(ctx, o.analyzeOne(ctx, jl, solution))
		}(solution)
	}
	itemWG.Wait()

	summary := jl.summary()
	switch {
	case summary.Failed == 0:
		jl.logf(ctx, "job finished: SUCCEEDED (%d/%d items)", summary.Succeeded, summary.Total)
		o.finish(jl, model.JobSucceeded, "")
	case scope == model.ScopeSolution:
		jl.logf(ctx, "job finished: FAILED")
		o.finish(jl, model.JobFailed, jl.firstError())
	default:
		jl.logf(ctx, "job finished: PARTIAL (%d/%d items failed)", summary.Failed, summary.Total)
		o.finish(jl, model.JobPartial, fmt.Sprintf("%d of %d items failed", summary.Failed, summary.Total))
	}
}

// resolveTargets loads the solutions a job covers. Errors returned here are
// scope precondition failures and fail the whole job.
func (o *Orchestrator) resolveTargets(ctx context.Context, scope model.JobScope, targetID string) ([]model.Solution, error) {
	switch scope {
	case model.ScopeSolution:
		solution, err := o.solutions.Get(ctx, nil, targetID)
		if err != nil {
			if errors.Is(err, repository.ErrSolutionNotFound) {
				return nil, appErr.Newf(appErr.JobPreconditionFailed, "unknown solution id %s", targetID)
			}
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "load solution failed")
		}
		return []model.Solution{*solution}, nil
	case model.ScopeTest:
		if _, err := o.assessments.Get(ctx, nil, targetID); err != nil {
			if errors.Is(err, repository.ErrAssessmentNotFound) {
				return nil, appErr.Newf(appErr.JobPreconditionFailed, "unknown test id %s", targetID)
			}
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "load assessment failed")
		}
		solutions, err := o.solutions.ListByTest(ctx, nil, targetID)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "list solutions failed")
		}
		if len(solutions) == 0 {
			return nil, appErr.Newf(appErr.JobPreconditionFailed, "test %s has no solutions", targetID)
		}
		return solutions, nil
	default:
		solutions, err := o.solutions.ListUnanalyzed(ctx, nil)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "list unanalyzed solutions failed")
		}
		return solutions, nil
	}
}

func (o *Orchestrator) analyzeOne(ctx context.Context, jl *jobLog, solution model.Solution) model.JobItem {
	itemCtx, cancel := context.WithTimeout(ctx, o.itemTimeout)
	defer cancel()

	assessment, err := o.assessments.Get(itemCtx, nil, solution.TestID)
	if err != nil {
		jl.logf(ctx, "solution %s failed: assessment %s unavailable", solution.SolutionID, solution.TestID)
		return failedItem(solution.SolutionID, err)
	}

	record, err := o.pipeline.Run(itemCtx, solution, *assessment)
	if err != nil {
		jl.logf(ctx, "solution %s failed: %s", solution.SolutionID, err.Error())
		return failedItem(solution.SolutionID, err)
	}
	if err := o.analyses.Save(itemCtx, nil, &record); err != nil {
		jl.logf(ctx, "solution %s failed: store analysis: %s", solution.SolutionID, err.Error())
		return failedItem(solution.SolutionID, err)
	}

	if o.archiver != nil {
		if err := o.archiver.Archive(itemCtx, solution, record); err != nil {
			logger.Warn(ctx, "archive evaluation artifacts failed",
				zap.String("solution_id", solution.SolutionID),
				zap.Error(err))
		}
	}

	jl.logf(ctx, "solution %s analyzed: composite=%.3f", solution.SolutionID, record.Composite)
	return model.JobItem{
		SolutionID: solution.SolutionID,
		AnalysisID: record.AnalysisID,
		Succeeded:  true,
	}
}

// finish commits the terminal state on a fresh context so a canceled run
// context cannot strand the job in RUNNING.
func (o *Orchestrator) finish(jl *jobLog, status model.JobStatus, jobErr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.jobs.Finish(ctx, nil, jl.jobID, status, jobErr, jl.items(), o.now()); err != nil {
		logger.Error(ctx, "finish job failed",
			zap.String("job_id", jl.jobID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func failedItem(solutionID string, err error) model.JobItem {
	return model.JobItem{
		SolutionID: solutionID,
		ErrorKind:  appErr.GetCode(err).Kind(),
		Error:      err.Error(),
	}
}

// jobLog serializes a job's log appends and item commits. Worker goroutines
// of one job share it, so seq stays dense and the items column always holds
// every outcome committed so far.
type jobLog struct {
	orch  *Orchestrator
	jobID string

	mu       sync.Mutex
	seq      int
	outcomes []model.JobItem
}

func (l *jobLog) logf(ctx context.Context, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	entry := model.LogEntry{
		Seq:       l.seq,
		Timestamp: l.orch.now().UTC(),
		Message:   fmt.Sprintf(format, args...),
	}
	if err := l.orch.jobs.AppendLog(ctx, nil, l.jobID, entry); err != nil {
		logger.Warn(ctx, "append job log failed", zap.String("job_id", l.jobID), zap.Error(err))
	}
	logger.Debug(ctx, entry.Message, zap.String("job_id", l.jobID), zap.Int("seq", entry.Seq))
}

func (l *jobLog) commit(ctx context.Context, item model.JobItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, item)
	items := make([]model.JobItem, len(l.outcomes))
	copy(items, l.outcomes)
	if err := l.orch.jobs.UpdateItems(ctx, nil, l.jobID, items); err != nil {
		logger.Warn(ctx, "commit job item failed", zap.String("job_id", l.jobID), zap.Error(err))
	}
}

func (l *jobLog) items() []model.JobItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]model.JobItem, len(l.outcomes))
	copy(items, l.outcomes)
	return items
}

func (l *jobLog) summary() model.JobSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := model.JobSummary{Total: len(l.outcomes)}
	for _, item := range l.outcomes {
		if item.Succeeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

func (l *jobLog) firstError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.outcomes {
		if !item.Succeeded && item.Error != "" {
			return item.Error
		}
	}
	return "analysis failed"
}
