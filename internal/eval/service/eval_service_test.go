package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/job"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/ranking"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/report"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/repository"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

type fakeAssessments struct {
	mu sync.Mutex
	m  map[string]model.Assessment
}

func (f *fakeAssessments) Upsert(ctx context.Context, tx db.Transaction, a *model.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[a.TestID] = *a
	return nil
}

func (f *fakeAssessments) Get(ctx context.Context, tx db.Transaction, testID string) (*model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.m[testID]
	if !ok {
		return nil, repository.ErrAssessmentNotFound
	}
	return &a, nil
}

func (f *fakeAssessments) List(ctx context.Context, tx db.Transaction) ([]model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assessment
	for _, a := range f.m {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAssessments) Delete(ctx context.Context, tx db.Transaction, testID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, testID)
	return nil
}

type fakeAnalyses struct {
	mu sync.Mutex
	m  map[string]model.AnalysisRecord
}

func (f *fakeAnalyses) Save(ctx context.Context, tx db.Transaction, record *model.AnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[record.SolutionID] = *record
	return nil
}

func (f *fakeAnalyses) GetBySolution(ctx context.Context, tx db.Transaction, solutionID string) (*model.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.m[solutionID]
	if !ok {
		return nil, repository.ErrAnalysisNotFound
	}
	return &record, nil
}

func (f *fakeAnalyses) ListByTest(ctx context.Context, tx db.Transaction, testID string) ([]model.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AnalysisRecord
	for _, record := range f.m {
		if record.TestID == testID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeSolutions struct {
	mu       sync.Mutex
	m        map[string]model.Solution
	analyses *fakeAnalyses
}

func (f *fakeSolutions) Upsert(ctx context.Context, tx db.Transaction, s *model.Solution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[s.SolutionID] = *s
	return nil
}

func (f *fakeSolutions) Get(ctx context.Context, tx db.Transaction, solutionID string) (*model.Solution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[solutionID]
	if !ok {
		return nil, repository.ErrSolutionNotFound
	}
	return &s, nil
}

func (f *fakeSolutions) ListByTest(ctx context.Context, tx db.Transaction, testID string) ([]model.Solution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Solution
	for _, s := range f.m {
		if s.TestID == testID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSolutions) ListAll(ctx context.Context, tx db.Transaction) ([]model.Solution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Solution
	for _, s := range f.m {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSolutions) ListUnanalyzed(ctx context.Context, tx db.Transaction) ([]model.Solution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses.mu.Lock()
	defer f.analyses.mu.Unlock()
	var out []model.Solution
	for id, s := range f.m {
		if _, ok := f.analyses.m[id]; !ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	m    map[string]model.Job
	logs map[string][]model.LogEntry
}

func (f *fakeJobs) Create(ctx context.Context, tx db.Transaction, j *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[j.JobID]; ok {
		return repository.ErrDuplicate
	}
	f.m[j.JobID] = *j
	return nil
}

func (f *fakeJobs) Get(ctx context.Context, tx db.Transaction, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.m[jobID]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &j, nil
}

func (f *fakeJobs) List(ctx context.Context, tx db.Transaction, limit int) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Job
	for _, j := range f.m {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobs) MarkRunning(ctx context.Context, tx db.Transaction, jobID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.m[jobID]
	if !ok || j.Status != model.JobQueued {
		return repository.ErrJobNotFound
	}
	j.Status = model.JobRunning
	j.StartedAt = &at
	f.m[jobID] = j
	return nil
}

func (f *fakeJobs) UpdateItems(ctx context.Context, tx db.Transaction, jobID string, items []model.JobItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.m[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	j.Items = items
	f.m[jobID] = j
	return nil
}

func (f *fakeJobs) Finish(ctx context.Context, tx db.Transaction, jobID string, status model.JobStatus, jobErr string, items []model.JobItem, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.m[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	j.Status = status
	j.Error = jobErr
	j.Items = items
	j.FinishedAt = &at
	f.m[jobID] = j
	return nil
}

func (f *fakeJobs) AppendLog(ctx context.Context, tx db.Transaction, jobID string, entry model.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[jobID] = append(f.logs[jobID], entry)
	return nil
}

func (f *fakeJobs) Logs(ctx context.Context, tx db.Transaction, jobID string, afterSeq int) ([]model.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LogEntry
	for _, entry := range f.logs[jobID] {
		if entry.Seq > afterSeq {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeReports struct {
	mu    sync.Mutex
	saved map[string]model.Report
}

func newFakeReports() *fakeReports {
	return &fakeReports{saved: make(map[string]model.Report)}
}

func (f *fakeReports) key(testID, kind, subjectID string) string {
	return testID + "/" + kind + "/" + subjectID
}

func (f *fakeReports) Save(ctx context.Context, tx db.Transaction, report *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	subjectID := ""
	if report.Kind == model.ReportKindIndividual {
		subjectID = report.Individual.CandidateID
	}
	f.saved[f.key(report.TestID, report.Kind, subjectID)] = *report
	return nil
}

func (f *fakeReports) GetComparative(ctx context.Context, tx db.Transaction, testID string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.saved[f.key(testID, model.ReportKindComparative, "")]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return &report, nil
}

func (f *fakeReports) GetIndividual(ctx context.Context, tx db.Transaction, testID, candidateID string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.saved[f.key(testID, model.ReportKindIndividual, candidateID)]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return &report, nil
}

type stubPipeline struct{}

func (p *stubPipeline) Run(ctx context.Context, solution model.Solution, assessment model.Assessment) (model.AnalysisRecord, error) {
	return model.AnalysisRecord{
		AnalysisID:  "an-" + solution.SolutionID,
		SolutionID:  solution.SolutionID,
		TestID:      solution.TestID,
		CandidateID: solution.CandidateID,
		Composite:   0.75,
		Correctness: model.ValidDimension(0.75),
		Quality:     model.ValidDimension(0.75),
		Style:       model.ValidDimension(0.75),
		Performance: model.ValidDimension(0.75),
		Naming:      model.ValidDimension(0.75),
		AnalyzedAt:  time.Now().UTC(),
	}, nil
}

type env struct {
	assessments *fakeAssessments
	solutions   *fakeSolutions
	analyses    *fakeAnalyses
	jobs        *fakeJobs
	reports     *fakeReports
}

func newService(t *testing.T) (*EvalService, *env) {
	t.Helper()
	analyses := &fakeAnalyses{m: make(map[string]model.AnalysisRecord)}
	e := &env{
		assessments: &fakeAssessments{m: make(map[string]model.Assessment)},
		solutions:   &fakeSolutions{m: make(map[string]model.Solution), analyses: analyses},
		analyses:    analyses,
		jobs:        &fakeJobs{m: make(map[string]model.Job), logs: make(map[string][]model.LogEntry)},
		reports:     newFakeReports(),
	}
	orch, err := job.New(job.Config{
		Pipeline:       &stubPipeline{},
		Assessments:    e.assessments,
		Solutions:      e.solutions,
		Analyses:       e.analyses,
		Jobs:           e.jobs,
		WorkerPoolSize: 2,
	})
	if err != nil {
		t.Fatalf("job.New failed: %v", err)
	}
	builder, err := report.New(report.Config{Analyses: e.analyses, Solutions: e.solutions, Reports: e.reports})
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	svc, err := NewEvalService(Config{
		Assessments:  e.assessments,
		Solutions:    e.solutions,
		Analyses:     e.analyses,
		Orchestrator: orch,
		Ranking:      ranking.NewEngine(e.analyses, e.solutions, nil),
		Reports:      builder,
		MaxCodeBytes: 1024,
	})
	if err != nil {
		t.Fatalf("NewEvalService failed: %v", err)
	}
	return svc, e
}

func validAssessment(testID string) *model.Assessment {
	return &model.Assessment{
		TestID: testID,
		Title:  "Sample Test",
		CodingQuestions: []model.CodingQuestion{
			{
				QuestionID: "q-1",
				Text:       "Add two numbers",
				Language:   "python",
				Evaluation: model.EvaluationCriteria{
					TestCases: []model.TestCase{
						{ID: "tc-1", Input: "[1, 2]", ExpectedOutput: "3", Weight: 1.0},
					},
				},
			},
		},
	}
}

func validSolution(solutionID, testID, candidateID string) *model.Solution {
	return &model.Solution{
		SolutionID:  solutionID,
		TestID:      testID,
		CandidateID: candidateID,
		CodingAnswers: []model.CodingAnswer{
			{QuestionID: "q-1", Language: "python", Code: "def add(a, b):\n    return a + b\n"},
		},
		SubmittedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpsertAssessmentValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Assessment)
		code   appErr.ErrorCode
	}{
		{"missing test id", func(a *model.Assessment) { a.TestID = " " }, appErr.ValidationFailed},
		{"no questions", func(a *model.Assessment) { a.CodingQuestions = nil }, appErr.ValidationFailed},
		{"missing question id", func(a *model.Assessment) { a.CodingQuestions[0].QuestionID = "" }, appErr.ValidationFailed},
		{"unsupported language", func(a *model.Assessment) { a.CodingQuestions[0].Language = "cobol" }, appErr.LanguageNotSupported},
		{"no test cases", func(a *model.Assessment) { a.CodingQuestions[0].Evaluation.TestCases = nil }, appErr.TestCaseInvalid},
		{"test case without id", func(a *model.Assessment) { a.CodingQuestions[0].Evaluation.TestCases[0].ID = "" }, appErr.TestCaseInvalid},
		{"negative weight", func(a *model.Assessment) { a.CodingQuestions[0].Evaluation.TestCases[0].Weight = -1 }, appErr.TestCaseWeightInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t)
			assessment := validAssessment("t-1")
			tc.mutate(assessment)
			err := svc.UpsertAssessment(context.Background(), assessment)
			if appErr.GetCode(err) != tc.code {
				t.Fatalf("expected code %d, got %v (err=%v)", tc.code, appErr.GetCode(err), err)
			}
		})
	}
}

func TestUpsertAssessmentStores(t *testing.T) {
	svc, e := newService(t)

	if err := svc.UpsertAssessment(context.Background(), validAssessment("t-1")); err != nil {
		t.Fatalf("UpsertAssessment failed: %v", err)
	}
	if _, ok := e.assessments.m["t-1"]; !ok {
		t.Fatal("assessment was not stored")
	}
}

func TestUpsertSolutionValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if err := svc.UpsertAssessment(ctx, validAssessment("t-1")); err != nil {
		t.Fatalf("UpsertAssessment failed: %v", err)
	}

	empty := validSolution("sol-1", "t-1", "cand-1")
	empty.CodingAnswers[0].Code = "   "
	if err := svc.UpsertSolution(ctx, empty); appErr.GetCode(err) != appErr.CodeEmpty {
		t.Fatalf("expected CodeEmpty, got %v", appErr.GetCode(err))
	}

	large := validSolution("sol-1", "t-1", "cand-1")
	large.CodingAnswers[0].Code = strings.Repeat("x", 2048)
	if err := svc.UpsertSolution(ctx, large); appErr.GetCode(err) != appErr.CodeTooLarge {
		t.Fatalf("expected CodeTooLarge, got %v", appErr.GetCode(err))
	}

	unknown := validSolution("sol-1", "t-unknown", "cand-1")
	if err := svc.UpsertSolution(ctx, unknown); appErr.GetCode(err) != appErr.AssessmentNotFound {
		t.Fatalf("expected AssessmentNotFound, got %v", appErr.GetCode(err))
	}

	missing := validSolution("sol-1", "t-1", "")
	if err := svc.UpsertSolution(ctx, missing); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected ValidationFailed, got %v", appErr.GetCode(err))
	}
}

func TestUpsertSolutionStampsSubmittedAt(t *testing.T) {
	svc, e := newService(t)
	ctx := context.Background()
	if err := svc.UpsertAssessment(ctx, validAssessment("t-1")); err != nil {
		t.Fatalf("UpsertAssessment failed: %v", err)
	}

	solution := validSolution("sol-1", "t-1", "cand-1")
	solution.SubmittedAt = time.Time{}
	if err := svc.UpsertSolution(ctx, solution); err != nil {
		t.Fatalf("UpsertSolution failed: %v", err)
	}
	stored := e.solutions.m["sol-1"]
	if stored.SubmittedAt.IsZero() {
		t.Fatal("expected submitted_at to be stamped")
	}
}

func TestJobLifecycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if err := svc.UpsertAssessment(ctx, validAssessment("t-1")); err != nil {
		t.Fatalf("UpsertAssessment failed: %v", err)
	}
	if err := svc.UpsertSolution(ctx, validSolution("sol-1", "t-1", "cand-1")); err != nil {
		t.Fatalf("UpsertSolution failed: %v", err)
	}

	queued, err := svc.SubmitJob(ctx, model.ScopeSolution, "sol-1")
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	if queued.Status != model.JobQueued {
		t.Fatalf("expected QUEUED, got %s", queued.Status)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	done, err := svc.GetJob(ctx, queued.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if done.Status != model.JobSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (error=%q)", done.Status, done.Error)
	}
	if len(done.Items) != 1 || !done.Items[0].Succeeded {
		t.Fatalf("unexpected items: %+v", done.Items)
	}

	logs, err := svc.GetJobLogs(ctx, queued.JobID, 0)
	if err != nil {
		t.Fatalf("GetJobLogs failed: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("expected job logs")
	}

	record, err := svc.GetAnalysis(ctx, "sol-1")
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if record.AnalysisID != "an-sol-1" {
		t.Fatalf("unexpected analysis: %s", record.AnalysisID)
	}

	entries, err := svc.Rankings(ctx, "t-1")
	if err != nil {
		t.Fatalf("Rankings failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Rank != 1 {
		t.Fatalf("unexpected rankings: %+v", entries)
	}

	comparative, err := svc.GenerateReport(ctx, "t-1")
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}
	if comparative.Comparative.CandidateCount != 1 {
		t.Fatalf("unexpected candidate count: %d", comparative.Comparative.CandidateCount)
	}

	stored, err := svc.GetComparativeReport(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetComparativeReport failed: %v", err)
	}
	if stored.ReportID != comparative.ReportID {
		t.Fatal("stored comparative report differs from generated one")
	}
	individual, err := svc.GetIndividualReport(ctx, "t-1", "cand-1")
	if err != nil {
		t.Fatalf("GetIndividualReport failed: %v", err)
	}
	if individual.Individual.SolutionID != "sol-1" {
		t.Fatalf("unexpected individual report: %+v", individual.Individual)
	}
}

func TestGenerateAllReportsSkipsEmptyTests(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if err := svc.UpsertAssessment(ctx, validAssessment("t-1")); err != nil {
		t.Fatalf("UpsertAssessment failed: %v", err)
	}
	if err := svc.UpsertAssessment(ctx, validAssessment("t-2")); err != nil {
		t.Fatalf("UpsertAssessment failed: %v", err)
	}
	if err := svc.UpsertSolution(ctx, validSolution("sol-1", "t-1", "cand-1")); err != nil {
		t.Fatalf("UpsertSolution failed: %v", err)
	}
	if _, err := svc.SubmitJob(ctx, model.ScopeSolution, "sol-1"); err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reports, err := svc.GenerateAllReports(ctx)
	if err != nil {
		t.Fatalf("GenerateAllReports failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	if reports[0].TestID != "t-1" {
		t.Fatalf("unexpected report test: %s", reports[0].TestID)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetAnalysis(context.Background(), "sol-missing")
	if appErr.GetCode(err) != appErr.AnalysisNotFound {
		t.Fatalf("expected AnalysisNotFound, got %v", appErr.GetCode(err))
	}
}

func TestRankingsValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Rankings(ctx, ""); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected ValidationFailed, got %v", appErr.GetCode(err))
	}
	if _, err := svc.Rankings(ctx, "t-none"); appErr.GetCode(err) != appErr.NoAnalysesForTest {
		t.Fatalf("expected NoAnalysesForTest, got %v", appErr.GetCode(err))
	}
}
