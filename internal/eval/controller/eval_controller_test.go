package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
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

func (f *fakeReports) key(testID, kind, subjectID string) string {
	return testID + "/" + kind + "/" + subjectID
}

func (f *fakeReports) Save(ctx context.Context, tx db.Transaction, rpt *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	subjectID := ""
	if rpt.Kind == model.ReportKindIndividual {
		subjectID = rpt.Individual.CandidateID
	}
	f.saved[f.key(rpt.TestID, rpt.Kind, subjectID)] = *rpt
	return nil
}

func (f *fakeReports) GetComparative(ctx context.Context, tx db.Transaction, testID string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rpt, ok := f.saved[f.key(testID, model.ReportKindComparative, "")]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return &rpt, nil
}

func (f *fakeReports) GetIndividual(ctx context.Context, tx db.Transaction, testID, candidateID string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rpt, ok := f.saved[f.key(testID, model.ReportKindIndividual, candidateID)]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return &rpt, nil
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

func newEvalService(t *testing.T) *service.EvalService {
	t.Helper()
	analyses := &fakeAnalyses{m: make(map[string]model.AnalysisRecord)}
	assessments := &fakeAssessments{m: make(map[string]model.Assessment)}
	solutions := &fakeSolutions{m: make(map[string]model.Solution), analyses: analyses}
	jobs := &fakeJobs{m: make(map[string]model.Job), logs: make(map[string][]model.LogEntry)}
	reports := &fakeReports{saved: make(map[string]model.Report)}

	orch, err := job.New(job.Config{
		Pipeline:       &stubPipeline{},
		Assessments:    assessments,
		Solutions:      solutions,
		Analyses:       analyses,
		Jobs:           jobs,
		WorkerPoolSize: 2,
	})
	if err != nil {
		t.Fatalf("job.New failed: %v", err)
	}
	builder, err := report.New(report.Config{Analyses: analyses, Solutions: solutions, Reports: reports})
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	svc, err := service.NewEvalService(service.Config{
		Assessments:  assessments,
		Solutions:    solutions,
		Analyses:     analyses,
		Orchestrator: orch,
		Ranking:      ranking.NewEngine(analyses, solutions, nil),
		Reports:      builder,
	})
	if err != nil {
		t.Fatalf("NewEvalService failed: %v", err)
	}
	return svc
}

func newRouter(t *testing.T) (*gin.Engine, *service.EvalService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newEvalService(t)
	ctrl := NewEvalController(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/assessments", ctrl.CreateAssessment)
	api.POST("/solutions", ctrl.CreateSolution)
	api.POST("/jobs", ctrl.CreateJob)
	api.GET("/jobs", ctrl.ListJobs)
	api.GET("/jobs/:id", ctrl.GetJob)
	api.GET("/jobs/:id/logs", ctrl.GetJobLogs)
	api.GET("/jobs/:id/logs/stream", ctrl.StreamJobLogs)
	api.GET("/solutions/:id/analysis", ctrl.GetAnalysis)
	api.POST("/reports/generate", ctrl.GenerateReports)
	api.GET("/tests/:id/report", ctrl.GetComparativeReport)
	api.GET("/tests/:id/candidates/:candidate_id/report", ctrl.GetIndividualReport)
	api.GET("/tests/:id/rankings", ctrl.GetRankings)
	return router, svc
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response failed: %v (body=%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func decodeData(t *testing.T, resp envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, out); err != nil {
		t.Fatalf("decode data failed: %v (data=%s)", err, string(resp.Data))
	}
}

func validAssessment(testID string) model.Assessment {
	return model.Assessment{
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

func validSolution(solutionID, testID, candidateID string) model.Solution {
	return model.Solution{
		SolutionID:  solutionID,
		TestID:      testID,
		CandidateID: candidateID,
		CodingAnswers: []model.CodingAnswer{
			{QuestionID: "q-1", Language: "python", Code: "def add(a, b):\n    return a + b\n"},
		},
	}
}

// runJob submits one solution-scoped job over HTTP and drains the orchestrator
// so the job is terminal before the caller asserts anything.
func runJob(t *testing.T, router *gin.Engine, svc *service.EvalService, testID, solutionID, candidateID string) string {
	t.Helper()
	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/assessments", validAssessment(testID))
	if rec.Code != http.StatusOK {
		t.Fatalf("create assessment failed: %d (%s)", rec.Code, rec.Body.String())
	}
	rec, _ = doRequest(t, router, http.MethodPost, "/api/v1/solutions", validSolution(solutionID, testID, candidateID))
	if rec.Code != http.StatusOK {
		t.Fatalf("create solution failed: %d (%s)", rec.Code, rec.Body.String())
	}

	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/jobs", JobRequest{Scope: "solution", TargetID: solutionID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create job failed: %d (%s)", rec.Code, rec.Body.String())
	}
	var queued JobResponse
	decodeData(t, resp, &queued)
	if queued.JobID == "" || queued.Status != string(model.JobQueued) {
		t.Fatalf("unexpected job response: %+v", queued)
	}

	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return queued.JobID
}

func TestJobEndpoints(t *testing.T) {
	router, svc := newRouter(t)
	jobID := runJob(t, router, svc, "t-1", "sol-1", "cand-1")

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job failed: %d", rec.Code)
	}
	var status JobStatusResponse
	decodeData(t, resp, &status)
	if status.Status != model.JobSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", status.Status)
	}
	if status.Summary.Total != 1 || status.Summary.Succeeded != 1 {
		t.Fatalf("unexpected summary: %+v", status.Summary)
	}

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/jobs/"+jobID+"/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get logs failed: %d", rec.Code)
	}
	var logs LogsResponse
	decodeData(t, resp, &logs)
	if len(logs.Entries) == 0 {
		t.Fatal("expected log entries")
	}
	if logs.NextSeq != logs.Entries[len(logs.Entries)-1].Seq {
		t.Fatalf("next_seq mismatch: %d", logs.NextSeq)
	}

	// The cursor skips entries already seen.
	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/jobs/"+jobID+"/logs?after_seq="+strconv.Itoa(logs.NextSeq), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get logs with cursor failed: %d", rec.Code)
	}
	var tail LogsResponse
	decodeData(t, resp, &tail)
	if len(tail.Entries) != 0 {
		t.Fatalf("expected no entries after cursor, got %d", len(tail.Entries))
	}

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list jobs failed: %d", rec.Code)
	}
	var jobs []model.Job
	decodeData(t, resp, &jobs)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
}

func TestCreateJobInvalidScope(t *testing.T) {
	router, _ := newRouter(t)

	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/jobs", JobRequest{Scope: "galaxy"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.InvalidParams) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func TestCreateAssessmentValidationError(t *testing.T) {
	router, _ := newRouter(t)

	broken := validAssessment("t-1")
	broken.CodingQuestions[0].Evaluation.TestCases = nil
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/assessments", broken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.TestCaseInvalid) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	router, _ := newRouter(t)

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/solutions/ghost/analysis", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.AnalysisNotFound) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func TestGenerateReportsExclusiveParams(t *testing.T) {
	router, _ := newRouter(t)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/reports/generate", GenerateReportsRequest{TestID: "t-1", All: true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	rec, _ = doRequest(t, router, http.MethodPost, "/api/v1/reports/generate", GenerateReportsRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestReportAndRankingEndpoints(t *testing.T) {
	router, svc := newRouter(t)
	runJob(t, router, svc, "t-1", "sol-1", "cand-1")

	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/reports/generate", GenerateReportsRequest{TestID: "t-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate reports failed: %d (%s)", rec.Code, rec.Body.String())
	}
	var generated GenerateReportsResponse
	decodeData(t, resp, &generated)
	if generated.Generated != 1 || len(generated.Reports) != 1 {
		t.Fatalf("unexpected generate response: %+v", generated)
	}

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/tests/t-1/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get comparative failed: %d", rec.Code)
	}
	var comparative model.Report
	decodeData(t, resp, &comparative)
	if comparative.Comparative == nil || comparative.Comparative.CandidateCount != 1 {
		t.Fatalf("unexpected comparative report: %+v", comparative)
	}

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/tests/t-1/candidates/cand-1/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get individual failed: %d", rec.Code)
	}
	var individual model.Report
	decodeData(t, resp, &individual)
	if individual.Individual == nil || individual.Individual.SolutionID != "sol-1" {
		t.Fatalf("unexpected individual report: %+v", individual)
	}

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/tests/t-1/rankings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get rankings failed: %d", rec.Code)
	}
	var rankings RankingsResponse
	decodeData(t, resp, &rankings)
	if len(rankings.Entries) != 1 || rankings.Entries[0].Rank != 1 {
		t.Fatalf("unexpected rankings: %+v", rankings)
	}

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/tests/t-none/rankings", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.NoAnalysesForTest) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func TestStreamJobLogs(t *testing.T) {
	router, svc := newRouter(t)
	jobID := runJob(t, router, svc, "t-1", "sol-1", "cand-1")

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/jobs/" + jobID + "/logs/stream"
	conn, httpResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	defer httpResp.Body.Close()

	var entries []model.LogEntry
	for {
		var entry model.LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("unexpected stream end: %v", err)
			}
			break
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		t.Fatal("expected streamed log entries")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Fatalf("entries out of order: %d then %d", entries[i-1].Seq, entries[i].Seq)
		}
	}
}

func TestStreamJobLogsUnknownJob(t *testing.T) {
	router, _ := newRouter(t)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/jobs/ghost/logs/stream"
	_, httpResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if httpResp == nil || httpResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", httpResp)
	}
	httpResp.Body.Close()
}
