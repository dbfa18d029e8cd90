package controller

import (
	"strconv"
	"strings"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// EvalController handles the evaluation HTTP endpoints.
type EvalController struct {
	evalService *service.EvalService
}

// NewEvalController creates a new EvalController.
func NewEvalController(evalService *service.EvalService) *EvalController {
	return &EvalController{evalService: evalService}
}

// CreateAssessment stores an assessment definition.
func (h *EvalController) CreateAssessment(c *gin.Context) {
	var assessment model.Assessment
	if err := c.ShouldBindJSON(&assessment); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if err := h.evalService.UpsertAssessment(c.Request.Context(), &assessment); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, AssessmentResponse{
		TestID:          assessment.TestID,
		CodingQuestions: len(assessment.CodingQuestions),
		MCQQuestions:    len(assessment.MCQQuestions),
	})
}

// CreateSolution stores a candidate solution.
func (h *EvalController) CreateSolution(c *gin.Context) {
	var solution model.Solution
	if err := c.ShouldBindJSON(&solution); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if err := h.evalService.UpsertSolution(c.Request.Context(), &solution); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SolutionResponse{
		SolutionID:  solution.SolutionID,
		TestID:      solution.TestID,
		CandidateID: solution.CandidateID,
		SubmittedAt: solution.SubmittedAt,
	})
}

// CreateJob queues an analysis job and returns immediately.
func (h *EvalController) CreateJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	scope, ok := model.ParseJobScope(req.Scope)
	if !ok {
		response.BadRequest(c, "Invalid job scope")
		return
	}

	job, err := h.evalService.SubmitJob(c.Request.Context(), scope, strings.TrimSpace(req.TargetID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, JobResponse{
		JobID:     job.JobID,
		Scope:     string(job.Scope),
		TargetID:  job.TargetID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
	})
}

// ListJobs returns recent jobs, newest first.
func (h *EvalController) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	jobs, err := h.evalService.ListJobs(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, jobs)
}

// GetJob returns one job with its item summary.
func (h *EvalController) GetJob(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.BadRequest(c, "Invalid job id")
		return
	}
	job, err := h.evalService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, JobStatusResponse{
		Job:     *job,
		Summary: job.Summarize(),
	})
}

// GetJobLogs returns log entries after the given sequence cursor.
func (h *EvalController) GetJobLogs(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.BadRequest(c, "Invalid job id")
		return
	}
	afterSeq := 0
	if raw := c.Query("after_seq"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.BadRequest(c, "Invalid after_seq")
			return
		}
		afterSeq = parsed
	}

	entries, err := h.evalService.GetJobLogs(c.Request.Context(), jobID, afterSeq)
	if err != nil {
		response.Error(c, err)
		return
	}
	nextSeq := afterSeq
	if len(entries) > 0 {
		nextSeq = entries[len(entries)-1].Seq
	}
	response.Success(c, LogsResponse{
		JobID:   jobID,
		Entries: entries,
		NextSeq: nextSeq,
	})
}

// GetAnalysis returns the analysis record for one solution.
func (h *EvalController) GetAnalysis(c *gin.Context) {
	solutionID := c.Param("id")
	if solutionID == "" {
		response.BadRequest(c, "Invalid solution id")
		return
	}
	record, err := h.evalService.GetAnalysis(c.Request.Context(), solutionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, record)
}

// GenerateReports rebuilds reports for one test or for every test with
// analysis records.
func (h *EvalController) GenerateReports(c *gin.Context) {
	var req GenerateReportsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	req.TestID = strings.TrimSpace(req.TestID)
	if req.All == (req.TestID != "") {
		response.BadRequest(c, "Provide either test_id or all, not both")
		return
	}

	if req.All {
		reports, err := h.evalService.GenerateAllReports(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, GenerateReportsResponse{Generated: len(reports), Reports: reports})
		return
	}

	report, err := h.evalService.GenerateReport(c.Request.Context(), req.TestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, GenerateReportsResponse{Generated: 1, Reports: []model.Report{*report}})
}

// GetComparativeReport returns the stored comparative report for a test.
func (h *EvalController) GetComparativeReport(c *gin.Context) {
	testID := c.Param("id")
	if testID == "" {
		response.BadRequest(c, "Invalid test id")
		return
	}
	report, err := h.evalService.GetComparativeReport(c.Request.Context(), testID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// GetIndividualReport returns the stored individual report for one candidate.
func (h *EvalController) GetIndividualReport(c *gin.Context) {
	testID := c.Param("id")
	candidateID := c.Param("candidate_id")
	if testID == "" || candidateID == "" {
		response.BadRequest(c, "Invalid test or candidate id")
		return
	}
	report, err := h.evalService.GetIndividualReport(c.Request.Context(), testID, candidateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// GetRankings returns the ranking table for a test.
func (h *EvalController) GetRankings(c *gin.Context) {
	testID := c.Param("id")
	if testID == "" {
		response.BadRequest(c, "Invalid test id")
		return
	}
	entries, err := h.evalService.Rankings(c.Request.Context(), testID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, RankingsResponse{TestID: testID, Entries: entries})
}

// AssessmentResponse acknowledges a stored assessment.
type AssessmentResponse struct {
	TestID          string `json:"test_id"`
	CodingQuestions int    `json:"coding_questions"`
	MCQQuestions    int    `json:"mcq_questions"`
}

// SolutionResponse acknowledges a stored solution.
type SolutionResponse struct {
	SolutionID  string    `json:"solution_id"`
	TestID      string    `json:"test_id"`
	CandidateID string    `json:"candidate_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobRequest selects what a new job analyzes.
type JobRequest struct {
	Scope    string `json:"scope" binding:"required"`
	TargetID string `json:"target_id"`
}

// JobResponse acknowledges an accepted job.
type JobResponse struct {
	JobID     string    `json:"job_id"`
	Scope     string    `json:"scope"`
	TargetID  string    `json:"target_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatusResponse pairs a job document with its item summary.
type JobStatusResponse struct {
	model.Job
	Summary model.JobSummary `json:"summary"`
}

// LogsResponse returns job log entries after a sequence cursor.
type LogsResponse struct {
	JobID   string           `json:"job_id"`
	Entries []model.LogEntry `json:"entries"`
	NextSeq int              `json:"next_seq"`
}

// GenerateReportsRequest selects which tests to rebuild reports for.
type GenerateReportsRequest struct {
	TestID string `json:"test_id"`
	All    bool   `json:"all"`
}

// GenerateReportsResponse lists the comparative reports produced.
type GenerateReportsResponse struct {
	Generated int            `json:"generated"`
	Reports   []model.Report `json:"reports"`
}

// RankingsResponse carries the ranking table for one test.
type RankingsResponse struct {
	TestID  string               `json:"test_id"`
	Entries []model.RankingEntry `json:"entries"`
}
