package pipeline

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/analyzer"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/harness"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/sandbox"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

const fibSource = `def fibonacci(n):
    if n <= 1:
        return n
    a, b = 0, 1
    for _ in range(n - 1):
        a, b = b, a + b
    return b
`

type fakeRunner struct {
	name string
	exec func(task sandbox.Task) (sandbox.RunResult, error)
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Execute(_ context.Context, task sandbox.Task) (sandbox.RunResult, error) {
	return f.exec(task)
}

func passingExec(task sandbox.Task) (sandbox.RunResult, error) {
	if strings.HasSuffix(task.TaskID, "-0") {
		return sandbox.RunResult{Stdout: "RESULT: 55\nTIME_MS: 1.0\n"}, nil
	}
	return sandbox.RunResult{Stdout: "RESULT: 89\nTIME_MS: 1.0\n"}, nil
}

func newTestPipeline(exec func(task sandbox.Task) (sandbox.RunResult, error)) *Pipeline {
	runner := &fakeRunner{name: sandbox.EngineDocker, exec: exec}
	return New(analyzer.NewCorrectness(harness.DefaultRegistry(nil), runner, model.ResourceLimits{}))
}

func fibAssessment() model.Assessment {
	return model.Assessment{
		TestID: "test-1",
		CodingQuestions: []model.CodingQuestion{{
			QuestionID: "q-1",
			Text:       "Implement fibonacci(n).",
			Language:   "python",
			Evaluation: model.EvaluationCriteria{
				TestCases: []model.TestCase{
					{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 0.6},
					{ID: "t2", Input: "11", ExpectedOutput: "89", Weight: 0.4},
				},
				TimeComplexity:  "O(n)",
				SpaceComplexity: "O(1)",
			},
		}},
	}
}

func fibSolution() model.Solution {
	return model.Solution{
		SolutionID:  "sol-1",
		TestID:      "test-1",
		CandidateID: "cand-1",
		CodingAnswers: []model.CodingAnswer{{
			QuestionID: "q-1",
			Language:   "python",
			Code:       fibSource,
		}},
		SubmittedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRunMergesDimensions(t *testing.T) {
	p := newTestPipeline(passingExec)
	record, err := p.Run(context.Background(), fibSolution(), fibAssessment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.SchemaVersion != model.AnalysisSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", model.AnalysisSchemaVersion, record.SchemaVersion)
	}
	if record.AnalysisID == "" || record.AnalyzedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", record)
	}
	if record.SolutionID != "sol-1" || record.TestID != "test-1" || record.CandidateID != "cand-1" {
		t.Fatalf("record identity mismatch: %+v", record)
	}
	if len(record.Questions) != 1 {
		t.Fatalf("expected 1 question analysis, got %d", len(record.Questions))
	}
	qa := record.Questions[0]
	if qa.Execution == nil || len(qa.Execution.TestCaseResults) != 2 {
		t.Fatalf("expected execution detail, got %+v", qa)
	}
	if qa.Quality == nil || qa.Style == nil || qa.Performance == nil || qa.Naming == nil {
		t.Fatalf("expected static results attached, got %+v", qa)
	}

	for name, dim := range map[string]model.Dimension{
		"correctness": record.Correctness,
		"quality":     record.Quality,
		"style":       record.Style,
		"performance": record.Performance,
		"naming":      record.Naming,
	} {
		if dim.Score == nil {
			t.Fatalf("expected %s to score, got null (%s)", name, dim.Reason)
		}
	}
	if *record.Correctness.Score != 1.0 {
		t.Fatalf("expected correctness 1.0, got %v", *record.Correctness.Score)
	}

	want := (0.40**record.Correctness.Score +
		0.15**record.Quality.Score +
		0.10**record.Style.Score +
		0.15**record.Performance.Score +
		0.10**record.Naming.Score) / 0.90
	if math.Abs(record.Composite-want) > 1e-9 {
		t.Fatalf("expected composite %v, got %v", want, record.Composite)
	}
	if record.Composite < 0 || record.Composite > 1 {
		t.Fatalf("composite out of range: %v", record.Composite)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	p := newTestPipeline(passingExec)
	first, err := p.Run(context.Background(), fibSolution(), fibAssessment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Run(context.Background(), fibSolution(), fibAssessment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Composite != second.Composite {
		t.Fatalf("composite not reproducible: %v vs %v", first.Composite, second.Composite)
	}
	if *first.Correctness.Score != *second.Correctness.Score ||
		*first.Quality.Score != *second.Quality.Score ||
		*first.Style.Score != *second.Style.Score ||
		*first.Performance.Score != *second.Performance.Score ||
		*first.Naming.Score != *second.Naming.Score {
		t.Fatal("dimension scores not reproducible")
	}
}

func TestRunNullCorrectnessRenormalizes(t *testing.T) {
	p := newTestPipeline(func(task sandbox.Task) (sandbox.RunResult, error) {
		return sandbox.RunResult{}, appErr.Newf(appErr.SandboxSystemError, "docker gone")
	})
	record, err := p.Run(context.Background(), fibSolution(), fibAssessment())
	if err != nil {
		t.Fatalf("analyzer failure must not fail the run: %v", err)
	}

	if record.Correctness.Score != nil {
		t.Fatalf("expected null correctness, got %v", *record.Correctness.Score)
	}
	if record.Correctness.Reason == "" {
		t.Fatal("expected a failure reason")
	}
	if record.Quality.Score == nil || record.Style.Score == nil ||
		record.Performance.Score == nil || record.Naming.Score == nil {
		t.Fatal("static dimensions must survive a correctness failure")
	}

	want := (0.15**record.Quality.Score +
		0.10**record.Style.Score +
		0.15**record.Performance.Score +
		0.10**record.Naming.Score) / 0.50
	if math.Abs(record.Composite-want) > 1e-9 {
		t.Fatalf("expected renormalized composite %v, got %v", want, record.Composite)
	}
}

func TestRunMCQOnly(t *testing.T) {
	assessment := model.Assessment{
		TestID: "test-1",
		MCQQuestions: []model.MCQQuestion{
			{QuestionID: "m1", CorrectChoices: []string{"a"}},
		},
	}
	sol := model.Solution{
		SolutionID:  "sol-2",
		TestID:      "test-1",
		CandidateID: "cand-2",
		MCQAnswers:  []model.MCQAnswer{{QuestionID: "m1", Selected: []string{"a"}}},
	}

	p := newTestPipeline(passingExec)
	record, err := p.Run(context.Background(), sol, assessment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Correctness.Score != nil || record.Quality.Score != nil {
		t.Fatal("expected null dimensions without coding answers")
	}
	if record.Composite != 0 {
		t.Fatalf("expected composite 0, got %v", record.Composite)
	}
	if record.Knowledge == nil || record.Knowledge.Score != 1.0 || record.Knowledge.CorrectCount != 1 {
		t.Fatalf("expected full knowledge score, got %+v", record.Knowledge)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	sol := fibSolution()
	sol.CodingAnswers[0].Language = "cobol"

	p := newTestPipeline(passingExec)
	record, err := p.Run(context.Background(), sol, fibAssessment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Correctness.Score != nil {
		t.Fatal("expected null correctness for unsupported language")
	}
	if !strings.Contains(record.Correctness.Reason, "unsupported language") {
		t.Fatalf("unexpected reason %q", record.Correctness.Reason)
	}
	if record.Quality.Score != nil || record.Naming.Score != nil {
		t.Fatal("statics must not run against an unknown language")
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(passingExec)
	if _, err := p.Run(ctx, fibSolution(), fibAssessment()); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestCompositeAllNull(t *testing.T) {
	record := model.AnalysisRecord{
		Correctness: model.NullDimension("a"),
		Quality:     model.NullDimension("b"),
		Style:       model.NullDimension("c"),
		Performance: model.NullDimension("d"),
		Naming:      model.NullDimension("e"),
	}
	if got := Composite(record); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
