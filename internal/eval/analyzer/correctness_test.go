package analyzer

import (
	"context"
	"strings"
	"testing"

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

// fakeRunner dispatches on the task id suffix so each test case can get its
// own canned result.
type fakeRunner struct {
	name string
	exec func(task sandbox.Task) (sandbox.RunResult, error)
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Execute(_ context.Context, task sandbox.Task) (sandbox.RunResult, error) {
	return f.exec(task)
}

func fibInput(cases ...model.TestCase) Input {
	return Input{
		SolutionID:   "sol-1",
		QuestionID:   "q-1",
		Language:     model.LangPython,
		Code:         fibSource,
		QuestionText: "Implement fibonacci(n).",
		Criteria:     model.EvaluationCriteria{TestCases: cases},
	}
}

func newCorrectness(t *testing.T, runner sandbox.Runner) *Correctness {
	t.Helper()
	return NewCorrectness(harness.DefaultRegistry(nil), runner, model.ResourceLimits{})
}

func TestCorrectnessAllPass(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineDocker,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			if strings.HasSuffix(task.TaskID, "-0") {
				return sandbox.RunResult{Stdout: "RESULT: 55\nTIME_MS: 1.250\n"}, nil
			}
			return sandbox.RunResult{Stdout: "RESULT: 89\nTIME_MS: 0.800\n"}, nil
		},
	}

	c := newCorrectness(t, runner)
	res, score, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 0.6},
		model.TestCase{ID: "t2", Input: "11", ExpectedOutput: "89", Weight: 0.4},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", score)
	}
	if !res.Isolated {
		t.Fatal("expected isolated run under the docker engine")
	}
	if len(res.TestCaseResults) != 2 {
		t.Fatalf("expected 2 case results, got %d", len(res.TestCaseResults))
	}
	first := res.TestCaseResults[0]
	if !first.Passed || first.ActualOutput != "55" {
		t.Fatalf("expected first case to pass with 55, got %+v", first)
	}
	if first.ExecutionTimeMS != 1.25 {
		t.Fatalf("expected reported time 1.25, got %v", first.ExecutionTimeMS)
	}
}

func TestCorrectnessWeightedPartial(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineLocal,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			switch {
			case strings.HasSuffix(task.TaskID, "-0"):
				return sandbox.RunResult{Stdout: "RESULT: 0\nTIME_MS: 0.4\n"}, nil
			case strings.HasSuffix(task.TaskID, "-1"):
				return sandbox.RunResult{Stdout: "RESULT: 1\nTIME_MS: 0.4\n"}, nil
			default:
				return sandbox.RunResult{Stdout: "RESULT: 89\nTIME_MS: 1.0\n"}, nil
			}
		},
	}

	c := newCorrectness(t, runner)
	res, score, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "0", ExpectedOutput: "0", Weight: 0.2},
		model.TestCase{ID: "t2", Input: "1", ExpectedOutput: "1", Weight: 0.2},
		model.TestCase{ID: "t3", Input: "10", ExpectedOutput: "55.0", Weight: 0.6},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.4 {
		t.Fatalf("expected weighted score 0.4, got %v", score)
	}
	if res.Isolated {
		t.Fatal("expected non-isolated run under the local engine")
	}
	last := res.TestCaseResults[2]
	if last.ExpectedOutput != "55" {
		t.Fatalf("expected normalized expectation 55, got %q", last.ExpectedOutput)
	}
	if last.Passed || last.ActualOutput != "89" {
		t.Fatalf("expected the heavy case to fail with 89, got %+v", last)
	}
}

func TestCorrectnessEntryPointMissingScoresZero(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineDocker,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			t.Fatal("sandbox must not run without an entry point")
			return sandbox.RunResult{}, nil
		},
	}

	c := newCorrectness(t, runner)
	in := fibInput(
		model.TestCase{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 1.0},
	)
	in.Code = "x = 1\n"

	res, score, err := c.Analyze(context.Background(), in)
	if err != nil {
		t.Fatalf("missing entry point must not fail analysis, got %v", err)
	}
	if score != 0 {
		t.Fatalf("expected score 0, got %v", score)
	}
	if len(res.TestCaseResults) != 1 {
		t.Fatalf("expected 1 case result, got %d", len(res.TestCaseResults))
	}
	if kind := res.TestCaseResults[0].ErrorKind; kind != "EntryPointNotFound" {
		t.Fatalf("expected EntryPointNotFound kind, got %q", kind)
	}
}

func TestCorrectnessTimeoutMarksOnlyItsCase(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineDocker,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			if strings.HasSuffix(task.TaskID, "-0") {
				return sandbox.RunResult{TimedOut: true, ExitCode: -1, WallTimeMS: 10000}, nil
			}
			return sandbox.RunResult{Stdout: "RESULT: 89\nTIME_MS: 1.0\n"}, nil
		},
	}

	c := newCorrectness(t, runner)
	res, score, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "40", ExpectedOutput: "102334155", Weight: 0.5},
		model.TestCase{ID: "t2", Input: "11", ExpectedOutput: "89", Weight: 0.5},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.5 {
		t.Fatalf("expected score 0.5, got %v", score)
	}
	first := res.TestCaseResults[0]
	if first.ErrorKind != "ExecutionTimeout" {
		t.Fatalf("expected ExecutionTimeout kind, got %q", first.ErrorKind)
	}
	if first.ExecutionTimeMS != 10000 {
		t.Fatalf("expected wall time on timeout, got %v", first.ExecutionTimeMS)
	}
	if !res.TestCaseResults[1].Passed {
		t.Fatal("expected the second case to keep running after a timeout")
	}
}

func TestCorrectnessCompileFailureMarksAllCases(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineDocker,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			return sandbox.RunResult{Stderr: "main.py: boom", ExitCode: 1},
				appErr.Newf(appErr.CompilationFailed, "compile failed: boom")
		},
	}

	c := newCorrectness(t, runner)
	res, score, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 0.5},
		model.TestCase{ID: "t2", Input: "11", ExpectedOutput: "89", Weight: 0.5},
	))
	if err != nil {
		t.Fatalf("compile failure must not fail analysis, got %v", err)
	}
	if score != 0 {
		t.Fatalf("expected score 0, got %v", score)
	}
	if res.CompileOutput != "main.py: boom" {
		t.Fatalf("expected compiler output captured, got %q", res.CompileOutput)
	}
	if len(res.TestCaseResults) != 2 {
		t.Fatalf("expected both cases marked, got %d", len(res.TestCaseResults))
	}
	for _, tcr := range res.TestCaseResults {
		if tcr.ErrorKind != "CompilationFailed" {
			t.Fatalf("expected CompilationFailed kind on %s, got %q", tcr.TestCaseID, tcr.ErrorKind)
		}
	}
}

func TestCorrectnessRuntimeErrorHasNoKind(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineDocker,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			return sandbox.RunResult{Stdout: "ERROR: ZeroDivisionError: division by zero\n", ExitCode: 1}, nil
		},
	}

	c := newCorrectness(t, runner)
	res, score, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 1.0},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected score 0, got %v", score)
	}
	tcr := res.TestCaseResults[0]
	if tcr.ErrorKind != "" {
		t.Fatalf("runtime failures are not taxonomy kinds, got %q", tcr.ErrorKind)
	}
	if !strings.Contains(tcr.ErrorMessage, "ZeroDivisionError") {
		t.Fatalf("expected runtime message, got %q", tcr.ErrorMessage)
	}
}

func TestCorrectnessSandboxErrorFailsAnalysis(t *testing.T) {
	runner := &fakeRunner{
		name: sandbox.EngineDocker,
		exec: func(task sandbox.Task) (sandbox.RunResult, error) {
			return sandbox.RunResult{}, appErr.Newf(appErr.SandboxSystemError, "docker gone")
		},
	}

	c := newCorrectness(t, runner)
	_, _, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 1.0},
	))
	if err == nil {
		t.Fatal("expected analysis to fail on a sandbox system error")
	}
	if appErr.GetCode(err) != appErr.SandboxSystemError {
		t.Fatalf("expected SandboxSystemError, got %d", appErr.GetCode(err))
	}
}

func TestCorrectnessUnsupportedLanguage(t *testing.T) {
	c := NewCorrectness(harness.NewRegistry(), &fakeRunner{name: sandbox.EngineDocker}, model.ResourceLimits{})
	_, _, err := c.Analyze(context.Background(), fibInput(
		model.TestCase{ID: "t1", Input: "10", ExpectedOutput: "55", Weight: 1.0},
	))
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
	if appErr.GetCode(err) != appErr.LanguageNotSupported {
		t.Fatalf("expected LanguageNotSupported, got %d", appErr.GetCode(err))
	}
}
