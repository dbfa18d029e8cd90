package analyzer

import (
	"context"
	"fmt"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/harness"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/sandbox"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"go.uber.org/zap"
)

// Correctness is the only dynamic analyzer: it renders each test case into a
// runnable unit and executes it in the sandbox. The score is the weighted
// fraction of passed cases.
//
// Failure handling is graded. A missing entry point zeroes the score with
// every case marked, a compile failure marks all cases, a timeout marks only
// its own case, and only sandbox system errors fail the analysis itself.
type Correctness struct {
	registry *harness.Registry
	runner   sandbox.Runner
	limits   model.ResourceLimits
}

// NewCorrectness builds the correctness analyzer over a harness registry and
// a resolved sandbox runner. limits apply per test case; zero fields fall
// back to the sandbox defaults.
func NewCorrectness(registry *harness.Registry, runner sandbox.Runner, limits model.ResourceLimits) *Correctness {
	return &Correctness{registry: registry, runner: runner, limits: limits}
}

func (c *Correctness) Analyze(ctx context.Context, in Input) (model.ExecutionResult, float64, error) {
	result := model.ExecutionResult{
		QuestionID: in.QuestionID,
		Isolated:   c.runner.Name() == sandbox.EngineDocker,
	}

	h, err := c.registry.Get(in.Language)
	if err != nil {
		return result, 0, err
	}

	entry, err := h.Prepare(in.Code, harness.Hint{
		FunctionName: in.Criteria.FunctionName,
		QuestionText: in.QuestionText,
	})
	if err != nil {
		if appErr.Is(err, appErr.EntryPointNotFound) {
			logger.Warn(ctx, "entry point not found, scoring zero",
				zap.String("solution_id", in.SolutionID),
				zap.String("question_id", in.QuestionID),
				zap.String("language", string(in.Language)))
			result.TestCaseResults = failAllCases(in.Criteria.TestCases, err)
			return result, 0, nil
		}
		return result, 0, err
	}

	for i, tc := range in.Criteria.TestCases {
		tcr := model.TestCaseResult{
			TestCaseID:     tc.ID,
			ExpectedOutput: harness.Normalize(tc.ExpectedOutput),
		}

		unit, err := h.BuildInvocation(entry, in.Code, tc.Input)
		if err != nil {
			tcr.ErrorKind = appErr.GetCode(err).Kind()
			tcr.ErrorMessage = err.Error()
			result.TestCaseResults = append(result.TestCaseResults, tcr)
			continue
		}

		res, err := c.runner.Execute(ctx, sandbox.Task{
			TaskID:  fmt.Sprintf("%s-%s-%d", in.SolutionID, in.QuestionID, i),
			Image:   unit.Image,
			Files:   unit.Files,
			Compile: unit.CompileCmd,
			Run:     unit.RunCmd,
			Limits:  c.limits,
		})
		if err != nil {
			if appErr.Is(err, appErr.CompilationFailed) {
				// The same source cannot compile for any other case.
				result.CompileOutput = res.Stderr
				result.TestCaseResults = append(result.TestCaseResults,
					failRemainingCases(in.Criteria.TestCases[i:], err)...)
				break
			}
			return result, 0, err
		}

		tcr.ExitCode = res.ExitCode
		tcr.MemoryUsageKB = float64(res.MemoryKB)

		if res.TimedOut {
			tcr.ErrorKind = appErr.ExecutionTimeout.Kind()
			tcr.ErrorMessage = "execution timed out"
			tcr.ExecutionTimeMS = float64(res.WallTimeMS)
			result.TestCaseResults = append(result.TestCaseResults, tcr)
			continue
		}

		out, perr := h.ParseOutput(res.Stdout)
		if perr != nil {
			tcr.ErrorMessage = perr.Error()
			if res.OomKilled {
				tcr.ErrorMessage = "memory limit exceeded"
			}
			result.TestCaseResults = append(result.TestCaseResults, tcr)
			continue
		}

		tcr.ActualOutput = out.Value
		tcr.ExecutionTimeMS = out.TimeMS
		if tcr.ExecutionTimeMS == 0 {
			tcr.ExecutionTimeMS = float64(res.WallTimeMS)
		}
		tcr.Passed = out.Value == tcr.ExpectedOutput
		result.TestCaseResults = append(result.TestCaseResults, tcr)
	}

	passed, total := model.PassedWeight(in.Criteria.TestCases, result.TestCaseResults)
	if total == 0 {
		return result, 0, nil
	}
	return result, passed / total, nil
}

func failAllCases(cases []model.TestCase, err error) []model.TestCaseResult {
	return failRemainingCases(cases, err)
}

func failRemainingCases(cases []model.TestCase, err error) []model.TestCaseResult {
	kind := appErr.GetCode(err).Kind()
	out := make([]model.TestCaseResult, 0, len(cases))
	for _, tc := range cases {
		out = append(out, model.TestCaseResult{
			TestCaseID:     tc.ID,
			ExpectedOutput: harness.Normalize(tc.ExpectedOutput),
			ErrorKind:      kind,
			ErrorMessage:   err.Error(),
		})
	}
	return out
}
