//go:build !linux

package sandbox

import (
	"context"

	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

type localRunner struct{}

func newLocalRunner(cfg Config) (*localRunner, error) {
	return nil, appErr.New(appErr.SandboxUnavailable).WithMessage("local runner is only supported on linux")
}

func (l *localRunner) Name() string { return EngineLocal }

func (l *localRunner) Execute(ctx context.Context, task Task) (RunResult, error) {
	return RunResult{}, appErr.New(appErr.SandboxUnavailable).WithMessage("local runner is only supported on linux")
}
