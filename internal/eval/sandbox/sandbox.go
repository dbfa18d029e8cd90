// Package sandbox executes candidate code under isolation. The engine is
// resolved once at construction: Docker when the daemon answers a probe,
// otherwise a restricted local process runner. Callers never branch on the
// engine themselves.
package sandbox

import (
	"context"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// Wall limits below this floor are raised to it.
	minWallTimeMS int64 = 10_000

	defaultMemoryMB  int64 = 256
	defaultOutputKB  int64 = 1024
	defaultPIDsLimit int64 = 64
	defaultCPUs            = 1.0

	defaultProbeTimeout = 3 * time.Second
)

// Engine selection values for Config.Engine.
const (
	EngineAuto   = "auto"
	EngineDocker = "docker"
	EngineLocal  = "local"
)

// Task is one isolated execution: workspace files, an optional compile step
// and the run command. TaskID names the workspace and the container.
type Task struct {
	TaskID  string
	Image   string
	Files   map[string]string
	Compile []string
	Run     []string
	Stdin   string
	Limits  model.ResourceLimits
}

// RunResult captures raw execution data. TimedOut is set when the wall clock
// limit killed the task; CleanupError records a failed workspace removal,
// which is reported but never fatal.
type RunResult struct {
	Stdout       string
	Stderr       string
	ExitCode     int
	WallTimeMS   int64
	MemoryKB     int64
	OutputKB     int64
	TimedOut     bool
	OomKilled    bool
	CleanupError string
}

// Runner executes tasks under one isolation strategy.
type Runner interface {
	Name() string
	Execute(ctx context.Context, task Task) (RunResult, error)
}

// Config controls engine resolution and execution defaults. HelperPath
// points at the sandbox-init binary the local runner uses to apply rlimits
// before exec; empty disables the helper.
type Config struct {
	// Engine is "auto", "docker" or "local". Auto probes Docker first and
	// falls back to the local runner.
	Engine         string        `yaml:"engine"`
	WorkRoot       string        `yaml:"workRoot"`
	DockerBinary   string        `yaml:"dockerBinary"`
	HelperPath     string        `yaml:"helperPath"`
	SeccompProfile string        `yaml:"seccompProfile"`
	CPUs           float64       `yaml:"cpus"`
	ProbeTimeout   time.Duration `yaml:"probeTimeout"`

	DefaultLimits model.ResourceLimits `yaml:"defaultLimits"`
}

func (c *Config) applyDefaults() {
	if c.Engine == "" {
		c.Engine = EngineAuto
	}
	if c.WorkRoot == "" {
		c.WorkRoot = "/tmp/skillify-sandbox"
	}
	if c.DockerBinary == "" {
		c.DockerBinary = "docker"
	}
	if c.CPUs <= 0 {
		c.CPUs = defaultCPUs
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.DefaultLimits.WallTimeMS <= 0 {
		c.DefaultLimits.WallTimeMS = minWallTimeMS
	}
	if c.DefaultLimits.MemoryMB <= 0 {
		c.DefaultLimits.MemoryMB = defaultMemoryMB
	}
	if c.DefaultLimits.OutputKB <= 0 {
		c.DefaultLimits.OutputKB = defaultOutputKB
	}
	if c.DefaultLimits.PIDs <= 0 {
		c.DefaultLimits.PIDs = defaultPIDsLimit
	}
}

// New resolves the isolation strategy once and returns the runner for it.
// The decision is logged and never revisited for the lifetime of the runner.
func New(ctx context.Context, cfg Config) (Runner, error) {
	cfg.applyDefaults()

	switch cfg.Engine {
	case EngineDocker:
		if err := probeDocker(ctx, cfg); err != nil {
			return nil, appErr.Wrapf(err, appErr.SandboxUnavailable, "docker engine requested but unavailable")
		}
		logger.Info(ctx, "sandbox engine resolved", zap.String("engine", EngineDocker))
		return newDockerRunner(cfg), nil
	case EngineLocal:
		r, err := newLocalRunner(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "sandbox engine resolved", zap.String("engine", EngineLocal))
		return r, nil
	case EngineAuto:
		probeErr := probeDocker(ctx, cfg)
		if probeErr == nil {
			logger.Info(ctx, "sandbox engine resolved", zap.String("engine", EngineDocker))
			return newDockerRunner(cfg), nil
		}
		logger.Warn(ctx, "docker probe failed, falling back to local runner", zap.Error(probeErr))
		r, err := newLocalRunner(cfg)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.SandboxUnavailable, "no isolation strategy available")
		}
		logger.Info(ctx, "sandbox engine resolved", zap.String("engine", EngineLocal))
		return r, nil
	default:
		return nil, appErr.Newf(appErr.InvalidParams, "unknown sandbox engine %q", cfg.Engine)
	}
}

// mergeLimits fills missing task limits from the defaults and enforces the
// wall clock floor.
func mergeLimits(task, def model.ResourceLimits) model.ResourceLimits {
	out := task
	if out.WallTimeMS <= 0 {
		out.WallTimeMS = def.WallTimeMS
	}
	if out.WallTimeMS < minWallTimeMS {
		out.WallTimeMS = minWallTimeMS
	}
	if out.MemoryMB <= 0 {
		out.MemoryMB = def.MemoryMB
	}
	if out.OutputKB <= 0 {
		out.OutputKB = def.OutputKB
	}
	if out.PIDs <= 0 {
		out.PIDs = def.PIDs
	}
	return out
}

func validateTask(task Task) error {
	if task.TaskID == "" {
		return appErr.ValidationError("taskId", "required")
	}
	if len(task.Run) == 0 {
		return appErr.ValidationError("run", "required")
	}
	if len(task.Files) == 0 {
		return appErr.ValidationError("files", "required")
	}
	return nil
}
