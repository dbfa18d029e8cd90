package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"go.uber.org/zap"
)

const containerWorkDir = "/work"

// Compile steps get a generous fixed wall limit independent of the run
// limit, matching how long javac needs on a cold image.
const compileWallTimeMS int64 = 60_000

type dockerRunner struct {
	cfg Config
}

func newDockerRunner(cfg Config) *dockerRunner {
	return &dockerRunner{cfg: cfg}
}

func (d *dockerRunner) Name() string { return EngineDocker }

// probeDocker asks the daemon for its version. A failing probe means the
// engine is unusable, not that a particular task failed.
func probeDocker(ctx context.Context, cfg Config) error {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, cfg.DockerBinary, "version", "--format", "{{.Server.Version}}").CombinedOutput()
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable,
			"docker probe failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *dockerRunner) Execute(ctx context.Context, task Task) (res RunResult, err error) {
	if err := validateTask(task); err != nil {
		return RunResult{}, err
	}
	if task.Image == "" {
		return RunResult{}, appErr.ValidationError("image", "required")
	}
	limits := mergeLimits(task.Limits, d.cfg.DefaultLimits)

	workDir, err := prepareWorkspace(d.cfg.WorkRoot, task.TaskID, task.Files)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		if msg := removeWorkspace(ctx, workDir); msg != "" {
			res.CleanupError = msg
		}
	}()

	if len(task.Compile) > 0 {
		compileLimits := limits
		compileLimits.WallTimeMS = compileWallTimeMS
		cres := d.runContainer(ctx, task.TaskID+"-build", task.Image, workDir, task.Compile, "", compileLimits)
		if cres.err != nil {
			return res, cres.err
		}
		if cres.timedOut || cres.exitCode != 0 {
			res.Stderr = cres.stderr
			res.ExitCode = cres.exitCode
			return res, appErr.Newf(appErr.CompilationFailed, "compile failed: %s", firstLine(cres.stderr))
		}
	}

	rres := d.runContainer(ctx, task.TaskID, task.Image, workDir, task.Run, task.Stdin, limits)
	if rres.err != nil {
		return res, rres.err
	}

	res.Stdout = rres.stdout
	res.Stderr = rres.stderr
	res.ExitCode = rres.exitCode
	res.WallTimeMS = rres.wallTimeMS
	res.OutputKB = rres.outputKB
	res.TimedOut = rres.timedOut
	// 137 is SIGKILL; with --memory set it almost always means the kernel
	// OOM killer, since wall timeouts are reported separately.
	res.OomKilled = !rres.timedOut && rres.exitCode == 137
	return res, nil
}

type containerResult struct {
	stdout     string
	stderr     string
	exitCode   int
	wallTimeMS int64
	outputKB   int64
	timedOut   bool
	err        error
}

func (d *dockerRunner) runContainer(ctx context.Context, name, image, workDir string, cmd []string, stdin string, limits model.ResourceLimits) containerResult {
	containerName := "eval-" + sanitizeName(name)
	args := d.containerArgs(containerName, image, workDir, cmd, stdin != "", limits)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(limits.WallTimeMS)*time.Millisecond)
	defer cancel()

	stdout := newLimitedBuffer(limits.OutputKB * 1024)
	stderr := newLimitedBuffer(limits.OutputKB * 1024)

	c := exec.CommandContext(runCtx, d.cfg.DockerBinary, args...)
	c.Stdout = stdout
	c.Stderr = stderr
	if stdin != "" {
		c.Stdin = strings.NewReader(stdin)
	}

	start := time.Now()
	runErr := c.Run()
	wall := time.Since(start).Milliseconds()

	timedOut := runCtx.Err() == context.DeadlineExceeded
	if timedOut || ctx.Err() != nil {
		// Killing the CLI does not kill the container.
		d.forceRemove(containerName)
	}

	exitCode := 0
	if c.ProcessState != nil {
		exitCode = c.ProcessState.ExitCode()
	}
	if runErr != nil && exitCode == 0 {
		exitCode = -1
	}
	if timedOut {
		exitCode = -1
	}

	if runErr != nil && !timedOut && c.ProcessState == nil {
		// The CLI itself never started.
		return containerResult{err: appErr.Wrapf(runErr, appErr.SandboxSystemError, "start container %s", containerName)}
	}

	return containerResult{
		stdout:     stdout.String(),
		stderr:     stderr.String(),
		exitCode:   exitCode,
		wallTimeMS: wall,
		outputKB:   stdout.TotalKB(),
		timedOut:   timedOut,
	}
}

func (d *dockerRunner) containerArgs(name, image, workDir string, cmd []string, withStdin bool, limits model.ResourceLimits) []string {
	args := []string{
		"run", "--rm",
		"--name", name,
		"--network", "none",
		"--memory", fmt.Sprintf("%dm", limits.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", limits.MemoryMB),
		"--pids-limit", strconv.FormatInt(limits.PIDs, 10),
		"--cpus", strconv.FormatFloat(d.cfg.CPUs, 'f', -1, 64),
		"-v", workDir + ":" + containerWorkDir,
		"-w", containerWorkDir,
	}
	if withStdin {
		args = append(args, "-i")
	}
	args = append(args, image)
	return append(args, cmd...)
}

func (d *dockerRunner) forceRemove(containerName string) {
	rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(rmCtx, d.cfg.DockerBinary, "rm", "-f", containerName).CombinedOutput(); err != nil {
		logger.Warn(rmCtx, "force remove container failed",
			zap.String("container", containerName),
			zap.String("output", strings.TrimSpace(string(out))),
			zap.Error(err))
	}
}

// sanitizeName keeps only characters Docker accepts in container names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "task"
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
