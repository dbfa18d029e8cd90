//go:build linux

package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"go.uber.org/zap"
)

// initRequest is the contract with the sandbox-init helper: it applies the
// limits to itself, redirects stdin when asked, then execs the command.
type initRequest struct {
	WorkDir        string
	Cmd            []string
	Env            []string
	StdinPath      string
	SeccompProfile string
	Limits         model.ResourceLimits
}

// localRunner executes tasks as restricted host processes. It is the
// fallback when Docker is unavailable: weaker isolation, same contract.
// When the sandbox-init helper is present it applies rlimits and an optional
// seccomp filter before exec; otherwise only the wall clock is enforced.
type localRunner struct {
	cfg    Config
	helper string
}

func newLocalRunner(cfg Config) (*localRunner, error) {
	r := &localRunner{cfg: cfg}
	if cfg.HelperPath != "" {
		path, err := exec.LookPath(cfg.HelperPath)
		if err != nil {
			logger.Warn(context.Background(), "sandbox-init helper not found, running unrestricted",
				zap.String("helper", cfg.HelperPath),
				zap.Error(err))
		} else {
			r.helper = path
		}
	}
	return r, nil
}

func (l *localRunner) Name() string { return EngineLocal }

func (l *localRunner) Execute(ctx context.Context, task Task) (res RunResult, err error) {
	if err := validateTask(task); err != nil {
		return RunResult{}, err
	}
	limits := mergeLimits(task.Limits, l.cfg.DefaultLimits)

	workDir, err := prepareWorkspace(l.cfg.WorkRoot, task.TaskID, task.Files)
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
		cres := l.runProcess(ctx, workDir, task.Compile, "", compileLimits)
		if cres.err != nil {
			return res, cres.err
		}
		if cres.timedOut || cres.exitCode != 0 {
			res.Stderr = cres.stderr
			res.ExitCode = cres.exitCode
			return res, appErr.Newf(appErr.CompilationFailed, "compile failed: %s", firstLine(cres.stderr))
		}
	}

	rres := l.runProcess(ctx, workDir, task.Run, task.Stdin, limits)
	if rres.err != nil {
		return res, rres.err
	}

	res.Stdout = rres.stdout
	res.Stderr = rres.stderr
	res.ExitCode = rres.exitCode
	res.WallTimeMS = rres.wallTimeMS
	res.MemoryKB = rres.memoryKB
	res.OutputKB = rres.outputKB
	res.TimedOut = rres.timedOut
	res.OomKilled = limits.MemoryMB > 0 && rres.memoryKB > limits.MemoryMB*1024
	return res, nil
}

type processResult struct {
	stdout     string
	stderr     string
	exitCode   int
	wallTimeMS int64
	memoryKB   int64
	outputKB   int64
	timedOut   bool
	err        error
}

func (l *localRunner) runProcess(ctx context.Context, workDir string, cmdline []string, stdin string, limits model.ResourceLimits) processResult {
	stdout := newLimitedBuffer(limits.OutputKB * 1024)
	stderr := newLimitedBuffer(limits.OutputKB * 1024)

	var c *exec.Cmd
	if l.helper != "" {
		req := initRequest{
			WorkDir:        workDir,
			Cmd:            cmdline,
			Env:            []string{"PATH=" + os.Getenv("PATH")},
			SeccompProfile: l.cfg.SeccompProfile,
			Limits:         limits,
		}
		if stdin != "" {
			stdinPath := filepath.Join(workDir, "stdin.txt")
			if err := os.WriteFile(stdinPath, []byte(stdin), 0644); err != nil {
				return processResult{err: appErr.Wrapf(err, appErr.WorkspaceFailed, "write stdin file")}
			}
			req.StdinPath = stdinPath
		}
		pipe, err := jsonToPipe(req)
		if err != nil {
			return processResult{err: appErr.Wrapf(err, appErr.SandboxSystemError, "encode init request")}
		}
		defer pipe.Close()

		c = exec.Command(l.helper)
		c.Stdin = pipe
	} else {
		path, err := exec.LookPath(cmdline[0])
		if err != nil {
			return processResult{err: appErr.Wrapf(err, appErr.SandboxUnavailable, "command %s not found on host", cmdline[0])}
		}
		c = exec.Command(path, cmdline[1:]...)
		c.Dir = workDir
		c.Env = []string{"PATH=" + os.Getenv("PATH")}
		if stdin != "" {
			c.Stdin = strings.NewReader(stdin)
		}
	}

	c.Stdout = stdout
	c.Stderr = stderr
	c.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		return processResult{err: appErr.Wrapf(err, appErr.SandboxSystemError, "start process")}
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		wallTimer := time.After(time.Duration(limits.WallTimeMS) * time.Millisecond)
		select {
		case <-ctx.Done():
			killProcessGroup(c.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(c.Process.Pid)
		case <-done:
		}
	}()

	waitErr := c.Wait()
	close(done)

	wall := time.Since(start).Milliseconds()
	result := processResult{
		stdout:     stdout.String(),
		stderr:     stderr.String(),
		exitCode:   exitCodeFromState(waitErr, c.ProcessState),
		wallTimeMS: wall,
		memoryKB:   peakMemoryKB(c.ProcessState),
		outputKB:   stdout.TotalKB(),
		timedOut:   timedOut.Load(),
	}
	if result.timedOut {
		result.exitCode = -1
	}
	return result
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func exitCodeFromState(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func peakMemoryKB(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || usage == nil {
		return 0
	}
	return usage.Maxrss
}

func jsonToPipe(req initRequest) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(req)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}
