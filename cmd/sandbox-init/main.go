//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// initRequest mirrors the struct the local runner encodes on stdin. Limits
// use the wire names of the resource limit document.
type initRequest struct {
	WorkDir        string
	Cmd            []string
	Env            []string
	StdinPath      string
	SeccompProfile string
	Limits         resourceLimits
}

type resourceLimits struct {
	WallTimeMS int64 `json:"wall_time_ms"`
	MemoryMB   int64 `json:"memory_mb"`
	OutputKB   int64 `json:"output_kb"`
	PIDs       int64 `json:"pids"`
}

func run() error {
	req, err := decodeRequest(os.Stdin)
	if err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	if err := os.Chdir(req.WorkDir); err != nil {
		return fmt.Errorf("chdir workdir: %w", err)
	}
	if err := applyRlimits(req.Limits); err != nil {
		return err
	}
	if err := redirectStdin(req.StdinPath); err != nil {
		return err
	}
	if req.SeccompProfile != "" {
		if err := applySeccomp(req.SeccompProfile); err != nil {
			return err
		}
	}

	env := buildEnv(req.Env)
	cmdPath, err := exec.LookPath(req.Cmd[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	// Stdout and stderr stay inherited: the runner reads them from the helper
	// process directly.
	return unix.Exec(cmdPath, req.Cmd, env)
}

func decodeRequest(r io.Reader) (initRequest, error) {
	dec := json.NewDecoder(r)
	var req initRequest
	if err := dec.Decode(&req); err != nil {
		return initRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func validateRequest(req initRequest) error {
	if len(req.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	return nil
}

func applyRlimits(limits resourceLimits) error {
	type rlimit struct {
		name     string
		resource int
		value    uint64
	}
	var rls []rlimit
	if limits.WallTimeMS > 0 {
		// CPU ceiling backstops the runner's wall clock kill.
		rls = append(rls, rlimit{"cpu", unix.RLIMIT_CPU, uint64((limits.WallTimeMS+999)/1000) + 1})
	}
	if limits.MemoryMB > 0 {
		rls = append(rls, rlimit{"as", unix.RLIMIT_AS, uint64(limits.MemoryMB) * 1024 * 1024})
	}
	if limits.OutputKB > 0 {
		rls = append(rls, rlimit{"fsize", unix.RLIMIT_FSIZE, uint64(limits.OutputKB) * 1024})
	}
	if limits.PIDs > 0 {
		rls = append(rls, rlimit{"nproc", unix.RLIMIT_NPROC, uint64(limits.PIDs)})
	}
	for _, rl := range rls {
		if err := unix.Setrlimit(rl.resource, &unix.Rlimit{Cur: rl.value, Max: rl.value}); err != nil {
			return fmt.Errorf("set rlimit %s: %w", rl.name, err)
		}
	}
	return nil
}

// redirectStdin replaces fd 0, which carried the init request, so the target
// process never reads protocol bytes.
func redirectStdin(path string) error {
	if path == "" {
		path = "/dev/null"
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	if err := unix.Dup2(int(file.Fd()), 0); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	return file.Close()
}

func buildEnv(env []string) []string {
	if len(env) > 0 {
		return env
	}
	return []string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"}
}

// applySeccomp installs the syscall filter described by the OCI-style
// profile at profilePath. PR_SET_NO_NEW_PRIVS must precede the load for an
// unprivileged process.
func applySeccomp(profilePath string) error {
	profile, err := readSeccompProfile(profilePath)
	if err != nil {
		return err
	}
	filter, err := buildSeccompFilter(profile)
	if err != nil {
		return err
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func readSeccompProfile(path string) (seccompProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seccompProfile{}, fmt.Errorf("read seccomp profile: %w", err)
	}
	var profile seccompProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return seccompProfile{}, fmt.Errorf("parse seccomp profile: %w", err)
	}
	return profile, nil
}

func buildSeccompFilter(profile seccompProfile) (*seccomp.ScmpFilter, error) {
	defaultAction, err := parseSeccompAction(profile.DefaultAction)
	if err != nil {
		return nil, err
	}
	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return nil, fmt.Errorf("create seccomp filter: %w", err)
	}
	for _, rule := range profile.Syscalls {
		action, err := parseSeccompAction(rule.Action)
		if err != nil {
			return nil, err
		}
		for _, name := range rule.Names {
			call, err := seccomp.GetSyscallFromName(name)
			if err != nil {
				// Profiles list syscalls this kernel may not know.
				continue
			}
			if err := filter.AddRule(call, action); err != nil {
				return nil, fmt.Errorf("add seccomp rule %s: %w", name, err)
			}
		}
	}
	return filter, nil
}

type seccompProfile struct {
	DefaultAction string           `json:"defaultAction"`
	Syscalls      []seccompSyscall `json:"syscalls"`
}

type seccompSyscall struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

func parseSeccompAction(action string) (seccomp.ScmpAction, error) {
	switch strings.ToUpper(action) {
	case "SCMP_ACT_ALLOW":
		return seccomp.ActAllow, nil
	case "SCMP_ACT_ERRNO":
		return seccomp.ActErrno.SetReturnCode(int16(unix.EPERM)), nil
	case "SCMP_ACT_KILL", "SCMP_ACT_KILL_PROCESS":
		return seccomp.ActKillProcess, nil
	default:
		return seccomp.ActKillProcess, fmt.Errorf("unsupported seccomp action: %s", action)
	}
}
