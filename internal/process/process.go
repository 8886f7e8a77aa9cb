package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// ExitNotFound is reported when the command cannot be started.
	ExitNotFound = 127
	// ExitTimedOut is reported when the wall-clock bound kills the child.
	ExitTimedOut = 124
)

var ErrTimeout = errors.New("command timed out")

// Command describes one child invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string // appended to the parent environment
	Dir     string
	Timeout time.Duration // zero means no bound beyond ctx
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result captures what the child produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Elapsed  time.Duration
}

// Runner abstracts child-process execution.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the child is killed.
	WaitDelay time.Duration
}

// Run starts cmd and waits for it. A non-zero exit is returned as an error alongside a populated [Result].
func (r ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Elapsed: time.Since(start)}
	if err == nil {
		return res, nil
	}

	if c.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = ExitTimedOut
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, c.Timeout, c)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			res.ExitCode = 1
		}
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		res.ExitCode = ExitNotFound
	}
	return res, err
}

// SetDefaultEnv returns env with key=value added when key is set neither in env nor in the parent environment.
func SetDefaultEnv(env []string, key, value string) []string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return env
		}
	}
	if _, ok := os.LookupEnv(key); ok {
		return env
	}
	return append(env, prefix+value)
}
