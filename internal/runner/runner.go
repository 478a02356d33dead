// Package runner runs network speed measurements and returns the measurement
// tool's raw output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/spec"
)

var (
	// ErrSpawnFailed means the measurement tool could not be started.
	ErrSpawnFailed = errors.New("cannot start speedtest tool")
	// ErrToolFailed means the measurement tool ran but did not succeed.
	ErrToolFailed = errors.New("speedtest tool failed")
)

// waitDelay bounds how long Run waits for output pipes to close once the
// tool has exited or been killed.
const waitDelay = 5 * time.Second

// Runner runs a single measurement and returns the tool's raw output.
type Runner interface {
	Run(ctx context.Context) ([]byte, error)
}

// SpawnFailedError is returned when the tool's process cannot be started,
// e.g. because the binary is missing or not executable.
type SpawnFailedError struct {
	Path string
	Err  error
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrSpawnFailed, e.Path, e.Err)
}

func (e *SpawnFailedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSpawnFailed) true for any SpawnFailedError.
func (e *SpawnFailedError) Is(target error) bool { return target == ErrSpawnFailed }

// ToolFailedError is returned when the tool exits unsuccessfully. Stderr
// holds whatever the tool wrote to its standard error.
type ToolFailedError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ToolFailedError) Error() string {
	msg := fmt.Sprintf("%v (%s): %v", ErrToolFailed, e.Path, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ToolFailedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrToolFailed) true for any ToolFailedError.
func (e *ToolFailedError) Is(target error) bool { return target == ErrToolFailed }

// Command runs an external measurement tool and returns its standard output.
type Command struct {
	// Path is the tool's name or path. Names are resolved using $PATH.
	Path string
	// Args are passed to the tool as-is.
	Args []string
	// Timeout bounds each run. Zero means no timeout.
	Timeout time.Duration
}

// NewCommand returns a Command running the tool at path with the flag
// requesting JSON output.
func NewCommand(path string, timeout time.Duration) *Command {
	return &Command{
		Path:    path,
		Args:    []string{spec.JSONFlag},
		Timeout: timeout,
	}
}

// Run starts the tool and waits for it to complete.
func (c *Command) Run(ctx context.Context) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of the tool may keep its output pipes open after it is killed.
	cmd.WaitDelay = waitDelay

	log.Debug("Starting speedtest tool", "path", c.Path, "args", c.Args)
	if err := cmd.Start(); err != nil {
		return nil, &SpawnFailedError{Path: c.Path, Err: err}
	}
	if err := cmd.Wait(); err != nil {
		// A killed process reports "signal: killed". The context error
		// says why it was killed.
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, &ToolFailedError{Path: c.Path, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// Checks that Command implements Runner.
var _ Runner = &Command{}
