package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/spec"
)

// writeScript writes an executable shell script to a temporary directory and
// returns its path.
func writeScript(t *testing.T, body string, mode os.FileMode) string {
	p := filepath.Join(t.TempDir(), "speedtest-cli")
	err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), mode)
	rtx.Must(err, "cannot write test script")
	return p
}

func TestNewCommand(t *testing.T) {
	c := NewCommand("speedtest-cli", time.Minute)
	if c.Path != "speedtest-cli" || c.Timeout != time.Minute {
		t.Errorf("NewCommand() returned wrong command: %+v", c)
	}
	if len(c.Args) != 1 || c.Args[0] != spec.JSONFlag {
		t.Errorf("NewCommand() args = %v, want [%s]", c.Args, spec.JSONFlag)
	}
}

func TestCommand_Run(t *testing.T) {
	t.Run("success returns stdout", func(t *testing.T) {
		p := writeScript(t, `
if [ "$1" != "--json" ]; then
  echo "unexpected args: $@" >&2
  exit 2
fi
echo "progress output" >&2
echo '{"download": 1}'`, 0o755)
		out, err := NewCommand(p, 0).Run(context.Background())
		if err != nil {
			t.Fatalf("Run() unexpected error: %v", err)
		}
		if strings.TrimSpace(string(out)) != `{"download": 1}` {
			t.Errorf("Run() = %q, want stdout only", out)
		}
	})

	t.Run("non-zero exit is ToolFailed", func(t *testing.T) {
		p := writeScript(t, `echo "Cannot retrieve speedtest configuration" >&2
exit 1`, 0o755)
		out, err := NewCommand(p, 0).Run(context.Background())
		if !errors.Is(err, ErrToolFailed) {
			t.Fatalf("Run() error = %v, want ErrToolFailed", err)
		}
		if errors.Is(err, ErrSpawnFailed) {
			t.Errorf("ToolFailed error must not match ErrSpawnFailed")
		}
		var tf *ToolFailedError
		if !errors.As(err, &tf) {
			t.Fatalf("Run() error has wrong type %T", err)
		}
		if !strings.Contains(tf.Stderr, "Cannot retrieve speedtest configuration") {
			t.Errorf("stderr not captured: %q", tf.Stderr)
		}
		if !strings.Contains(err.Error(), "Cannot retrieve speedtest configuration") {
			t.Errorf("error message does not include stderr: %v", err)
		}
		if out != nil {
			t.Errorf("Run() returned output on failure: %q", out)
		}
	})

	t.Run("missing binary is SpawnFailed", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "does-not-exist")
		_, err := NewCommand(p, 0).Run(context.Background())
		if !errors.Is(err, ErrSpawnFailed) {
			t.Fatalf("Run() error = %v, want ErrSpawnFailed", err)
		}
		var sf *SpawnFailedError
		if !errors.As(err, &sf) || sf.Path != p {
			t.Errorf("Run() error has wrong type or path: %#v", err)
		}
	})

	t.Run("non-executable file is SpawnFailed", func(t *testing.T) {
		p := writeScript(t, "echo {}", 0o644)
		_, err := NewCommand(p, 0).Run(context.Background())
		if !errors.Is(err, ErrSpawnFailed) {
			t.Fatalf("Run() error = %v, want ErrSpawnFailed", err)
		}
	})

	t.Run("timeout kills the tool", func(t *testing.T) {
		p := writeScript(t, "exec sleep 10", 0o755)
		start := time.Now()
		_, err := NewCommand(p, 100*time.Millisecond).Run(context.Background())
		if !errors.Is(err, ErrToolFailed) {
			t.Fatalf("Run() error = %v, want ErrToolFailed", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Errorf("Run() did not honor the timeout")
		}
	})
}

func TestStatic_Run(t *testing.T) {
	s := NewStatic(`{"download": 1}`)
	out, err := s.Run(context.Background())
	if err != nil || string(out) != `{"download": 1}` {
		t.Errorf("Static.Run() = %q, %v", out, err)
	}
	// Callers may modify the returned slice.
	out[0] = 'x'
	out, _ = s.Run(context.Background())
	if string(out) != `{"download": 1}` {
		t.Errorf("Static.Run() output was modified: %q", out)
	}

	f := NewFailing(&SpawnFailedError{Path: "speedtest-cli", Err: errors.New("not found")})
	_, err = f.Run(context.Background())
	if !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("Static.Run() error = %v, want ErrSpawnFailed", err)
	}
	if s.Calls() != 2 || f.Calls() != 1 {
		t.Errorf("wrong call counts: %d, %d", s.Calls(), f.Calls())
	}
}
