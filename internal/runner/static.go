package runner

import (
	"context"
	"sync/atomic"
)

// Static is a Runner returning pre-programmed output. It never starts a
// process and is meant for tests.
type Static struct {
	// Output is returned by Run when Err is nil.
	Output []byte
	// Err, if not nil, is returned by Run instead of Output.
	Err error

	calls atomic.Int64
}

// NewStatic returns a Static runner that always succeeds with output.
func NewStatic(output string) *Static {
	return &Static{Output: []byte(output)}
}

// NewFailing returns a Static runner that always fails with err.
func NewFailing(err error) *Static {
	return &Static{Err: err}
}

// Run returns the configured output or error.
func (s *Static) Run(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]byte, len(s.Output))
	copy(out, s.Output)
	return out, nil
}

// Calls returns how many times Run has been called.
func (s *Static) Calls() int {
	return int(s.calls.Load())
}

// Checks that Static implements Runner.
var _ Runner = &Static{}
