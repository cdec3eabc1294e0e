package engine

import (
	"context"
	"log/slog"
	"sync"
)

// StubEngine records invocations without running ffmpeg. Tests use it to
// assert argument construction and failure handling.
type StubEngine struct {
	logger *slog.Logger

	mu    sync.Mutex
	calls [][]string

	// FailWith, when non-empty, makes Run report a failed invocation
	// with this stderr tail.
	FailWith string

	// AwaitErr, when set, makes the engine report as failed.
	AwaitErr error

	// ProbeResult is returned by Probe when set.
	ProbeResult *ProbeInfo

	// OnRun, when set, is invoked for each Run with the argument list.
	OnRun func(args []string)
}

func NewStubEngine(logger *slog.Logger) *StubEngine {
	return &StubEngine{logger: logger}
}

func (e *StubEngine) Await(ctx context.Context) error {
	return e.AwaitErr
}

func (e *StubEngine) State() State {
	if e.AwaitErr != nil {
		return StateFailed
	}
	return StateReady
}

func (e *StubEngine) Run(ctx context.Context, args []string) RunResult {
	e.mu.Lock()
	argsCopy := append([]string(nil), args...)
	e.calls = append(e.calls, argsCopy)
	e.mu.Unlock()

	if e.OnRun != nil {
		e.OnRun(argsCopy)
	}

	if e.AwaitErr != nil {
		return RunResult{ExitCode: -1, StderrTail: e.AwaitErr.Error()}
	}
	if e.FailWith != "" {
		return RunResult{ExitCode: 1, StderrTail: e.FailWith}
	}
	return RunResult{ExitCode: 0}
}

func (e *StubEngine) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	if e.AwaitErr != nil {
		return nil, e.AwaitErr
	}
	if e.ProbeResult != nil {
		return e.ProbeResult, nil
	}
	return &ProbeInfo{}, nil
}

// Calls returns a copy of all recorded Run argument lists.
func (e *StubEngine) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.calls))
	copy(out, e.calls)
	return out
}
