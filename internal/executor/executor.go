// Package executor runs validated commands as sandboxed child processes:
// scrubbed environment, bounded time, optional streaming, graceful-then-
// forceful termination, and exhaustive diagnostics when the spawn itself
// fails. Each invocation materializes a small Node.js driver script to a
// temporary file, runs it, and removes the file on every exit path.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

var (
	ErrTimeout = errors.New("command timed out")
	ErrSpawn   = errors.New("failed to spawn command")
)

// Error is the failure result of an execution, carrying whatever output was
// captured before things went wrong plus spawn diagnostics when relevant.
type Error struct {
	Err         error
	Message     string
	Stdout      string
	Stderr      string
	ElapsedMs   int64
	Diagnostics *protocol.ExecuteDiagnostics
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Kind returns the stable wire kind for this failure.
func (e *Error) Kind() string {
	switch {
	case errors.Is(e.Err, ErrTimeout):
		return "Timeout"
	case errors.Is(e.Err, ErrSpawn):
		return "SpawnError"
	default:
		return "IOError"
	}
}

// Request describes one execution.
type Request struct {
	Command       string
	WorkingDir    string
	Timeout       time.Duration // 0 = default (30 s, or 5 min for long operations)
	LongOperation bool
	KeepAlive     time.Duration // 0 = default 10 s; only used for long operations
}

// Executor spawns and supervises child processes. It is the only component
// that creates them.
type Executor struct {
	cfg     config.ExecutorConfig
	workdir string
	tracer  trace.Tracer
}

// New creates an executor rooted at the workspace directory.
func New(cfg config.ExecutorConfig, workdir string) *Executor {
	return &Executor{cfg: cfg, workdir: workdir, tracer: otel.Tracer("goforge/executor")}
}

// Run executes a command and buffers the full result.
func (e *Executor) Run(ctx context.Context, req Request) (*protocol.ExecuteResult, error) {
	return e.execute(ctx, req, nil)
}

// RunStream executes a command, pushing output and progress events into the
// channel as they happen, followed by exactly one terminal event. The
// channel is closed after the terminal event; the caller just drains it.
func (e *Executor) RunStream(ctx context.Context, req Request, events chan<- protocol.StreamEvent) {
	defer close(events)

	emit := func(ev protocol.StreamEvent) { events <- ev }
	result, err := e.execute(ctx, req, emit)
	if err != nil {
		events <- protocol.StreamEvent{
			Type:      protocol.EventError,
			Timestamp: time.Now().UTC(),
			Error:     ErrorBody(err),
		}
		return
	}
	events <- protocol.StreamEvent{
		Type:      protocol.EventComplete,
		Timestamp: time.Now().UTC(),
		Result:    result,
	}
}

// ErrorBody converts an execution failure to its wire envelope.
func ErrorBody(err error) *protocol.ErrorBody {
	var execErr *Error
	if errors.As(err, &execErr) {
		return &protocol.ErrorBody{
			Error:       execErr.Message,
			Kind:        execErr.Kind(),
			Stdout:      execErr.Stdout,
			Stderr:      execErr.Stderr,
			ElapsedMs:   execErr.ElapsedMs,
			Diagnostics: execErr.Diagnostics,
		}
	}
	return &protocol.ErrorBody{Error: err.Error(), Kind: "IOError"}
}

// execute is the single code path behind Run and RunStream. emit is nil in
// buffered mode. The state machine is Starting → Running → (Completed |
// TimedOut → Terminating → Terminated | SpawnFailed); the post-Wait
// sequencing below is the latch that guarantees exactly one terminal
// outcome even when timeout and process exit race.
func (e *Executor) execute(ctx context.Context, req Request, emit func(protocol.StreamEvent)) (*protocol.ExecuteResult, error) {
	_, span := e.tracer.Start(ctx, "exec.run")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("exec.long_operation", req.LongOperation),
		attribute.Bool("exec.streaming", emit != nil),
	)

	id := newRunID()
	start := time.Now()
	timeout := e.timeoutFor(req)

	workdir := e.workdir
	if req.WorkingDir != "" {
		workdir = req.WorkingDir
	}

	driverPath, err := writeDriver(buildDriver(req.Command, time.Duration(e.cfg.PostCommandDelayMs)*time.Millisecond))
	if err != nil {
		return nil, &Error{
			Err:         ErrSpawn,
			Message:     err.Error(),
			Diagnostics: buildDiagnostics(req, e.cfg.NodeBin, workdir, err),
		}
	}
	defer os.Remove(driverPath)

	cmd := exec.Command(e.cfg.NodeBin, driverPath)
	cmd.Dir = workdir
	cmd.Env = scrubEnv(os.Environ(), e.cfg.EnvPrefixes)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Err: ErrSpawn, Message: err.Error()}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &Error{Err: ErrSpawn, Message: err.Error()}
	}

	slog.Info("▶ executing", "id", id, "command", req.Command, "timeout", timeout, "long", req.LongOperation)

	if err := cmd.Start(); err != nil {
		diag := buildDiagnostics(req, e.cfg.NodeBin, workdir, err)
		slog.Error("spawn failed", "id", id, "error", err)
		return nil, &Error{
			Err:         ErrSpawn,
			Message:     fmt.Sprintf("spawn %s: %v", e.cfg.NodeBin, err),
			ElapsedMs:   time.Since(start).Milliseconds(),
			Diagnostics: diag,
		}
	}

	var (
		mu         sync.Mutex
		stdoutBuf  bytes.Buffer
		stderrBuf  bytes.Buffer
		lastOutput atomic.Int64
	)
	lastOutput.Store(start.UnixMilli())

	var readers sync.WaitGroup
	collect := func(r io.Reader, buf *bytes.Buffer, eventType string) {
		defer readers.Done()
		chunk := make([]byte, 4096)
		for {
			n, readErr := r.Read(chunk)
			if n > 0 {
				mu.Lock()
				buf.Write(chunk[:n])
				mu.Unlock()
				lastOutput.Store(time.Now().UnixMilli())
				if emit != nil {
					emit(protocol.StreamEvent{
						Type:      eventType,
						Data:      string(chunk[:n]),
						Timestamp: time.Now().UTC(),
					})
				}
			}
			if readErr != nil {
				return
			}
		}
	}
	readers.Add(2)
	go collect(stdoutPipe, &stdoutBuf, protocol.EventStdout)
	go collect(stderrPipe, &stderrBuf, protocol.EventStderr)

	// Timeout path: SIGTERM the whole process group; for long operations a
	// grace period precedes SIGKILL.
	var timedOut atomic.Bool
	pgid := cmd.Process.Pid
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		slog.Warn("execution timed out, terminating", "id", id, "timeout", timeout)
		syscall.Kill(-pgid, syscall.SIGTERM)
		if req.LongOperation {
			time.AfterFunc(e.cfg.Grace(), func() {
				syscall.Kill(-pgid, syscall.SIGKILL)
			})
		}
	})
	defer timer.Stop()

	done := make(chan struct{})
	var keepalive sync.WaitGroup
	if req.LongOperation {
		interval := req.KeepAlive
		if interval <= 0 {
			interval = e.cfg.KeepAlive()
		}
		keepalive.Add(1)
		go func() {
			defer keepalive.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					elapsed := time.Since(start).Milliseconds()
					slog.Info("⏳ still running", "id", id, "elapsed_ms", elapsed)
					if emit != nil {
						mu.Lock()
						outTail := tail(stdoutBuf.Bytes(), 500)
						errTail := tail(stderrBuf.Bytes(), 500)
						mu.Unlock()
						emit(protocol.StreamEvent{
							Type:            protocol.EventProgress,
							Timestamp:       time.Now().UTC(),
							ElapsedMs:       elapsed,
							SinceLastOutput: time.Now().UnixMilli() - lastOutput.Load(),
							StdoutTail:      outTail,
							StderrTail:      errTail,
						})
					}
				}
			}
		}()
	}

	readers.Wait()
	waitErr := cmd.Wait()
	close(done)
	keepalive.Wait()

	end := time.Now()
	elapsed := end.Sub(start)
	mu.Lock()
	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()
	mu.Unlock()

	if timedOut.Load() {
		span.SetAttributes(attribute.String("exec.outcome", "timeout"))
		return nil, &Error{
			Err:       ErrTimeout,
			Message:   fmt.Sprintf("command timed out after %s", timeout),
			Stdout:    stdout,
			Stderr:    stderr,
			ElapsedMs: elapsed.Milliseconds(),
		}
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// Non-zero exit is an outcome, not an error: the caller gets
			// the code verbatim.
			exitCode = exitErr.ExitCode()
		} else {
			return nil, &Error{
				Err:       waitErr,
				Message:   waitErr.Error(),
				Stdout:    stdout,
				Stderr:    stderr,
				ElapsedMs: elapsed.Milliseconds(),
			}
		}
	}

	slog.Info("✔ execution finished", "id", id, "code", exitCode, "elapsed", elapsed)
	span.SetAttributes(attribute.Int("exec.exit_code", exitCode))
	return &protocol.ExecuteResult{
		ID:            id,
		Stdout:        stdout,
		Stderr:        stderr,
		ExitCode:      exitCode,
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		ElapsedMs:     elapsed.Milliseconds(),
		LongOperation: req.LongOperation,
	}, nil
}

func (e *Executor) timeoutFor(req Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if req.LongOperation {
		return e.cfg.LongTimeout()
	}
	return e.cfg.DefaultTimeout()
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
