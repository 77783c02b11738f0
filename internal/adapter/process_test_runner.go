package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

const (
	stderrTailSize  = 4096
	gracefulDispose = 2 * time.Second
)

// CommandTestRunner drives an external worker process that speaks the
// JSON-lines protocol on stdin/stdout. Requests and responses are correlated
// by id. Cancellation is hard: Dispose kills the process group, failing any
// in-flight call with ErrProcessCrashed.
type CommandTestRunner struct {
	dir     m.Path
	command []string

	writeMu sync.Mutex

	mu           sync.Mutex
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	pending      map[uint64]chan Response
	nextID       uint64
	unanswered   int
	exited       chan struct{}
	exitErr      error
	disposed     bool
	stderr       *tailBuffer
	capabilities m.Capabilities
}

// NewCommandTestRunner creates a runner that starts command in dir.
func NewCommandTestRunner(dir m.Path, command []string) *CommandTestRunner {
	return &CommandTestRunner{
		dir:     dir,
		command: command,
		pending: map[uint64]chan Response{},
		stderr:  &tailBuffer{limit: stderrTailSize},
	}
}

// Capabilities implements TestRunner. The value is reported by the worker on init.
func (r *CommandTestRunner) Capabilities() m.Capabilities {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.capabilities
}

// Init implements TestRunner. It starts the worker process and performs the init handshake.
func (r *CommandTestRunner) Init(ctx context.Context) error {
	if len(r.command) == 0 {
		return errors.New("no worker command configured")
	}

	// #nosec G204 - the worker command comes from the user's configuration
	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Dir = string(r.dir)
	cmd.Env = os.Environ()
	cmd.Stderr = r.stderr
	killGroupOnCancel(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open worker stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker %q: %w", r.command[0], err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.stdin = stdin
	r.exited = make(chan struct{})
	r.mu.Unlock()

	go r.readLoop(stdout)

	var result WireInitResult
	if err := r.call(ctx, KindInit, nil, &result); err != nil {
		r.kill()
		return fmt.Errorf("init worker: %w", err)
	}

	r.mu.Lock()
	r.capabilities = result.Capabilities
	r.mu.Unlock()

	slog.Debug("Started worker process", "pid", cmd.Process.Pid, "dir", r.dir, "reloadEnvironment", result.Capabilities.ReloadEnvironment)

	return nil
}

// DryRun implements TestRunner.
func (r *CommandTestRunner) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	var result WireDryRunResult
	if err := r.call(ctx, KindDryRun, toWireDryRunOptions(options), &result); err != nil {
		return m.DryRunResult{}, err
	}

	return result.toModel(), nil
}

// MutantRun implements TestRunner.
func (r *CommandTestRunner) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	var result WireMutantRunResult
	if err := r.call(ctx, KindMutantRun, toWireMutantRunOptions(options), &result); err != nil {
		return m.MutantRunResult{}, err
	}

	return result.toModel(), nil
}

// Dispose implements TestRunner. An idle worker is asked to shut down. A worker
// that still owes a response, including one whose caller gave up waiting, is
// killed right away.
func (r *CommandTestRunner) Dispose(ctx context.Context) error {
	r.mu.Lock()
	if r.disposed || r.cmd == nil {
		r.disposed = true
		r.mu.Unlock()

		return nil
	}

	r.disposed = true
	busy := r.unanswered > 0
	exited := r.exited
	r.mu.Unlock()

	if busy {
		r.kill()
		<-exited

		return nil
	}

	disposeCtx, cancel := context.WithTimeout(ctx, gracefulDispose)
	if err := r.call(disposeCtx, KindDispose, nil, nil); err != nil {
		slog.Debug("Worker did not acknowledge dispose", "error", err)
	}

	cancel()

	_ = r.stdin.Close()

	select {
	case <-exited:
	case <-time.After(gracefulDispose):
		r.kill()
		<-exited
	}

	return nil
}

func (r *CommandTestRunner) kill() {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := killGroup(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Warn("Failed to kill worker process", "pid", cmd.Process.Pid, "error", err)
		}
	}
}

func (r *CommandTestRunner) call(ctx context.Context, kind string, payload any, out any) error {
	var raw json.RawMessage

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", kind, err)
		}

		raw = data
	}

	r.mu.Lock()
	if r.exited == nil {
		r.mu.Unlock()
		return errors.New("worker process not started")
	}

	r.nextID++
	id := r.nextID
	responses := make(chan Response, 1)
	r.pending[id] = responses
	r.unanswered++
	exited := r.exited
	r.mu.Unlock()

	defer r.forget(id)

	line, err := json.Marshal(Request{ID: id, Kind: kind, Payload: raw})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", kind, err)
	}

	r.writeMu.Lock()
	_, err = r.stdin.Write(append(line, '\n'))
	r.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("send %s request: %w: %v", kind, ErrProcessCrashed, err)
	}

	select {
	case response := <-responses:
		return decodeResponse(kind, response, out)
	case <-exited:
		select {
		case response := <-responses:
			return decodeResponse(kind, response, out)
		default:
			return r.exitError()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeResponse(kind string, response Response, out any) error {
	if response.Kind == KindError {
		return fmt.Errorf("worker failed %s: %s", kind, response.Error)
	}

	if out == nil || len(response.Payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(response.Payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", kind, err)
	}

	return nil
}

func (r *CommandTestRunner) forget(id uint64) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *CommandTestRunner) exitError() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.exitErr
}

func (r *CommandTestRunner) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for scanner.Scan() {
		var response Response
		if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
			slog.Debug("Worker output", "line", scanner.Text())
			continue
		}

		r.mu.Lock()
		responses, ok := r.pending[response.ID]
		if r.unanswered > 0 {
			r.unanswered--
		}
		r.mu.Unlock()

		if !ok {
			slog.Warn("Dropping uncorrelated worker response", "id", response.ID, "kind", response.Kind)
			continue
		}

		responses <- response
	}

	waitErr := r.cmd.Wait()

	r.mu.Lock()
	r.exitErr = classifyExit(waitErr, r.stderr.String())
	close(r.exited)
	r.mu.Unlock()

	slog.Debug("Worker process exited", "error", waitErr)
}

func classifyExit(waitErr error, stderr string) error {
	cause := ErrProcessCrashed
	if strings.Contains(strings.ToLower(stderr), "out of memory") {
		cause = ErrOutOfMemory
	}

	detail := "exit status 0"
	if waitErr != nil {
		detail = waitErr.Error()
	}

	if tail := strings.TrimSpace(stderr); tail != "" {
		return fmt.Errorf("%w (%s): %s", cause, detail, tail)
	}

	return fmt.Errorf("%w (%s)", cause, detail)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.limit:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.data)
}
