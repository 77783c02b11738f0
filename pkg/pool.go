// Package pkg provides generic building blocks for mutiny.
package pkg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrPoolDisposed is returned when work is scheduled on a disposed pool.
	ErrPoolDisposed = errors.New("pool is disposed")
	// ErrNoWorkers is returned when the token stream ended without any worker being available.
	ErrNoWorkers = errors.New("no workers available: concurrency token stream ended")
)

// Resource is a long-lived worker owned by a Pool.
type Resource interface {
	Init(ctx context.Context) error
	Dispose(ctx context.Context) error
}

// Outcome is the result of one scheduled item.
type Outcome[T, R any] struct {
	Input T
	Value R
	Err   error
}

// Pool lazily creates workers, one per concurrency token received, and caches
// them for reuse across Schedule calls. A worker is leased to exactly one item
// at a time.
type Pool[W Resource] struct {
	create func() W
	tokens <-chan int

	mu         sync.Mutex
	idle       []W
	all        []W
	leased     int
	spare      int
	tokensDone bool
	disposed   bool
	changed    chan struct{}
	initWG     sync.WaitGroup
}

// NewPool creates a pool that grows by one worker for every token received on tokens.
func NewPool[W Resource](tokens <-chan int, create func() W) *Pool[W] {
	return &Pool[W]{
		create:  create,
		tokens:  tokens,
		changed: make(chan struct{}),
	}
}

// Size returns the number of workers created and not discarded.
func (p *Pool[W]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.all)
}

// broadcast wakes every goroutine waiting in reserve. Callers hold p.mu.
func (p *Pool[W]) broadcast() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// reserve leases an idle worker, or reports that the caller may create a new
// one (fresh == true) because a token is available.
func (p *Pool[W]) reserve(ctx context.Context) (W, bool, error) {
	var zero W

	for {
		p.mu.Lock()

		if p.disposed {
			p.mu.Unlock()
			return zero, false, ErrPoolDisposed
		}

		if len(p.idle) > 0 {
			worker := p.idle[0]
			p.idle = p.idle[1:]
			p.leased++
			p.mu.Unlock()

			return worker, false, nil
		}

		if p.spare > 0 {
			p.spare--
			p.leased++
			p.initWG.Add(1)
			p.mu.Unlock()

			return zero, true, nil
		}

		if p.tokensDone && p.leased == 0 {
			p.mu.Unlock()
			return zero, false, ErrNoWorkers
		}

		var tokens <-chan int
		if !p.tokensDone {
			tokens = p.tokens
		}

		changed := p.changed
		p.mu.Unlock()

		select {
		case _, ok := <-tokens:
			p.mu.Lock()

			switch {
			case !ok:
				p.tokensDone = true
				p.broadcast()
			case p.disposed:
			default:
				p.leased++
				p.initWG.Add(1)
				p.mu.Unlock()

				return zero, true, nil
			}

			p.mu.Unlock()
		case <-changed:
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

// materialize creates and initializes a new worker for a reservation made by reserve.
func (p *Pool[W]) materialize(ctx context.Context) (W, error) {
	defer p.initWG.Done()

	worker := p.create()

	p.mu.Lock()
	p.all = append(p.all, worker)
	p.mu.Unlock()

	if err := worker.Init(ctx); err != nil {
		slog.Error("Failed to initialize worker", "error", err)

		if disposeErr := worker.Dispose(context.WithoutCancel(ctx)); disposeErr != nil {
			slog.Warn("Failed to dispose worker after failed init", "error", disposeErr)
		}

		p.mu.Lock()
		p.discard(worker)
		p.leased--
		p.spare++
		p.broadcast()
		p.mu.Unlock()

		var zero W

		return zero, fmt.Errorf("init worker: %w", err)
	}

	return worker, nil
}

// discard forgets a worker that failed to initialize. Callers hold p.mu.
func (p *Pool[W]) discard(worker W) {
	for i, w := range p.all {
		if any(w) == any(worker) {
			p.all = append(p.all[:i], p.all[i+1:]...)
			return
		}
	}
}

func (p *Pool[W]) release(worker W) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.leased--

	if !p.disposed {
		p.idle = append(p.idle, worker)
	}

	p.broadcast()
}

// Init creates a worker for every token delivered so far and waits until all
// workers currently being created have finished initializing. It never waits
// for tokens that have not arrived yet and may be called again later.
func (p *Pool[W]) Init(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for p.tryWarmUp(ctx, &wg, func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}) {
	}

	wg.Wait()
	p.initWG.Wait()

	return errors.Join(errs...)
}

// tryWarmUp consumes one already-delivered token and starts creating a worker
// for it. It returns false when no token is immediately available.
func (p *Pool[W]) tryWarmUp(ctx context.Context, wg *sync.WaitGroup, onErr func(error)) bool {
	p.mu.Lock()
	if p.disposed || p.tokensDone {
		p.mu.Unlock()
		return false
	}

	tokens := p.tokens
	p.mu.Unlock()

	select {
	case _, ok := <-tokens:
		p.mu.Lock()
		defer p.mu.Unlock()

		if !ok {
			p.tokensDone = true
			p.broadcast()

			return false
		}

		if p.disposed {
			return false
		}

		p.leased++
		p.initWG.Add(1)
		wg.Add(1)

		go func() {
			defer wg.Done()

			worker, err := p.materialize(ctx)
			if err != nil {
				onErr(err)
				return
			}

			p.release(worker)
		}()

		return true
	default:
		return false
	}
}

// Dispose stops handing out workers, waits for in-flight initializations and
// disposes every created worker exactly once.
func (p *Pool[W]) Dispose(ctx context.Context) error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}

	p.disposed = true
	p.broadcast()
	p.mu.Unlock()

	p.initWG.Wait()

	p.mu.Lock()
	workers := p.all
	p.all = nil
	p.idle = nil
	p.mu.Unlock()

	errs := make([]error, 0, len(workers))

	for _, worker := range workers {
		if err := worker.Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	slog.Debug("Disposed worker pool", "workers", len(workers))

	return errors.Join(errs...)
}

// Schedule pairs every input with a worker from the pool and runs work on it.
// Inputs are dispatched in order; outcomes arrive in completion order. The
// returned channel closes after every dispatched item has completed.
func Schedule[W Resource, T, R any](ctx context.Context, p *Pool[W], inputs <-chan T, work func(context.Context, W, T) (R, error)) <-chan Outcome[T, R] {
	out := make(chan Outcome[T, R])

	go func() {
		var wg sync.WaitGroup

		defer func() {
			wg.Wait()
			close(out)
		}()

		emit := func(outcome Outcome[T, R]) {
			select {
			case out <- outcome:
			case <-ctx.Done():
			}
		}

		for {
			var (
				input T
				ok    bool
			)

			select {
			case input, ok = <-inputs:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			worker, fresh, err := p.reserve(ctx)
			if err != nil {
				emit(Outcome[T, R]{Input: input, Err: err})
				return
			}

			wg.Add(1)

			go func() {
				defer wg.Done()

				if fresh {
					worker, err = p.materialize(ctx)
					if err != nil {
						emit(Outcome[T, R]{Input: input, Err: err})
						return
					}
				}

				value, workErr := work(ctx, worker, input)
				p.release(worker)
				emit(Outcome[T, R]{Input: input, Value: value, Err: workErr})
			}()
		}
	}()

	return out
}
