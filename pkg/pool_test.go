package pkg

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	id       int
	initErr  error
	inits    atomic.Int32
	disposes atomic.Int32
}

func (w *fakeWorker) Init(context.Context) error {
	w.inits.Add(1)
	return w.initErr
}

func (w *fakeWorker) Dispose(context.Context) error {
	w.disposes.Add(1)
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeWorker
	failFor map[int]error
}

func (f *fakeFactory) create() *fakeWorker {
	f.mu.Lock()
	defer f.mu.Unlock()

	worker := &fakeWorker{id: len(f.created), initErr: f.failFor[len(f.created)]}
	f.created = append(f.created, worker)

	return worker
}

func (f *fakeFactory) workers() []*fakeWorker {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*fakeWorker(nil), f.created...)
}

func tokens(n int, closed bool) chan int {
	ch := make(chan int, n)
	for i := range n {
		ch <- i
	}

	if closed {
		close(ch)
	}

	return ch
}

func feed[T any](items ...T) <-chan T {
	ch := make(chan T, len(items))
	for _, item := range items {
		ch <- item
	}

	close(ch)

	return ch
}

func collect[T, R any](t *testing.T, out <-chan Outcome[T, R]) []Outcome[T, R] {
	t.Helper()

	var outcomes []Outcome[T, R]

	timeout := time.After(5 * time.Second)

	for {
		select {
		case outcome, ok := <-out:
			if !ok {
				return outcomes
			}

			outcomes = append(outcomes, outcome)
		case <-timeout:
			t.Fatal("timed out waiting for outcomes")
			return nil
		}
	}
}

func TestSchedule_TwoTokensFiveItems(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(tokens(2, false), factory.create)

	var running, maxRunning atomic.Int32

	work := func(_ context.Context, w *fakeWorker, item int) (int, error) {
		now := running.Add(1)
		for {
			prev := maxRunning.Load()
			if now <= prev || maxRunning.CompareAndSwap(prev, now) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)
		running.Add(-1)

		return item * 10, nil
	}

	outcomes := collect(t, Schedule(context.Background(), pool, feed(1, 2, 3, 4, 5), work))

	require.Len(t, outcomes, 5)

	values := make([]int, 0, len(outcomes))
	for _, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		values = append(values, outcome.Value)
	}

	assert.ElementsMatch(t, []int{10, 20, 30, 40, 50}, values)
	assert.Len(t, factory.workers(), 2)
	assert.LessOrEqual(t, maxRunning.Load(), int32(2))

	for _, worker := range factory.workers() {
		assert.Equal(t, int32(1), worker.inits.Load())
	}

	require.NoError(t, pool.Dispose(context.Background()))
}

func TestSchedule_ReusesWorkersAcrossCalls(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(tokens(1, false), factory.create)

	work := func(_ context.Context, w *fakeWorker, item string) (int, error) {
		return w.id, nil
	}

	first := collect(t, Schedule(context.Background(), pool, feed("a", "b"), work))
	second := collect(t, Schedule(context.Background(), pool, feed("c"), work))

	require.Len(t, first, 2)
	require.Len(t, second, 1)
	assert.Len(t, factory.workers(), 1)
	assert.Equal(t, 0, second[0].Value)
}

func TestSchedule_CreationFailure(t *testing.T) {
	factory := &fakeFactory{failFor: map[int]error{0: errors.New("boom")}}
	pool := NewPool(tokens(1, false), factory.create)

	work := func(_ context.Context, w *fakeWorker, item int) (int, error) {
		return item, nil
	}

	outcomes := collect(t, Schedule(context.Background(), pool, feed(1, 2), work))
	require.Len(t, outcomes, 2)

	var failed, succeeded int

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++

			assert.ErrorContains(t, outcome.Err, "boom")
			assert.Equal(t, 1, outcome.Input)
		} else {
			succeeded++
		}
	}

	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)

	created := factory.workers()
	require.Len(t, created, 2)
	assert.Equal(t, int32(1), created[0].disposes.Load())
	assert.Equal(t, 1, pool.Size())
}

func TestSchedule_WorkErrorIsReported(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(tokens(1, true), factory.create)

	outcomes := collect(t, Schedule(context.Background(), pool, feed(1), func(context.Context, *fakeWorker, int) (int, error) {
		return 0, errors.New("work failed")
	}))

	require.Len(t, outcomes, 1)
	require.EqualError(t, outcomes[0].Err, "work failed")
	assert.Equal(t, 1, outcomes[0].Input)
}

func TestSchedule_NoTokens(t *testing.T) {
	pool := NewPool(tokens(0, true), (&fakeFactory{}).create)

	outcomes := collect(t, Schedule(context.Background(), pool, feed(1), func(context.Context, *fakeWorker, int) (int, error) {
		return 1, nil
	}))

	require.Len(t, outcomes, 1)
	require.ErrorIs(t, outcomes[0].Err, ErrNoWorkers)
}

func TestSchedule_ContextCancelled(t *testing.T) {
	pool := NewPool(make(chan int), (&fakeFactory{}).create)

	ctx, cancel := context.WithCancel(context.Background())
	out := Schedule(ctx, pool, feed(1), func(context.Context, *fakeWorker, int) (int, error) {
		return 1, nil
	})

	cancel()

	outcomes := collect(t, out)
	for _, outcome := range outcomes {
		assert.ErrorIs(t, outcome.Err, context.Canceled)
	}
}

func TestPool_Init(t *testing.T) {
	factory := &fakeFactory{}
	tokenCh := tokens(3, false)
	pool := NewPool(tokenCh, factory.create)

	require.NoError(t, pool.Init(context.Background()))
	assert.Equal(t, 3, pool.Size())

	for _, worker := range factory.workers() {
		assert.Equal(t, int32(1), worker.inits.Load())
	}

	tokenCh <- 3

	require.NoError(t, pool.Init(context.Background()))
	assert.Equal(t, 4, pool.Size())
}

func TestPool_InitReportsFailures(t *testing.T) {
	factory := &fakeFactory{failFor: map[int]error{1: errors.New("init failed")}}
	pool := NewPool(tokens(2, true), factory.create)

	err := pool.Init(context.Background())
	require.ErrorContains(t, err, "init failed")
	assert.Equal(t, 1, pool.Size())
}

func TestPool_Dispose(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(tokens(2, false), factory.create)

	require.NoError(t, pool.Init(context.Background()))
	require.NoError(t, pool.Dispose(context.Background()))
	require.NoError(t, pool.Dispose(context.Background()))

	for _, worker := range factory.workers() {
		assert.Equal(t, int32(1), worker.disposes.Load())
	}

	outcomes := collect(t, Schedule(context.Background(), pool, feed(1), func(context.Context, *fakeWorker, int) (int, error) {
		return 1, nil
	}))

	require.Len(t, outcomes, 1)
	require.ErrorIs(t, outcomes[0].Err, ErrPoolDisposed)
}
