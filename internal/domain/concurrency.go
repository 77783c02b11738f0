package domain

import (
	"log/slog"
	"runtime"
	"sync"
)

// ConcurrencyTokenProvider hands out concurrency slots to the checker and test
// runner pools. While checkers run they hold half of the slots; FreeCheckers
// hands those slots to the test runners. A single slot is used by the dry run
// first and handed to the checkers by DryRunDone.
type ConcurrencyTokenProvider struct {
	concurrency      int
	checkerTokens    chan int
	testRunnerTokens chan int
	pending          []int
	staged           bool
	shared           bool

	dryRunOnce sync.Once
	freeOnce   sync.Once
}

// DefaultConcurrency returns the number of CPUs minus one, and at least one.
func DefaultConcurrency() int {
	return max(1, runtime.NumCPU()-1)
}

// NewConcurrencyTokenProvider splits concurrency between checkerCount checker
// kinds and the test runners. A concurrency below one means DefaultConcurrency.
func NewConcurrencyTokenProvider(concurrency, checkerCount int) *ConcurrencyTokenProvider {
	if concurrency < 1 {
		concurrency = DefaultConcurrency()
	}

	provider := &ConcurrencyTokenProvider{
		concurrency:      concurrency,
		checkerTokens:    make(chan int, concurrency),
		testRunnerTokens: make(chan int, concurrency),
	}

	if checkerCount == 0 {
		for token := range concurrency {
			provider.testRunnerTokens <- token
		}

		close(provider.checkerTokens)
		close(provider.testRunnerTokens)

		slog.Debug("Concurrency tokens ready", "testRunners", concurrency)

		return provider
	}

	provider.staged = true

	checkers := (concurrency + 1) / 2
	testRunners := concurrency - checkers

	if testRunners == 0 {
		provider.shared = true
		provider.testRunnerTokens <- 0

		slog.Debug("Concurrency tokens ready", "shared", true)

		return provider
	}

	for token := range checkers {
		provider.checkerTokens <- token
	}

	close(provider.checkerTokens)

	for token := range testRunners {
		provider.testRunnerTokens <- token
	}

	for token := testRunners; token < concurrency; token++ {
		provider.pending = append(provider.pending, token)
	}

	slog.Debug("Concurrency tokens ready", "checkers", checkers, "testRunners", testRunners, "pending", len(provider.pending))

	return provider
}

// Concurrency returns the total number of slots.
func (p *ConcurrencyTokenProvider) Concurrency() int {
	return p.concurrency
}

// CheckerTokens is the token stream of the checker pool.
func (p *ConcurrencyTokenProvider) CheckerTokens() <-chan int {
	return p.checkerTokens
}

// TestRunnerTokens is the token stream of the test runner pool. It is closed
// once every slot has been handed out.
func (p *ConcurrencyTokenProvider) TestRunnerTokens() <-chan int {
	return p.testRunnerTokens
}

// DryRunDone hands a shared single slot to the checkers once the dry run no
// longer needs it. It is safe to call more than once.
func (p *ConcurrencyTokenProvider) DryRunDone() {
	p.dryRunOnce.Do(func() {
		if !p.shared {
			return
		}

		slog.Debug("Dry run done, handing the slot to checkers")

		p.checkerTokens <- 0
		close(p.checkerTokens)
	})
}

// FreeCheckers moves the slots held by checkers to the test runners. It is safe
// to call more than once.
func (p *ConcurrencyTokenProvider) FreeCheckers() {
	p.freeOnce.Do(func() {
		if !p.staged {
			return
		}

		slog.Debug("Checkers done, handing slots to test runners", "tokens", len(p.pending))

		for _, token := range p.pending {
			p.testRunnerTokens <- token
		}

		p.pending = nil

		close(p.testRunnerTokens)
	})
}
