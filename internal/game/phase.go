package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal"
)

// =============================================================================
// PHASE LIFECYCLE
// =============================================================================

// Phase is one stage of a round. Enter acquires the phase's resources
// (subscriptions, timers), Run blocks until the phase's single result is
// resolved or the phase is cancelled, Exit releases everything. Exit runs
// exactly once on every path out of a phase, including cancellation and
// failure; RunPhase below enforces that.
type Phase interface {
	Enter(ctx context.Context) error
	Run(ctx context.Context) error
	Exit(ctx context.Context)
	Cancel()
	Status() internal.PhaseStatus
	Active() bool
}

// RunPhase drives a phase through its full lifecycle. If Enter fails, the
// phase is cancelled and Exit still runs. A panic escaping Run is converted
// into an error after Exit has executed, so the controller's loop can log it
// and move on instead of dying.
func RunPhase(ctx context.Context, p Phase) (err error) {
	if enterErr := p.Enter(ctx); enterErr != nil {
		p.Cancel()
		p.Exit(ctx)
		return fmt.Errorf("phase enter: %w", enterErr)
	}

	defer func() {
		r := recover()
		p.Exit(ctx)
		if r != nil {
			log.Printf("[RunPhase] Phase body panicked: %v", r)
			err = fmt.Errorf("phase run panicked: %v", r)
		}
	}()

	return p.Run(ctx)
}

// -----------------------------------------------------------------------------
// lifecycle: shared status bookkeeping embedded by every phase
// -----------------------------------------------------------------------------

type lifecycle struct {
	mu        sync.Mutex
	status    internal.PhaseStatus
	started   time.Time
	nowFn     func() time.Time
	cancelled chan struct{}
}

func newLifecycle(now func() time.Time) *lifecycle {
	if now == nil {
		now = time.Now
	}
	return &lifecycle{
		status:    internal.PhaseActive,
		started:   now(),
		nowFn:     now,
		cancelled: make(chan struct{}),
	}
}

func (l *lifecycle) Status() internal.PhaseStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *lifecycle) Active() bool {
	return l.Status() == internal.PhaseActive
}

func (l *lifecycle) elapsed() time.Duration {
	return l.nowFn().Sub(l.started)
}

// markFinished moves Active -> Finished. Returns false if the phase already
// reached a terminal status.
func (l *lifecycle) markFinished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != internal.PhaseActive {
		return false
	}
	l.status = internal.PhaseFinished
	return true
}

// markCancelled moves Active -> Cancelled. Cancelling a non-Active phase is a
// no-op, which makes Cancel idempotent.
func (l *lifecycle) markCancelled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != internal.PhaseActive {
		return false
	}
	l.status = internal.PhaseCancelled
	close(l.cancelled)
	return true
}

func (l *lifecycle) cancelChan() <-chan struct{} {
	return l.cancelled
}

// -----------------------------------------------------------------------------
// completion: single-assignment result signal
// -----------------------------------------------------------------------------

// completion holds a phase's single eventual result. resolve wins at most
// once; wait blocks until the result is set, the phase is cancelled, or the
// context ends.
type completion[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func newCompletion[T any]() *completion[T] {
	return &completion[T]{done: make(chan struct{})}
}

func (c *completion[T]) resolve(v T) bool {
	resolved := false
	c.once.Do(func() {
		c.value = v
		resolved = true
		close(c.done)
	})
	return resolved
}

func (c *completion[T]) resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// wait returns (value, true) when the result was resolved, or (zero, false)
// when the phase was cancelled or the context ended first.
func (c *completion[T]) wait(ctx context.Context, cancelled <-chan struct{}) (T, bool) {
	select {
	case <-c.done:
		return c.value, true
	case <-cancelled:
		var zero T
		return zero, false
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// safeAction runs a best-effort external call, logging instead of failing the
// phase when the platform rejects it.
func safeAction(what string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("[safeAction] Failed to %s: %v", what, err)
	}
}
