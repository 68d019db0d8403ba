package game

import (
	"context"
	"errors"
	"testing"

	"github.com/scythe504/ninjahunt-backend/internal"
)

// scriptedPhase lets tests control every lifecycle step.
type scriptedPhase struct {
	*lifecycle

	enterErr  error
	runPanics bool
	enters    int
	runs      int
	exits     int
}

func newScriptedPhase() *scriptedPhase {
	return &scriptedPhase{lifecycle: newLifecycle(nil)}
}

func (p *scriptedPhase) Enter(ctx context.Context) error {
	p.enters++
	return p.enterErr
}

func (p *scriptedPhase) Run(ctx context.Context) error {
	p.runs++
	if p.runPanics {
		panic("scripted failure")
	}
	p.markFinished()
	return nil
}

func (p *scriptedPhase) Exit(ctx context.Context) {
	p.exits++
}

func (p *scriptedPhase) Cancel() {
	p.markCancelled()
}

func TestRunPhaseHappyPath(t *testing.T) {
	p := newScriptedPhase()
	if err := RunPhase(context.Background(), p); err != nil {
		t.Fatalf("RunPhase() error = %v", err)
	}
	if p.enters != 1 || p.runs != 1 || p.exits != 1 {
		t.Fatalf("lifecycle calls = %d/%d/%d, want 1/1/1", p.enters, p.runs, p.exits)
	}
	if got := p.Status(); got != internal.PhaseFinished {
		t.Fatalf("Status() = %s, want %s", got, internal.PhaseFinished)
	}
}

func TestRunPhaseEnterFailureStillExits(t *testing.T) {
	p := newScriptedPhase()
	p.enterErr = errors.New("no resources")

	err := RunPhase(context.Background(), p)
	if err == nil {
		t.Fatal("RunPhase() should fail when Enter fails")
	}
	if p.runs != 0 {
		t.Fatal("Run must not execute after a failed Enter")
	}
	if p.exits != 1 {
		t.Fatalf("Exit ran %d times, want 1", p.exits)
	}
	if got := p.Status(); got != internal.PhaseCancelled {
		t.Fatalf("Status() = %s, want %s", got, internal.PhaseCancelled)
	}
}

func TestRunPhasePanicBecomesError(t *testing.T) {
	p := newScriptedPhase()
	p.runPanics = true

	err := RunPhase(context.Background(), p)
	if err == nil {
		t.Fatal("RunPhase() should surface a panic as an error")
	}
	if p.exits != 1 {
		t.Fatalf("Exit ran %d times, want 1", p.exits)
	}
}

func TestLifecycleTerminalStatusIsFinal(t *testing.T) {
	l := newLifecycle(nil)
	if !l.markFinished() {
		t.Fatal("first markFinished should win")
	}
	if l.markCancelled() {
		t.Fatal("markCancelled must not override Finished")
	}
	if got := l.Status(); got != internal.PhaseFinished {
		t.Fatalf("Status() = %s, want %s", got, internal.PhaseFinished)
	}
}

func TestLifecycleCancelIsIdempotent(t *testing.T) {
	l := newLifecycle(nil)
	if !l.markCancelled() {
		t.Fatal("first markCancelled should win")
	}
	// A second cancel must neither panic (double close) nor change anything.
	if l.markCancelled() {
		t.Fatal("second markCancelled should be a no-op")
	}
	if l.markFinished() {
		t.Fatal("markFinished must not override Cancelled")
	}
}

func TestCompletionResolvesAtMostOnce(t *testing.T) {
	c := newCompletion[int]()
	if c.resolved() {
		t.Fatal("fresh completion must not be resolved")
	}
	if !c.resolve(42) {
		t.Fatal("first resolve should win")
	}
	if c.resolve(7) {
		t.Fatal("second resolve should lose")
	}

	v, ok := c.wait(context.Background(), make(chan struct{}))
	if !ok || v != 42 {
		t.Fatalf("wait() = (%d, %v), want (42, true)", v, ok)
	}
}

func TestCompletionWaitObservesCancellation(t *testing.T) {
	c := newCompletion[int]()
	cancelled := make(chan struct{})
	close(cancelled)

	if _, ok := c.wait(context.Background(), cancelled); ok {
		t.Fatal("wait() must report failure when the phase was cancelled")
	}
}
