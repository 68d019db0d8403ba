package game

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// =============================================================================
// SLEEPING PHASE
// =============================================================================

// SleepingPhase inserts a randomized pause between rounds so round timing is
// not perfectly predictable. Its single result is the wake-up itself.
type SleepingPhase struct {
	*lifecycle

	duration time.Duration
	done     *completion[struct{}]
	timer    *time.Timer
}

// NewSleepingPhase computes duration = cooldown + a uniformly random whole
// number of seconds in [1, maxJitter]. A non-positive maxJitter adds nothing.
func NewSleepingPhase(cooldown time.Duration, maxJitter int, rng *rand.Rand, now func() time.Time) *SleepingPhase {
	jitter := time.Duration(0)
	if maxJitter > 0 {
		jitter = time.Duration(1+rng.Intn(maxJitter)) * time.Second
	}
	return &SleepingPhase{
		lifecycle: newLifecycle(now),
		duration:  cooldown + jitter,
		done:      newCompletion[struct{}](),
	}
}

func (p *SleepingPhase) Enter(ctx context.Context) error {
	remaining := p.TimeRemaining()
	until := time.Now().Add(remaining)
	log.Printf("[SleepingPhase] Sleeping %s until %s", remaining, until.Format("2006-01-02 15:04:05"))
	p.timer = time.AfterFunc(remaining, func() {
		p.done.resolve(struct{}{})
	})
	return nil
}

func (p *SleepingPhase) Run(ctx context.Context) error {
	if _, ok := p.done.wait(ctx, p.cancelChan()); ok {
		p.markFinished()
		return nil
	}
	p.Cancel()
	return nil
}

func (p *SleepingPhase) Exit(ctx context.Context) {
	if p.timer != nil {
		p.timer.Stop()
	}
	log.Printf("[SleepingPhase] Exited with status %s", p.Status())
}

// Cancel stops the wake-up timer without ever resolving the result.
func (p *SleepingPhase) Cancel() {
	if p.markCancelled() {
		log.Printf("[SleepingPhase] Cancelling the current sleeping phase")
		if p.timer != nil {
			p.timer.Stop()
		}
	}
}

// Duration is the full randomized sleep interval chosen at construction.
func (p *SleepingPhase) Duration() time.Duration {
	return p.duration
}

// TimeRemaining is recomputed from wall clock on every call so cancellation
// mid-wait stays consistent with real elapsed time.
func (p *SleepingPhase) TimeRemaining() time.Duration {
	remaining := p.duration - p.elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}
