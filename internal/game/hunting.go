package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal"
)

// =============================================================================
// HUNTING PHASE
// =============================================================================

// HuntConfig is the immutable slice of configuration the hunt needs.
type HuntConfig struct {
	GuildID    string
	PublicOnly bool
	Multiplier float64
	Channels   internal.AllowDenyGroup
	Categories internal.AllowDenyGroup
}

// HuntingPhase watches the live message stream and probabilistically picks
// exactly one eligible message to become this round's target. The chance of
// selection grows with every eligible message examined, so the hunt terminates
// in expectation without making the first message a certainty.
type HuntingPhase struct {
	*lifecycle

	cfg   HuntConfig
	src   MessageSource
	perms PermissionChecker
	done  *completion[Message]

	huntMu sync.Mutex
	rng    *rand.Rand
	k      int

	unsubscribe func()
}

func NewHuntingPhase(cfg HuntConfig, src MessageSource, perms PermissionChecker, rng *rand.Rand, now func() time.Time) *HuntingPhase {
	return &HuntingPhase{
		lifecycle: newLifecycle(now),
		cfg:       cfg,
		src:       src,
		perms:     perms,
		done:      newCompletion[Message](),
		rng:       rng,
	}
}

func (p *HuntingPhase) Enter(ctx context.Context) error {
	log.Printf("[HuntingPhase] Subscribing to the message stream")
	p.unsubscribe = p.src.SubscribeMessages(p.observe)
	return nil
}

func (p *HuntingPhase) Run(ctx context.Context) error {
	if _, ok := p.done.wait(ctx, p.cancelChan()); ok {
		p.markFinished()
		return nil
	}
	p.Cancel()
	return nil
}

func (p *HuntingPhase) Exit(ctx context.Context) {
	// The listener is removed unconditionally, whatever ended the phase.
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	log.Printf("[HuntingPhase] Exited with status %s", p.Status())
}

func (p *HuntingPhase) Cancel() {
	if p.markCancelled() {
		log.Printf("[HuntingPhase] Cancelling the current hunting phase")
	}
}

// Target returns the selected message. Valid only once the phase Finished.
func (p *HuntingPhase) Target() (Message, bool) {
	if !p.done.resolved() {
		return Message{}, false
	}
	return p.done.value, true
}

// observe is the message-stream callback. It must not block the gateway; all
// work here is in-memory.
func (p *HuntingPhase) observe(msg Message) {
	if !p.Active() || p.ignoredMessage(msg) {
		return
	}

	p.huntMu.Lock()
	p.k++
	probability := float64(p.k) / 100
	if probability > 1.0 {
		probability = 1.0
	}
	draw := p.rng.Float64()
	p.huntMu.Unlock()

	// The k-th eligible message is selected with min(k/100, 1) * multiplier.
	if draw > p.cfg.Multiplier*probability {
		return
	}

	if p.done.resolve(msg) {
		log.Printf("[HuntingPhase] Selected message %s in channel %s after %d eligible messages",
			msg.ID, msg.ChannelID, p.k)
	}
}

// ignoredMessage applies the eligibility filter. Default is to ignore unless a
// rule positively resolves the message.
func (p *HuntingPhase) ignoredMessage(msg Message) bool {
	if msg.GuildID != p.cfg.GuildID {
		return true
	}

	if msg.AuthorBot {
		return true
	}

	if p.cfg.PublicOnly && !p.perms.IsPublicChannel(msg.ChannelID) {
		return true
	}

	if p.cfg.Channels.Deny.Contains(msg.ChannelID) {
		return true
	}

	if p.cfg.Channels.Allow.Contains(msg.ChannelID) {
		return false
	}

	if p.cfg.Categories.Deny.Contains(msg.CategoryID) {
		return true
	}

	if p.cfg.Categories.Allow.Contains(msg.CategoryID) {
		return false
	}

	return true
}
