package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal"
)

// =============================================================================
// REACTION PHASE
// =============================================================================

// ErrNoMarkerEmoji is the configuration error raised when neither a transient
// custom emoji nor the fallback emoji is available. It fails the phase, not
// the game.
var ErrNoMarkerEmoji = errors.New("no marker emoji available")

// settleDelay absorbs reaction events still in flight when the phase tears
// down, before the listener is removed.
const settleDelay = 2 * time.Second

// ReactionConfig is the immutable slice of configuration the phase needs.
type ReactionConfig struct {
	Timeout   time.Duration
	MaxPoints int
}

// ReactionDeps are the collaborator capabilities used during the phase.
type ReactionDeps struct {
	Reactions ReactionSource
	Emoji     EmojiProvider
	Reactor   Reactor
	Members   MemberResolver
	Bot       BotIdentity
}

// ReactionPhase marks the hunted message with the ninja marker, collects timed
// reactions until the window closes, and scores first-time reactors by elapsed
// time.
type ReactionPhase struct {
	*lifecycle

	cfg         ReactionConfig
	deps        ReactionDeps
	target      Message
	markerNames []string
	rng         *rand.Rand

	done  *completion[struct{}]
	timer *time.Timer

	rewardMu  sync.Mutex
	marker    Emoji
	hasMarker bool
	transient bool
	rewarded  *internal.RoundResult

	settle      time.Duration
	unsubscribe func()
}

func NewReactionPhase(cfg ReactionConfig, deps ReactionDeps, target Message, markerNames []string, rng *rand.Rand, now func() time.Time) *ReactionPhase {
	return &ReactionPhase{
		lifecycle:   newLifecycle(now),
		cfg:         cfg,
		deps:        deps,
		target:      target,
		markerNames: markerNames,
		rng:         rng,
		done:        newCompletion[struct{}](),
		rewarded:    internal.NewRoundResult(),
		settle:      settleDelay,
	}
}

func (p *ReactionPhase) Enter(ctx context.Context) error {
	p.unsubscribe = p.deps.Reactions.SubscribeReactions(p.onReaction)

	marker, transient, err := p.prepareMarker(ctx)
	if err != nil {
		return err
	}
	p.rewardMu.Lock()
	p.marker = marker
	p.hasMarker = true
	p.transient = transient
	p.rewardMu.Unlock()

	if err := p.deps.Reactor.AddReaction(ctx, p.target.ChannelID, p.target.ID, marker); err != nil {
		return fmt.Errorf("add marker reaction: %w", err)
	}
	log.Printf("[ReactionPhase] Marked message %s in channel %s with emoji %s",
		p.target.ID, p.target.ChannelID, marker.Name)

	p.timer = time.AfterFunc(p.TimeRemaining(), func() {
		p.done.resolve(struct{}{})
	})
	return nil
}

// prepareMarker prefers a transient custom emoji under a random decorative
// name and falls back to the preconfigured static emoji.
func (p *ReactionPhase) prepareMarker(ctx context.Context) (Emoji, bool, error) {
	if len(p.markerNames) > 0 {
		name := p.markerNames[p.rng.Intn(len(p.markerNames))]
		created, err := p.deps.Emoji.CreateTransient(ctx, name)
		if err == nil {
			return created, true, nil
		}
		log.Printf("[ReactionPhase] Failed to create transient emoji %q: %v", name, err)
	}

	fallback, ok := p.deps.Emoji.FallbackEmoji()
	if !ok {
		return Emoji{}, false, ErrNoMarkerEmoji
	}
	return fallback, false, nil
}

func (p *ReactionPhase) Run(ctx context.Context) error {
	if _, ok := p.done.wait(ctx, p.cancelChan()); ok {
		p.markFinished()
		return nil
	}
	p.Cancel()
	return nil
}

func (p *ReactionPhase) Exit(ctx context.Context) {
	p.rewardMu.Lock()
	marker := p.marker
	hasMarker := p.hasMarker
	transient := p.transient
	p.rewardMu.Unlock()

	if hasMarker {
		safeAction("clear marker reaction", func() error {
			return p.deps.Reactor.ClearReaction(ctx, p.target.ChannelID, p.target.ID, marker)
		})
		if transient {
			safeAction("delete transient emoji", func() error {
				return p.deps.Emoji.DeleteEmoji(ctx, marker)
			})
		}
	}

	time.Sleep(p.settle)

	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	log.Printf("[ReactionPhase] Exited with status %s, %d members rewarded", p.Status(), p.rewarded.Len())
}

func (p *ReactionPhase) Cancel() {
	if p.markCancelled() {
		log.Printf("[ReactionPhase] Cancelling the current reaction phase")
		if p.timer != nil {
			p.timer.Stop()
		}
	}
}

// AwardedPoints returns this round's rewards in reaction arrival order.
func (p *ReactionPhase) AwardedPoints() *internal.RoundResult {
	return p.rewarded
}

// TimeRemaining is recomputed from wall clock on demand.
func (p *ReactionPhase) TimeRemaining() time.Duration {
	remaining := p.cfg.Timeout - p.elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// awardPoints computes the step-wise decayed reward for a reaction at the
// given elapsed time: maximal in the first interval, floored at 1, never 0.
func (p *ReactionPhase) awardPoints(elapsed time.Duration) int {
	secondsPerPoint := p.cfg.Timeout.Seconds() / float64(p.cfg.MaxPoints)
	lostPoints := int(elapsed.Seconds() / secondsPerPoint)
	points := p.cfg.MaxPoints - lostPoints
	if points < 1 {
		return 1
	}
	return points
}

// relevantReaction applies the acceptance rules. Everything that is not
// positively our marker, clicked by a fresh human member, is ignored.
func (p *ReactionPhase) relevantReaction(ev ReactionEvent) bool {
	if !p.Active() || !p.hasMarker {
		return false
	}

	if ev.UserID == p.deps.Bot.BotUserID() {
		return false
	}

	if ev.MessageID != p.target.ID {
		// Not the message the marker is on.
		return false
	}

	if ev.EmojiID == "" {
		// Unicode emoji, not our marker.
		return false
	}

	if ev.EmojiID != p.marker.ID {
		// Custom emoji, but not the current marker.
		return false
	}

	if p.rewarded.Has(ev.UserID) {
		return false
	}

	return true
}

// onReaction is the reaction-stream callback. Acceptance order follows event
// arrival order; the reward mutex serializes concurrent gateway deliveries so
// first-acceptance-wins holds without any further locking.
func (p *ReactionPhase) onReaction(ev ReactionEvent) {
	p.rewardMu.Lock()
	defer p.rewardMu.Unlock()

	if !p.relevantReaction(ev) {
		return
	}

	member := ev.Member
	if member == nil {
		fetched, err := p.deps.Members.FetchMember(context.Background(), ev.UserID)
		if err != nil {
			log.Printf("[ReactionPhase] Failed to resolve member %s: %v", ev.UserID, err)
			return
		}
		member = fetched
	}

	points := p.awardPoints(p.elapsed())
	p.rewarded.Add(internal.ReactionPoints{
		MemberID: member.ID,
		Username: member.Username,
		Points:   points,
	})
	log.Printf("[ReactionPhase] Rewarded member %s (%s) with %d points", member.ID, member.Username, points)
}
