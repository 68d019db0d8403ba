package game

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal"
	"github.com/scythe504/ninjahunt-backend/internal/store"
)

// =============================================================================
// GAME CONTROLLER
// =============================================================================

const runningKey = "running"

// ErrInvalidList rejects permissions commands naming an unknown list.
var ErrInvalidList = errors.New("invalid list type")

// ErrInvalidID rejects permissions commands with a non-numeric identifier.
var ErrInvalidID = errors.New("invalid snowflake id")

var permissionListNames = []string{
	"categories_allow",
	"categories_deny",
	"channels_allow",
	"channels_deny",
}

// ControllerConfig is the immutable game tuning handed to the controller at
// construction.
type ControllerConfig struct {
	GuildID               string
	PublicOnly            bool
	Cooldown              time.Duration
	MaxTimeJitter         int
	ProbabilityMultiplier float64
	MaxPoints             int
	ReactionTimeout       time.Duration
	AutoStart             bool
	Channels              internal.AllowDenyGroup
	Categories            internal.AllowDenyGroup
	MarkerNames           []string
}

// Controller owns the run/stop flag and drives Sleeping -> Hunting ->
// Reaction -> scoring in a loop. A failed cycle is logged and the loop
// restarts, so a single bad round never stops the game for good.
type Controller struct {
	cfg    ControllerConfig
	gw     Gateway
	agg    *ScoreAggregator
	config store.KV
	feed   Publisher

	mu         sync.Mutex
	running    bool
	state      internal.GameState
	current    Phase
	loopDone   chan struct{}
	channels   internal.AllowDenyGroup
	categories internal.AllowDenyGroup

	rng *rand.Rand
}

func NewController(cfg ControllerConfig, gw Gateway, agg *ScoreAggregator, configStore store.KV, feed Publisher) *Controller {
	return &Controller{
		cfg:        cfg,
		gw:         gw,
		agg:        agg,
		config:     configStore,
		feed:       feed,
		state:      internal.StateNotRunning,
		channels:   cfg.Channels,
		categories: cfg.Categories,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Bootstrap restores the persisted running flag (honoring the auto-start
// default when nothing was persisted) and starts the loop if it was set.
func (c *Controller) Bootstrap(ctx context.Context) {
	running := c.cfg.AutoStart
	if raw, ok, err := c.config.Get(ctx, runningKey); err != nil {
		log.Printf("[Bootstrap] Failed to read persisted running flag: %v", err)
	} else if ok {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			log.Printf("[Bootstrap] Ignoring malformed running flag %q", raw)
		} else {
			running = parsed
		}
	}

	if !running {
		log.Printf("[Bootstrap] The game stays stopped")
		return
	}

	c.mu.Lock()
	c.running = true
	c.startLoopLocked(ctx)
	c.mu.Unlock()
}

// Start is idempotent: starting a running game reports false.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	if c.running && c.loopAliveLocked() {
		c.mu.Unlock()
		return false
	}
	c.running = true
	c.startLoopLocked(ctx)
	c.mu.Unlock()

	if err := c.config.Set(ctx, runningKey, "true"); err != nil {
		log.Printf("[Start] Failed to persist running flag: %v", err)
	}
	log.Printf("[Start] Started the game")
	return true
}

// Stop clears the running flag and cancels the phase in flight. The loop
// notices at the next phase boundary and exits without scoring the cycle.
func (c *Controller) Stop(ctx context.Context) bool {
	c.mu.Lock()
	if !c.running && !c.loopAliveLocked() {
		c.mu.Unlock()
		return false
	}
	c.running = false
	current := c.current
	c.mu.Unlock()

	if current != nil {
		current.Cancel()
	}
	if err := c.config.Set(ctx, runningKey, "false"); err != nil {
		log.Printf("[Stop] Failed to persist running flag: %v", err)
	}
	c.setState(internal.StateNotRunning)
	log.Printf("[Stop] Stopped the game")
	return true
}

// Running reports whether the flag is set and the loop goroutine is alive.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.loopAliveLocked()
}

func (c *Controller) State() internal.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Aggregator() *ScoreAggregator {
	return c.agg
}

func (c *Controller) loopAliveLocked() bool {
	if c.loopDone == nil {
		return false
	}
	select {
	case <-c.loopDone:
		return false
	default:
		return true
	}
}

func (c *Controller) startLoopLocked(ctx context.Context) {
	if c.loopAliveLocked() {
		return
	}
	done := make(chan struct{})
	c.loopDone = done
	go c.loop(ctx, done)
}

func (c *Controller) runningFlag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) setCurrent(p Phase) {
	c.mu.Lock()
	c.current = p
	c.mu.Unlock()
}

func (c *Controller) setState(state internal.GameState) {
	c.mu.Lock()
	c.state = state
	running := c.running
	c.mu.Unlock()

	log.Printf("[Controller] The game is now entering %s", state)
	if c.feed != nil {
		c.feed.Publish("status", internal.StatusData{Running: running, State: state})
	}
}

// loop keeps running full cycles while the flag is set. Whatever escapes a
// cycle is logged and the loop continues with a fresh one.
func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for c.runningFlag() && ctx.Err() == nil {
		c.runCycle(ctx)
	}

	c.setState(internal.StateNotRunning)
	log.Printf("[Controller] The game is stopped")
}

func (c *Controller) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Controller] Something went wrong, restarting the loop: %v", r)
		}
	}()

	c.setState(internal.StateSleeping)
	sleeping := NewSleepingPhase(c.cfg.Cooldown, c.cfg.MaxTimeJitter, c.rng, nil)
	c.setCurrent(sleeping)
	if err := RunPhase(ctx, sleeping); err != nil {
		log.Printf("[Controller] Sleeping phase failed: %v", err)
		return
	}

	if !c.runningFlag() {
		return
	}

	c.syncAllowDeny(ctx)

	c.setState(internal.StateHunting)
	hunting := NewHuntingPhase(HuntConfig{
		GuildID:    c.cfg.GuildID,
		PublicOnly: c.cfg.PublicOnly,
		Multiplier: c.cfg.ProbabilityMultiplier,
		Channels:   c.currentChannels(),
		Categories: c.currentCategories(),
	}, c.gw, c.gw, c.rng, nil)
	c.setCurrent(hunting)
	if err := RunPhase(ctx, hunting); err != nil {
		log.Printf("[Controller] Hunting phase failed: %v", err)
		return
	}
	target, ok := hunting.Target()
	if !ok || !c.runningFlag() {
		return
	}

	c.setState(internal.StateActiveReaction)
	reaction := NewReactionPhase(
		ReactionConfig{Timeout: c.cfg.ReactionTimeout, MaxPoints: c.cfg.MaxPoints},
		ReactionDeps{Reactions: c.gw, Emoji: c.gw, Reactor: c.gw, Members: c.gw, Bot: c.gw},
		target, c.cfg.MarkerNames, c.rng, nil,
	)
	c.setCurrent(reaction)
	if err := RunPhase(ctx, reaction); err != nil {
		log.Printf("[Controller] Reaction phase failed: %v", err)
		return
	}

	if !c.runningFlag() {
		return
	}

	summary, err := c.agg.ProcessRound(ctx, reaction.AwardedPoints(), target.ChannelID)
	if err != nil {
		log.Printf("[Controller] Failed to process round results: %v", err)
		return
	}
	if c.feed != nil {
		c.feed.Publish("round_summary", internal.RoundSummaryData{
			ChannelID: summary.ChannelID,
			Detected:  summary.Detected,
			Rewarded:  summary.Rewarded,
		})
	}

	log.Printf("[Controller] Finished current game loop")
}

func (c *Controller) currentChannels() internal.AllowDenyGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels
}

func (c *Controller) currentCategories() internal.AllowDenyGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categories
}

// =============================================================================
// ALLOW/DENY SYNC & PERMISSIONS ADMIN
// =============================================================================

// syncAllowDeny reconciles the in-memory allow/deny sets with the persistent
// store before each hunt. A stored value wins; otherwise the configured
// default seeds the store.
func (c *Controller) syncAllowDeny(ctx context.Context) {
	for _, listName := range permissionListNames {
		current := c.lookupSet(listName)

		raw, ok, err := c.config.Get(ctx, listName)
		if err != nil {
			log.Printf("[syncAllowDeny] Failed to read %s: %v", listName, err)
			continue
		}
		if ok {
			c.assignSet(listName, internal.ParseAllowDenySet(raw))
			continue
		}
		if err := c.config.Set(ctx, listName, current.Encode()); err != nil {
			log.Printf("[syncAllowDeny] Failed to seed %s: %v", listName, err)
		}
	}
}

func (c *Controller) lookupSet(listName string) internal.AllowDenySet {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch listName {
	case "categories_allow":
		return c.categories.Allow
	case "categories_deny":
		return c.categories.Deny
	case "channels_allow":
		return c.channels.Allow
	case "channels_deny":
		return c.channels.Deny
	}
	return internal.NewAllowDenySet()
}

func (c *Controller) assignSet(listName string, set internal.AllowDenySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch listName {
	case "categories_allow":
		c.categories.Allow = set
	case "categories_deny":
		c.categories.Deny = set
	case "channels_allow":
		c.channels.Allow = set
	case "channels_deny":
		c.channels.Deny = set
	}
}

func validListName(listName string) bool {
	for _, name := range permissionListNames {
		if name == listName {
			return true
		}
	}
	return false
}

// PermissionAdd appends an id to one of the four allow/deny lists. Invalid
// input is rejected without touching any state.
func (c *Controller) PermissionAdd(ctx context.Context, listName, id string) error {
	if !validListName(listName) {
		return ErrInvalidList
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return ErrInvalidID
	}

	c.syncAllowDeny(ctx)
	set := c.lookupSet(listName)
	updated := internal.NewAllowDenySet(append(set.IDs(), id)...)
	if set.IsWildcard() {
		updated = internal.NewAllowDenySet(append(updated.IDs(), internal.Wildcard)...)
	}
	if err := c.config.Set(ctx, listName, updated.Encode()); err != nil {
		return err
	}
	c.assignSet(listName, updated)
	return nil
}

// PermissionRemove drops an id from one of the lists.
func (c *Controller) PermissionRemove(ctx context.Context, listName, id string) error {
	if !validListName(listName) {
		return ErrInvalidList
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return ErrInvalidID
	}

	c.syncAllowDeny(ctx)
	set := c.lookupSet(listName)
	kept := make([]string, 0, set.Len())
	for _, existing := range set.IDs() {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if set.IsWildcard() {
		kept = append(kept, internal.Wildcard)
	}
	updated := internal.NewAllowDenySet(kept...)
	if err := c.config.Set(ctx, listName, updated.Encode()); err != nil {
		return err
	}
	c.assignSet(listName, updated)
	return nil
}

// PermissionList renders the current content of one of the lists.
func (c *Controller) PermissionList(ctx context.Context, listName string) (string, error) {
	if !validListName(listName) {
		return "", ErrInvalidList
	}
	c.syncAllowDeny(ctx)
	return c.lookupSet(listName).Encode(), nil
}
