package internal

import (
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// GAME STATE & PHASE STATUS
// =============================================================================

type GameState string

const (
	StateNotRunning     GameState = "not_running"
	StateSleeping       GameState = "sleeping"
	StateHunting        GameState = "hunting"
	StateActiveReaction GameState = "active_reaction"
)

// PhaseStatus is the lifecycle state of a single phase. A phase starts Active
// and moves to exactly one of Finished or Cancelled, never both.
type PhaseStatus string

const (
	PhaseActive    PhaseStatus = "active"
	PhaseFinished  PhaseStatus = "finished"
	PhaseCancelled PhaseStatus = "cancelled"
)

// =============================================================================
// ROUND RESULTS & SCORING
// =============================================================================

// ReactionPoints is the reward earned by one member in one round.
type ReactionPoints struct {
	MemberID string `json:"member_id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// RoundResult collects the rewards of a single round keyed by member id,
// preserving reaction arrival order. A member appears at most once.
type RoundResult struct {
	order   []string
	entries map[string]ReactionPoints
}

func NewRoundResult() *RoundResult {
	return &RoundResult{entries: make(map[string]ReactionPoints)}
}

// Add records a reward for a member. The first reward per member wins; later
// calls for the same member are ignored and return false.
func (r *RoundResult) Add(rp ReactionPoints) bool {
	if _, ok := r.entries[rp.MemberID]; ok {
		return false
	}
	r.entries[rp.MemberID] = rp
	r.order = append(r.order, rp.MemberID)
	return true
}

func (r *RoundResult) Has(memberID string) bool {
	_, ok := r.entries[memberID]
	return ok
}

func (r *RoundResult) Len() int {
	return len(r.order)
}

// Entries returns the rewards in reaction arrival order.
func (r *RoundResult) Entries() []ReactionPoints {
	out := make([]ReactionPoints, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Remove drops a member's reward, keeping the order of the rest intact.
func (r *RoundResult) Remove(memberID string) {
	if _, ok := r.entries[memberID]; !ok {
		return
	}
	delete(r.entries, memberID)
	for i, id := range r.order {
		if id == memberID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// LeaderboardEntry is a derived ranking position, recomputed on demand from the
// persistent scoreboard and never stored.
type LeaderboardEntry struct {
	Rank  int   `json:"rank"`
	Score int64 `json:"score"`
	Tied  bool  `json:"tied"`
}

// LeaderboardRow pairs a member with their entry in rank order.
type LeaderboardRow struct {
	MemberID string           `json:"member_id"`
	Entry    LeaderboardEntry `json:"entry"`
}

// =============================================================================
// ALLOW / DENY SETS
// =============================================================================

// Wildcard makes an AllowDenySet match every identifier.
const Wildcard = "*"

// AllowDenySet holds channel or category ids, or the single wildcard entry.
type AllowDenySet struct {
	wildcard bool
	ids      map[string]struct{}
}

func NewAllowDenySet(ids ...string) AllowDenySet {
	s := AllowDenySet{ids: make(map[string]struct{})}
	for _, id := range ids {
		if id == Wildcard {
			s.wildcard = true
			continue
		}
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Contains short-circuits to true for a wildcard set.
func (s AllowDenySet) Contains(id string) bool {
	if s.wildcard {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

func (s AllowDenySet) IsWildcard() bool { return s.wildcard }

func (s AllowDenySet) Len() int { return len(s.ids) }

// IDs returns the ids sorted numerically where possible, for stable output.
func (s AllowDenySet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.ParseUint(out[i], 10, 64)
		b, errB := strconv.ParseUint(out[j], 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// Encode renders the set for the persistent store: the wildcard, or a
// comma-joined id list.
func (s AllowDenySet) Encode() string {
	if s.wildcard {
		return Wildcard
	}
	return strings.Join(s.IDs(), ",")
}

// ParseAllowDenySet is the inverse of Encode.
func ParseAllowDenySet(raw string) AllowDenySet {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return NewAllowDenySet(ids...)
}

// AllowDenyGroup is the allow/deny pair kept per id kind (channels, categories).
type AllowDenyGroup struct {
	Allow AllowDenySet
	Deny  AllowDenySet
}

// =============================================================================
// FEED & API MESSAGES
// =============================================================================

// Message is the typed envelope used on the websocket feed.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// StatusData reports whether the game loop is running and which phase it is in.
type StatusData struct {
	Running bool      `json:"running"`
	State   GameState `json:"state"`
}

// RoundSummaryData is pushed on the feed after every completed round.
type RoundSummaryData struct {
	ChannelID string           `json:"channel_id"`
	Detected  bool             `json:"detected"`
	Rewarded  []ReactionPoints `json:"rewarded"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
