package game

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/scythe504/ninjahunt-backend/internal"
	"github.com/scythe504/ninjahunt-backend/internal/store"
)

// =============================================================================
// SCORE AGGREGATION & LEADERBOARD
// =============================================================================

// ScoreAggregator turns a round's rewards into persistent cumulative scores
// and derives the leaderboard from them. It is the only component that writes
// the scoreboard and the blocked set, and it only runs between rounds, so no
// locking is needed beyond what the store provides.
type ScoreAggregator struct {
	scoreboard store.KV
	blocked    store.KV
	notifier   Notifier
}

func NewScoreAggregator(scoreboard, blocked store.KV, notifier Notifier) *ScoreAggregator {
	return &ScoreAggregator{
		scoreboard: scoreboard,
		blocked:    blocked,
		notifier:   notifier,
	}
}

// ProcessRound filters blocked members out of the result, applies the round
// deltas to the scoreboard, and posts the round summary. Blocked members earn
// nothing and never appear in the summary.
func (a *ScoreAggregator) ProcessRound(ctx context.Context, result *internal.RoundResult, channelID string) (Summary, error) {
	blocked, err := a.blocked.ToMap(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load blocked members: %w", err)
	}
	for id := range blocked {
		if result.Has(id) {
			log.Printf("[ProcessRound] Dropping blocked member %s from round result", id)
			result.Remove(id)
		}
	}

	rewarded := result.Entries()
	for _, rp := range rewarded {
		if _, err := a.scoreboard.Increment(ctx, rp.MemberID, int64(rp.Points)); err != nil {
			return Summary{}, fmt.Errorf("apply points for member %s: %w", rp.MemberID, err)
		}
	}
	log.Printf("[ProcessRound] Updated scores for %d members", len(rewarded))

	summary := Summary{
		ChannelID: channelID,
		Detected:  len(rewarded) > 0,
		Rewarded:  rewarded,
	}
	if a.notifier != nil {
		if err := a.notifier.PostSummary(ctx, summary); err != nil {
			// Posting is best effort; the scores are already applied.
			log.Printf("[ProcessRound] Failed to post round summary: %v", err)
		}
	}
	return summary, nil
}

// Leaderboard reads the full scoreboard and ranks it. Members with equal
// scores share a rank and are marked tied; the rank counter then skips over
// the whole group, so scores {A:10, B:10, C:5} rank A=1, B=1, C=3.
func (a *ScoreAggregator) Leaderboard(ctx context.Context) ([]internal.LeaderboardRow, error) {
	scores, err := a.scoreboard.ToMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scoreboard: %w", err)
	}
	if len(scores) == 0 {
		return nil, nil
	}

	type memberScore struct {
		id    string
		score int64
	}
	sorted := make([]memberScore, 0, len(scores))
	for id, raw := range scores {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("[Leaderboard] Skipping member %s with non-integer score %q", id, raw)
			continue
		}
		sorted = append(sorted, memberScore{id: id, score: parsed})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].score != sorted[j].score {
			return sorted[i].score > sorted[j].score
		}
		return sorted[i].id < sorted[j].id
	})

	rows := make([]internal.LeaderboardRow, 0, len(sorted))
	rank := 1
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].score == sorted[i].score {
			j++
		}
		tied := j-i > 1
		for _, m := range sorted[i:j] {
			rows = append(rows, internal.LeaderboardRow{
				MemberID: m.id,
				Entry: internal.LeaderboardEntry{
					Rank:  rank,
					Score: m.score,
					Tied:  tied,
				},
			})
		}
		rank += j - i
		i = j
	}
	return rows, nil
}

// PersonalEntry returns the leaderboard entry for one member, or nil when the
// member has not scored yet.
func (a *ScoreAggregator) PersonalEntry(ctx context.Context, memberID string) (*internal.LeaderboardEntry, error) {
	rows, err := a.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.MemberID == memberID {
			entry := row.Entry
			return &entry, nil
		}
	}
	return nil, nil
}

// Block adds a member to the blocked set and removes their score.
func (a *ScoreAggregator) Block(ctx context.Context, memberID string) error {
	if err := a.blocked.Set(ctx, memberID, ""); err != nil {
		return fmt.Errorf("block member %s: %w", memberID, err)
	}
	if err := a.scoreboard.Delete(ctx, memberID); err != nil {
		return fmt.Errorf("remove score for member %s: %w", memberID, err)
	}
	return nil
}

func (a *ScoreAggregator) Unblock(ctx context.Context, memberID string) error {
	if err := a.blocked.Delete(ctx, memberID); err != nil {
		return fmt.Errorf("unblock member %s: %w", memberID, err)
	}
	return nil
}

// BlockedMembers lists the currently blocked member ids.
func (a *ScoreAggregator) BlockedMembers(ctx context.Context) ([]string, error) {
	blocked, err := a.blocked.ToMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blocked members: %w", err)
	}
	ids := make([]string, 0, len(blocked))
	for id := range blocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ClearScores wipes the whole scoreboard. Only the admin confirm flow calls
// this.
func (a *ScoreAggregator) ClearScores(ctx context.Context) error {
	if err := a.scoreboard.Clear(ctx); err != nil {
		return fmt.Errorf("clear scoreboard: %w", err)
	}
	return nil
}
