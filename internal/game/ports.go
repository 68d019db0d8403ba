package game

import (
	"context"

	"github.com/scythe504/ninjahunt-backend/internal"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================
// The game core never talks to Discord directly. Everything it needs from the
// platform comes in through these interfaces; internal/discord implements them
// on top of discordgo, tests implement them with in-memory fakes.

// Message is one chat message as seen by the hunting filter.
type Message struct {
	ID         string
	GuildID    string
	ChannelID  string
	CategoryID string
	AuthorID   string
	AuthorBot  bool
}

// ReactionEvent is one reaction-add event from the gateway. Member may be nil
// when the gateway did not include resolved member data.
type ReactionEvent struct {
	UserID    string
	MessageID string
	ChannelID string
	EmojiID   string // empty for unicode emoji
	EmojiName string
	Member    *Member
}

type Member struct {
	ID       string
	Username string
}

// Emoji identifies a reaction emoji. Custom emoji carry a non-empty ID.
type Emoji struct {
	ID   string
	Name string
}

// MessageSource delivers new guild messages. Subscribe returns the matching
// unsubscribe function; a phase holds at most one live subscription.
type MessageSource interface {
	SubscribeMessages(handler func(Message)) (unsubscribe func())
}

// ReactionSource delivers reaction-add events, same subscription contract.
type ReactionSource interface {
	SubscribeReactions(handler func(ReactionEvent)) (unsubscribe func())
}

// EmojiProvider manages the marker emoji capability.
type EmojiProvider interface {
	// CreateTransient creates a short-lived custom emoji with the given name.
	CreateTransient(ctx context.Context, name string) (Emoji, error)
	DeleteEmoji(ctx context.Context, e Emoji) error
	// FallbackEmoji returns the preconfigured static marker, if any.
	FallbackEmoji() (Emoji, bool)
}

// Reactor adds and clears the bot's own reactions on a message.
type Reactor interface {
	AddReaction(ctx context.Context, channelID, messageID string, e Emoji) error
	ClearReaction(ctx context.Context, channelID, messageID string, e Emoji) error
}

// MemberResolver fetches member data when the reaction event carried none.
type MemberResolver interface {
	FetchMember(ctx context.Context, userID string) (*Member, error)
}

// PermissionChecker resolves whether an ordinary member can read and send in a
// channel, for the public-only hunting mode.
type PermissionChecker interface {
	IsPublicChannel(channelID string) bool
}

// Notifier posts the round summary to the fixed summary channel.
type Notifier interface {
	PostSummary(ctx context.Context, summary Summary) error
}

// Summary describes the outcome of one round for the summary channel and feed.
type Summary struct {
	ChannelID string
	Detected  bool
	Rewarded  []internal.ReactionPoints
}

// Publisher pushes live updates (state changes, round summaries) to the
// spectator feed. Implementations must not block.
type Publisher interface {
	Publish(msgType string, data any)
}

// BotIdentity exposes the id of the service account so its own reactions are
// never rewarded.
type BotIdentity interface {
	BotUserID() string
}

// Gateway bundles everything the controller needs from the chat platform.
type Gateway interface {
	MessageSource
	ReactionSource
	EmojiProvider
	Reactor
	MemberResolver
	PermissionChecker
	Notifier
	BotIdentity
}
