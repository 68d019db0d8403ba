package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/scythe504/ninjahunt-backend/internal/config"
	"github.com/scythe504/ninjahunt-backend/internal/game"
)

// =============================================================================
// DISCORD GATEWAY ADAPTER
// =============================================================================
// Gateway adapts a discordgo session to the collaborator contracts the game
// core consumes. The core never sees a discordgo type.

type Gateway struct {
	cfg     config.Config
	session *discordgo.Session

	readyOnce sync.Once
	ready     chan struct{}
}

func NewGateway(cfg config.Config) (*Gateway, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildEmojis |
		discordgo.IntentsMessageContent

	g := &Gateway{
		cfg:     cfg,
		session: session,
		ready:   make(chan struct{}),
	}
	session.AddHandler(g.onGuildCreate)
	return g, nil
}

// Session exposes the raw session for the command surface.
func (g *Gateway) Session() *discordgo.Session {
	return g.session
}

func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	if event.ID != g.cfg.GuildID {
		return
	}
	g.readyOnce.Do(func() {
		log.Printf("[Gateway] Guild %s is ready", event.ID)
		close(g.ready)
	})
}

// WaitUntilGuildReady blocks until the configured guild is cached.
func (g *Gateway) WaitUntilGuildReady(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// MessageSource / ReactionSource
// -----------------------------------------------------------------------------

func (g *Gateway) SubscribeMessages(handler func(game.Message)) func() {
	return g.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		handler(game.Message{
			ID:         m.ID,
			GuildID:    m.GuildID,
			ChannelID:  m.ChannelID,
			CategoryID: g.categoryID(m.ChannelID),
			AuthorID:   m.Author.ID,
			AuthorBot:  m.Author.Bot,
		})
	})
}

func (g *Gateway) SubscribeReactions(handler func(game.ReactionEvent)) func() {
	return g.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageReactionAdd) {
		ev := game.ReactionEvent{
			UserID:    m.UserID,
			MessageID: m.MessageID,
			ChannelID: m.ChannelID,
			EmojiID:   m.Emoji.ID,
			EmojiName: m.Emoji.Name,
		}
		if m.Member != nil && m.Member.User != nil {
			ev.Member = &game.Member{
				ID:       m.Member.User.ID,
				Username: m.Member.User.Username,
			}
		}
		handler(ev)
	})
}

func (g *Gateway) categoryID(channelID string) string {
	channel, err := g.session.State.Channel(channelID)
	if err != nil || channel == nil {
		return ""
	}
	return channel.ParentID
}

// -----------------------------------------------------------------------------
// EmojiProvider / Reactor
// -----------------------------------------------------------------------------

func (g *Gateway) CreateTransient(ctx context.Context, name string) (game.Emoji, error) {
	if g.cfg.MarkerImageURI == "" {
		return game.Emoji{}, fmt.Errorf("no marker image configured")
	}
	created, err := g.session.GuildEmojiCreate(g.cfg.GuildID, &discordgo.EmojiParams{
		Name:  name,
		Image: g.cfg.MarkerImageURI,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return game.Emoji{}, fmt.Errorf("create emoji %q: %w", name, err)
	}
	return game.Emoji{ID: created.ID, Name: created.Name}, nil
}

func (g *Gateway) DeleteEmoji(ctx context.Context, e game.Emoji) error {
	return g.session.GuildEmojiDelete(g.cfg.GuildID, e.ID, discordgo.WithContext(ctx))
}

func (g *Gateway) FallbackEmoji() (game.Emoji, bool) {
	if g.cfg.FallbackEmojiID == "" {
		return game.Emoji{}, false
	}
	name := g.emojiName(g.cfg.FallbackEmojiID)
	if name == "" {
		return game.Emoji{}, false
	}
	return game.Emoji{ID: g.cfg.FallbackEmojiID, Name: name}, true
}

func (g *Gateway) emojiName(emojiID string) string {
	guild, err := g.session.State.Guild(g.cfg.GuildID)
	if err == nil && guild != nil {
		for _, e := range guild.Emojis {
			if e.ID == emojiID {
				return e.Name
			}
		}
	}
	emojis, err := g.session.GuildEmojis(g.cfg.GuildID)
	if err != nil {
		log.Printf("[Gateway] Failed to list guild emojis: %v", err)
		return ""
	}
	for _, e := range emojis {
		if e.ID == emojiID {
			return e.Name
		}
	}
	return ""
}

// apiName is the reaction identifier Discord expects for a custom emoji.
func apiName(e game.Emoji) string {
	return e.Name + ":" + e.ID
}

func (g *Gateway) AddReaction(ctx context.Context, channelID, messageID string, e game.Emoji) error {
	return g.session.MessageReactionAdd(channelID, messageID, apiName(e), discordgo.WithContext(ctx))
}

func (g *Gateway) ClearReaction(ctx context.Context, channelID, messageID string, e game.Emoji) error {
	return g.session.MessageReactionsRemoveEmoji(channelID, messageID, apiName(e), discordgo.WithContext(ctx))
}

// -----------------------------------------------------------------------------
// MemberResolver / PermissionChecker / BotIdentity
// -----------------------------------------------------------------------------

func (g *Gateway) FetchMember(ctx context.Context, userID string) (*game.Member, error) {
	member, err := g.session.GuildMember(g.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	if member.User == nil {
		return nil, fmt.Errorf("member %s has no user data", userID)
	}
	return &game.Member{ID: member.User.ID, Username: member.User.Username}, nil
}

// IsPublicChannel reports whether the @everyone role can both read and send
// in the channel, which is what "public" means for the hunt.
func (g *Gateway) IsPublicChannel(channelID string) bool {
	guild, err := g.session.State.Guild(g.cfg.GuildID)
	if err != nil || guild == nil {
		return false
	}

	// The @everyone role shares its id with the guild.
	var base int64
	for _, role := range guild.Roles {
		if role.ID == g.cfg.GuildID {
			base = role.Permissions
			break
		}
	}

	channel, err := g.session.State.Channel(channelID)
	if err != nil || channel == nil {
		return false
	}
	perms := base
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == g.cfg.GuildID {
			perms &^= overwrite.Deny
			perms |= overwrite.Allow
		}
	}

	required := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	return perms&required == required
}

func (g *Gateway) BotUserID() string {
	if g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}
