package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal"
)

// Config carries every tunable of the service. It is built once in main and
// passed by value to the controller and the adapters.
type Config struct {
	// Discord
	DiscordToken     string
	GuildID          string
	SummaryChannelID string
	CommandsChannels []string
	AdminRoleID      string
	ModeratorRoleID  string
	BypassRoles      []string

	// Emoji
	FallbackEmojiID string
	ConfirmEmojiID  string
	DenyEmojiID     string
	NinjaEmojiText  string // display form, e.g. "<:ninja:637923502535606293>"
	MarkerImageURI  string // data URI used when creating the transient emoji

	// Game tuning
	PublicOnly            bool
	Cooldown              time.Duration
	MaxTimeJitter         int // whole seconds added on top of Cooldown
	ProbabilityMultiplier float64
	MaxPoints             int
	ReactionTimeout       time.Duration
	AutoStart             bool

	// Default allow/deny lists, seeded into the store on first run
	Channels   internal.AllowDenyGroup
	Categories internal.AllowDenyGroup

	// Infrastructure
	DatabaseURL string
	Port        int
}

// Load reads the configuration from the environment. Main is expected to have
// loaded .env via godotenv before calling this.
func Load() (Config, error) {
	cfg := Config{
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		GuildID:          os.Getenv("GUILD_ID"),
		SummaryChannelID: os.Getenv("SUMMARY_CHANNEL_ID"),
		CommandsChannels: splitIDs(os.Getenv("COMMANDS_CHANNELS")),
		AdminRoleID:      os.Getenv("ADMIN_ROLE_ID"),
		ModeratorRoleID:  os.Getenv("MODERATOR_ROLE_ID"),
		BypassRoles:      splitIDs(os.Getenv("BYPASS_ROLES")),

		FallbackEmojiID: os.Getenv("FALLBACK_EMOJI_ID"),
		ConfirmEmojiID:  os.Getenv("CONFIRM_EMOJI_ID"),
		DenyEmojiID:     os.Getenv("DENY_EMOJI_ID"),
		NinjaEmojiText:  os.Getenv("NINJA_EMOJI_TEXT"),
		MarkerImageURI:  os.Getenv("MARKER_IMAGE_URI"),

		PublicOnly:            envBool("GAME_PUBLIC_ONLY", true),
		Cooldown:              envSeconds("GAME_COOLDOWN_SECONDS", 3600),
		MaxTimeJitter:         envInt("GAME_MAX_TIME_JITTER", 1800),
		ProbabilityMultiplier: envFloat("GAME_PROBABILITY_MULTIPLIER", 1.0),
		MaxPoints:             envInt("GAME_MAX_POINTS", 10),
		ReactionTimeout:       envSeconds("GAME_REACTION_TIMEOUT_SECONDS", 60),
		AutoStart:             envBool("GAME_AUTO_START", true),

		Channels: internal.AllowDenyGroup{
			Allow: allowSet(os.Getenv("CHANNELS_ALLOW")),
			Deny:  internal.NewAllowDenySet(splitIDs(os.Getenv("CHANNELS_DENY"))...),
		},
		Categories: internal.AllowDenyGroup{
			Allow: allowSet(os.Getenv("CATEGORIES_ALLOW")),
			Deny:  internal.NewAllowDenySet(splitIDs(os.Getenv("CATEGORIES_DENY"))...),
		},

		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        envInt("PORT", 8080),
	}

	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return cfg, fmt.Errorf("GUILD_ID is required")
	}
	if cfg.MaxPoints <= 0 {
		return cfg, fmt.Errorf("GAME_MAX_POINTS must be positive, got %d", cfg.MaxPoints)
	}
	if cfg.ReactionTimeout <= 0 {
		return cfg, fmt.Errorf("GAME_REACTION_TIMEOUT_SECONDS must be positive")
	}
	return cfg, nil
}

// allowSet builds an allow list from the environment, defaulting to the
// wildcard so an unconfigured list permits everything.
func allowSet(raw string) internal.AllowDenySet {
	ids := splitIDs(raw)
	if len(ids) == 0 {
		return internal.NewAllowDenySet(internal.Wildcard)
	}
	return internal.NewAllowDenySet(ids...)
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
