package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/scythe504/ninjahunt-backend/internal"
	"github.com/scythe504/ninjahunt-backend/internal/game"
)

// =============================================================================
// ROUND SUMMARY NOTIFIER
// =============================================================================

const (
	colourDetected   = 0xD62818 // 214, 40, 24
	colourUndetected = 0x2D2D2D // 45, 45, 45

	// Discord caps embed descriptions at 2048 characters; the rendered
	// member list stays under this so the framing text always fits.
	rewardedListBudget = 1800

	thumbnailURL = "https://cdn.discordapp.com/emojis/637923502535606293.png"
)

// PostSummary sends the round outcome embed to the summary channel.
func (g *Gateway) PostSummary(ctx context.Context, summary game.Summary) error {
	if g.cfg.SummaryChannelID == "" {
		return fmt.Errorf("no summary channel configured")
	}

	var embed *discordgo.MessageEmbed
	if summary.Detected {
		embed = g.detectedEmbed(summary)
	} else {
		embed = g.undetectedEmbed(summary)
	}
	embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumbnailURL}

	_, err := g.session.ChannelMessageSendEmbed(g.cfg.SummaryChannelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send summary embed: %w", err)
	}
	return nil
}

func (g *Gateway) undetectedEmbed(summary game.Summary) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Ninja Duck sneaked by undetected!",
		Description: fmt.Sprintf("No one noticed %s when it appeared in <#%s>.",
			g.cfg.NinjaEmojiText, summary.ChannelID),
		Color: colourUndetected,
	}
}

func (g *Gateway) detectedEmbed(summary game.Summary) *discordgo.MessageEmbed {
	pronoun, noun := "This", "member"
	if len(summary.Rewarded) != 1 {
		pronoun, noun = "These", "members"
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Ninja Duck was detected by %d %s!", len(summary.Rewarded), noun),
		Description: fmt.Sprintf("Ninja Duck appeared in <#%s>.\n\n%s %s earned points: %s",
			summary.ChannelID, pronoun, noun, formatRewarded(summary.Rewarded)),
		Color: colourDetected,
	}
}

// formatRewarded renders "mention (+points)" pairs in reaction arrival order,
// truncated to the list budget.
func formatRewarded(rewarded []internal.ReactionPoints) string {
	parts := make([]string, 0, len(rewarded))
	for _, rp := range rewarded {
		parts = append(parts, fmt.Sprintf("<@%s> (+%d)", rp.MemberID, rp.Points))
	}
	joined := strings.Join(parts, ", ")
	if len(joined) >= rewardedListBudget {
		joined = joined[:rewardedListBudget] + "..."
	}
	return joined
}
