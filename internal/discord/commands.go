package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/scythe504/ninjahunt-backend/internal/config"
	"github.com/scythe504/ninjahunt-backend/internal/game"
	"github.com/scythe504/ninjahunt-backend/internal/utils"
)

// =============================================================================
// CHAT COMMAND SURFACE
// =============================================================================

const commandPrefix = "$"

// confirmTimeout bounds the clear-leaderboard dialog.
const confirmTimeout = 20 * time.Second

// Commands routes prefix commands from the guild to the controller and the
// score aggregator.
type Commands struct {
	cfg        config.Config
	gw         *Gateway
	controller *game.Controller
}

func NewCommands(cfg config.Config, gw *Gateway, controller *game.Controller) *Commands {
	return &Commands{cfg: cfg, gw: gw, controller: controller}
}

// Register attaches the command router to the session.
func (c *Commands) Register() {
	c.gw.Session().AddHandler(c.onMessageCreate)
}

func (c *Commands) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != c.cfg.GuildID {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, commandPrefix) {
		return
	}
	args := strings.Fields(strings.TrimPrefix(content, commandPrefix))
	if len(args) == 0 {
		return
	}

	// Long-running dialogs must not block event dispatch.
	switch strings.ToLower(args[0]) {
	case "help":
		if c.inCommandsChannel(m) {
			go c.sendHelp(m.ChannelID)
		}
	case "ninja", "ninja_hunt", "ninjahunt", "ninja_bot", "ninjabot", "n":
		if c.inCommandsChannel(m) {
			go c.handleNinja(m, args[1:])
		}
	case "admin", "a":
		go c.handleAdmin(m, args[1:])
	}
}

// inCommandsChannel restricts player commands to the configured channels,
// with a bypass for staff roles. An empty configuration means unrestricted.
func (c *Commands) inCommandsChannel(m *discordgo.MessageCreate) bool {
	if len(c.cfg.CommandsChannels) == 0 {
		return true
	}
	for _, id := range c.cfg.CommandsChannels {
		if id == m.ChannelID {
			return true
		}
	}
	return c.hasAnyRole(m.Member, c.cfg.BypassRoles...)
}

func (c *Commands) hasAnyRole(member *discordgo.Member, roleIDs ...string) bool {
	if member == nil {
		return false
	}
	for _, have := range member.Roles {
		for _, want := range roleIDs {
			if want != "" && have == want {
				return true
			}
		}
	}
	return false
}

func (c *Commands) reply(channelID, content string) {
	if _, err := c.gw.Session().ChannelMessageSend(channelID, content); err != nil {
		log.Printf("[Commands] Failed to send reply: %v", err)
	}
}

func (c *Commands) replyEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := c.gw.Session().ChannelMessageSendEmbed(channelID, embed); err != nil {
		log.Printf("[Commands] Failed to send embed: %v", err)
	}
}

// parseUserArg accepts a raw id or a <@id> / <@!id> mention.
func parseUserArg(raw string) string {
	trimmed := strings.TrimSuffix(raw, ">")
	trimmed = strings.TrimPrefix(trimmed, "<@!")
	trimmed = strings.TrimPrefix(trimmed, "<@")
	return trimmed
}

// -----------------------------------------------------------------------------
// $ninja group
// -----------------------------------------------------------------------------

func (c *Commands) handleNinja(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		c.sendHelp(m.ChannelID)
		return
	}
	switch strings.ToLower(args[0]) {
	case "score", "s":
		c.personalScore(m)
	case "leaderboard", "lb":
		c.leaderboard(m)
	default:
		c.sendHelp(m.ChannelID)
	}
}

func (c *Commands) sendHelp(channelID string) {
	description := fmt.Sprintf(
		"All day, ninja duck will sneak up on our messages. Those who are "+
			"observant may earn points by clicking on the %s reaction as it appears.\n\n"+
			"**How it works**\n"+
			"The bot will automatically react with %s. If you click that reaction "+
			"before the timer runs out, you'll earn points. The quicker you react, "+
			"the more points you get.\n\n"+
			"*Spamming messages will not make the ninja appear sooner, so please "+
			"be mindful of others.*\n\n"+
			"**Commands**\n"+
			"• `$ninja score` — get your personal ninja score\n"+
			"• `$ninja leaderboard` — get the current top 10\n",
		c.cfg.NinjaEmojiText, c.cfg.NinjaEmojiText,
	)
	c.replyEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "Spot Ninja Duck!",
		Description: description,
		Color:       colourDetected,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: thumbnailURL},
	})
}

func (c *Commands) personalScore(m *discordgo.MessageCreate) {
	entry, err := c.controller.Aggregator().PersonalEntry(context.Background(), m.Author.ID)
	if err != nil {
		log.Printf("[Commands] Failed to look up score for %s: %v", m.Author.ID, err)
		c.reply(m.ChannelID, "Something went wrong looking up your score.")
		return
	}

	var description string
	if entry == nil {
		description = "You have not scored any points yet."
	} else {
		ordinalRank := utils.OrdinalNumber(entry.Rank)
		position := fmt.Sprintf("You're currently in %s place.", ordinalRank)
		if entry.Tied {
			position = fmt.Sprintf("You're currently tied for %s place.", ordinalRank)
		}
		description = fmt.Sprintf("Your score is %d. %s", entry.Score, position)
	}

	c.replyEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title:       "Your ninja duck score",
		Description: description,
		Color:       colourDetected,
	})
}

func (c *Commands) leaderboard(m *discordgo.MessageCreate) {
	rows, err := c.controller.Aggregator().Leaderboard(context.Background())
	if err != nil {
		log.Printf("[Commands] Failed to compute leaderboard: %v", err)
		c.reply(m.ChannelID, "Something went wrong computing the leaderboard.")
		return
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("`%4s | %5d |` <@%s>",
			utils.OrdinalNumber(row.Entry.Rank), row.Entry.Score, row.MemberID))
	}
	description := "`Rank | Score |` Member\n" + strings.Join(lines, "\n")

	c.replyEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title:       "Top 10",
		Description: description,
		Color:       colourDetected,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: thumbnailURL},
	})
}

// -----------------------------------------------------------------------------
// $admin group
// -----------------------------------------------------------------------------

func (c *Commands) handleAdmin(m *discordgo.MessageCreate, args []string) {
	if !c.hasAnyRole(m.Member, c.cfg.AdminRoleID, c.cfg.ModeratorRoleID) {
		return
	}
	if len(args) == 0 {
		c.sendAdminHelp(m.ChannelID)
		return
	}

	switch strings.ToLower(args[0]) {
	case "block":
		c.blockMember(m, args[1:])
	case "unblock":
		c.unblockMember(m, args[1:])
	case "blocked":
		c.listBlocked(m)
	case "game":
		if !c.hasAnyRole(m.Member, c.cfg.AdminRoleID) {
			return
		}
		c.handleGame(m, args[1:])
	case "permissions", "perms", "perm", "p":
		if !c.hasAnyRole(m.Member, c.cfg.AdminRoleID) {
			return
		}
		c.handlePermissions(m, args[1:])
	default:
		c.sendAdminHelp(m.ChannelID)
	}
}

func (c *Commands) sendAdminHelp(channelID string) {
	description := strings.Join([]string{
		"**Moderation Commands**",
		"`$admin block <user>` — block a user and REMOVE their score",
		"`$admin unblock <user>` — unblock a user",
		"`$admin blocked` — list blocked users",
		"",
		"**Admin Commands**",
		"`$admin game [status|start|stop|clear]`",
		"`$admin permissions`",
		"`$admin permissions add <list_type> <snowflake>`",
		"`$admin permissions remove <list_type> <snowflake>`",
		"`$admin permissions list <list_type>`",
	}, "\n")
	c.replyEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "Admin & Moderation Commands",
		Description: description,
		Color:       colourDetected,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: thumbnailURL},
	})
}

func (c *Commands) blockMember(m *discordgo.MessageCreate, args []string) {
	if len(args) != 1 {
		c.reply(m.ChannelID, "Usage: `$admin block <user>`")
		return
	}
	userID := parseUserArg(args[0])
	if err := c.controller.Aggregator().Block(context.Background(), userID); err != nil {
		log.Printf("[Commands] Failed to block %s: %v", userID, err)
		c.reply(m.ChannelID, "Something went wrong blocking that user.")
		return
	}
	c.reply(m.ChannelID, fmt.Sprintf("Successfully blocked <@%s> and removed their score.", userID))
	log.Printf("[Commands] User %s was blocked by %s", userID, m.Author.ID)
}

func (c *Commands) unblockMember(m *discordgo.MessageCreate, args []string) {
	if len(args) != 1 {
		c.reply(m.ChannelID, "Usage: `$admin unblock <user>`")
		return
	}
	userID := parseUserArg(args[0])
	if err := c.controller.Aggregator().Unblock(context.Background(), userID); err != nil {
		log.Printf("[Commands] Failed to unblock %s: %v", userID, err)
		c.reply(m.ChannelID, "Something went wrong unblocking that user.")
		return
	}
	c.reply(m.ChannelID, fmt.Sprintf("Successfully unblocked <@%s>.", userID))
	log.Printf("[Commands] User %s was unblocked by %s", userID, m.Author.ID)
}

func (c *Commands) listBlocked(m *discordgo.MessageCreate) {
	blocked, err := c.controller.Aggregator().BlockedMembers(context.Background())
	if err != nil {
		log.Printf("[Commands] Failed to list blocked users: %v", err)
		c.reply(m.ChannelID, "Something went wrong listing blocked users.")
		return
	}
	formatted := "(no blocked users)"
	if len(blocked) > 0 {
		mentions := make([]string, 0, len(blocked))
		for _, id := range blocked {
			mentions = append(mentions, "<@"+id+">")
		}
		formatted = strings.Join(mentions, ", ")
	}
	c.reply(m.ChannelID, "Currently blocked users: "+formatted)
}

func (c *Commands) handleGame(m *discordgo.MessageCreate, args []string) {
	sub := "status"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "status":
		qualifier := "NOT "
		if c.controller.Running() {
			qualifier = ""
		}
		c.reply(m.ChannelID, fmt.Sprintf("The game is currently %srunning.", qualifier))
	case "start":
		if !c.controller.Start(context.Background()) {
			c.reply(m.ChannelID, "The game is already running.")
			return
		}
		c.reply(m.ChannelID, "Started the game.")
	case "stop":
		if !c.controller.Stop(context.Background()) {
			c.reply(m.ChannelID, "The game is not running.")
			return
		}
		c.reply(m.ChannelID, "Stopped the game.")
	case "clear":
		c.clearLeaderboard(m)
	default:
		c.reply(m.ChannelID, fmt.Sprintf("Unknown game subcommand: %q", sub))
	}
}

// clearLeaderboard runs the destructive-action confirm dialog: confirm or
// deny by reaction within the timeout, anything else times out explicitly.
// It runs on its own goroutine and never pauses the game loop.
func (c *Commands) clearLeaderboard(m *discordgo.MessageCreate) {
	session := c.gw.Session()
	prompt, err := session.ChannelMessageSend(m.ChannelID,
		"THIS WILL IRREVOCABLY CLEAR THE LEADERBOARD. ARE YOU SURE?")
	if err != nil {
		log.Printf("[Commands] Failed to send clear prompt: %v", err)
		return
	}

	confirm := game.Emoji{ID: c.cfg.ConfirmEmojiID, Name: c.gw.emojiName(c.cfg.ConfirmEmojiID)}
	deny := game.Emoji{ID: c.cfg.DenyEmojiID, Name: c.gw.emojiName(c.cfg.DenyEmojiID)}
	safeReact := func(e game.Emoji) {
		if err := session.MessageReactionAdd(m.ChannelID, prompt.ID, apiName(e)); err != nil {
			log.Printf("[Commands] Failed to add confirm interface reaction: %v", err)
		}
	}
	safeReact(confirm)
	safeReact(deny)

	decision := make(chan bool, 1)
	remove := session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if r.MessageID != prompt.ID || r.UserID != m.Author.ID {
			return
		}
		switch r.Emoji.ID {
		case c.cfg.ConfirmEmojiID:
			select {
			case decision <- true:
			default:
			}
		case c.cfg.DenyEmojiID:
			select {
			case decision <- false:
			default:
			}
		}
	})
	defer remove()

	select {
	case confirmed := <-decision:
		if !confirmed {
			c.reply(m.ChannelID, "Scoreboard NOT cleared.")
			return
		}
		if err := c.controller.Aggregator().ClearScores(context.Background()); err != nil {
			log.Printf("[Commands] Failed to clear scoreboard: %v", err)
			c.reply(m.ChannelID, "Something went wrong clearing the scoreboard.")
			return
		}
		c.reply(m.ChannelID, "Scoreboard cleared.")
		log.Printf("[Commands] The leaderboard was cleared by %s", m.Author.ID)
	case <-time.After(confirmTimeout):
		if err := session.MessageReactionsRemoveAll(m.ChannelID, prompt.ID); err != nil {
			log.Printf("[Commands] Failed to clear confirm reactions: %v", err)
		}
		c.reply(m.ChannelID, "Timed out. Please try again.")
	}
}

func (c *Commands) handlePermissions(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		c.sendPermissionsHelp(m.ChannelID)
		return
	}

	ctx := context.Background()
	sub := strings.ToLower(args[0])
	switch sub {
	case "list":
		if len(args) != 2 {
			c.sendPermissionsHelp(m.ChannelID)
			return
		}
		rendered, err := c.controller.PermissionList(ctx, args[1])
		if c.rejectPermissionError(m.ChannelID, args[1], "", err) {
			return
		}
		c.reply(m.ChannelID, fmt.Sprintf("Current %s: %s", args[1], rendered))
	case "add":
		if len(args) != 3 {
			c.sendPermissionsHelp(m.ChannelID)
			return
		}
		err := c.controller.PermissionAdd(ctx, args[1], args[2])
		if c.rejectPermissionError(m.ChannelID, args[1], args[2], err) {
			return
		}
		c.reply(m.ChannelID, fmt.Sprintf("Added %s to %s", args[2], args[1]))
	case "remove", "delete":
		if len(args) != 3 {
			c.sendPermissionsHelp(m.ChannelID)
			return
		}
		err := c.controller.PermissionRemove(ctx, args[1], args[2])
		if c.rejectPermissionError(m.ChannelID, args[1], args[2], err) {
			return
		}
		c.reply(m.ChannelID, fmt.Sprintf("Removed %s from %s", args[2], args[1]))
	default:
		c.sendPermissionsHelp(m.ChannelID)
	}
}

// rejectPermissionError reports invalid admin input to the caller without any
// state change. Returns true when the command should stop.
func (c *Commands) rejectPermissionError(channelID, listName, id string, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, game.ErrInvalidList):
		c.reply(channelID, fmt.Sprintf("Invalid list type: %q", listName))
	case errors.Is(err, game.ErrInvalidID):
		c.reply(channelID, fmt.Sprintf("Invalid snowflake id: %q", id))
	default:
		log.Printf("[Commands] Permissions command failed: %v", err)
		c.reply(channelID, "Something went wrong updating permissions.")
	}
	return true
}

func (c *Commands) sendPermissionsHelp(channelID string) {
	description := "Usage:\n`$admin permissions [list|add|remove] <list_type> <id>`\n\n" +
		"The following lists are available:\n" +
		"• `categories_allow`\n" +
		"• `categories_deny`\n" +
		"• `channels_allow`\n" +
		"• `channels_deny`\n\n" +
		"**Note:** Only raw IDs are supported, without validation!"
	c.replyEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "Admin — Permissions Management",
		Description: description,
		Color:       colourDetected,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
