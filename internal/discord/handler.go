// ABOUTME: Message-create handling: command dispatch and mention auto-reply
// ABOUTME: Maps service sentinel errors to user-facing replies

package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/akikohatsune/neru/internal/bot"
	"github.com/akikohatsune/neru/internal/store"
)

// handlerTimeout bounds one message's worth of work, including the LLM
// round trip.
const handlerTimeout = 2 * time.Minute

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	content := strings.TrimSpace(m.Content)

	// Inline replay shorthand: <prefix>replayneru42
	if match := b.inlineReplay.FindStringSubmatch(content); match != nil {
		id, _ := strconv.ParseInt(match[1], 10, 64)
		b.handleReplay(ctx, s, m, strconv.FormatInt(id, 10))
		return
	}

	if name, args, ok := parseCommand(content, b.prefix); ok {
		b.dispatchCommand(ctx, s, m, name, args)
		return
	}

	// Auto-reply when mentioned directly.
	if s.State.User != nil && mentionsUser(m.Mentions, s.State.User.ID) {
		prompt := stripSelfMentions(m.Content, s.State.User.ID)
		b.handleChat(ctx, s, m, prompt, store.TriggerMention)
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, name, args string) {
	switch name {
	case "chat", "ask":
		b.handleChat(ctx, s, m, args, store.TriggerCommand)
	case "clearmemo", "resetchat":
		b.handleClearMemo(ctx, s, m)
	case "terminated":
		b.handleTerminated(s, m, args)
	case "replayneru":
		b.handleReplay(ctx, s, m, args)
	case "ban":
		b.handleBan(ctx, s, m, args)
	case "removeban":
		b.handleRemoveBan(ctx, s, m, args)
	case "ucallneru", "callneru":
		b.handleSetCallName(ctx, s, m, bot.FieldUserCallsBot, args,
			"Saved: you call Neru `%s`.")
	case "nerucallu", "callme":
		b.handleSetCallName(ctx, s, m, bot.FieldBotCallsUser, args,
			"Saved: Neru will call you `%s`.")
	case "nerumention", "callprofile":
		b.handleCallProfile(ctx, s, m)
	}
}

func (b *Bot) handleChat(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, prompt, trigger string) {
	channelID, userID, ok := b.parseIDs(m)
	if !ok {
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		b.logger.Debug("typing indicator failed", "error", err)
	}

	images, err := b.collectImages(m.Attachments)
	if err != nil {
		b.reply(s, m, fmt.Sprintf("Could not read attachments: `%v`", err))
		return
	}

	guildName, channelName := b.scopeNames(s, m)
	reply, err := b.svc.HandleChat(ctx, bot.Inbound{
		MessageID:   m.ID,
		GuildID:     b.guildScope(m),
		GuildName:   guildName,
		ChannelID:   channelID,
		ChannelName: channelName,
		UserID:      userID,
		UserName:    m.Author.Username,
		UserDisplay: displayName(m),
		Prompt:      prompt,
		Images:      images,
		Trigger:     trigger,
	})
	if err != nil {
		b.replyError(s, m, err)
		return
	}

	b.sendLong(s, m, reply)
}

func (b *Bot) handleClearMemo(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	channelID, _, ok := b.parseIDs(m)
	if !ok {
		return
	}
	if err := b.svc.ClearChannel(ctx, channelID); err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, "Cleared this channel's short-term memory.")
}

func (b *Bot) handleTerminated(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	_, userID, ok := b.parseIDs(m)
	if !ok {
		return
	}
	if !b.isOwner(userID) {
		b.reply(s, m, "Only the bot owner can use this command.")
		return
	}

	switch strings.ToLower(strings.TrimSpace(args)) {
	case "", "on", "1", "true":
		b.svc.SetTerminated(true)
		b.reply(s, m, "Terminated is now ON: the bot will not answer chats or mentions.")
	case "off", "0", "false":
		b.svc.SetTerminated(false)
		b.reply(s, m, "Terminated is now OFF: the bot answers normally again.")
	case "status":
		status := "OFF"
		if b.svc.Terminated() {
			status = "ON"
		}
		b.reply(s, m, fmt.Sprintf("Terminated status: `%s`", status))
	default:
		b.reply(s, m, fmt.Sprintf("Usage: `%sterminated on`, `%sterminated off`, or `%sterminated status`.",
			b.prefix, b.prefix, b.prefix))
	}
}

func (b *Bot) handleReplay(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	_, userID, ok := b.parseIDs(m)
	if !ok {
		return
	}
	if !b.isOwner(userID) {
		b.reply(s, m, "Only the bot owner can use this command.")
		return
	}

	action := strings.ToLower(strings.TrimSpace(args))
	if action == "" || action == "ls" {
		summary, err := b.svc.ReplaySummary(ctx, b.guildScope(m))
		if err != nil {
			b.replyError(s, m, err)
			return
		}
		summary += fmt.Sprintf("\nUse `%sreplayneru <id>` for details.", b.prefix)
		b.sendLong(s, m, summary)
		return
	}

	id, err := strconv.ParseInt(action, 10, 64)
	if err != nil {
		b.reply(s, m, fmt.Sprintf("Usage: `%sreplayneru ls` or `%sreplayneru <id>`.", b.prefix, b.prefix))
		return
	}

	detail, err := b.svc.ReplayDetail(ctx, id, b.guildScope(m))
	if errors.Is(err, store.ErrNotFound) {
		b.reply(s, m, fmt.Sprintf("No replay with id `%d`.", id))
		return
	}
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.sendLong(s, m, detail)
}

func (b *Bot) handleBan(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	target, reason, ok := b.banCommandTarget(s, m, args)
	if !ok {
		return
	}

	guildID, _ := strconv.ParseInt(m.GuildID, 10, 64)
	_, bannedBy, _ := b.parseIDs(m)

	created, err := b.svc.Ban(ctx, guildID, target, bannedBy, reason)
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	if created {
		b.reply(s, m, fmt.Sprintf("Banned <@%d> from using the bot.", target))
		return
	}
	b.reply(s, m, fmt.Sprintf("Updated ban entry for <@%d>.", target))
}

func (b *Bot) handleRemoveBan(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	target, _, ok := b.banCommandTarget(s, m, args)
	if !ok {
		return
	}

	guildID, _ := strconv.ParseInt(m.GuildID, 10, 64)
	removed, err := b.svc.Unban(ctx, guildID, target)
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	if removed {
		b.reply(s, m, fmt.Sprintf("Removed ban for <@%d>.", target))
		return
	}
	b.reply(s, m, fmt.Sprintf("<@%d> is not currently banned.", target))
}

// banCommandTarget validates a ban/removeban invocation: owner only,
// guild only, first argument a user mention. Returns the target user ID
// and the remaining text.
func (b *Bot) banCommandTarget(s *discordgo.Session, m *discordgo.MessageCreate, args string) (int64, string, bool) {
	_, userID, ok := b.parseIDs(m)
	if !ok {
		return 0, "", false
	}
	if m.GuildID == "" {
		b.reply(s, m, "This command can only be used in a server.")
		return 0, "", false
	}
	if !b.isOwner(userID) {
		b.reply(s, m, "Only the bot owner can use this command.")
		return 0, "", false
	}

	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	targetRaw, ok := parseUserMention(parts[0])
	if !ok {
		b.reply(s, m, "Mention the user, e.g. `"+b.prefix+"ban @user reason`.")
		return 0, "", false
	}
	target, err := strconv.ParseInt(targetRaw, 10, 64)
	if err != nil {
		return 0, "", false
	}

	reason := ""
	if len(parts) == 2 {
		reason = strings.TrimSpace(parts[1])
	}
	return target, reason, true
}

func (b *Bot) handleSetCallName(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, field bot.CallNameField, args, successFormat string) {
	_, userID, ok := b.parseIDs(m)
	if !ok {
		return
	}

	value, err := b.svc.SetCallName(ctx, b.guildScope(m), userID, field, args)
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, fmt.Sprintf(successFormat, value))
}

func (b *Bot) handleCallProfile(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	_, userID, ok := b.parseIDs(m)
	if !ok {
		return
	}

	prefs, err := b.svc.CallProfile(ctx, b.guildScope(m), userID)
	if err != nil {
		b.replyError(s, m, err)
		return
	}

	userCalls := prefs.UserCallsBot
	if userCalls == "" {
		userCalls = "Neru"
	}
	botCalls := prefs.BotCallsUser
	if botCalls == "" {
		botCalls = displayName(m)
	}
	b.reply(s, m, fmt.Sprintf("Current call profile | You call Neru: `%s` | Neru calls you: `%s`",
		userCalls, botCalls))
}

// replyForError maps service sentinel errors to user-facing text. An
// empty string means stay silent.
func (b *Bot) replyForError(err error) string {
	switch {
	case errors.Is(err, bot.ErrDuplicateMessage):
		return ""
	case errors.Is(err, bot.ErrBanned):
		return "You are banned from using the bot in this server."
	case errors.Is(err, bot.ErrTerminated):
		return fmt.Sprintf("The bot is in terminated mode. Use `%sterminated off` to re-enable it.", b.prefix)
	case errors.Is(err, bot.ErrDMDisabled):
		return "This bot does not respond to direct messages."
	case errors.Is(err, bot.ErrCallNameEmpty):
		return "Name cannot be empty."
	case errors.Is(err, bot.ErrCallNameTooLong):
		return "Name is too long."
	case errors.Is(err, bot.ErrCallNameRejected):
		return "Call-name was rejected by approval (`no`)."
	default:
		return fmt.Sprintf("Error talking to the AI: `%v`", err)
	}
}

func (b *Bot) replyError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	text := b.replyForError(err)
	if text == "" {
		return
	}
	b.logger.Warn("request failed", "user_id", m.Author.ID, "error", err)
	b.reply(s, m, text)
}

// reply sends one message referencing the triggering one, with all
// mention pings suppressed.
func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         sanitizeOutput(text),
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		b.logger.Error("failed to send reply", "channel_id", m.ChannelID, "error", err)
	}
}

// sendLong chunks text at the message size limit. The first chunk
// references the triggering message, the rest follow plainly.
func (b *Bot) sendLong(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	chunks := chunkMessage(sanitizeOutput(text))
	for i, chunk := range chunks {
		var err error
		if i == 0 {
			_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
				Content:         chunk,
				Reference:       m.Reference(),
				AllowedMentions: &discordgo.MessageAllowedMentions{},
			})
		} else {
			_, err = s.ChannelMessageSend(m.ChannelID, chunk)
		}
		if err != nil {
			b.logger.Error("failed to send chunk", "channel_id", m.ChannelID, "error", err)
			return
		}
	}
}

// parseIDs extracts the numeric channel and author IDs. Discord IDs are
// decimal snowflakes; a parse failure means a malformed event.
func (b *Bot) parseIDs(m *discordgo.MessageCreate) (channelID, userID int64, ok bool) {
	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		b.logger.Error("malformed channel id", "channel_id", m.ChannelID)
		return 0, 0, false
	}
	userID, err = strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		b.logger.Error("malformed user id", "user_id", m.Author.ID)
		return 0, 0, false
	}
	return channelID, userID, true
}

// guildScope returns the numeric guild ID, or nil for direct messages.
func (b *Bot) guildScope(m *discordgo.MessageCreate) *int64 {
	if m.GuildID == "" {
		return nil
	}
	id, err := strconv.ParseInt(m.GuildID, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// scopeNames resolves human-readable guild and channel names from the
// session state, best effort.
func (b *Bot) scopeNames(s *discordgo.Session, m *discordgo.MessageCreate) (guildName, channelName string) {
	if m.GuildID != "" {
		if guild, err := s.State.Guild(m.GuildID); err == nil {
			guildName = guild.Name
		}
	}
	if channel, err := s.State.Channel(m.ChannelID); err == nil {
		channelName = channel.Name
	}
	return guildName, channelName
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func mentionsUser(mentions []*discordgo.User, id string) bool {
	for _, u := range mentions {
		if u.ID == id {
			return true
		}
	}
	return false
}
