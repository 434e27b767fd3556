// ABOUTME: Service is the central layer for chat orchestration
// ABOUTME: All chat traffic flows through here - stores are injected, never global

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/akikohatsune/neru/internal/dedupe"
	"github.com/akikohatsune/neru/internal/llm"
	"github.com/akikohatsune/neru/internal/store"
)

// Sentinel errors returned by the service. The front end maps these to
// user-facing replies.
var (
	ErrDuplicateMessage = errors.New("message already processed")
	ErrTerminated       = errors.New("bot is terminated")
	ErrBanned           = errors.New("user is banned")
	ErrDMDisabled       = errors.New("direct messages are disabled")
	ErrCallNameEmpty    = errors.New("call name is empty")
	ErrCallNameTooLong  = errors.New("call name is too long")
	ErrCallNameRejected = errors.New("call name rejected by approval")
)

// DefaultPrompt replaces an empty prompt so the model always has
// something to respond to.
const DefaultPrompt = "hi"

// sharedDMGuildID keys DM state when dm_mode is "shared".
const sharedDMGuildID int64 = 0

// HistoryStore defines what the service needs from conversation storage.
type HistoryStore interface {
	Append(ctx context.Context, channelID int64, role, content string) error
	History(ctx context.Context, channelID int64) ([]store.Turn, error)
	ClearChannel(ctx context.Context, channelID int64) error
}

// BanStore defines what the service needs from ban storage.
type BanStore interface {
	Ban(ctx context.Context, guildID, userID, bannedBy int64, reason string) (bool, error)
	Unban(ctx context.Context, guildID, userID int64) (bool, error)
	IsBanned(ctx context.Context, guildID, userID int64) (bool, error)
}

// CallNameStore defines what the service needs from call-name storage.
type CallNameStore interface {
	SetUserCallsBot(ctx context.Context, guildID, userID int64, value string) error
	SetBotCallsUser(ctx context.Context, guildID, userID int64, value string) error
	Preferences(ctx context.Context, guildID, userID int64) (store.CallNamePreference, error)
}

// ReplayStore defines what the service needs from the replay log.
type ReplayStore interface {
	LogChat(ctx context.Context, rec store.ReplayRecord) (int64, error)
	RecentIndexed(ctx context.Context, limit int, guildID *int64) ([]store.IndexedReplay, error)
	GetByIndex(ctx context.Context, id int64, guildID *int64) (*store.ReplayRecord, error)
}

// Generator produces chat replies and call-name verdicts.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) (string, error)
	ApproveCallName(ctx context.Context, fieldName, value string) (bool, error)
}

// Options tunes service behavior.
type Options struct {
	// DMDisabled rejects all direct-message traffic instead of keying
	// it under the shared DM scope.
	DMDisabled bool

	// MaxCallNameLen caps accepted call names, in runes.
	MaxCallNameLen int

	// DedupeCapacity bounds the recently-seen message window.
	DedupeCapacity int
}

// Service orchestrates one chat bot: dedupe, bans, bounded memory,
// call-name preferences, generation, and replay logging.
type Service struct {
	history   HistoryStore
	bans      BanStore
	callNames CallNameStore
	replay    ReplayStore
	generator Generator

	seen           *dedupe.Set
	terminated     atomic.Bool
	dmDisabled     bool
	maxCallNameLen int
	logger         *slog.Logger
}

// New creates a chat service. All stores are required.
func New(history HistoryStore, bans BanStore, callNames CallNameStore, replay ReplayStore, generator Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	maxLen := opts.MaxCallNameLen
	if maxLen <= 0 {
		maxLen = 60
	}
	return &Service{
		history:        history,
		bans:           bans,
		callNames:      callNames,
		replay:         replay,
		generator:      generator,
		seen:           dedupe.New(opts.DedupeCapacity),
		dmDisabled:     opts.DMDisabled,
		maxCallNameLen: maxLen,
		logger:         logger.With("component", "bot"),
	}
}

// Inbound is one user message handed to the service by a front end.
type Inbound struct {
	// MessageID deduplicates gateway redeliveries. Empty skips the check.
	MessageID string

	// GuildID is nil for direct messages.
	GuildID     *int64
	GuildName   string
	ChannelID   int64
	ChannelName string

	UserID      int64
	UserName    string
	UserDisplay string

	Prompt  string
	Images  []llm.Image
	Trigger string // store.TriggerCommand or store.TriggerMention
}

// scopeGuild resolves the guild scope for an inbound message. Direct
// messages share scope under guild 0 unless DMs are disabled.
func (s *Service) scopeGuild(guildID *int64) (int64, error) {
	if guildID != nil {
		return *guildID, nil
	}
	if s.dmDisabled {
		return 0, ErrDMDisabled
	}
	return sharedDMGuildID, nil
}

// HandleChat runs the full chat flow for one inbound message and returns
// the reply text. The reply is already recorded in history and the
// replay log when this returns without error.
func (s *Service) HandleChat(ctx context.Context, in Inbound) (string, error) {
	if in.MessageID != "" && s.seen.Seen(in.MessageID) {
		return "", ErrDuplicateMessage
	}
	if s.terminated.Load() {
		return "", ErrTerminated
	}

	guildID, err := s.scopeGuild(in.GuildID)
	if err != nil {
		return "", err
	}

	banned, err := s.bans.IsBanned(ctx, guildID, in.UserID)
	if err != nil {
		return "", fmt.Errorf("checking ban list: %w", err)
	}
	if banned {
		return "", ErrBanned
	}

	requestID := uuid.New().String()
	logger := s.logger.With("request_id", requestID, "channel_id", in.ChannelID, "user_id", in.UserID)

	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}

	promptForModel, err := s.applyCallPreferences(ctx, prompt, guildID, in.UserID)
	if err != nil {
		return "", err
	}

	turns, err := s.history.History(ctx, in.ChannelID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: promptForModel,
		Images:  in.Images,
	})

	rawReply, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	reply := normalizeModelReply(rawReply)

	// The stored user turn keeps the plain prompt, not the preference-
	// decorated one, so later turns are not double-annotated.
	if err := s.history.Append(ctx, in.ChannelID, store.RoleUser, memoryUserEntry(prompt, len(in.Images))); err != nil {
		return "", fmt.Errorf("recording user turn: %w", err)
	}
	if err := s.history.Append(ctx, in.ChannelID, store.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("recording assistant turn: %w", err)
	}

	// A failed replay write must not eat the reply the user is waiting on.
	if _, err := s.replay.LogChat(ctx, store.ReplayRecord{
		Timestamp:   time.Now().UTC(),
		GuildID:     guildID,
		GuildName:   in.GuildName,
		ChannelID:   in.ChannelID,
		ChannelName: in.ChannelName,
		UserID:      in.UserID,
		UserName:    in.UserName,
		UserDisplay: in.UserDisplay,
		Trigger:     in.Trigger,
		Prompt:      prompt,
		ReplyLength: len(reply),
	}); err != nil {
		logger.Error("failed to write replay record", "error", err)
	}

	logger.Debug("chat handled", "trigger", in.Trigger, "reply_length", len(reply))
	return reply, nil
}

// applyCallPreferences prefixes the prompt with the user's call-name
// context when any preference is set.
func (s *Service) applyCallPreferences(ctx context.Context, prompt string, guildID, userID int64) (string, error) {
	prefs, err := s.callNames.Preferences(ctx, guildID, userID)
	if err != nil {
		return "", fmt.Errorf("loading call preferences: %w", err)
	}
	if prefs.UserCallsBot == "" && prefs.BotCallsUser == "" {
		return prompt, nil
	}

	parts := []string{"[xung_ho_context]"}
	if prefs.UserCallsBot != "" {
		parts = append(parts, "user goi Neru la: "+prefs.UserCallsBot)
	}
	if prefs.BotCallsUser != "" {
		parts = append(parts, "Neru goi user la: "+prefs.BotCallsUser)
	}
	parts = append(parts, "[noi_dung]", prompt)
	return strings.Join(parts, "\n"), nil
}

// memoryUserEntry renders the user turn as stored in history, noting
// attached images so later turns know they existed.
func memoryUserEntry(prompt string, imageCount int) string {
	if imageCount <= 0 {
		return prompt
	}
	return fmt.Sprintf("%s\n[attached_images=%d]", prompt, imageCount)
}

// ClearChannel wipes the short-term memory of one channel.
func (s *Service) ClearChannel(ctx context.Context, channelID int64) error {
	if err := s.history.ClearChannel(ctx, channelID); err != nil {
		return fmt.Errorf("clearing channel memory: %w", err)
	}
	s.logger.Info("cleared channel memory", "channel_id", channelID)
	return nil
}

// SetTerminated flips the kill switch. While terminated the service
// rejects all chat traffic.
func (s *Service) SetTerminated(on bool) {
	s.terminated.Store(on)
	s.logger.Info("terminated state changed", "terminated", on)
}

// Terminated reports the kill-switch state.
func (s *Service) Terminated() bool {
	return s.terminated.Load()
}

// Ban adds or updates a ban entry. Returns true when the entry is new.
func (s *Service) Ban(ctx context.Context, guildID, userID, bannedBy int64, reason string) (bool, error) {
	created, err := s.bans.Ban(ctx, guildID, userID, bannedBy, strings.TrimSpace(reason))
	if err != nil {
		return false, fmt.Errorf("banning user: %w", err)
	}
	s.logger.Info("user banned", "guild_id", guildID, "user_id", userID, "created", created)
	return created, nil
}

// Unban removes a ban entry. Returns true when an entry was removed.
func (s *Service) Unban(ctx context.Context, guildID, userID int64) (bool, error) {
	removed, err := s.bans.Unban(ctx, guildID, userID)
	if err != nil {
		return false, fmt.Errorf("unbanning user: %w", err)
	}
	if removed {
		s.logger.Info("user unbanned", "guild_id", guildID, "user_id", userID)
	}
	return removed, nil
}

// CallNameField selects which half of the call-name preference a request
// targets.
type CallNameField string

const (
	FieldUserCallsBot CallNameField = "user_calls_bot"
	FieldBotCallsUser CallNameField = "bot_calls_user"
)

// SetCallName validates, moderates, and saves one call-name field.
// Returns the normalized value that was stored.
func (s *Service) SetCallName(ctx context.Context, guildID *int64, userID int64, field CallNameField, raw string) (string, error) {
	scope, err := s.scopeGuild(guildID)
	if err != nil {
		return "", err
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrCallNameEmpty
	}
	if utf8.RuneCountInString(value) > s.maxCallNameLen {
		return "", ErrCallNameTooLong
	}

	approved, err := s.generator.ApproveCallName(ctx, string(field), value)
	if err != nil {
		return "", fmt.Errorf("running call-name approval: %w", err)
	}
	if !approved {
		return "", ErrCallNameRejected
	}

	switch field {
	case FieldUserCallsBot:
		err = s.callNames.SetUserCallsBot(ctx, scope, userID, value)
	case FieldBotCallsUser:
		err = s.callNames.SetBotCallsUser(ctx, scope, userID, value)
	default:
		return "", fmt.Errorf("unknown call-name field %q", field)
	}
	if err != nil {
		return "", fmt.Errorf("saving call name: %w", err)
	}

	s.logger.Info("call name saved", "guild_id", scope, "user_id", userID, "field", field)
	return value, nil
}

// CallProfile returns the user's stored call-name preferences.
func (s *Service) CallProfile(ctx context.Context, guildID *int64, userID int64) (store.CallNamePreference, error) {
	scope, err := s.scopeGuild(guildID)
	if err != nil {
		return store.CallNamePreference{}, err
	}
	prefs, err := s.callNames.Preferences(ctx, scope, userID)
	if err != nil {
		return store.CallNamePreference{}, fmt.Errorf("loading call profile: %w", err)
	}
	return prefs, nil
}
