// ABOUTME: Discord gateway connection and lifecycle
// ABOUTME: Thin glue between discordgo events and the chat service

// Package discord connects the chat service to the Discord gateway. It
// owns session lifecycle, presence, command parsing, and reply delivery;
// all chat semantics live in the bot package.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/akikohatsune/neru/internal/bot"
	"github.com/akikohatsune/neru/internal/config"
)

// Bot wraps a discordgo session around the chat service.
type Bot struct {
	session *discordgo.Session
	svc     *bot.Service
	logger  *slog.Logger

	prefix        string
	ownerIDs      map[int64]struct{}
	imageMaxBytes int64
	rpc           config.RPCConfig

	httpClient   *http.Client
	inlineReplay *regexp.Regexp
}

// New creates the Discord front end. The session is configured but not
// yet connected; call Start.
func New(cfg *config.Config, svc *bot.Service, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	owners := make(map[int64]struct{}, len(cfg.Discord.OwnerIDs))
	for _, id := range cfg.Discord.OwnerIDs {
		owners[id] = struct{}{}
	}

	b := &Bot{
		session:       session,
		svc:           svc,
		logger:        logger.With("component", "discord"),
		prefix:        cfg.Discord.CommandPrefix,
		ownerIDs:      owners,
		imageMaxBytes: cfg.Limits.ImageMaxBytes,
		rpc:           cfg.Discord.RPC,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		inlineReplay: regexp.MustCompile(
			`(?i)^` + regexp.QuoteMeta(cfg.Discord.CommandPrefix) + `replayneru(\d+)$`),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)

	return b, nil
}

// Start opens the gateway connection and blocks until ctx is cancelled,
// then closes the session.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}
	b.logger.Info("connected to discord gateway")

	<-ctx.Done()

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("closing discord connection: %w", err)
	}
	b.logger.Info("disconnected from discord gateway")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	b.logger.Info("discord session ready", "user", s.State.User.Username)
	if err := b.applyPresence(s); err != nil {
		b.logger.Warn("failed to set presence", "error", err)
	}
}

// applyPresence pushes the configured status and activity.
func (b *Bot) applyPresence(s *discordgo.Session) error {
	if !b.rpc.Enabled {
		return nil
	}

	data := discordgo.UpdateStatusData{Status: b.rpc.Status}
	if activityType, ok := activityTypes[b.rpc.ActivityType]; ok {
		activity := &discordgo.Activity{
			Type: activityType,
			Name: b.rpc.ActivityName,
		}
		if b.rpc.ActivityType == "streaming" {
			activity.URL = b.rpc.ActivityURL
		}
		data.Activities = []*discordgo.Activity{activity}
	}

	return s.UpdateStatusComplex(data)
}

// activityTypes maps config names to gateway activity types. "none" is
// deliberately absent so it produces a bare status.
var activityTypes = map[string]discordgo.ActivityType{
	"playing":   discordgo.ActivityTypeGame,
	"listening": discordgo.ActivityTypeListening,
	"watching":  discordgo.ActivityTypeWatching,
	"competing": discordgo.ActivityTypeCompeting,
	"streaming": discordgo.ActivityTypeStreaming,
}

func (b *Bot) isOwner(userID int64) bool {
	_, ok := b.ownerIDs[userID]
	return ok
}
