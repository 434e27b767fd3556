// ABOUTME: Entry point for the neru Discord chat bot
// ABOUTME: Wires config, stores, LLM client, sweeper, and the gateway connection

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/akikohatsune/neru/internal/bot"
	"github.com/akikohatsune/neru/internal/config"
	"github.com/akikohatsune/neru/internal/discord"
	"github.com/akikohatsune/neru/internal/llm"
	"github.com/akikohatsune/neru/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _ __   ___ _ __ _   _
| '_ \ / _ \ '__| | | |
| | | |  __/ |  | |_| |
|_| |_|\___|_|   \__,_|
`

// getConfigPath returns the path to the neru config file.
// Priority: NERU_CONFIG env var > XDG_CONFIG_HOME/neru/neru.yaml > ~/.config/neru/neru.yaml
func getConfigPath() string {
	if envPath := os.Getenv("NERU_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "neru.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "neru", "neru.yaml")
}

// getDataPath returns the path to the neru data directory.
// Priority: XDG_DATA_HOME/neru > ~/.local/share/neru
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "neru")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: neru <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the bot")
		fmt.Println("  init                     Create a starter config file")
		fmt.Println("  replay ls [--guild ID]   List recent chat replays")
		fmt.Println("  replay <id>              Show one chat replay")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "replay":
		err = runReplay(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Provider:  %s\n", cfg.LLM.Provider)
	green.Print("    ▶ ")
	fmt.Printf("Prefix:    %s\n", cfg.Discord.CommandPrefix)
	green.Print("    ▶ ")
	fmt.Printf("History:   %s\n", cfg.Storage.HistoryPath)
	green.Print("    ▶ ")
	fmt.Printf("Idle TTL:  %s\n", cfg.Memory.IdleTTL)
	fmt.Println()

	logger.Info("starting neru",
		"config", configPath,
		"provider", cfg.LLM.Provider,
		"dm_mode", cfg.Discord.DMMode,
	)

	// Open the four stores
	history, err := store.OpenHistoryStore(cfg.Storage.HistoryPath, cfg.Memory.MaxHistoryTurns)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer history.Close()

	bans, err := store.OpenBanStore(cfg.Storage.BansPath)
	if err != nil {
		return fmt.Errorf("opening ban store: %w", err)
	}
	defer bans.Close()

	callNames, err := store.OpenCallNameStore(cfg.Storage.CallNamesPath)
	if err != nil {
		return fmt.Errorf("opening call-name store: %w", err)
	}
	defer callNames.Close()

	replay, err := store.OpenReplayLog(cfg.Storage.ReplayPath)
	if err != nil {
		return fmt.Errorf("opening replay log: %w", err)
	}
	defer replay.Close()

	// LLM client
	generator, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	// Chat service
	svc := bot.New(history, bans, callNames, replay, generator, bot.Options{
		DMDisabled:     cfg.Discord.DMMode == "disabled",
		MaxCallNameLen: cfg.Limits.MaxCallNameLen,
	}, logger)

	// Idle-memory sweeper
	sweeper := bot.NewSweeper(history, cfg.Memory.IdleTTL, cfg.Memory.SweepInterval, logger)
	sweeper.Start()
	defer sweeper.Stop()

	// Discord front end; blocks until the signal context is cancelled
	front, err := discord.New(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("creating discord bot: %w", err)
	}

	return front.Start(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# neru configuration
# Generated by neru init

discord:
  token: "${DISCORD_TOKEN}"
  command_prefix: "!"
  owner_ids: []
  dm_mode: "shared"
  rpc:
    enabled: true
    status: "online"
    activity_type: "playing"
    activity_name: "with AI chats"

llm:
  provider: "gemini"
  temperature: 0.7
  system_prompt: "You are Neru, a playful AI assistant on Discord. Reply in the same language as the user's latest message. Keep a light, fun tone while staying helpful and respectful."
  gemini:
    api_key: "${GEMINI_API_KEY}"

storage:
  history_path: "%[1]s/history.db"
  bans_path: "%[1]s/bans.db"
  callnames_path: "%[1]s/callnames.db"
  replay_path: "%[1]s/replay.db"

memory:
  max_history_turns: 10
  idle_ttl: "5m"
  sweep_interval: "1m"

logging:
  level: "info"
  format: "text"
`, dataPath)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Set DISCORD_TOKEN and GEMINI_API_KEY, then start the bot:")
	fmt.Println("  neru serve")

	return nil
}

// runReplay inspects the replay log offline, without connecting to
// Discord.
func runReplay(ctx context.Context, args []string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	replay, err := store.OpenReplayLog(cfg.Storage.ReplayPath)
	if err != nil {
		return fmt.Errorf("opening replay log: %w", err)
	}
	defer replay.Close()

	if len(args) == 0 || args[0] == "ls" {
		var guildID *int64
		rest := args
		if len(rest) > 0 {
			rest = rest[1:]
		}
		for i := 0; i < len(rest); i++ {
			switch {
			case rest[i] == "--guild":
				if i+1 >= len(rest) {
					return fmt.Errorf("--guild requires a value")
				}
				id, err := strconv.ParseInt(rest[i+1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid guild id %q", rest[i+1])
				}
				guildID = &id
				i++
			case strings.HasPrefix(rest[i], "--guild="):
				id, err := strconv.ParseInt(strings.TrimPrefix(rest[i], "--guild="), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid guild id in %q", rest[i])
				}
				guildID = &id
			default:
				return fmt.Errorf("unknown argument: %s", rest[i])
			}
		}
		return printReplayList(ctx, replay, guildID)
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("expected \"ls\" or a numeric id, got %q", args[0])
	}
	return printReplayDetail(ctx, replay, id)
}

func printReplayList(ctx context.Context, replay *store.ReplayLog, guildID *int64) error {
	records, err := replay.RecentIndexed(ctx, 50, guildID)
	if err != nil {
		return fmt.Errorf("reading replay log: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No chat replays yet.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	for _, rec := range records {
		prompt := strings.TrimSpace(strings.ReplaceAll(rec.Record.Prompt, "\n", " "))
		if runes := []rune(prompt); len(runes) > 70 {
			prompt = string(runes[:67]) + "..."
		}
		cyan.Printf("[%d] ", rec.ID)
		gray.Printf("%s ", rec.Record.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
		fmt.Printf("%s (%d) | %s | %s\n",
			rec.Record.UserDisplay, rec.Record.UserID, rec.Record.Trigger, prompt)
	}
	return nil
}

func printReplayDetail(ctx context.Context, replay *store.ReplayLog, id int64) error {
	rec, err := replay.GetByIndex(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("loading replay %d: %w", id, err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("Replay #%d\n", id)
	fmt.Printf("Time:         %s\n", rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Guild:        %s (%d)\n", rec.GuildName, rec.GuildID)
	fmt.Printf("Channel:      %s (%d)\n", rec.ChannelName, rec.ChannelID)
	fmt.Printf("User:         %s (%d)\n", rec.UserDisplay, rec.UserID)
	fmt.Printf("Trigger:      %s\n", rec.Trigger)
	fmt.Printf("Reply length: %d\n", rec.ReplyLength)
	fmt.Println("Prompt:")
	fmt.Println(rec.Prompt)
	return nil
}
