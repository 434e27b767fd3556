// ABOUTME: Configuration loading and parsing for neru
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete neru configuration
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Memory  MemoryConfig  `yaml:"memory"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig holds the Discord connection and command surface
type DiscordConfig struct {
	Token         string    `yaml:"token"`
	CommandPrefix string    `yaml:"command_prefix"`
	OwnerIDs      []int64   `yaml:"owner_ids"`
	DMMode        string    `yaml:"dm_mode"` // "shared" or "disabled"
	RPC           RPCConfig `yaml:"rpc"`
}

// RPCConfig holds the bot's presence settings
type RPCConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Status       string `yaml:"status"`        // online, idle, dnd, invisible
	ActivityType string `yaml:"activity_type"` // playing, listening, watching, competing, streaming, none
	ActivityName string `yaml:"activity_name"`
	ActivityURL  string `yaml:"activity_url"` // required for streaming
}

// LLMConfig holds provider selection and generation settings
type LLMConfig struct {
	Provider     string       `yaml:"provider"` // "gemini" or "groq"
	Temperature  float32      `yaml:"temperature"`
	SystemPrompt string       `yaml:"system_prompt"`
	RulesPath    string       `yaml:"rules_path"`
	Gemini       GeminiConfig `yaml:"gemini"`
	Groq         GroqConfig   `yaml:"groq"`
}

// GeminiConfig holds Gemini API settings. The approval model moderates
// call-name requests and may use a separate key.
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	ApprovalModel  string `yaml:"approval_model"`
	ApprovalAPIKey string `yaml:"approval_api_key"`
}

// GroqConfig holds Groq API settings
type GroqConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// StorageConfig holds the four independent database locations
type StorageConfig struct {
	HistoryPath   string `yaml:"history_path"`
	BansPath      string `yaml:"bans_path"`
	CallNamesPath string `yaml:"callnames_path"`
	ReplayPath    string `yaml:"replay_path"`
}

// MemoryConfig holds conversation retention settings
type MemoryConfig struct {
	MaxHistoryTurns int           `yaml:"max_history_turns"`
	IdleTTL         time.Duration `yaml:"-"`
	SweepInterval   time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	IdleTTLRaw       string `yaml:"idle_ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LimitsConfig holds size caps for user-supplied input
type LimitsConfig struct {
	ImageMaxBytes  int64 `yaml:"image_max_bytes"`
	MaxCallNameLen int   `yaml:"max_call_name_len"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default values applied when the config file leaves a field unset.
const (
	DefaultCommandPrefix   = "!"
	DefaultDMMode          = "shared"
	DefaultGeminiModel     = "gemini-3-flash"
	DefaultGroqModel       = "llama-3.3-70b-versatile"
	DefaultMaxHistoryTurns = 10
	DefaultIdleTTL         = 5 * time.Minute
	DefaultSweepInterval   = time.Minute
	DefaultImageMaxBytes   = 5 * 1024 * 1024
	DefaultMaxCallNameLen  = 60
	DefaultTemperature     = 0.7
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = DefaultCommandPrefix
	}
	if c.Discord.DMMode == "" {
		c.Discord.DMMode = DefaultDMMode
	}
	if c.Discord.RPC.Status == "" {
		c.Discord.RPC.Status = "online"
	}
	if c.Discord.RPC.ActivityType == "" {
		c.Discord.RPC.ActivityType = "playing"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = DefaultGeminiModel
	}
	if c.LLM.Gemini.ApprovalModel == "" {
		c.LLM.Gemini.ApprovalModel = c.LLM.Gemini.Model
	}
	if c.LLM.Gemini.ApprovalAPIKey == "" {
		c.LLM.Gemini.ApprovalAPIKey = c.LLM.Gemini.APIKey
	}
	if c.LLM.Groq.Model == "" {
		c.LLM.Groq.Model = DefaultGroqModel
	}
	if c.Memory.MaxHistoryTurns == 0 {
		c.Memory.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if c.Memory.IdleTTLRaw == "" {
		c.Memory.IdleTTL = DefaultIdleTTL
	}
	if c.Memory.SweepIntervalRaw == "" {
		c.Memory.SweepInterval = DefaultSweepInterval
	}
	if c.Limits.ImageMaxBytes == 0 {
		c.Limits.ImageMaxBytes = DefaultImageMaxBytes
	}
	if c.Limits.MaxCallNameLen == 0 {
		c.Limits.MaxCallNameLen = DefaultMaxCallNameLen
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}

	switch c.Discord.DMMode {
	case "shared", "disabled":
	default:
		return fmt.Errorf("discord.dm_mode must be \"shared\" or \"disabled\", got %q", c.Discord.DMMode)
	}

	switch c.Discord.RPC.Status {
	case "online", "idle", "dnd", "invisible":
	default:
		return fmt.Errorf("discord.rpc.status must be one of online, idle, dnd, invisible")
	}

	switch c.Discord.RPC.ActivityType {
	case "playing", "listening", "watching", "competing", "streaming", "none":
	default:
		return fmt.Errorf("discord.rpc.activity_type must be one of playing, listening, watching, competing, streaming, none")
	}
	if c.Discord.RPC.Enabled && c.Discord.RPC.ActivityType != "none" && c.Discord.RPC.ActivityName == "" {
		return fmt.Errorf("discord.rpc.activity_name is required when an activity type is set")
	}
	if c.Discord.RPC.Enabled && c.Discord.RPC.ActivityType == "streaming" && c.Discord.RPC.ActivityURL == "" {
		return fmt.Errorf("discord.rpc.activity_url is required when activity_type is streaming")
	}

	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("llm.gemini.api_key is required when provider is gemini")
		}
	case "groq":
		if c.LLM.Groq.APIKey == "" {
			return fmt.Errorf("llm.groq.api_key is required when provider is groq")
		}
		// Call-name approval always runs on Gemini
		if c.LLM.Gemini.ApprovalAPIKey == "" {
			return fmt.Errorf("llm.gemini.approval_api_key (or api_key) is required for call-name approval")
		}
	default:
		return fmt.Errorf("llm.provider must be \"gemini\" or \"groq\", got %q", c.LLM.Provider)
	}

	for name, path := range map[string]string{
		"storage.history_path":   c.Storage.HistoryPath,
		"storage.bans_path":      c.Storage.BansPath,
		"storage.callnames_path": c.Storage.CallNamesPath,
		"storage.replay_path":    c.Storage.ReplayPath,
	} {
		if path == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.Memory.MaxHistoryTurns < 1 {
		return fmt.Errorf("memory.max_history_turns must be at least 1")
	}
	if c.Memory.IdleTTL < 0 {
		return fmt.Errorf("memory.idle_ttl must not be negative")
	}
	if c.Memory.SweepInterval <= 0 {
		return fmt.Errorf("memory.sweep_interval must be positive")
	}
	if c.Limits.ImageMaxBytes < 1 {
		return fmt.Errorf("limits.image_max_bytes must be at least 1")
	}
	if c.Limits.MaxCallNameLen < 1 {
		return fmt.Errorf("limits.max_call_name_len must be at least 1")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Memory.IdleTTLRaw != "" {
		cfg.Memory.IdleTTL, err = time.ParseDuration(cfg.Memory.IdleTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_ttl %q: %w", cfg.Memory.IdleTTLRaw, err)
		}
	}

	if cfg.Memory.SweepIntervalRaw != "" {
		cfg.Memory.SweepInterval, err = time.ParseDuration(cfg.Memory.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Memory.SweepIntervalRaw, err)
		}
	}

	return nil
}
