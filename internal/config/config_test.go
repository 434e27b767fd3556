// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const minimalConfig = `
discord:
  token: "test-token"

llm:
  provider: "gemini"
  gemini:
    api_key: "test-key"

storage:
  history_path: "./data/history.db"
  bans_path: "./data/bans.db"
  callnames_path: "./data/callnames.db"
  replay_path: "./data/replay.db"
`

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
discord:
  token: "test-token"
  command_prefix: "?"
  owner_ids:
    - 111
    - 222
  dm_mode: "disabled"
  rpc:
    enabled: true
    status: "idle"
    activity_type: "listening"
    activity_name: "your questions"

llm:
  provider: "groq"
  temperature: 0.4
  system_prompt: "You are a helpful bot."
  gemini:
    api_key: "gem-key"
    model: "gemini-test"
    approval_model: "gemini-approve"
  groq:
    api_key: "groq-key"
    model: "llama-test"

storage:
  history_path: "./data/history.db"
  bans_path: "./data/bans.db"
  callnames_path: "./data/callnames.db"
  replay_path: "./data/replay.db"

memory:
  max_history_turns: 20
  idle_ttl: "10m"
  sweep_interval: "30s"

limits:
  image_max_bytes: 1048576
  max_call_name_len: 40

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Discord.Token != "test-token" {
		t.Errorf("Discord.Token = %q, want %q", cfg.Discord.Token, "test-token")
	}
	if cfg.Discord.CommandPrefix != "?" {
		t.Errorf("Discord.CommandPrefix = %q, want %q", cfg.Discord.CommandPrefix, "?")
	}
	if len(cfg.Discord.OwnerIDs) != 2 || cfg.Discord.OwnerIDs[0] != 111 || cfg.Discord.OwnerIDs[1] != 222 {
		t.Errorf("Discord.OwnerIDs = %v, want [111 222]", cfg.Discord.OwnerIDs)
	}
	if cfg.Discord.DMMode != "disabled" {
		t.Errorf("Discord.DMMode = %q, want %q", cfg.Discord.DMMode, "disabled")
	}
	if !cfg.Discord.RPC.Enabled || cfg.Discord.RPC.Status != "idle" || cfg.Discord.RPC.ActivityType != "listening" {
		t.Errorf("Discord.RPC = %+v", cfg.Discord.RPC)
	}

	if cfg.LLM.Provider != "groq" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "groq")
	}
	if cfg.LLM.Temperature != 0.4 {
		t.Errorf("LLM.Temperature = %v, want 0.4", cfg.LLM.Temperature)
	}
	if cfg.LLM.Groq.Model != "llama-test" {
		t.Errorf("LLM.Groq.Model = %q, want %q", cfg.LLM.Groq.Model, "llama-test")
	}

	if cfg.Storage.ReplayPath != "./data/replay.db" {
		t.Errorf("Storage.ReplayPath = %q, want %q", cfg.Storage.ReplayPath, "./data/replay.db")
	}

	if cfg.Memory.MaxHistoryTurns != 20 {
		t.Errorf("Memory.MaxHistoryTurns = %d, want 20", cfg.Memory.MaxHistoryTurns)
	}
	if cfg.Memory.IdleTTL != 10*time.Minute {
		t.Errorf("Memory.IdleTTL = %v, want 10m", cfg.Memory.IdleTTL)
	}
	if cfg.Memory.SweepInterval != 30*time.Second {
		t.Errorf("Memory.SweepInterval = %v, want 30s", cfg.Memory.SweepInterval)
	}

	if cfg.Limits.ImageMaxBytes != 1048576 {
		t.Errorf("Limits.ImageMaxBytes = %d, want 1048576", cfg.Limits.ImageMaxBytes)
	}
	if cfg.Limits.MaxCallNameLen != 40 {
		t.Errorf("Limits.MaxCallNameLen = %d, want 40", cfg.Limits.MaxCallNameLen)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("default CommandPrefix = %q, want %q", cfg.Discord.CommandPrefix, "!")
	}
	if cfg.Discord.DMMode != "shared" {
		t.Errorf("default DMMode = %q, want %q", cfg.Discord.DMMode, "shared")
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("default Temperature = %v, want 0.7", cfg.LLM.Temperature)
	}
	if cfg.LLM.Gemini.Model != DefaultGeminiModel {
		t.Errorf("default Gemini.Model = %q, want %q", cfg.LLM.Gemini.Model, DefaultGeminiModel)
	}
	if cfg.LLM.Gemini.ApprovalModel != DefaultGeminiModel {
		t.Errorf("ApprovalModel should fall back to the chat model, got %q", cfg.LLM.Gemini.ApprovalModel)
	}
	if cfg.LLM.Gemini.ApprovalAPIKey != "test-key" {
		t.Errorf("ApprovalAPIKey should fall back to api_key, got %q", cfg.LLM.Gemini.ApprovalAPIKey)
	}
	if cfg.Memory.MaxHistoryTurns != 10 {
		t.Errorf("default MaxHistoryTurns = %d, want 10", cfg.Memory.MaxHistoryTurns)
	}
	if cfg.Memory.IdleTTL != 5*time.Minute {
		t.Errorf("default IdleTTL = %v, want 5m", cfg.Memory.IdleTTL)
	}
	if cfg.Memory.SweepInterval != time.Minute {
		t.Errorf("default SweepInterval = %v, want 1m", cfg.Memory.SweepInterval)
	}
	if cfg.Limits.ImageMaxBytes != 5*1024*1024 {
		t.Errorf("default ImageMaxBytes = %d, want 5MiB", cfg.Limits.ImageMaxBytes)
	}
	if cfg.Limits.MaxCallNameLen != 60 {
		t.Errorf("default MaxCallNameLen = %d, want 60", cfg.Limits.MaxCallNameLen)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("NERU_TEST_TOKEN", "secret-from-env")

	configPath := writeConfig(t, strings.Replace(minimalConfig,
		`token: "test-token"`, `token: "${NERU_TEST_TOKEN}"`, 1))

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discord.Token != "secret-from-env" {
		t.Errorf("Discord.Token = %q, want %q", cfg.Discord.Token, "secret-from-env")
	}
}

func TestLoad_ZeroIdleTTLDisablesSweep(t *testing.T) {
	configPath := writeConfig(t, minimalConfig+`
memory:
  idle_ttl: "0"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Memory.IdleTTL != 0 {
		t.Errorf("IdleTTL = %v, want 0", cfg.Memory.IdleTTL)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, minimalConfig+`
memory:
  idle_ttl: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "idle_ttl") {
		t.Errorf("expected idle_ttl parse error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(s string) string { return strings.Replace(s, `token: "test-token"`, `token: ""`, 1) },
			wantErr: "discord.token",
		},
		{
			name:    "unknown provider",
			mutate:  func(s string) string { return strings.Replace(s, `provider: "gemini"`, `provider: "openai"`, 1) },
			wantErr: "llm.provider",
		},
		{
			name:    "gemini without key",
			mutate:  func(s string) string { return strings.Replace(s, `api_key: "test-key"`, `api_key: ""`, 1) },
			wantErr: "llm.gemini.api_key",
		},
		{
			name: "missing storage path",
			mutate: func(s string) string {
				return strings.Replace(s, `bans_path: "./data/bans.db"`, `bans_path: ""`, 1)
			},
			wantErr: "storage.bans_path",
		},
		{
			name: "bad dm_mode",
			mutate: func(s string) string {
				return strings.Replace(s, `token: "test-token"`, "token: \"test-token\"\n  dm_mode: \"split\"", 1)
			},
			wantErr: "dm_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(minimalConfig)))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_GroqRequiresApprovalKey(t *testing.T) {
	configPath := writeConfig(t, `
discord:
  token: "test-token"

llm:
  provider: "groq"
  groq:
    api_key: "groq-key"

storage:
  history_path: "./data/history.db"
  bans_path: "./data/bans.db"
  callnames_path: "./data/callnames.db"
  replay_path: "./data/replay.db"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "approval") {
		t.Errorf("expected approval key error, got %v", err)
	}
}
