// ABOUTME: Provider-agnostic LLM client interface for chat and call-name moderation
// ABOUTME: Concrete providers are selected at startup from configuration

// Package llm wraps the supported text-generation backends behind one
// small interface: multi-turn chat generation with optional image
// attachments, and a yes/no moderation check for call-name requests.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akikohatsune/neru/internal/config"
)

// Provider identifies a text-generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderGroq   Provider = "groq"
)

// ParseProvider validates a provider name from configuration.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGemini:
		return ProviderGemini, nil
	case ProviderGroq:
		return ProviderGroq, nil
	default:
		return "", fmt.Errorf("unsupported provider %q", s)
	}
}

// Message roles as seen by the providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is a binary attachment sent alongside a message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Message is one turn of a conversation sent to a provider.
type Message struct {
	Role    string
	Content string
	Images  []Image
}

// Client generates chat replies and moderates call-name requests.
type Client interface {
	// Generate produces a reply to the conversation in messages. The
	// system prompt is fixed at client construction.
	Generate(ctx context.Context, messages []Message) (string, error)

	// ApproveCallName asks the moderation model whether value is an
	// acceptable call name for the given field ("user_calls_bot" or
	// "bot_calls_user"). Returns false for anything but an explicit yes.
	ApproveCallName(ctx context.Context, fieldName, value string) (bool, error)
}

// New builds the configured provider client. Moderation always runs on
// Gemini, so a Groq chat client still carries a Gemini approval client.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Client, error) {
	provider, err := ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	systemPrompt, err := cfg.SystemPrompt()
	if err != nil {
		return nil, err
	}

	approver, err := newApprover(ctx, cfg.LLM.Gemini)
	if err != nil {
		return nil, fmt.Errorf("creating approval client: %w", err)
	}

	switch provider {
	case ProviderGemini:
		return newGeminiClient(ctx, cfg.LLM, systemPrompt, approver, logger)
	case ProviderGroq:
		return newGroqClient(cfg.LLM, systemPrompt, approver, logger), nil
	}
	return nil, fmt.Errorf("unsupported provider %q", provider)
}

// approvalSystemInstruction steers the moderation model. It is kept in
// Vietnamese to match the single-word verdict vocabulary the model is
// asked for.
const approvalSystemInstruction = "Ban la bo kiem duyet ten xung ho trong Discord. " +
	"Chi tra loi dung 1 tu: 'có' hoac 'ko'. " +
	"Tra 'ko' neu noi dung tuc tiu, quay roi, cong kich, " +
	"thuyet phuc thu han, tinh duc, phan biet doi xu, " +
	"hoac khong phu hop de xung ho lich su."

// approvalPrompt formats the moderation request for one call-name field.
func approvalPrompt(fieldName, value string) string {
	return fmt.Sprintf("Loai xung ho: %s\nNoi dung: %s", fieldName, value)
}

// verdictApproved interprets the moderation model's raw reply. Only an
// explicit yes ("có", with or without the diacritic) approves; anything
// else, including garbage, rejects.
func verdictApproved(raw string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "`'\".!?[](){} ")
	return cleaned == "có" || cleaned == "co"
}
