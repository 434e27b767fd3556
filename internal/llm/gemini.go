// ABOUTME: Gemini chat client and the shared call-name approval client
// ABOUTME: Built on the google.golang.org/genai SDK

package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/akikohatsune/neru/internal/config"
)

// approver runs the call-name moderation model. It always talks to
// Gemini, regardless of which provider handles chat.
type approver struct {
	client *genai.Client
	model  string
}

func newApprover(ctx context.Context, cfg config.GeminiConfig) (*approver, error) {
	if cfg.ApprovalAPIKey == "" {
		return nil, fmt.Errorf("approval API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.ApprovalAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &approver{client: client, model: cfg.ApprovalModel}, nil
}

// approve asks the moderation model for a one-word verdict at
// temperature zero.
func (a *approver) approve(ctx context.Context, fieldName, value string) (bool, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(approvalPrompt(fieldName, value), genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		SystemInstruction: genai.NewContentFromText(approvalSystemInstruction, genai.RoleUser),
	})
	if err != nil {
		return false, fmt.Errorf("approval request failed: %w", err)
	}

	return verdictApproved(resp.Text()), nil
}

// GeminiClient generates chat replies with the Gemini API.
type GeminiClient struct {
	client       *genai.Client
	approver     *approver
	model        string
	temperature  float32
	systemPrompt string
	logger       *slog.Logger
}

func newGeminiClient(ctx context.Context, cfg config.LLMConfig, systemPrompt string, approver *approver, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	// The approval client may use a different key, so the chat client
	// gets its own.
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		approver:     approver,
		model:        cfg.Gemini.Model,
		temperature:  cfg.Temperature,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "llm", "provider", "gemini"),
	}, nil
}

// Generate sends the conversation to Gemini and returns the reply text.
func (c *GeminiClient) Generate(ctx context.Context, messages []Message) (string, error) {
	contents := buildGeminiContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("no content to send")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if c.systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty reply")
	}

	c.logger.Debug("generated reply", "model", c.model, "reply_length", len(text))
	return text, nil
}

// ApproveCallName delegates to the shared approval client.
func (c *GeminiClient) ApproveCallName(ctx context.Context, fieldName, value string) (bool, error) {
	return c.approver.approve(ctx, fieldName, value)
}

// buildGeminiContents converts messages to the genai content format,
// mapping assistant turns to the "model" role and skipping turns with
// nothing to say.
func buildGeminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		for _, img := range msg.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
