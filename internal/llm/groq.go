// ABOUTME: Groq chat client using the OpenAI-compatible completions API
// ABOUTME: Built on the go-openai SDK with the Groq base URL

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/akikohatsune/neru/internal/config"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient generates chat replies through Groq's OpenAI-compatible
// endpoint. Call-name approval still goes through the Gemini approver.
type GroqClient struct {
	client       *openai.Client
	approver     *approver
	model        string
	temperature  float32
	systemPrompt string
	logger       *slog.Logger
}

func newGroqClient(cfg config.LLMConfig, systemPrompt string, approver *approver, logger *slog.Logger) *GroqClient {
	clientConfig := openai.DefaultConfig(cfg.Groq.APIKey)
	clientConfig.BaseURL = groqBaseURL

	return &GroqClient{
		client:       openai.NewClientWithConfig(clientConfig),
		approver:     approver,
		model:        cfg.Groq.Model,
		temperature:  cfg.Temperature,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "llm", "provider", "groq"),
	}
}

// Generate sends the conversation to Groq and returns the reply text.
func (c *GroqClient) Generate(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    c.buildMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("groq generate failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("groq returned an empty reply")
	}

	text := resp.Choices[0].Message.Content
	c.logger.Debug("generated reply", "model", c.model, "reply_length", len(text))
	return text, nil
}

// ApproveCallName delegates to the shared approval client.
func (c *GroqClient) ApproveCallName(ctx context.Context, fieldName, value string) (bool, error) {
	return c.approver.approve(ctx, fieldName, value)
}

// buildMessages converts messages to the OpenAI chat format. Turns with
// images use the multi-part content form with data URLs.
func (c *GroqClient) buildMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if c.systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}

	for _, msg := range messages {
		if len(msg.Images) == 0 {
			if msg.Content == "" {
				continue
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
			continue
		}

		var parts []openai.ChatMessagePart
		if msg.Content != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: msg.Content,
			})
		}
		for _, img := range msg.Images {
			dataURL := fmt.Sprintf("data:%s;base64,%s",
				img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
			})
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:         msg.Role,
			MultiContent: parts,
		})
	}
	return out
}
