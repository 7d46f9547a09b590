package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/explainee/internal/ratelimit"
)

// OpenAIProvider translates with a chat completion model.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	limiter *ratelimit.AIRateLimiter
	timeout time.Duration
}

// NewOpenAIProvider returns nil when apiKey is empty so it drops out of a Chain.
func NewOpenAIProvider(apiKey, model string, limiter *ratelimit.AIRateLimiter) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	return newOpenAIProvider(openai.DefaultConfig(apiKey), model, limiter)
}

func newOpenAIProvider(cfg openai.ClientConfig, model string, limiter *ratelimit.AIRateLimiter) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		limiter: limiter,
		timeout: 20 * time.Second,
	}
}

func (o *OpenAIProvider) Name() string { return ratelimit.OpenAI }

func (o *OpenAIProvider) Translate(ctx context.Context, text, from, to string) (string, error) {
	if err := o.limiter.Use(ratelimit.OpenAI); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(text, from, to),
			},
		},
		MaxTokens:   2000,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return SanitizeAIText(resp.Choices[0].Message.Content), nil
}

// BuildPrompt is the translation instruction shared by the AI providers.
func BuildPrompt(text, from, to string) string {
	source := "the source language"
	if from != "" && from != AutoDetect {
		source = fmt.Sprintf("the language with ISO code %q", from)
	}
	return fmt.Sprintf(`Translate the following news text from %s to the language with ISO code %q.
Keep the meaning, tone and journalistic style of the original.
Keep paragraph breaks. Translate only the text itself, without additional comments.

Text to translate:
%s`, source, to, strings.TrimSpace(text))
}
