package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/explainee/internal/language"
	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/ratelimit"
	"github.com/deusflow/explainee/internal/translate"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("no response from Gemini")

// generator is the single call the client needs from the model.
type generator interface {
	generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

type Client struct {
	client  *genai.Client
	gen     generator
	limiter *ratelimit.AIRateLimiter
}

func NewClient(apiKey, model string, limiter *ratelimit.AIRateLimiter) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:  client,
		gen:     &genaiGenerator{client: client, model: model},
		limiter: limiter,
	}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// genaiGenerator calls a Gemini model with deterministic settings.
type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.SetCandidateCount(1)
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (c *Client) call(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	if err := c.limiter.Use(ratelimit.Gemini); err != nil {
		return "", err
	}
	return c.gen.generate(ctx, prompt, jsonOutput)
}

// Summarize produces an abstractive summary of text written in lang, an
// ISO 639-1 code. maxLen and minLen are word targets.
func (c *Client) Summarize(ctx context.Context, text, lang string, maxLen, minLen int) (string, error) {
	prompt := fmt.Sprintf(`Summarize the following news article in %s.
Write between %d and %d words of plain prose. Do not add facts that are not in the article.
Do not use headings, lists or introductory phrases like "The article says".

ARTICLE:
%s`, summaryLanguage(lang), minLen, maxLen, text)

	out, err := c.call(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// summaryLanguage names lang for the prompt. Undetected languages ask the
// model to keep the article's own language.
func summaryLanguage(lang string) string {
	if lang == "" || !language.Supported(lang) {
		return "the same language as the article"
	}
	return language.Name(lang)
}

// ExtractEntities asks the model for PERSON, ORG and GPE mentions and
// returns them grouped by label.
func (c *Client) ExtractEntities(ctx context.Context, text string) (map[string][]string, error) {
	prompt := fmt.Sprintf(`Extract the named entities from the text below.
Return only a JSON object with exactly these keys:
"PERSON": people, "ORG": organizations, "GPE": countries, cities and regions.
Each value is an array of the entity names exactly as they appear in the text. Use empty arrays when nothing is found.

TEXT:
%s`, truncateRunes(text, 8000))

	out, err := c.call(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return parseEntities(out)
}

// Name identifies the client as a translation provider.
func (c *Client) Name() string { return ratelimit.Gemini }

// Translate implements translate.Provider.
func (c *Client) Translate(ctx context.Context, text, from, to string) (string, error) {
	out, err := c.call(ctx, translate.BuildPrompt(text, from, to), false)
	if err != nil {
		return "", err
	}
	return translate.SanitizeAIText(out), nil
}

func parseEntities(raw string) (map[string][]string, error) {
	raw = stripCodeFence(raw)

	var decoded map[string][]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.Debug("Could not parse Gemini entity response", "raw", raw)
		return nil, fmt.Errorf("could not parse Gemini entity response: %w", err)
	}

	out := make(map[string][]string, len(decoded))
	for label, names := range decoded {
		label = strings.ToUpper(strings.TrimSpace(label))
		out[label] = append(out[label], names...)
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
