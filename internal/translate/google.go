package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultGoogleURL = "https://translate.googleapis.com/translate_a/single"
	// gtx rejects long query strings, so text is sent in paragraph chunks.
	defaultChunkRunes = 1800
)

// GoogleProvider uses the public Google Translate endpoint (client=gtx).
type GoogleProvider struct {
	client     *http.Client
	baseURL    string
	chunkRunes int
}

// NewGoogleProvider returns a provider with the given request timeout.
func NewGoogleProvider(timeout time.Duration) *GoogleProvider {
	return &GoogleProvider{
		client:     &http.Client{Timeout: timeout},
		baseURL:    defaultGoogleURL,
		chunkRunes: defaultChunkRunes,
	}
}

func (g *GoogleProvider) Name() string { return "google" }

func (g *GoogleProvider) Translate(ctx context.Context, text, from, to string) (string, error) {
	chunks := chunkParagraphs(text, g.chunkRunes)
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		translated, err := g.translateChunk(ctx, chunk, from, to)
		if err != nil {
			return "", err
		}
		out = append(out, translated)
	}
	return strings.Join(out, "\n\n"), nil
}

func (g *GoogleProvider) translateChunk(ctx context.Context, text, from, to string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	translation, err := parseGoogleResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return translation, nil
}

// parseGoogleResponse reads the nested array format returned by gtx:
// [[["translated","original",...],...],...]
func parseGoogleResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if parts, ok := translation.([]interface{}); ok && len(parts) > 0 {
			if s, ok := parts[0].(string); ok {
				result.WriteString(s)
			}
		}
	}
	return result.String(), nil
}

// chunkParagraphs groups "\n\n"-separated paragraphs into chunks of at most
// max runes. A single paragraph longer than max is split on rune boundaries.
func chunkParagraphs(text string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		n := utf8.RuneCountInString(para)
		if n > max {
			flush()
			runes := []rune(para)
			for len(runes) > max {
				chunks = append(chunks, string(runes[:max]))
				runes = runes[max:]
			}
			cur.WriteString(string(runes))
			curLen = len(runes)
			continue
		}
		if curLen > 0 && curLen+2+n > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += n
	}
	flush()
	return chunks
}
