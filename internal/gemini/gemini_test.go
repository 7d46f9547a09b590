package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/deusflow/explainee/internal/ratelimit"
)

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
	json    []bool
}

func (f *fakeGenerator) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.json = append(f.json, jsonOutput)
	return f.out, f.err
}

func TestSummarizePrompt(t *testing.T) {
	gen := &fakeGenerator{out: "  A short summary.  "}
	c := &Client{gen: gen}

	got, err := c.Summarize(context.Background(), "Article body", "en", 200, 30)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "A short summary." {
		t.Errorf("got %q", got)
	}
	if !strings.HasPrefix(gen.prompts[0], "Summarize the following news article in English.") {
		t.Errorf("prompt = %q", gen.prompts[0])
	}
	if !strings.Contains(gen.prompts[0], "between 30 and 200 words") || !strings.Contains(gen.prompts[0], "Article body") {
		t.Errorf("prompt = %q", gen.prompts[0])
	}
	if gen.json[0] {
		t.Error("summary should not request JSON output")
	}
}

func TestSummarizeInSourceLanguage(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"fr", "Summarize the following news article in French."},
		{"de", "Summarize the following news article in German."},
		{"unknown", "Summarize the following news article in the same language as the article."},
	}
	for _, tt := range tests {
		gen := &fakeGenerator{out: "Résumé."}
		c := &Client{gen: gen}
		if _, err := c.Summarize(context.Background(), "Emmanuel Macron a rencontré Olaf Scholz.", tt.lang, 200, 30); err != nil {
			t.Fatalf("Summarize(%s): %v", tt.lang, err)
		}
		if first := strings.SplitN(gen.prompts[0], "\n", 2)[0]; first != tt.want {
			t.Errorf("lang %s: first prompt line = %q, want %q", tt.lang, first, tt.want)
		}
	}
}

func TestExtractEntitiesParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{out: "```json\n{\"PERSON\": [\"Ada Lovelace\"], \"org\": [\"Royal Society\"], \"GPE\": []}\n```"}
	c := &Client{gen: gen}

	got, err := c.ExtractEntities(context.Background(), "text")
	if err != nil {
		t.Fatalf("ExtractEntities: %v", err)
	}
	if len(got["PERSON"]) != 1 || got["PERSON"][0] != "Ada Lovelace" {
		t.Errorf("PERSON = %v", got["PERSON"])
	}
	if len(got["ORG"]) != 1 || got["ORG"][0] != "Royal Society" {
		t.Errorf("ORG = %v", got["ORG"])
	}
	if !gen.json[0] {
		t.Error("entity extraction should request JSON output")
	}
}

func TestExtractEntitiesBadJSON(t *testing.T) {
	c := &Client{gen: &fakeGenerator{out: "not json"}}
	if _, err := c.ExtractEntities(context.Background(), "text"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranslateSanitizes(t *testing.T) {
	c := &Client{gen: &fakeGenerator{out: "Here is the translation:\nGood morning"}}
	got, err := c.Translate(context.Background(), "Bonjour", "fr", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Good morning" {
		t.Errorf("got %q", got)
	}
	if c.Name() != ratelimit.Gemini {
		t.Errorf("Name = %q", c.Name())
	}
}

func TestCallRespectsRateLimit(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	c := &Client{gen: gen, limiter: ratelimit.NewAIRateLimiter(map[string]int{ratelimit.Gemini: 1}, 0)}

	if _, err := c.Summarize(context.Background(), "a", "en", 10, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Summarize(context.Background(), "b", "en", 10, 1); !errors.Is(err, ratelimit.ErrLimitExceeded) {
		t.Errorf("err = %v, want rate limit", err)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("model called %d times", len(gen.prompts))
	}
}

func TestCallPropagatesModelError(t *testing.T) {
	c := &Client{gen: &fakeGenerator{err: ErrEmptyResponse}}
	if _, err := c.Summarize(context.Background(), "a", "en", 10, 1); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
		{"  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
