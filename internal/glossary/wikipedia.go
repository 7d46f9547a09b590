package glossary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

const defaultSentences = 2

// WikipediaLookup reads page summaries from the Wikipedia REST API.
type WikipediaLookup struct {
	client    *http.Client
	baseURL   string
	userAgent string
	sentences int
}

// NewWikipediaLookup points at a REST base such as
// https://en.wikipedia.org/api/rest_v1.
func NewWikipediaLookup(baseURL string, timeout time.Duration) *WikipediaLookup {
	return &WikipediaLookup{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "explainee/1.0 (news glossary builder)",
		sentences: defaultSentences,
	}
}

type pageSummary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

func (w *WikipediaLookup) Define(ctx context.Context, term string) (string, error) {
	title := strings.ReplaceAll(strings.TrimSpace(term), " ", "_")
	endpoint := w.baseURL + "/page/summary/" + url.PathEscape(title) + "?redirect=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%q: %w", term, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("wikipedia returned status: %d", resp.StatusCode)
	}

	var page pageSummary
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return "", fmt.Errorf("error decoding summary: %w", err)
	}
	if page.Type == "disambiguation" {
		return "", fmt.Errorf("%q: %w", term, ErrAmbiguous)
	}

	def := FirstSentences(page.Extract, w.sentences)
	if def == "" {
		return "", fmt.Errorf("%q has no extract: %w", term, ErrNotFound)
	}
	return def, nil
}

// FirstSentences returns the first n sentences of text. A sentence ends at
// '.', '!' or '?' followed by a space and an uppercase letter, digit or
// opening quote. Single-letter initials do not end a sentence.
func FirstSentences(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 || text == "" {
		return text
	}

	runes := []rune(text)
	count := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		end := i + 1
		if end == len(runes) {
			break
		}
		if runes[end] != ' ' || end+1 >= len(runes) {
			continue
		}
		next := runes[end+1]
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) && next != '"' && next != '(' {
			continue
		}
		if isInitial(runes, i) || isTitle(runes, i) {
			continue
		}
		count++
		if count == n {
			return string(runes[:end])
		}
	}
	return text
}

// isInitial reports whether the period at i closes a single capital letter
// such as the "F." in "John F. Kennedy".
func isInitial(runes []rune, i int) bool {
	if runes[i] != '.' || i == 0 || !unicode.IsUpper(runes[i-1]) {
		return false
	}
	return i == 1 || runes[i-2] == ' ' || runes[i-2] == '.'
}

var titles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
	"gen": true, "gov": true, "sen": true, "rep": true, "rev": true, "sgt": true,
	"lt": true, "col": true, "capt": true, "mt": true,
}

// isTitle reports whether the period at i closes an honorific or similar
// abbreviation such as "Dr." or "St.".
func isTitle(runes []rune, i int) bool {
	if runes[i] != '.' {
		return false
	}
	start := i
	for start > 0 && unicode.IsLetter(runes[start-1]) {
		start--
	}
	if start == i || (start > 0 && runes[start-1] != ' ' && runes[start-1] != '(' && runes[start-1] != '"') {
		return false
	}
	return titles[strings.ToLower(string(runes[start:i]))]
}
