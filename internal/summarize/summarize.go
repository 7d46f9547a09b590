// Package summarize wraps an abstractive summarization model with input
// truncation and a non-failing result type.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/metrics"
)

const (
	// NoContent is returned verbatim for blank input.
	NoContent = "No content to summarize."

	DefaultMaxLength  = 200
	DefaultMinLength  = 30
	DefaultInputChars = 3500
)

// English is the language of summaries produced by Summarize.
const English = "en"

// Model is an abstractive summarization backend. lang is the ISO 639-1 code
// of the language the summary must be written in.
type Model interface {
	Summarize(ctx context.Context, text, lang string, maxLen, minLen int) (string, error)
}

// Summary is either a text or the reason the model could not produce one.
type Summary struct {
	Text    string
	Failure error
}

// OK reports whether the model produced the summary.
func (s Summary) OK() bool { return s.Failure == nil }

// Display is the text shown to users in place of the summary.
func (s Summary) Display() string {
	if s.Failure != nil {
		return fmt.Sprintf("Error generating summary: %v", s.Failure)
	}
	return s.Text
}

type Summarizer struct {
	model      Model
	maxLength  int
	minLength  int
	inputChars int
}

// New returns a summarizer. Zero values fall back to the defaults.
func New(model Model, maxLength, minLength, inputChars int) *Summarizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if inputChars <= 0 {
		inputChars = DefaultInputChars
	}
	return &Summarizer{model: model, maxLength: maxLength, minLength: minLength, inputChars: inputChars}
}

// Summarize writes an English summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) Summary {
	return s.SummarizeIn(ctx, text, English)
}

// SummarizeIn writes the summary in lang. It never returns an error; model
// failures are carried in the Summary.
func (s *Summarizer) SummarizeIn(ctx context.Context, text, lang string) Summary {
	if strings.TrimSpace(text) == "" {
		return Summary{Text: NoContent}
	}

	input := Truncate(text, s.inputChars)
	if len(input) < len(text) {
		logger.Debug("Summary input truncated", "chars", s.inputChars)
	}

	out, err := s.model.Summarize(ctx, input, lang, s.maxLength, s.minLength)
	if err != nil {
		logger.Warn("Summarization failed", "error", err)
		metrics.Global.IncrementSummaryFailures()
		return Summary{Failure: err}
	}
	return Summary{Text: strings.TrimSpace(out)}
}

// Truncate cuts text to at most max characters without splitting a rune.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
