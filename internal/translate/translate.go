// Package translate turns article text into English using a chain of
// providers, falling back to the original text when all of them fail.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deusflow/explainee/internal/logger"
)

// ErrAllProvidersFailed is wrapped into Result.Failure when no provider
// produced a translation.
var ErrAllProvidersFailed = errors.New("all translation providers failed")

// AutoDetect is passed as the source language when detection gave up.
const AutoDetect = "auto"

// Provider is a single translation backend.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Result is the outcome of a best-effort translation. On failure Text holds
// the untouched input.
type Result struct {
	Text     string
	Provider string
	Failure  error
}

// OK reports whether a provider translated the text.
func (r Result) OK() bool { return r.Failure == nil }

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain, skipping nil providers.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Providers returns the provider names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Translate never returns an error; failures are reported in Result.Failure.
func (c *Chain) Translate(ctx context.Context, text, from, to string) Result {
	if strings.TrimSpace(text) == "" || from == to {
		return Result{Text: text}
	}
	if from == "" || from == "unknown" {
		from = AutoDetect
	}

	var errs []error
	for _, p := range c.providers {
		out, err := p.Translate(ctx, text, from, to)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errors.New("empty translation")
		}
		if err != nil {
			logger.Warn("Translation provider failed", "provider", p.Name(), "from", from, "to", to, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		logger.Info("Translation succeeded", "provider", p.Name(), "from", from, "to", to)
		return Result{Text: out, Provider: p.Name()}
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	logger.Warn("All translation providers failed, using original text", "from", from, "to", to)
	return Result{
		Text:    text,
		Failure: fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...)),
	}
}
