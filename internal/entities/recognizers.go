package entities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/deusflow/explainee/internal/logger"
)

// ProseRecognizer uses the averaged perceptron model bundled with prose. The
// model only tags PERSON and GPE.
type ProseRecognizer struct{}

func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

func (p *ProseRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	ents := doc.Entities()
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Text: e.Text, Label: e.Label})
	}
	return out, nil
}

// LabelModel returns mentions grouped by label, such as an LLM asked for
// JSON output.
type LabelModel interface {
	ExtractEntities(ctx context.Context, text string) (map[string][]string, error)
}

// ModelRecognizer adapts a LabelModel to Recognizer.
type ModelRecognizer struct {
	model LabelModel
}

func NewModelRecognizer(model LabelModel) *ModelRecognizer {
	return &ModelRecognizer{model: model}
}

func (m *ModelRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	grouped, err := m.model.ExtractEntities(ctx, text)
	if err != nil {
		return nil, err
	}

	var out []Entity
	for label, names := range grouped {
		for _, name := range names {
			out = append(out, Entity{Text: name, Label: label})
		}
	}
	return out, nil
}

// Part is one recognizer inside a Combined recognizer, limited to Labels.
// Empty Labels keeps every label.
type Part struct {
	Recognizer Recognizer
	Labels     []string
}

func (p Part) keeps(label string) bool {
	if len(p.Labels) == 0 {
		return true
	}
	for _, l := range p.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// Combined merges the mentions of several recognizers. It fails only when
// every part fails.
type Combined struct {
	parts []Part
}

func NewCombined(parts ...Part) *Combined {
	return &Combined{parts: parts}
}

func (c *Combined) Recognize(ctx context.Context, text string) ([]Entity, error) {
	var out []Entity
	var errs []error
	for _, p := range c.parts {
		ents, err := p.Recognizer.Recognize(ctx, text)
		if err != nil {
			logger.Warn("Entity recognizer failed", "labels", p.Labels, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, e := range ents {
			if p.keeps(e.Label) {
				out = append(out, e)
			}
		}
	}
	if len(errs) > 0 && len(errs) == len(c.parts) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
