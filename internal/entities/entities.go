// Package entities runs named-entity recognition and groups the mentions
// by category.
package entities

import (
	"context"
	"sort"
	"strings"

	"github.com/deusflow/explainee/internal/logger"
)

// Category labels used throughout the pipeline.
const (
	Person = "PERSON"
	Org    = "ORG"
	GPE    = "GPE"
)

// Entity is one recognized mention.
type Entity struct {
	Text  string
	Label string
}

// Recognizer finds entity mentions in English text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// Bag groups normalized mentions by label. The zero value is ready to use.
type Bag struct {
	sets map[string]map[string]struct{}
}

// Add records text under label after trimming and collapsing whitespace.
// Blank mentions are ignored.
func (b *Bag) Add(label, text string) {
	text = normalize(text)
	label = strings.ToUpper(strings.TrimSpace(label))
	if text == "" || label == "" {
		return
	}
	if b.sets == nil {
		b.sets = make(map[string]map[string]struct{})
	}
	set, ok := b.sets[label]
	if !ok {
		set = make(map[string]struct{})
		b.sets[label] = set
	}
	set[text] = struct{}{}
}

// Get returns the mentions for label in ascending order.
func (b *Bag) Get(label string) []string {
	set := b.sets[label]
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Labels returns the labels present, sorted.
func (b *Bag) Labels() []string {
	out := make([]string, 0, len(b.sets))
	for l := range b.sets {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Len is the total number of distinct mentions across labels.
func (b *Bag) Len() int {
	n := 0
	for _, set := range b.sets {
		n += len(set)
	}
	return n
}

func (b *Bag) Locations() []string { return b.Get(GPE) }
func (b *Bag) Persons() []string   { return b.Get(Person) }
func (b *Bag) Orgs() []string      { return b.Get(Org) }

// Extractor turns recognizer output into a Bag.
type Extractor struct {
	rec Recognizer
}

func NewExtractor(rec Recognizer) *Extractor {
	return &Extractor{rec: rec}
}

// Extract never fails. Recognizer errors yield an empty Bag.
func (e *Extractor) Extract(ctx context.Context, text string) *Bag {
	bag := &Bag{}
	if strings.TrimSpace(text) == "" {
		return bag
	}

	found, err := e.rec.Recognize(ctx, text)
	if err != nil {
		logger.Warn("Entity recognition failed", "error", err)
		return bag
	}
	for _, ent := range found {
		bag.Add(ent.Label, ent.Text)
	}
	logger.Debug("Entities extracted", "count", bag.Len(), "labels", bag.Labels())
	return bag
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
