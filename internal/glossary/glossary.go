// Package glossary builds short definitions for the people and
// organizations mentioned in an article.
package glossary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deusflow/explainee/internal/entities"
	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/metrics"
)

// DefaultMaxEntities caps the number of candidate terms.
const DefaultMaxEntities = 15

var (
	// ErrNotFound means the encyclopedia has no page for the term.
	ErrNotFound = errors.New("no page found")
	// ErrAmbiguous means the term resolves to a disambiguation page.
	ErrAmbiguous = errors.New("term is ambiguous")
)

// Lookup returns a short definition for term.
type Lookup interface {
	Define(ctx context.Context, term string) (string, error)
}

// Entry is one glossary line.
type Entry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Glossary keeps entries in insertion order and encodes as an ordered JSON
// object.
type Glossary []Entry

// definitionOf returns the definition for term.
func (g Glossary) definitionOf(term string) (string, bool) {
	for _, e := range g {
		if e.Term == term {
			return e.Definition, true
		}
	}
	return "", false
}

// Terms lists the terms in order.
func (g Glossary) Terms() []string {
	out := make([]string, 0, len(g))
	for _, e := range g {
		out = append(out, e.Term)
	}
	return out
}

func (g Glossary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Term)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Definition)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (g *Glossary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("glossary: expected object, got %v", tok)
	}

	out := Glossary{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		term, ok := tok.(string)
		if !ok {
			return fmt.Errorf("glossary: expected string key, got %v", tok)
		}
		var def string
		if err := dec.Decode(&def); err != nil {
			return fmt.Errorf("glossary: value for %q: %w", term, err)
		}
		out = append(out, Entry{Term: term, Definition: def})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*g = out
	return nil
}

var numericTerm = regexp.MustCompile(`^\p{Nd}+[a-zA-Z]*$`)

var commonWords = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {}, "saturday": {}, "sunday": {},
	"january": {}, "february": {}, "march": {}, "april": {}, "may": {}, "june": {}, "july": {}, "august": {},
	"september": {}, "october": {}, "november": {}, "december": {},
	"us": {}, "uk": {}, "india": {}, "president": {}, "document": {},
}

// IsTrivial reports whether term is too generic to be worth defining:
// a number with an optional letter suffix, a weekday or month or one of a
// few common words, or a term of at most two characters that is not an
// all-caps acronym.
func IsTrivial(term string) bool {
	if numericTerm.MatchString(term) {
		return true
	}
	if _, ok := commonWords[strings.ToLower(term)]; ok {
		return true
	}
	if utf8.RuneCountInString(strings.TrimSpace(term)) <= 2 && !isUpper(term) {
		return true
	}
	return false
}

// isUpper is true when term has at least one cased letter and no
// lowercase or titlecase ones.
func isUpper(term string) bool {
	cased := false
	for _, r := range term {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}

// Candidates applies the selection rule: persons then orgs, truncated to
// max, then split back by original membership. Truncation counts every
// occurrence, so a term in both lists uses two slots; after the split each
// half holds it at most once.
func Candidates(persons, orgs []string, max int) (selPersons, selOrgs []string) {
	combined := make([]string, 0, len(persons)+len(orgs))
	combined = append(combined, persons...)
	combined = append(combined, orgs...)
	if max >= 0 && len(combined) > max {
		combined = combined[:max]
	}

	inPersons := toSet(persons)
	inOrgs := toSet(orgs)
	seen := make(map[string]struct{}, len(combined))
	for _, term := range combined {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if _, ok := inPersons[term]; ok {
			selPersons = append(selPersons, term)
		}
		if _, ok := inOrgs[term]; ok {
			selOrgs = append(selOrgs, term)
		}
	}
	return selPersons, selOrgs
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

// Builder turns article text into a Glossary.
type Builder struct {
	extractor   *entities.Extractor
	lookup      Lookup
	maxEntities int
}

func NewBuilder(extractor *entities.Extractor, lookup Lookup, maxEntities int) *Builder {
	if maxEntities < 0 {
		maxEntities = DefaultMaxEntities
	}
	return &Builder{extractor: extractor, lookup: lookup, maxEntities: maxEntities}
}

// Build runs entity extraction on text and defines the selected terms.
func (b *Builder) Build(ctx context.Context, text string) Glossary {
	bag := b.extractor.Extract(ctx, text)
	return b.BuildFrom(ctx, bag.Persons(), bag.Orgs())
}

// BuildFrom defines the selected terms from precomputed entity lists.
// Trivial terms and failed lookups are dropped.
func (b *Builder) BuildFrom(ctx context.Context, persons, orgs []string) Glossary {
	selPersons, selOrgs := Candidates(persons, orgs, b.maxEntities)

	g := Glossary{}
	seen := make(map[string]struct{})
	for _, term := range append(selPersons, selOrgs...) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		if IsTrivial(term) {
			logger.Debug("Skipping trivial glossary term", "term", term)
			continue
		}
		if ctx.Err() != nil {
			break
		}

		def, err := b.lookup.Define(ctx, term)
		if err != nil {
			logger.Debug("No definition for term", "term", term, "error", err)
			metrics.Global.IncrementGlossaryMisses()
			continue
		}
		metrics.Global.IncrementGlossaryDefinitions()
		g = append(g, Entry{Term: term, Definition: def})
	}
	return g
}
