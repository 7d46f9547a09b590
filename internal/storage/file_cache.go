package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// DefinitionItem is a cached glossary definition.
type DefinitionItem struct {
	Term       string    `json:"term"`
	Definition string    `json:"definition"`
	StoredAt   time.Time `json:"stored_at"`
}

// AnalyzedItem records an article that was already analyzed.
type AnalyzedItem struct {
	Hash       string    `json:"hash"`
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Source     string    `json:"source"`
	Language   string    `json:"language"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

type fileContents struct {
	Definitions []DefinitionItem `json:"definitions"`
	Analyzed    []AnalyzedItem   `json:"analyzed"`
}

// FileCache keeps definitions and analyzed articles in a JSON file.
type FileCache struct {
	filePath    string
	ttlHours    int
	definitions map[string]DefinitionItem
	analyzed    map[string]AnalyzedItem
	mu          sync.RWMutex
	now         func() time.Time
}

// NewFileCache creates a new file cache instance
func NewFileCache(filePath string, ttlHours int) *FileCache {
	return &FileCache{
		filePath:    filePath,
		ttlHours:    ttlHours,
		definitions: make(map[string]DefinitionItem),
		analyzed:    make(map[string]AnalyzedItem),
		now:         time.Now,
	}
}

// Load loads existing cache from file
func (fc *FileCache) Load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	data, err := os.ReadFile(fc.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, start with empty cache
			return nil
		}
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	// Load items into memory, filtering expired ones
	cutoff := fc.cutoff()
	for _, item := range contents.Definitions {
		if item.StoredAt.After(cutoff) {
			fc.definitions[termKey(item.Term)] = item
		}
	}
	for _, item := range contents.Analyzed {
		if item.AnalyzedAt.After(cutoff) {
			fc.analyzed[item.Hash] = item
		}
	}
	return nil
}

// Save saves current cache to file
func (fc *FileCache) Save() error {
	fc.mu.RLock()
	contents := fileContents{
		Definitions: make([]DefinitionItem, 0, len(fc.definitions)),
		Analyzed:    make([]AnalyzedItem, 0, len(fc.analyzed)),
	}
	for _, item := range fc.definitions {
		contents.Definitions = append(contents.Definitions, item)
	}
	for _, item := range fc.analyzed {
		contents.Analyzed = append(contents.Analyzed, item)
	}
	fc.mu.RUnlock()

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(fc.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// GetDefinition returns a stored definition still within TTL.
func (fc *FileCache) GetDefinition(_ context.Context, term string) (string, bool, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, ok := fc.definitions[termKey(term)]
	if !ok || !item.StoredAt.After(fc.cutoff()) {
		return "", false, nil
	}
	return item.Definition, true, nil
}

// PutDefinition stores a definition in memory. Call Save to persist.
func (fc *FileCache) PutDefinition(_ context.Context, term, definition string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.definitions[termKey(term)] = DefinitionItem{
		Term:       term,
		Definition: definition,
		StoredAt:   fc.now(),
	}
	return nil
}

// IsAnalyzed checks if an article with this hash was analyzed within TTL.
func (fc *FileCache) IsAnalyzed(_ context.Context, hash string) (bool, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, exists := fc.analyzed[hash]
	if !exists {
		return false, nil
	}
	return item.AnalyzedAt.After(fc.cutoff()), nil
}

// MarkAnalyzed records an analyzed article.
func (fc *FileCache) MarkAnalyzed(_ context.Context, item AnalyzedItem) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if item.AnalyzedAt.IsZero() {
		item.AnalyzedAt = fc.now()
	}
	fc.analyzed[item.Hash] = item
	return nil
}

// Cleanup removes expired items from memory
func (fc *FileCache) Cleanup() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	cutoff := fc.cutoff()
	for key, item := range fc.definitions {
		if item.StoredAt.Before(cutoff) {
			delete(fc.definitions, key)
		}
	}
	for hash, item := range fc.analyzed {
		if item.AnalyzedAt.Before(cutoff) {
			delete(fc.analyzed, hash)
		}
	}
}

// GetStats returns cache statistics
func (fc *FileCache) GetStats() map[string]int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return map[string]int{
		"definitions": len(fc.definitions),
		"analyzed":    len(fc.analyzed),
	}
}

func (fc *FileCache) cutoff() time.Time {
	return fc.now().Add(-time.Duration(fc.ttlHours) * time.Hour)
}

// GenerateArticleHash creates a stable hash for an article from its
// normalized link, so distinct stories sharing a headline stay distinct.
func GenerateArticleHash(link string) string {
	h := sha256.New()
	h.Write([]byte(normalizeLink(link)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// termKey normalizes glossary terms so lookups ignore case and spacing.
func termKey(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

// normalizeLink drops the scheme, a leading "www.", the fragment and any
// trailing slash, and lowercases the host. Path and query are kept as is.
func normalizeLink(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.ToLower(link)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	out := host + strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}
