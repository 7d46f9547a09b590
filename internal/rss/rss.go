package rss

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/explainee/internal/logger"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// Item is a feed entry worth analyzing.
type Item struct {
	Title     string
	Link      string
	Feed      string
	Published time.Time
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	feeds := make([]string, 0, len(cfg.Feeds))
	for _, u := range cfg.Feeds {
		if u = strings.TrimSpace(u); u != "" {
			feeds = append(feeds, u)
		}
	}
	return feeds, nil
}

// Fetcher downloads feeds.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{parser: gofeed.NewParser(), timeout: timeout}
}

// FetchAll downloads and parses all feeds. Broken feeds are logged and
// skipped. Items are deduplicated by link and ordered newest first.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Item {
	var all []Item
	seen := make(map[string]struct{})
	successCount := 0

	for _, url := range urls {
		feedCtx, cancel := context.WithTimeout(ctx, f.timeout)
		feed, err := f.parser.ParseURLWithContext(url, feedCtx)
		cancel()
		if err != nil {
			logger.Warn("Error parsing RSS", "feed", url, "error", err)
			continue
		}
		successCount++

		for _, it := range feed.Items {
			link := strings.TrimSpace(it.Link)
			if link == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			all = append(all, Item{
				Title:     strings.TrimSpace(it.Title),
				Link:      link,
				Feed:      url,
				Published: published(it),
			})
		}
		logger.Debug("Loaded feed", "feed", url, "items", len(feed.Items))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Published.After(all[j].Published)
	})

	logger.Info("Processed RSS feeds", "ok", successCount, "total", len(urls), "items", len(all))
	return all
}

func published(it *gofeed.Item) time.Time {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed
	}
	if it.UpdatedParsed != nil {
		return *it.UpdatedParsed
	}
	return time.Time{}
}
