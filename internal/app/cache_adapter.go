package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/explainee/internal/cache"
	"github.com/deusflow/explainee/internal/config"
	"github.com/deusflow/explainee/internal/glossary"
	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/storage"
)

// ArticleLog remembers which feed articles were already analyzed.
type ArticleLog interface {
	IsAnalyzed(ctx context.Context, hash string) (bool, error)
	MarkAnalyzed(ctx context.Context, item storage.AnalyzedItem) error
}

// MemoryStore adapts the in-process TTL cache to both the definition store
// and the article log.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(), ttl: ttl}
}

func (m *MemoryStore) GetDefinition(_ context.Context, term string) (string, bool, error) {
	v, ok := m.cache.Get(m.cache.GenerateKey("definition", normalizeTerm(term)))
	if !ok {
		return "", false, nil
	}
	def, ok := v.(string)
	return def, ok, nil
}

func (m *MemoryStore) PutDefinition(_ context.Context, term, definition string) error {
	m.cache.Set(m.cache.GenerateKey("definition", normalizeTerm(term)), definition, m.ttl)
	return nil
}

func (m *MemoryStore) IsAnalyzed(_ context.Context, hash string) (bool, error) {
	_, ok := m.cache.Get(m.cache.GenerateKey("analyzed", hash))
	return ok, nil
}

func (m *MemoryStore) MarkAnalyzed(_ context.Context, item storage.AnalyzedItem) error {
	m.cache.Set(m.cache.GenerateKey("analyzed", item.Hash), item, m.ttl)
	return nil
}

// Len is the number of live entries.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

func (m *MemoryStore) Close() error {
	return m.cache.Close()
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

// stores is the persistence chosen by DEFINITION_CACHE.
type stores struct {
	definitions glossary.DefinitionStore // nil disables definition caching
	articles    ArticleLog
	close       func() error
	stats       func(ctx context.Context) map[string]interface{}
}

func countStats(backend string, counts map[string]int) map[string]interface{} {
	out := map[string]interface{}{"backend": backend}
	for k, v := range counts {
		out[k] = v
	}
	return out
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour

	switch cfg.DefinitionCache {
	case "file":
		fc := storage.NewFileCache(cfg.CacheFilePath, cfg.CacheTTLHours)
		if err := fc.Load(); err != nil {
			logger.Warn("Could not load cache file, starting empty", "path", cfg.CacheFilePath, "error", err)
		}
		return &stores{
			definitions: fc,
			articles:    fc,
			close: func() error {
				fc.Cleanup()
				return fc.Save()
			},
			stats: func(context.Context) map[string]interface{} {
				return countStats("file", fc.GetStats())
			},
		}, nil

	case "postgres":
		pc, err := storage.NewPostgresCache(ctx, cfg.DatabaseURL, cfg.CacheTTLHours)
		if err != nil {
			return nil, fmt.Errorf("postgres cache: %w", err)
		}
		if err := pc.Cleanup(ctx); err != nil {
			logger.Warn("Postgres cache cleanup failed", "error", err)
		}
		return &stores{definitions: pc, articles: pc, close: pc.Close, stats: postgresStats(pc)}, nil

	case "redis":
		rc, err := storage.NewRedisCache(ctx, cfg.RedisAddr, cfg.CacheTTLHours)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return &stores{
			definitions: rc,
			articles:    rc,
			close:       rc.Close,
			stats: func(context.Context) map[string]interface{} {
				return map[string]interface{}{"backend": "redis"}
			},
		}, nil

	case "none":
		mem := NewMemoryStore(ttl)
		return &stores{articles: mem, close: mem.Close, stats: memoryStats("none", mem)}, nil

	default:
		mem := NewMemoryStore(ttl)
		return &stores{definitions: mem, articles: mem, close: mem.Close, stats: memoryStats("memory", mem)}, nil
	}
}

func memoryStats(backend string, mem *MemoryStore) func(context.Context) map[string]interface{} {
	return func(context.Context) map[string]interface{} {
		return map[string]interface{}{"backend": backend, "entries": mem.Len()}
	}
}

func postgresStats(pc *storage.PostgresCache) func(context.Context) map[string]interface{} {
	return func(ctx context.Context) map[string]interface{} {
		counts, err := pc.GetStats(ctx)
		if err != nil {
			return map[string]interface{}{"backend": "postgres", "error": err.Error()}
		}
		out := countStats("postgres", counts)

		recent, err := pc.GetRecentArticles(ctx, 5)
		if err != nil {
			logger.Warn("Failed to list recent articles", "error", err)
			return out
		}
		links := make([]string, 0, len(recent))
		for _, it := range recent {
			links = append(links, it.Link)
		}
		out["recent"] = links
		return out
	}
}
