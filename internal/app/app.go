// Package app wires configuration into a running analyzer and drives the
// single-URL, feed batch and HTTP modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deusflow/explainee/internal/analyzer"
	"github.com/deusflow/explainee/internal/config"
	"github.com/deusflow/explainee/internal/entities"
	"github.com/deusflow/explainee/internal/gemini"
	"github.com/deusflow/explainee/internal/glossary"
	"github.com/deusflow/explainee/internal/language"
	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/ratelimit"
	"github.com/deusflow/explainee/internal/retry"
	"github.com/deusflow/explainee/internal/rss"
	"github.com/deusflow/explainee/internal/scraper"
	"github.com/deusflow/explainee/internal/scratch"
	"github.com/deusflow/explainee/internal/server"
	"github.com/deusflow/explainee/internal/storage"
	"github.com/deusflow/explainee/internal/summarize"
	"github.com/deusflow/explainee/internal/translate"
)

type App struct {
	cfg      *config.Config
	analyzer server.Submitter
	feeds    *rss.Fetcher
	articles ArticleLog
	stats    func(ctx context.Context) map[string]interface{}
	limiter  *ratelimit.AIRateLimiter
	closers  []func() error
}

// New builds the full pipeline from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:      cfg,
		feeds:    rss.NewFetcher(cfg.FetchTimeout),
		articles: st.articles,
		stats:    st.stats,
		closers:  []func() error{st.close},
	}

	limiter := ratelimit.NewAIRateLimiter(map[string]int{
		ratelimit.Gemini: cfg.MaxGeminiRequests,
		ratelimit.OpenAI: cfg.MaxOpenAIRequests,
	}, 0)
	a.limiter = limiter

	gc, err := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, limiter)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { gc.Close(); return nil })

	providers := []translate.Provider{translate.NewGoogleProvider(cfg.FetchTimeout)}
	if op := translate.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, limiter); op != nil {
		providers = append(providers, op)
	}
	providers = append(providers, gc)
	chain := translate.NewChain(providers...)

	extractor := entities.NewExtractor(newRecognizer(cfg.NERBackend, gc))

	var lookup glossary.Lookup = glossary.NewWikipediaLookup(cfg.WikipediaAPIURL, cfg.FetchTimeout)
	if st.definitions != nil {
		lookup = glossary.NewCachedLookup(lookup, st.definitions)
	}

	a.analyzer = analyzer.New(analyzer.Deps{
		Fetcher: scraper.NewHTMLFetcher(cfg.FetchTimeout, retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
		}),
		Language:   language.NewPipeline(language.NewDetector(), chain, cfg.TranslationEnabled),
		Summarizer: summarize.New(gc, cfg.SummaryMaxLength, cfg.SummaryMinLength, cfg.SummaryInputChars),
		Extractor:  extractor,
		Glossary:   glossary.NewBuilder(extractor, lookup, cfg.GlossaryMaxEntities),
		NewScratch: func() (scratch.Store, error) {
			s, err := scratch.NewFileStore(cfg.ScratchDir)
			if err != nil {
				return nil, err
			}
			logger.Debug("Opened scratch store", "dir", s.Dir())
			return s, nil
		},
	})

	logger.Info("Pipeline ready",
		"translators", chain.Providers(),
		"translation", cfg.TranslationEnabled,
		"ner", cfg.NERBackend,
		"definition_cache", cfg.DefinitionCache)
	return a, nil
}

// newRecognizer picks the NER backend. hybrid takes PERSON and GPE from
// prose and ORG from the model, since prose does not tag organizations.
func newRecognizer(backend string, model entities.LabelModel) entities.Recognizer {
	switch backend {
	case "prose":
		return entities.NewProseRecognizer()
	case "gemini":
		return entities.NewModelRecognizer(model)
	default:
		return entities.NewCombined(
			entities.Part{Recognizer: entities.NewProseRecognizer(), Labels: []string{entities.Person, entities.GPE}},
			entities.Part{Recognizer: entities.NewModelRecognizer(model), Labels: []string{entities.Org}},
		)
	}
}

// Close releases stores and clients. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Analyze runs one article through the pipeline.
func (a *App) Analyze(ctx context.Context, rawURL string) (*analyzer.Result, error) {
	return a.analyzer.Submit(ctx, rawURL)
}

// Serve exposes the pipeline over HTTP until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := server.New(a.analyzer).
		WithStats("ai_usage", a.limiter.GetStats).
		WithStats("definition_cache", func() map[string]interface{} {
			statsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return a.stats(statsCtx)
		})
	return srv.Run(ctx, ":"+a.cfg.HTTPPort)
}

// RunFeeds analyzes the newest unseen items of the configured feeds, up to
// FeedMaxArticles. Articles that fail are logged and not marked, so a later
// run retries them.
func (a *App) RunFeeds(ctx context.Context) ([]*analyzer.Result, error) {
	urls, err := rss.LoadFeeds(a.cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feeds: %w", err)
	}

	items := a.feeds.FetchAll(ctx, urls)
	logger.Info("Collected feed items", "count", len(items))

	var results []*analyzer.Result
	for _, it := range items {
		if len(results) >= a.cfg.FeedMaxArticles || ctx.Err() != nil {
			break
		}

		hash := storage.GenerateArticleHash(it.Link)
		seen, err := a.articles.IsAnalyzed(ctx, hash)
		if err != nil {
			logger.Warn("Article log lookup failed", "link", it.Link, "error", err)
		}
		if seen {
			logger.Debug("Skipping analyzed article", "link", it.Link)
			continue
		}

		res, err := a.analyzer.Submit(ctx, it.Link)
		if err != nil {
			logger.Warn("Feed article failed", "link", it.Link, "error", err)
			continue
		}
		results = append(results, res)

		item := storage.AnalyzedItem{
			Hash:       hash,
			Title:      it.Title,
			Link:       it.Link,
			Source:     res.Source,
			Language:   res.LanguageCode,
			AnalyzedAt: time.Now(),
		}
		if err := a.articles.MarkAnalyzed(ctx, item); err != nil {
			logger.Warn("Failed to record analyzed article", "link", it.Link, "error", err)
		}
	}

	logger.Info("Feed run finished", "analyzed", len(results))
	return results, nil
}

// ScheduleFeeds runs RunFeeds on the cron spec until ctx is done. Runs never
// overlap; a tick that fires during a run is skipped. Each batch is passed
// to report.
func (a *App) ScheduleFeeds(ctx context.Context, spec string, report func([]*analyzer.Result)) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		logger.Info("Cron triggered, running feeds")
		results, err := a.RunFeeds(ctx)
		if err != nil {
			logger.Error("Scheduled feed run failed", "error", err)
			return
		}
		if report != nil {
			report(results)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("Scheduled feed runs", "schedule", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
