// Package analyzer sequences the article pipeline: fetch, language
// processing, then summary, entity and glossary analysis.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/explainee/internal/entities"
	"github.com/deusflow/explainee/internal/glossary"
	"github.com/deusflow/explainee/internal/language"
	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/metrics"
	"github.com/deusflow/explainee/internal/scraper"
	"github.com/deusflow/explainee/internal/scratch"
	"github.com/deusflow/explainee/internal/summarize"
)

// State is a step of the analysis state machine.
type State int

const (
	Idle State = iota
	Fetching
	LanguageProcessing
	Analyzing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case LanguageProcessing:
		return "language_processing"
	case Analyzing:
		return "analyzing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scratch keys for the stage hand-off.
const (
	keyOriginal = "original"
	keyEnglish  = "english"
)

// Article is the fetched page plus what the language pipeline learned.
type Article struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Source        string `json:"source"`
	LanguageCode  string `json:"language_code"`
	LanguageName  string `json:"language_name"`
	WasTranslated bool   `json:"was_translated"`
	RawText       string `json:"original_content"`
	EnglishText   string `json:"english_content"`
}

// Insights are the summary and glossary for one rendering of the text.
type Insights struct {
	Summary      string            `json:"summary"`
	SummaryError string            `json:"summary_error,omitempty"`
	Glossary     glossary.Glossary `json:"glossary"`
}

// Result is everything produced for one article.
type Result struct {
	Article
	TranslationProvider string `json:"translation_provider,omitempty"`
	TranslationError    string `json:"translation_error,omitempty"`
	Insights
	Locations []string `json:"locations"`
	// Original holds insights over the untranslated text when the article
	// was translated.
	Original *Insights `json:"original,omitempty"`
}

// Failure is returned when an analysis ends in the Failed state.
type Failure struct {
	// Stage is the state the machine was in when it failed.
	Stage State
	// Message is suitable for showing to a user.
	Message string
	// Warning is true for content problems rather than errors.
	Warning bool
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return fmt.Sprintf("%s: %v", f.Message, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Deps are the collaborators of an Analyzer.
type Deps struct {
	Fetcher    scraper.Fetcher
	Language   *language.Pipeline
	Summarizer *summarize.Summarizer
	Extractor  *entities.Extractor
	Glossary   *glossary.Builder
	// NewScratch opens the per-request scratch store.
	NewScratch func() (scratch.Store, error)
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// Analyzer runs one analysis at a time.
type Analyzer struct {
	deps Deps

	run sync.Mutex // serializes Submit

	mu     sync.RWMutex
	state  State
	result *Result
	err    error
}

func New(deps Deps) *Analyzer {
	return &Analyzer{deps: deps}
}

// State returns the current state.
func (a *Analyzer) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Result returns the last result when the state is Ready.
func (a *Analyzer) Result() *Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.result
}

// Err returns the last failure when the state is Failed.
func (a *Analyzer) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

func (a *Analyzer) transition(to State) {
	a.mu.Lock()
	from := a.state
	a.state = to
	if to == Idle {
		a.result = nil
		a.err = nil
	}
	a.mu.Unlock()

	logger.Debug("Analyzer state change", "from", from, "to", to)
	if a.deps.OnTransition != nil {
		a.deps.OnTransition(from, to)
	}
}

func (a *Analyzer) fail(f *Failure) error {
	a.mu.Lock()
	a.err = f
	a.mu.Unlock()
	a.transition(Failed)

	if requestFault(f) {
		metrics.Global.RecordFailure(f.Error())
		logger.Warn("Analysis failed", "stage", f.Stage, "error", f.Error())
		return f
	}
	metrics.Global.SetError(f.Error())
	logger.Error("Analysis failed", "stage", f.Stage, "error", f.Error())
	return f
}

// requestFault reports whether f was caused by the submitted page rather
// than by this process.
func requestFault(f *Failure) bool {
	var fe *scraper.FetchError
	var empty *scraper.EmptyContentError
	return errors.As(f.Err, &fe) || errors.As(f.Err, &empty)
}

// Submit analyzes the article at rawURL. Concurrent calls wait for the
// running one. Errors are always *Failure.
func (a *Analyzer) Submit(ctx context.Context, rawURL string) (res *Result, err error) {
	a.run.Lock()
	defer a.run.Unlock()

	a.transition(Idle)
	start := time.Now()

	stage := Fetching
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during analysis", "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = a.fail(&Failure{Stage: stage, Message: "An unexpected error occurred while analyzing the article", Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	a.transition(Fetching)
	page, err := a.deps.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		metrics.Global.IncrementFetchFailures()
		return nil, a.fail(fetchFailure(err))
	}

	store, err := a.deps.NewScratch()
	if err != nil {
		return nil, a.fail(&Failure{Stage: Fetching, Message: "Could not allocate scratch storage", Err: err})
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("Failed to release scratch storage", "error", cerr)
		}
	}()

	stage = LanguageProcessing
	a.transition(LanguageProcessing)
	raw := page.Text()
	lang := a.deps.Language.Process(ctx, raw)
	if err := store.Put(keyOriginal, []byte(raw)); err != nil {
		return nil, a.fail(&Failure{Stage: stage, Message: "Could not store article text", Err: err})
	}
	if err := store.Put(keyEnglish, []byte(lang.English)); err != nil {
		return nil, a.fail(&Failure{Stage: stage, Message: "Could not store article text", Err: err})
	}

	stage = Analyzing
	a.transition(Analyzing)
	res, err = a.analyze(ctx, store, lang)
	if err != nil {
		return nil, a.fail(&Failure{Stage: stage, Message: "An unexpected error occurred while analyzing the article", Err: err})
	}

	res.Article = Article{
		URL:           page.URL,
		Title:         page.Title,
		Source:        page.Source,
		LanguageCode:  lang.Code,
		LanguageName:  lang.Name,
		WasTranslated: lang.WasTranslated,
		RawText:       raw,
		EnglishText:   lang.English,
	}
	if lang.Translation != nil {
		res.TranslationProvider = lang.Translation.Provider
		if lang.Translation.Failure != nil {
			res.TranslationError = lang.Translation.Failure.Error()
		}
	}

	a.mu.Lock()
	a.result = res
	a.mu.Unlock()
	a.transition(Ready)

	elapsed := time.Since(start)
	metrics.Global.IncrementArticlesAnalyzed()
	metrics.Global.RecordProcessingTime(elapsed)
	metrics.Global.SetLastRun()
	logger.Info("Article analyzed", "url", rawURL, "language", lang.Code, "translated", lang.WasTranslated,
		"locations", len(res.Locations), "glossary", len(res.Glossary), "duration", elapsed)
	logger.Debug("Glossary terms", "url", rawURL, "terms", res.Glossary.Terms())
	return res, nil
}

// analyze runs the independent stages concurrently. The English summary,
// locations and glossary always run; the original-language summary and
// glossary run only when the text was translated, and that summary is
// written in the article's own language.
func (a *Analyzer) analyze(ctx context.Context, store scratch.Store, lang language.Output) (*Result, error) {
	translated := lang.WasTranslated
	englishBytes, err := store.Get(keyEnglish)
	if err != nil {
		return nil, err
	}
	english := string(englishBytes)

	var original string
	if translated {
		originalBytes, err := store.Get(keyOriginal)
		if err != nil {
			return nil, err
		}
		original = string(originalBytes)
	}

	res := &Result{}
	var orig Insights
	g, gctx := errgroup.WithContext(ctx)

	g.Go(guard("summary", func() error {
		setSummary(&res.Insights, a.deps.Summarizer.Summarize(gctx, english))
		return nil
	}))
	g.Go(guard("entities", func() error {
		res.Locations = a.deps.Extractor.Extract(gctx, english).Locations()
		return nil
	}))
	g.Go(guard("glossary", func() error {
		res.Glossary = a.deps.Glossary.Build(gctx, english)
		return nil
	}))

	if translated {
		g.Go(guard("original summary", func() error {
			setSummary(&orig, a.deps.Summarizer.SummarizeIn(gctx, original, lang.Code))
			return nil
		}))
		g.Go(guard("original glossary", func() error {
			orig.Glossary = a.deps.Glossary.Build(gctx, original)
			return nil
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if translated {
		res.Original = &orig
	}
	return res, nil
}

func setSummary(in *Insights, s summarize.Summary) {
	in.Summary = s.Display()
	if !s.OK() {
		in.SummaryError = s.Failure.Error()
	}
}

// guard turns a panic in a stage into an error.
func guard(stage string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic in analysis stage", "stage", stage, "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("%s stage panicked: %v", stage, r)
			}
		}()
		return fn()
	}
}

func fetchFailure(err error) *Failure {
	var empty *scraper.EmptyContentError
	if errors.As(err, &empty) {
		return &Failure{Stage: Fetching, Message: "Could not extract paragraph text.", Warning: true, Err: err}
	}
	return &Failure{Stage: Fetching, Message: "Failed to fetch the article", Err: err}
}
