package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ArticlesAnalyzed       int64
	FetchFailures          int64
	SuccessfulTranslations int64
	FailedTranslations     int64
	SummaryFailures        int64
	GlossaryDefinitions    int64
	GlossaryMisses         int64
	DefinitionCacheHits    int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) IncrementArticlesAnalyzed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesAnalyzed++
}

func (m *Metrics) IncrementFetchFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchFailures++
}

func (m *Metrics) IncrementSuccessfulTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuccessfulTranslations++
}

func (m *Metrics) IncrementFailedTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedTranslations++
}

func (m *Metrics) IncrementSummaryFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryFailures++
}

func (m *Metrics) IncrementGlossaryDefinitions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GlossaryDefinitions++
}

func (m *Metrics) IncrementGlossaryMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GlossaryMisses++
}

func (m *Metrics) IncrementDefinitionCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefinitionCacheHits++
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

// RecordFailure notes a failed request without changing health.
func (m *Metrics) RecordFailure(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"articles_analyzed":          m.ArticlesAnalyzed,
		"fetch_failures":             m.FetchFailures,
		"successful_translations":    m.SuccessfulTranslations,
		"failed_translations":        m.FailedTranslations,
		"summary_failures":           m.SummaryFailures,
		"glossary_definitions":       m.GlossaryDefinitions,
		"glossary_misses":            m.GlossaryMisses,
		"definition_cache_hits":      m.DefinitionCacheHits,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
