package language

import (
	"context"

	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/metrics"
	"github.com/deusflow/explainee/internal/translate"
)

// Translator is the best-effort translation step. It never fails; problems
// are reported in the returned Result.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) translate.Result
}

// Output is what the pipeline knows about an article's language.
type Output struct {
	Code          string
	Name          string
	English       string
	WasTranslated bool
	// Translation is the raw translation outcome when one was attempted.
	Translation *translate.Result
}

type Pipeline struct {
	detector   Detector
	translator Translator
	translate  bool
}

// NewPipeline returns a pipeline. With translation disabled, every article
// is passed through untouched.
func NewPipeline(detector Detector, translator Translator, translationEnabled bool) *Pipeline {
	return &Pipeline{
		detector:   detector,
		translator: translator,
		translate:  translationEnabled && translator != nil,
	}
}

// Process detects the language of text and translates it to English when
// it is not English. A failed translation falls back to the original text.
func (p *Pipeline) Process(ctx context.Context, text string) Output {
	code := p.detector.Detect(text)
	out := Output{
		Code:    code,
		Name:    Name(code),
		English: text,
	}

	if code == English || !p.translate {
		return out
	}

	res := p.translator.Translate(ctx, text, code, English)
	out.WasTranslated = true
	out.Translation = &res
	if res.OK() {
		out.English = res.Text
		metrics.Global.IncrementSuccessfulTranslations()
	} else {
		logger.Warn("Translation failed, keeping original text", "language", code, "error", res.Failure)
		metrics.Global.IncrementFailedTranslations()
	}
	return out
}
