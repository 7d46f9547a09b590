package app

import (
	"fmt"
	"strings"

	"github.com/deusflow/explainee/internal/analyzer"
	"github.com/deusflow/explainee/internal/glossary"
)

const rule = "----------------------------------------\n"

// FormatText renders a result for the terminal.
func FormatText(res *analyzer.Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s\n", res.Title))
	b.WriteString(fmt.Sprintf("%s | %s\n", res.Source, res.URL))
	b.WriteString(rule)

	b.WriteString(fmt.Sprintf("Language: %s (%s)", res.LanguageName, res.LanguageCode))
	if res.WasTranslated {
		if res.TranslationError != "" {
			b.WriteString(" - translation failed, showing original text")
		} else {
			b.WriteString(fmt.Sprintf(" - translated to English via %s", res.TranslationProvider))
		}
	}
	b.WriteString("\n\n")

	writeInsights(&b, "Summary", "Glossary", res.Insights)

	if len(res.Locations) > 0 {
		b.WriteString("Locations: ")
		b.WriteString(strings.Join(res.Locations, ", "))
		b.WriteString("\n\n")
	}

	if res.Original != nil {
		b.WriteString(rule)
		writeInsights(&b, "Original summary", "Original glossary", *res.Original)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeInsights(b *strings.Builder, summaryTitle, glossaryTitle string, in analyzer.Insights) {
	b.WriteString(fmt.Sprintf("%s:\n%s\n\n", summaryTitle, in.Summary))
	if len(in.Glossary) > 0 {
		b.WriteString(glossaryTitle + ":\n")
		writeGlossary(b, in.Glossary)
		b.WriteString("\n")
	}
}

func writeGlossary(b *strings.Builder, g glossary.Glossary) {
	for _, e := range g {
		b.WriteString(fmt.Sprintf("  - %s: %s\n", e.Term, e.Definition))
	}
}
