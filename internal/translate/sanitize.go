package translate

import (
	"regexp"
	"strings"
)

var (
	// (Note: ...) or [Note: ...] anywhere in the text.
	bracketedNote = regexp.MustCompile(`(?i)[\(\[]\s*(note|translator'?s note|disclaimer)\b[^\)\]]*[\)\]]`)
	// A whole line starting with "Note:".
	noteLine = regexp.MustCompile(`(?i)^\s*(note|translator'?s note|disclaimer)\s*:`)
	// "Here is the translation:" style preambles.
	preamble = regexp.MustCompile(`(?i)^\s*(here is|here's) (the|a|your) translation[^:\n]*:\s*`)
)

// SanitizeAIText strips model chatter such as machine-translation
// disclaimers and preambles from an AI translation.
func SanitizeAIText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = bracketedNote.ReplaceAllString(s, "")
	s = preamble.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if noteLine.MatchString(line) {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(line), " "))
	}

	// Collapse runs of blank lines left behind by removed notes.
	var out []string
	blank := false
	for _, line := range kept {
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
