// Package language detects the language of article text and renders it in
// English when needed.
package language

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

const (
	// English is the pipeline's working language.
	English = "en"
	// Unknown is the code reported when detection fails.
	Unknown = "unknown"
	// UnknownName is the display name for codes missing from the table.
	UnknownName = "Unknown"
)

// Detector returns an ISO 639-1 style code for text, or Unknown.
type Detector interface {
	Detect(text string) string
}

// WhatlangDetector uses trigram statistics from whatlanggo.
type WhatlangDetector struct {
	// MinConfidence below which the result is treated as Unknown.
	MinConfidence float64
}

func NewDetector() *WhatlangDetector {
	return &WhatlangDetector{}
}

func (d *WhatlangDetector) Detect(text string) string {
	if strings.IndexFunc(text, unicode.IsLetter) < 0 {
		return Unknown
	}

	info := whatlanggo.Detect(text)
	if info.Lang < 0 || info.Confidence < d.MinConfidence {
		return Unknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return Unknown
	}
	return code
}

var names = map[string]string{
	"af":    "Afrikaans",
	"ar":    "Arabic",
	"bg":    "Bulgarian",
	"bn":    "Bengali",
	"ca":    "Catalan",
	"cs":    "Czech",
	"cy":    "Welsh",
	"da":    "Danish",
	"de":    "German",
	"el":    "Greek",
	"en":    "English",
	"es":    "Spanish",
	"et":    "Estonian",
	"fa":    "Persian",
	"fi":    "Finnish",
	"fr":    "French",
	"gu":    "Gujarati",
	"he":    "Hebrew",
	"hi":    "Hindi",
	"hr":    "Croatian",
	"hu":    "Hungarian",
	"id":    "Indonesian",
	"it":    "Italian",
	"ja":    "Japanese",
	"kn":    "Kannada",
	"ko":    "Korean",
	"lt":    "Lithuanian",
	"lv":    "Latvian",
	"mk":    "Macedonian",
	"ml":    "Malayalam",
	"mr":    "Marathi",
	"ne":    "Nepali",
	"nl":    "Dutch",
	"no":    "Norwegian",
	"pa":    "Punjabi",
	"pl":    "Polish",
	"pt":    "Portuguese",
	"ro":    "Romanian",
	"ru":    "Russian",
	"sk":    "Slovak",
	"sl":    "Slovenian",
	"so":    "Somali",
	"sq":    "Albanian",
	"sv":    "Swedish",
	"sw":    "Swahili",
	"ta":    "Tamil",
	"te":    "Telugu",
	"th":    "Thai",
	"tl":    "Tagalog",
	"tr":    "Turkish",
	"uk":    "Ukrainian",
	"ur":    "Urdu",
	"vi":    "Vietnamese",
	"zh-cn": "Chinese (Simplified)",
	"zh-tw": "Chinese (Traditional)",
	// codes whatlanggo reports that have no regional variant above
	"zh": "Chinese",
	"be": "Belarusian",
	"sr": "Serbian",
	"az": "Azerbaijani",
	"hy": "Armenian",
	"ka": "Georgian",
}

// Name returns the English display name for code, or UnknownName.
func Name(code string) string {
	if name, ok := names[strings.ToLower(code)]; ok {
		return name
	}
	return UnknownName
}

// Supported reports whether code has an entry in the name table.
func Supported(code string) bool {
	_, ok := names[strings.ToLower(code)]
	return ok
}
