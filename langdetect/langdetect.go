// Package langdetect classifies clipboard text for the popup pipeline.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/unicode/norm"

	"go.aimuz.me/cliptrans/internal/types"
)

// DefaultThreshold is the CJK share at or above which text counts as Chinese.
const DefaultThreshold = 0.5

// Counts holds the letter statistics used by Classify.
type Counts struct {
	CJK   int
	Latin int
}

// Ratio returns the CJK share of all counted letters, or 0 when none.
func (c Counts) Ratio() float64 {
	total := c.CJK + c.Latin
	if total == 0 {
		return 0
	}
	return float64(c.CJK) / float64(total)
}

// Count tallies Han ideographs and Latin letters. Full-width forms are folded
// with NFKC first so "ＡＢＣ" counts as Latin.
func Count(text string) Counts {
	var c Counts
	for _, r := range norm.NFKC.String(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			c.CJK++
		case unicode.Is(unicode.Latin, r) && unicode.IsLetter(r):
			c.Latin++
		}
	}
	return c
}

// Classify decides the source and target language of text.
// Chinese text is shown as is; anything else is translated into Chinese.
// A threshold <= 0 falls back to DefaultThreshold.
func Classify(text string, threshold float64) types.Decision {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	c := Count(text)
	if c.CJK > 0 && c.Ratio() >= threshold {
		return types.Decision{Source: types.Chinese, Target: types.Chinese}
	}
	return types.Decision{Source: types.English, Target: types.Chinese}
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English,
				lingua.Chinese,
				lingua.Japanese,
				lingua.Korean,
				lingua.French,
				lingua.German,
				lingua.Spanish,
				lingua.Russian,
			).
			Build()
	})
	return detector
}

// Detect returns an ISO 639-1 code and English name for text.
// It only labels logs and the settings UI; Classify drives the pipeline.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "auto", "Auto"
	}
	lang, ok := getDetector().DetectLanguageOf(text)
	if !ok {
		return "auto", "Auto"
	}
	return strings.ToLower(lang.IsoCode639_1().String()), titleCase(lang.String())
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}
