package extract

import (
	"regexp"
	"strings"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

// subgenrePhrases is checked in order; more specific phrases come before the
// phrases they contain.
var subgenrePhrases = []string{
	"black metal",
	"brutal death metal",
	"death metal",
	"symphonic metal",
	"power metal",
	"doom metal",
	"thrash metal",
	"progressive metal",
	"folk metal",
	"industrial metal",
	"nu metal",
}

var subgenrePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(subgenrePhrases))
	for _, p := range subgenrePhrases {
		expr := `(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(p), " ", `[\s-]+`) + `\b`
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}()

// DetectSubgenre returns the first known subgenre phrase found in text, or
// the baseline genre.
func DetectSubgenre(text string) string {
	for i, re := range subgenrePatterns {
		if re.MatchString(text) {
			return subgenrePhrases[i]
		}
	}
	return domain.BaselineSubgenre
}

var wordPattern = regexp.MustCompile(`[A-Za-z]+`)

// DetectEmotion returns the earliest emotion tag or detector label in text.
func DetectEmotion(text string) (domain.Emotion, bool) {
	for _, w := range wordPattern.FindAllString(text, -1) {
		if e, ok := domain.ParseEmotion(w); ok {
			return e, true
		}
	}
	return "", false
}
