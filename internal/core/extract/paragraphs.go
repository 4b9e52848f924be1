package extract

import (
	"regexp"
	"strings"
)

var (
	causeKeywords  = []string{"stress", "cause", "corporate", "transformation"}
	choiceKeywords = []string{"metal", "catharsis", "relief", "chosen"}

	// "IT" is matched case-sensitively as a whole word
	itPattern        = regexp.MustCompile(`\bIT\b`)
	paragraphBreak   = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
)

// longTextThreshold is the length above which a single paragraph is split by sentence.
const longTextThreshold = 200

func isCauseParagraph(p string) bool {
	lower := strings.ToLower(p)
	for _, k := range causeKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return itPattern.MatchString(p)
}

func isChoiceParagraph(p string) bool {
	lower := strings.ToLower(p)
	for _, k := range choiceKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// causeAndChoice classifies paragraphs by keyword. When no paragraph matches
// it splits at the midpoint: paragraphs if there are several, otherwise the
// sentences of a long single text. Either value may come back empty.
func causeAndChoice(text string) (cause, choice string) {
	paragraphs := splitParagraphs(text)
	for _, p := range paragraphs {
		switch {
		case isCauseParagraph(p):
			cause = p
		case isChoiceParagraph(p):
			choice = p
		}
	}
	if cause != "" || choice != "" {
		return cause, choice
	}

	if len(paragraphs) >= 2 {
		mid := len(paragraphs) / 2
		return strings.Join(paragraphs[:mid], " "), strings.Join(paragraphs[mid:], " ")
	}

	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) <= longTextThreshold {
		return "", ""
	}
	var sentences []string
	for _, s := range sentenceBoundary.Split(trimmed, -1) {
		if t := strings.TrimSpace(s); t != "" {
			sentences = append(sentences, t)
		}
	}
	mid := len(sentences) / 2
	return joinSentences(sentences[:mid]), joinSentences(sentences[mid:])
}

func joinSentences(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return strings.Join(s, ". ") + "."
}
