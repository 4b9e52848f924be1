package extract

import (
	"strconv"
	"strings"
	"unicode"
)

// lowercase words that may appear inside a band name
var nameConnectors = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "de": {}, "del": {}, "der": {}, "du": {},
	"for": {}, "in": {}, "la": {}, "le": {}, "of": {}, "on": {}, "the": {}, "to": {},
	"van": {}, "von": {}, "y": {}, "&": {},
}

// schema words that show up quoted in malformed JSON and are never names
var schemaWords = map[string]struct{}{
	"artist": {}, "artists": {}, "link": {}, "selection": {}, "playlist": {},
	"title": {}, "name": {}, "type": {}, "songs": {},
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

// stripListMarker removes "1.", "2)", "-", "*" or "•" prefixes and reports
// whether one was present.
func stripListMarker(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, marker := range []string{"- ", "* ", "• ", "– ", "— "} {
		if strings.HasPrefix(trimmed, marker) {
			return strings.TrimSpace(trimmed[len(marker):]), true
		}
	}
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i > 0 && i < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') {
		return strings.TrimSpace(trimmed[i+1:]), true
	}
	return trimmed, false
}

// nameHead cuts a list line down to the part before a description separator.
func nameHead(item string) string {
	item = strings.ReplaceAll(item, "**", "")
	item = strings.ReplaceAll(item, "__", "")
	cut := len(item)
	for _, sep := range []string{" - ", " – ", " — ", ":", " | "} {
		if idx := strings.Index(item, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	head := stripBracketedSegments(item[:cut])
	head = strings.Join(strings.Fields(head), " ")
	return strings.Trim(head, " \"'`,;")
}

// rejectedName applies the filters every heuristic candidate must pass.
func rejectedName(name string) bool {
	n := len([]rune(name))
	if n <= 2 || n >= 50 {
		return true
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "http") || strings.Contains(lower, "link") {
		return true
	}
	_, schema := schemaWords[lower]
	return schema
}

// looksLikeName separates band names from sentences. Listed lines get the
// benefit of the doubt; bare lines must read like a title.
func looksLikeName(name string, listed bool) bool {
	if rejectedName(name) {
		return false
	}
	if strings.ContainsAny(name, ",;?") {
		return false
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, "!") {
		return false
	}
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 6 {
		return false
	}
	first := []rune(words[0])[0]
	if !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		return false
	}
	if listed {
		return true
	}
	if unicode.IsLower(first) {
		return false
	}
	for _, w := range words[1:] {
		r := []rune(w)[0]
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			continue
		}
		if _, ok := nameConnectors[strings.ToLower(w)]; ok {
			continue
		}
		return false
	}
	return true
}

// stringify renders a decoded JSON scalar as text.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}

// lookup returns the first non-empty field among keys.
func lookup(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func hasAny(fields map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}
