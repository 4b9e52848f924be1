package extract

import (
	"strings"

	"github.com/goccy/go-json"
)

// balancedSpan returns the balanced region starting at text[start], which must
// be open. Brackets inside JSON strings are ignored.
func balancedSpan(text string, start int, open, close byte) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// firstObject decodes the first balanced {...} span that is valid JSON.
func firstObject(text string) (map[string]any, bool) {
	for offset := 0; offset < len(text); {
		idx := strings.IndexByte(text[offset:], '{')
		if idx < 0 {
			return nil, false
		}
		start := offset + idx
		if span, ok := balancedSpan(text, start, '{', '}'); ok {
			var obj map[string]any
			if err := json.Unmarshal([]byte(span), &obj); err == nil {
				return obj, true
			}
		}
		offset = start + 1
	}
	return nil, false
}

// leadingArray decodes a top-level [...] span when it opens before any object.
func leadingArray(text string) ([]any, bool) {
	arr := strings.IndexByte(text, '[')
	if arr < 0 {
		return nil, false
	}
	if obj := strings.IndexByte(text, '{'); obj >= 0 && obj < arr {
		return nil, false
	}
	span, ok := balancedSpan(text, arr, '[', ']')
	if !ok {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return nil, false
	}
	return items, true
}
