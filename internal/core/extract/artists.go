package extract

import (
	"regexp"
	"strings"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

var (
	artistFieldPattern = regexp.MustCompile(`"artist"\s*:\s*"([^"]+)"`)
	// the trailing group catches JSON keys so they can be skipped
	quotedNamePattern = regexp.MustCompile(`"([A-Za-z][A-Za-z0-9 &'\-.]+)"(\s*:)?`)
)

// artistsFromText runs the entity patterns in order and returns the names of
// the first pattern that yields anything, falling back to a line scan.
func artistsFromText(text string) []string {
	if names := collect(artistFieldPattern.FindAllStringSubmatch(text, -1), false); len(names) > 0 {
		return names
	}
	if names := collect(quotedNamePattern.FindAllStringSubmatch(text, -1), true); len(names) > 0 {
		return names
	}
	return artistsFromLines(text)
}

func collect(matches [][]string, skipKeys bool) []string {
	acc := newNameSet()
	for _, m := range matches {
		if skipKeys && len(m) > 2 && m[2] != "" {
			continue
		}
		name := strings.TrimSpace(m[1])
		if rejectedName(name) {
			continue
		}
		acc.add(name)
	}
	return acc.names
}

func artistsFromLines(text string) []string {
	acc := newNameSet()
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasSuffix(trimmed, ":") {
			continue
		}
		if strings.ContainsAny(trimmed[:1], "{}[]") {
			continue
		}
		item, listed := stripListMarker(trimmed)
		head := nameHead(item)
		if !looksLikeName(head, listed) {
			continue
		}
		acc.add(head)
	}
	return acc.names
}

// nameSet keeps first-seen order, drops case-insensitive repeats and stops at
// the playlist cap.
type nameSet struct {
	seen  map[string]struct{}
	names []string
}

func newNameSet() *nameSet {
	return &nameSet{seen: map[string]struct{}{}}
}

func (s *nameSet) add(name string) {
	if len(s.names) >= domain.MaxArtists {
		return
	}
	key := strings.ToLower(name)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.names = append(s.names, name)
}
