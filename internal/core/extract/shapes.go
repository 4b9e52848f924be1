package extract

// ParsedShape is the closed set of reply shapes the cascade understands.
type ParsedShape interface {
	shape() string
}

// ArtistSelection is an object carrying a list of artist entries.
// Canonical is true when the list sits under the "Selection" key.
type ArtistSelection struct {
	Field     string
	Canonical bool
	Entries   []any
}

// LegacyPlaylist is the older {"playlist": [{"title", "artist"}]} shape.
type LegacyPlaylist struct {
	Entries []any
}

// DirectArray is a top-level JSON array of artist objects or names.
type DirectArray struct {
	Entries []any
}

// AnalysisObject is any other JSON object; its fields may describe an analysis.
type AnalysisObject struct {
	Fields map[string]any
}

// FreeText is a reply with no usable JSON.
type FreeText struct {
	Text string
}

func (ArtistSelection) shape() string { return "artist_selection" }
func (LegacyPlaylist) shape() string  { return "legacy_playlist" }
func (DirectArray) shape() string     { return "direct_array" }
func (AnalysisObject) shape() string  { return "analysis_object" }
func (FreeText) shape() string        { return "free_text" }

// alternate keys that may hold the artist list
var selectionAliases = []string{"selection", "artists", "Artists", "recommendations", "bands"}

// Classify decides which shape text arrives in.
func Classify(text string) ParsedShape {
	if items, ok := leadingArray(text); ok {
		return DirectArray{Entries: items}
	}

	obj, ok := firstObject(text)
	if !ok {
		return FreeText{Text: text}
	}

	if list, ok := obj["Selection"].([]any); ok {
		return ArtistSelection{Field: "Selection", Canonical: true, Entries: list}
	}
	for _, key := range selectionAliases {
		if list, ok := obj[key].([]any); ok {
			return ArtistSelection{Field: key, Entries: list}
		}
	}
	if list, ok := obj["playlist"].([]any); ok {
		return LegacyPlaylist{Entries: list}
	}
	return AnalysisObject{Fields: obj}
}
