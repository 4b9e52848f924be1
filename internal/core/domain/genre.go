package domain

// Subgenre is a metal style used as the curation target.
type Subgenre string

const (
	SubgenreDeath       Subgenre = "death"
	SubgenreBlack       Subgenre = "black"
	SubgenrePower       Subgenre = "power"
	SubgenreDoom        Subgenre = "doom"
	SubgenreThrash      Subgenre = "thrash"
	SubgenreProgressive Subgenre = "progressive"
	SubgenreSymphonic   Subgenre = "symphonic"
	SubgenreFolk        Subgenre = "folk"
	SubgenreIndustrial  Subgenre = "industrial"
	SubgenreNuMetal     Subgenre = "nu-metal"
)

// BaselineSubgenre is the genre name used when no subgenre can be detected.
const BaselineSubgenre = "metal"

// Phrase returns the human-readable genre name, e.g. "black metal".
func (s Subgenre) Phrase() string {
	if s == SubgenreNuMetal {
		return "nu metal"
	}
	if s == "" {
		return BaselineSubgenre
	}
	return string(s) + " metal"
}

// GenreWeighting is the derived genre bias for one curation request.
type GenreWeighting struct {
	PrimaryGenres   []Subgenre `json:"primaryGenres"`
	SecondaryGenres []Subgenre `json:"secondaryGenres"`
	Reasoning       string     `json:"reasoning"`
}

// All returns primary then secondary genres.
func (w GenreWeighting) All() []Subgenre {
	out := make([]Subgenre, 0, len(w.PrimaryGenres)+len(w.SecondaryGenres))
	out = append(out, w.PrimaryGenres...)
	return append(out, w.SecondaryGenres...)
}

// Lead returns the phrase of the first primary genre, or the baseline.
func (w GenreWeighting) Lead() string {
	if len(w.PrimaryGenres) == 0 {
		return BaselineSubgenre
	}
	return w.PrimaryGenres[0].Phrase()
}
