package extract

import (
	"fmt"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

const syntheticEntries = 3

// syntheticPlaylist builds the placeholder result that ends the cascade.
func syntheticPlaylist(subgenre string) domain.PlaylistResult {
	if subgenre == "" {
		subgenre = domain.BaselineSubgenre
	}
	// Free-form hints can be too long to name an entry; narrow them to a
	// known phrase.
	if !domain.ValidName(syntheticName(subgenre, syntheticEntries)) {
		subgenre = DetectSubgenre(subgenre)
	}
	link := domain.SearchLink(subgenre)
	artists := make([]domain.ArtistEntry, 0, syntheticEntries)
	for i := 1; i <= syntheticEntries; i++ {
		artists = append(artists, domain.ArtistEntry{
			Artist: syntheticName(subgenre, i),
			Link:   link,
		})
	}
	return domain.PlaylistResult{
		Kind:        domain.KindArtists,
		Artists:     artists,
		Subgenre:    subgenre,
		Synthesized: true,
		Strategy:    StrategySynthetic,
	}
}

func syntheticName(subgenre string, n int) string {
	return fmt.Sprintf("%s Artist %d", subgenre, n)
}
