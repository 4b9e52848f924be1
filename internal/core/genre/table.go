package genre

import "github.com/ewilliams-labs/tunnetilasi/internal/core/domain"

// Mapping is the genre bias of a single emotion.
type Mapping struct {
	Primary     []domain.Subgenre
	Secondary   []domain.Subgenre
	Description string
}

var (
	death       = domain.SubgenreDeath
	black       = domain.SubgenreBlack
	power       = domain.SubgenrePower
	doom        = domain.SubgenreDoom
	thrash      = domain.SubgenreThrash
	progressive = domain.SubgenreProgressive
	symphonic   = domain.SubgenreSymphonic
	folk        = domain.SubgenreFolk
	industrial  = domain.SubgenreIndustrial
	numetal     = domain.SubgenreNuMetal
)

var table = map[domain.Emotion]Mapping{
	domain.EmotionHappy: {
		Primary:     []domain.Subgenre{power, folk, symphonic},
		Secondary:   []domain.Subgenre{progressive, thrash},
		Description: "uplifting and energetic metal with triumphant themes",
	},
	domain.EmotionContent: {
		Primary:     []domain.Subgenre{progressive, symphonic},
		Secondary:   []domain.Subgenre{power, folk},
		Description: "warm, melodic metal that sustains a settled mood",
	},
	domain.EmotionExcited: {
		Primary:     []domain.Subgenre{thrash, power},
		Secondary:   []domain.Subgenre{industrial, numetal},
		Description: "fast, driving metal that keeps the adrenaline up",
	},
	domain.EmotionSad: {
		Primary:     []domain.Subgenre{doom, black, symphonic},
		Secondary:   []domain.Subgenre{progressive, folk},
		Description: "melancholic and emotional metal that resonates with sorrow",
	},
	domain.EmotionTired: {
		Primary:     []domain.Subgenre{doom, progressive},
		Secondary:   []domain.Subgenre{symphonic, folk},
		Description: "slow, heavy metal that lets exhaustion settle",
	},
	domain.EmotionInconsolable: {
		Primary:     []domain.Subgenre{black, doom},
		Secondary:   []domain.Subgenre{death, symphonic},
		Description: "bleak, atmospheric metal that sits with grief",
	},
	domain.EmotionAngry: {
		Primary:     []domain.Subgenre{thrash, death, black},
		Secondary:   []domain.Subgenre{industrial, numetal},
		Description: "aggressive and intense metal genres that channel raw energy",
	},
	domain.EmotionEnraged: {
		Primary:     []domain.Subgenre{death, black, thrash},
		Secondary:   []domain.Subgenre{industrial, numetal},
		Description: "brutal, relentless metal that matches fury head on",
	},
	domain.EmotionHysterical: {
		Primary:     []domain.Subgenre{black, death, industrial},
		Secondary:   []domain.Subgenre{thrash, numetal},
		Description: "chaotic, dissonant metal that mirrors overwhelming tension",
	},
	domain.EmotionCalm: {
		Primary:     []domain.Subgenre{progressive, symphonic},
		Secondary:   []domain.Subgenre{doom, folk},
		Description: "balanced and contemplative metal for steady moods",
	},
	domain.EmotionWorried: {
		Primary:     []domain.Subgenre{progressive, black},
		Secondary:   []domain.Subgenre{doom, symphonic},
		Description: "atmospheric and ominous metal that gives anxiety a shape",
	},
	domain.EmotionEnergetic: {
		Primary:     []domain.Subgenre{thrash, power},
		Secondary:   []domain.Subgenre{folk, industrial},
		Description: "high-tempo metal built for momentum",
	},
}

var fallback = domain.GenreWeighting{
	PrimaryGenres:   []domain.Subgenre{progressive, symphonic},
	SecondaryGenres: []domain.Subgenre{power, folk},
	Reasoning:       "Using balanced metal genres for unrecognized emotion",
}

// Lookup returns the table entry for e.
func Lookup(e domain.Emotion) (Mapping, bool) {
	m, ok := table[e]
	return m, ok
}
