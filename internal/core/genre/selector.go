// Package genre turns an emotional state into a weighted set of metal subgenres.
package genre

import (
	"fmt"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

const (
	maxPrimary   = 4
	maxSecondary = 3

	// blendThreshold is the secondary intensity above which its genres are merged.
	blendThreshold = 30
	// promoteWeight is the secondary weight above which its lead genre joins the primary set.
	promoteWeight = 0.5
)

// Select computes the genre weighting for a primary emotion and an optional
// secondary one. It is deterministic and never fails; unknown primaries get a
// balanced default.
func Select(primary domain.Emotion, primaryIntensity int, secondary domain.Emotion, secondaryIntensity int) domain.GenreWeighting {
	pm, ok := table[primary]
	if !ok {
		return domain.GenreWeighting{
			PrimaryGenres:   append([]domain.Subgenre(nil), fallback.PrimaryGenres...),
			SecondaryGenres: append([]domain.Subgenre(nil), fallback.SecondaryGenres...),
			Reasoning:       fallback.Reasoning,
		}
	}

	primaries := append([]domain.Subgenre(nil), pm.Primary...)
	secondaries := append([]domain.Subgenre(nil), pm.Secondary...)

	sm, blended := table[secondary]
	blended = blended && secondaryIntensity > blendThreshold
	if blended {
		if float64(secondaryIntensity)/100 > promoteWeight && len(sm.Primary) > 0 {
			primaries = append(primaries, sm.Primary[0])
		}
		secondaries = append(secondaries, sm.Secondary...)
	}

	reasoning := fmt.Sprintf("Selected %s based on %s intensity %s", pm.Description, IntensityLevel(primaryIntensity), primary)
	if blended {
		reasoning += fmt.Sprintf(", blended with %s intensity %s for emotional complexity", IntensityLevel(secondaryIntensity), secondary)
	}
	reasoning += "."

	return domain.GenreWeighting{
		PrimaryGenres:   capped(dedupe(primaries), maxPrimary),
		SecondaryGenres: capped(dedupe(secondaries), maxSecondary),
		Reasoning:       reasoning,
	}
}

// SelectFor is Select over a resolved EmotionAnalysis.
func SelectFor(a domain.EmotionAnalysis) domain.GenreWeighting {
	return Select(a.PrimaryEmotion, a.PrimaryIntensity, a.SecondaryEmotion, a.SecondaryIntensity)
}

// IntensityLevel buckets a 0..100 intensity: high above 80, medium from 50, low below.
func IntensityLevel(intensity int) string {
	switch {
	case intensity > 80:
		return "high"
	case intensity >= 50:
		return "medium"
	default:
		return "low"
	}
}

func dedupe(in []domain.Subgenre) []domain.Subgenre {
	seen := make(map[domain.Subgenre]struct{}, len(in))
	out := make([]domain.Subgenre, 0, len(in))
	for _, g := range in {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

func capped(in []domain.Subgenre, n int) []domain.Subgenre {
	if len(in) > n {
		return in[:n]
	}
	return in
}
