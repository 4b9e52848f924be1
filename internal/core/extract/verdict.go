package extract

import (
	"strconv"
	"time"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

var (
	emotionKeys            = []string{"emotion", "primary_emotion", "primaryEmotion"}
	secondaryEmotionKeys   = []string{"secondary_emotion", "secondaryEmotion"}
	intensityKeys          = []string{"intensity", "primary_intensity", "primaryIntensity"}
	secondaryIntensityKeys = []string{"secondary_intensity", "secondaryIntensity"}
)

// defaultIntensity is used when a verdict carries neither intensity nor confidence.
const defaultIntensity = 50

// DetectVerdict reports whether a conversational reply concludes the emotion
// detection, i.e. carries a JSON object naming an emotion. Replies without
// one mean the agent wants more context.
func DetectVerdict(text string, now time.Time) (domain.EmotionAnalysis, bool) {
	obj, ok := firstObject(text)
	if !ok || !hasAny(obj, emotionKeys...) {
		return domain.EmotionAnalysis{}, false
	}

	primary, ok := domain.ParseEmotion(lookup(obj, emotionKeys...))
	if !ok {
		primary = domain.DefaultEmotion
	}
	verdict := domain.EmotionAnalysis{
		PrimaryEmotion: primary,
		Context:        lookup(obj, "context"),
		Reasoning:      lookup(obj, "reasoning"),
		Timestamp:      now,
	}
	if c, err := strconv.ParseFloat(lookup(obj, "confidence"), 64); err == nil {
		verdict.Confidence = c
	}

	verdict.PrimaryIntensity = intensity(lookup(obj, intensityKeys...), verdict.Confidence)
	if secondary, ok := domain.ParseEmotion(lookup(obj, secondaryEmotionKeys...)); ok {
		verdict.SecondaryEmotion = secondary
		verdict.SecondaryIntensity = intensity(lookup(obj, secondaryIntensityKeys...), 0)
	}
	return verdict, true
}

// intensity reads a 0..100 value, falling back to confidence scaled to 100.
func intensity(raw string, confidence float64) int {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if v <= 1 && v > 0 {
			v *= 100
		}
		return clamp(int(v+0.5), 0, 100)
	}
	if confidence > 0 {
		return clamp(int(confidence*100+0.5), 0, 100)
	}
	return defaultIntensity
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
