package domain

import (
	"strconv"
	"strings"
	"time"
)

// Emotion is one of the twelve mood tags the recommender understands.
type Emotion string

const (
	EmotionHappy   Emotion = "happy"
	EmotionExcited Emotion = "excited"
	EmotionContent Emotion = "content"

	EmotionSad          Emotion = "sad"
	EmotionTired        Emotion = "tired"
	EmotionInconsolable Emotion = "inconsolable"

	EmotionAngry      Emotion = "angry"
	EmotionEnraged    Emotion = "enraged"
	EmotionHysterical Emotion = "hysterical"

	EmotionCalm      Emotion = "calm"
	EmotionWorried   Emotion = "worried"
	EmotionEnergetic Emotion = "energetic"
)

// DefaultEmotion is used when nothing in an analysis names a known emotion.
const DefaultEmotion = EmotionCalm

// Quadrant groups three emotions on the emotion wheel.
type Quadrant string

const (
	QuadrantHappy Quadrant = "happy"
	QuadrantSad   Quadrant = "sad"
	QuadrantAngry Quadrant = "angry"
	QuadrantCalm  Quadrant = "calm"
)

// Emotions lists the tags in wheel order.
var Emotions = []Emotion{
	EmotionHappy, EmotionExcited, EmotionContent,
	EmotionSad, EmotionTired, EmotionInconsolable,
	EmotionAngry, EmotionEnraged, EmotionHysterical,
	EmotionCalm, EmotionWorried, EmotionEnergetic,
}

var quadrants = map[Emotion]Quadrant{
	EmotionHappy:        QuadrantHappy,
	EmotionExcited:      QuadrantHappy,
	EmotionContent:      QuadrantHappy,
	EmotionSad:          QuadrantSad,
	EmotionTired:        QuadrantSad,
	EmotionInconsolable: QuadrantSad,
	EmotionAngry:        QuadrantAngry,
	EmotionEnraged:      QuadrantAngry,
	EmotionHysterical:   QuadrantAngry,
	EmotionCalm:         QuadrantCalm,
	EmotionWorried:      QuadrantCalm,
	EmotionEnergetic:    QuadrantCalm,
}

// coarse labels returned by the conversational emotion detector
var emotionAliases = map[string]Emotion{
	"joy":      EmotionHappy,
	"sadness":  EmotionSad,
	"anger":    EmotionAngry,
	"fear":     EmotionWorried,
	"disgust":  EmotionAngry,
	"surprise": EmotionExcited,
	"neutral":  EmotionCalm,
}

// ParseEmotion maps a tag or a coarse detector label to an Emotion.
func ParseEmotion(raw string) (Emotion, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if _, ok := quadrants[Emotion(key)]; ok {
		return Emotion(key), true
	}
	if e, ok := emotionAliases[key]; ok {
		return e, true
	}
	return "", false
}

// Valid reports whether e is one of the twelve tags.
func (e Emotion) Valid() bool {
	_, ok := quadrants[e]
	return ok
}

// Quadrant returns the wheel quadrant, or "" for unknown emotions.
func (e Emotion) Quadrant() Quadrant {
	return quadrants[e]
}

// Title returns the emotion with its first letter upper-cased.
func (e Emotion) Title() string {
	if e == "" {
		return ""
	}
	s := string(e)
	return strings.ToUpper(s[:1]) + s[1:]
}

// MaxStressLevel is the top of the stress selector scale.
const MaxStressLevel = 7

// MaxEventLength bounds the free-text event description.
const MaxEventLength = 500

// EmotionInput is the structured selection made on the emotion wheel.
type EmotionInput struct {
	Primary     Emotion `json:"primary" validate:"required,emotion"`
	StressLevel *int    `json:"stressLevel,omitempty" validate:"omitempty,gte=0,lte=7"`
	Event       string  `json:"event,omitempty" validate:"max=500"`
}

// StressLabel renders the stress level the way prompt variables expect it.
func (in EmotionInput) StressLabel() string {
	if in.StressLevel == nil {
		return "none"
	}
	return strconv.Itoa(*in.StressLevel)
}

// EventLabel returns the event or "none".
func (in EmotionInput) EventLabel() string {
	if strings.TrimSpace(in.Event) == "" {
		return "none"
	}
	return in.Event
}

// Validate checks the invariants without the request validator.
func (in EmotionInput) Validate() error {
	if !in.Primary.Valid() {
		return &ValidationError{Field: "primary", Message: "primary must be one of the 12 emotion tags"}
	}
	if in.StressLevel != nil && (*in.StressLevel < 0 || *in.StressLevel > MaxStressLevel) {
		return &ValidationError{Field: "stressLevel", Message: "stressLevel must be between 0 and 7"}
	}
	if len([]rune(in.Event)) > MaxEventLength {
		return &ValidationError{Field: "event", Message: "event must be at most 500 characters"}
	}
	return nil
}

// EmotionAnalysis is the resolved emotional state of a conversation.
type EmotionAnalysis struct {
	PrimaryEmotion     Emotion   `json:"primaryEmotion"`
	PrimaryIntensity   int       `json:"primaryIntensity"`
	SecondaryEmotion   Emotion   `json:"secondaryEmotion,omitempty"`
	SecondaryIntensity int       `json:"secondaryIntensity,omitempty"`
	Confidence         float64   `json:"confidence,omitempty"`
	Context            string    `json:"context,omitempty"`
	Reasoning          string    `json:"reasoning,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}
