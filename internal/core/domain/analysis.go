package domain

import "fmt"

const (
	DefaultCause = "Professional burnout and organizational stress"
)

// DefaultChoice explains the genre choice when the reply did not.
func DefaultChoice(subgenre string) string {
	return fmt.Sprintf("%s provides cathartic relief for the current emotional state", subgenre)
}

// AnalysisResult is the typed output of the emotion analysis stage.
type AnalysisResult struct {
	Subgenre       string  `json:"subgenre"`
	PrimaryEmotion Emotion `json:"primary_emotion"`
	StressLevel    string  `json:"stress_level"`
	Cause          string  `json:"cause"`
	Choice         string  `json:"choice"`
	Synthesized    bool    `json:"synthesized,omitempty"`
	Strategy       string  `json:"strategy,omitempty"`
}

// Complete reports whether every field the curation stage needs is set.
func (a AnalysisResult) Complete() bool {
	return a.Subgenre != "" && a.PrimaryEmotion != "" && a.StressLevel != "" && a.Cause != "" && a.Choice != ""
}
