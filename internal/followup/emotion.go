package followup

import (
	"strings"

	"github.com/ashureev/mindprobe/internal/content"
)

// Intensity levels.
const (
	IntensityIntense  = "intense"
	IntensityModerate = "moderate"
	IntensityCalm     = "calm"
)

// Emotion is the detected emotional tone of a message.
type Emotion struct {
	Name        string
	Emoji       string
	Description string
	Intensity   string
}

// DetectEmotion returns the first emotion pattern with a keyword present in
// text, or the neutral emotion.
func DetectEmotion(text string, tables *content.Tables) Emotion {
	lower := strings.ToLower(text)

	intensity := IntensityModerate
	if strings.Contains(text, "!") || containsAny(lower, tables.Intensifiers) {
		intensity = IntensityIntense
	}

	for _, e := range tables.Emotions {
		if containsAny(lower, e.Keywords) {
			return Emotion{Name: e.Name, Emoji: e.Emoji, Description: e.Description, Intensity: intensity}
		}
	}

	n := tables.NeutralEmotion
	return Emotion{Name: n.Name, Emoji: n.Emoji, Description: n.Description, Intensity: IntensityCalm}
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
