package session

import (
	"strings"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
)

// Features are the aggregate signals classification decides on.
type Features struct {
	Negative bool
	Positive bool
	Question bool
	Action   bool
	Specific bool
	Detailed bool
	Words    int
}

// ExtractFeatures scans the lower-cased, space-joined user texts for marker
// substrings and measures the average words per turn.
func ExtractFeatures(history []domain.Turn, m content.Markers) Features {
	text := joinedUserText(history)
	words := len(strings.Fields(text))

	var avg float64
	if len(history) > 0 {
		avg = float64(words) / float64(len(history))
	}

	return Features{
		Negative: containsAny(text, m.Negative),
		Positive: containsAny(text, m.Positive),
		Question: containsAny(text, m.Question),
		Action:   containsAny(text, m.Action),
		Specific: containsAny(text, m.Specific),
		Detailed: avg > m.DetailedWordsPerTurn,
		Words:    words,
	}
}

// Classify applies the category rules in priority order; the first match wins.
func Classify(f Features) domain.Category {
	switch {
	case f.Question && f.Negative:
		return domain.CategoryRebelLearner
	case f.Positive && f.Detailed:
		return domain.CategoryPassionateExplorer
	case f.Action && f.Specific:
		return domain.CategoryPracticalBuilder
	case f.Detailed && !f.Action:
		return domain.CategoryThoughtfulAnalyst
	default:
		return domain.CategoryAdaptiveChameleon
	}
}

// Score computes engagement and honesty. Engagement is capped at 100.
func Score(f Features, picker domain.Picker) domain.Scores {
	engagement := min(f.Words*3+10+picker.IntN(11), 100)
	return domain.Scores{
		Engagement: engagement,
		Honesty:    85 + picker.IntN(16),
	}
}

// MindReading builds the prediction list: conditional predictions in table
// order, then the universal ones, truncated to the table limit.
func MindReading(history []domain.Turn, t content.MindReadingTable) domain.MindReading {
	text := joinedUserText(history)

	predictions := make([]string, 0, len(t.Conditional)+len(t.Universal))
	for _, c := range t.Conditional {
		if containsAny(text, c.Markers) {
			predictions = append(predictions, c.Prediction)
		}
	}
	predictions = append(predictions, t.Universal...)
	if len(predictions) > t.Limit {
		predictions = predictions[:t.Limit]
	}

	return domain.MindReading{
		Title:       t.Title,
		Subtitle:    t.Subtitle,
		Predictions: predictions,
		Challenge:   t.Challenge,
	}
}

func joinedUserText(history []domain.Turn) string {
	parts := make([]string, len(history))
	for i, turn := range history {
		parts[i] = strings.ToLower(turn.UserText)
	}
	return strings.Join(parts, " ")
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
