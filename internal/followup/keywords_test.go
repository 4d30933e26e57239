package followup

import (
	"testing"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stop words and length order", "I hate studying because it's pointless", []string{"pointless", "studying", "hate"}},
		{"ties keep first occurrence", "cats dogs", []string{"cats", "dogs"}},
		{"punctuation stripped", "Coding!!! is... AWESOME?", []string{"awesome", "coding"}},
		{"at most three", "alpha bravo charlie delta", []string{"charlie", "alpha", "bravo"}},
		{"raw tokens when nothing survives", "I am so", []string{"I", "am"}},
		{"single raw token", "ok", []string{"ok"}},
		{"empty", "   ", []string{}},
	}

	tables := content.Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractKeywords(tt.in, tables)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequiredKeyword(t *testing.T) {
	t.Parallel()

	tables := content.Default()
	assert.Equal(t, "pointless", RequiredKeyword([]string{"pointless", "hate"}, tables))
	assert.Equal(t, "that", RequiredKeyword(nil, tables))
}

func TestStyleForTurn(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.StyleCuriosityOpener, StyleForTurn(0))
	assert.Equal(t, domain.StylePatternInterrupt, StyleForTurn(1))
	assert.Equal(t, domain.StyleDeepDive, StyleForTurn(2))
	assert.Equal(t, domain.StyleDeepDive, StyleForTurn(7))
}

func TestDetectEmotion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in            string
		wantName      string
		wantIntensity string
	}{
		{"I really love this", "passionate_love", IntensityIntense},
		{"I love it!", "passionate_love", IntensityIntense},
		{"I hate it", "strong_hate", IntensityModerate},
		{"feeling overwhelmed lately", "stress", IntensityModerate},
		{"nothing here", "neutral", IntensityCalm},
	}

	tables := content.Default()
	for _, tt := range tests {
		got := DetectEmotion(tt.in, tables)
		assert.Equal(t, tt.wantName, got.Name, tt.in)
		assert.Equal(t, tt.wantIntensity, got.Intensity, tt.in)
		assert.NotEmpty(t, got.Emoji, tt.in)
	}
}

func TestContainsFold(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsFold("Why is POINTLESS a strong word?", "pointless"))
	assert.False(t, ContainsFold("Why?", "pointless"))
}
