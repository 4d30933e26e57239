package content

import (
	"strings"
	"testing"

	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	t.Parallel()

	tables := Default()
	require.NotNil(t, tables)

	for _, c := range domain.Categories {
		p := tables.Persona(c)
		assert.NotEmpty(t, p.Name, "persona %s", c)
		assert.Len(t, p.Traits, 4, "persona %s", c)
		assert.NotEmpty(t, p.SecretMessage, "persona %s", c)
		assert.NotEmpty(t, p.Tagline, "persona %s", c)
	}

	assert.True(t, tables.IsStopWord("because"))
	assert.True(t, tables.IsStopWord("really"))
	assert.False(t, tables.IsStopWord("studying"))
	assert.Equal(t, "that", tables.FallbackKeyword)
	assert.Len(t, tables.Emotions, 8)
	assert.Equal(t, "passionate_love", tables.Emotions[0].Name)
}

func TestFallbackContainsKeyword(t *testing.T) {
	t.Parallel()

	tables := Default()
	for _, style := range []domain.TriggerStyle{domain.StyleCuriosityOpener, domain.StylePatternInterrupt, domain.StyleDeepDive} {
		got := tables.Fallback(style, "pointless")
		assert.Contains(t, got, "'pointless'", "style %s", style)
		assert.NotContains(t, got, KeywordPlaceholder)
	}
}

func TestShareText(t *testing.T) {
	t.Parallel()

	got := Default().ShareText("The Practical Builder 🛠️")
	assert.Equal(t, "I just discovered I'm a The Practical Builder 🛠️ 🎯 What about you?", got)
}

func TestLoadRejectsIncompleteTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name: "fallback without placeholder",
			mutate: func(doc string) string {
				return strings.Replace(doc, "If '{keyword}' was a person", "If it was a person", 1)
			},
			wantMsg: "fallback for deep_dive",
		},
		{
			name: "missing persona",
			mutate: func(doc string) string {
				return strings.Replace(doc, "  thoughtful_analyst:\n", "  thoughtful_analyst_old:\n", 1)
			},
			wantMsg: "missing persona thoughtful_analyst",
		},
		{
			name: "choice options swapped",
			mutate: func(doc string) string {
				doc = strings.Replace(doc, "{id: reveal,", "{id: tmp,", 1)
				doc = strings.Replace(doc, "{id: skip,", "{id: reveal,", 1)
				return strings.Replace(doc, "{id: tmp,", "{id: skip,", 1)
			},
			wantMsg: "choice options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load([]byte(tt.mutate(string(defaultTables))))
			require.ErrorIs(t, err, ErrInvalidTables)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Load([]byte("stop_words: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode tables")
}
