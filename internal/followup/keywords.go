package followup

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
)

const (
	maxKeywords   = 3
	minKeywordLen = 3
)

// ExtractKeywords returns up to three keywords from text: lower-cased,
// punctuation stripped, stop words and tokens shorter than three runes
// dropped, longest first with ties kept in order of appearance. When nothing
// survives it returns the first two raw whitespace tokens of text.
func ExtractKeywords(text string, tables *content.Tables) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(text))

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if tables.IsStopWord(word) || utf8.RuneCountInString(word) < minKeywordLen {
			continue
		}
		keywords = append(keywords, word)
	}

	if len(keywords) == 0 {
		raw := strings.Fields(text)
		return raw[:min(len(raw), 2)]
	}

	slices.SortStableFunc(keywords, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	return keywords[:min(len(keywords), maxKeywords)]
}

// RequiredKeyword is the keyword every follow-up must contain.
func RequiredKeyword(keywords []string, tables *content.Tables) string {
	if len(keywords) == 0 || keywords[0] == "" {
		return tables.FallbackKeyword
	}
	return keywords[0]
}

// StyleForTurn selects the trigger style from the zero-based follow-up index.
func StyleForTurn(turnIndex int) domain.TriggerStyle {
	switch turnIndex {
	case 0:
		return domain.StyleCuriosityOpener
	case 1:
		return domain.StylePatternInterrupt
	default:
		return domain.StyleDeepDive
	}
}

// ContainsFold reports whether s contains substr, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
