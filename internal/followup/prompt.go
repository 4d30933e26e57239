package followup

import (
	"fmt"
	"strings"

	"github.com/ashureev/mindprobe/internal/domain"
)

// PromptInput carries everything the generation prompt is built from.
type PromptInput struct {
	History   []domain.Turn
	UserText  string
	TurnIndex int
	Keyword   string
	Style     domain.TriggerStyle
	Emotion   Emotion
	Example   string
	Mirror    string
}

// BuildPrompt renders the follow-up generation prompt.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(`You are that one friend who asks questions that make people go "I never thought about it that way".
You notice what people REALLY mean, challenge assumptions playfully, and keep it memorable.

`)
	fmt.Fprintf(&b, "Question #%d of %d\n\n", in.TurnIndex+1, domain.MaxFollowUps)

	b.WriteString("Previous conversation:\n")
	if len(in.History) == 0 {
		b.WriteString("This is your first question. Make it count.\n")
	}
	for _, turn := range in.History {
		fmt.Fprintf(&b, "User: %s\nAI: %s\n", turn.UserText, turn.SystemText)
	}

	fmt.Fprintf(&b, "\nUser just said: %q\n", in.UserText)
	fmt.Fprintf(&b, "Emotional context: they're %s (%s) %s\n", in.Emotion.Description, in.Emotion.Intensity, in.Emotion.Emoji)
	if in.Mirror != "" {
		fmt.Fprintf(&b, "Acknowledge it like: %s\n", in.Mirror)
	}

	fmt.Fprintf(&b, "\nTrigger style: %s\n", in.Style)
	switch in.Style {
	case domain.StyleCuriosityOpener:
		b.WriteString("Tease a perspective they haven't considered so they WANT to answer.\n")
	case domain.StylePatternInterrupt:
		b.WriteString("Do something unexpected and challenge a subtle assumption they made.\n")
	default:
		b.WriteString("Get personal: ask them to imagine a scenario tied to their identity or future.\n")
	}
	if in.Example != "" {
		fmt.Fprintf(&b, "An opener in this style: %s\n", in.Example)
	}

	fmt.Fprintf(&b, `
Rules:
- MUST include the word %q naturally
- match their %s energy
- 1-2 sentences, at most 2 emojis
- sound like a smart friend, not a therapist or interviewer
- reply with the question only

Generate the follow-up question now:`, in.Keyword, in.Emotion.Intensity)

	return b.String()
}
