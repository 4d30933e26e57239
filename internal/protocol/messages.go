package protocol

import (
	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
)

// Inbound message types.
const (
	TypeInitial        = "initial"
	TypeAnswer         = "answer"
	TypeChoiceResponse = "choice_response"
)

// Outbound message types.
const (
	TypeError             = "error"
	TypeFollowUp          = "follow_up"
	TypeComplete          = "complete"
	TypeThinking          = "thinking"
	TypePersonalityReveal = "personality_reveal"
	TypeMindReading       = "mind_reading"
	TypeSecretUnlock      = "secret_unlock"
	TypeInteractiveChoice = "interactive_choice"
	TypeUltimateReveal    = "ultimate_reveal"
	TypeFinale            = "finale"
	TypeRespectfulEnding  = "respectful_ending"
)

// Inbound is one frame received from the peer.
type Inbound struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	ChoiceID string `json:"choice_id,omitempty"`
}

// TextMessage carries a single line of copy (error, complete, thinking).
type TextMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FollowUpMessage carries a generated question.
type FollowUpMessage struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	Number   int    `json:"number"`
	Total    int    `json:"total"`
}

// PersonalityRevealMessage carries the full reveal bundle.
type PersonalityRevealMessage struct {
	Type  string           `json:"type"`
	Bonus PersonalityBonus `json:"bonus"`
}

// PersonalityBonus is the personality_reveal payload.
type PersonalityBonus struct {
	Title             string                   `json:"title"`
	Subtitle          string                   `json:"subtitle"`
	PersonalityType   string                   `json:"personality_type"`
	Traits            []string                 `json:"traits"`
	Description       string                   `json:"description"`
	Advice            string                   `json:"advice"`
	Prediction        string                   `json:"prediction"`
	SecretStrength    string                   `json:"secret_strength"`
	Challenge         string                   `json:"challenge"`
	WouldSucceedAt    []string                 `json:"would_succeed_at"`
	Scores            domain.Scores            `json:"scores"`
	MindReading       domain.MindReading       `json:"mind_reading"`
	FutureVision      domain.FutureVision      `json:"future_vision"`
	PersonalChallenge domain.PersonalChallenge `json:"personal_challenge"`
}

// DataMessage wraps a structured payload under "data".
type DataMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SecretUnlock is the secret_unlock payload.
type SecretUnlock struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	From      string `json:"from"`
	Encrypted bool   `json:"encrypted"`
}

// InteractiveChoice is the interactive_choice payload.
type InteractiveChoice struct {
	Title    string                 `json:"title"`
	Question string                 `json:"question"`
	Subtitle string                 `json:"subtitle"`
	Options  []content.ChoiceOption `json:"options"`
}

// UltimateReveal is the ultimate_reveal payload.
type UltimateReveal struct {
	Title        string           `json:"title"`
	Intro        string           `json:"intro"`
	HonestTake   string           `json:"honest_take"`
	PlotTwist    domain.PlotTwist `json:"plot_twist"`
	FinalMessage FinalMessage     `json:"final_message"`
	Shareable    Shareable        `json:"shareable"`
}

// FinalMessage closes the ultimate reveal.
type FinalMessage struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Shareable is the personality card.
type Shareable struct {
	Title     string `json:"title"`
	Type      string `json:"type"`
	Tagline   string `json:"tagline"`
	ShareText string `json:"share_text"`
}

// Finale is the finale payload.
type Finale struct {
	Title       string      `json:"title"`
	Stats       FinaleStats `json:"stats"`
	Achievement Achievement `json:"achievement"`
	EasterEgg   string      `json:"easter_egg"`
	CTA         FinaleCTA   `json:"cta"`
}

// FinaleStats summarizes the conversation.
type FinaleStats struct {
	QuestionsAnswered int    `json:"questions_answered"`
	InsightsShared    int    `json:"insights_shared"`
	TimeWellSpent     string `json:"time_well_spent"`
	MemoriesCreated   string `json:"memories_created"`
}

// Achievement is the finale badge.
type Achievement struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FinaleCTA holds the finale call-to-action labels.
type FinaleCTA struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// RespectfulEnding is the respectful_ending payload.
type RespectfulEnding struct {
	Message    string `json:"message"`
	FunFact    string `json:"fun_fact"`
	FinalWords string `json:"final_words"`
	CTA        string `json:"cta"`
}

func textMessage(typ, message string) TextMessage {
	return TextMessage{Type: typ, Message: message}
}

func personalityReveal(t *content.Tables, b *domain.RevealBundle) PersonalityRevealMessage {
	p := b.Persona
	return PersonalityRevealMessage{
		Type: TypePersonalityReveal,
		Bonus: PersonalityBonus{
			Title:             t.Script.RevealTitle,
			Subtitle:          t.Script.RevealSubtitle,
			PersonalityType:   p.Name,
			Traits:            p.Traits,
			Description:       p.Description,
			Advice:            p.Advice,
			Prediction:        p.Prediction,
			SecretStrength:    p.SecretStrength,
			Challenge:         p.Challenge,
			WouldSucceedAt:    p.WouldSucceedAt,
			Scores:            b.Scores,
			MindReading:       b.MindReading,
			FutureVision:      b.FutureVision,
			PersonalChallenge: b.PersonalChallenge,
		},
	}
}

func secretUnlock(t *content.Tables, b *domain.RevealBundle) DataMessage {
	return DataMessage{Type: TypeSecretUnlock, Data: SecretUnlock{
		Title:   t.Script.Secret.Title,
		Message: b.SecretMessage,
		From:    t.Script.Secret.From,
	}}
}

func interactiveChoice(t *content.Tables) DataMessage {
	c := t.Script.Choice
	return DataMessage{Type: TypeInteractiveChoice, Data: InteractiveChoice{
		Title:    c.Title,
		Question: c.Question,
		Subtitle: c.Subtitle,
		Options:  c.Options,
	}}
}

func ultimateReveal(t *content.Tables, b *domain.RevealBundle) DataMessage {
	u := t.Script.Ultimate
	return DataMessage{Type: TypeUltimateReveal, Data: UltimateReveal{
		Title:      u.Title,
		Intro:      u.Intro,
		HonestTake: b.HonestTake,
		PlotTwist:  b.PlotTwist,
		FinalMessage: FinalMessage{
			Title:     u.FinalTitle,
			Message:   b.FinalMotivation,
			Signature: u.Signature,
		},
		Shareable: Shareable{
			Title:     u.CardTitle,
			Type:      b.Persona.Name,
			Tagline:   b.Tagline,
			ShareText: t.ShareText(b.Persona.Name),
		},
	}}
}

func finale(t *content.Tables, b *domain.RevealBundle) DataMessage {
	f := t.Script.Finale
	return DataMessage{Type: TypeFinale, Data: Finale{
		Title: f.Title,
		Stats: FinaleStats{
			QuestionsAnswered: domain.MaxFollowUps,
			InsightsShared:    b.TurnCount,
			TimeWellSpent:     f.TimeWellSpent,
			MemoriesCreated:   f.MemoriesCreated,
		},
		Achievement: Achievement{
			Title:       f.Achievement.Title,
			Name:        f.Achievement.Name,
			Description: f.Achievement.Description,
		},
		EasterEgg: f.EasterEgg,
		CTA:       FinaleCTA{Primary: f.CTAPrimary, Secondary: f.CTASecondary},
	}}
}

func respectfulEnding(t *content.Tables) DataMessage {
	e := t.Script.Ending
	return DataMessage{Type: TypeRespectfulEnding, Data: RespectfulEnding{
		Message:    e.Message,
		FunFact:    e.FunFact,
		FinalWords: e.FinalWords,
		CTA:        e.CTA,
	}}
}
