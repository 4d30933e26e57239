// Package content loads the static lookup tables that drive follow-up
// generation and the scripted reveal.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ashureev/mindprobe/internal/domain"
	"gopkg.in/yaml.v3"
)

// KeywordPlaceholder is substituted with the required keyword in trigger
// phrases, mirrors, and fallbacks.
const KeywordPlaceholder = "{keyword}"

// PersonaPlaceholder is substituted with the persona name in share text.
const PersonaPlaceholder = "{persona}"

//go:embed tables.yaml
var defaultTables []byte

// ErrInvalidTables is returned when a tables document is incomplete.
var ErrInvalidTables = errors.New("invalid content tables")

// Emotion is one ordered emotion pattern.
type Emotion struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	Emoji       string   `yaml:"emoji"`
	Description string   `yaml:"description"`
}

// Markers are the substring sets used to classify a finished conversation.
type Markers struct {
	Negative             []string `yaml:"negative"`
	Positive             []string `yaml:"positive"`
	Question             []string `yaml:"question"`
	Action               []string `yaml:"action"`
	Specific             []string `yaml:"specific"`
	DetailedWordsPerTurn float64  `yaml:"detailed_words_per_turn"`
}

// Prediction is a mind-reading line emitted when any marker appears.
type Prediction struct {
	Markers    []string `yaml:"markers"`
	Prediction string   `yaml:"prediction"`
}

// MindReadingTable configures the mind-reading game.
type MindReadingTable struct {
	Title       string       `yaml:"title"`
	Subtitle    string       `yaml:"subtitle"`
	Challenge   string       `yaml:"challenge"`
	Limit       int          `yaml:"limit"`
	Conditional []Prediction `yaml:"conditional"`
	Universal   []string     `yaml:"universal"`
}

// ChoiceOption is one button of the interactive choice.
type ChoiceOption struct {
	ID    string `yaml:"id" json:"id"`
	Text  string `yaml:"text" json:"text"`
	Emoji string `yaml:"emoji" json:"emoji"`
}

// Script holds the fixed copy of the reveal sequence and its endings.
type Script struct {
	Complete       string `yaml:"complete"`
	Transition     string `yaml:"transition"`
	Analyzing      string `yaml:"analyzing"`
	PreReveal      string `yaml:"pre_reveal"`
	RevealTitle    string `yaml:"reveal_title"`
	RevealSubtitle string `yaml:"reveal_subtitle"`
	Secret         struct {
		Title string `yaml:"title"`
		From  string `yaml:"from"`
	} `yaml:"secret"`
	Choice struct {
		Title    string         `yaml:"title"`
		Question string         `yaml:"question"`
		Subtitle string         `yaml:"subtitle"`
		Options  []ChoiceOption `yaml:"options"`
	} `yaml:"choice"`
	Ultimate struct {
		Title      string `yaml:"title"`
		Intro      string `yaml:"intro"`
		FinalTitle string `yaml:"final_title"`
		Signature  string `yaml:"signature"`
		CardTitle  string `yaml:"card_title"`
		ShareText  string `yaml:"share_text"`
	} `yaml:"ultimate"`
	Finale struct {
		Title           string `yaml:"title"`
		TimeWellSpent   string `yaml:"time_well_spent"`
		MemoriesCreated string `yaml:"memories_created"`
		Achievement     struct {
			Title       string `yaml:"title"`
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
		} `yaml:"achievement"`
		EasterEgg    string `yaml:"easter_egg"`
		CTAPrimary   string `yaml:"cta_primary"`
		CTASecondary string `yaml:"cta_secondary"`
	} `yaml:"finale"`
	Ending struct {
		Message    string `yaml:"message"`
		FunFact    string `yaml:"fun_fact"`
		FinalWords string `yaml:"final_words"`
		CTA        string `yaml:"cta"`
	} `yaml:"ending"`
	Errors struct {
		EmptyInput  string `yaml:"empty_input"`
		UnknownType string `yaml:"unknown_type"`
		Fatal       string `yaml:"fatal"`
	} `yaml:"errors"`
}

// FutureVisionTable frames the per-persona future vision.
type FutureVisionTable struct {
	Title    string `yaml:"title"`
	Reminder string `yaml:"reminder"`
}

// PlotTwistTable frames the per-persona plot twist.
type PlotTwistTable struct {
	Title  string `yaml:"title"`
	Reveal string `yaml:"reveal"`
}

// PersonalChallengeTable frames the persona challenge.
type PersonalChallengeTable struct {
	Title        string `yaml:"title"`
	WhyItMatters string `yaml:"why_it_matters"`
	Deadline     string `yaml:"deadline"`
	WhatToExpect string `yaml:"what_to_expect"`
}

// Tables is the immutable content loaded once at startup.
type Tables struct {
	StopWords         []string                           `yaml:"stop_words"`
	FallbackKeyword   string                             `yaml:"fallback_keyword"`
	Intensifiers      []string                           `yaml:"intensifiers"`
	Emotions          []Emotion                          `yaml:"emotions"`
	NeutralEmotion    Emotion                            `yaml:"neutral_emotion"`
	Triggers          map[domain.TriggerStyle][]string   `yaml:"triggers"`
	Mirrors           map[string][]string                `yaml:"mirrors"`
	Fallbacks         map[domain.TriggerStyle]string     `yaml:"fallbacks"`
	Markers           Markers                            `yaml:"markers"`
	Personas          map[domain.Category]domain.Persona `yaml:"personas"`
	MindReading       MindReadingTable                   `yaml:"mind_reading"`
	FutureVision      FutureVisionTable                  `yaml:"future_vision"`
	PersonalChallenge PersonalChallengeTable             `yaml:"personal_challenge"`
	PlotTwist         PlotTwistTable                     `yaml:"plot_twist"`
	Script            Script                             `yaml:"script"`

	stopWords map[string]struct{}
}

// Default returns the embedded tables. It panics if the embedded document is invalid.
var Default = sync.OnceValue(func() *Tables {
	t, err := Load(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("content: embedded tables: %v", err))
	}
	return t
})

// Load parses and validates a tables document.
func Load(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.stopWords = make(map[string]struct{}, len(t.StopWords))
	for _, w := range t.StopWords {
		t.stopWords[strings.ToLower(w)] = struct{}{}
	}
	return &t, nil
}

func (t *Tables) validate() error {
	if len(t.StopWords) == 0 {
		return fmt.Errorf("%w: stop_words is empty", ErrInvalidTables)
	}
	if t.FallbackKeyword == "" {
		return fmt.Errorf("%w: fallback_keyword is empty", ErrInvalidTables)
	}
	for _, style := range []domain.TriggerStyle{domain.StyleCuriosityOpener, domain.StylePatternInterrupt, domain.StyleDeepDive} {
		if !strings.Contains(t.Fallbacks[style], KeywordPlaceholder) {
			return fmt.Errorf("%w: fallback for %s must contain %s", ErrInvalidTables, style, KeywordPlaceholder)
		}
		if len(t.Triggers[style]) == 0 {
			return fmt.Errorf("%w: no trigger phrases for %s", ErrInvalidTables, style)
		}
	}
	for _, c := range domain.Categories {
		p, ok := t.Personas[c]
		if !ok || p.Name == "" {
			return fmt.Errorf("%w: missing persona %s", ErrInvalidTables, c)
		}
	}
	if t.MindReading.Limit <= 0 {
		return fmt.Errorf("%w: mind_reading.limit must be > 0", ErrInvalidTables)
	}
	opts := t.Script.Choice.Options
	if len(opts) != 2 || opts[0].ID != domain.ChoiceReveal || opts[1].ID != domain.ChoiceSkip {
		return fmt.Errorf("%w: choice options must be exactly [%s, %s]", ErrInvalidTables, domain.ChoiceReveal, domain.ChoiceSkip)
	}
	if t.Script.Errors.EmptyInput == "" || t.Script.Errors.UnknownType == "" || t.Script.Errors.Fatal == "" {
		return fmt.Errorf("%w: script errors are incomplete", ErrInvalidTables)
	}
	return nil
}

// IsStopWord reports whether w (already lower-cased) is a stop word.
func (t *Tables) IsStopWord(w string) bool {
	_, ok := t.stopWords[w]
	return ok
}

// Persona returns the persona record for c, falling back to the catch-all.
func (t *Tables) Persona(c domain.Category) domain.Persona {
	if p, ok := t.Personas[c]; ok {
		return p
	}
	return t.Personas[domain.CategoryAdaptiveChameleon]
}

// Fallback renders the deterministic fallback question for style.
func (t *Tables) Fallback(style domain.TriggerStyle, keyword string) string {
	tmpl, ok := t.Fallbacks[style]
	if !ok {
		tmpl = t.Fallbacks[domain.StyleDeepDive]
	}
	return Fill(tmpl, keyword)
}

// ShareText renders the shareable card text for a persona name.
func (t *Tables) ShareText(personaName string) string {
	return strings.ReplaceAll(t.Script.Ultimate.ShareText, PersonaPlaceholder, personaName)
}

// Fill substitutes keyword into a template.
func Fill(tmpl, keyword string) string {
	return strings.ReplaceAll(tmpl, KeywordPlaceholder, keyword)
}
