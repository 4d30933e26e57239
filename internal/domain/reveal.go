package domain

// Scores are the two numeric scores shown with the personality reveal.
type Scores struct {
	Engagement int `json:"engagement"`
	Honesty    int `json:"honesty"`
}

// MindReading is the prediction game shown after the personality reveal.
type MindReading struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Predictions []string `json:"predictions"`
	Challenge   string   `json:"challenge"`
}

// FutureVision is a short forward-looking scenario for the category.
type FutureVision struct {
	Title    string `json:"title"`
	Vision   string `json:"vision"`
	Reminder string `json:"reminder"`
}

// PersonalChallenge wraps the persona challenge with framing copy.
type PersonalChallenge struct {
	Title         string `json:"title"`
	MainChallenge string `json:"main_challenge"`
	WhyItMatters  string `json:"why_it_matters"`
	Deadline      string `json:"deadline"`
	WhatToExpect  string `json:"what_to_expect"`
}

// PlotTwist is the unexpected insight in the unfiltered reveal.
type PlotTwist struct {
	Title   string `json:"title"`
	Reveal  string `json:"reveal"`
	Insight string `json:"insight"`
}

// RevealBundle is computed once from the finished conversation and read by
// every reveal message builder.
type RevealBundle struct {
	Category          Category
	Persona           Persona
	Scores            Scores
	MindReading       MindReading
	FutureVision      FutureVision
	PersonalChallenge PersonalChallenge
	PlotTwist         PlotTwist
	SecretMessage     string
	HonestTake        string
	FinalMotivation   string
	Tagline           string
	TurnCount         int
}
