package domain

// Category is the persona a finished conversation is classified into.
type Category string

const (
	CategoryRebelLearner       Category = "rebel_learner"
	CategoryPassionateExplorer Category = "passionate_explorer"
	CategoryPracticalBuilder   Category = "practical_builder"
	CategoryThoughtfulAnalyst  Category = "thoughtful_analyst"
	CategoryAdaptiveChameleon  Category = "adaptive_chameleon"
)

// Categories lists every category in classification priority order.
// The last entry is the catch-all.
var Categories = []Category{
	CategoryRebelLearner,
	CategoryPassionateExplorer,
	CategoryPracticalBuilder,
	CategoryThoughtfulAnalyst,
	CategoryAdaptiveChameleon,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Persona is the fixed content record attached to a category.
type Persona struct {
	Name            string   `yaml:"name" json:"name"`
	Traits          []string `yaml:"traits" json:"traits"`
	Description     string   `yaml:"description" json:"description"`
	Advice          string   `yaml:"advice" json:"advice"`
	Prediction      string   `yaml:"prediction" json:"prediction"`
	SecretStrength  string   `yaml:"secret_strength" json:"secret_strength"`
	Challenge       string   `yaml:"challenge" json:"challenge"`
	WouldSucceedAt  []string `yaml:"would_succeed_at" json:"would_succeed_at"`
	FutureVision    string   `yaml:"future_vision" json:"-"`
	SecretMessage   string   `yaml:"secret_message" json:"-"`
	HonestTake      string   `yaml:"honest_take" json:"-"`
	PlotTwist       string   `yaml:"plot_twist" json:"-"`
	FinalMotivation string   `yaml:"final_motivation" json:"-"`
	Tagline         string   `yaml:"tagline" json:"-"`
}
