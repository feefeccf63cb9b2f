// Package trivia implements the classic quiz: first correct answer wins the
// question, with bonuses for fast answers and streaks.
package trivia

import (
	"fmt"
	"strings"

	"wompbot/internal/game"
)

// Base values per difficulty.
const (
	EasyValue   = 100
	MediumValue = 100
	HardValue   = 150
)

const schemaHint = `[{"question": string, "answer": string, "alternatives": [string], "category": string}]`

const fewShot = `Example for topic "space", 2 questions:
[
  {"question": "What is the largest planet in our solar system?", "answer": "Jupiter", "alternatives": [], "category": "Planets"},
  {"question": "Which moon of Jupiter is the most volcanically active body known?", "answer": "Io", "alternatives": [], "category": "Moons"}
]`

// Trivia is a game.Kind.
type Trivia struct{}

// New creates the trivia kind.
func New() *Trivia {
	return &Trivia{}
}

var _ game.Kind = (*Trivia)(nil)

func (t *Trivia) Name() string    { return "Trivia" }
func (t *Trivia) Command() string { return "trivia" }

func (t *Trivia) Description() string {
	return "Answer in chat, first correct answer scores. Faster answers and streaks earn bonus points."
}

func (t *Trivia) Rules() game.Rules {
	return game.Rules{
		SpeedBonus:  true,
		StreakBonus: true,
	}
}

func (t *Trivia) SchemaHint() string {
	return schemaHint
}

// Prompt builds the generation request.
func (t *Trivia) Prompt(topic, difficulty string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s trivia questions about %q.\n", count, difficulty, topic)
	b.WriteString("Rules:\n")
	b.WriteString("- Each answer must be short (one to four words) and unambiguous.\n")
	b.WriteString("- Put accepted spellings, abbreviations or synonyms in \"alternatives\".\n")
	b.WriteString("- Do not repeat questions and do not reveal the answer inside the question.\n")
	b.WriteString("- Respond with ONLY a JSON array matching: " + schemaHint + "\n\n")
	b.WriteString(fewShot)
	return b.String()
}

// DefaultValue returns the base value for the difficulty; position does not
// matter in trivia.
func (t *Trivia) DefaultValue(difficulty string, _ int) int {
	switch difficulty {
	case game.DifficultyEasy:
		return EasyValue
	case game.DifficultyHard:
		return HardValue
	default:
		return MediumValue
	}
}
