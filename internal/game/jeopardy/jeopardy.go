// Package jeopardy implements clue-style rounds: players answer in the form of
// a question, wrong answers cost the clue's value and each player gets one
// attempt per clue.
package jeopardy

import (
	"fmt"
	"strings"

	"wompbot/internal/game"
)

// Clue values repeat down a category column.
var rowValues = []int{200, 400, 600, 800, 1000}

const schemaHint = `[{"clue": string, "answer": string, "alternatives": [string], "category": string, "value": number}]`

const fewShot = `Example for topic "world capitals", 2 clues:
[
  {"clue": "This city on the Seine is home to the Louvre", "answer": "Paris", "alternatives": [], "category": "Capitals", "value": 200},
  {"clue": "Founded as Edo, this capital was renamed in 1868", "answer": "Tokyo", "alternatives": [], "category": "Capitals", "value": 400}
]`

// Jeopardy is a game.Kind.
type Jeopardy struct {
	penalty float64
}

// New creates the jeopardy kind. penalty scales the deduction for a wrong
// answer; values <= 0 mean the full clue value.
func New(penalty float64) *Jeopardy {
	if penalty <= 0 {
		penalty = 1.0
	}
	return &Jeopardy{penalty: penalty}
}

var _ game.Kind = (*Jeopardy)(nil)

func (j *Jeopardy) Name() string    { return "Jeopardy" }
func (j *Jeopardy) Command() string { return "jeopardy" }

func (j *Jeopardy) Description() string {
	return "Respond with \"What is ...?\". One try per clue, wrong answers cost the clue's value."
}

func (j *Jeopardy) Rules() game.Rules {
	return game.Rules{
		DeductOnWrong:     true,
		WrongPenalty:      j.penalty,
		OneAttemptPerItem: true,
		QuestionForm:      true,
	}
}

func (j *Jeopardy) SchemaHint() string {
	return schemaHint
}

// Prompt builds the generation request.
func (j *Jeopardy) Prompt(topic, difficulty string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s Jeopardy clues about %q, ordered from easiest to hardest.\n", count, difficulty, topic)
	b.WriteString("Rules:\n")
	b.WriteString("- A clue is a statement; the answer is a short noun phrase without \"what is\".\n")
	b.WriteString("- Put accepted spellings or synonyms in \"alternatives\".\n")
	b.WriteString("- Use values 200, 400, 600, 800, 1000 increasing with difficulty.\n")
	b.WriteString("- Respond with ONLY a JSON array matching: " + schemaHint + "\n\n")
	b.WriteString(fewShot)
	return b.String()
}

// DefaultValue walks down the value column and starts over every five clues.
func (j *Jeopardy) DefaultValue(_ string, position int) int {
	if position < 0 {
		position = 0
	}
	return rowValues[position%len(rowValues)]
}
