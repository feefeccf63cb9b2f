// Package game defines the game kinds the bot can run and a registry to look
// them up by command.
package game

// Rules describes how a kind scores answers.
type Rules struct {
	// SpeedBonus scales points by how fast the answer arrived.
	SpeedBonus bool
	// StreakBonus scales points by the answerer's consecutive correct answers.
	StreakBonus bool
	// DeductOnWrong subtracts value*WrongPenalty for a wrong answer. The item
	// stays open for other players.
	DeductOnWrong bool
	WrongPenalty  float64
	// OneAttemptPerItem rejects any second answer by the same player on the
	// same item.
	OneAttemptPerItem bool
	// QuestionForm only counts chat messages phrased as a question
	// ("what is ...") as attempts. Other chatter in the channel is ignored.
	QuestionForm bool
}

// Kind is a question-and-answer game played in a chat channel. Adding a new
// game only requires implementing this interface and registering it.
type Kind interface {
	// Name returns the display name (e.g., "Trivia").
	Name() string

	// Command returns the chat command that starts this game (e.g., "trivia").
	Command() string

	// Description returns a one-line description for help output.
	Description() string

	// Rules returns the scoring rules.
	Rules() Rules

	// Prompt builds the LLM instruction for count questions about topic.
	Prompt(topic, difficulty string, count int) string

	// SchemaHint describes the JSON shape the LLM has to return.
	SchemaHint() string

	// DefaultValue is the point value for the item at position when the
	// generated content does not carry one.
	DefaultValue(difficulty string, position int) int
}

// Difficulties accepted by the start command.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ParseDifficulty maps user input to a known difficulty.
func ParseDifficulty(s string) (string, bool) {
	switch s {
	case DifficultyEasy, "e":
		return DifficultyEasy, true
	case DifficultyMedium, "m", "normal":
		return DifficultyMedium, true
	case DifficultyHard, "h":
		return DifficultyHard, true
	}
	return "", false
}
