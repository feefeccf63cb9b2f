package handler

import (
	"strconv"
	"strings"

	"wompbot/internal/game"
)

const defaultTopic = "general knowledge"

// Command is a parsed chat command such as "!trivia start space hard 10".
type Command struct {
	Game   string
	Action string
	Args   []string
}

// ParseCommand splits text into a command when it starts with prefix.
func ParseCommand(prefix, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}

	cmd := Command{Game: strings.ToLower(fields[0])}
	// Telegram appends the bot name in groups: /trivia@wompbot
	if at := strings.IndexByte(cmd.Game, '@'); at > 0 {
		cmd.Game = cmd.Game[:at]
	}
	if len(fields) > 1 {
		cmd.Action = strings.ToLower(fields[1])
		cmd.Args = fields[2:]
	}
	return cmd, true
}

// StartArgs are the arguments of a start command.
type StartArgs struct {
	Topic      string
	Difficulty string
	Count      int
}

// ParseStartArgs reads "<topic words...> [difficulty] [count]". Difficulty
// and count are only recognized at the end, in either order.
func ParseStartArgs(args []string) StartArgs {
	out := StartArgs{Difficulty: game.DifficultyMedium}
	rest := args
	var haveDifficulty bool
	for i := 0; i < 2 && len(rest) > 0; i++ {
		last := strings.ToLower(rest[len(rest)-1])
		if n, err := strconv.Atoi(last); err == nil && n > 0 && out.Count == 0 {
			out.Count = n
			rest = rest[:len(rest)-1]
			continue
		}
		// Single-letter aliases are left to the topic ("vitamin e").
		if d, ok := game.ParseDifficulty(last); ok && !haveDifficulty && len(last) > 1 {
			out.Difficulty = d
			haveDifficulty = true
			rest = rest[:len(rest)-1]
			continue
		}
		break
	}
	out.Topic = strings.TrimSpace(strings.Join(rest, " "))
	if out.Topic == "" {
		out.Topic = defaultTopic
	}
	return out
}
