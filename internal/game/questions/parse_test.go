package questions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"wompbot/internal/game/jeopardy"
	"wompbot/internal/game/trivia"
)

func flat(v int) func(int) int {
	return func(int) int { return v }
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`, true},
		{"code fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`, true},
		{"prose around", `Sure! Here you go: {"questions": []} Enjoy.`, `{"questions": []}`, true},
		{"brackets in strings", `[{"q":"what is ] or }?"}]`, `[{"q":"what is ] or }?"}]`, true},
		{"escaped quote", `[{"q":"say \"hi]\""}]`, `[{"q":"say \"hi]\""}]`, true},
		{"skips invalid bracket prose", `See [1] and then [{"a":2}]`, `[1]`, true},
		{"skips non-json braces", `{not json} then [{"a":2}]`, `[{"a":2}]`, true},
		{"unbalanced", `[{"a":1}`, "", false},
		{"nothing", "no json here", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_FieldVariants(t *testing.T) {
	raw := "Here are your clues:\n```json\n" + `{"clues": [
		{"clue": "This city on the Seine", "answer": "Paris", "value": "$400"},
		{"question": "Largest planet?", "answer": ["Jupiter", "Jove"], "aliases": "Jupiter planet"},
		{"prompt": "Red planet?", "answer": "Mars", "alternatives": ["mars", "  ", "Ares"], "value": 300.0, "category": "Space"}
	]}` + "\n```"

	qs, err := Parse(raw, 3, flat(100))
	require.NoError(t, err)
	require.Len(t, qs, 3)

	assert.Equal(t, "This city on the Seine", qs[0].Prompt)
	assert.Equal(t, 400, qs[0].Value)
	assert.NotNil(t, qs[0].Alternatives)
	assert.Empty(t, qs[0].Alternatives)

	assert.Equal(t, "Jupiter", qs[1].Answer)
	assert.Equal(t, []string{"Jove", "Jupiter planet"}, qs[1].Alternatives)
	assert.Equal(t, 100, qs[1].Value)

	assert.Equal(t, []string{"Ares"}, qs[2].Alternatives)
	assert.Equal(t, 300, qs[2].Value)
	assert.Equal(t, "Space", qs[2].Category)
}

func TestParse_SkipsInvalidItemsAndTrims(t *testing.T) {
	raw := `[
		{"question": "", "answer": "x"},
		{"question": "Q1", "answer": "A1"},
		{"question": "Q2"},
		{"question": "Q3", "answer": "A3"},
		{"question": "Q4", "answer": "A4"}
	]`

	qs, err := Parse(raw, 2, func(i int) int { return (i + 1) * 200 })
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "Q1", qs[0].Prompt)
	assert.Equal(t, 200, qs[0].Value)
	assert.Equal(t, "Q3", qs[1].Prompt)
	assert.Equal(t, 400, qs[1].Value)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"no json", "I cannot help with that.", 1},
		{"too few", `[{"question": "Q1", "answer": "A1"}]`, 3},
		{"wrong shape", `{"questions": "none"}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, tt.want, flat(100))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGenerationFailed)

			var genErr *GenerationError
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, tt.raw, genErr.Raw)
		})
	}
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
	hint   string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt, schemaHint string, _ int) (string, error) {
	f.prompt = prompt
	f.hint = schemaHint
	return f.reply, f.err
}

func TestGenerator_Generate(t *testing.T) {
	llm := &fakeCompleter{reply: `[
		{"clue": "C1", "answer": "A1"},
		{"clue": "C2", "answer": "A2"}
	]`}
	g := NewGenerator(llm, 0)

	qs, err := g.Generate(context.Background(), jeopardy.New(0), "rivers", "hard", 2)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Contains(t, llm.prompt, `"rivers"`)
	assert.Equal(t, jeopardy.New(0).SchemaHint(), llm.hint)
	assert.Equal(t, 200, qs[0].Value)
	assert.Equal(t, 400, qs[1].Value)
	assert.Equal(t, "rivers", qs[0].Category)
}

func TestGenerator_ModelError(t *testing.T) {
	boom := errors.New("503 from upstream")
	g := NewGenerator(&fakeCompleter{err: boom}, 512)

	_, err := g.Generate(context.Background(), trivia.New(), "cats", "easy", 3)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_InvalidCount(t *testing.T) {
	g := NewGenerator(&fakeCompleter{}, 0)
	_, err := g.Generate(context.Background(), trivia.New(), "cats", "easy", 0)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

// TestExtractJSONSurvivesProseProperty wraps a valid array in arbitrary prose
// without brackets and checks it is recovered unchanged.
func TestExtractJSONSurvivesProseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := rapid.StringMatching(`[a-zA-Z .,:!\n]{0,40}`).Draw(t, "before")
		after := rapid.StringMatching(`[a-zA-Z .,:!\n]{0,40}`).Draw(t, "after")
		answer := rapid.StringMatching(`[a-zA-Z \]\[{}]{1,20}`).Draw(t, "answer")

		body := `[{"question": "q", "answer": "` + answer + `"}]`
		got, ok := ExtractJSON(before + body + after)
		if !ok || got != body {
			t.Fatalf("expected %q, got %q (ok=%v)", body, got, ok)
		}
	})
}
