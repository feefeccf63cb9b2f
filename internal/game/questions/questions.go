// Package questions turns LLM output into validated question records.
package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"wompbot/internal/game"
)

// ErrGenerationFailed is matched by every *GenerationError.
var ErrGenerationFailed = errors.New("question generation failed")

// GenerationError carries the raw model output for diagnostics.
type GenerationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question generation failed: %s: %v", e.Reason, e.Err)
	}
	return "question generation failed: " + e.Reason
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Question is one unit of content presented in a session.
type Question struct {
	Prompt       string   `json:"prompt"`
	Answer       string   `json:"answer"`
	Alternatives []string `json:"alternatives"`
	Value        int      `json:"value"`
	Category     string   `json:"category,omitempty"`
}

// Completer sends one prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt, schemaHint string, maxTokens int) (string, error)
}

// Generator produces questions for a game kind.
type Generator struct {
	llm       Completer
	maxTokens int
}

// NewGenerator creates a Generator. maxTokens <= 0 uses 2048.
func NewGenerator(llm Completer, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Generator{llm: llm, maxTokens: maxTokens}
}

// Generate asks the model for count questions and validates the reply.
func (g *Generator) Generate(ctx context.Context, kind game.Kind, topic, difficulty string, count int) ([]Question, error) {
	if count <= 0 {
		return nil, &GenerationError{Reason: "question count must be positive"}
	}

	prompt := kind.Prompt(topic, difficulty, count)
	raw, err := g.llm.Complete(ctx, prompt, kind.SchemaHint(), g.maxTokens)
	if err != nil {
		return nil, &GenerationError{Reason: "model request failed", Err: err}
	}

	qs, err := Parse(raw, count, func(i int) int { return kind.DefaultValue(difficulty, i) })
	if err != nil {
		log.Warn().
			Err(err).
			Str("kind", kind.Command()).
			Str("topic", topic).
			Int("raw_len", len(raw)).
			Msg("Discarding unusable model output")
		return nil, err
	}

	for i := range qs {
		if qs[i].Category == "" {
			qs[i].Category = topic
		}
	}
	return qs, nil
}

// normalizeList trims entries and drops empty or duplicate ones.
func normalizeList(in []string, exclude string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(exclude)): true}
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
