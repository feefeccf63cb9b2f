package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var countPattern = regexp.MustCompile(`Write (\d+) `)

// MockClient answers every prompt with canned questions. It lets the bot run
// without a model API, e.g. for local testing.
type MockClient struct{}

// NewMockClient creates a MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

type mockItem struct {
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Alternatives []string `json:"alternatives"`
	Category     string   `json:"category"`
}

var mockBank = []mockItem{
	{"What is the capital of France?", "Paris", nil, "Geography"},
	{"What is the largest planet in our solar system?", "Jupiter", nil, "Space"},
	{"Which element has the chemical symbol O?", "Oxygen", nil, "Science"},
	{"How many sides does a hexagon have?", "Six", []string{"6"}, "Math"},
	{"Who painted the Mona Lisa?", "Leonardo da Vinci", []string{"da Vinci", "Leonardo"}, "Art"},
	{"What is the chemical formula for water?", "H2O", nil, "Science"},
	{"Which ocean is the largest?", "Pacific", []string{"Pacific Ocean"}, "Geography"},
	{"What planet is known as the red planet?", "Mars", nil, "Space"},
}

// Complete returns as many questions as the prompt asks for, cycling through
// a fixed bank.
func (m *MockClient) Complete(ctx context.Context, prompt, _ string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	n := 5
	if match := countPattern.FindStringSubmatch(prompt); match != nil {
		if v, err := strconv.Atoi(match[1]); err == nil && v > 0 {
			n = v
		}
	}

	items := make([]mockItem, n)
	for i := range items {
		items[i] = mockBank[i%len(mockBank)]
	}
	out, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Here you go:\n```json\n%s\n```", out), nil
}
