package questions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// rawQuestion accepts the field names models tend to use.
type rawQuestion struct {
	Question     string          `json:"question"`
	Clue         string          `json:"clue"`
	Prompt       string          `json:"prompt"`
	Answer       json.RawMessage `json:"answer"`
	Alternatives json.RawMessage `json:"alternatives"`
	Aliases      json.RawMessage `json:"aliases"`
	Value        json.RawMessage `json:"value"`
	Category     string          `json:"category"`
}

// Parse extracts want questions from model output. defaultValue supplies the
// point value for position i when the item has none. Items beyond want are
// dropped; fewer valid items than want is an error.
func Parse(raw string, want int, defaultValue func(i int) int) ([]Question, error) {
	fragment, ok := ExtractJSON(raw)
	if !ok {
		return nil, &GenerationError{Reason: "no JSON array or object in output", Raw: raw}
	}

	items, err := decodeItems(fragment)
	if err != nil {
		return nil, &GenerationError{Reason: "malformed JSON", Raw: raw, Err: err}
	}

	out := make([]Question, 0, len(items))
	for _, it := range items {
		q, ok := it.toQuestion()
		if !ok {
			continue
		}
		if q.Value <= 0 && defaultValue != nil {
			q.Value = defaultValue(len(out))
		}
		out = append(out, q)
		if len(out) == want {
			break
		}
	}

	if len(out) < want {
		return nil, &GenerationError{
			Reason: fmt.Sprintf("got %d valid questions, wanted %d", len(out), want),
			Raw:    raw,
		}
	}
	return out, nil
}

func decodeItems(fragment string) ([]rawQuestion, error) {
	if strings.HasPrefix(fragment, "[") {
		var items []rawQuestion
		if err := json.Unmarshal([]byte(fragment), &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(fragment), &wrapper); err != nil {
		return nil, err
	}
	for _, key := range []string{"questions", "clues", "items"} {
		if body, ok := wrapper[key]; ok {
			var items []rawQuestion
			if err := json.Unmarshal(body, &items); err != nil {
				return nil, err
			}
			return items, nil
		}
	}

	// A single question object.
	var one rawQuestion
	if err := json.Unmarshal([]byte(fragment), &one); err != nil {
		return nil, err
	}
	return []rawQuestion{one}, nil
}

func (r rawQuestion) toQuestion() (Question, bool) {
	prompt := firstNonEmpty(r.Question, r.Clue, r.Prompt)
	answer, alts := decodeAnswer(r.Answer)
	if prompt == "" || answer == "" {
		return Question{}, false
	}

	alts = append(alts, decodeStrings(r.Alternatives)...)
	alts = append(alts, decodeStrings(r.Aliases)...)

	q := Question{
		Prompt:       prompt,
		Answer:       answer,
		Alternatives: normalizeList(alts, answer),
		Category:     strings.TrimSpace(r.Category),
	}
	q.Value = decodeValue(r.Value)
	return q, true
}

// decodeValue reads 400, 400.0 or "$400"; anything else is 0.
func decodeValue(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f > 0 {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.Trim(strings.TrimSpace(s), "$")
		s = strings.ReplaceAll(s, ",", "")
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

// decodeStrings reads a list of strings or a single string.
func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

// decodeAnswer accepts a string or a list of strings, where the first entry is
// canonical and the rest are alternatives.
func decodeAnswer(raw json.RawMessage) (string, []string) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0]), list[1:]
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ExtractJSON returns the first balanced JSON array or object in s. Brackets
// inside string literals are ignored, so surrounding prose and code fences
// do not matter.
func ExtractJSON(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		c := s[start]
		if c != '[' && c != '{' {
			continue
		}
		if end, ok := balancedEnd(s, start); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

// balancedEnd finds the index closing the bracket at s[start].
func balancedEnd(s string, start int) (int, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 {
				return 0, false
			}
			open := stack[len(stack)-1]
			if (open == '[' && c != ']') || (open == '{' && c != '}') {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
