// Package answer decides whether a free-text chat answer matches the expected
// answer of a question.
package answer

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// interrogatives are leading phrases players put in front of an answer,
// Jeopardy style. Longer phrases come first so "what is the" wins over "what is".
var interrogatives = []string{
	"what is the", "what are the", "who is the", "who are the",
	"what is", "what are", "what was", "what were",
	"who is", "who are", "who was", "who were",
	"where is", "where are", "where was",
	"when is", "when was", "which is",
	"whats", "whos", "what", "who",
}

var articles = []string{"the", "an", "a"}

// Thresholds controls how close an answer has to be to count as correct.
// Short canonical answers get a lower cutoff because a single typo costs
// them a larger share of the ratio.
type Thresholds struct {
	ShortLen        int     `mapstructure:"short_len"`
	Short           float64 `mapstructure:"short"`
	MediumLen       int     `mapstructure:"medium_len"`
	Medium          float64 `mapstructure:"medium"`
	Long            float64 `mapstructure:"long"`
	MinSubstringLen int     `mapstructure:"min_substring_len"`
}

// DefaultThresholds returns the cutoffs used when nothing is configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ShortLen:        5,
		Short:           0.75,
		MediumLen:       15,
		Medium:          0.80,
		Long:            0.85,
		MinSubstringLen: 3,
	}
}

// For returns the cutoff for a normalized canonical answer.
func (t Thresholds) For(canonical string) float64 {
	n := len([]rune(canonical))
	switch {
	case n <= t.ShortLen:
		return t.Short
	case n <= t.MediumLen:
		return t.Medium
	default:
		return t.Long
	}
}

// Result is the verdict for one submitted answer.
type Result struct {
	Correct    bool
	Similarity float64
	// Matched is the accepted answer (canonical or alternative) when Correct.
	Matched string
}

// Matcher compares answers. The zero value is not usable; use NewMatcher.
type Matcher struct {
	thresholds Thresholds
}

// NewMatcher creates a Matcher. Zero fields in t fall back to the defaults.
func NewMatcher(t Thresholds) *Matcher {
	d := DefaultThresholds()
	if t.ShortLen <= 0 {
		t.ShortLen = d.ShortLen
	}
	if t.Short <= 0 {
		t.Short = d.Short
	}
	if t.MediumLen <= 0 {
		t.MediumLen = d.MediumLen
	}
	if t.Medium <= 0 {
		t.Medium = d.Medium
	}
	if t.Long <= 0 {
		t.Long = d.Long
	}
	if t.MinSubstringLen <= 0 {
		t.MinSubstringLen = d.MinSubstringLen
	}
	return &Matcher{thresholds: t}
}

// Thresholds returns the effective thresholds.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Match checks input against the canonical answer and then every alternative.
// On a miss the best similarity seen is still reported.
func (m *Matcher) Match(input, canonical string, alternatives []string) Result {
	in := Normalize(input)
	if in == "" {
		return Result{}
	}

	best := m.matchOne(in, canonical)
	if best.Correct {
		return best
	}
	for _, alt := range alternatives {
		r := m.matchOne(in, alt)
		if r.Correct {
			return r
		}
		if r.Similarity > best.Similarity {
			best = r
		}
	}
	return best
}

func (m *Matcher) matchOne(in, expected string) Result {
	exp := Normalize(expected)
	if exp == "" {
		return Result{}
	}

	ratio := Similarity(in, exp)
	if ratio >= m.thresholds.For(exp) || m.contains(in, exp) {
		return Result{Correct: true, Similarity: ratio, Matched: expected}
	}
	return Result{Similarity: ratio}
}

// contains reports a whole-word substring match in either direction. A partial
// answer must be at least MinSubstringLen runes; the full expected answer
// inside a longer input always counts.
func (m *Matcher) contains(in, exp string) bool {
	if containsWords(exp, in) && len([]rune(in)) >= m.thresholds.MinSubstringLen {
		return true
	}
	return containsWords(in, exp)
}

// containsWords requires needle to sit on word boundaries inside haystack, so
// that "io" does not match "radio".
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// Similarity returns the Ratcliff/Obershelp ratio 2*M/T of two strings,
// compared rune by rune.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	sm := difflib.NewMatcherWithJunk(runes(a), runes(b), false, nil)
	return sm.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Normalize lowercases s, drops punctuation, strips a leading question phrase
// and leading articles, and collapses whitespace.
func Normalize(s string) string {
	s = clean(s)

	for _, p := range interrogatives {
		if rest, ok := cutWord(s, p); ok {
			s = rest
			break
		}
	}
	for _, a := range articles {
		if rest, ok := cutWord(s, a); ok {
			s = rest
			break
		}
	}
	return s
}

// IsQuestionForm reports whether s starts with a question phrase followed by
// something to answer, e.g. "What is Paris?" or "who's Ada Lovelace".
func IsQuestionForm(s string) bool {
	s = clean(s)
	for _, p := range interrogatives {
		if _, ok := cutWord(s, p); ok {
			return true
		}
	}
	return false
}

func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’' || r == '.':
			return -1
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// cutWord removes prefix from s when it is followed by a word boundary and
// something remains afterwards.
func cutWord(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix+" ") {
		return s, false
	}
	rest := strings.TrimSpace(s[len(prefix):])
	if rest == "" {
		return s, false
	}
	return rest, true
}
