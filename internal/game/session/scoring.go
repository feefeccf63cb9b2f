package session

import (
	"math"
	"time"

	"wompbot/internal/game"
)

// Scoring holds the bonus curve parameters.
type Scoring struct {
	// MaxSpeedMultiplier applies to answers at or under FastAnswer and decays
	// linearly to 1.0 at SlowAnswer.
	MaxSpeedMultiplier float64       `mapstructure:"max_speed_multiplier"`
	FastAnswer         time.Duration `mapstructure:"fast_answer"`
	SlowAnswer         time.Duration `mapstructure:"slow_answer"`

	// Each StreakStep consecutive correct answers add StreakIncrement, up to
	// MaxStreakMultiplier.
	StreakStep          int     `mapstructure:"streak_step"`
	StreakIncrement     float64 `mapstructure:"streak_increment"`
	MaxStreakMultiplier float64 `mapstructure:"max_streak_multiplier"`
}

// DefaultScoring returns 1.5x speed bonus under 2s fading out by 10s, and
// +10% per 3-answer streak capped at 1.5x.
func DefaultScoring() Scoring {
	return Scoring{
		MaxSpeedMultiplier:  1.5,
		FastAnswer:          2 * time.Second,
		SlowAnswer:          10 * time.Second,
		StreakStep:          3,
		StreakIncrement:     0.1,
		MaxStreakMultiplier: 1.5,
	}
}

func (s Scoring) withDefaults() Scoring {
	d := DefaultScoring()
	if s.MaxSpeedMultiplier < 1 {
		s.MaxSpeedMultiplier = d.MaxSpeedMultiplier
	}
	if s.FastAnswer <= 0 {
		s.FastAnswer = d.FastAnswer
	}
	if s.SlowAnswer <= s.FastAnswer {
		s.SlowAnswer = s.FastAnswer + (d.SlowAnswer - d.FastAnswer)
	}
	if s.StreakStep <= 0 {
		s.StreakStep = d.StreakStep
	}
	if s.StreakIncrement <= 0 {
		s.StreakIncrement = d.StreakIncrement
	}
	if s.MaxStreakMultiplier < 1 {
		s.MaxStreakMultiplier = d.MaxStreakMultiplier
	}
	return s
}

// SpeedMultiplier returns the bonus for an answer that took elapsed.
func (s Scoring) SpeedMultiplier(elapsed time.Duration) float64 {
	switch {
	case elapsed <= s.FastAnswer:
		return s.MaxSpeedMultiplier
	case elapsed >= s.SlowAnswer:
		return 1.0
	}
	frac := float64(elapsed-s.FastAnswer) / float64(s.SlowAnswer-s.FastAnswer)
	return s.MaxSpeedMultiplier - (s.MaxSpeedMultiplier-1)*frac
}

// StreakMultiplier returns the bonus for a streak that includes the answer
// being scored.
func (s Scoring) StreakMultiplier(streak int) float64 {
	if streak <= 0 {
		return 1.0
	}
	m := 1 + s.StreakIncrement*float64(streak/s.StreakStep)
	return math.Min(m, s.MaxStreakMultiplier)
}

// Points scores a correct answer worth value.
func (s Scoring) Points(value int, elapsed time.Duration, streak int, rules game.Rules) int {
	m := 1.0
	if rules.SpeedBonus {
		m *= s.SpeedMultiplier(elapsed)
	}
	if rules.StreakBonus {
		m *= s.StreakMultiplier(streak)
	}
	return int(math.Round(float64(value) * m))
}

// MaxPoints is the most a single correct answer worth value can earn.
func (s Scoring) MaxPoints(value int, rules game.Rules) int {
	m := 1.0
	if rules.SpeedBonus {
		m *= s.MaxSpeedMultiplier
	}
	if rules.StreakBonus {
		m *= s.MaxStreakMultiplier
	}
	return int(math.Round(float64(value) * m))
}

// Penalty is what a wrong answer costs in deduction kinds.
func Penalty(value int, rules game.Rules) int {
	if !rules.DeductOnWrong {
		return 0
	}
	return int(math.Round(float64(value) * rules.WrongPenalty))
}
