package handler

import (
	"fmt"
	"strings"

	"wompbot/internal/events"
	"wompbot/internal/game/session"
	"wompbot/internal/model"
)

var medals = []string{"🥇", "🥈", "🥉"}

// Render turns an engine event into a chat message.
func Render(e events.Event) string {
	switch e.Type {
	case events.QuestionPresented:
		var b strings.Builder
		fmt.Fprintf(&b, "❓ Question %d/%d", e.Index+1, e.Total)
		if e.Category != "" {
			fmt.Fprintf(&b, " [%s]", e.Category)
		}
		fmt.Fprintf(&b, " (%d pts", e.Value)
		if e.Window > 0 {
			fmt.Fprintf(&b, ", %ds", int(e.Window.Seconds()))
		}
		b.WriteString(")\n")
		b.WriteString(e.Prompt)
		return b.String()

	case events.AnswerResult:
		if e.Correct {
			msg := fmt.Sprintf("✅ %s got it! The answer was: %s (+%d, total %d)", e.DisplayName, e.Answer, e.Points, e.Score)
			if e.Streak >= 3 {
				msg += fmt.Sprintf(" 🔥 streak %d", e.Streak)
			}
			return msg
		}
		return fmt.Sprintf("❌ Sorry %s, that's not it (%d, total %d)", e.DisplayName, e.Points, e.Score)

	case events.ItemRevealed:
		if e.Reason == "skipped" {
			return "⏭️ Skipped. The answer was: " + e.Answer
		}
		return "⏰ Time's up! The answer was: " + e.Answer

	case events.SessionEnded:
		var b strings.Builder
		b.WriteString("🏁 Game over")
		switch e.Reason {
		case session.ReasonStopped:
			b.WriteString(" (stopped)")
		case session.ReasonIdle:
			b.WriteString(" (no activity)")
		}
		b.WriteString("!\n")
		b.WriteString(renderStandings(e.Standings))
		return b.String()
	}
	return ""
}

func renderStandings(standings []events.Standing) string {
	if len(standings) == 0 {
		return "Nobody played."
	}
	var b strings.Builder
	for i, s := range standings {
		fmt.Fprintf(&b, "%s %s: %d\n", rankLabel(i), s.DisplayName, s.Score)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(snap session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 %s about %s (%s)\n", snap.Kind, snap.Topic, snap.Difficulty)
	if snap.Status != session.StatusActive {
		b.WriteString("Generating questions...")
		return b.String()
	}
	fmt.Fprintf(&b, "Question %d/%d", snap.Index+1, len(snap.Items))
	if cur := snap.Current(); cur != nil && !cur.Answered {
		b.WriteString(": ")
		b.WriteString(cur.Prompt)
	}
	if n := snap.Remaining(); n > 0 {
		fmt.Fprintf(&b, "\n%d more to go", n)
	} else {
		b.WriteString("\nLast question")
	}
	b.WriteString("\n━━━━━━━━━━━━━━━\n")
	b.WriteString(renderStandings(snap.Standings()))
	return b.String()
}

func renderLeaderboard(ranks []*model.PlayerRank) string {
	var b strings.Builder
	b.WriteString("🏆 Leaderboard\n━━━━━━━━━━━━━━━\n")
	if len(ranks) == 0 {
		b.WriteString("No games finished yet.")
		return b.String()
	}
	for i, r := range ranks {
		fmt.Fprintf(&b, "%s %s: %d pts, %d games, %d wins\n", rankLabel(i), r.DisplayName, r.TotalScore, r.Games, r.Wins)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStats(s *model.PlayerStats) string {
	return fmt.Sprintf("📊 %s\nRank #%d\nTotal score: %d\nGames: %d (wins: %d)\nCorrect answers: %d\nBest game: %d",
		s.DisplayName, s.Rank, s.TotalScore, s.Games, s.Wins, s.Correct, s.BestScore)
}

func rankLabel(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}
