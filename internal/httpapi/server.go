// Package httpapi serves a small read-only operations API: health, running
// sessions and leaderboards.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"wompbot/internal/events"
	"wompbot/internal/game/session"
	"wompbot/internal/model"
)

// Sessions lists running games.
type Sessions interface {
	Active() []session.Snapshot
	Get(channelID string) (session.Snapshot, bool)
}

// Leaderboard reads aggregated results.
type Leaderboard interface {
	Top(ctx context.Context, guildID string, limit int) ([]*model.PlayerRank, error)
}

// Pinger checks a dependency.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the optional collaborators of the API. Nil members turn the
// corresponding route into 503 or skip its health check.
type Deps struct {
	Sessions    Sessions
	Leaderboard Leaderboard
	DB          Pinger
	Mirror      interface{ Stats() (written, failed int64) }
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", healthz(d))
	r.Get("/sessions", listSessions(d.Sessions))
	r.Get("/sessions/{channelID}", getSession(d.Sessions))
	r.Get("/leaderboard", leaderboard(d.Leaderboard))
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

type health struct {
	Status        string `json:"status"`
	Database      string `json:"database,omitempty"`
	ActiveGames   int    `json:"active_games"`
	MirrorWritten int64  `json:"mirror_written"`
	MirrorFailed  int64  `json:"mirror_failed"`
}

func healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := health{Status: "ok"}
		status := http.StatusOK

		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.HealthCheck(ctx); err != nil {
				log.Warn().Err(err).Msg("Database health check failed")
				h.Status, h.Database = "degraded", "unreachable"
				status = http.StatusServiceUnavailable
			} else {
				h.Database = "ok"
			}
		}
		if d.Sessions != nil {
			h.ActiveGames = len(d.Sessions.Active())
		}
		if d.Mirror != nil {
			h.MirrorWritten, h.MirrorFailed = d.Mirror.Stats()
		}
		respondJSON(w, h, status)
	}
}

// sessionView is a running game without its answers.
type sessionView struct {
	ID           uuid.UUID         `json:"id"`
	ChannelID    string            `json:"channel_id"`
	GuildID      string            `json:"guild_id,omitempty"`
	OwnerID      string            `json:"owner_id"`
	Kind         string            `json:"kind"`
	Topic        string            `json:"topic"`
	Difficulty   string            `json:"difficulty"`
	Status       session.Status    `json:"status"`
	Phase        session.Phase     `json:"phase"`
	Question     int               `json:"question"`
	Total        int               `json:"total"`
	Prompt       string            `json:"prompt,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	LastActivity time.Time         `json:"last_activity"`
	Standings    []events.Standing `json:"standings"`
}

func newSessionView(s session.Snapshot) sessionView {
	v := sessionView{
		ID:           s.ID,
		ChannelID:    s.ChannelID,
		GuildID:      s.GuildID,
		OwnerID:      s.OwnerID,
		Kind:         s.Kind,
		Topic:        s.Topic,
		Difficulty:   s.Difficulty,
		Status:       s.Status,
		Phase:        s.Phase,
		Total:        len(s.Items),
		StartedAt:    s.StartedAt,
		LastActivity: s.LastActivity,
		Standings:    s.Standings(),
	}
	if s.Status == session.StatusActive {
		v.Question = s.Index + 1
	}
	if cur := s.Current(); cur != nil && s.Phase == session.PhaseQuestionAsked {
		v.Prompt = cur.Prompt
	}
	return v
}

func listSessions(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			respondError(w, "sessions unavailable", http.StatusServiceUnavailable)
			return
		}
		active := s.Active()
		views := make([]sessionView, 0, len(active))
		for _, snap := range active {
			views = append(views, newSessionView(snap))
		}
		respondJSON(w, views, http.StatusOK)
	}
}

func getSession(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			respondError(w, "sessions unavailable", http.StatusServiceUnavailable)
			return
		}
		snap, ok := s.Get(chi.URLParam(r, "channelID"))
		if !ok {
			respondError(w, "session not found", http.StatusNotFound)
			return
		}
		respondJSON(w, newSessionView(snap), http.StatusOK)
	}
}

func leaderboard(lb Leaderboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lb == nil {
			respondError(w, "leaderboard unavailable", http.StatusServiceUnavailable)
			return
		}
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				respondError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		ranks, err := lb.Top(r.Context(), r.URL.Query().Get("guild"), limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load leaderboard")
			respondError(w, "failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		if ranks == nil {
			ranks = []*model.PlayerRank{}
		}
		respondJSON(w, ranks, http.StatusOK)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
