// internal/httpserver/routes_scores.go
//
// Read-only score endpoints:
//   - GET /best/{difficulty}  → best move count for a difficulty
//   - GET /leaderboard        → top 10, optionally ?difficulty=EASY
//
// Storage failures degrade to "no record" / an empty board.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-match/internal/game"
	"github.com/robalobadob/memory-match/internal/scores"
)

// mountScores registers score routes.
func (s *Server) mountScores(r chi.Router) {
	r.Get("/best/{difficulty}", s.handleBest)
	r.Get("/leaderboard", s.handleLeaderboard)
}

type bestRes struct {
	Difficulty game.Difficulty `json:"difficulty"`
	Best       int             `json:"best"`
	HasRecord  bool            `json:"hasRecord"`
}

// handleBest reports the stored best for one difficulty.
func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	d, err := game.ParseDifficulty(chi.URLParam(r, "difficulty"))
	if err != nil {
		http.Error(w, `{"error":"unknown_difficulty"}`, http.StatusBadRequest)
		return
	}
	best, ok, err := s.d.Scores.Best(r.Context(), string(d))
	if err != nil {
		log.Warn().Err(err).Str("difficulty", string(d)).Msg("read best score")
		best, ok = 0, false
	}
	writeJSON(w, bestRes{Difficulty: d, Best: best, HasRecord: ok})
}

type leaderboardRes struct {
	Difficulty string          `json:"difficulty,omitempty"`
	Top        []scores.Record `json:"top"`
}

// handleLeaderboard returns the top entries, optionally for one difficulty.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	list, err := s.d.Scores.Leaderboard(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("read leaderboard")
		list = []scores.Record{}
	}
	writeJSON(w, leaderboardRes{Difficulty: difficulty, Top: scores.Filter(list, difficulty)})
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
