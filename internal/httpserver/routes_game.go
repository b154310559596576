// internal/httpserver/routes_game.go
//
// HTTP routes for a single game session:
//   - POST   /game/new     → create a session, deal, return token + state
//   - GET    /game         → current state
//   - POST   /game/select  → flip a card (ignored inputs return accepted=false)
//   - POST   /game/restart → deal again, optionally at another difficulty
//   - POST   /game/reset   → back to idle
//   - POST   /game/score   → put a won game on the leaderboard
//   - DELETE /game         → close and forget the session
//
// Daily games deal the same deck to everyone on a given UTC date.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-match/internal/daily"
	"github.com/robalobadob/memory-match/internal/game"
)

// mountGame registers all /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/game", s.handleState)
		r.Post("/game/select", s.handleSelect)
		r.Post("/game/restart", s.handleRestart)
		r.Post("/game/reset", s.handleReset)
		r.Post("/game/score", s.handleScore)
		r.Delete("/game", s.handleEnd)
	})
}

// dealer picks the shuffle source for a new session.
func (s *Server) dealer(isDaily bool) game.Dealer {
	if !isDaily {
		return game.PoolDealer(s.d.Images, nil)
	}
	return func(d game.Difficulty) (game.Board, error) {
		return game.Generate(d, s.d.Images, daily.Rand(s.d.Now(), s.d.DailySalt))
	}
}

// newEngine builds an idle engine wired to the server's collaborators.
func (s *Server) newEngine(isDaily bool) *game.Engine {
	return game.New(game.Options{
		Dealer:          s.dealer(isDaily),
		Scores:          s.d.Scores,
		Scheduler:       s.d.Scheduler,
		Feedback:        s.d.Feedback,
		Events:          s.d.Events,
		MatchDelay:      s.d.MatchDelay,
		MismatchDelay:   s.d.MismatchDelay,
		FeedbackTimeout: s.d.FeedbackTimeout,
		Now:             s.d.Now,
	})
}

// -----------------------------------------------------------------------------
// /game/new

type newGameReq struct {
	Difficulty string `json:"difficulty"` // EASY | MEDIUM | HARD (default EASY)
	Daily      bool   `json:"daily"`
}

type newGameRes struct {
	GameID string     `json:"gameId"`
	Token  string     `json:"token"`
	Daily  bool       `json:"daily"`
	Date   string     `json:"date,omitempty"`
	State  game.State `json:"state"`
}

// handleNewGame creates and starts a session and issues its token.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	d, err := game.ParseDifficulty(req.Difficulty)
	if err != nil {
		http.Error(w, `{"error":"unknown_difficulty"}`, http.StatusBadRequest)
		return
	}

	e := s.newEngine(req.Daily)
	if err := e.StartGame(r.Context(), d); err != nil {
		log.Error().Err(err).Msg("deal board")
		http.Error(w, `{"error":"deal_failed"}`, http.StatusInternalServerError)
		return
	}
	if err := s.d.Sessions.Save(r.Context(), e); err != nil {
		e.Close()
		log.Error().Err(err).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}

	tok, exp, err := s.signSession(e.ID())
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, tok, exp)

	res := newGameRes{GameID: e.ID(), Token: tok, Daily: req.Daily, State: e.Snapshot()}
	if req.Daily {
		res.Date = daily.DateKey(s.d.Now())
	}
	writeJSON(w, res)
}

// -----------------------------------------------------------------------------
// /game, /game/select

// handleState returns the session snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, sessionFrom(r).Snapshot())
}

type selectReq struct {
	Index *int `json:"index"`
}

type selectRes struct {
	Accepted bool       `json:"accepted"`
	State    game.State `json:"state"`
}

// handleSelect flips a card. Rejected selections are not errors.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	e := sessionFrom(r)
	ok := e.SelectCard(*req.Index)
	writeJSON(w, selectRes{Accepted: ok, State: e.Snapshot()})
}

// -----------------------------------------------------------------------------
// /game/restart, /game/reset, DELETE /game

type restartReq struct {
	Difficulty string `json:"difficulty"` // empty keeps the current difficulty
}

// handleRestart deals a fresh board on the same session.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req restartReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	e := sessionFrom(r)
	d := e.Snapshot().Difficulty
	if req.Difficulty != "" {
		var err error
		if d, err = game.ParseDifficulty(req.Difficulty); err != nil {
			http.Error(w, `{"error":"unknown_difficulty"}`, http.StatusBadRequest)
			return
		}
	}
	if err := e.StartGame(r.Context(), d); err != nil {
		log.Error().Err(err).Str("session", e.ID()).Msg("restart")
		http.Error(w, `{"error":"deal_failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, e.Snapshot())
}

// handleReset returns the session to idle.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	e := sessionFrom(r)
	e.Reset()
	writeJSON(w, e.Snapshot())
}

// handleEnd closes the session and clears the cookie.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	_ = s.d.Sessions.Delete(r.Context(), sessionFrom(r).ID())
	clearSessionCookie(w)
	writeJSON(w, map[string]bool{"ok": true})
}

// -----------------------------------------------------------------------------
// /game/score

type scoreReq struct {
	Name string `json:"name"`
}

// handleScore adds the won game to the leaderboard once.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	e := sessionFrom(r)
	list, err := e.RecordScore(r.Context(), req.Name)
	switch {
	case errors.Is(err, game.ErrNotWon):
		http.Error(w, `{"error":"not_won"}`, http.StatusConflict)
		return
	case errors.Is(err, game.ErrScoreRecorded):
		http.Error(w, `{"error":"already_recorded"}`, http.StatusConflict)
		return
	case err != nil:
		log.Warn().Err(err).Str("session", e.ID()).Msg("append leaderboard")
		http.Error(w, `{"error":"storage_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, leaderboardRes{Top: list})
}
