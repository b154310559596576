// internal/httpserver/server.go
//
// HTTP server wiring for the memory-match backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/best/{difficulty}", "/leaderboard".
//   - Game endpoints: POST /game/new issues a session token; every other
//     /game route requires it.
//   - Periodic sweep of idle sessions and graceful shutdown.
//
// Notes:
//   - The session token is an HS256 JWT whose "gid" claim names the game.
//     It is accepted as a Bearer token or the memory_session cookie.
//   - CORS is origin-aware and credentials-enabled (so cookies work).

package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-match/internal/events"
	"github.com/robalobadob/memory-match/internal/feedback"
	"github.com/robalobadob/memory-match/internal/game"
	"github.com/robalobadob/memory-match/internal/kv"
	"github.com/robalobadob/memory-match/internal/scores"
	"github.com/robalobadob/memory-match/internal/store"
)

const (
	sessionCookieName = "memory_session"

	// shutdownGrace bounds how long in-flight requests may run after Run's
	// context is cancelled.
	shutdownGrace = 10 * time.Second
)

// Deps are the collaborators the server hands to each new engine.
type Deps struct {
	Sessions        store.Store
	Scores          *scores.Store
	Images          []string
	Feedback        feedback.Provider
	Events          events.Publisher
	Scheduler       game.Scheduler // nil = wall clock
	MatchDelay      time.Duration
	MismatchDelay   time.Duration
	FeedbackTimeout time.Duration
	Secret          string
	SessionTTL      time.Duration
	DailySalt       string
	ClientOrigin    string
	Now             func() time.Time
}

// Server bundles the router and its dependencies.
type Server struct {
	r *chi.Mux
	d Deps
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Sessions == nil {
		d.Sessions = store.NewMemoryStore()
	}
	if d.Scores == nil {
		d.Scores = scores.New(kv.NewMemory())
	}
	if d.Secret == "" {
		d.Secret = "dev_secret_change_me"
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = 24 * time.Hour
	}
	if d.ClientOrigin == "" {
		d.ClientOrigin = "http://localhost:5173"
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{r: chi.NewRouter(), d: d}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"memory-match-go","endpoints":["/health","POST /game/new","POST /game/select","/leaderboard"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/debug/images", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"images": len(s.d.Images)})
	})

	s.mountGame(s.r)
	s.mountScores(s.r)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Run listens on addr and serves until ctx is done, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. A clean
// shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := hs.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// SweepLoop closes sessions idle longer than SessionTTL every interval until
// ctx is done.
func (s *Server) SweepLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.d.Sessions.Sweep(ctx, s.d.Now().Add(-s.d.SessionTTL)); n > 0 {
				log.Info().Int("sessions", n).Msg("swept idle sessions")
			}
		}
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.d.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ sessions -----------------------------------

// ctxSessionKey is the context key type for the request's engine.
type ctxSessionKey struct{}

// sessionFrom returns the engine placed by requireSession.
func sessionFrom(r *http.Request) *game.Engine {
	e, _ := r.Context().Value(ctxSessionKey{}).(*game.Engine)
	return e
}

// requireSession validates the session token and loads its engine.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerOrCookie(r)
		if tokenStr == "" {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.d.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
			return
		}
		gid, _ := claims["gid"].(string)
		if gid == "" {
			http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
			return
		}
		e, err := s.d.Sessions.Get(r.Context(), gid)
		if err != nil {
			http.Error(w, `{"error":"session_not_found"}`, http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, e)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// signSession creates an HS256 JWT naming the game, valid for SessionTTL.
func (s *Server) signSession(gameID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.d.SessionTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"gid": gameID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.d.Secret))
	return ss, exp, err
}

// setSessionCookie writes the session cookie with appropriate security attributes.
func setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	secure := os.Getenv("APP_ENV") == "production"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// clearSessionCookie deletes the session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or session cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}
