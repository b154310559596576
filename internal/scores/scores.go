// internal/scores/scores.go
//
// Best-score watermarks and the top-10 leaderboard.
//
// Storage layout (any kv.Store):
//   bestScore:<DIFFICULTY>  decimal move count; absent or "0" means no record
//   leaderboard             JSON array of Record, already sorted and truncated
//
// The store never decides whether a score is an improvement; SetBest is an
// unconditional overwrite and the engine applies the policy.

package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-match/internal/kv"
)

// LeaderboardSize caps the persisted leaderboard.
const LeaderboardSize = 10

const (
	bestKeyPrefix  = "bestScore:"
	leaderboardKey = "leaderboard"
)

// Record is one finished game on the leaderboard.
type Record struct {
	PlayerName     string    `json:"name"`
	Moves          int       `json:"moves"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	Difficulty     string    `json:"difficulty"`
	Date           time.Time `json:"date"`
}

// Store reads and writes score records through a kv.Store.
type Store struct {
	kv kv.Store

	mu sync.Mutex // serializes leaderboard read-modify-write
}

// New wraps a kv.Store.
func New(st kv.Store) *Store { return &Store{kv: st} }

// BestKey is the storage key holding the best move count for difficulty.
func BestKey(difficulty string) string {
	return bestKeyPrefix + strings.ToUpper(difficulty)
}

// Best returns the stored best move count. A missing, zero or negative value
// reports ok=false.
func (s *Store) Best(ctx context.Context, difficulty string) (int, bool, error) {
	raw, ok, err := s.kv.Get(ctx, BestKey(difficulty))
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", BestKey(difficulty), err)
	}
	if n <= 0 {
		return 0, false, nil
	}
	return n, true, nil
}

// SetBest overwrites the best move count for difficulty.
func (s *Store) SetBest(ctx context.Context, difficulty string, moves int) error {
	return s.kv.Set(ctx, BestKey(difficulty), strconv.Itoa(moves))
}

// Leaderboard returns the stored leaderboard, best first.
func (s *Store) Leaderboard(ctx context.Context) ([]Record, error) {
	raw, ok, err := s.kv.Get(ctx, leaderboardKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []Record{}, nil
	}
	var out []Record
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return out, nil
}

// AppendLeaderboardEntry inserts r, re-sorts, truncates to LeaderboardSize
// and persists. It returns the list that was written. Concurrent appends
// through the same Store are applied one at a time.
func (s *Store) AppendLeaderboardEntry(ctx context.Context, r Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Leaderboard(ctx)
	if err != nil {
		// A corrupt value is replaced rather than blocking new entries.
		log.Warn().Err(err).Msg("discarding unreadable leaderboard")
		current = nil
	}

	next := append(current, r)
	Sort(next)
	if len(next) > LeaderboardSize {
		next = next[:LeaderboardSize]
	}

	b, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := s.kv.Set(ctx, leaderboardKey, string(b)); err != nil {
		return nil, err
	}
	return next, nil
}

// Sort orders records by moves, then elapsed seconds. Ties keep insertion
// order, so an earlier entry stays ahead of a later equal one.
func Sort(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Moves != rs[j].Moves {
			return rs[i].Moves < rs[j].Moves
		}
		return rs[i].ElapsedSeconds < rs[j].ElapsedSeconds
	})
}

// Filter keeps records for difficulty; "" or "all" keeps everything.
func Filter(rs []Record, difficulty string) []Record {
	if difficulty == "" || strings.EqualFold(difficulty, "all") {
		return rs
	}
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		if strings.EqualFold(r.Difficulty, difficulty) {
			out = append(out, r)
		}
	}
	return out
}
