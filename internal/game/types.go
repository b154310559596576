// internal/game/types.go
//
// Core type definitions for the memory-match game engine.
// Defines:
//   - Difficulty: board size selector (EASY/MEDIUM/HARD).
//   - Card/Board: the dealt deck and per-card flags.
//   - Phase/Status: selection state machine and its coarse status.
//   - State/Stats/CardView: the read-only snapshot handed to callers.

package game

import (
	"errors"
	"strings"
)

// Difficulty selects how many pairs are dealt.
type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

// ErrUnknownDifficulty is returned by ParseDifficulty for unrecognised names.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Difficulties lists every playable difficulty, smallest board first.
func Difficulties() []Difficulty { return []Difficulty{Easy, Medium, Hard} }

// Pairs reports the pair count dealt for d.
//   - EASY:   6 pairs (4x3 grid)
//   - MEDIUM: 10 pairs (5x4 grid)
//   - HARD:   12 pairs (6x4 grid)
func (d Difficulty) Pairs() int {
	switch d {
	case Medium:
		return 10
	case Hard:
		return 12
	default:
		return 6
	}
}

// ParseDifficulty accepts a difficulty name in any letter case.
// An empty string defaults to Easy.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Easy, nil
	}
	for _, d := range Difficulties() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", ErrUnknownDifficulty
}

// Card is a single tile on the board.
type Card struct {
	ID       int    // Unique within the board.
	PairID   int    // Shared by exactly two cards.
	Image    string // Opaque image reference.
	Revealed bool   // Face up (selected or locked open).
	Matched  bool   // Pair found; never unset.
}

// Board is the dealt, shuffled deck.
type Board struct {
	Cards []Card
}

// Len returns the number of cards on the board.
func (b Board) Len() int { return len(b.Cards) }

// TotalPairs is derived from the dealt cards, never from the difficulty.
func (b Board) TotalPairs() int { return len(b.Cards) / 2 }

// Phase is the selection state machine position.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingFirst  Phase = "awaiting_first"
	PhaseAwaitingSecond Phase = "awaiting_second"
	PhaseResolving      Phase = "resolving"
	PhaseWon            Phase = "won"
)

// Status is the coarse lifecycle reported to players.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusPlaying Status = "PLAYING"
	StatusWon     Status = "WON"
)

// Status maps a phase onto its lifecycle status.
func (p Phase) Status() Status {
	switch p {
	case PhaseAwaitingFirst, PhaseAwaitingSecond, PhaseResolving:
		return StatusPlaying
	case PhaseWon:
		return StatusWon
	default:
		return StatusIdle
	}
}

// CardView is the client-facing representation of a card.
// ID is the card's board position, not its dealt identity, so face-down
// cards carry nothing that links them to their pair. PairID and Image are
// only included when the card is face up.
type CardView struct {
	ID       int    `json:"id"`
	PairID   *int   `json:"pairId,omitempty"`
	Image    string `json:"image,omitempty"`
	Revealed bool   `json:"revealed"`
	Matched  bool   `json:"matched"`
}

// Stats is the fixed set of counters shown beside the board.
type Stats struct {
	Moves      int `json:"moves"`
	Elapsed    int `json:"elapsedSeconds"`
	Pairs      int `json:"pairs"`
	TotalPairs int `json:"totalPairs"`
	Best       int `json:"best"` // 0 means no record yet.
}

// State is a point-in-time copy of a session.
type State struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Phase      Phase      `json:"phase"`
	Difficulty Difficulty `json:"difficulty"`
	Cards      []CardView `json:"cards"`
	Selection  []int      `json:"selection"`
	Stats      Stats      `json:"stats"`
	Message    string     `json:"message,omitempty"`
	Generation uint64     `json:"generation"`
}
