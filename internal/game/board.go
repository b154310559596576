package game

import (
	"errors"
	"math/rand/v2"
)

var (
	// ErrEmptyImagePool means the board cannot be dealt without images.
	ErrEmptyImagePool = errors.New("game: image pool is empty")
	// ErrInvalidPairCount means a board was requested with no pairs.
	ErrInvalidPairCount = errors.New("game: pair count must be positive")
)

// IntN is a uniform random source over [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type IntN interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Generate deals a shuffled board for difficulty d from pool.
// A nil rng uses the process-wide source.
func Generate(d Difficulty, pool []string, rng IntN) (Board, error) {
	return GeneratePairs(d.Pairs(), pool, rng)
}

// GeneratePairs deals 2*pairs cards. Pair i takes pool[i%len(pool)] so a short
// pool repeats images rather than failing.
func GeneratePairs(pairs int, pool []string, rng IntN) (Board, error) {
	if len(pool) == 0 {
		return Board{}, ErrEmptyImagePool
	}
	if pairs <= 0 {
		return Board{}, ErrInvalidPairCount
	}
	if rng == nil {
		rng = globalRand{}
	}

	cards := make([]Card, 0, 2*pairs)
	for i := 0; i < pairs; i++ {
		img := pool[i%len(pool)]
		cards = append(cards,
			Card{ID: 2 * i, PairID: i, Image: img},
			Card{ID: 2*i + 1, PairID: i, Image: img},
		)
	}
	shuffle(cards, rng)
	return Board{Cards: cards}, nil
}

// shuffle is Fisher–Yates: walk from the last index down to 1 and swap with a
// uniform index in [0, i].
func shuffle(cards []Card, rng IntN) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Dealer produces a fresh board for a new game.
type Dealer func(d Difficulty) (Board, error)

// PoolDealer returns a Dealer that shuffles pool with rng on every call.
func PoolDealer(pool []string, rng IntN) Dealer {
	return func(d Difficulty) (Board, error) {
		return Generate(d, pool, rng)
	}
}
