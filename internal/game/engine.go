// internal/game/engine.go
//
// Match engine for a single memory-match session.
// Responsibilities:
//   - Deal a fresh board per game and reset counters and the session timer.
//   - Accept card selections, locking input while a pair is resolving.
//   - Resolve pairs after a short delay (match) or a longer one (mismatch).
//   - Detect the win, stop the timer and persist the best score.
//   - Append a leaderboard entry for a won game on request.
//
// Notes:
//   - Every StartGame/Reset bumps gen; delayed callbacks capture gen and do
//     nothing if the session has moved on since they were scheduled.
//   - Storage, feedback and event failures are logged and never change the
//     outcome of a transition.
package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-match/internal/events"
	"github.com/robalobadob/memory-match/internal/feedback"
	"github.com/robalobadob/memory-match/internal/scores"
)

const (
	DefaultMatchDelay    = 500 * time.Millisecond
	DefaultMismatchDelay = 1000 * time.Millisecond

	defaultStoreTimeout    = 2 * time.Second
	defaultFeedbackTimeout = 2 * time.Second

	// stuckAfter consecutive misses switches MISS feedback to STUCK.
	stuckAfter = 3

	maxNameRunes  = 24
	anonymousName = "Anonymous"
)

var (
	// ErrNotWon is returned by RecordScore before the game is won.
	ErrNotWon = errors.New("game not won")
	// ErrScoreRecorded is returned by RecordScore on a second call for the same game.
	ErrScoreRecorded = errors.New("score already recorded")
)

// ScoreStore is the persistence the engine needs. *scores.Store satisfies it.
type ScoreStore interface {
	Best(ctx context.Context, difficulty string) (int, bool, error)
	SetBest(ctx context.Context, difficulty string, moves int) error
	AppendLeaderboardEntry(ctx context.Context, r scores.Record) ([]scores.Record, error)
}

// Options wires an Engine. Only Dealer is required.
type Options struct {
	ID              string
	Dealer          Dealer
	Scores          ScoreStore
	Scheduler       Scheduler
	Feedback        feedback.Provider
	Events          events.Publisher
	MatchDelay      time.Duration
	MismatchDelay   time.Duration
	StoreTimeout    time.Duration
	FeedbackTimeout time.Duration
	Now             func() time.Time
}

// Engine owns one game session and its selection state machine.
type Engine struct {
	id              string
	deal            Dealer
	scores          ScoreStore
	sched           Scheduler
	timer           *Timer
	feedback        feedback.Provider
	events          events.Publisher
	matchDelay      time.Duration
	mismatchDelay   time.Duration
	storeTimeout    time.Duration
	feedbackTimeout time.Duration
	now             func() time.Time

	mu            sync.Mutex
	gen           uint64
	phase         Phase
	difficulty    Difficulty
	board         Board
	selection     []int
	moves         int
	matches       int
	best          int
	misses        int
	scoreRecorded bool
	pending       func() bool
	lastActive    time.Time
	message       string
	msgSeq        uint64 // last announced
	msgShown      uint64 // last applied to message
}

// New builds an idle engine.
func New(opts Options) *Engine {
	e := &Engine{
		id:              opts.ID,
		deal:            opts.Dealer,
		scores:          opts.Scores,
		sched:           opts.Scheduler,
		feedback:        opts.Feedback,
		events:          opts.Events,
		matchDelay:      opts.MatchDelay,
		mismatchDelay:   opts.MismatchDelay,
		storeTimeout:    opts.StoreTimeout,
		feedbackTimeout: opts.FeedbackTimeout,
		now:             opts.Now,
		phase:           PhaseIdle,
		difficulty:      Easy,
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	if e.sched == nil {
		e.sched = WallScheduler()
	}
	if e.matchDelay <= 0 {
		e.matchDelay = DefaultMatchDelay
	}
	if e.mismatchDelay <= 0 {
		e.mismatchDelay = DefaultMismatchDelay
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = defaultStoreTimeout
	}
	if e.feedbackTimeout <= 0 {
		e.feedbackTimeout = defaultFeedbackTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.timer = NewTimer(e.sched)
	e.lastActive = e.now()
	return e
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// StartGame deals a new board and moves to AwaitingFirst from any phase.
// A dealing error leaves the previous session untouched.
func (e *Engine) StartGame(ctx context.Context, d Difficulty) error {
	board, err := e.deal(d)
	if err != nil {
		return err
	}
	best := e.loadBest(ctx, d)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidateLocked()
	e.board = board
	e.difficulty = d
	e.best = best
	e.selection = nil
	e.moves, e.matches, e.misses = 0, 0, 0
	e.scoreRecorded = false
	e.message = ""
	e.phase = PhaseAwaitingFirst
	e.lastActive = e.now()

	e.timer.Stop()
	e.timer.Reset()
	e.timer.Start()

	log.Debug().Str("session", e.id).Str("difficulty", string(d)).Int("cards", board.Len()).Msg("game started")
	e.announceLocked(feedback.Greeting)
	return nil
}

// SelectCard flips the card at index. It returns false, changing nothing,
// when input is locked, no game is in play, the index is out of range or the
// card is already face up.
func (e *Engine) SelectCard(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseAwaitingFirst && e.phase != PhaseAwaitingSecond {
		return false
	}
	if index < 0 || index >= e.board.Len() {
		return false
	}
	c := &e.board.Cards[index]
	if c.Revealed || c.Matched {
		return false
	}
	for _, i := range e.selection {
		if i == index {
			return false
		}
	}

	c.Revealed = true
	e.selection = append(e.selection, index)
	e.lastActive = e.now()

	if e.phase == PhaseAwaitingFirst {
		e.phase = PhaseAwaitingSecond
		return true
	}

	e.moves++
	e.phase = PhaseResolving
	first, second := e.selection[0], e.selection[1]
	gen := e.gen
	if e.board.Cards[first].PairID == e.board.Cards[second].PairID {
		e.pending = e.sched.AfterFunc(e.matchDelay, func() { e.resolveMatch(gen, first, second) })
	} else {
		e.pending = e.sched.AfterFunc(e.mismatchDelay, func() { e.resolveMismatch(gen, first, second) })
	}
	return true
}

// Reset abandons the session and returns to Idle. Calling it again is a no-op.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidateLocked()
	e.timer.Stop()
	e.timer.Reset()
	e.board = Board{}
	e.selection = nil
	e.moves, e.matches, e.misses = 0, 0, 0
	e.phase = PhaseIdle
	e.message = ""
	e.lastActive = e.now()
}

// Close stops the timer and invalidates pending callbacks.
func (e *Engine) Close() { e.Reset() }

// RecordScore appends a leaderboard entry for the won game. It succeeds at
// most once per game.
func (e *Engine) RecordScore(ctx context.Context, name string) ([]scores.Record, error) {
	e.mu.Lock()
	if e.phase != PhaseWon {
		e.mu.Unlock()
		return nil, ErrNotWon
	}
	if e.scoreRecorded {
		e.mu.Unlock()
		return nil, ErrScoreRecorded
	}
	if e.scores == nil {
		e.mu.Unlock()
		return nil, errors.New("no score store configured")
	}
	e.scoreRecorded = true
	gen := e.gen
	rec := scores.Record{
		PlayerName:     cleanName(name),
		Moves:          e.moves,
		ElapsedSeconds: e.timer.Elapsed(),
		Difficulty:     string(e.difficulty),
		Date:           e.now().UTC(),
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	list, err := e.scores.AppendLeaderboardEntry(ctx, rec)
	if err != nil {
		// Let the player retry the same game.
		e.mu.Lock()
		if gen == e.gen {
			e.scoreRecorded = false
		}
		e.mu.Unlock()
		return nil, err
	}
	return list, nil
}

// Snapshot copies the session for display. Cards are identified by position;
// face-down cards hide their pair id and image.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	cards := make([]CardView, len(e.board.Cards))
	for i, c := range e.board.Cards {
		cv := CardView{ID: i, Revealed: c.Revealed, Matched: c.Matched}
		if c.Revealed || c.Matched {
			pid := c.PairID
			cv.PairID = &pid
			cv.Image = c.Image
		}
		cards[i] = cv
	}
	return State{
		ID:         e.id,
		Status:     e.phase.Status(),
		Phase:      e.phase,
		Difficulty: e.difficulty,
		Cards:      cards,
		Selection:  append([]int{}, e.selection...),
		Stats: Stats{
			Moves:      e.moves,
			Elapsed:    e.timer.Elapsed(),
			Pairs:      e.matches,
			TotalPairs: e.board.TotalPairs(),
			Best:       e.best,
		},
		Message:    e.message,
		Generation: e.gen,
	}
}

// LastActive reports when the session last accepted input.
func (e *Engine) LastActive() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActive
}

// ------------------------------ resolution ---------------------------------

func (e *Engine) resolveMatch(gen uint64, a, b int) {
	e.mu.Lock()
	if gen != e.gen || e.phase != PhaseResolving {
		e.mu.Unlock()
		log.Debug().Str("session", e.id).Msg("stale match resolution ignored")
		return
	}
	e.pending = nil
	e.board.Cards[a].Matched = true
	e.board.Cards[b].Matched = true
	e.selection = nil
	e.matches++
	e.misses = 0

	if e.matches != e.board.TotalPairs() {
		e.phase = PhaseAwaitingFirst
		e.announceLocked(feedback.Match)
		e.mu.Unlock()
		return
	}

	e.phase = PhaseWon
	e.timer.Stop()
	d, moves := e.difficulty, e.moves
	log.Debug().Str("session", e.id).Int("moves", moves).Int("elapsed", e.timer.Elapsed()).Msg("game won")
	e.announceLocked(feedback.Win)
	e.mu.Unlock()

	best := e.persistBest(d, moves)

	e.mu.Lock()
	if gen == e.gen {
		e.best = best
	}
	e.mu.Unlock()
}

func (e *Engine) resolveMismatch(gen uint64, a, b int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.phase != PhaseResolving {
		log.Debug().Str("session", e.id).Msg("stale mismatch resolution ignored")
		return
	}
	e.pending = nil
	e.board.Cards[a].Revealed = false
	e.board.Cards[b].Revealed = false
	e.selection = nil
	e.phase = PhaseAwaitingFirst

	e.misses++
	if e.misses >= stuckAfter {
		e.misses = 0
		e.announceLocked(feedback.Stuck)
		return
	}
	e.announceLocked(feedback.Miss)
}

// invalidateLocked bumps gen and stops any pending resolution.
func (e *Engine) invalidateLocked() {
	e.gen++
	if e.pending != nil {
		e.pending()
		e.pending = nil
	}
}

// ------------------------------ best score ---------------------------------

// loadBest reads the stored best; failures read as "no record".
func (e *Engine) loadBest(ctx context.Context, d Difficulty) int {
	if e.scores == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	best, ok, err := e.scores.Best(ctx, string(d))
	if err != nil {
		log.Warn().Err(err).Str("difficulty", string(d)).Msg("read best score")
		return 0
	}
	if !ok {
		return 0
	}
	return best
}

// persistBest writes moves when it beats the stored best for d and returns
// the best to display. It runs without e.mu held.
func (e *Engine) persistBest(d Difficulty, moves int) int {
	if e.scores == nil {
		return moves
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.storeTimeout)
	defer cancel()

	prior, ok, err := e.scores.Best(ctx, string(d))
	if err != nil {
		log.Warn().Err(err).Str("difficulty", string(d)).Msg("read best score")
		ok = false
	}
	if ok && moves >= prior {
		return prior
	}
	if err := e.scores.SetBest(ctx, string(d), moves); err != nil {
		log.Warn().Err(err).Str("difficulty", string(d)).Int("moves", moves).Msg("write best score")
	}
	return moves
}

// ------------------------------ side channel -------------------------------

// announceLocked publishes kind and fetches a feedback line off the lock.
func (e *Engine) announceLocked(kind feedback.Kind) {
	e.msgSeq++
	seq, gen := e.msgSeq, e.gen
	req := feedback.Request{Kind: kind, Moves: e.moves, Difficulty: string(e.difficulty)}
	ev := events.Event{
		SessionID:  e.id,
		Kind:       string(kind),
		Difficulty: string(e.difficulty),
		Moves:      e.moves,
		Matches:    e.matches,
		Elapsed:    e.timer.Elapsed(),
		At:         e.now().UTC(),
	}
	go e.deliver(gen, seq, req, ev)
}

func (e *Engine) deliver(gen, seq uint64, req feedback.Request, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.feedbackTimeout)
	defer cancel()

	if e.events != nil {
		if err := e.events.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("session", e.id).Str("kind", ev.Kind).Msg("publish event")
		}
	}

	msg, err := feedback.Resolve(ctx, e.feedback, req)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(req.Kind)).Msg("feedback provider failed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || seq <= e.msgShown {
		return
	}
	e.msgShown = seq
	e.message = msg
}

// cleanName trims the player name, caps it and substitutes a default.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return anonymousName
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}
