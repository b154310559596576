// internal/feedback/feedback.go
//
// Short display lines shown next to the board after game events.
//
// The engine treats any Provider as optional and untrusted: calls run off the
// state machine's path, under a timeout, and any error or empty reply is
// replaced with Fallback.

package feedback

import (
	"context"
	"math/rand/v2"
)

// Kind names the event being commented on.
type Kind string

const (
	Match    Kind = "MATCH"
	Miss     Kind = "MISS"
	Win      Kind = "WIN"
	Greeting Kind = "GREETING"
	Stuck    Kind = "STUCK"
)

// Request carries the event and optional context for the line.
type Request struct {
	Kind       Kind
	Moves      int
	Difficulty string
}

// Provider produces a display line for an event.
type Provider interface {
	Feedback(ctx context.Context, req Request) (string, error)
}

// Fallback is used whenever a Provider fails.
const Fallback = "Bee-do! Banana!"

// Static picks canned Minion-ese lines; it never fails.
type Static struct {
	// Pick chooses an index in [0, n); nil uses math/rand/v2.
	Pick func(n int) int
}

var phrases = map[Kind][]string{
	Greeting: {"Bello!", "Bello! Poka?", "Tulaliloo ti amo!"},
	Match:    {"Banana!", "Para tú!", "Tank yu!"},
	Miss:     {"Poka?", "Bee-do?", "Uh oh... Bapples."},
	Stuck:    {"Keep looking! Banana!", "Poka? Tulaliloo!", "Me want banana... keep going!"},
	Win:      {"Banana party!", "Kanpai! Banana party!", "Tulaliloo ti amo! Banana party!"},
}

// Feedback returns a canned line for req.Kind.
func (s Static) Feedback(_ context.Context, req Request) (string, error) {
	lines := phrases[req.Kind]
	if len(lines) == 0 {
		return Fallback, nil
	}
	pick := s.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return lines[pick(len(lines))], nil
}

// Resolve calls p and substitutes Fallback on error, empty reply or a nil
// provider. The returned error is informational only.
func Resolve(ctx context.Context, p Provider, req Request) (string, error) {
	if p == nil {
		return Fallback, nil
	}
	msg, err := p.Feedback(ctx, req)
	if err != nil || msg == "" {
		return Fallback, err
	}
	return msg, nil
}
