// internal/events/events.go
//
// Game event fan-out.
// Each committed engine event (start, match, miss, win) can be published to
// NATS so other processes (dashboards, bots) can follow games. Publishing is
// best-effort: the engine logs failures and carries on.
//
// Subjects are <prefix>.<kind in lower case>, e.g. memory.events.win.

package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Event describes one committed state change.
type Event struct {
	SessionID  string    `json:"sessionId"`
	Kind       string    `json:"kind"`
	Difficulty string    `json:"difficulty"`
	Moves      int       `json:"moves"`
	Matches    int       `json:"matches"`
	Elapsed    int       `json:"elapsedSeconds"`
	At         time.Time `json:"at"`
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// NATS publishes JSON-encoded events on a subject per kind.
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials url with reconnect settings suited to a long-running server.
func Connect(url, prefix string) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("memory-match"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: nc, prefix: prefix}, nil
}

// Publish encodes ev and hands it to the connection's outbound buffer.
func (n *NATS) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.conn.Publish(Subject(n.prefix, ev.Kind), data)
}

// Close flushes pending events and closes the connection.
func (n *NATS) Close() {
	_ = n.conn.Drain()
}

// Subject builds the subject for kind under prefix.
func Subject(prefix, kind string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = "memory.events"
	}
	return prefix + "." + strings.ToLower(kind)
}
