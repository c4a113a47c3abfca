package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	sessionChannel = "coachline_session_changed"
	chunkChannel   = "coachline_chunk_appended"

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

// Notifier is the C3 push transport: sessions/transcript_chunks row
// changes are announced over Postgres LISTEN/NOTIFY (keyed by call_id) so
// that GET /live subscribers across process instances wake up without
// polling. Grounded on the teacher's general fondness for pq-native
// primitives; this repo had no listener of its own to adapt.
type Notifier struct {
	db       *sql.DB
	listener *pq.Listener
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// NewNotifier opens a dedicated LISTEN connection against connStr. db is the
// pool used to publish (pg_notify can't run on the listener's own connection
// in a straightforward way, so publishing goes through the normal pool).
func NewNotifier(connStr string, db *sql.DB, logger *zap.Logger) (*Notifier, error) {
	n := &Notifier{
		db:     db,
		logger: logger,
		subs:   make(map[string][]chan struct{}),
	}

	listener := pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval, n.onListenerEvent)
	if err := listener.Listen(sessionChannel); err != nil {
		listener.Close()
		return nil, err
	}
	if err := listener.Listen(chunkChannel); err != nil {
		listener.Close()
		return nil, err
	}
	n.listener = listener
	return n, nil
}

func (n *Notifier) onListenerEvent(ev pq.ListenerEventType, err error) {
	if err != nil {
		n.logger.Warn("listener event error", zap.Error(err))
	}
}

// Run drains notifications until ctx is cancelled. Call it on its own goroutine.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.listener.Close()
			return
		case notice := <-n.listener.Notify:
			if notice == nil {
				continue
			}
			n.broadcast(notice.Extra)
		case <-time.After(90 * time.Second):
			go n.listener.Ping()
		}
	}
}

// Subscribe registers interest in row changes for callID. The returned
// cancel func must be called once the subscriber stops watching.
func (n *Notifier) Subscribe(callID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.subs[callID] = append(n.subs[callID], ch)
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		chans := n.subs[callID]
		for i, c := range chans {
			if c == ch {
				n.subs[callID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(n.subs[callID]) == 0 {
			delete(n.subs, callID)
		}
	}
	return ch, cancel
}

func (n *Notifier) broadcast(callID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[callID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *Notifier) publishSession(callID string) {
	n.publish(sessionChannel, callID)
}

func (n *Notifier) publishChunk(callID string) {
	n.publish(chunkChannel, callID)
}

// publish is deliberately swallowed-on-error: a missed NOTIFY just means a
// live subscriber falls back to its poll cadence instead of waking early.
func (n *Notifier) publish(channel, callID string) {
	if n == nil {
		return
	}
	if _, err := n.db.Exec(`SELECT pg_notify($1, $2)`, channel, callID); err != nil {
		n.logger.Warn("pg_notify failed", zap.String("channel", channel), zap.Error(err))
	}
	// Same-process subscribers don't need to round-trip through Postgres.
	n.broadcast(callID)
}

func (n *Notifier) Close() error {
	return n.listener.Close()
}
