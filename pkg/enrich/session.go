package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// DefaultSessionIdleTimeout is how long a session may go without activity
// before the sweeper evicts its in-memory state.
const DefaultSessionIdleTimeout = 30 * time.Minute

// Session is a snapshot of the per-process state for one session identifier.
// It annotates outgoing records with a rough bounce/duration estimate; the
// persisted "unique visitors" concept is computed downstream from stored
// records, not from this state.
type Session struct {
	ID        string        `json:"session_id"`
	Duration  time.Duration `json:"duration"`
	PageCount int           `json:"page_count"`
	IsBounce  bool          `json:"is_bounce"`
}

type sessionState struct {
	firstSeen time.Time
	lastSeen  time.Time
	pageCount int
}

// SessionTracker maintains per-session state keyed by a session identifier
// created and persisted by the calling environment.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	now      func() time.Time
	metrics  *observability.Metrics
}

// NewSessionTracker creates an empty session tracker. metrics may be nil.
func NewSessionTracker(metrics *observability.Metrics) *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
		metrics:  metrics,
	}
}

// Touch records activity for a session and returns the updated state.
// The first touch for an id yields page count 1 and a bounce; every
// subsequent touch increments the page count, clears the bounce flag,
// and advances the running duration.
func (t *SessionTracker) Touch(sessionID string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state, ok := t.sessions[sessionID]
	if !ok {
		state = &sessionState{
			firstSeen: now,
			lastSeen:  now,
			pageCount: 1,
		}
		t.sessions[sessionID] = state
		if t.metrics != nil {
			t.metrics.ActiveSessions.Set(float64(len(t.sessions)))
		}
	} else {
		state.pageCount++
		state.lastSeen = now
	}

	return Session{
		ID:        sessionID,
		Duration:  now.Sub(state.firstSeen),
		PageCount: state.pageCount,
		IsBounce:  state.pageCount <= 1,
	}
}

// Len returns the number of sessions currently held in memory
func (t *SessionTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Sweep evicts sessions idle longer than idleTimeout and returns how many
// were removed.
func (t *SessionTracker) Sweep(idleTimeout time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-idleTimeout)
	removed := 0
	for id, state := range t.sessions {
		if state.lastSeen.Before(cutoff) {
			delete(t.sessions, id)
			removed++
		}
	}
	if removed > 0 && t.metrics != nil {
		t.metrics.ActiveSessions.Set(float64(len(t.sessions)))
	}
	return removed
}

// StartSweeper starts a background goroutine that sweeps idle sessions
// until ctx is cancelled.
func (t *SessionTracker) StartSweeper(ctx context.Context, idleTimeout time.Duration) {
	if idleTimeout <= 0 {
		idleTimeout = DefaultSessionIdleTimeout
	}
	ticker := time.NewTicker(idleTimeout)
	go func() {
		for {
			select {
			case <-ticker.C:
				t.Sweep(idleTimeout)
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}
