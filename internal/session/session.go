// Package session owns the lifecycle of device connections: it opens
// profiles into live sessions, serializes command execution on them,
// expires idle ones and guarantees the underlying transport handle is
// released exactly once on every path out.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/termgate/termgate/internal/errdefs"
	"github.com/termgate/termgate/internal/executor"
	"github.com/termgate/termgate/internal/prompt"
	"github.com/termgate/termgate/internal/transport"
)

// Profile describes one device endpoint. Values come from the configuration
// layer; a Profile is immutable once created, edits replace the whole value
// rather than mutating it in place.
type Profile struct {
	ID   string
	Name string

	// Transport selects the variant; Host/Port address the remote ones,
	// Device and BaudRate the serial console.
	Transport transport.Kind
	Host      string
	Port      int
	Device    string
	BaudRate  int

	// Family keys into the device-family table for the pager-disable
	// command and prompt suffixes.
	Family string

	Username string

	// Zero timeouts fall back to the manager defaults.
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	IdleTimeout    time.Duration
}

// Session is a live, single-owner connection to one device. At most one
// Session exists per profile at any time; the Manager enforces that.
//
// The transport handle is exclusively owned by the Session and released
// exactly once: on close, on idle expiry, or on the transport failure that
// ends the session.
type Session struct {
	ID        string
	Profile   Profile
	CreatedAt time.Time

	conn transport.Conn
	det  *prompt.Detector

	// notify fans a state change out to the manager's callbacks. Invoked
	// outside mu.
	notify func(sessionID string, from, to State, reason string)

	// execMu serializes Execute calls: a new command is not accepted while
	// one is in flight, callers block until completion.
	execMu sync.Mutex

	mu           sync.Mutex
	state        State
	transitions  transitionRing
	lastActivity time.Time
	history      *resultRing

	closeOnce sync.Once
	closeErr  error
}

func newSession(profile Profile, historySize int) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		Profile:      profile,
		CreatedAt:    now,
		state:        StateDisconnected,
		lastActivity: now,
		history:      newResultRing(historySize),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the time of the last state change or command.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Transitions returns the recent state changes in chronological order.
func (s *Session) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitions.history()
}

// History returns the retained command results in chronological order.
func (s *Session) History() []executor.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.list()
}

// setState performs a validated state transition. Same-state calls are
// no-ops; illegal transitions are refused. Callbacks fire outside the lock.
func (s *Session) setState(to State, reason string) bool {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return true
	}
	if !canTransition(from, to) {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.transitions.record(from, to, reason)
	s.lastActivity = time.Now()
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(s.ID, from, to, reason)
	}
	return true
}

// expireIfIdle moves a Ready session whose idle time reached idleTimeout to
// Expired and releases the transport handle. The check and the transition
// happen under one lock so a concurrent Execute cannot slip in between.
func (s *Session) expireIfIdle(idleTimeout time.Duration) bool {
	if idleTimeout <= 0 {
		return false
	}
	s.mu.Lock()
	if s.state != StateReady || time.Since(s.lastActivity) < idleTimeout {
		s.mu.Unlock()
		return false
	}
	from := s.state
	s.state = StateExpired
	reason := fmt.Sprintf("idle for more than %s", idleTimeout)
	s.transitions.record(from, StateExpired, reason)
	notify := s.notify
	s.mu.Unlock()

	s.releaseConn()
	if notify != nil {
		notify(s.ID, from, StateExpired, reason)
	}
	return true
}

// claim atomically moves a Ready session to Executing. It reports why the
// session cannot take a command otherwise; an expired session yields a
// transport error without any device contact.
func (s *Session) claim() error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		from := s.state
		s.state = StateExecuting
		s.transitions.record(from, StateExecuting, "command accepted")
		s.lastActivity = time.Now()
		notify := s.notify
		s.mu.Unlock()
		if notify != nil {
			notify(s.ID, from, StateExecuting, "command accepted")
		}
		return nil
	case StateExpired:
		s.mu.Unlock()
		return errdefs.Transport("execute", fmt.Errorf("session expired after idle timeout"))
	default:
		st := s.state
		s.mu.Unlock()
		return errdefs.Transport("execute", fmt.Errorf("session is %s, not ready", st))
	}
}

// appendHistory records a command result in the bounded ring.
func (s *Session) appendHistory(res executor.Result) {
	s.mu.Lock()
	s.history.add(res)
	s.mu.Unlock()
}

// releaseConn closes the transport handle exactly once. Safe to call from
// any state and any number of times.
func (s *Session) releaseConn() error {
	s.closeOnce.Do(func() {
		if s.conn != nil {
			s.closeErr = s.conn.Close()
		}
	})
	return s.closeErr
}

// IdleFor returns how long the session has been without activity.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastActivity())
}
