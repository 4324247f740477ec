// state.go implements the session lifecycle state machine.
//
// Every Session moves through a fixed set of states (Disconnected,
// Connecting, Authenticated, Ready, Executing, Expired). Transitions are
// validated against a legality table, so a session can never reach
// Authenticated without the connect step succeeding, and recorded in a
// per-session ring buffer (50 entries) for the status API and debugging.

package session

import "time"

// State is the lifecycle state of a Session.
type State int

const (
	// StateDisconnected is the initial and terminal state: no transport
	// handle is held. Reaching it from any live state requires the handle
	// to have been released.
	StateDisconnected State = iota
	// StateConnecting covers the transport connect and authentication step.
	StateConnecting
	// StateAuthenticated means the device accepted the connection and the
	// credentials; the pager-disable handshake has not run yet.
	StateAuthenticated
	// StateReady means the session accepts commands.
	StateReady
	// StateExecuting means a command is in flight; further Execute calls
	// wait for it to finish.
	StateExecuting
	// StateExpired means the idle timeout elapsed and the transport handle
	// was released. Only an explicit close (to Disconnected) leaves it.
	StateExpired
)

// String returns the lowercase state name used in logs and API responses.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// legalTransitions is the state machine from the session lifecycle:
// open drives Disconnected→Connecting→Authenticated→Ready, each Execute
// bounces Ready⇄Executing, idle expiry moves Ready→Expired, and any live
// state collapses to Disconnected on close or transport failure.
var legalTransitions = map[State][]State{
	StateDisconnected:  {StateConnecting},
	StateConnecting:    {StateAuthenticated, StateDisconnected},
	StateAuthenticated: {StateReady, StateDisconnected},
	StateReady:         {StateExecuting, StateExpired, StateDisconnected},
	StateExecuting:     {StateReady, StateDisconnected},
	StateExpired:       {StateDisconnected},
}

// canTransition reports whether moving from one state to another is legal.
// Same-state moves are not transitions and are rejected here; callers treat
// them as no-ops.
func canTransition(from, to State) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitionBufferSize is the number of state transitions retained per
// session for the status API.
const transitionBufferSize = 50

// Transition records a single state change.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// TransitionCallback is invoked on every session state change. Callbacks
// run synchronously on the transitioning goroutine; long-running handlers
// should spawn their own.
type TransitionCallback func(sessionID string, from, to State, reason string)

// transitionRing is a fixed-size ring of recent transitions. The zero value
// is ready to use. Not safe for concurrent use; the owning Session guards it.
type transitionRing struct {
	entries [transitionBufferSize]Transition
	head    int // next write position
	count   int // total entries written, capped at the buffer size for reads
}

// record appends a transition, evicting the oldest when full.
func (r *transitionRing) record(from, to State, reason string) {
	r.entries[r.head] = Transition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	r.head = (r.head + 1) % transitionBufferSize
	if r.count < transitionBufferSize {
		r.count++
	}
}

// history returns the recorded transitions in chronological order.
func (r *transitionRing) history() []Transition {
	if r.count == 0 {
		return nil
	}
	result := make([]Transition, r.count)
	if r.count < transitionBufferSize {
		copy(result, r.entries[:r.count])
	} else {
		// Buffer is full, head points at the oldest entry.
		n := copy(result, r.entries[r.head:])
		copy(result[n:], r.entries[:r.head])
	}
	return result
}
