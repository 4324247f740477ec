package session

import (
	"fmt"
	"testing"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected:  "disconnected",
		StateConnecting:    "connecting",
		StateAuthenticated: "authenticated",
		StateReady:         "ready",
		StateExecuting:     "executing",
		StateExpired:       "expired",
		State(99):          "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateAuthenticated},
		{StateConnecting, StateDisconnected},
		{StateAuthenticated, StateReady},
		{StateAuthenticated, StateDisconnected},
		{StateReady, StateExecuting},
		{StateReady, StateExpired},
		{StateReady, StateDisconnected},
		{StateExecuting, StateReady},
		{StateExecuting, StateDisconnected},
		{StateExpired, StateDisconnected},
	}
	for _, tc := range allowed {
		if !canTransition(tc.from, tc.to) {
			t.Errorf("canTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to State }{
		// Authenticated cannot be skipped.
		{StateDisconnected, StateAuthenticated},
		{StateDisconnected, StateReady},
		{StateConnecting, StateReady},
		{StateConnecting, StateExecuting},
		// Expiry only applies to an idle Ready session.
		{StateExecuting, StateExpired},
		{StateConnecting, StateExpired},
		{StateDisconnected, StateExpired},
		// Expired sessions never come back to life.
		{StateExpired, StateReady},
		{StateExpired, StateConnecting},
		// Disconnected is terminal until a fresh open.
		{StateDisconnected, StateExecuting},
	}
	for _, tc := range denied {
		if canTransition(tc.from, tc.to) {
			t.Errorf("canTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestSetStateRejectsIllegalTransition(t *testing.T) {
	s := newSession(Profile{ID: "p1", Name: "sw"}, 10)

	if s.setState(StateReady, "skip everything") {
		t.Error("setState allowed Disconnected→Ready")
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("state = %s after rejected transition, want disconnected", got)
	}

	if !s.setState(StateConnecting, "open") {
		t.Fatal("setState refused Disconnected→Connecting")
	}
	if !s.setState(StateConnecting, "again") {
		t.Error("same-state setState should be a no-op, not a refusal")
	}
	if n := len(s.Transitions()); n != 1 {
		t.Errorf("transition count = %d, want 1 (same-state moves are not recorded)", n)
	}
}

func TestTransitionRingWraps(t *testing.T) {
	var ring transitionRing
	total := transitionBufferSize + 7
	for i := 0; i < total; i++ {
		ring.record(StateReady, StateExecuting, fmt.Sprintf("cmd %d", i))
	}

	hist := ring.history()
	if len(hist) != transitionBufferSize {
		t.Fatalf("history length = %d, want %d", len(hist), transitionBufferSize)
	}
	if hist[0].Reason != fmt.Sprintf("cmd %d", total-transitionBufferSize) {
		t.Errorf("oldest retained = %q, want cmd %d", hist[0].Reason, total-transitionBufferSize)
	}
	if hist[len(hist)-1].Reason != fmt.Sprintf("cmd %d", total-1) {
		t.Errorf("newest = %q, want cmd %d", hist[len(hist)-1].Reason, total-1)
	}
}

func TestTransitionRingPartial(t *testing.T) {
	var ring transitionRing
	if ring.history() != nil {
		t.Error("empty ring should return nil history")
	}

	ring.record(StateDisconnected, StateConnecting, "open")
	ring.record(StateConnecting, StateAuthenticated, "auth ok")

	hist := ring.history()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].To != StateConnecting || hist[1].To != StateAuthenticated {
		t.Errorf("history order wrong: %+v", hist)
	}
}

func TestStateMarshalText(t *testing.T) {
	b, err := StateReady.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	if string(b) != "ready" {
		t.Errorf("MarshalText() = %q, want %q", b, "ready")
	}
}
