// Package executor sends single commands over an open transport connection
// and captures the device's answer as an immutable Result. It enforces the
// dangerous-command deny-list and never interprets the output beyond prompt
// detection; command text comes from the catalog or the caller and is
// treated as opaque.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
	"github.com/termgate/termgate/internal/prompt"
	"github.com/termgate/termgate/internal/transport"
)

// Result records one command execution. Values are never mutated after
// creation; the session keeps them in a bounded history ring.
type Result struct {
	Command   string        `json:"command"`
	Output    string        `json:"output"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Executor runs commands against device connections. A single Executor is
// shared by all sessions; it holds only the immutable deny-list.
type Executor struct {
	rules []Rule
}

// New returns an Executor enforcing the given deny-list rules. Rules are
// matched lowercase; nil falls back to DefaultRules.
func New(rules []Rule) *Executor {
	if rules == nil {
		rules = DefaultRules
	}
	return &Executor{rules: rules}
}

// Execute sends command followed by a line terminator and reads the stream
// until the prompt appears or timeout elapses with no new bytes.
//
// A deny-list match returns a policy error before anything is written to
// the wire. A missing prompt is not an error: the Result comes back with
// Success=false and whatever partial output accumulated. Only transport
// failures surface as errors.
func (e *Executor) Execute(ctx context.Context, conn transport.Conn, det *prompt.Detector, command string, timeout time.Duration) (Result, error) {
	if err := e.Check(command); err != nil {
		return Result{}, err
	}

	start := time.Now()
	if err := conn.Send([]byte(command + "\n")); err != nil {
		return Result{}, err
	}

	buf, err := conn.ReadUntil(ctx, det.Match, timeout)
	res := Result{
		Command:   command,
		Duration:  time.Since(start),
		Timestamp: start,
	}
	switch {
	case err == nil:
		res.Success = true
		res.Output = cleanOutput(string(buf), command, det)
	case errdefs.IsTimeout(err):
		// No prompt within the deadline. The partial capture is still
		// useful; the flagged Result is the whole story for the caller.
		res.Success = false
		res.Output = strings.TrimRight(string(buf), " \r\n")
	default:
		return Result{}, err
	}
	return res, nil
}
