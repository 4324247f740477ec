// Package transporttest provides a scripted in-memory transport.Conn so
// that executor and session tests can drive a device conversation without a
// network or a serial port.
package transporttest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
)

// Conn is a fake transport connection. Every Send is recorded; replies are
// looked up in a script keyed by the trimmed command text and queued for the
// next ReadUntil, echoed and terminated with the configured prompt line the
// way a real device would.
type Conn struct {
	mu         sync.Mutex
	prompt     string
	replies    map[string]string
	silent     bool
	pending    bytes.Buffer
	sent       []string
	sendErr    error
	readErr    error
	closed     bool
	closeCount int
}

// New returns a Conn whose scripted replies end in promptLine,
// e.g. "core-sw-01#".
func New(promptLine string) *Conn {
	return &Conn{prompt: promptLine, replies: make(map[string]string)}
}

// Reply registers the output the device produces for a command.
func (c *Conn) Reply(command, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[command] = output
}

// Queue preloads raw bytes, as a connect banner would appear.
func (c *Conn) Queue(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.WriteString(s)
}

// SetSilent makes the device swallow commands without answering, so
// ReadUntil runs into its idle deadline.
func (c *Conn) SetSilent(silent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.silent = silent
}

// FailSends makes every subsequent Send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// FailReads makes every subsequent ReadUntil return err.
func (c *Conn) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *Conn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errdefs.Transport("send", fmt.Errorf("connection closed"))
	}
	if c.sendErr != nil {
		return c.sendErr
	}

	line := strings.TrimRight(string(p), "\r\n")
	c.sent = append(c.sent, line)
	if c.silent {
		return nil
	}

	// Echo the command and answer from the script, ending at the prompt.
	c.pending.WriteString(line + "\r\n")
	if reply, ok := c.replies[line]; ok {
		c.pending.WriteString(reply)
		if !strings.HasSuffix(reply, "\n") {
			c.pending.WriteString("\r\n")
		}
	}
	c.pending.WriteString(c.prompt)
	return nil
}

func (c *Conn) ReadUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error) {
	c.mu.Lock()
	data := append([]byte(nil), c.pending.Bytes()...)
	c.pending.Reset()
	readErr := c.readErr
	c.mu.Unlock()

	if readErr != nil {
		return data, readErr
	}
	if match != nil && match(data) {
		return data, nil
	}

	select {
	case <-time.After(idle):
		return data, errdefs.Timeout("read", fmt.Errorf("no new bytes for %s", idle))
	case <-ctx.Done():
		return data, errdefs.Timeout("read", ctx.Err())
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCount++
	return nil
}

// SendCount returns how many commands were written to the wire.
func (c *Conn) SendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// Sent returns the recorded command lines.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// CloseCount returns how many times Close was called. The session layer
// promises to release a connection exactly once, so tests assert 1.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// Closed reports whether the connection was released.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
