package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
	"github.com/termgate/termgate/internal/prompt"
)

// Telnet protocol bytes (RFC 854). Only option negotiation is handled, and
// every option is refused: devices then fall back to plain NVT mode, which
// is all a CLI session needs.
const (
	telnetSE   = 240
	telnetSB   = 250
	telnetWILL = 251
	telnetWONT = 252
	telnetDO   = 253
	telnetDONT = 254
	telnetIAC  = 255
)

// loginFailureMarkers are printed by common device CLIs when credentials
// are rejected during a telnet login.
var loginFailureMarkers = []string{
	"% login invalid",
	"% authentication failed",
	"% bad passwords",
	"login incorrect",
	"access denied",
}

// dialTelnet opens the plaintext remote terminal variant: TCP dial, then a
// scripted login that waits for the literal "Username:" and "Password:"
// fragments in sequence, each under its own sub-timeout, and finally for
// the first shell prompt.
func dialTelnet(ctx context.Context, opts Options) (Conn, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errdefs.Transport("dial "+addr, err)
	}

	c := newStream(netConn, &telnetFilter{conn: netConn}, netConn.Close)
	if err := telnetLogin(ctx, c, opts); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// telnetLogin drives the scripted login. Each wait runs under the login
// sub-timeout; a device that re-prompts or prints a failure marker after
// the credentials were sent is treated as rejecting them.
func telnetLogin(ctx context.Context, c Conn, opts Options) error {
	step := opts.LoginTimeout
	if step <= 0 {
		step = 10 * time.Second
	}

	if opts.Username != "" {
		if _, err := c.ReadUntil(ctx, anyFold("username:", "login:"), step); err != nil {
			return fmt.Errorf("wait for username prompt: %w", err)
		}
		if err := c.Send([]byte(opts.Username + "\n")); err != nil {
			return err
		}
	}
	if opts.Password != "" {
		if _, err := c.ReadUntil(ctx, anyFold("password:"), step); err != nil {
			return fmt.Errorf("wait for password prompt: %w", err)
		}
		if err := c.Send([]byte(opts.Password + "\n")); err != nil {
			return err
		}
	}

	det := prompt.New(opts.PromptSuffixes)
	buf, err := c.ReadUntil(ctx, func(b []byte) bool {
		return det.Match(b) || telnetLoginFailed(b)
	}, step)
	if err != nil {
		return fmt.Errorf("wait for shell prompt: %w", err)
	}
	if telnetLoginFailed(buf) {
		return errdefs.Authentication("telnet login", fmt.Errorf("device rejected credentials"))
	}
	return nil
}

func telnetLoginFailed(buf []byte) bool {
	low := strings.ToLower(string(buf))
	for _, m := range loginFailureMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// anyFold returns a buffer predicate matching any needle case-insensitively.
// Needles must be lowercase.
func anyFold(needles ...string) func([]byte) bool {
	return func(buf []byte) bool {
		low := strings.ToLower(string(buf))
		for _, n := range needles {
			if strings.Contains(low, n) {
				return true
			}
		}
		return false
	}
}

// telnetFilter reads from the raw connection, answers option negotiation
// inline (refusing everything) and strips IAC sequences from the data
// handed to the caller. Negotiation state survives across Read calls since
// a sequence can split between network reads.
type telnetFilter struct {
	conn net.Conn
	raw  [4096]byte

	// state machine: 0 data, 1 after IAC, 2 after IAC+verb,
	// 3 inside subnegotiation, 4 inside subnegotiation after IAC
	state int
	verb  byte
}

func (f *telnetFilter) Read(p []byte) (int, error) {
	for {
		limit := len(f.raw)
		if len(p) < limit {
			limit = len(p)
		}
		n, err := f.conn.Read(f.raw[:limit])

		out := p[:0]
		for _, b := range f.raw[:n] {
			switch f.state {
			case 0:
				if b == telnetIAC {
					f.state = 1
				} else {
					out = append(out, b)
				}
			case 1:
				switch b {
				case telnetIAC: // escaped 0xff data byte
					out = append(out, b)
					f.state = 0
				case telnetWILL, telnetWONT, telnetDO, telnetDONT:
					f.verb = b
					f.state = 2
				case telnetSB:
					f.state = 3
				default: // NOP, GA and friends
					f.state = 0
				}
			case 2:
				f.refuse(f.verb, b)
				f.state = 0
			case 3:
				if b == telnetIAC {
					f.state = 4
				}
			case 4:
				if b == telnetSE {
					f.state = 0
				} else {
					f.state = 3
				}
			}
		}

		if len(out) > 0 {
			return len(out), err
		}
		if err != nil {
			return 0, err
		}
		// The chunk was pure negotiation; read again.
	}
}

// refuse answers WILL with DONT and DO with WONT. WONT and DONT are already
// refusals and need no reply.
func (f *telnetFilter) refuse(verb, option byte) {
	var resp byte
	switch verb {
	case telnetDO:
		resp = telnetWONT
	case telnetWILL:
		resp = telnetDONT
	default:
		return
	}
	f.conn.Write([]byte{telnetIAC, resp, option})
}

var _ io.Reader = (*telnetFilter)(nil)
