// Package transport establishes byte-level channels to network devices.
//
// Three variants share one contract: an encrypted remote shell (ssh), a
// plaintext remote terminal (telnet) and a local serial console. The
// variants differ only in how they connect and authenticate; prompt
// detection and command execution work against the Conn interface and
// never see which variant is underneath.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
)

// Kind selects the transport variant for a profile.
type Kind string

const (
	// SSH is the encrypted remote shell variant.
	SSH Kind = "ssh"
	// Telnet is the plaintext remote terminal variant with scripted login.
	Telnet Kind = "telnet"
	// Serial is the local serial console variant.
	Serial Kind = "serial"
)

// Valid reports whether k names a known transport variant.
func (k Kind) Valid() bool {
	switch k {
	case SSH, Telnet, Serial:
		return true
	}
	return false
}

// Conn is an open, authenticated channel to a device.
//
// A Conn is exclusively owned by one session; calls are not safe for
// concurrent use except Close, which may race with a pending read and
// releases the underlying resource exactly once.
type Conn interface {
	// Send writes p to the device.
	Send(p []byte) error

	// ReadUntil accumulates device output until match returns true for the
	// whole buffer, or until idle elapses with no new bytes arriving. On
	// idle expiry it returns the partial buffer together with a timeout
	// error; a nil match drains the stream until it goes quiet.
	ReadUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error)

	// Close releases the underlying socket or serial port. Idempotent.
	Close() error
}

// Options carries everything a variant needs to reach a device.
type Options struct {
	Kind Kind

	// Host and Port address the ssh and telnet variants.
	Host string
	Port int

	// Username and Password authenticate the ssh variant and drive the
	// telnet scripted login. The serial variant ignores both: physical
	// console access implies trust.
	Username string
	Password string

	// Device and BaudRate apply to the serial variant. Framing is fixed at
	// 8 data bits, no parity, one stop bit, no flow control.
	Device   string
	BaudRate int

	// PromptSuffixes let the telnet variant recognize the first shell
	// prompt after its scripted login.
	PromptSuffixes []string

	// ConnectTimeout bounds the whole connect-and-authenticate step.
	ConnectTimeout time.Duration
	// LoginTimeout bounds each individual step of the telnet scripted
	// login (username prompt, password prompt, first shell prompt).
	LoginTimeout time.Duration
}

// Dial opens a transport session to the device described by opts. On any
// failure the underlying resource is released before Dial returns.
func Dial(ctx context.Context, opts Options) (Conn, error) {
	switch opts.Kind {
	case SSH:
		return dialSSH(ctx, opts)
	case Telnet:
		return dialTelnet(ctx, opts)
	case Serial:
		return openSerial(ctx, opts)
	default:
		return nil, errdefs.Transport("dial", fmt.Errorf("unknown transport kind %q", opts.Kind))
	}
}
