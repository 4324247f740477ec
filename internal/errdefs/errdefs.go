// Package errdefs defines the stable error classification used across
// termgate. Every error returned from the session, transport, executor and
// vault layers carries a Kind so that callers can decide how to react
// (surface, reconnect, refuse) without matching on library-specific error
// strings. The underlying cause stays attached for diagnostics and is
// reachable through errors.Unwrap.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error independent of the transport or library that
// produced it. Kinds are stable identifiers; they never change meaning.
type Kind string

const (
	// KindAuthentication means the device rejected the supplied credentials.
	KindAuthentication Kind = "authentication"
	// KindTransport covers connection refused/reset, an unavailable serial
	// device, and any other I/O failure on an established channel.
	KindTransport Kind = "transport"
	// KindTimeout means no prompt was observed within the connect or
	// command deadline.
	KindTimeout Kind = "timeout"
	// KindPolicy means the command matched the dangerous-command deny-list
	// and was never sent.
	KindPolicy Kind = "policy"
	// KindVault covers a missing or corrupt master key and failed
	// ciphertext integrity checks.
	KindVault Kind = "vault"
)

// Error tags an underlying cause with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Authentication wraps err as a credentials-rejected error.
func Authentication(op string, err error) error {
	return &Error{Kind: KindAuthentication, Op: op, Err: err}
}

// Transport wraps err as a transport-level I/O error.
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Timeout wraps err as a deadline-expiry error.
func Timeout(op string, err error) error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}

// Policy wraps err as a deny-list rejection.
func Policy(op string, err error) error {
	return &Error{Kind: KindPolicy, Op: op, Err: err}
}

// Vault wraps err as a credential-vault failure.
func Vault(op string, err error) error {
	return &Error{Kind: KindVault, Op: op, Err: err}
}

// GetKind returns the Kind carried by err, possibly through wrapping,
// or the empty Kind when err carries none.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

func IsAuthentication(err error) bool { return IsKind(err, KindAuthentication) }
func IsTransport(err error) bool      { return IsKind(err, KindTransport) }
func IsTimeout(err error) bool        { return IsKind(err, KindTimeout) }
func IsPolicy(err error) bool         { return IsKind(err, KindPolicy) }
func IsVault(err error) bool          { return IsKind(err, KindVault) }
