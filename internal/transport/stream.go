package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
)

// stream is the engine shared by every transport variant. A single reader
// goroutine pumps the device into a channel; ReadUntil consumes from that
// channel with an idle deadline that resets whenever new bytes arrive. The
// variants only supply the writer, the reader and a release function.
type stream struct {
	w      io.Writer
	readCh chan []byte

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	release   func() error

	errMu   sync.Mutex
	readErr error
}

func newStream(w io.Writer, r io.Reader, release func() error) *stream {
	s := &stream{
		w:       w,
		readCh:  make(chan []byte, 16),
		done:    make(chan struct{}),
		release: release,
	}
	go s.pump(r)
	return s
}

// pump relays device output into readCh until the reader fails or the
// stream is closed. It owns readCh and closes it on exit.
func (s *stream) pump(r io.Reader) {
	defer close(s.readCh)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.readCh <- data:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.setReadErr(err)
			return
		}
	}
}

func (s *stream) setReadErr(err error) {
	s.errMu.Lock()
	if s.readErr == nil {
		s.readErr = err
	}
	s.errMu.Unlock()
}

func (s *stream) readError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

func (s *stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Send writes p to the device.
func (s *stream) Send(p []byte) error {
	if s.closed() {
		return errdefs.Transport("send", fmt.Errorf("connection closed"))
	}
	if _, err := s.w.Write(p); err != nil {
		return errdefs.Transport("send", err)
	}
	return nil
}

// ReadUntil accumulates output until match(buf) is true or idle elapses
// with no new bytes. The partial buffer is returned alongside any error.
func (s *stream) ReadUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error) {
	if idle <= 0 {
		idle = time.Second
	}

	var buf bytes.Buffer
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case data, ok := <-s.readCh:
			if !ok {
				if s.closed() {
					return buf.Bytes(), errdefs.Transport("read", fmt.Errorf("connection closed"))
				}
				err := s.readError()
				if err == nil || err == io.EOF {
					err = fmt.Errorf("connection closed by device")
				}
				return buf.Bytes(), errdefs.Transport("read", err)
			}
			buf.Write(data)
			if match != nil && match(buf.Bytes()) {
				return buf.Bytes(), nil
			}
			// New bytes arrived: reset the idle deadline.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)

		case <-timer.C:
			return buf.Bytes(), errdefs.Timeout("read", fmt.Errorf("no new bytes for %s", idle))

		case <-ctx.Done():
			return buf.Bytes(), errdefs.Timeout("read", ctx.Err())
		}
	}
}

// Close releases the underlying resource exactly once. Subsequent calls
// return the first result.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.release()
	})
	return s.closeErr
}
