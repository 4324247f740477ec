package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/termgate/termgate/internal/errdefs"
)

// fakePort satisfies serial.Port without touching hardware. Reads block on a
// script channel, writes are recorded, and Close unblocks any pending read.
type fakePort struct {
	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closes   int

	readCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{readCh: make(chan []byte, 8), done: make(chan struct{})}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case data := <-p.readCh:
		return copy(b, data), nil
	case <-p.done:
		return 0, io.EOF
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *fakePort) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *fakePort) writtenBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *fakePort) SetMode(*serial.Mode) error         { return nil }
func (p *fakePort) Drain() error                       { return nil }
func (p *fakePort) ResetInputBuffer() error            { return nil }
func (p *fakePort) ResetOutputBuffer() error           { return nil }
func (p *fakePort) SetDTR(bool) error                  { return nil }
func (p *fakePort) SetRTS(bool) error                  { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (p *fakePort) Break(time.Duration) error          { return nil }

func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// swapSerialOpen redirects the package-level opener for one test.
func swapSerialOpen(t *testing.T, fn func(string, *serial.Mode) (serial.Port, error)) {
	t.Helper()
	orig := serialOpen
	serialOpen = fn
	t.Cleanup(func() { serialOpen = orig })
}

func TestOpenSerialLineConfiguration(t *testing.T) {
	port := newFakePort()
	var gotDevice string
	var gotMode serial.Mode
	swapSerialOpen(t, func(device string, mode *serial.Mode) (serial.Port, error) {
		gotDevice = device
		gotMode = *mode
		return port, nil
	})

	conn, err := Dial(context.Background(), Options{
		Kind:     Serial,
		Device:   "/dev/ttyUSB0",
		BaudRate: 115200,
	})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	if gotDevice != "/dev/ttyUSB0" {
		t.Errorf("device = %q, want /dev/ttyUSB0", gotDevice)
	}
	want := serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if gotMode != want {
		t.Errorf("mode = %+v, want 115200 8N1", gotMode)
	}

	// The console is woken so the handshake has a prompt to find.
	if got := port.writtenBytes(); !bytes.Equal(got, []byte("\r\n")) {
		t.Errorf("wake bytes = %q, want \\r\\n", got)
	}
}

func TestOpenSerialDefaultBaudRate(t *testing.T) {
	var gotMode serial.Mode
	swapSerialOpen(t, func(_ string, mode *serial.Mode) (serial.Port, error) {
		gotMode = *mode
		return newFakePort(), nil
	})

	conn, err := Dial(context.Background(), Options{Kind: Serial, Device: "/dev/ttyS0"})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	conn.Close()

	if gotMode.BaudRate != defaultBaudRate {
		t.Errorf("baud rate = %d, want default %d", gotMode.BaudRate, defaultBaudRate)
	}
}

func TestOpenSerialReadWrite(t *testing.T) {
	port := newFakePort()
	swapSerialOpen(t, func(string, *serial.Mode) (serial.Port, error) {
		return port, nil
	})

	conn, err := Dial(context.Background(), Options{Kind: Serial, Device: "/dev/ttyUSB0"})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	port.readCh <- []byte("Router con0 is now available\r\nRouter>")
	buf, err := conn.ReadUntil(context.Background(), func(b []byte) bool {
		return bytes.HasSuffix(b, []byte(">"))
	}, 2*time.Second)
	if err != nil {
		t.Fatalf("ReadUntil() error: %v", err)
	}
	if !bytes.Contains(buf, []byte("con0 is now available")) {
		t.Errorf("console output lost: %q", buf)
	}

	if err := conn.Send([]byte("show version\n")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got := port.writtenBytes(); !bytes.HasSuffix(got, []byte("show version\n")) {
		t.Errorf("written = %q, want trailing command", got)
	}
}

func TestOpenSerialDeviceUnavailable(t *testing.T) {
	swapSerialOpen(t, func(string, *serial.Mode) (serial.Port, error) {
		return nil, fmt.Errorf("no such device")
	})

	_, err := Dial(context.Background(), Options{Kind: Serial, Device: "/dev/ttyUSB9"})
	if !errdefs.IsTransport(err) {
		t.Errorf("error kind = %q, want transport: %v", errdefs.GetKind(err), err)
	}
}

func TestOpenSerialWakeFailureReleasesPort(t *testing.T) {
	port := newFakePort()
	port.writeErr = fmt.Errorf("input/output error")
	swapSerialOpen(t, func(string, *serial.Mode) (serial.Port, error) {
		return port, nil
	})

	_, err := Dial(context.Background(), Options{Kind: Serial, Device: "/dev/ttyUSB0"})
	if !errdefs.IsTransport(err) {
		t.Fatalf("error kind = %q, want transport: %v", errdefs.GetKind(err), err)
	}
	if port.closeCount() != 1 {
		t.Errorf("close count = %d, want exactly 1", port.closeCount())
	}
}

func TestSerialCloseReleasesPortOnce(t *testing.T) {
	port := newFakePort()
	swapSerialOpen(t, func(string, *serial.Mode) (serial.Port, error) {
		return port, nil
	})

	conn, err := Dial(context.Background(), Options{Kind: Serial, Device: "/dev/ttyUSB0"})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}

	conn.Close()
	conn.Close()
	if port.closeCount() != 1 {
		t.Errorf("close count = %d, want exactly 1", port.closeCount())
	}
}
