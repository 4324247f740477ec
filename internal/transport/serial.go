package transport

import (
	"context"

	"go.bug.st/serial"

	"github.com/termgate/termgate/internal/errdefs"
)

// defaultBaudRate applies when a serial profile does not set one.
const defaultBaudRate = 9600

// serialOpen is swapped out in tests to avoid touching real hardware.
var serialOpen = func(device string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(device, mode)
}

// openSerial opens the local serial console variant. Framing is fixed at
// 8 data bits, no parity, one stop bit, no flow control; only the baud rate
// comes from the profile. There is no authentication step, physical console
// access implies trust.
func openSerial(_ context.Context, opts Options) (Conn, error) {
	baud := opts.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serialOpen(opts.Device, mode)
	if err != nil {
		return nil, errdefs.Transport("open serial device "+opts.Device, err)
	}

	c := newStream(port, port, port.Close)
	// Wake the console so the handshake has a prompt to find.
	if err := c.Send([]byte("\r\n")); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
