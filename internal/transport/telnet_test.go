package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
)

// telnetDeviceConfig describes the fake telnet device the test server plays.
type telnetDeviceConfig struct {
	user      string
	password  string
	prompt    string
	replies   map[string]string
	negotiate bool // offer telnet options before the login banner
	silent    bool // accept and never write anything
	noLogin   bool // print the prompt immediately, no credential dialog
}

// telnetDevice is an in-process telnet server running the classic scripted
// login dialog: "Username:", "Password:", then the shell prompt. It strips
// inbound IAC sequences the same way a device NVT would and records them so
// tests can assert the client refused every offered option.
type telnetDevice struct {
	addr    string
	cleanup func()

	mu       sync.Mutex
	lines    []string
	iacBytes []byte
}

func (d *telnetDevice) receivedLines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func (d *telnetDevice) receivedIAC() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.iacBytes...)
}

func startDeviceTelnet(t *testing.T, cfg telnetDeviceConfig) *telnetDevice {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &telnetDevice{addr: listener.Addr().String()}

	var conns sync.Map
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns.Store(conn, struct{}{})
			go d.serve(conn, cfg)
		}
	}()

	d.cleanup = func() {
		listener.Close()
		conns.Range(func(key, _ interface{}) bool {
			key.(net.Conn).Close()
			return true
		})
		<-done
	}
	return d
}

func (d *telnetDevice) serve(conn net.Conn, cfg telnetDeviceConfig) {
	defer conn.Close()

	if cfg.silent {
		// Hold the connection open without a single byte.
		io.Copy(io.Discard, conn)
		return
	}

	if cfg.negotiate {
		// Offer terminal-type and echo; a well-behaved plain client
		// refuses both.
		conn.Write([]byte{telnetIAC, telnetDO, 24, telnetIAC, telnetWILL, 1})
	}

	r := bufio.NewReader(conn)

	if !cfg.noLogin {
		conn.Write([]byte("\r\nUser Access Verification\r\n\r\nUsername: "))
		user, err := d.readLine(r)
		if err != nil {
			return
		}
		conn.Write([]byte("Password: "))
		pass, err := d.readLine(r)
		if err != nil {
			return
		}
		if user != cfg.user || pass != cfg.password {
			conn.Write([]byte("\r\n% Login invalid\r\n\r\nUsername: "))
			return
		}
	}
	conn.Write([]byte("\r\n" + cfg.prompt))

	// Post-login CLI loop: echo each line and answer from the script.
	for {
		line, err := d.readLine(r)
		if err != nil {
			return
		}
		conn.Write([]byte(line + "\r\n"))
		if reply, ok := cfg.replies[line]; ok {
			conn.Write([]byte(reply + "\r\n"))
		}
		conn.Write([]byte(cfg.prompt))
	}
}

// readLine reads one client line, setting aside IAC sequences the way the
// device side of an NVT would.
func (d *telnetDevice) readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == telnetIAC {
			verb, err := r.ReadByte()
			if err != nil {
				return "", err
			}
			opt, err := r.ReadByte()
			if err != nil {
				return "", err
			}
			d.mu.Lock()
			d.iacBytes = append(d.iacBytes, b, verb, opt)
			d.mu.Unlock()
			continue
		}
		if b == '\n' {
			s := strings.TrimRight(string(line), "\r")
			d.mu.Lock()
			d.lines = append(d.lines, s)
			d.mu.Unlock()
			return s, nil
		}
		line = append(line, b)
	}
}

func telnetDeviceOptions(t *testing.T, addr string) Options {
	host, port := parseHostPort(t, addr)
	return Options{
		Kind:           Telnet,
		Host:           host,
		Port:           port,
		Username:       "admin",
		Password:       "secret",
		PromptSuffixes: []string{"#", ">"},
		ConnectTimeout: 5 * time.Second,
		LoginTimeout:   2 * time.Second,
	}
}

func TestDialTelnetScriptedLogin(t *testing.T) {
	d := startDeviceTelnet(t, telnetDeviceConfig{
		user:      "admin",
		password:  "secret",
		prompt:    "switch>",
		negotiate: true,
		replies:   map[string]string{"show version": "Comware Software, Version 7.1"},
	})
	defer d.cleanup()

	conn, err := Dial(context.Background(), telnetDeviceOptions(t, d.addr))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	lines := d.receivedLines()
	if len(lines) != 2 || lines[0] != "admin" || lines[1] != "secret" {
		t.Errorf("login dialog = %v, want [admin secret]", lines)
	}

	// Every offered option was refused: DO 24 → WONT 24, WILL 1 → DONT 1.
	want := []byte{telnetIAC, telnetWONT, 24, telnetIAC, telnetDONT, 1}
	if got := d.receivedIAC(); !bytes.Equal(got, want) {
		t.Errorf("option responses = %v, want %v", got, want)
	}

	// The logged-in channel carries commands with IAC handling invisible.
	if err := conn.Send([]byte("show version\n")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	buf, err := conn.ReadUntil(context.Background(), func(b []byte) bool {
		return bytes.HasSuffix(bytes.TrimRight(b, " "), []byte(">"))
	}, 2*time.Second)
	if err != nil {
		t.Fatalf("ReadUntil() error: %v", err)
	}
	if !bytes.Contains(buf, []byte("Comware Software, Version 7.1")) {
		t.Errorf("output missing scripted reply: %q", buf)
	}
}

func TestDialTelnetWrongPassword(t *testing.T) {
	d := startDeviceTelnet(t, telnetDeviceConfig{user: "admin", password: "secret", prompt: "switch>"})
	defer d.cleanup()

	opts := telnetDeviceOptions(t, d.addr)
	opts.Password = "nope"

	_, err := Dial(context.Background(), opts)
	if err == nil {
		t.Fatal("Dial() succeeded with wrong password")
	}
	if !errdefs.IsAuthentication(err) {
		t.Errorf("error kind = %q, want authentication: %v", errdefs.GetKind(err), err)
	}
}

func TestDialTelnetLoginStepTimeout(t *testing.T) {
	d := startDeviceTelnet(t, telnetDeviceConfig{silent: true})
	defer d.cleanup()

	opts := telnetDeviceOptions(t, d.addr)
	opts.LoginTimeout = 150 * time.Millisecond

	start := time.Now()
	_, err := Dial(context.Background(), opts)
	elapsed := time.Since(start)

	if !errdefs.IsTimeout(err) {
		t.Fatalf("error kind = %q, want timeout: %v", errdefs.GetKind(err), err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Dial() blocked for %v, want roughly the 150ms login sub-timeout", elapsed)
	}
}

func TestDialTelnetNoLoginDialog(t *testing.T) {
	// Console servers patch straight through to a shell with no credential
	// dialog; empty username and password skip the scripted steps.
	d := startDeviceTelnet(t, telnetDeviceConfig{noLogin: true, prompt: "switch>"})
	defer d.cleanup()

	opts := telnetDeviceOptions(t, d.addr)
	opts.Username = ""
	opts.Password = ""

	conn, err := Dial(context.Background(), opts)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	conn.Close()

	if lines := d.receivedLines(); len(lines) != 0 {
		t.Errorf("client sent credentials to a device without a login dialog: %v", lines)
	}
}

func TestDialTelnetConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	opts := telnetDeviceOptions(t, addr)
	opts.ConnectTimeout = 2 * time.Second

	_, err = Dial(context.Background(), opts)
	if !errdefs.IsTransport(err) {
		t.Errorf("error kind = %q, want transport: %v", errdefs.GetKind(err), err)
	}
}

func TestTelnetFilter(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	payload := []byte{
		telnetIAC, telnetDO, 24, // option offer → expect WONT 24
		'a', 'b',
		telnetIAC, telnetIAC, // escaped 0xff data byte
		telnetIAC, telnetSB, 31, 0, 80, telnetIAC, telnetSE, // subnegotiation, swallowed
		'c', 'd',
		telnetIAC, telnetWILL, 1, // option offer → expect DONT 1
		'!',
	}

	type serverResult struct {
		resp []byte
		err  error
	}
	resCh := make(chan serverResult, 1)
	go func() {
		if _, err := serverSide.Write(payload); err != nil {
			resCh <- serverResult{nil, err}
			return
		}
		resp := make([]byte, 6)
		_, err := io.ReadFull(serverSide, resp)
		resCh <- serverResult{resp, err}
	}()

	f := &telnetFilter{conn: clientSide}
	buf := make([]byte, 64)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got, want := string(buf[:n]), "ab\xffcd!"; got != want {
		t.Errorf("filtered data = %q, want %q", got, want)
	}

	res := <-resCh
	if res.err != nil {
		t.Fatalf("server read error: %v", res.err)
	}
	want := []byte{telnetIAC, telnetWONT, 24, telnetIAC, telnetDONT, 1}
	if !bytes.Equal(res.resp, want) {
		t.Errorf("refusals = %v, want %v", res.resp, want)
	}
}

func TestTelnetFilterPureNegotiationChunk(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	go func() {
		// First chunk carries only negotiation; the filter must keep
		// reading rather than return zero bytes.
		serverSide.Write([]byte{telnetIAC, telnetDO, 24})
		resp := make([]byte, 3)
		io.ReadFull(serverSide, resp)
		serverSide.Write([]byte("data"))
	}()

	f := &telnetFilter{conn: clientSide}
	buf := make([]byte, 16)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(buf[:n]) != "data" {
		t.Errorf("Read() = %q, want %q", buf[:n], "data")
	}
}
