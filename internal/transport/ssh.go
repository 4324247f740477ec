package transport

import (
	"context"
	"net"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/termgate/termgate/internal/errdefs"
)

// dialSSH opens the encrypted remote shell variant: TCP dial, SSH handshake
// with password authentication, then an interactive shell on a PTY. Host
// keys are accepted on first contact without verification; network devices
// are typically reached before any key distribution exists.
func dialSSH(ctx context.Context, opts Options) (Conn, error) {
	cfg := &ssh.ClientConfig{
		User: opts.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(opts.Password),
			// Some device SSH servers only offer keyboard-interactive;
			// answer every challenge with the password.
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = opts.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         opts.ConnectTimeout,
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errdefs.Transport("dial "+addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		netConn.Close()
		if isAuthFailure(err) {
			return nil, errdefs.Authentication("ssh login "+addr, err)
		}
		return nil, errdefs.Transport("ssh handshake "+addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, errdefs.Transport("create ssh session", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 24, 80, modes); err != nil {
		session.Close()
		client.Close()
		return nil, errdefs.Transport("request pty", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, errdefs.Transport("stdin pipe", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, errdefs.Transport("stdout pipe", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, errdefs.Transport("start shell", err)
	}

	release := func() error {
		// Session first so the remote shell sees EOF, then the client to
		// drop the TCP connection.
		session.Close()
		return client.Close()
	}
	return newStream(stdin, stdout, release), nil
}

// isAuthFailure recognizes a rejected login in the handshake error.
// x/crypto/ssh does not export a typed error for authentication failure.
func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied")
}
