package channel

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Host key policies
const (
	HostKeyInsecure   = "insecure"
	HostKeyKnownHosts = "known_hosts"
)

// SSHOptions configures the SSH dialer
type SSHOptions struct {
	Port          int
	Timeout       time.Duration
	HostKeyPolicy string
	KnownHosts    string
}

// SSHDialer opens command channels over SSH
type SSHDialer struct {
	port            int
	timeout         time.Duration
	hostKeyCallback ssh.HostKeyCallback
}

// NewSSHDialer creates a dialer for the given options
func NewSSHDialer(opts SSHOptions) (*SSHDialer, error) {
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	var callback ssh.HostKeyCallback
	switch opts.HostKeyPolicy {
	case "", HostKeyInsecure:
		callback = ssh.InsecureIgnoreHostKey()
	case HostKeyKnownHosts:
		cb, err := knownhosts.New(opts.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", opts.KnownHosts, err)
		}
		callback = cb
	default:
		return nil, fmt.Errorf("unsupported host key policy: %s", opts.HostKeyPolicy)
	}

	return &SSHDialer{
		port:            opts.Port,
		timeout:         opts.Timeout,
		hostKeyCallback: callback,
	}, nil
}

// Open connects and authenticates to host
func (d *SSHDialer) Open(ctx context.Context, host, username, secret string) (Session, error) {
	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(secret),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = secret
				}
				return answers, nil
			}),
		},
		HostKeyCallback: d.hostKeyCallback,
		Timeout:         d.timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(d.port))

	dialCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// bound the handshake by the same timeout as the dial
	if err := conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	conn.SetDeadline(time.Time{})

	return &sshSession{
		client:  ssh.NewClient(clientConn, chans, reqs),
		timeout: d.timeout,
	}, nil
}

// sshSession runs each command in its own SSH session on a shared connection
type sshSession struct {
	client  *ssh.Client
	timeout time.Duration
}

// Run executes command. Multi-line commands are fed to an interactive shell
// one line at a time; single commands use an exec request.
func (s *sshSession) Run(ctx context.Context, command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output

	multiLine := strings.Contains(command, "\n")
	if multiLine {
		if err := session.RequestPty("vt100", 80, 40, ssh.TerminalModes{ssh.ECHO: 0}); err != nil {
			return "", fmt.Errorf("failed to request PTY: %w", err)
		}
		session.Stdin = strings.NewReader(command + "\nexit\n")
	}

	done := make(chan error, 1)
	go func() {
		if multiLine {
			if err := session.Shell(); err != nil {
				done <- err
				return
			}
			done <- session.Wait()
			return
		}
		done <- session.Run(command)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			if _, ok := err.(*ssh.ExitMissingError); ok && multiLine {
				return output.String(), nil
			}
			return output.String(), err
		}
		return output.String(), nil
	case <-timer.C:
		session.Close()
		return "", fmt.Errorf("command timeout after %s", s.timeout)
	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}
