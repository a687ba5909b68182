package channel

import (
	"context"
	"fmt"
	"strings"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/types"
)

// Session is an open command channel to one device.
// Sessions are used by a single goroutine and closed exactly once.
type Session interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens command channels.
type Dialer interface {
	Open(ctx context.Context, host, username, secret string) (Session, error)
}

// Connect opens a session to device, reporting failures as ConnectionFailed.
func Connect(ctx context.Context, dialer Dialer, device types.Device) (Session, error) {
	cred := device.Credential
	if err := cred.Validate(); err != nil {
		return nil, opserrors.InputError("%v", err).WithDevice(device.Name())
	}

	session, err := dialer.Open(ctx, device.Host(), cred.Username, cred.Secret)
	if err != nil {
		return nil, opserrors.ConnectionFailed(device.Name(), err)
	}
	return session, nil
}

// WithSession opens a session to device, hands it to fn and closes it
// afterwards. A failed close is reported only when fn succeeded.
func WithSession(ctx context.Context, dialer Dialer, device types.Device, fn func(Session) error) (err error) {
	session, err := Connect(ctx, dialer, device)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing session to %s: %w", device.Name(), cerr)
		}
	}()

	return fn(session)
}

// Exec runs one command on session, reporting failures as CommandFailed.
func Exec(ctx context.Context, session Session, device types.Device, command string) (string, error) {
	out, err := session.Run(ctx, command)
	if err != nil {
		return "", opserrors.CommandFailed(device.Name(), command, err)
	}
	return out, nil
}

// ParseHostname extracts a device hostname from the output of the prompt
// command or from a raw CLI prompt such as "R1#" or "sw1>".
func ParseHostname(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		for _, prefix := range []string{"hostname:", "hostname", "host-name"} {
			if strings.HasPrefix(lower, prefix) {
				line = strings.TrimSpace(line[len(prefix):])
				break
			}
		}

		line = strings.NewReplacer("#", "", ">", "", ";", "").Replace(line)
		return strings.TrimSpace(line)
	}
	return ""
}
