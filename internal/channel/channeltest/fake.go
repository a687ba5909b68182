// Package channeltest provides a scripted command channel for tests.
package channeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/ilmari/internal/channel"
)

// Dialer is a scripted channel.Dialer. Responses are keyed by host, then command.
type Dialer struct {
	mu sync.Mutex

	// OpenErr fails Open for the given host
	OpenErr map[string]error
	// Responses maps host -> command -> output
	Responses map[string]map[string]string
	// RunErr fails Run for host and command
	RunErr map[string]map[string]error

	opened   []string
	closed   []string
	commands map[string][]string
}

// NewDialer returns an empty scripted dialer
func NewDialer() *Dialer {
	return &Dialer{
		OpenErr:   map[string]error{},
		Responses: map[string]map[string]string{},
		RunErr:    map[string]map[string]error{},
		commands:  map[string][]string{},
	}
}

// Respond scripts the output of command on host
func (d *Dialer) Respond(host, command, output string) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Responses[host] == nil {
		d.Responses[host] = map[string]string{}
	}
	d.Responses[host][command] = output
	return d
}

// FailRun scripts a failure of command on host
func (d *Dialer) FailRun(host, command string, err error) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RunErr[host] == nil {
		d.RunErr[host] = map[string]error{}
	}
	d.RunErr[host][command] = err
	return d
}

// FailOpen scripts a connection failure for host
func (d *Dialer) FailOpen(host string, err error) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenErr[host] = err
	return d
}

// Open implements channel.Dialer
func (d *Dialer) Open(ctx context.Context, host, username, secret string) (channel.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opened = append(d.opened, host)
	if err := d.OpenErr[host]; err != nil {
		return nil, err
	}
	return &session{dialer: d, host: host}, nil
}

// Opened returns the hosts Open was called for, in order
func (d *Dialer) Opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opened...)
}

// Closed returns the hosts whose sessions were closed, in order
func (d *Dialer) Closed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.closed...)
}

// Commands returns the commands run on host, in order
func (d *Dialer) Commands(host string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands[host]...)
}

type session struct {
	dialer *Dialer
	host   string
	closed bool
}

func (s *session) Run(ctx context.Context, command string) (string, error) {
	d := s.dialer
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("session to %s already closed", s.host)
	}
	d.commands[s.host] = append(d.commands[s.host], command)

	if err := d.RunErr[s.host][command]; err != nil {
		return "", err
	}
	out, ok := d.Responses[s.host][command]
	if !ok {
		return "", fmt.Errorf("%% Invalid input: %s", command)
	}
	return out, nil
}

func (s *session) Close() error {
	d := s.dialer
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session to %s closed twice", s.host)
	}
	s.closed = true
	d.closed = append(d.closed, s.host)
	return nil
}
