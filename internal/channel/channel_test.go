package channel_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/channel/channeltest"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/types"
)

func testDevice() types.Device {
	return types.Device{
		CanonicalID: "10.0.0.1",
		DisplayName: "R1",
		Type:        channel.TypeAristaEOS,
		Credential:  types.Credential{CanonicalID: "10.0.0.1", Alias: "R1", Username: "admin", Secret: "x"},
	}
}

func TestConnectAndExec(t *testing.T) {
	dialer := channeltest.NewDialer().Respond("10.0.0.1", "show running-config", "hostname R1\n")
	device := testDevice()

	session, err := channel.Connect(context.Background(), dialer, device)
	require.NoError(t, err)

	out, err := channel.Exec(context.Background(), session, device, "show running-config")
	require.NoError(t, err)
	assert.Equal(t, "hostname R1\n", out)

	require.NoError(t, session.Close())
	assert.Equal(t, []string{"10.0.0.1"}, dialer.Closed())
}

func TestConnect_WrapsFailure(t *testing.T) {
	dialer := channeltest.NewDialer().FailOpen("10.0.0.1", errors.New("dial tcp 10.0.0.1:22: i/o timeout"))

	_, err := channel.Connect(context.Background(), dialer, testDevice())
	require.Error(t, err)
	assert.ErrorIs(t, err, opserrors.ErrConnection)

	var opsErr *opserrors.OpsError
	require.True(t, errors.As(err, &opsErr))
	assert.Equal(t, "R1", opsErr.Device)
	assert.Equal(t, "connecting", opsErr.Phase)
	assert.Contains(t, opsErr.Solutions, "Raise ssh.timeout in config.yaml")
}

func TestConnect_RejectsIncompleteCredential(t *testing.T) {
	device := testDevice()
	device.Credential.Secret = ""

	dialer := channeltest.NewDialer()
	_, err := channel.Connect(context.Background(), dialer, device)
	assert.Equal(t, opserrors.KindInput, opserrors.KindOf(err))
	assert.Empty(t, dialer.Opened())
}

func TestExec_WrapsFailure(t *testing.T) {
	dialer := channeltest.NewDialer().FailRun("10.0.0.1", "show ip route", errors.New("channel closed"))
	device := testDevice()

	session, err := channel.Connect(context.Background(), dialer, device)
	require.NoError(t, err)
	defer session.Close()

	_, err = channel.Exec(context.Background(), session, device, "show ip route")
	assert.ErrorIs(t, err, opserrors.ErrCommand)
	assert.Contains(t, err.Error(), `command "show ip route" failed`)
}

func TestWithSession_ClosesOnEveryPath(t *testing.T) {
	dialer := channeltest.NewDialer().Respond("10.0.0.1", "show version", "EOS 4.30")
	device := testDevice()

	var out string
	err := channel.WithSession(context.Background(), dialer, device, func(s channel.Session) error {
		var err error
		out, err = channel.Exec(context.Background(), s, device, "show version")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "EOS 4.30", out)

	boom := errors.New("boom")
	err = channel.WithSession(context.Background(), dialer, device, func(channel.Session) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.1"}, dialer.Closed())
}

func TestParseHostname(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{output: "R1#", want: "R1"},
		{output: "sw1>", want: "sw1"},
		{output: "Hostname: leaf1\nFQDN:     leaf1.lab.local\n", want: "leaf1"},
		{output: "\nhostname core-r2\n", want: "core-r2"},
		{output: "host-name mx1;", want: "mx1"},
		{output: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, channel.ParseHostname(tt.output))
		})
	}
}

func TestNewSSHDialer_HostKeyPolicy(t *testing.T) {
	_, err := channel.NewSSHDialer(channel.SSHOptions{HostKeyPolicy: "trust-me"})
	assert.Error(t, err)

	_, err = channel.NewSSHDialer(channel.SSHOptions{
		HostKeyPolicy: channel.HostKeyKnownHosts,
		KnownHosts:    filepath.Join(t.TempDir(), "missing"),
	})
	assert.Error(t, err)

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))
	_, err = channel.NewSSHDialer(channel.SSHOptions{HostKeyPolicy: channel.HostKeyKnownHosts, KnownHosts: knownHosts})
	assert.NoError(t, err)

	_, err = channel.NewSSHDialer(channel.SSHOptions{})
	assert.NoError(t, err)
}

func TestSSHDialer_OpenRefused(t *testing.T) {
	// grab a free port and release it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	dialer, err := channel.NewSSHDialer(channel.SSHOptions{Port: port, Timeout: 2 * time.Second})
	require.NoError(t, err)

	_, err = dialer.Open(context.Background(), "127.0.0.1", "admin", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}
