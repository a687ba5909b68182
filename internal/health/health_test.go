package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ilmari/internal/channel/channeltest"
	"github.com/yairfalse/ilmari/internal/credentials"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/types"
)

const cpuCommand = `bash top -b -n1 | grep "Cpu(s)" | awk '{print $2 + $4 + $6}'`

func TestPingSucceeded(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"Success rate is 100 percent (5/5)", true},
		{"Success rate is 0 percent (0/5)", false},
		{"72 bytes from 198.100.100.2: icmp_seq=1 ttl=64 time=0.1 ms", true},
		{"3 packets transmitted, 3 received, 0% packet loss, time 2ms", true},
		{"3 packets transmitted, 0 received, 100% packet loss, time 2ms", false},
		{"% Network is unreachable", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PingSucceeded(tt.output), tt.output)
	}
}

func TestParseCPU(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{"bare float", " 12.5\n", 12.5, false},
		{"ios", "CPU utilization for five seconds: 7%/0%; one minute: 5%; five minutes: 4%", 7, false},
		{"junos idle", "    Idle                          97 percent", 3, false},
		{"garbage", "bash: top: command not found", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCPU(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestEvaluateCPU(t *testing.T) {
	assert.Equal(t, CPUOK, EvaluateCPU(69.9, 70))
	assert.Equal(t, CPUHigh, EvaluateCPU(70, 70))
}

func newChecker(dialer *channeltest.Dialer) *Checker {
	return &Checker{
		Credentials: credentials.NewStore([]types.Credential{
			{CanonicalID: "10.0.0.1", Alias: "R1", Username: "admin", Secret: "x"},
		}),
		Dialer:      dialer,
		PingTargets: []string{"198.100.100.2", "2003:db8::1"},
	}
}

func TestCheck_Healthy(t *testing.T) {
	dialer := channeltest.NewDialer().
		Respond("10.0.0.1", "ping 198.100.100.2 repeat 3", "Success rate is 100 percent").
		Respond("10.0.0.1", "ping ipv6 2003:db8::1 repeat 3", "Success rate is 100 percent").
		Respond("10.0.0.1", "show ip route", "C 10.0.0.0/24 is directly connected").
		Respond("10.0.0.1", "show ip ospf neighbor", "Neighbor ID  Pri State\n2.2.2.2  1  FULL").
		Respond("10.0.0.1", cpuCommand, "4.2\n")

	res, err := newChecker(dialer).Check(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "R1", res.Device)
	require.Len(t, res.Pings, 2)
	assert.Equal(t, "IPv6", res.Pings[1].Family)
	assert.True(t, res.PingsOK())
	assert.Equal(t, "ospf", res.NeighborSource)
	assert.Equal(t, CPUOK, res.CPU.Status)
	assert.InDelta(t, 4.2, res.CPU.Value, 0.001)
	assert.Equal(t, []string{"10.0.0.1"}, dialer.Closed())
}

func TestCheck_DegradedWithNeighborFallback(t *testing.T) {
	dialer := channeltest.NewDialer().
		Respond("10.0.0.1", "ping 198.100.100.2 repeat 3", "Success rate is 0 percent").
		Respond("10.0.0.1", "ping ipv6 2003:db8::1 repeat 3", "Success rate is 100 percent").
		Respond("10.0.0.1", "show ip route", "").
		Respond("10.0.0.1", "show ip ospf neighbor", "").
		Respond("10.0.0.1", "show lldp neighbors", "Port  Neighbor Device ID\nEt1   sw2").
		Respond("10.0.0.1", cpuCommand, "not a number")

	res, err := newChecker(dialer).Check(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, res.Status)
	assert.False(t, res.Pings[0].Success)
	assert.Equal(t, "cdp", res.NeighborSource, "eos answers the cdp slot with lldp")
	assert.Contains(t, res.Neighbors, "sw2")
	assert.Equal(t, CPUUnknown, res.CPU.Status)
	assert.NotEmpty(t, res.CPU.Error)
}

func TestCheck_ResolverSelectsVendorCommands(t *testing.T) {
	dialer := channeltest.NewDialer().
		Respond("10.0.0.1", "ping 198.100.100.2", "Success rate is 100 percent (5/5)").
		Respond("10.0.0.1", "ping ipv6 2003:db8::1", "Success rate is 100 percent (5/5)").
		Respond("10.0.0.1", "show ip route", "C 10.0.0.0/24 is directly connected").
		Respond("10.0.0.1", "show ip ospf neighbor", "").
		Respond("10.0.0.1", "show cdp neighbors", "Device ID  Local Intrfce\nsw2  Gig 0/1").
		Respond("10.0.0.1", "show processes cpu | include CPU utilization",
			"CPU utilization for five seconds: 7%/0%; one minute: 5%; five minutes: 4%")

	checker := newChecker(dialer)
	checker.Resolver = credentials.NewTypeResolver("arista_eos", map[string]string{"R1": "cisco_ios"}, nil)

	res, err := checker.Check(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "cdp", res.NeighborSource)
	assert.InDelta(t, 7, res.CPU.Value, 0.001)
}

func TestCheck_ConnectionFailure(t *testing.T) {
	dialer := channeltest.NewDialer().FailOpen("10.0.0.1", errors.New("i/o timeout"))

	res, err := newChecker(dialer).Check(context.Background(), "R1")
	require.Error(t, err)
	assert.Equal(t, opserrors.KindConnection, opserrors.KindOf(err))
	assert.Equal(t, StatusFailed, res.Status)
}

func TestCheck_UnknownDevice(t *testing.T) {
	_, err := newChecker(channeltest.NewDialer()).Check(context.Background(), "R9")
	assert.Equal(t, opserrors.KindCredentialNotFound, opserrors.KindOf(err))
}
