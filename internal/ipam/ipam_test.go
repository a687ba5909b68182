package ipam

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ilmari/internal/channel/channeltest"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/pkg/types"
)

func TestParseBrief(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []Address
	}{
		{
			name:   "simple table",
			output: "Interface IP-Address\nEthernet1 10.0.0.1\nEthernet2 unassigned",
			want:   []Address{{Interface: "Ethernet1", IP: "10.0.0.1", Version: IPv4}},
		},
		{
			name: "eos table with prefixes",
			output: `                                                                       Address
Interface         IP Address            Status     Protocol         MTU    Owner
----------------- --------------------- ---------- ---------------- ------ -------
Ethernet1         10.0.12.1/31          up         up               1500
Loopback0         1.1.1.1/32            up         up               65535
Management1       unassigned            up         up               1500
`,
			want: []Address{
				{Interface: "Ethernet1", IP: "10.0.12.1/31", Version: IPv4},
				{Interface: "Loopback0", IP: "1.1.1.1/32", Version: IPv4},
			},
		},
		{
			name:   "ipv6",
			output: "Interface IP-Address\nEthernet1 2001:db8::1\nEthernet2 unassigned",
			want:   []Address{{Interface: "Ethernet1", IP: "2001:db8::1", Version: IPv6}},
		},
		{
			name: "ios continuation rows",
			output: `GigabitEthernet0/0     [up/up]
    FE80::1
    2001:DB8:0:1::1
GigabitEthernet0/1     [administratively down/down]
    unassigned
`,
			want: []Address{
				{Interface: "GigabitEthernet0/0", IP: "FE80::1", Version: IPv6},
				{Interface: "GigabitEthernet0/0", IP: "2001:DB8:0:1::1", Version: IPv6},
			},
		},
		{
			name:   "empty",
			output: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBrief(tt.output))
		})
	}
}

func TestParseLoopbacks(t *testing.T) {
	assert.Equal(t, []string{"Loopback0", "Loopback1"}, ParseLoopbacks("Loopback0\nLoopback1"))
	assert.Equal(t, []string{"Lo0"}, ParseLoopbacks("Interface  Status  Protocol  Description\nLo0   up   up   router-id\n"))
	assert.Empty(t, ParseLoopbacks("\n\n"))
}

type recorder struct {
	entries []journal.Entry
}

func (r *recorder) Append(ctx context.Context, e journal.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestCollect(t *testing.T) {
	dialer := channeltest.NewDialer().
		Respond("10.0.0.1", "show ip interface brief", "Interface IP-Address\nEthernet1 10.0.0.1\nEthernet2 unassigned").
		Respond("10.0.0.1", "show ipv6 interface brief", "Interface IP-Address\nEthernet1 2001:db8::1\nEthernet2 unassigned").
		Respond("10.0.0.1", "show interfaces description | include Loopback", "Loopback0\nLoopback1").
		FailOpen("10.0.0.2", errors.New("connection refused"))

	rec := &recorder{}
	c := &Collector{Dialer: dialer, Journal: rec}
	path := filepath.Join(t.TempDir(), "dynamic_ipam.csv")

	inv, err := c.Collect(context.Background(), []types.Credential{
		{CanonicalID: "10.0.0.1", Alias: "router1", Username: "admin", Secret: "pass123"},
		{CanonicalID: "10.0.0.2", Alias: "router2", Username: "admin", Secret: "pass456"},
	}, path)
	require.NoError(t, err)

	want := []Record{
		{Hostname: "router1", Device: "10.0.0.1", Interface: "Ethernet1", Address: "10.0.0.1", Version: IPv4},
		{Hostname: "router1", Device: "10.0.0.1", Interface: "Ethernet1", Address: "2001:db8::1", Version: IPv6},
		{Hostname: "router1", Device: "10.0.0.1", Interface: "Loopback0", Address: LoopbackAddress, Version: NoVersion},
		{Hostname: "router1", Device: "10.0.0.1", Interface: "Loopback1", Address: LoopbackAddress, Version: NoVersion},
	}
	assert.Equal(t, want, inv.Records)
	require.Len(t, inv.Failures, 1)
	assert.Equal(t, "router2", inv.Failures[0].Device)
	assert.Equal(t, opserrors.KindConnection, opserrors.KindOf(inv.Failures[0].Err))
	assert.Equal(t, path, inv.Written)

	read, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, want, read)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, 4, rec.entries[0].Changes)
	assert.Equal(t, "failed", rec.entries[1].Status)
}

func TestCollect_OptionalCommandsMayFail(t *testing.T) {
	dialer := channeltest.NewDialer().
		Respond("10.0.0.1", "show ip interface brief", "Interface IP-Address\nEthernet1 10.0.0.1")

	c := &Collector{Dialer: dialer}
	inv, err := c.Collect(context.Background(), []types.Credential{
		{CanonicalID: "10.0.0.1", Username: "admin", Secret: "x"},
	}, filepath.Join(t.TempDir(), "ipam.csv"))
	require.NoError(t, err)

	assert.Empty(t, inv.Failures)
	assert.Equal(t, []Record{
		{Hostname: "N/A", Device: "10.0.0.1", Interface: "Ethernet1", Address: "10.0.0.1", Version: IPv4},
	}, inv.Records)
	assert.Equal(t, []string{"10.0.0.1"}, dialer.Closed())
}

func TestReadCSV_Missing(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Equal(t, opserrors.KindInput, opserrors.KindOf(err))
}

func TestWriteCSV_RequiresPath(t *testing.T) {
	err := WriteCSV(" ", nil)
	assert.Equal(t, opserrors.KindConfiguration, opserrors.KindOf(err))
}

func TestFilterDevice(t *testing.T) {
	records := []Record{
		{Hostname: "core-r1", Device: "10.0.0.1", Interface: "Ethernet1", Address: "10.0.0.1", Version: IPv4},
		{Hostname: "N/A", Device: "10.0.0.2", Interface: "Loopback0", Address: LoopbackAddress, Version: NoVersion},
	}

	assert.Len(t, FilterDevice(records, "CORE-R1"), 1)
	assert.Len(t, FilterDevice(records, "10.0.0.2"), 1)
	assert.Empty(t, FilterDevice(records, "10.0.0.3"))
}
