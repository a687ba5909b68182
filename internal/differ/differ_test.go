package differ

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ilmari/pkg/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "comments and blanks dropped",
			raw:  "! Command: show running-config\n\nhostname R1\n   \n# local note\ninterface Ethernet1\n   description uplink  \n!\n",
			want: []string{"hostname R1", "interface Ethernet1", "description uplink"},
		},
		{
			name: "crlf line endings",
			raw:  "hostname R1\r\ninterface Eth1\r\n",
			want: []string{"hostname R1", "interface Eth1"},
		},
		{
			name: "marker only counts at the start",
			raw:  "banner motd ! keep out\n  !indented comment",
			want: []string{"banner motd ! keep out"},
		},
		{
			name: "empty input",
			raw:  "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := "!\nhostname core1\n\n  vlan 10\n    name users\n# x\nend\n"
	once := Normalize(raw)
	twice := Normalize(strings.Join(once, "\n"))
	assert.Equal(t, once, twice)

	for _, line := range once {
		assert.NotEmpty(t, line)
		assert.False(t, strings.HasPrefix(line, "!"))
		assert.False(t, strings.HasPrefix(line, "#"))
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		name     string
		baseline []string
		current  []string
		want     []string
	}{
		{
			name:     "added line",
			baseline: []string{"hostname R1", "interface Eth1"},
			current:  []string{"hostname R1", "interface Eth1", "ip address 1.2.3.4"},
			want:     []string{"+ ip address 1.2.3.4"},
		},
		{
			name:     "identical",
			baseline: []string{"hostname R1", "interface Eth1"},
			current:  []string{"hostname R1", "interface Eth1"},
			want:     []string{},
		},
		{
			name:     "removed line",
			baseline: []string{"a", "b", "c"},
			current:  []string{"a", "c"},
			want:     []string{"- b"},
		},
		{
			name:     "similar line replaced",
			baseline: []string{"hostname R1", "ntp server 10.0.0.1"},
			current:  []string{"hostname R1", "ntp server 10.0.0.2"},
			want:     []string{"- ntp server 10.0.0.1", "+ ntp server 10.0.0.2"},
		},
		{
			name:     "similar pair reported before the leftover",
			baseline: []string{"interface Eth1", "description uplink", "shutdown"},
			current:  []string{"interface Eth1", "description downlink"},
			want:     []string{"- description uplink", "+ description downlink", "- shutdown"},
		},
		{
			name:     "unrelated block, removals first when not longer",
			baseline: []string{"aaaa"},
			current:  []string{"xyz1", "qrs2"},
			want:     []string{"- aaaa", "+ xyz1", "+ qrs2"},
		},
		{
			name:     "unrelated block, shorter added side first",
			baseline: []string{"xyz1", "qrs2"},
			current:  []string{"aaaa"},
			want:     []string{"+ aaaa", "- xyz1", "- qrs2"},
		},
		{
			name:     "empty baseline",
			baseline: []string{},
			current:  []string{"hostname R1"},
			want:     []string{"+ hostname R1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, c := range Lines(tt.baseline, tt.current) {
				got = append(got, c.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLines_ReplaceOrdering(t *testing.T) {
	tests := []struct {
		name     string
		baseline []string
		current  []string
		want     []string
	}{
		{
			name: "interleaved replace blocks",
			baseline: []string{"hostname R1", "interface Eth1", "description uplink", "mtu 1500",
				"interface Eth2", "description spare", "shutdown", "ntp server 10.0.0.1"},
			current: []string{"hostname R1", "interface Eth1", "description downlink", "mtu 9214",
				"interface Eth2", "description access", "no shutdown", "ntp server 10.0.0.2"},
			want: []string{
				"- description uplink", "+ description downlink",
				"- mtu 1500", "+ mtu 9214",
				"- description spare", "+ description access",
				"- shutdown", "+ no shutdown",
				"- ntp server 10.0.0.1", "+ ntp server 10.0.0.2",
			},
		},
		{
			name:     "identical line splits the block",
			baseline: []string{"vlan 10", "name users", "vlan 20", "name voice"},
			current:  []string{"vlan 11", "name user", "vlan 20", "name voices"},
			want: []string{
				"- vlan 10", "+ vlan 11",
				"- name users", "+ name user",
				"- name voice", "+ name voices",
			},
		},
		{
			name:     "best pair found late",
			baseline: []string{"logging buffered 4096", "aaa new-model", "ip domain-name lab.local"},
			current:  []string{"banner motd closed", "ip domain-name lab.example", "spanning-tree mode mstp"},
			want: []string{
				"+ banner motd closed",
				"- logging buffered 4096",
				"- aaa new-model",
				"- ip domain-name lab.local",
				"+ ip domain-name lab.example",
				"+ spanning-tree mode mstp",
			},
		},
		{
			name:     "larger added side",
			baseline: []string{"snmp-server community public ro"},
			current:  []string{"snmp-server community netops ro", "snmp-server location lab", "logging host 10.1.1.1"},
			want: []string{
				"- snmp-server community public ro",
				"+ snmp-server community netops ro",
				"+ snmp-server location lab",
				"+ logging host 10.1.1.1",
			},
		},
		{
			name:     "two blocks around a kept line",
			baseline: []string{"a1", "router ospf 1", "network 10.0.0.0/8 area 0", "end"},
			current:  []string{"a2", "router ospf 1", "network 10.0.0.0/16 area 0", "passive-interface default", "end"},
			want: []string{
				"- a1", "+ a2",
				"- network 10.0.0.0/8 area 0", "+ network 10.0.0.0/16 area 0",
				"+ passive-interface default",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, c := range Lines(tt.baseline, tt.current) {
				got = append(got, c.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// mutate derives a config from base by dropping, inserting and rewriting
// lines without reordering the lines it keeps. Every line it produces is unique.
func mutate(rng *rand.Rand, base []string, seed int64) []string {
	out := make([]string, 0, len(base)+4)
	fresh := 0
	newLine := func() string {
		fresh++
		return fmt.Sprintf("added %d-%d", seed, fresh)
	}

	for _, line := range base {
		switch rng.Intn(6) {
		case 0:
			// dropped
		case 1:
			out = append(out, newLine(), line)
		case 2:
			out = append(out, line+" changed")
		default:
			out = append(out, line)
		}
	}
	if rng.Intn(2) == 0 {
		out = append(out, newLine())
	}
	return out
}

func generateConfig(rng *rand.Rand, seed int64) []string {
	stanzas := []string{"interface Ethernet", "vlan", "ip route 10.0.0.0/8 192.168.0.", "ntp server 10.1.1.", "username ops"}
	n := rng.Intn(40)
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("%s%d seed%d", stanzas[rng.Intn(len(stanzas))], i, seed))
	}
	return lines
}

func keep(lines []string, drop map[string]bool) []string {
	out := []string{}
	for _, l := range lines {
		if !drop[l] {
			out = append(out, l)
		}
	}
	return out
}

func only(lines []string, want map[string]bool) []string {
	out := []string{}
	for _, l := range lines {
		if want[l] {
			out = append(out, l)
		}
	}
	return out
}

func TestLines_ReconstructsCurrent(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		baseline := generateConfig(rng, seed)
		current := mutate(rng, baseline, seed)

		var removed, added []string
		removedSet, addedSet := map[string]bool{}, map[string]bool{}
		for _, c := range Lines(baseline, current) {
			if c.Op == types.Removed {
				removed = append(removed, c.Text)
				removedSet[c.Text] = true
			} else {
				added = append(added, c.Text)
				addedSet[c.Text] = true
			}
		}

		msg := fmt.Sprintf("seed %d", seed)
		// removals come out in baseline order and additions in current order
		assert.Equal(t, only(baseline, removedSet), nonNil(removed), msg)
		assert.Equal(t, only(current, addedSet), nonNil(added), msg)

		// what survives the removals is exactly what the additions are woven into
		kept := keep(baseline, removedSet)
		assert.Equal(t, keep(current, addedSet), kept, msg)

		rebuilt := weave(current, kept, added)
		assert.Equal(t, nonNil(current), rebuilt, msg)
	}
}

// weave rebuilds a config from the kept lines and the additions, using the
// positions of the additions in current as the merge order.
func weave(current, kept, added []string) []string {
	out := []string{}
	k, a := 0, 0
	for _, line := range current {
		if a < len(added) && line == added[a] {
			out = append(out, added[a])
			a++
			continue
		}
		if k < len(kept) {
			out = append(out, kept[k])
			k++
		}
	}
	return out
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}

func TestLines_IdenticalInputsHaveNoChanges(t *testing.T) {
	for seed := int64(1); seed <= 100; seed++ {
		rng := rand.New(rand.NewSource(seed))
		lines := generateConfig(rng, seed)
		// duplicates must not confuse the matcher either
		if len(lines) > 2 {
			lines = append(lines, lines[0], lines[len(lines)/2])
		}

		assert.Empty(t, Lines(lines, append([]string(nil), lines...)), "seed %d", seed)
	}
}

func TestLines_CountsMatchSetDifference(t *testing.T) {
	baseline := []string{"hostname R1", "vlan 10", "vlan 20", "interface Eth1", "mtu 9000"}
	current := []string{"hostname R1", "vlan 10", "vlan 30", "interface Eth1", "mtu 9214", "lldp run"}

	result := &types.DiffResult{Changes: Lines(baseline, current)}
	added, removed := result.Counts()
	assert.Equal(t, 3, added)
	assert.Equal(t, 2, removed)

	for _, c := range result.Changes {
		assert.True(t, c.Op.IsValid())
	}
}

func TestStandardDiffer_Compare(t *testing.T) {
	captured := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	baseline := &types.Snapshot{
		DeviceID:   "R1",
		Kind:       "golden",
		Name:       "R1_golden_20240201_100000.cfg",
		CapturedAt: captured,
		Lines:      []string{"! legacy header", "hostname R1", "interface Eth1"},
	}

	d := NewStandardDiffer()
	result, err := d.Compare(baseline, []string{"hostname R1", "interface Eth1"})
	require.NoError(t, err)
	assert.False(t, result.HasDrift())
	assert.Equal(t, "R1", result.DeviceID)
	assert.Equal(t, baseline.Name, result.Baseline)
	assert.Equal(t, captured, result.BaselineCapturedAt)

	result, err = d.Compare(baseline, []string{"hostname R1"})
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, types.Change{Op: types.Removed, Text: "interface Eth1"}, result.Changes[0])

	_, err = d.Compare(nil, nil)
	assert.Error(t, err)
}
