package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/ilmari/internal/channel/channeltest"
	"github.com/yairfalse/ilmari/internal/credentials"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/storage"
	"github.com/yairfalse/ilmari/pkg/types"
)

const showRun = "show running-config"

type recorder struct {
	entries []journal.Entry
	err     error
}

func (r *recorder) Append(ctx context.Context, e journal.Entry) error {
	r.entries = append(r.entries, e)
	return r.err
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

type fakeExplainer struct {
	device  string
	changes []types.Change
}

func (f *fakeExplainer) Explain(ctx context.Context, device string, changes []types.Change) (string, error) {
	f.device = device
	f.changes = changes
	return "An IP address was added.", nil
}

// unavailableStore fails every operation as if the disk were gone
type unavailableStore struct{}

func (unavailableStore) Save(device, kind string, lines []string) (*types.Snapshot, error) {
	return nil, opserrors.StoreUnavailable("/golden", errors.New("read-only file system"))
}
func (unavailableStore) Latest(prefix string) (*types.SnapshotInfo, error) {
	return nil, opserrors.StoreUnavailable("/golden", errors.New("read-only file system"))
}
func (unavailableStore) List(prefix string) ([]types.SnapshotInfo, error) {
	return nil, opserrors.StoreUnavailable("/golden", errors.New("read-only file system"))
}
func (unavailableStore) Load(name string) (*types.Snapshot, error) {
	return nil, opserrors.StoreUnavailable("/golden", errors.New("read-only file system"))
}
func (unavailableStore) Path(name string) string { return name }

type fixture struct {
	dialer   *channeltest.Dialer
	store    *storage.LocalStorage
	journal  *recorder
	pacer    *countingPacer
	explain  *fakeExplainer
	exportTo string
	orch     *Orchestrator
}

func newFixture(t *testing.T, opts Options, store storage.Storage) *fixture {
	t.Helper()

	f := &fixture{
		dialer:   channeltest.NewDialer(),
		journal:  &recorder{},
		pacer:    &countingPacer{},
		explain:  &fakeExplainer{},
		exportTo: filepath.Join(t.TempDir(), "running_configs"),
	}

	if store == nil {
		clock := time.Date(2024, 7, 1, 12, 0, 0, 0, time.Local)
		local, err := storage.NewLocalStorage(t.TempDir(), storage.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}))
		require.NoError(t, err)
		f.store = local
		store = local
	}

	creds := credentials.NewStore([]types.Credential{
		{CanonicalID: "10.0.0.1", Alias: "R1", Username: "admin", Secret: "x"},
		{CanonicalID: "10.0.0.2", Alias: "R2", Username: "admin", Secret: "y"},
		{CanonicalID: "10.0.0.3", Alias: "sw3", Username: "admin", Secret: "z"},
	})

	opts.ExportDir = f.exportTo
	orch, err := New(opts, Deps{
		Credentials: creds,
		Resolver:    credentials.NewTypeResolver("arista_eos", nil, nil),
		Dialer:      f.dialer,
		Store:       store,
		Pacer:       f.pacer,
		Journal:     f.journal,
		Explainer:   f.explain,
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Options{}, Deps{})
	assert.Equal(t, opserrors.KindConfiguration, opserrors.KindOf(err))
}

func TestCapture_SavesNormalizedConfig(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.dialer.Respond("10.0.0.1", showRun, "! Command: show running-config\nhostname R1\n\ninterface Eth1\n")

	r := f.orch.Capture(context.Background(), "r1")

	require.NoError(t, r.Err)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, PhaseReporting, r.Phase)
	assert.Equal(t, "R1", r.Device)
	assert.Equal(t, "R1_golden_20240701_120001.cfg", r.Artifact)
	assert.Contains(t, r.Text(), r.Artifact)

	data, err := os.ReadFile(f.store.Path(r.Artifact))
	require.NoError(t, err)
	assert.Equal(t, "hostname R1\ninterface Eth1\n", string(data))

	assert.Equal(t, []string{"10.0.0.1"}, f.dialer.Closed())

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, "capture", f.journal.entries[0].Operation)
	assert.Equal(t, "ok", f.journal.entries[0].Status)
	assert.Equal(t, r.Artifact, f.journal.entries[0].Artifact)
}

func TestCapture_ConnectionTimeout(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.dialer.FailOpen("10.0.0.1", errors.New("dial tcp 10.0.0.1:22: i/o timeout"))

	r := f.orch.Capture(context.Background(), "R1")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, PhaseConnecting, r.Phase)
	assert.Equal(t, opserrors.KindConnection, r.ErrorKind)
	assert.True(t, r.Failed())
	assert.Contains(t, r.Text(), "R1")
	assert.Contains(t, strings.ToLower(r.Text()), "connection")

	infos, err := f.store.List("")
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.Empty(t, f.dialer.Closed())

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, "failed", f.journal.entries[0].Status)
	assert.Equal(t, "connecting", f.journal.entries[0].Phase)
}

func TestCapture_CommandFailureClosesSession(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.dialer.FailRun("10.0.0.1", showRun, errors.New("channel closed by peer"))

	r := f.orch.Capture(context.Background(), "R1")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, PhaseFetching, r.Phase)
	assert.Equal(t, opserrors.KindCommand, r.ErrorKind)
	assert.Equal(t, []string{"10.0.0.1"}, f.dialer.Closed())
}

func TestCapture_SameSecondCollision(t *testing.T) {
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.Local)
	store, err := storage.NewLocalStorage(t.TempDir(), storage.WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	f := newFixture(t, Options{}, store)
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\n")

	first := f.orch.Capture(context.Background(), "R1")
	require.NoError(t, first.Err)

	second := f.orch.Capture(context.Background(), "R1")
	assert.Equal(t, StatusFailed, second.Status)
	assert.Equal(t, opserrors.KindInput, second.ErrorKind)
	assert.ErrorIs(t, second.Err, storage.ErrExists)
	assert.Contains(t, second.Text(), "InputError")
	assert.Contains(t, second.Text(), "device=R1")
}

func TestCapture_ResolveFailures(t *testing.T) {
	f := newFixture(t, Options{}, nil)

	r := f.orch.Capture(context.Background(), "sw9")
	assert.Equal(t, opserrors.KindCredentialNotFound, r.ErrorKind)
	assert.Equal(t, PhaseResolvingDevice, r.Phase)

	r = f.orch.Capture(context.Background(), "  ")
	assert.Equal(t, opserrors.KindInput, r.ErrorKind)

	assert.Empty(t, f.dialer.Opened())
}

func TestCompare_NoBaselineDoesNotConnect(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\n")

	r := f.orch.Compare(context.Background(), "R1")

	assert.Equal(t, StatusNoBaseline, r.Status)
	assert.Equal(t, opserrors.KindSnapshotNotFound, r.ErrorKind)
	assert.Contains(t, r.Message, "Capture one first")
	assert.Empty(t, f.dialer.Opened())
}

func TestCompare_NoDifferences(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	_, err := f.store.Save("R1", "golden", []string{"hostname R1", "interface Eth1"})
	require.NoError(t, err)
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\n!\ninterface Eth1\n")

	r := f.orch.Compare(context.Background(), "10.0.0.1")

	require.NoError(t, r.Err)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, NoDifferences, r.Message)
	assert.Empty(t, r.Changes)
	assert.Equal(t, "R1", r.Title)
	assert.Equal(t, []string{"10.0.0.1"}, f.dialer.Closed())
}

func TestCompare_ReportsAddedLine(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	saved, err := f.store.Save("R1", "golden", []string{"hostname R1", "interface Eth1"})
	require.NoError(t, err)
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\ninterface Eth1\nip address 1.2.3.4\n")

	r := f.orch.Compare(context.Background(), "r1")

	require.NoError(t, r.Err)
	assert.Equal(t, saved.Name, r.Baseline)
	assert.Equal(t, "+ ip address 1.2.3.4", r.Message)
	assert.Equal(t, "R1\n+ ip address 1.2.3.4", r.Text())
	assert.Empty(t, r.Explanation)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, 1, f.journal.entries[0].Changes)
}

func TestCompare_UsesLatestBaseline(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	_, err := f.store.Save("R1", "golden", []string{"hostname OLD"})
	require.NoError(t, err)
	latest, err := f.store.Save("R1", "golden", []string{"hostname R1"})
	require.NoError(t, err)
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\n")

	r := f.orch.Compare(context.Background(), "R1")

	assert.Equal(t, latest.Name, r.Baseline)
	assert.Equal(t, NoDifferences, r.Message)
}

func TestCompare_Explain(t *testing.T) {
	f := newFixture(t, Options{Explain: true}, nil)
	_, err := f.store.Save("R1", "golden", []string{"hostname R1"})
	require.NoError(t, err)
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\nip routing\n")

	r := f.orch.Compare(context.Background(), "R1")

	require.NoError(t, r.Err)
	assert.Equal(t, "An IP address was added.", r.Explanation)
	assert.Equal(t, "R1", f.explain.device)
	assert.Equal(t, []types.Change{{Op: types.Added, Text: "ip routing"}}, f.explain.changes)
	assert.Contains(t, r.Text(), "An IP address was added.")
}

func TestJournalFailureDoesNotFailWorkflow(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.journal.err = errors.New("database is locked")
	f.dialer.Respond("10.0.0.1", showRun, "hostname R1\n")

	r := f.orch.Capture(context.Background(), "R1")
	assert.Equal(t, StatusOK, r.Status)
	assert.NoError(t, r.Err)
}

func TestCaptureAll_ContinuesPastDeviceFailures(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.dialer.
		Respond("10.0.0.1", showRun, "hostname R1\n").
		FailOpen("10.0.0.2", errors.New("connection refused")).
		Respond("10.0.0.3", showRun, "hostname sw3\n")

	reports, err := f.orch.CaptureAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, StatusOK, reports[0].Status)
	assert.Equal(t, StatusFailed, reports[1].Status)
	assert.Equal(t, opserrors.KindConnection, reports[1].ErrorKind)
	assert.Equal(t, StatusOK, reports[2].Status)

	// sequential, in credential file order, paced before each device
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, f.dialer.Opened())
	assert.Equal(t, 3, f.pacer.waits)
}

func TestCompareAll_StopsOnStoreUnavailable(t *testing.T) {
	f := newFixture(t, Options{}, unavailableStore{})

	reports, err := f.orch.CompareAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, opserrors.KindStoreUnavailable, opserrors.KindOf(err))
	assert.Len(t, reports, 1)
	assert.Empty(t, f.dialer.Opened())
}

func TestCaptureAll_CancelledContext(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := f.orch.CaptureAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reports)
}

func TestExport_WritesYAML(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.dialer.Respond("10.0.0.3", showRun, "hostname sw3\n! comment\nvlan 10\n")

	r := f.orch.Export(context.Background(), "sw3")
	require.NoError(t, r.Err)

	assert.Equal(t, filepath.Join(f.exportTo, "sw3-running-config.yaml"), r.Artifact)

	data, err := os.ReadFile(r.Artifact)
	require.NoError(t, err)

	var lines []string
	require.NoError(t, yaml.Unmarshal(data, &lines))
	assert.Equal(t, []string{"hostname sw3", "vlan 10"}, lines)
}
