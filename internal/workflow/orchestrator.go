package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/credentials"
	"github.com/yairfalse/ilmari/internal/differ"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/internal/storage"
	"github.com/yairfalse/ilmari/pkg/progress"
	"github.com/yairfalse/ilmari/pkg/types"
)

// Credentials is the part of the credential store the orchestrator reads.
type Credentials interface {
	Lookup(identifier string) (types.Credential, error)
	Records() []types.Credential
}

// Recorder appends workflow outcomes to the run journal.
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Explainer summarises drift for humans.
type Explainer interface {
	Explain(ctx context.Context, device string, changes []types.Change) (string, error)
}

// Options are the orchestrator settings taken from configuration.
type Options struct {
	// SnapshotKind is the kind stamped into captured artifact names
	SnapshotKind string
	// ExportDir receives running-config YAML exports
	ExportDir string
	// Explain asks the Explainer to summarise drift found by Compare
	Explain bool
}

// Deps are the collaborators of the orchestrator. Journal and Explainer are optional.
type Deps struct {
	Credentials Credentials
	Resolver    *credentials.TypeResolver
	Dialer      channel.Dialer
	Commands    *channel.CommandSet
	Store       storage.Storage
	Differ      differ.Differ
	Pacer       Pacer
	Logger      logger.Logger
	Journal     Recorder
	Explainer   Explainer
	Clock       func() time.Time
}

// Orchestrator runs the capture, compare and export workflows for one device
// at a time.
type Orchestrator struct {
	opts Options
	deps Deps
}

// New validates deps and builds an orchestrator
func New(opts Options, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Credentials == nil:
		return nil, opserrors.ConfigurationError("workflow needs a credential store")
	case deps.Dialer == nil:
		return nil, opserrors.ConfigurationError("workflow needs a dialer")
	case deps.Store == nil:
		return nil, opserrors.ConfigurationError("workflow needs a snapshot store")
	}

	if deps.Commands == nil {
		deps.Commands = channel.NewCommandSet(nil)
	}
	if deps.Resolver == nil {
		deps.Resolver = credentials.NewTypeResolver(channel.TypeAristaEOS, nil, nil)
	}
	if deps.Differ == nil {
		deps.Differ = differ.NewStandardDiffer()
	}
	if deps.Pacer == nil {
		deps.Pacer = NewPacer(0)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if opts.SnapshotKind == "" {
		opts.SnapshotKind = types.DefaultSnapshotKind
	}

	return &Orchestrator{opts: opts, deps: deps}, nil
}

// Capture fetches the running config of identifier and stores it as a new golden snapshot.
func (o *Orchestrator) Capture(ctx context.Context, identifier string) *Report {
	r := newReport(identifier, OpCapture, o.deps.Clock())
	defer o.finish(ctx, r)

	device, err := o.resolve(r)
	if err != nil {
		return r.fail(err)
	}

	lines, err := o.fetchConfig(ctx, r, device)
	if err != nil {
		return r.fail(err)
	}

	r.Phase = PhaseCapture
	snapshot, err := o.deps.Store.Save(device.Name(), o.opts.SnapshotKind, lines)
	if err != nil {
		return r.fail(err)
	}

	r.Phase = PhaseReporting
	r.Status = StatusOK
	r.Artifact = snapshot.Name
	r.Message = fmt.Sprintf("Golden config saved: %s", snapshot.Name)
	return r
}

// Compare diffs the running config of identifier against its latest golden snapshot.
// The baseline is located before any connection is attempted.
func (o *Orchestrator) Compare(ctx context.Context, identifier string) *Report {
	r := newReport(identifier, OpCompare, o.deps.Clock())
	defer o.finish(ctx, r)

	device, err := o.resolve(r)
	if err != nil {
		return r.fail(err)
	}

	info, err := o.deps.Store.Latest(device.Name())
	if err != nil {
		return r.fail(err)
	}
	baseline, err := o.deps.Store.Load(info.Name)
	if err != nil {
		return r.fail(err)
	}
	r.Baseline = baseline.Name

	lines, err := o.fetchConfig(ctx, r, device)
	if err != nil {
		return r.fail(err)
	}

	r.Phase = PhaseCompare
	result, err := o.deps.Differ.Compare(baseline, lines)
	if err != nil {
		return r.fail(err)
	}

	r.Phase = PhaseReporting
	r.Status = StatusOK
	r.Changes = result.Changes
	r.Title = strings.ToUpper(device.Name())
	r.Message = diffMessage(result.Changes)

	if o.opts.Explain && result.HasDrift() {
		o.explain(ctx, r)
	}
	return r
}

// Export writes the normalized running config of identifier as a YAML list.
func (o *Orchestrator) Export(ctx context.Context, identifier string) *Report {
	r := newReport(identifier, OpExport, o.deps.Clock())
	defer o.finish(ctx, r)

	device, err := o.resolve(r)
	if err != nil {
		return r.fail(err)
	}

	lines, err := o.fetchConfig(ctx, r, device)
	if err != nil {
		return r.fail(err)
	}

	r.Phase = PhaseExport
	path, err := writeExport(o.opts.ExportDir, device.Name(), lines)
	if err != nil {
		return r.fail(err)
	}

	r.Phase = PhaseReporting
	r.Status = StatusOK
	r.Artifact = path
	r.Message = fmt.Sprintf("Running config for %s saved to %s", device.Name(), path)
	return r
}

// CaptureAll captures every device in credential file order.
func (o *Orchestrator) CaptureAll(ctx context.Context) ([]*Report, error) {
	return o.runAll(ctx, OpCapture, o.Capture)
}

// CompareAll compares every device in credential file order.
func (o *Orchestrator) CompareAll(ctx context.Context) ([]*Report, error) {
	return o.runAll(ctx, OpCompare, o.Compare)
}

// ExportAll exports every device in credential file order.
func (o *Orchestrator) ExportAll(ctx context.Context) ([]*Report, error) {
	return o.runAll(ctx, OpExport, o.Export)
}

// runAll processes devices sequentially. Per-device failures are kept in the
// reports; a fatal error stops the batch and is returned.
func (o *Orchestrator) runAll(ctx context.Context, op Operation, run func(context.Context, string) *Report) ([]*Report, error) {
	records := o.deps.Credentials.Records()
	reports := make([]*Report, 0, len(records))

	err := progress.TrackOperation(ctx, string(op), int64(len(records)), func(t *progress.Tracker) error {
		for _, rec := range records {
			if err := o.deps.Pacer.Wait(ctx); err != nil {
				return err
			}

			t.SetStatus(rec.CanonicalID)
			r := run(ctx, rec.CanonicalID)
			reports = append(reports, r)
			t.Increment(1)

			if r.Err != nil && opserrors.IsFatal(r.Err) {
				o.deps.Logger.Error("batch aborted", r.Err)
				return r.Err
			}
		}
		return nil
	})

	return reports, err
}

// resolve turns the identifier into a device descriptor (ResolvingDevice phase)
func (o *Orchestrator) resolve(r *Report) (types.Device, error) {
	r.Phase = PhaseResolvingDevice
	if r.Identifier == "" {
		return types.Device{}, opserrors.InputError("device identifier is required")
	}

	cred, err := o.deps.Credentials.Lookup(r.Identifier)
	if err != nil {
		return types.Device{}, err
	}

	device := credentials.NewDevice(cred, o.deps.Resolver)
	r.Device = device.Name()
	r.Host = device.Host()
	return device, nil
}

// fetchConfig runs the Connecting and Fetching phases and normalizes the result.
// The session is closed before returning on every path.
func (o *Orchestrator) fetchConfig(ctx context.Context, r *Report, device types.Device) ([]string, error) {
	command, err := o.deps.Commands.Command(device.Type, channel.OpRunningConfig)
	if err != nil {
		return nil, err
	}

	r.Phase = PhaseConnecting
	log := o.deps.Logger.WithFields(map[string]interface{}{
		"device":    device.Name(),
		"operation": string(r.Operation),
	})
	log.Debug("connecting")

	session, err := channel.Connect(ctx, o.deps.Dialer, device)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn(fmt.Sprintf("closing session: %v", cerr))
		}
	}()

	r.Phase = PhaseFetching
	raw, err := channel.Exec(ctx, session, device, command)
	if err != nil {
		return nil, err
	}

	lines := differ.Normalize(raw)
	log.WithField("lines", len(lines)).Debug("fetched running config")
	return lines, nil
}

func (o *Orchestrator) explain(ctx context.Context, r *Report) {
	if o.deps.Explainer == nil {
		o.deps.Logger.Warn("drift explanation requested but no AI client is configured")
		return
	}

	text, err := o.deps.Explainer.Explain(ctx, r.Device, r.Changes)
	if err != nil {
		o.deps.Logger.WithField("device", r.Device).Warn(fmt.Sprintf("drift explanation failed: %v", err))
		return
	}
	r.Explanation = text
}

// finish logs the outcome and appends it to the journal. Journal failures
// never change the report.
func (o *Orchestrator) finish(ctx context.Context, r *Report) {
	r.Duration = o.deps.Clock().Sub(r.StartedAt)

	log := o.deps.Logger.WithFields(map[string]interface{}{
		"device":    r.Device,
		"operation": string(r.Operation),
		"phase":     string(r.Phase),
		"status":    string(r.Status),
	})
	if r.Err != nil {
		log.Error("workflow failed", r.Err)
	} else {
		log.Info("workflow completed")
	}

	if o.deps.Journal == nil {
		return
	}
	entry := journal.Entry{
		Device:    r.Device,
		Operation: string(r.Operation),
		Phase:     string(r.Phase),
		Status:    string(r.Status),
		Artifact:  r.Artifact,
		Changes:   len(r.Changes),
		Error:     r.Error,
	}
	if entry.Device == "" {
		entry.Device = "-"
	}
	if err := o.deps.Journal.Append(ctx, entry); err != nil {
		log.Warn(fmt.Sprintf("journal append failed: %v", err))
	}
}
