// Package rotation replaces device login secrets and keeps the credential
// file in step with what the devices accept.
package rotation

import (
	"context"
	"fmt"
	"strings"

	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/credentials"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/pkg/progress"
	"github.com/yairfalse/ilmari/pkg/types"
)

// UnknownHostname replaces the alias of a device that could not be rotated
const UnknownHostname = "N/A"

const redacted = "********"

// Status is the outcome of rotating one device
type Status string

const (
	// StatusRotated means the new secret is active and saved on the device
	StatusRotated Status = "rotated"
	// StatusUnsaved means the new secret is active but saving the config failed
	StatusUnsaved Status = "unsaved"
	// StatusFailed means the device still uses its old secret
	StatusFailed Status = "failed"
	// StatusPlanned is reported by dry runs
	StatusPlanned Status = "planned"
)

// Pacer spaces out device connections
type Pacer interface {
	Wait(ctx context.Context) error
}

// Recorder appends outcomes to the run journal
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Options control a rotation run
type Options struct {
	// CredentialsPath is rewritten with the new secrets after the run
	CredentialsPath string
	// BackupDir keeps the previous credential file; empty disables backups
	BackupDir string
	// Length of generated secrets, DefaultLength when zero
	Length int
	// DryRun generates secrets and reports without connecting or writing
	DryRun bool
	// Only limits rotation to the record matching this identifier. The other
	// records are written back unchanged.
	Only string
}

// Deps are the collaborators of a Rotator. Only Dialer is required.
type Deps struct {
	Dialer   channel.Dialer
	Commands *channel.CommandSet
	Resolver *credentials.TypeResolver
	Pacer    Pacer
	Logger   logger.Logger
	Journal  Recorder
	Generate func(length int) (string, error)
}

// Outcome describes what happened to one device
type Outcome struct {
	Device   string `json:"device" yaml:"device"`
	Host     string `json:"host" yaml:"host"`
	Hostname string `json:"hostname" yaml:"hostname"`
	Status   Status `json:"status" yaml:"status"`
	Phase    string `json:"phase,omitempty" yaml:"phase,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Summary is the result of a rotation run
type Summary struct {
	Outcomes []Outcome          `json:"outcomes" yaml:"outcomes"`
	Records  []types.Credential `json:"-" yaml:"-"`
	Written  string             `json:"written,omitempty" yaml:"written,omitempty"`
	DryRun   bool               `json:"dry_run" yaml:"dry_run"`
}

// Counts returns the number of outcomes per status
func (s *Summary) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range s.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Rotator rotates device secrets one device at a time.
type Rotator struct {
	opts Options
	deps Deps
}

// noPacer never waits
type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }

// New builds a Rotator
func New(opts Options, deps Deps) (*Rotator, error) {
	if deps.Dialer == nil {
		return nil, opserrors.ConfigurationError("rotation needs a dialer")
	}
	if !opts.DryRun && strings.TrimSpace(opts.CredentialsPath) == "" {
		return nil, opserrors.ConfigurationError("credentials.file is not set")
	}
	if opts.Length == 0 {
		opts.Length = DefaultLength
	}
	if deps.Commands == nil {
		deps.Commands = channel.NewCommandSet(nil)
	}
	if deps.Resolver == nil {
		deps.Resolver = credentials.NewTypeResolver(channel.TypeAristaEOS, nil, nil)
	}
	if deps.Pacer == nil {
		deps.Pacer = noPacer{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Generate == nil {
		deps.Generate = GeneratePassword
	}
	return &Rotator{opts: opts, deps: deps}, nil
}

// Rotate processes records in order and rewrites the credential file with the
// outcome. Devices left unprocessed by a cancelled context keep their rows
// unchanged, and the file is still written so completed rotations are not lost.
func (r *Rotator) Rotate(ctx context.Context, records []types.Credential) (*Summary, error) {
	summary := &Summary{
		Records: append([]types.Credential(nil), records...),
		DryRun:  r.opts.DryRun,
	}

	total := len(records)
	if r.opts.Only != "" {
		total = 1
	}
	tracker := progress.GetProgress(ctx).StartOperation("rotate", int64(total))

	var runErr error
	for i, cred := range records {
		if r.opts.Only != "" && !cred.Matches(r.opts.Only) {
			continue
		}
		if err := r.deps.Pacer.Wait(ctx); err != nil {
			runErr = err
			break
		}
		tracker.SetStatus(cred.CanonicalID)

		outcome, updated := r.rotateOne(ctx, cred)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Records[i] = updated
		r.record(ctx, outcome)
		tracker.Increment(1)
	}
	tracker.Complete()

	if r.opts.DryRun {
		return summary, runErr
	}

	if err := credentials.Save(r.opts.CredentialsPath, r.opts.BackupDir, summary.Records); err != nil {
		return summary, err
	}
	summary.Written = r.opts.CredentialsPath
	r.deps.Logger.WithField("file", r.opts.CredentialsPath).Info("credential file updated")

	return summary, runErr
}

func (r *Rotator) rotateOne(ctx context.Context, cred types.Credential) (Outcome, types.Credential) {
	device := credentials.NewDevice(cred, r.deps.Resolver)
	out := Outcome{
		Device:   device.Name(),
		Host:     device.Host(),
		Hostname: cred.Alias,
		Phase:    "generating",
	}
	log := r.deps.Logger.WithField("device", device.Name())

	failed := cred
	failed.Alias = UnknownHostname
	fail := func(err error) (Outcome, types.Credential) {
		out.Status = StatusFailed
		out.Hostname = UnknownHostname
		out.Err = err
		out.Error = err.Error()
		log.Error(fmt.Sprintf("rotation failed during %s", out.Phase), err)
		return out, failed
	}

	secret, err := r.deps.Generate(r.opts.Length)
	if err != nil {
		return fail(err)
	}

	out.Phase = "resolving_device"
	promptCmd, err := r.deps.Commands.Command(device.Type, channel.OpPrompt)
	if err != nil {
		return fail(err)
	}
	setCmd, err := r.deps.Commands.Command(device.Type, channel.OpSetSecret,
		"user", cred.Username, "secret", secret)
	if err != nil {
		return fail(err)
	}
	shownSetCmd, _ := r.deps.Commands.Command(device.Type, channel.OpSetSecret,
		"user", cred.Username, "secret", redacted)

	if r.opts.DryRun {
		out.Status = StatusPlanned
		out.Phase = ""
		return out, cred
	}

	out.Phase = "connecting"
	session, err := channel.Connect(ctx, r.deps.Dialer, device)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn(fmt.Sprintf("closing session: %v", cerr))
		}
	}()

	out.Phase = "fetching"
	prompt, err := channel.Exec(ctx, session, device, promptCmd)
	if err != nil {
		return fail(err)
	}
	hostname := channel.ParseHostname(prompt)
	if hostname == "" {
		hostname = UnknownHostname
	}

	out.Phase = "set_secret"
	if _, err := session.Run(ctx, setCmd); err != nil {
		return fail(opserrors.CommandFailed(device.Name(), shownSetCmd, err))
	}

	updated := cred
	updated.Secret = secret
	updated.Alias = hostname
	out.Hostname = hostname

	if r.deps.Commands.Has(device.Type, channel.OpSaveConfig) {
		out.Phase = "save_config"
		saveCmd, _ := r.deps.Commands.Command(device.Type, channel.OpSaveConfig)
		if _, err := channel.Exec(ctx, session, device, saveCmd); err != nil {
			out.Status = StatusUnsaved
			out.Err = err
			out.Error = err.Error()
			log.Warn(fmt.Sprintf("new secret is active but not saved: %v", err))
			return out, updated
		}
	}

	out.Status = StatusRotated
	out.Phase = ""
	log.WithField("hostname", hostname).Info("secret rotated")
	return out, updated
}

func (r *Rotator) record(ctx context.Context, o Outcome) {
	if r.deps.Journal == nil || r.opts.DryRun {
		return
	}
	entry := journal.Entry{
		Device:    o.Device,
		Operation: "rotate",
		Phase:     o.Phase,
		Status:    string(o.Status),
		Error:     o.Error,
	}
	if err := r.deps.Journal.Append(ctx, entry); err != nil {
		r.deps.Logger.Warn(fmt.Sprintf("journal append failed: %v", err))
	}
}
