package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/yairfalse/ilmari/internal/ai"
	"github.com/yairfalse/ilmari/internal/archive"
	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/clients"
	"github.com/yairfalse/ilmari/internal/credentials"
	"github.com/yairfalse/ilmari/internal/differ"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/health"
	"github.com/yairfalse/ilmari/internal/ipam"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/internal/rotation"
	"github.com/yairfalse/ilmari/internal/snmp"
	"github.com/yairfalse/ilmari/internal/storage"
	"github.com/yairfalse/ilmari/internal/workflow"
	"github.com/yairfalse/ilmari/pkg/config"
)

// App owns the collaborators shared by every command of one invocation.
// Expensive pieces are built on first use.
type App struct {
	config *config.Config
	logger logger.Logger

	commands *channel.CommandSet
	resolver *credentials.TypeResolver
	pacer    *workflow.RatePacer
	pool     *clients.HTTPClientPool
	clock    func() time.Time

	creds   *credentials.Store
	dialer  channel.Dialer
	store   *storage.LocalStorage
	journal *journal.Journal
	// journalTried avoids reopening a journal that failed once
	journalTried bool
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Commands returns the vendor command set with configured overrides applied
func (a *App) Commands() *channel.CommandSet {
	return a.commands
}

// Resolver returns the device type resolver
func (a *App) Resolver() *credentials.TypeResolver {
	return a.resolver
}

// Credentials loads the credential file once
func (a *App) Credentials() (*credentials.Store, error) {
	if a.creds != nil {
		return a.creds, nil
	}
	store, err := credentials.Load(a.config.Credentials.File, a.config.Credentials.FallbackUsername)
	if err != nil {
		return nil, err
	}
	a.logger.WithFields(map[string]interface{}{
		"file":    a.config.Credentials.File,
		"records": store.Len(),
	}).Debug("Loaded credentials")
	a.creds = store
	return store, nil
}

// Dialer returns the SSH dialer
func (a *App) Dialer() (channel.Dialer, error) {
	if a.dialer != nil {
		return a.dialer, nil
	}
	d, err := channel.NewSSHDialer(channel.SSHOptions{
		Port:          a.config.SSH.Port,
		Timeout:       a.config.SSH.Timeout,
		HostKeyPolicy: a.config.SSH.HostKeyPolicy,
		KnownHosts:    a.config.SSH.KnownHosts,
	})
	if err != nil {
		return nil, opserrors.Wrap(opserrors.KindConfiguration, err, "cannot set up ssh").
			WithSolutions("Check ssh.host_key_policy and ssh.known_hosts in config.yaml")
	}
	a.dialer = d
	return d, nil
}

// Store opens the golden snapshot directory
func (a *App) Store() (*storage.LocalStorage, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.NewLocalStorage(a.config.Storage.GoldenDir, storage.WithClock(a.clock))
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// Journal opens the run journal. Commands that only record outcomes should
// use recorder instead, which tolerates a missing journal.
func (a *App) Journal() (*journal.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	a.journalTried = true
	j, err := journal.Open(a.config.Storage.JournalPath)
	if err != nil {
		return nil, opserrors.StoreUnavailable(a.config.Storage.JournalPath, err)
	}
	a.journal = j
	return j, nil
}

// recorder returns the journal as a Recorder, or nil when it cannot be opened
func (a *App) recorder() workflow.Recorder {
	if a.journal == nil && a.journalTried {
		return nil
	}
	j, err := a.Journal()
	if err != nil {
		a.logger.Warn("Run journal unavailable, outcomes will not be recorded: " + err.Error())
		return nil
	}
	return j
}

func (a *App) backupDir() string {
	return filepath.Join(a.config.Storage.BaseDir, "backups")
}

// Orchestrator builds the golden-config workflow. explain attaches the Claude
// explainer and fails when no API key is configured.
func (a *App) Orchestrator(explain bool) (*workflow.Orchestrator, error) {
	creds, err := a.Credentials()
	if err != nil {
		return nil, err
	}
	dialer, err := a.Dialer()
	if err != nil {
		return nil, err
	}
	store, err := a.Store()
	if err != nil {
		return nil, err
	}

	deps := workflow.Deps{
		Credentials: creds,
		Resolver:    a.resolver,
		Dialer:      dialer,
		Commands:    a.commands,
		Store:       store,
		Differ:      differ.NewStandardDiffer(),
		Pacer:       a.pacer,
		Logger:      a.logger,
		Journal:     a.recorder(),
		Clock:       a.clock,
	}
	if explain {
		explainer, err := a.Explainer()
		if err != nil {
			return nil, err
		}
		deps.Explainer = explainer
	}

	return workflow.New(workflow.Options{
		SnapshotKind: a.config.Storage.SnapshotKind,
		ExportDir:    a.config.Storage.ExportDir,
		Explain:      explain,
	}, deps)
}

// Explainer builds the Claude client
func (a *App) Explainer() (*ai.ClaudeClient, error) {
	return ai.NewClaudeClient(ai.Options{
		APIKey:     a.config.Claude.APIKey,
		Model:      a.config.Claude.Model,
		HTTPClient: a.pool.GetClient("anthropic"),
	})
}

// Rotator builds the password rotator. A non-empty only restricts the run to
// one device.
func (a *App) Rotator(dryRun bool, only string) (*rotation.Rotator, error) {
	dialer, err := a.Dialer()
	if err != nil {
		return nil, err
	}
	deps := rotation.Deps{
		Dialer:   dialer,
		Commands: a.commands,
		Resolver: a.resolver,
		Pacer:    a.pacer,
		Logger:   a.logger,
	}
	if !dryRun {
		deps.Journal = a.recorder()
	}
	return rotation.New(rotation.Options{
		CredentialsPath: a.config.Credentials.File,
		BackupDir:       a.backupDir(),
		DryRun:          dryRun,
		Only:            only,
	}, deps)
}

// Collector builds the IPAM collector
func (a *App) Collector() (*ipam.Collector, error) {
	dialer, err := a.Dialer()
	if err != nil {
		return nil, err
	}
	return &ipam.Collector{
		Dialer:   dialer,
		Commands: a.commands,
		Resolver: a.resolver,
		Pacer:    a.pacer,
		Logger:   a.logger,
		Journal:  a.recorder(),
	}, nil
}

// Checker builds the device health checker
func (a *App) Checker() (*health.Checker, error) {
	creds, err := a.Credentials()
	if err != nil {
		return nil, err
	}
	dialer, err := a.Dialer()
	if err != nil {
		return nil, err
	}
	return &health.Checker{
		Credentials:  creds,
		Resolver:     a.resolver,
		Dialer:       dialer,
		Commands:     a.commands,
		PingTargets:  a.config.Health.PingTargets,
		CPUThreshold: a.config.Health.CPUThreshold,
		Logger:       a.logger,
		Journal:      a.recorder(),
	}, nil
}

// Poller builds the SNMP CPU poller
func (a *App) Poller() (*snmp.Poller, error) {
	c := a.config.SNMP
	return snmp.NewPoller(snmp.Options{
		Community: c.Community,
		Version:   c.Version,
		Port:      c.Port,
		Timeout:   c.Timeout,
		Retries:   c.Retries,
		Threshold: c.Threshold,
	}, a.logger.WithField("component", "snmp"))
}

// Archiver builds an archiver for rawURL, or archive.url when rawURL is empty.
// The caller closes the returned uploader through Archiver.Uploader.
func (a *App) Archiver(ctx context.Context, rawURL string) (*archive.Archiver, error) {
	if rawURL == "" {
		rawURL = a.config.Archive.URL
	}
	if rawURL == "" {
		return nil, opserrors.ConfigurationError("no archive destination").
			WithSolutions(
				"Set archive.url in config.yaml",
				"Or pass --to s3://bucket/prefix",
			)
	}
	loc, err := archive.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	store, err := a.Store()
	if err != nil {
		return nil, err
	}
	uploader, err := archive.NewUploader(ctx, loc)
	if err != nil {
		return nil, err
	}
	return &archive.Archiver{
		Store:    store,
		Uploader: uploader,
		Location: loc,
		Logger:   a.logger.WithField("component", "archive"),
	}, nil
}

// Close releases the journal and idle HTTP connections
func (a *App) Close() error {
	a.pool.CloseIdle()
	if a.journal != nil {
		err := a.journal.Close()
		a.journal = nil
		return err
	}
	return nil
}
