// Package app wires configuration into the collaborators used by the CLI.
package app

import (
	"time"

	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/clients"
	"github.com/yairfalse/ilmari/internal/credentials"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/internal/workflow"
	"github.com/yairfalse/ilmari/pkg/config"
)

type AppFactory struct {
	// Clock stamps snapshots; time.Now when nil
	Clock func() time.Time
}

func NewAppFactory() *AppFactory {
	return &AppFactory{}
}

// Create validates cfg and builds an App. Nothing touches the network or the
// disk until a command asks for it.
func (f *AppFactory) Create(cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, opserrors.ConfigurationError("no configuration loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, opserrors.Wrap(opserrors.KindConfiguration, err, "invalid configuration").
			WithSolutions("Check config.yaml or the ILMARI_* environment variables")
	}
	if log == nil {
		log = logger.Nop()
	}
	clock := f.Clock
	if clock == nil {
		clock = time.Now
	}

	commands := channel.NewCommandSet(cfg.Commands)
	resolver := credentials.NewTypeResolver(cfg.Devices.DefaultType, cfg.Devices.Types, cfg.Devices.TypePrefixes)

	log.WithFields(map[string]interface{}{
		"golden_dir":   cfg.Storage.GoldenDir,
		"device_types": commands.Types(),
		"min_interval": cfg.Pacing.MinInterval.String(),
	}).Debug("Created app")

	return &App{
		config:   cfg,
		logger:   log,
		commands: commands,
		resolver: resolver,
		pacer:    workflow.NewPacer(cfg.Pacing.MinInterval),
		pool:     clients.NewHTTPClientPool(clients.DefaultTimeout),
		clock:    clock,
	}, nil
}
