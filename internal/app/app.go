// Package app builds the long-lived services of one relay invocation from
// configuration, acting as a small dependency injection container.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/diftar2energyid/internal/config"
	"github.com/JakeFAU/diftar2energyid/internal/energyid"
	"github.com/JakeFAU/diftar2energyid/internal/id/uuid"
	"github.com/JakeFAU/diftar2energyid/internal/logging"
	"github.com/JakeFAU/diftar2energyid/internal/metrics"
	"github.com/JakeFAU/diftar2energyid/internal/portal"
	"github.com/JakeFAU/diftar2energyid/internal/relay"
	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// App holds the configuration, logger and metrics shared by the commands.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewApp loads the configuration at path and initialises logging and metrics.
// It fails fast; a missing config file is fatal.
func NewApp(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	recorder, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	logger.Info("Settings loaded", zap.Int("destinations", len(cfg.Destinations)))
	return &App{cfg: cfg, logger: logger, metrics: recorder}, nil
}

// GetLogger returns the shared logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// RowSource returns a portal client for the configured account.
func (a *App) RowSource() relay.RowSource {
	return portal.New(
		portal.Config{
			BaseURL:   a.cfg.Diftar.BaseURL,
			UserAgent: a.cfg.HTTP.UserAgent,
			Timeout:   a.cfg.Timeout(),
			Strict:    a.cfg.Diftar.StrictLogin,
		},
		portal.Credentials{Identifier: a.cfg.Diftar.Username, Secret: a.cfg.Diftar.Password},
		a.logger.Named("portal"),
	)
}

// Runner assembles the relay pipeline.
func (a *App) Runner(dryRun bool) *relay.Runner {
	publisher := energyid.New(
		energyid.Config{UserAgent: a.cfg.HTTP.UserAgent, Timeout: a.cfg.Timeout(), DryRun: dryRun},
		Destinations(a.cfg),
		a.logger.Named("energyid"),
	)
	return relay.New(
		relay.Config{PushgatewayURL: a.cfg.Metrics.PushgatewayURL, Job: a.cfg.Metrics.Job},
		a.RowSource(),
		publisher,
		a.metrics,
		uuid.New(),
		a.logger,
	)
}

// Destinations maps the configured category sections onto webhook destinations.
func Destinations(cfg config.Config) energyid.DestinationMap {
	dests := energyid.DestinationMap{}
	for _, category := range waste.Categories() {
		if d, ok := cfg.Destination(category); ok {
			dests[category] = energyid.Destination{URL: d.URL, Properties: d.Properties}
		}
	}
	return dests
}

// Close flushes the logger.
func (a *App) Close() {
	// Syncing stderr fails on some platforms; nothing useful can be done about it.
	_ = a.logger.Sync()
}
