// Package app wires configuration into a running ledger: store, engine,
// export orchestrator, sinks, metrics and the RPC service.
package app

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mmynk/ducats/internal/assets"
	"github.com/mmynk/ducats/internal/auth"
	"github.com/mmynk/ducats/internal/config"
	"github.com/mmynk/ducats/internal/csvcodec"
	"github.com/mmynk/ducats/internal/export"
	"github.com/mmynk/ducats/internal/ledger"
	"github.com/mmynk/ducats/internal/metrics"
	"github.com/mmynk/ducats/internal/service"
	"github.com/mmynk/ducats/internal/storage/sqlite"
)

// App holds the long-lived components of a process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    *sqlite.SQLiteStore
	Engine   *ledger.Engine
	Exports  *export.Orchestrator
	Loader   *assets.Loader
	Sinks    service.Sinks
	Tokens   *auth.TokenManager // nil when auth is disabled
}

// New opens the store and builds every component from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	engine := ledger.NewEngine(store,
		ledger.WithLogger(logger),
		ledger.WithMetrics(m),
	)
	exports := export.NewOrchestrator(engine,
		export.WithEncoder(csvcodec.NewEncoder(cfg.Location())),
		export.WithRecipients(cfg.MailTo),
		export.WithLogger(logger),
		export.WithMetrics(m),
	)

	sinks := service.Sinks{
		File:   export.NewDirSink(cfg.ExportDir),
		Client: export.NewPendingSink(export.KindFile),
	}
	if cfg.MailEnabled() {
		sinks.Mail = export.NewMailSink(&export.SMTPMailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, cfg.SMTP.From)
	}

	var tokens *auth.TokenManager
	if cfg.AuthEnabled() {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Store:    store,
		Engine:   engine,
		Exports:  exports,
		Loader:   assets.NewLoader(assets.NewFilePicker("", cfg.MaxReceiptBytes), assets.WithLogger(logger), assets.WithMetrics(m)),
		Sinks:    sinks,
		Tokens:   tokens,
	}, nil
}

// Service returns the RPC service backed by the app's components.
func (a *App) Service() *service.LedgerService {
	return service.NewLedgerService(a.Engine, a.Exports, a.Sinks, a.Logger)
}

// Close cancels exports still awaiting a sink and closes the store.
func (a *App) Close() error {
	a.Exports.Close()
	return a.Store.Close()
}
