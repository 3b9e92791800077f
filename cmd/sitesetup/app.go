package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesetup/internal/config"
	"sitesetup/internal/contact"
	"sitesetup/internal/demo"
	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/platform/local"
	"sitesetup/internal/plugins"
	"sitesetup/internal/store"
	"sitesetup/internal/theme"
	"sitesetup/internal/wizard"

	"go.uber.org/zap"
)

// app is every component wired over one store and one host.
type app struct {
	cfg        *config.Config
	store      *store.LocalStore
	host       *local.Host
	catalog    plugins.Catalog
	installer  *plugins.Installer
	writer     *theme.Writer
	customizer *theme.Customizer
	importer   *demo.Importer
	contact    *contact.Service
	wizard     *wizard.Service
}

// loadConfig reads and validates the config file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func loggingSettings(cfg *config.Config) logging.Settings {
	return logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat(),
	}
}

// openApp loads the config, opens the store and wires the components.
func openApp(ctx context.Context, path string) (*app, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.LogsDir(), loggingSettings(cfg)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit log unavailable", zap.Error(err))
	}

	st, err := store.NewLocalStoreWithDriver(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	dir := local.NewDirectory(cfg.Platform.DirectoryURL, cfg.GetHTTPTimeout(), cfg.Platform.DownloadLimit)
	host := local.NewHost(st, dir, cfg.Platform.PluginsDir)
	if err := seedAdminEmail(ctx, host, cfg.Platform.AdminEmail); err != nil {
		st.Close()
		return nil, err
	}

	manifest := demo.DefaultManifest()
	if cfg.Demo.ManifestPath != "" {
		if manifest, err = demo.LoadManifest(cfg.Demo.ManifestPath); err != nil {
			st.Close()
			return nil, err
		}
	}
	importer := demo.NewImporter(host, manifest)
	importer.Transactional = cfg.Demo.Transactional

	var mailer contact.Mailer
	if cfg.MailEnabled() {
		mailer = contact.NewSMTPMailer(cfg.Mail)
	} else {
		logger.Info("Mail disabled, contact submissions are stored only")
	}

	catalog := plugins.DefaultCatalog()
	installer := plugins.NewInstaller(host, catalog)
	builder, _ := catalog.Lookup(plugins.PageBuilderKey)
	writer := theme.NewWriter(host, builder.FileIdentifier)

	logger.Debug("Components wired",
		zap.String("db", cfg.Database.Path),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("catalog", len(catalog)),
		zap.Bool("transactional_import", cfg.Demo.Transactional))

	return &app{
		cfg:        cfg,
		store:      st,
		host:       host,
		catalog:    catalog,
		installer:  installer,
		writer:     writer,
		customizer: theme.NewCustomizer(host, writer),
		importer:   importer,
		contact:    contact.NewService(st, host, mailer, cfg.Mail.To),
		wizard:     wizard.NewService(host, installer.Checker()),
	}, nil
}

// seedAdminEmail stores the configured admin email unless the host has one.
func seedAdminEmail(ctx context.Context, opts platform.OptionStore, email string) error {
	if email == "" {
		return nil
	}
	if _, ok, err := opts.GetOption(ctx, platform.OptionAdminEmail); err != nil || ok {
		return err
	}
	return opts.SetOption(ctx, platform.OptionAdminEmail, email)
}

func (a *app) bulkOptions() plugins.BulkOptions {
	return plugins.BulkOptions{Concurrency: a.cfg.Bulk.Concurrency, Timeout: a.cfg.GetBulkTimeout()}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
	logging.CloseAudit()
	logging.CloseAll()
}

// adminContext returns a context acting as the CLI administrator, cancelled
// on SIGINT/SIGTERM or after d. d <= 0 means no deadline.
func adminContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cancel := context.CancelFunc(func() {})
	if d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
	}
	ctx = platform.WithUser(ctx, platform.User{Name: cliUser, Role: platform.RoleAdministrator})
	return ctx, func() {
		cancel()
		stop()
	}
}

// withApp runs fn with an open app under an administrator context bounded
// by --timeout.
func withApp(fn func(ctx context.Context, a *app) error) error {
	return withAppFor(timeout, fn)
}

func withAppFor(d time.Duration, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := adminContext(d)
	defer cancel()

	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
