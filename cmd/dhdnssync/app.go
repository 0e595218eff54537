package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gitlab.bluewillows.net/root/dhdnssync/internal/config"
	"gitlab.bluewillows.net/root/dhdnssync/internal/credentials"
	"gitlab.bluewillows.net/root/dhdnssync/internal/health"
	"gitlab.bluewillows.net/root/dhdnssync/internal/history"
	"gitlab.bluewillows.net/root/dhdnssync/internal/metrics"
	"gitlab.bluewillows.net/root/dhdnssync/internal/reconciler"
	"gitlab.bluewillows.net/root/dhdnssync/internal/resolver"
	"gitlab.bluewillows.net/root/dhdnssync/internal/scheduler"
	"gitlab.bluewillows.net/root/dhdnssync/pkg/httputil"
	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
	"gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"
)

// ErrLocked is returned when another instance holds the lock file.
var ErrLocked = errors.New("another dhdnssync instance is already running")

// app carries the process-wide dependencies shared by every command.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	keyStore   credentials.Store

	// httpClient is built once and shared by the provider client and the
	// resolver for the life of the process.
	httpClient *http.Client
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		keyStore: credentials.DefaultStore(),
	}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dhdnssync",
		Short: "Keep DreamHost DNS records in sync with a declared set",
		Long: `dhdnssync reconciles DNS records hosted at DreamHost against the records
declared in its configuration file.

EnsureExists records are created once with a fixed value. PublicIp records
follow the host's current public address, discovered through HTTP or DNS
echo services.

Quick start:
  dhdnssync auth login                 # Store your DreamHost API key
  dhdnssync validate -c config.yml     # Check the configuration
  dhdnssync once --dry-run -c config.yml
  dhdnssync run -c config.yml          # Reconcile every update interval`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDaemon(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.GetConfigFilePath(),
		"Path to the YAML or TOML config file (env "+config.EnvPrefix+"CONFIG)")

	cmd.AddCommand(a.runCommand())
	cmd.AddCommand(a.onceCommand())
	cmd.AddCommand(a.recordsCommand())
	cmd.AddCommand(a.publicIPCommand())
	cmd.AddCommand(a.validateCommand())
	cmd.AddCommand(a.historyCommand())
	cmd.AddCommand(a.authCommand())

	return cmd
}

// loadConfig loads configuration with the keyring as API key fallback.
func (a *app) loadConfig(opts ...config.LoadOption) (*config.Config, error) {
	opts = append(opts, config.WithKeyLookup(func() (string, error) {
		return credentials.Lookup(a.keyStore, credentials.DefaultAccount)
	}))

	cfg, err := config.Load(a.configPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// sharedHTTPClient returns the process-wide HTTP client, building it on
// first use. The client timeout bounds provider calls; echo lookups carry
// their own shorter deadline.
func (a *app) sharedHTTPClient(cfg *config.Config, logger *slog.Logger) *http.Client {
	if a.httpClient == nil {
		a.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout:   cfg.ProviderTimeout,
			UserAgent: "dhdnssync/" + Version,
			Logger:    logger,
		})
	}
	return a.httpClient
}

func (a *app) providerClient(cfg *config.Config, logger *slog.Logger) *dreamhost.Client {
	return dreamhost.NewClient(cfg.APIKey,
		dreamhost.WithBaseURL(cfg.ProviderURL),
		dreamhost.WithHTTPClient(a.sharedHTTPClient(cfg, logger)),
		dreamhost.WithLogger(logger),
	)
}

func (a *app) addressResolver(cfg *config.Config, logger *slog.Logger) (*resolver.Resolver, error) {
	family, err := resolver.ParseFamily(cfg.PublicIPFamily)
	if err != nil {
		return nil, err
	}

	res, err := resolver.New(cfg.PublicIPEndpoints,
		resolver.WithHTTPClient(a.sharedHTTPClient(cfg, logger)),
		resolver.WithFamily(family),
		resolver.WithLookupTimeout(cfg.PublicIPTimeout),
		resolver.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating address resolver: %w", err)
	}
	return res, nil
}

// reconcilerFor builds the reconciler and, when history is enabled, the
// store it records to. The returned cleanup must always be called.
func (a *app) reconcilerFor(cfg *config.Config, logger *slog.Logger, dryRun bool) (*reconciler.Reconciler, func(), error) {
	res, err := a.addressResolver(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []reconciler.Option{
		reconciler.WithLogger(logger),
		reconciler.WithConfig(reconciler.Config{DryRun: cfg.DryRun || dryRun}),
	}

	cleanup := func() {}
	if cfg.HistoryPath != "" {
		store, err := history.OpenAt(cfg.HistoryPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, reconciler.WithRecorder(store))
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing history store", slog.String("error", err.Error()))
			}
		}
	}

	rec := reconciler.New(a.providerClient(cfg, logger), res, cfg.Zones, opts...)
	return rec, cleanup, nil
}

// acquireLock takes the configured lock file, if any.
func acquireLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", ErrLocked, path)
	}
	return func() { _ = fl.Unlock() }, nil
}

// runDaemon reconciles on every interval until ctx is canceled, serving
// health and metrics alongside.
func (a *app) runDaemon(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(a.stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("dhdnssync starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.Bool("dry_run", cfg.DryRun),
		slog.Duration("update_interval", cfg.UpdateInterval),
		slog.String("api_key_source", cfg.APIKeySource),
	)

	unlock, err := acquireLock(cfg.LockFile)
	if err != nil {
		return err
	}
	defer unlock()

	rec, cleanup, err := a.reconcilerFor(cfg, logger, false)
	if err != nil {
		return err
	}
	defer cleanup()

	sched := scheduler.New(rec,
		scheduler.WithConfig(scheduler.Config{Interval: cfg.UpdateInterval}),
		scheduler.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if cfg.HealthEnabled {
		healthServer := health.New(cfg.HealthPort, health.WithLogger(logger))
		healthServer.RegisterChecker("scheduler", func(context.Context) error {
			return sched.Ready()
		})
		healthServer.RegisterDegradedChecker("last_cycle", func(context.Context) (bool, string) {
			if err := sched.Healthy(); err != nil {
				return true, err.Error()
			}
			return false, ""
		})
		g.Go(func() error {
			return healthServer.Run(gctx)
		})
	}

	logger.Info("dhdnssync initialized",
		slog.Int("zones", len(cfg.Zones)),
		slog.Int("records", zone.CountRecords(rec.Zones())),
		slog.Bool("health_enabled", cfg.HealthEnabled),
		slog.Int("health_port", cfg.HealthPort),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("dhdnssync shutdown complete", slog.Int("cycles", sched.Cycles()))
	return nil
}
