package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antigravity-dev/agencyos/internal/api"
	"github.com/antigravity-dev/agencyos/internal/collect"
	"github.com/antigravity-dev/agencyos/internal/commitments"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/health"
	"github.com/antigravity-dev/agencyos/internal/metrics"
	"github.com/antigravity-dev/agencyos/internal/notify"
	"github.com/antigravity-dev/agencyos/internal/orchestrator"
	"github.com/antigravity-dev/agencyos/internal/snapshot"
	"github.com/antigravity-dev/agencyos/internal/store"
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func buildCollectors(cfg *config.Config) []collect.Collector {
	get := func(name string) config.Collector { return cfg.Collectors[name] }

	return []collect.Collector{
		collect.NewTaskCollector(collect.DefaultTaskFetcher(get("tasks").APIKey)),
		collect.NewCalendarCollector(collect.DefaultCalendarFetcher(get("calendar").APIKey)),
		collect.NewEmailCollector(collect.DefaultEmailFetcher(get("gmail").APIKey)),
		collect.NewAsanaCollector(collect.DefaultAsanaFetcher(get("asana").APIKey)),
		collect.NewInvoiceCollector(collect.DefaultInvoiceFetcher(get("xero").APIKey)),
	}
}

func main() {
	configPath := flag.String("config", "agencyos.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	dryRun := flag.Bool("dry-run", false, "run a single cycle, including collectors, then exit without starting the API server")
	dryRunNoCollect := flag.Bool("dry-run-no-collect", false, "run a single cycle against the store as it stands, skipping COLLECT, then exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("agencyos starting", "config", *configPath)

	cfgManager, err := config.LoadManager(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger = configureLogger(cfg.General.LogLevel, *dev)
	slog.SetDefault(logger)

	lockPath := config.ExpandHome(cfg.General.LockFile)
	lockFile, err := health.AcquireFlock(lockPath)
	if err != nil {
		logger.Error("failed to acquire lock", "path", lockPath, "error", err)
		os.Exit(1)
	}
	defer health.ReleaseFlock(lockFile)

	dbPath := config.ExpandHome(cfg.Store.DBPath)
	st, err := store.Open(dbPath, cfg.Store.BusyTimeout.Duration)
	if err != nil {
		logger.Error("failed to open store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	reg := metrics.New()

	runner := collect.NewRunner(st, logger.With("component", "collect"), buildCollectors(cfg)...)
	runner.Metrics = reg

	writer := snapshot.NewWriter(cfg.Snapshot.OutputDir, cfg.Snapshot.HistoryRetain)
	notifier := notify.New(cfg.Notify, logger.With("component", "notify"))
	extractor := commitments.New(cfg.Commitments, logger.With("component", "commitments"))

	orch := orchestrator.New(cfgManager, st, runner, writer, reg, notifier, extractor, logger.With("component", "orchestrator"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *dryRun || *dryRunNoCollect {
		logger.Info("running single cycle", "skip_collect", *dryRunNoCollect)
		if err := orch.RunOnce(ctx, *dryRunNoCollect); err != nil {
			logger.Error("dry run cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info("dry run complete")
		return
	}

	go orch.Start(ctx)

	apiSrv, err := api.NewServer(cfg.API, st, writer, logger.With("component", "api"))
	if err != nil {
		logger.Error("failed to create api server", "error", err)
		os.Exit(1)
	}
	defer apiSrv.Close()

	go func() {
		if err := apiSrv.Start(ctx); err != nil {
			logger.Error("api server error", "error", err)
		}
	}()

	logger.Info("agencyos running", "bind", cfg.API.Bind, "cycle_interval", cfg.General.CycleInterval.Duration)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	shutdownStart := time.Now()
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("agencyos stopped", "shutdown_duration", time.Since(shutdownStart).String())
}
