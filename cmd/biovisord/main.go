package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/biovisor/biovisor/internal/config"
	"github.com/biovisor/biovisor/internal/hypervisor"
	"github.com/biovisor/biovisor/internal/scheduler"
	"github.com/biovisor/biovisor/internal/server"
	"github.com/biovisor/biovisor/internal/telemetry"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("biovisord %s (%s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting biovisord",
		zap.String("version", version),
		zap.String("commit", commit),
	)

	profile, err := cfg.Chassis.Build()
	if err != nil {
		logger.Fatal("Invalid chassis configuration", zap.Error(err))
	}
	logger.Info("Chassis profile loaded",
		zap.String("profile", profile.Name()),
		zap.Int("max_vms", profile.MaxVMs()),
		zap.Int64("ribosome_capacity", profile.RibosomeCapacity()),
		zap.Int64("memory_capacity", profile.MemoryCapacity()),
	)

	schedCfg := scheduler.Config{
		Quantum:     cfg.Scheduler.Quantum,
		MinSlice:    cfg.Scheduler.MinSlice,
		BurstFactor: cfg.Scheduler.BurstFactor,
	}

	recorder := telemetry.NewRecorder(cfg.Telemetry.HistorySize)
	metrics := telemetry.NewMetrics()

	opts := []hypervisor.Option{
		hypervisor.WithRecorder(recorder),
		hypervisor.WithMetrics(metrics),
	}
	if cfg.Watchdog.Enabled {
		opts = append(opts, hypervisor.WithWatchdog(hypervisor.WatchdogConfig{
			Enabled:     true,
			MissedTicks: cfg.Watchdog.MissedTicks,
		}))
	}

	hv := hypervisor.New(profile, schedCfg, cfg.Scheduler.TickInterval, logger, opts...)

	srv := server.New(cfg, hv, recorder, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hv.Run(ctx)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}

	logger.Info("biovisord stopped")
}

func setupLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
