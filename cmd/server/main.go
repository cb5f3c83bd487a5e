package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"hydrogen.dev/dbsubsystem/internal/bundle"
	"hydrogen.dev/dbsubsystem/internal/config"
	"hydrogen.dev/dbsubsystem/internal/database"
	"hydrogen.dev/dbsubsystem/internal/logging"
	"hydrogen.dev/dbsubsystem/internal/shutdown"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	fmt.Printf("Starting Hydrogen database subsystem v%s\n", version)
	fmt.Printf("Build: %s, commit: %s\n", buildTime, gitCommit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logLevel := logging.INFO
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DEBUG
	}
	logger := logging.NewLoggerWithName("hydrogen")
	logger.SetLevel(logLevel)

	sub := database.NewSubsystem()
	if err := registerAdapters(sub.Registry); err != nil {
		log.Fatalf("failed to register engine adapters: %v", err)
	}
	database.SetDefault(sub)

	coordinator := shutdown.NewSignalCoordinator()
	coordinator.Start()

	ctx, cancel := context.WithCancel(context.Background())
	coordinator.OnShutdown(cancel)

	reader := bundle.NewMemoryReader()

	leads := make(map[string]*database.DatabaseQueue, len(cfg.Databases))
	adapters := make(map[string]database.EngineAdapter, len(cfg.Databases))
	for name, dbCfg := range cfg.Databases {
		lead, adapter, err := startDatabase(ctx, sub, logger, name, dbCfg, cfg.Migrations[name], reader)
		if err != nil {
			logger.Error("failed to start database %s: %v", name, err)
			continue
		}
		leads[name] = lead
		adapters[name] = adapter
	}

	logger.Info("hydrogen subsystem running, waiting for shutdown signal")
	<-coordinator.Done()
	logger.Info("shutdown requested, draining queues")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, shutdownCancel := shutdown.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	sub.Manager.Shutdown()
	drainLeads(shutdownCtx, logger, leads, adapters)

	logger.Info("hydrogen subsystem exited cleanly")
}

// registerAdapters installs the full closed set of engine adapters into
// the registry: the subsystem always knows about every engine kind, even
// when the configured databases only use a subset of them.
func registerAdapters(registry *database.EngineRegistry) error {
	return database.RegisterDefaultAdapters(registry)
}

// startDatabase builds a Lead queue plus its typed worker children for one
// configured database, validates its migration config, and starts the
// heartbeat loop that owns the persistent connection.
func startDatabase(ctx context.Context, sub *database.Subsystem, logger *logging.Logger, name string, dbCfg config.DatabaseConfig, migCfg config.MigrationConfig, reader bundle.Reader) (*database.DatabaseQueue, database.EngineAdapter, error) {
	engineKind := dbCfg.EngineKind()
	adapter, ok := sub.Registry.GetByKind(engineKind)
	if !ok {
		return nil, nil, fmt.Errorf("no adapter registered for engine %s", engineKind)
	}

	connCfg := dbCfg.ToConnectionConfig()
	connString, err := adapter.BuildConnectionString(connCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building connection string: %w", err)
	}

	lead, err := database.NewLeadQueue(name, connString, engineKind)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing lead queue: %w", err)
	}
	if err := sub.Manager.Register(lead); err != nil {
		return nil, nil, fmt.Errorf("registering lead queue: %w", err)
	}

	for _, qt := range []database.QueueType{database.QueueFast, database.QueueMedium, database.QueueSlow, database.QueueCache} {
		worker, err := database.NewWorkerQueue(name, connString, engineKind, qt)
		if err != nil {
			return nil, nil, fmt.Errorf("constructing %s worker queue: %w", qt, err)
		}
		if err := lead.SpawnChild(worker); err != nil {
			return nil, nil, fmt.Errorf("spawning %s worker queue: %w", qt, err)
		}
	}

	dbMigCfg := &database.MigrationConfig{
		AutoMigration: migCfg.AutoMigrate,
		Migrations:    migCfg.Source,
		TestMigration: migCfg.AutoMigrate,
		EngineType:    dbCfg.Engine,
	}
	if err := database.ValidateMigrations(ctx, lead, dbMigCfg, true, reader); err != nil {
		logger.Warn("%s: migration config did not validate: %v", lead.Designator, err)
	}

	go lead.RunHeartbeat(ctx, adapter, connCfg, logger)
	logger.Info("started database %s (%s) with 4 worker queues", name, engineKind)
	return lead, adapter, nil
}

// drainLeads disconnects every Lead queue's persistent connection, bounded
// by ctx's deadline.
func drainLeads(ctx context.Context, logger *logging.Logger, leads map[string]*database.DatabaseQueue, adapters map[string]database.EngineAdapter) {
	for name, lead := range leads {
		if lead.PersistentConn == nil {
			continue
		}
		adapter, ok := adapters[name]
		if !ok {
			continue
		}
		if err := adapter.Disconnect(ctx, lead.PersistentConn); err != nil {
			logger.Warn("disconnecting %s: %v", name, err)
		}
	}
}
