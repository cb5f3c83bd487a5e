// Command migrate is a standalone CLI for validating and applying
// migration configuration against a configured database, outside of the
// long-running server process. It shares the same config file and
// adapter registry as cmd/server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hydrogen.dev/dbsubsystem/internal/bundle"
	"hydrogen.dev/dbsubsystem/internal/config"
	"hydrogen.dev/dbsubsystem/internal/database"
)

var (
	configFile string
	dbName     string
	timeout    int
)

var (
	version = "1.0.0"
)

func main() {
	rootCmd := createRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Hydrogen migration CLI",
		Long:    `Validate and apply migration configuration for a Hydrogen database entry, without starting the server.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&dbName, "database", "d", "", "Name of the configured database entry to target")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "Operation timeout in seconds")
	bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createApplyCommand())

	return rootCmd
}

func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
}

func createValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate migration configuration for a database without connecting",
		Args:  cobra.NoArgs,
		RunE:  runValidateCommand,
	}
	return cmd
}

func createApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Connect to a database and apply its configured migrations",
		Args:  cobra.NoArgs,
		RunE:  runApplyCommand,
	}
	return cmd
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	lead, dbCfg, migCfg, _, err := resolveTarget()
	if err != nil {
		return err
	}

	reader := bundle.NewMemoryReader()
	dbMigCfg := toDatabaseMigrationConfig(dbCfg, migCfg)
	if err := database.ValidateMigrations(cmd.Context(), lead, dbMigCfg, true, reader); err != nil {
		return fmt.Errorf("migration config invalid: %w", err)
	}

	fmt.Printf("database %q: migration config for engine %s is valid\n", dbName, dbCfg.Engine)
	return nil
}

func runApplyCommand(cmd *cobra.Command, args []string) error {
	lead, dbCfg, migCfg, adapter, err := resolveTarget()
	if err != nil {
		return err
	}

	connCfg := dbCfg.ToConnectionConfig()
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutDuration())
	defer cancel()

	conn, err := adapter.Connect(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("connecting to database %q: %w", dbName, err)
	}
	defer adapter.Disconnect(ctx, conn)

	reader := bundle.NewMemoryReader()
	dbMigCfg := toDatabaseMigrationConfig(dbCfg, migCfg)
	if err := database.ExecuteAutoMigration(ctx, lead, conn, adapter, dbMigCfg, true, reader); err != nil {
		return fmt.Errorf("applying migrations for %q: %w", dbName, err)
	}

	fmt.Printf("database %q: migrations applied\n", dbName)
	return nil
}

// resolveTarget loads the application configuration, resolves the named
// database entry, registers the adapter set, and builds a throwaway Lead
// queue to drive ValidateMigrations/ExecuteAutoMigration against.
func resolveTarget() (*database.DatabaseQueue, config.DatabaseConfig, config.MigrationConfig, database.EngineAdapter, error) {
	if dbName == "" {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("--database is required")
	}
	if configFile != "" {
		os.Setenv("HYDROGEN_CONFIG", configFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("loading config: %w", err)
	}

	dbCfg, ok := cfg.Databases[dbName]
	if !ok {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("no database entry named %q in config", dbName)
	}
	migCfg := cfg.Migrations[dbName]

	registry := database.NewEngineRegistry()
	if err := database.RegisterDefaultAdapters(registry); err != nil {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("registering adapters: %w", err)
	}

	engineKind := dbCfg.EngineKind()
	adapter, ok := registry.GetByKind(engineKind)
	if !ok {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("no adapter registered for engine %s", engineKind)
	}

	connString, err := adapter.BuildConnectionString(dbCfg.ToConnectionConfig())
	if err != nil {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("building connection string: %w", err)
	}

	lead, err := database.NewLeadQueue(dbName, connString, engineKind)
	if err != nil {
		return nil, config.DatabaseConfig{}, config.MigrationConfig{}, nil, fmt.Errorf("constructing lead queue: %w", err)
	}

	return lead, dbCfg, migCfg, adapter, nil
}

func toDatabaseMigrationConfig(dbCfg config.DatabaseConfig, migCfg config.MigrationConfig) *database.MigrationConfig {
	return &database.MigrationConfig{
		AutoMigration: true,
		Migrations:    migCfg.Source,
		TestMigration: true,
		EngineType:    dbCfg.Engine,
	}
}

func timeoutDuration() (d time.Duration) {
	return time.Duration(timeout) * time.Second
}
