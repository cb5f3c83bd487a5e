package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hydrogen.dev/dbsubsystem/internal/bundle"
)

// MigrationConfig is the slice of the external AppConfig the migration
// runner consumes. The full configuration loader lives outside this
// package; callers resolve a database's migration settings from it and
// pass the resolved struct in here.
type MigrationConfig struct {
	AutoMigration bool
	Migrations    string // "" means not configured; "PAYLOAD:<name>" names a bundle prefix; anything else is a filesystem directory
	TestMigration bool
	EngineType    string
}

const payloadPrefix = "PAYLOAD:"

// NormalizeEngineName maps the assorted spellings a config file might use
// for an engine onto the canonical names the registry and adapters use.
func NormalizeEngineName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql":
		return "postgresql"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "db2":
		return "db2"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// ValidateMigrations checks that a Lead queue's migration configuration is
// coherent before anything is applied. Disabled auto-migration and an
// unconfigured migrations source are both treated as success, not
// failure: there is simply nothing to validate.
func ValidateMigrations(ctx context.Context, queue *DatabaseQueue, migCfg *MigrationConfig, databaseConfigExists bool, reader bundle.Reader) error {
	if queue == nil {
		return fmt.Errorf("%w: nil queue", ErrParameterInvalid)
	}
	if !queue.IsLead {
		return fmt.Errorf("database: migrations validate only against a lead queue")
	}
	if migCfg == nil {
		return fmt.Errorf("%w: nil migration config", ErrParameterInvalid)
	}
	if !databaseConfigExists {
		return fmt.Errorf("%w: no database config entry for %q", ErrConfigMissing, queue.DatabaseName)
	}
	if !migCfg.AutoMigration {
		return nil
	}
	if migCfg.Migrations == "" {
		return nil
	}
	return validateMigrationsSource(ctx, migCfg.Migrations, reader)
}

func validateMigrationsSource(ctx context.Context, source string, reader bundle.Reader) error {
	if strings.HasPrefix(source, payloadPrefix) {
		name := strings.TrimPrefix(source, payloadPrefix)
		if name == "" {
			return fmt.Errorf("database: empty payload prefix in migrations config")
		}
		if reader == nil {
			return fmt.Errorf("database: payload migrations configured but no bundle reader available")
		}
		files, err := reader.ListFiles(ctx, name)
		if err != nil {
			return fmt.Errorf("database: listing payload prefix %q: %w", name, err)
		}
		if len(files) == 0 {
			return fmt.Errorf("database: no payload files found for prefix %q", name)
		}
		return nil
	}

	if source == "/" {
		return fmt.Errorf("database: migrations path %q is not a valid directory", source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("database: migrations path %q: %w", source, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("database: migrations path %q is not a directory", source)
	}
	base := filepath.Base(source)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fmt.Errorf("database: migrations path %q has no valid basename", source)
	}
	return nil
}

// ExecuteAutoMigration applies every migration file in order against conn.
// It re-validates the migration source first, then additionally requires
// a live connection, TestMigration enabled, and a configured engine type.
func ExecuteAutoMigration(ctx context.Context, queue *DatabaseQueue, conn *ConnectionHandle, adapter EngineAdapter, migCfg *MigrationConfig, databaseConfigExists bool, reader bundle.Reader) error {
	if conn == nil {
		return fmt.Errorf("%w: nil connection", ErrParameterInvalid)
	}
	if migCfg == nil || !migCfg.TestMigration {
		return fmt.Errorf("database: test_migration is not enabled")
	}
	if migCfg.EngineType == "" {
		return fmt.Errorf("%w: no engine type configured for migrations", ErrConfigMissing)
	}
	if err := ValidateMigrations(ctx, queue, migCfg, databaseConfigExists, reader); err != nil {
		return err
	}

	engine := NormalizeEngineName(migCfg.EngineType)
	files, err := migrationFiles(ctx, migCfg.Migrations, reader)
	if err != nil {
		return err
	}

	for _, f := range files {
		contents, err := readMigrationFile(ctx, migCfg.Migrations, f, reader)
		if err != nil {
			return fmt.Errorf("database: reading migration %q for engine %s: %w", f, engine, err)
		}
		req := &QueryRequest{SQL: string(contents), Database: queue.DatabaseName}
		result, err := adapter.Execute(ctx, conn, req)
		if err != nil || result == nil || !result.Success {
			return fmt.Errorf("%w: migration %q failed: %v", ErrBackendProtocol, f, err)
		}
	}
	return nil
}

func migrationFiles(ctx context.Context, source string, reader bundle.Reader) ([]string, error) {
	if strings.HasPrefix(source, payloadPrefix) {
		name := strings.TrimPrefix(source, payloadPrefix)
		return reader.ListFiles(ctx, name)
	}
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func readMigrationFile(ctx context.Context, source, name string, reader bundle.Reader) ([]byte, error) {
	if strings.HasPrefix(source, payloadPrefix) {
		prefix := strings.TrimPrefix(source, payloadPrefix)
		return reader.ReadFile(ctx, prefix, name)
	}
	return os.ReadFile(filepath.Join(source, name))
}
