package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"hydrogen.dev/dbsubsystem/internal/database"
)

// DatabaseConfig is one configured database entry: its connection
// parameters plus the engine kind used to pick an adapter from the
// registry. The field name mirrors database.ConnectionConfig but stays a
// distinct mapstructure-tagged type so config file shape and the core's
// runtime type can evolve independently.
type DatabaseConfig struct {
	Engine           string `mapstructure:"engine"` // postgresql, mysql, sqlite, db2
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	Database         string `mapstructure:"dbname"`
	Username         string `mapstructure:"user"`
	Password         string `mapstructure:"password"`
	ConnectionString string `mapstructure:"connection_string"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	SSL              bool   `mapstructure:"ssl"`
	SSLCertPath      string `mapstructure:"ssl_cert_path"`
	SSLKeyPath       string `mapstructure:"ssl_key_path"`
	CacheCapacity    int    `mapstructure:"cache_capacity"`
}

// EngineKind resolves the configured engine name to a database.EngineKind.
func (d DatabaseConfig) EngineKind() database.EngineKind {
	switch d.Engine {
	case "postgresql", "postgres":
		return database.EnginePostgreSQL
	case "mysql":
		return database.EngineMySQL
	case "sqlite", "sqlite3":
		return database.EngineSQLite
	case "db2":
		return database.EngineDB2
	default:
		return database.EngineUnknown
	}
}

// ToConnectionConfig adapts the config-file shape to the core's runtime
// ConnectionConfig.
func (d DatabaseConfig) ToConnectionConfig() *database.ConnectionConfig {
	return &database.ConnectionConfig{
		Host:             d.Host,
		Port:             d.Port,
		Database:         d.Database,
		Username:         d.Username,
		Password:         d.Password,
		ConnectionString: d.ConnectionString,
		TimeoutSeconds:   d.TimeoutSeconds,
		SSL:              d.SSL,
		SSLCertPath:      d.SSLCertPath,
		SSLKeyPath:       d.SSLKeyPath,
		CacheCapacity:    d.CacheCapacity,
	}
}

// MigrationConfig configures the bootstrap/migration pipeline for one
// database entry.
type MigrationConfig struct {
	Source      string `mapstructure:"source"` // filesystem path, or "PAYLOAD:<name>"
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// LoggingConfig carries the internal/logging settings. cmd/server reads
// only Level ("debug" selects DEBUG, anything else INFO); Output is not
// read by any command.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// ServerConfig carries the address the outer HTTP/API surface binds to.
// The database core does not consume this directly, but cmd/server does,
// and it is config-file-adjacent enough to live alongside it.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// AppConfig is the root application configuration: server address,
// logging, and one entry per configured database plus its migration
// settings.
type AppConfig struct {
	Version    string                      `mapstructure:"version"`
	Server     ServerConfig                `mapstructure:"server"`
	Logging    LoggingConfig               `mapstructure:"logging"`
	Databases  map[string]DatabaseConfig   `mapstructure:"databases"`
	Migrations map[string]MigrationConfig `mapstructure:"migrations"`
}

// Load loads AppConfig from file and environment variables, following the
// same stage order as the rest of the pack's viper-based services:
// defaults, config file discovery, environment binding, unmarshal,
// validate.
func Load() (*AppConfig, error) {
	setDefaults()

	configPath := findConfigFile()
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config/")
		viper.AddConfigPath("./")
		viper.AddConfigPath("$HOME/.config/hydrogen/")
		viper.AddConfigPath("/etc/hydrogen/")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HYDROGEN")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		fmt.Println("no config file found, using defaults and environment variables")
	} else {
		fmt.Printf("using config file: %s\n", viper.ConfigFileUsed())
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("version", "1.0.0")

	viper.SetDefault("server.address", "0.0.0.0:8080")
	viper.SetDefault("server.shutdown_timeout", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "stdout")
}

func findConfigFile() string {
	if configPath := os.Getenv("HYDROGEN_CONFIG"); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	locations := []string{
		"./config/config.yaml",
		"./config.yaml",
		"$HOME/.config/hydrogen/config.yaml",
		"/etc/hydrogen/config.yaml",
	}
	for _, location := range locations {
		expanded := os.ExpandEnv(location)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(cfg.Databases) == 0 {
		return fmt.Errorf("at least one database must be configured")
	}
	for name, db := range cfg.Databases {
		if db.EngineKind() == database.EngineUnknown {
			return fmt.Errorf("database %q: unrecognized engine %q", name, db.Engine)
		}
		if db.ConnectionString == "" && db.Database == "" {
			return fmt.Errorf("database %q: connection_string or dbname is required", name)
		}
	}
	return nil
}

// CreateDefaultConfig writes a starter config file to path, for first-run
// bootstrapping the same way the rest of the pack's config packages do.
func CreateDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := `version: "1.0.0"

server:
  address: "0.0.0.0:8080"
  shutdown_timeout: 30

logging:
  level: "info"
  output: "stdout"

databases:
  primary:
    engine: "postgresql"
    host: "localhost"
    port: 5432
    dbname: "hydrogen"
    user: "hydrogen"
    password: "" # set via HYDROGEN_DATABASES_PRIMARY_PASSWORD
    timeout_seconds: 10
    cache_capacity: 1000

migrations:
  primary:
    source: "./migrations/primary"
    auto_migrate: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetEnvOrDefault returns the named environment variable, or defaultValue
// if it is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
