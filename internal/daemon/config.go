// Package daemon holds tally's configuration: defaults, the TOML file in
// the data directory, an optional .env file, and environment overrides.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/tally-books/tally/internal/app/backup"
	"github.com/tally-books/tally/internal/app/bootstrap"
	"github.com/tally-books/tally/internal/app/catalog"
	"github.com/tally-books/tally/internal/app/ledger"
	"github.com/tally-books/tally/internal/domain"
)

// ConfigFile is the file name looked up inside the data directory.
const ConfigFile = "config.toml"

// Config is the full daemon configuration.
type Config struct {
	Store     StoreConfig      `toml:"store"`
	API       APIConfig        `toml:"api"`
	Currency  CurrencyConfig   `toml:"currency"`
	Catalog   catalog.Config   `toml:"catalog"`
	Ledger    ledger.Config    `toml:"ledger"`
	Backup    backup.Config    `toml:"backup"`
	Bootstrap bootstrap.Config `toml:"bootstrap"`
	Log       LogConfig        `toml:"log"`
}

// StoreConfig locates the database.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// Addr returns host:port.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CurrencyConfig holds the legacy redenomination pair.
type CurrencyConfig struct {
	Legacy domain.LegacyPair `toml:"legacy"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	home := Home()
	b := backup.DefaultConfig()
	b.Dir = filepath.Join(home, "backups")
	return Config{
		Store: StoreConfig{Dir: home},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8417,
			Metrics: true,
		},
		Currency:  CurrencyConfig{Legacy: domain.DefaultLegacyPair()},
		Catalog:   catalog.DefaultConfig(),
		Ledger:    ledger.DefaultConfig(),
		Backup:    b,
		Bootstrap: bootstrap.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Home returns the data directory: $TALLY_HOME, else ~/.tally.
func Home() string {
	if env := os.Getenv("TALLY_HOME"); env != "" {
		return env
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".tally"
	}
	return filepath.Join(dir, ".tally")
}

// Load builds the configuration. envFile is loaded first when given (a
// missing file is not an error); otherwise ./.env is tried. Then the TOML
// file at path, or $TALLY_HOME/config.toml when path is empty, is applied
// over the defaults, and finally environment overrides.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	if path == "" {
		path = filepath.Join(Home(), ConfigFile)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TALLY_DATA_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("TALLY_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TALLY_API_PORT: %w", err)
		}
		c.API.Port = port
	}
	if v := os.Getenv("TALLY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TALLY_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
	if v := os.Getenv("TALLY_ADMIN_PASSWORD"); v != "" {
		c.Bootstrap.AdminPassword = v
	}
	return nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Store.Dir == "" {
		return errors.New("config: store.dir is required")
	}
	if c.Catalog.LowStock < 0 {
		return fmt.Errorf("config: catalog.low_stock %d is negative", c.Catalog.LowStock)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("config: api.port %d out of range", c.API.Port)
	}
	l := c.Currency.Legacy
	if (l.Old != "" || l.New != "") && !l.Enabled() {
		return errors.New("config: currency.legacy needs old, new and a positive ratio")
	}
	if l.Enabled() && l.Old == l.New {
		return errors.New("config: currency.legacy old and new must differ")
	}
	return nil
}

// Save writes cfg as TOML to path.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
