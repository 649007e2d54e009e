package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/pkg/rag"
)

// EnvPrefix is prepended to every environment override, e.g. RAGCHAT_BASE_URL.
const EnvPrefix = "RAGCHAT"

type Config struct {
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	LogPretty bool   `json:"log_pretty"`
	ExportDir string `json:"export_dir"`
	API       struct {
		BaseURL        string `json:"base_url"`
		RequestTimeout int    `json:"request_timeout"`
		ProbeTimeout   int    `json:"probe_timeout"`
		ProbeInterval  int    `json:"probe_interval"`
	} `json:"api"`
	Store struct {
		Backend     string `json:"backend"`
		Path        string `json:"path"`
		RedisURL    string `json:"redis_url"`
		RedisPrefix string `json:"redis_prefix"`
		// RedisTimeout bounds dialing, reads and writes, in seconds.
		RedisTimeout int `json:"redis_timeout"`
	} `json:"store"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

// DefaultPath is ~/.ragchat/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".ragchat", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".ragchat"),
		LogLevel: "info",
	}
	cfg.API.BaseURL = rag.DefaultBaseURL
	cfg.API.RequestTimeout = 60
	cfg.API.ProbeTimeout = 5
	cfg.API.ProbeInterval = 30
	cfg.Store.Backend = state.BackendFile
	cfg.Store.RedisPrefix = "ragchat:"
	cfg.Store.RedisTimeout = 3
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:8787"
	return cfg
}

// envOverrides are read from RAGCHAT_* variables. Unset variables leave the
// field nil so the file value stands.
type envOverrides struct {
	DataDir        *string `envconfig:"DATA_DIR"`
	LogLevel       *string `envconfig:"LOG_LEVEL"`
	LogPretty      *bool   `envconfig:"LOG_PRETTY"`
	ExportDir      *string `envconfig:"EXPORT_DIR"`
	BaseURL        *string `envconfig:"BASE_URL"`
	RequestTimeout *int    `envconfig:"REQUEST_TIMEOUT"`
	StoreBackend   *string `envconfig:"STORE_BACKEND"`
	StorePath      *string `envconfig:"STORE_PATH"`
	RedisURL       *string `envconfig:"REDIS_URL"`
	RedisPrefix    *string `envconfig:"REDIS_PREFIX"`
	HTTPListen     *string `envconfig:"HTTP_LISTEN"`
}

// Load reads path, writing defaults there first if it does not exist, then
// applies RAGCHAT_* environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = defaults()
		err = Save(path, cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads path over the defaults without consulting the environment.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error. Variables already set are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	setString(&cfg.DataDir, env.DataDir)
	setString(&cfg.LogLevel, env.LogLevel)
	setString(&cfg.ExportDir, env.ExportDir)
	setString(&cfg.API.BaseURL, env.BaseURL)
	setString(&cfg.Store.Backend, env.StoreBackend)
	setString(&cfg.Store.Path, env.StorePath)
	setString(&cfg.Store.RedisURL, env.RedisURL)
	setString(&cfg.Store.RedisPrefix, env.RedisPrefix)
	setString(&cfg.HTTP.Listen, env.HTTPListen)
	if env.LogPretty != nil {
		cfg.LogPretty = *env.LogPretty
	}
	if env.RequestTimeout != nil {
		cfg.API.RequestTimeout = *env.RequestTimeout
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// StoreOptions translates the store section for state.Open.
func (c *Config) StoreOptions() state.Options {
	opts := state.Options{
		Backend: c.Store.Backend,
		DataDir: c.DataDir,
		Path:    c.Store.Path,
	}
	opts.Redis.URL = c.Store.RedisURL
	opts.Redis.Prefix = c.Store.RedisPrefix
	opts.Redis.ReadTimeout = c.Store.RedisTimeout
	opts.Redis.WriteTimeout = c.Store.RedisTimeout
	opts.Redis.DialTimeout = c.Store.RedisTimeout
	return opts
}

// RAG returns the backend client settings.
func (c *Config) RAG() *rag.Config {
	return &rag.Config{
		BaseURL: c.API.BaseURL,
		Timeout: seconds(c.API.RequestTimeout),
	}
}

func (c *Config) ProbeTimeout() time.Duration  { return seconds(c.API.ProbeTimeout) }
func (c *Config) ProbeInterval() time.Duration { return seconds(c.API.ProbeInterval) }

// ExportPath is where exports are written when no --out is given.
func (c *Config) ExportPath() string {
	if c.ExportDir != "" {
		return c.ExportDir
	}
	return filepath.Join(c.DataDir, "exports")
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
