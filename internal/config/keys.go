package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/user/ragchat/internal/state"
)

// Source says where an effective config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
)

// Entry is one effective config value.
type Entry struct {
	Key    string
	Value  string
	Source Source
	// Env is the overriding variable when Source is SourceEnv.
	Env string
}

// field binds a dot key to its Config slot. ptr returns a *string, *int or
// *bool into the given Config.
type field struct {
	key    string
	env    string
	secret bool
	ptr    func(c *Config) any
	check  func(v string) error
}

// fields lists every settable key in display order. env is the RAGCHAT_*
// suffix that overrides the key, empty when none does.
var fields = []field{
	{key: "data_dir", env: "DATA_DIR", ptr: func(c *Config) any { return &c.DataDir }},
	{key: "log_level", env: "LOG_LEVEL", ptr: func(c *Config) any { return &c.LogLevel }, check: checkLevel},
	{key: "log_pretty", env: "LOG_PRETTY", ptr: func(c *Config) any { return &c.LogPretty }},
	{key: "export_dir", env: "EXPORT_DIR", ptr: func(c *Config) any { return &c.ExportDir }},
	{key: "api.base_url", env: "BASE_URL", ptr: func(c *Config) any { return &c.API.BaseURL }, check: checkHTTPURL},
	{key: "api.request_timeout", env: "REQUEST_TIMEOUT", ptr: func(c *Config) any { return &c.API.RequestTimeout }},
	{key: "api.probe_timeout", ptr: func(c *Config) any { return &c.API.ProbeTimeout }},
	{key: "api.probe_interval", ptr: func(c *Config) any { return &c.API.ProbeInterval }},
	{key: "store.backend", env: "STORE_BACKEND", ptr: func(c *Config) any { return &c.Store.Backend }, check: checkBackend},
	{key: "store.path", env: "STORE_PATH", ptr: func(c *Config) any { return &c.Store.Path }},
	{key: "store.redis_url", env: "REDIS_URL", secret: true, ptr: func(c *Config) any { return &c.Store.RedisURL }},
	{key: "store.redis_prefix", env: "REDIS_PREFIX", ptr: func(c *Config) any { return &c.Store.RedisPrefix }},
	{key: "store.redis_timeout", ptr: func(c *Config) any { return &c.Store.RedisTimeout }},
	{key: "http.enabled", ptr: func(c *Config) any { return &c.HTTP.Enabled }},
	{key: "http.listen", env: "HTTP_LISTEN", ptr: func(c *Config) any { return &c.HTTP.Listen }},
}

func lookup(key string) (field, error) {
	for _, f := range fields {
		if f.key == key {
			return f, nil
		}
	}
	return field{}, fmt.Errorf("unknown config key: %s", key)
}

// Keys returns every settable key in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// EnvName returns the variable overriding key, or "" when none does.
func EnvName(key string) string {
	f, err := lookup(key)
	if err != nil || f.env == "" {
		return ""
	}
	return EnvPrefix + "_" + f.env
}

// IsSecret reports whether key holds a value that is masked on display.
func IsSecret(key string) bool {
	f, err := lookup(key)
	return err == nil && f.secret
}

func (f field) format(c *Config) string {
	switch p := f.ptr(c).(type) {
	case *string:
		return *p
	case *int:
		return strconv.Itoa(*p)
	case *bool:
		return strconv.FormatBool(*p)
	}
	return ""
}

func (f field) parse(c *Config, raw string) error {
	if f.check != nil {
		if err := f.check(raw); err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
	}
	switch p := f.ptr(c).(type) {
	case *string:
		*p = raw
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: expected a whole number of seconds, got %q", f.key, raw)
		}
		if n <= 0 {
			return fmt.Errorf("%s: must be positive", f.key)
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: expected true or false, got %q", f.key, raw)
		}
		*p = b
	}
	return nil
}

// Get returns the value of key in cfg.
func Get(cfg *Config, key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.format(cfg), nil
}

// Set validates raw for key and writes it to the config file at path. Only
// the file is changed; an environment override still wins on the next load.
// The file must already exist.
func Set(path, key, raw string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	cfg, err := loadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := f.parse(cfg, raw); err != nil {
		return err
	}
	return Save(path, cfg)
}

// Describe lists the effective value of every key with where it came from.
// Secret values are masked unless reveal is set.
func Describe(path string, reveal bool) ([]Entry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	present, err := fileKeys(path)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		e := Entry{Key: f.key, Value: f.format(cfg), Source: SourceDefault}
		if present[f.key] {
			e.Source = SourceFile
		}
		if name := EnvName(f.key); name != "" {
			if _, ok := os.LookupEnv(name); ok {
				e.Source = SourceEnv
				e.Env = name
			}
		}
		if f.secret && !reveal {
			e.Value = Mask(e.Value)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// fileKeys reports which dot keys the file at path sets explicitly.
func fileKeys(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		node := any(raw)
		for _, part := range strings.Split(f.key, ".") {
			m, ok := node.(map[string]any)
			if !ok {
				node = nil
				break
			}
			node, ok = m[part]
			if !ok {
				node = nil
				break
			}
		}
		if node != nil {
			present[f.key] = true
		}
	}
	return present, nil
}

// Mask hides a secret for display. URLs keep their host with the password
// redacted; anything else is hidden entirely.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	if u, err := url.Parse(v); err == nil && u.Scheme != "" && u.Host != "" {
		if _, ok := u.User.Password(); ok {
			return u.Redacted()
		}
		return u.Scheme + "://" + u.Host + "/***"
	}
	return "***"
}

func checkLevel(v string) error {
	if _, err := zerolog.ParseLevel(v); err != nil {
		return fmt.Errorf("unknown log level %q", v)
	}
	return nil
}

func checkHTTPURL(v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("expected an http or https URL")
	}
	return nil
}

func checkBackend(v string) error {
	switch v {
	case state.BackendFile, state.BackendBolt, state.BackendRedis, state.BackendMemory:
		return nil
	}
	return fmt.Errorf("unknown store backend %q", v)
}
