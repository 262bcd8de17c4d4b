package configstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads the config from GetConfigPath. A missing file yields defaults.
func Load() (Config, error) {
	_, file, err := GetConfigPath()
	if err != nil {
		return New(), err
	}
	return LoadFrom(file)
}

// LoadFrom reads the config at path. A missing file yields defaults.
// Relative file paths inside the config resolve against its directory.
func LoadFrom(path string) (Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(data, path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type section map[string]func(any) error

func decodeConfig(data []byte, path string, cfg *Config) error {
	var raw map[string]any
	err := toml.Unmarshal(data, &raw)
	if err != nil && needsDollarEscapeFix(err) {
		if fixed, changed := sanitizeDollarEscapes(data); changed {
			err = toml.Unmarshal(fixed, &raw)
		}
	}
	if err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			return &ParseError{Path: path, Err: decodeErr}
		}
		return err
	}

	base := filepath.Dir(path)
	pathField := func(dst *string) func(any) error {
		return func(v any) error {
			s, err := toString(v)
			if err != nil {
				return err
			}
			resolved, err := expandPath(s, base)
			if err != nil {
				return err
			}
			*dst = resolved
			return nil
		}
	}
	stringField := func(dst *string) func(any) error {
		return func(v any) error {
			s, err := toString(v)
			if err != nil {
				return err
			}
			*dst = strings.TrimSpace(expandConfigValue(s))
			return nil
		}
	}

	top := section{
		"listen":    stringField(&cfg.Listen),
		"catalog":   pathField(&cfg.Catalog),
		"db":        pathField(&cfg.DB),
		"remote":    stringField(&cfg.Remote),
		"event_log": pathField(&cfg.EventLog),
	}
	tables := map[string]section{
		"editor": {
			"debounce":     durationField(&cfg.Editor.Debounce),
			"blur_grace":   durationField(&cfg.Editor.BlurGrace),
			"search_limit": intField(&cfg.Editor.SearchLimit),
		},
		"stream": {
			"history":         intField(&cfg.Stream.History),
			"bulk_max_events": intField(&cfg.Stream.BulkMaxEvents),
			"bulk_max_bytes":  intField(&cfg.Stream.BulkMaxBytes),
		},
		"rate_limit": {
			"per_second": floatField(&cfg.RateLimit.PerSecond),
			"burst":      intField(&cfg.RateLimit.Burst),
		},
		"telemetry": {
			"metrics":        boolField(&cfg.Telemetry.Metrics),
			"traces":         boolField(&cfg.Telemetry.Traces),
			"endpoint":       stringField(&cfg.Telemetry.Endpoint),
			"propagate_http": boolField(&cfg.Telemetry.PropagateHTTP),
		},
	}

	for _, key := range sortedKeys(raw) {
		value := raw[key]
		if set, ok := top[key]; ok {
			if err := set(value); err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			continue
		}
		fields, ok := tables[key]
		if !ok {
			return fmt.Errorf("parse %s: unknown key", key)
		}
		table, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("parse %s: expected table", key)
		}
		for _, sub := range sortedKeys(table) {
			set, ok := fields[sub]
			if !ok {
				return fmt.Errorf("parse %s.%s: unknown key", key, sub)
			}
			if err := set(table[sub]); err != nil {
				return fmt.Errorf("parse %s.%s: %w", key, sub, err)
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func durationField(dst *time.Duration) func(any) error {
	return func(v any) error {
		switch val := v.(type) {
		case int64:
			d, err := parseDuration(fmt.Sprint(val))
			if err != nil {
				return err
			}
			*dst = d
			return nil
		case string:
			d, err := parseDuration(expandConfigValue(val))
			if err != nil {
				return err
			}
			*dst = d
			return nil
		default:
			return fmt.Errorf("expected duration string or milliseconds, got %T", v)
		}
	}
}

func intField(dst *int) func(any) error {
	return func(v any) error {
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		*dst = int(n)
		return nil
	}
}

func floatField(dst *float64) func(any) error {
	return func(v any) error {
		switch val := v.(type) {
		case float64:
			*dst = val
		case int64:
			*dst = float64(val)
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
		return nil
	}
}

func boolField(dst *bool) func(any) error {
	return func(v any) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func toBool(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("expected boolean, got %T", value)
	}
	return b, nil
}

func toString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

type persistedConfig struct {
	Listen    string             `toml:"listen"`
	Catalog   string             `toml:"catalog,omitempty"`
	DB        string             `toml:"db,omitempty"`
	Remote    string             `toml:"remote,omitempty"`
	EventLog  string             `toml:"event_log,omitempty"`
	Editor    persistedEditor    `toml:"editor"`
	Stream    persistedStream    `toml:"stream"`
	RateLimit persistedRateLimit `toml:"rate_limit"`
	Telemetry persistedTelemetry `toml:"telemetry"`
}

type persistedEditor struct {
	Debounce    string `toml:"debounce"`
	BlurGrace   string `toml:"blur_grace"`
	SearchLimit int    `toml:"search_limit"`
}

type persistedStream struct {
	History       int `toml:"history,omitempty"`
	BulkMaxEvents int `toml:"bulk_max_events,omitempty"`
	BulkMaxBytes  int `toml:"bulk_max_bytes,omitempty"`
}

type persistedRateLimit struct {
	PerSecond float64 `toml:"per_second"`
	Burst     int     `toml:"burst"`
}

type persistedTelemetry struct {
	Metrics       bool   `toml:"metrics"`
	Traces        bool   `toml:"traces"`
	Endpoint      string `toml:"endpoint,omitempty"`
	PropagateHTTP bool   `toml:"propagate_http"`
}

func buildPersisted(cfg Config) persistedConfig {
	return persistedConfig{
		Listen:   cfg.Listen,
		Catalog:  cfg.Catalog,
		DB:       cfg.DB,
		Remote:   cfg.Remote,
		EventLog: cfg.EventLog,
		Editor: persistedEditor{
			Debounce:    cfg.Editor.Debounce.String(),
			BlurGrace:   cfg.Editor.BlurGrace.String(),
			SearchLimit: cfg.Editor.SearchLimit,
		},
		Stream: persistedStream(cfg.Stream),
		RateLimit: persistedRateLimit{
			PerSecond: cfg.RateLimit.PerSecond,
			Burst:     cfg.RateLimit.Burst,
		},
		Telemetry: persistedTelemetry(cfg.Telemetry),
	}
}

// Save writes cfg to GetConfigPath atomically.
func Save(cfg Config) error {
	_, file, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(file, cfg)
}

// SaveTo writes cfg to path through a temp file and rename so readers never
// observe a partial config.
func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(buildPersisted(cfg)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}
	renamed = true
	return nil
}
