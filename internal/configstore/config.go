package configstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/strongdm/paramref/internal/catalog"
	"github.com/strongdm/paramref/internal/listen"
	"github.com/strongdm/paramref/internal/server"
	"github.com/strongdm/paramref/internal/suggest"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

// DefaultListen is the bind address used when neither the file nor the
// environment names one.
const DefaultListen = "127.0.0.1:18480"

// Config represents the persisted paramref configuration.
type Config struct {
	// Listen is the HTTP bind address. An empty value disables the server.
	Listen string
	// Catalog is a TOML, YAML or JSON catalog file watched for changes.
	Catalog string
	// DB is the SQLite database the catalog is persisted to.
	DB string
	// Remote is the base URL of another paramref service used for
	// suggestions and validation instead of the local catalog.
	Remote   string
	EventLog string

	Editor    EditorConfig
	Stream    StreamConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// EditorConfig tunes the suggestion engine.
type EditorConfig struct {
	Debounce    time.Duration
	BlurGrace   time.Duration
	SearchLimit int
}

// StreamConfig sizes the websocket event history.
type StreamConfig struct {
	History       int
	BulkMaxEvents int
	BulkMaxBytes  int
}

// RateLimitConfig bounds per-client request rates on the JSON API.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

type TelemetryConfig struct {
	Metrics       bool
	Traces        bool
	Endpoint      string
	PropagateHTTP bool
}

// New returns a Config populated with defaults.
func New() Config {
	return Config{
		Listen: DefaultListen,
		Editor: EditorConfig{
			Debounce:    suggest.DefaultDebounce,
			BlurGrace:   suggest.DefaultBlurGrace,
			SearchLimit: catalog.DefaultSearchLimit,
		},
		RateLimit: RateLimitConfig{
			PerSecond: server.DefaultRateLimit,
			Burst:     server.DefaultRateBurst,
		},
		Telemetry: TelemetryConfig{Metrics: true},
	}
}

// ApplyEnv overlays PARAMREF_* variables from lookup onto c. A variable that
// is set but empty still counts, so PARAMREF_LISTEN= disables the server.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	strs := []struct {
		key string
		dst *string
	}{
		{"PARAMREF_LISTEN", &c.Listen},
		{"PARAMREF_CATALOG", &c.Catalog},
		{"PARAMREF_DB", &c.DB},
		{"PARAMREF_REMOTE", &c.Remote},
		{"PARAMREF_EVENT_LOG", &c.EventLog},
		{"PARAMREF_OTEL_ENDPOINT", &c.Telemetry.Endpoint},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = strings.TrimSpace(v)
		}
	}

	toggles := []struct {
		key string
		dst *bool
	}{
		{"PARAMREF_OTEL_METRICS", &c.Telemetry.Metrics},
		{"PARAMREF_OTEL_TRACES", &c.Telemetry.Traces},
		{"PARAMREF_OTEL_PROPAGATE_HTTP_HEADERS", &c.Telemetry.PropagateHTTP},
	}
	for _, tg := range toggles {
		if v, ok := lookup(tg.key); ok {
			*tg.dst = otel.EnvBool(v, *tg.dst)
		}
	}

	if v, ok := lookup("PARAMREF_DEBOUNCE"); ok && strings.TrimSpace(v) != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("PARAMREF_DEBOUNCE: %w", err)
		}
		c.Editor.Debounce = d
	}
	if v, ok := lookup("PARAMREF_SEARCH_LIMIT"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PARAMREF_SEARCH_LIMIT: %w", err)
		}
		c.Editor.SearchLimit = n
	}
	return nil
}

// ServerConfig converts c into the runtime configuration of the server.
func (c Config) ServerConfig() (server.Config, error) {
	addr, err := listen.Parse(c.Listen)
	if err != nil {
		return server.Config{}, err
	}
	// zero in the file means no limit
	limit := c.Editor.SearchLimit
	if limit <= 0 {
		limit = -1
	}
	return server.Config{
		Listen:        addr,
		CatalogPath:   c.Catalog,
		DBPath:        c.DB,
		RemoteURL:     c.Remote,
		EventLogPath:  c.EventLog,
		SearchLimit:   limit,
		Debounce:      c.Editor.Debounce,
		BlurGrace:     c.Editor.BlurGrace,
		HistorySize:   c.Stream.History,
		BulkMaxEvents: c.Stream.BulkMaxEvents,
		BulkMaxBytes:  c.Stream.BulkMaxBytes,
		RateLimit:     c.RateLimit.PerSecond,
		RateBurst:     c.RateLimit.Burst,
		Telemetry: otel.Config{
			ServiceName:   "paramref",
			EnableMetrics: c.Telemetry.Metrics,
			EnableTraces:  c.Telemetry.Traces,
			Endpoint:      c.Telemetry.Endpoint,
			PropagateHTTP: c.Telemetry.PropagateHTTP,
		},
	}, nil
}

// parseDuration accepts Go duration strings and bare integers in
// milliseconds.
func parseDuration(raw string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("duration %q must not be negative", value)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", value)
	}
	return d, nil
}
