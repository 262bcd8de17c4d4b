package configstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kr.dev/diff"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	diff.Test(t, t.Errorf, cfg, New())
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "PARAMREF_TEST_REMOTE", "catalog.internal")

	path := writeConfig(t, `
listen = ":9000"
catalog = "catalog.toml"
db = "/var/lib/paramref/catalog.db"
remote = "http://${PARAMREF_TEST_REMOTE}:18480"

[editor]
debounce = "75ms"
blur_grace = 300
search_limit = 5

[stream]
history = 1024
bulk_max_bytes = 65536

[rate_limit]
per_second = 20
burst = 40

[telemetry]
metrics = false
traces = true
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	want := New()
	want.Listen = ":9000"
	want.Catalog = filepath.Join(filepath.Dir(path), "catalog.toml")
	want.DB = "/var/lib/paramref/catalog.db"
	want.Remote = "http://catalog.internal:18480"
	want.Editor = EditorConfig{Debounce: 75 * time.Millisecond, BlurGrace: 300 * time.Millisecond, SearchLimit: 5}
	want.Stream = StreamConfig{History: 1024, BulkMaxBytes: 65536}
	want.RateLimit = RateLimitConfig{PerSecond: 20, Burst: 40}
	want.Telemetry = TelemetryConfig{Metrics: false, Traces: true}
	diff.Test(t, t.Errorf, cfg, want)
}

func TestLoadKeepsEscapedDollar(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "PARAMREF_TEST_HOST", "expanded")

	path := writeConfig(t, `remote = "http://$PARAMREF_TEST_HOST/\$literal"`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Remote != "http://expanded/$literal" {
		t.Fatalf("remote = %q", cfg.Remote)
	}
}

func TestLoadEmptyListenDisables(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFrom(writeConfig(t, `listen = ""`))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Listen != "" {
		t.Fatalf("listen = %q, want empty", cfg.Listen)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown top", `colour = "blue"`, "parse colour: unknown key"},
		{"unknown nested", "[editor]\nspeed = 1", "parse editor.speed: unknown key"},
		{"table expected", `editor = "fast"`, "parse editor: expected table"},
		{"wrong type", "[stream]\nhistory = \"lots\"", "parse stream.history: expected integer"},
		{"bad duration", "[editor]\ndebounce = \"soon\"", "parse editor.debounce: invalid duration"},
		{"bad bool", "[telemetry]\nmetrics = \"yes\"", "parse telemetry.metrics: expected boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFrom(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadCorruptTomlReturnsTypedError(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[editor\ndebounce = 1")

	_, err := LoadFrom(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Path != path {
		t.Fatalf("ParseError.Path = %q, want %q", parseErr.Path, path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "PARAMREF_HOME", t.TempDir())

	cfg := New()
	cfg.Catalog = "/etc/paramref/catalog.yaml"
	cfg.Remote = "http://catalog.internal:18480"
	cfg.Editor.Debounce = 90 * time.Millisecond
	cfg.Stream.History = 256
	cfg.Telemetry.Traces = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	diff.Test(t, t.Errorf, got, cfg)
}

func TestSaveUnwritableDirectoryFailsWithoutPartialFile(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	if err := os.MkdirAll(dir, 0o500); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	file := filepath.Join(dir, configFileName)

	if err := SaveTo(file, New()); err == nil {
		t.Fatal("expected error when directory is unwritable")
	}
	matches, err := filepath.Glob(filepath.Join(dir, "config-*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no temp files, found %v", matches)
	}
	if _, err := os.Stat(file); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("config file should not exist, stat err=%v", err)
	}
}

func TestSanitizeDollarEscapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{`a = "\$x"`, `a = "\\$x"`, true},
		{`a = '\$x'`, `a = '\$x'`, false},
		{"a = \"\"\"\n\\$x\"\"\"", "a = \"\"\"\n\\\\$x\"\"\"", true},
		{`a = "\"" # \$`, `a = "\"" # \$`, false},
	}
	for _, tt := range tests {
		got, changed := sanitizeDollarEscapes([]byte(tt.in))
		if changed != tt.changed || string(got) != tt.want {
			t.Fatalf("sanitizeDollarEscapes(%q) = %q, %v; want %q, %v", tt.in, got, changed, tt.want, tt.changed)
		}
	}
}
