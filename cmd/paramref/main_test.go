package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kr.dev/diff"

	"github.com/strongdm/paramref/internal/catalog"
	"github.com/strongdm/paramref/internal/configstore"
)

const testCatalog = `
[[parameters]]
name = "firstName"
description = "Recipient first name"

[[parameters]]
name = "lastName"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cat := writeFile(t, "catalog.toml", testCatalog)

	out, err := execute(t, "validate", "--config", cfgPath, "--catalog", cat,
		"--subject", "Hi @@firstName", "--body", "Your @@orderId")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var resp catalog.ValidateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	diff.Test(t, t.Errorf, resp, catalog.ValidateResponse{IsValid: false, InvalidParameters: []string{"orderId"}})

	_, err = execute(t, "validate", "--config", cfgPath, "--catalog", cat, "--strict", "--body", "@@orderId")
	if !errors.Is(err, errInvalidTemplate) {
		t.Fatalf("strict validate error = %v", err)
	}
}

func TestValidateCommandReadsTemplateFile(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cat := writeFile(t, "catalog.toml", testCatalog)
	tmpl := writeFile(t, "welcome.txt", "Welcome @@firstName\r\nDear @@firstName @@lastName,\n")

	out, err := execute(t, "validate", "--config", cfgPath, "--catalog", cat, "--strict", tmpl)
	if err != nil {
		t.Fatalf("validate: %v (%s)", err, out)
	}
	if !strings.Contains(out, `"isValid": true`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestSearchCommand(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cat := writeFile(t, "catalog.toml", testCatalog)

	out, err := execute(t, "search", "--config", cfgPath, "--catalog", cat, "FIRST")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "firstName") || strings.Contains(out, "lastName") {
		t.Fatalf("unexpected table:\n%s", out)
	}

	out, err = execute(t, "search", "--config", cfgPath, "--catalog", cat, "--json", "name")
	if err != nil {
		t.Fatalf("search --json: %v", err)
	}
	var resp catalog.SuggestionsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %+v", resp.Suggestions)
	}
}

func TestCommandsRequireCatalog(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if _, err := execute(t, "search", "--config", cfgPath, "x"); err == nil || !strings.Contains(err.Error(), "no catalog configured") {
		t.Fatalf("expected missing catalog error, got %v", err)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()
	cfgPath := writeFile(t, "config.toml", "listen = \":9000\"\ncatalog = \"/from/file.toml\"\n[editor]\ndebounce = \"40ms\"\n")

	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("find serve: %v", err)
	}
	if err := serve.ParseFlags([]string{"--config", cfgPath, "--catalog", "/from/flag.yaml", "--debounce", "5ms"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(serve)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Fatalf("listen = %q, want file value", cfg.Listen)
	}
	if cfg.Catalog != "/from/flag.yaml" {
		t.Fatalf("catalog = %q, want flag value", cfg.Catalog)
	}
	if cfg.Editor.Debounce != 5*time.Millisecond {
		t.Fatalf("debounce = %v", cfg.Editor.Debounce)
	}
}

func TestConfigInitWritesFile(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.toml")

	if _, err := execute(t, "config", "init", "--config", cfgPath, "--remote", "http://catalog.internal:18480"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := configstore.LoadFrom(cfgPath)
	if err != nil {
		t.Fatalf("reload written config: %v", err)
	}
	if cfg.Remote != "http://catalog.internal:18480" {
		t.Fatalf("remote = %q", cfg.Remote)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "version: dev\n") {
		t.Fatalf("unexpected output %q", out)
	}
}
