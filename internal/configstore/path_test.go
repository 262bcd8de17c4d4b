package configstore

import (
	"path/filepath"
	"testing"
)

func TestGetConfigPathPrefersXDG(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "PARAMREF_HOME", "")
	base := t.TempDir()
	testSetEnv(t, "XDG_CONFIG_HOME", base)
	setHome(t, filepath.Join(t.TempDir(), "ignored"))

	dir, file, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	wantDir := filepath.Join(base, "paramref")
	if dir != wantDir {
		t.Fatalf("dir = %q, want %q", dir, wantDir)
	}
	if file != filepath.Join(wantDir, configFileName) {
		t.Fatalf("file = %q", file)
	}
}

func TestGetConfigPathFallsBackToHome(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "PARAMREF_HOME", "")
	testSetEnv(t, "XDG_CONFIG_HOME", "")
	home := t.TempDir()
	setHome(t, home)

	dir, _, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	if want := filepath.Join(home, ".config", "paramref"); dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}
}

func TestGetConfigPathMissingHomeErrors(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "PARAMREF_HOME", "")
	testSetEnv(t, "XDG_CONFIG_HOME", "")
	setHome(t, "")

	if _, _, err := GetConfigPath(); err == nil {
		t.Fatal("expected error when home cannot be resolved")
	}
}

func TestGetConfigPathPrefersParamrefHome(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	base := filepath.Join(t.TempDir(), "paramref-home")
	testSetEnv(t, "PARAMREF_HOME", base)
	testSetEnv(t, "XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "xdg"))

	dir, file, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	if dir != base {
		t.Fatalf("dir = %q, want %q", dir, base)
	}
	if file != filepath.Join(base, configFileName) {
		t.Fatalf("file = %q", file)
	}
}

func TestExpandPath(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	home := t.TempDir()
	setHome(t, home)
	testSetEnv(t, "CATALOG_DIR", "/srv/catalogs")

	tests := []struct {
		raw  string
		base string
		want string
	}{
		{"", "/etc/paramref", ""},
		{"~/catalog.toml", "/etc/paramref", filepath.Join(home, "catalog.toml")},
		{"$CATALOG_DIR/email.yaml", "", "/srv/catalogs/email.yaml"},
		{"catalog.toml", "/etc/paramref", "/etc/paramref/catalog.toml"},
		{"/abs/catalog.json", "/etc/paramref", "/abs/catalog.json"},
	}
	for _, tt := range tests {
		got, err := expandPath(tt.raw, tt.base)
		if err != nil {
			t.Fatalf("expandPath(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("expandPath(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
		}
	}
}
