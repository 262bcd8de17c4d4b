package configstore

import (
	"os"
	"sync"
	"testing"
)

var envMu sync.Mutex

// lockEnv serializes tests that mutate the process environment.
func lockEnv(t *testing.T) {
	t.Helper()
	envMu.Lock()
	t.Cleanup(envMu.Unlock)
}

func testSetEnv(t *testing.T, key, value string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !existed {
			_ = os.Unsetenv(key)
			return
		}
		if err := os.Setenv(key, prev); err != nil {
			t.Fatalf("restore env %s: %v", key, err)
		}
	})
}

func setHome(t *testing.T, dir string) {
	t.Helper()
	testSetEnv(t, "HOME", dir)
	testSetEnv(t, "USERPROFILE", "")
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
