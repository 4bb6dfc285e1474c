// ABOUTME: Test helpers for config tests
// ABOUTME: Isolates FORCEAPP_* variables and the XDG config directory per test

package config

import (
	"os"
	"strings"
	"testing"
)

// withCleanEnv unsets every FORCEAPP_* variable and points XDG_CONFIG_HOME at a
// temp dir so no developer config leaks into the test. t.Setenv restores both.
func withCleanEnv(t *testing.T) {
	t.Helper()

	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, "FORCEAPP_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}
