package cli_test

import (
	"os"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/require"
)

// isolate points XDG lookups at empty temp dirs and unsets the server env vars;
// t.Setenv restores them afterwards.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	for _, name := range []string{
		"SONARQUBE_URL", "SONAR_HOST_URL", "SONARQUBE_TOKEN", "SONAR_TOKEN",
		"SONARQUBE_USERNAME", "SONARQUBE_PASSWORD",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}
