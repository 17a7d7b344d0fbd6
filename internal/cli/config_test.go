package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAPIKey, "")
	return home
}

func TestLoadConfig_MissingFile(t *testing.T) {
	isolateHome(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.DefaultProfile)
	assert.Empty(t, cfg.Profiles)
}

func TestInitConfig_WritesPrivateFile(t *testing.T) {
	home := isolateHome(t)

	require.NoError(t, InitConfig())

	path := filepath.Join(home, ".exclusionctl", "config.yaml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Profiles["local"].BaseURL)
}

func TestResolveProfile_Precedence(t *testing.T) {
	isolateHome(t)
	require.NoError(t, SaveConfig(&Config{
		DefaultProfile: "local",
		Profiles: map[string]ProfileConfig{
			"local": {BaseURL: "http://file:8080", APIKey: "file-key"},
		},
	}))

	p, err := ResolveProfile("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "http://file:8080", p.BaseURL)
	assert.Equal(t, "file-key", p.APIKey)

	t.Setenv(EnvBaseURL, "http://env:8080")
	t.Setenv(EnvAPIKey, "env-key")
	p, err = ResolveProfile("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "http://env:8080", p.BaseURL)
	assert.Equal(t, "env-key", p.APIKey)

	p, err = ResolveProfile("", "http://flag:8080", "flag-key")
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8080", p.BaseURL)
	assert.Equal(t, "flag-key", p.APIKey)
}

func TestResolveProfile_UnknownProfile(t *testing.T) {
	isolateHome(t)

	_, err := ResolveProfile("staging", "", "")
	assert.Error(t, err)

	p, err := ResolveProfile("staging", "http://adhoc:8080", "")
	require.NoError(t, err)
	assert.Equal(t, "http://adhoc:8080", p.BaseURL)
	assert.Empty(t, p.APIKey)
}

func TestLoadConfig_Malformed(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".exclusionctl")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("profiles: [oops"), 0600))

	_, err := LoadConfig()
	assert.Error(t, err)
}
