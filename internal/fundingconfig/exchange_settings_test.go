package fundingconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempExchangesYAML(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "exchanges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadExchangeSettings_ParsesSections(t *testing.T) {
	path := writeTempExchangesYAML(t, `
sections:
  okx:
    fetch_step_hours: 198
  aster:
    fetch_step_hours: 8000
    interval_probe_concurrency: 10
`)

	cfg, err := LoadExchangeSettings(path)

	require.NoError(t, err)
	assert.Contains(t, cfg.Sections, "okx")
	assert.Contains(t, cfg.Sections, "aster")
}

func TestSettingsJSON_KnownSectionMarshalsToJSON(t *testing.T) {
	path := writeTempExchangesYAML(t, `
sections:
  okx:
    fetch_step_hours: 198
`)
	cfg, err := LoadExchangeSettings(path)
	require.NoError(t, err)

	blob, err := cfg.SettingsJSON("okx")
	require.NoError(t, err)
	assert.JSONEq(t, `{"fetch_step_hours":198}`, string(blob))
}

func TestSettingsJSON_UnknownSectionReturnsEmptyObject(t *testing.T) {
	path := writeTempExchangesYAML(t, `
sections:
  okx:
    fetch_step_hours: 198
`)
	cfg, err := LoadExchangeSettings(path)
	require.NoError(t, err)

	blob, err := cfg.SettingsJSON("not-configured")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(blob))
}

func TestLoadExchangeSettings_MissingFileErrors(t *testing.T) {
	_, err := LoadExchangeSettings(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
