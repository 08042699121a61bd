package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestInitializeAndLoad(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Initialize("http://sheets.example.org", "doc-42")
	require.NoError(t, err)
	assert.Equal(t, "http://sheets.example.org", cfg.SheetsURL)
	assert.Equal(t, "doc-42", cfg.SpreadsheetID)

	// Defaults applied on init.
	assert.Equal(t, DefaultMaxChanges, cfg.MaxChanges)
	assert.Equal(t, DefaultMaxSnapshots, cfg.MaxSnapshots)
	assert.Equal(t, DefaultPendingTTL, cfg.PendingTTL())
	assert.Equal(t, DefaultCriticalThreshold, cfg.CriticalThreshold)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.SheetsURL, loaded.SheetsURL)
	assert.Equal(t, cfg.SpreadsheetID, loaded.SpreadsheetID)
	assert.Equal(t, cfg.Path(), loaded.Path())
}

func TestInitializeTwiceFails(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Initialize("http://localhost:3000", "doc-1")
	require.NoError(t, err)

	_, err = Initialize("http://localhost:3000", "doc-1")
	assert.Error(t, err)
}

func TestFindRootWalksUp(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)

	_, err := Initialize("http://localhost:3000", "doc-1")
	require.NoError(t, err)

	nested := filepath.Join(root, "reports", "2026")
	require.NoError(t, os.MkdirAll(nested, 0755))
	chdir(t, nested)

	found, err := FindRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, StewardDir), found)
}

func TestFindRootOutsideWorkspace(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := FindRoot()
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Initialize("http://localhost:3000", "doc-1")
	require.NoError(t, err)

	cfg.MaxChanges = 250
	cfg.PendingTTLSeconds = 120
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, loaded.MaxChanges)
	assert.Equal(t, 2*time.Minute, loaded.PendingTTL())
}

func TestTokenEnvIndirection(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Initialize("http://localhost:3000", "doc-1")
	require.NoError(t, err)

	t.Setenv("STEWARD_SHEETS_TOKEN", "default-sheets")
	t.Setenv("STEWARD_API_TOKEN", "default-api")
	assert.Equal(t, "default-sheets", cfg.APIToken())
	assert.Equal(t, "default-api", cfg.ServerToken())

	t.Setenv("CUSTOM_SHEETS_TOKEN", "custom-sheets")
	cfg.APITokenEnv = "CUSTOM_SHEETS_TOKEN"
	assert.Equal(t, "custom-sheets", cfg.APIToken())
}
