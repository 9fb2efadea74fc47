package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	origDir := getConfigDirFunc
	origPath := getConfigPathFunc
	getConfigDirFunc = func() (string, error) { return dir, nil }
	getConfigPathFunc = func() (string, error) { return filepath.Join(dir, "config.json"), nil }
	t.Cleanup(func() {
		getConfigDirFunc = origDir
		getConfigPathFunc = origPath
	})

	return dir
}

func TestSaveAndLoadGlobalConfig(t *testing.T) {
	useTempConfigDir(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://localhost:9000"}))

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, "http://localhost:9000", config.APIURL)
}

func TestLoadGlobalConfig_Missing(t *testing.T) {
	useTempConfigDir(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestSaveGlobalConfig_Nil(t *testing.T) {
	useTempConfigDir(t)

	assert.Error(t, SaveGlobalConfig(nil))
}

func TestSaveGlobalConfig_Permissions(t *testing.T) {
	dir := useTempConfigDir(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://localhost:8080"}))

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestDeleteGlobalConfig(t *testing.T) {
	useTempConfigDir(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://localhost:8080"}))
	require.NoError(t, DeleteGlobalConfig())

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)

	// deleting again is a no-op
	assert.NoError(t, DeleteGlobalConfig())
}
