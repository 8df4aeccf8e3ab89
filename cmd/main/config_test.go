package main

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/CTAG07/epptmpl/pkg/eppxml"
	"github.com/CTAG07/epptmpl/pkg/templating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("CreatesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultServerConfig(), config.Server)
		assert.Equal(t, templating.DefaultConfig(), config.Templates)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		var onDisk Config
		require.NoError(t, json.Unmarshal(raw, &onDisk))
		assert.Equal(t, config.Server, onDisk.Server)
	})

	t.Run("MergesPartialFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		partial := `{"server_config": {"cache_backend": "sqlite"}, "template_config": {"cache_enabled": true}}`
		require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, backendSQLite, config.Server.CacheBackend)
		assert.Equal(t, DefaultServerConfig().ApiAddr, config.Server.ApiAddr)
		assert.True(t, config.Templates.CacheEnabled)
		assert.Equal(t, ".xml", config.Templates.Extension)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestConfig_TemplateFS(t *testing.T) {
	config := &Config{Server: DefaultServerConfig()}
	assert.Equal(t, eppxml.FS, config.templateFS())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<a/>"), 0644))
	config.Server.TemplateDir = dir
	data, err := fs.ReadFile(config.templateFS(), "a.xml")
	require.NoError(t, err)
	assert.Equal(t, "<a/>", string(data))
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{backendMemory, backendFile, backendSQLite} {
		t.Run(backend, func(t *testing.T) {
			sc := DefaultServerConfig()
			sc.CacheBackend = backend
			sc.CacheDir = filepath.Join(dir, "cache")
			sc.DatabasePath = filepath.Join(dir, "db", "cache.db")

			store, closeStore, err := openStore(sc)
			require.NoError(t, err)
			assert.NotNil(t, store)
			assert.NoError(t, closeStore())
		})
	}

	sc := DefaultServerConfig()
	sc.CacheBackend = "redis"
	_, _, err := openStore(sc)
	assert.Error(t, err)
}
