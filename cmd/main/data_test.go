package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadData(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: example.com\nperiod: 2\nhosts:\n  - ns1.example.com\n"), 0644))
	jsonPath := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "example.com", "renew": true}`), 0644))
	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0644))

	t.Run("YAML", func(t *testing.T) {
		data, err := loadData(yamlPath, nil)
		require.NoError(t, err)
		assert.Equal(t, "example.com", data["name"])
		assert.Equal(t, 2, data["period"])
		assert.Equal(t, []any{"ns1.example.com"}, data["hosts"])
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := loadData(jsonPath, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "example.com", "renew": true}, data)
	})

	t.Run("Stdin", func(t *testing.T) {
		data, err := loadData("-", strings.NewReader("id: C1\n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "C1"}, data)
	})

	t.Run("Empty", func(t *testing.T) {
		data, err := loadData("", nil)
		require.NoError(t, err)
		assert.Empty(t, data)

		data, err = loadData(emptyPath, nil)
		require.NoError(t, err)
		assert.NotNil(t, data)
		assert.Empty(t, data)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := loadData(filepath.Join(dir, "missing.yaml"), nil)
		assert.ErrorContains(t, err, "failed to read data file")

		_, err = loadData("-", strings.NewReader("- a\n- b\n"))
		assert.ErrorContains(t, err, "failed to parse data file")
	})
}

func TestApplySets(t *testing.T) {
	data := map[string]any{"contact": map[string]any{"id": "C1"}}
	err := applySets(data, []string{
		"name=example.com",
		"period=2",
		"renew=true",
		"names=[a.com, b.net]",
		"contact.email=a@b.c",
		"registrant.voice.ext=12",
		"empty=",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":   "example.com",
		"period": 2,
		"renew":  true,
		"names":  []any{"a.com", "b.net"},
		"contact": map[string]any{
			"id":    "C1",
			"email": "a@b.c",
		},
		"registrant": map[string]any{
			"voice": map[string]any{"ext": 12},
		},
		"empty": "",
	}, data)

	for _, bad := range []string{"novalue", "=x"} {
		assert.Error(t, applySets(map[string]any{}, []string{bad}), bad)
	}
}
