package templating

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a file-backed SQLite database with the cache schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to setup schema: %v", err)
	}
	return db
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	a := Artifact{
		ID:          "domain/check",
		Compiled:    `<check><% .name %></check>`,
		Fingerprint: "sha256:abc",
		Deps:        []string{"domain/check.xml", "layout.xml"},
		CompiledAt:  time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC),
	}

	_, ok, err := s.Get(ctx, "ns1", a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "empty store should miss")

	require.NoError(t, s.Put(ctx, "ns1", a))
	got, ok, err := s.Get(ctx, "ns1", a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("stored artifact mismatch (-want +got):\n%s", diff)
	}

	_, ok, err = s.Get(ctx, "ns2", a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "namespaces should not share entries")

	b := a
	b.Compiled = "<check/>"
	b.Fingerprint = "sha256:def"
	require.NoError(t, s.Put(ctx, "ns1", b))
	require.NoError(t, s.Put(ctx, "ns2", a))
	got, _, err = s.Get(ctx, "ns1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "sha256:def", got.Fingerprint, "put should replace the previous entry")

	require.NoError(t, s.Clear(ctx, "ns1"))
	_, ok, err = s.Get(ctx, "ns1", a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "clear should remove the namespace's entries")
	_, ok, err = s.Get(ctx, "ns2", a.ID)
	require.NoError(t, err)
	assert.True(t, ok, "clear should leave other namespaces alone")

	require.NoError(t, s.Clear(ctx, "empty"), "clearing an empty namespace is not an error")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	exerciseStore(t, s)

	assert.FileExists(t, filepath.Join(dir, "ns2", "domain_check.json"))

	t.Run("CorruptFileIsMiss", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ns2", "domain_check.json"), []byte("{not json"), 0644))
		_, ok, err := s.Get(ctx, "ns2", "domain/check")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSQLiteStore(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SetupSchema(db), "schema setup should be idempotent")

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	exerciseStore(t, s)
}

func TestFingerprint(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(time.Minute)
	fsys := fstest.MapFS{
		"a.xml": &fstest.MapFile{Data: []byte("<a/>"), ModTime: old},
		"b.xml": &fstest.MapFile{Data: []byte("<b/>"), ModTime: newer},
	}
	deps := []string{"a.xml", "b.xml"}

	read := func(t *testing.T, fp Fingerprinter) string {
		t.Helper()
		sources, err := readSources(fsys, deps, fp.NeedsData())
		require.NoError(t, err)
		return fp.Fingerprint(sources)
	}

	t.Run("Content", func(t *testing.T) {
		fp := newFingerprinter(FingerprintContent)
		first := read(t, fp)
		assert.True(t, strings.HasPrefix(first, "sha256:"))
		assert.Equal(t, first, read(t, fp))

		fsys["b.xml"] = &fstest.MapFile{Data: []byte("<b>changed</b>"), ModTime: newer}
		assert.NotEqual(t, first, read(t, fp), "content change should alter the fingerprint")

		_, err := readSources(fsys, []string{"gone.xml"}, true)
		assert.Error(t, err)
	})

	t.Run("ModTime", func(t *testing.T) {
		fp := newFingerprinter(FingerprintModTime)
		assert.Equal(t, "mtime:"+newer.Format(time.RFC3339Nano), read(t, fp), "latest modification time should win")

		sources, err := readSources(fsys, deps, false)
		require.NoError(t, err)
		assert.Nil(t, sources[0].Data, "dated files should not be read in modtime mode")
	})

	t.Run("ModTimeWithoutTimes", func(t *testing.T) {
		undated := fstest.MapFS{"a.xml": &fstest.MapFile{Data: []byte("<a>1</a>")}}
		fp := newFingerprinter(FingerprintModTime)

		sources, err := readSources(undated, []string{"a.xml"}, false)
		require.NoError(t, err)
		first := fp.Fingerprint(sources)

		undated["a.xml"] = &fstest.MapFile{Data: []byte("<a>2</a>")}
		sources, err = readSources(undated, []string{"a.xml"}, false)
		require.NoError(t, err)
		assert.NotEqual(t, first, fp.Fingerprint(sources), "files without a modification time should be compared by content")
	})
}
