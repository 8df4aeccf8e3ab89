package templating

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const artifactExt = ".json"

// FileStore keeps one JSON file per compiled template under root/namespace.
// Files are replaced atomically, so a reader never sees a partial artifact.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Get treats an unreadable or undecodable file as a missing entry so the
// template is recompiled and the file rewritten.
func (s *FileStore) Get(_ context.Context, namespace, id string) (Artifact, bool, error) {
	data, err := os.ReadFile(s.path(namespace, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err = json.Unmarshal(data, &a); err != nil || a.ID != id {
		return Artifact{}, false, nil
	}
	return a, true, nil
}

func (s *FileStore) Put(_ context.Context, namespace string, a Artifact) error {
	dir := filepath.Join(s.root, namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err = atomic.WriteFile(s.path(namespace, a.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, namespace string) error {
	files, err := filepath.Glob(filepath.Join(s.root, namespace, "*"+artifactExt))
	if err != nil {
		return err
	}
	for _, file := range files {
		if err = os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	return nil
}

// path flattens the identifier into a single file name: "domain/check.xml"
// is stored as "domain_check.xml.json".
func (s *FileStore) path(namespace, id string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(id)
	return filepath.Join(s.root, namespace, name+artifactExt)
}
