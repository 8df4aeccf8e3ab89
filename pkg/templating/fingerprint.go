package templating

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// Source is one file a template was built from, as it was read.
type Source struct {
	Path    string
	Data    []byte
	ModTime time.Time
}

// Fingerprinter measures the freshness of the files a template was built
// from. Equal sources give equal fingerprints.
type Fingerprinter interface {
	Fingerprint(sources []Source) string
	// NeedsData reports whether Fingerprint looks at Source.Data.
	NeedsData() bool
}

type contentFingerprinter struct{}

func (contentFingerprinter) Fingerprint(sources []Source) string { return contentFingerprint(sources) }
func (contentFingerprinter) NeedsData() bool { return true }

type modTimeFingerprinter struct{}

func (modTimeFingerprinter) Fingerprint(sources []Source) string { return modTimeFingerprint(sources) }
func (modTimeFingerprinter) NeedsData() bool { return false }

func newFingerprinter(mode FingerprintMode) Fingerprinter {
	if mode == FingerprintModTime {
		return modTimeFingerprinter{}
	}
	return contentFingerprinter{}
}

// contentFingerprint hashes each source's path and bytes.
func contentFingerprint(sources []Source) string {
	h := sha256.New()
	for _, s := range sources {
		fmt.Fprintf(h, "%s\x00%d\x00", s.Path, len(s.Data))
		h.Write(s.Data)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// modTimeFingerprint returns the latest modification time among sources.
// Files without one, such as those embedded in the binary, are hashed
// instead.
func modTimeFingerprint(sources []Source) string {
	var latest time.Time
	var undated []Source
	for _, s := range sources {
		if s.ModTime.IsZero() {
			undated = append(undated, s)
			continue
		}
		if s.ModTime.After(latest) {
			latest = s.ModTime
		}
	}
	fp := "mtime:" + latest.UTC().Format(time.RFC3339Nano)
	if len(undated) > 0 {
		fp += "+" + contentFingerprint(undated)
	}
	return fp
}

// readSource stats and reads p from a single open handle. Data is only read
// when withData is set or the file has no modification time.
func readSource(fsys fs.FS, p string, withData bool) (Source, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return Source{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Source{}, err
	}
	src := Source{Path: p, ModTime: info.ModTime()}
	if withData || src.ModTime.IsZero() {
		if src.Data, err = io.ReadAll(f); err != nil {
			return Source{}, err
		}
	}
	return src, nil
}

// readSources reads the current state of deps for a freshness check.
func readSources(fsys fs.FS, deps []string, withData bool) ([]Source, error) {
	sources := make([]Source, 0, len(deps))
	for _, dep := range deps {
		src, err := readSource(fsys, dep, withData)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
