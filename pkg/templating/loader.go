package templating

import (
	"io/fs"
	"path"
	"regexp"
	"strings"
)

var (
	// {% extends 'layout' %}, {% include "domain/contact" %}, {% include poll %}
	includeRe = regexp.MustCompile(`(?i)\{%\s*(?:extends|include)\s+['"]?([^'"%\s]+)['"]?\s*%\}`)
	// Anything that still looks like an include after substitution, such as
	// a directive missing its target.
	residualIncludeRe = regexp.MustCompile(`(?i)\{%\s*(?:extends|include)\b[^%]*%\}`)
)

// loader reads template sources and inlines extends/include directives. A
// loader is used for one compile and records every file it read.
type loader struct {
	fsys     fs.FS
	ext      string
	maxDepth int
	deps     []string
	sources  map[string]Source
}

func newLoader(fsys fs.FS, ext string, maxDepth int) *loader {
	return &loader{
		fsys:     fsys,
		ext:      ext,
		maxDepth: maxDepth,
		sources:  make(map[string]Source),
	}
}

// load returns the fully inlined source of the template named id.
func (l *loader) load(id string) (string, error) {
	return l.resolve(id, nil)
}

// inline resolves the directives of a source that did not come from the
// template filesystem. name only appears in errors.
func (l *loader) inline(name, src string) (string, error) {
	return l.substitute(src, []string{name})
}

func (l *loader) resolve(id string, chain []string) (string, error) {
	if len(chain) >= l.maxDepth {
		return "", &LookupError{ID: id, Chain: chain, Err: ErrIncludeDepth}
	}

	p, err := l.path(id)
	if err != nil {
		return "", &LookupError{ID: id, Chain: chain, Err: err}
	}
	for _, parent := range chain {
		if parent == p {
			return "", &LookupError{ID: id, Chain: chain, Err: ErrIncludeCycle}
		}
	}

	src, err := l.read(p)
	if err != nil {
		return "", &LookupError{ID: id, Chain: chain, Err: err}
	}
	return l.substitute(string(src.Data), append(chain, p))
}

// read returns the source of p, reading each file at most once per compile
// so the compiled text and its fingerprint see the same bytes.
func (l *loader) read(p string) (Source, error) {
	if src, ok := l.sources[p]; ok {
		return src, nil
	}
	src, err := readSource(l.fsys, p, true)
	if err != nil {
		return Source{}, err
	}
	l.sources[p] = src
	l.deps = append(l.deps, p)
	return src, nil
}

// readSources returns the sources in the order they were first read.
func (l *loader) readSources() []Source {
	out := make([]Source, 0, len(l.deps))
	for _, dep := range l.deps {
		out = append(out, l.sources[dep])
	}
	return out
}

// substitute replaces each include directive in src with the resolved text
// of its target, depth first, then strips residual directives.
func (l *loader) substitute(src string, chain []string) (string, error) {
	var firstErr error
	out := includeRe.ReplaceAllStringFunc(src, func(match string) string {
		if firstErr != nil {
			return match
		}
		target := includeRe.FindStringSubmatch(match)[1]
		text, err := l.resolve(target, chain[:len(chain):len(chain)])
		if err != nil {
			firstErr = err
			return match
		}
		return text
	})
	if firstErr != nil {
		return "", firstErr
	}
	return residualIncludeRe.ReplaceAllString(out, ""), nil
}

// path maps an identifier to a path inside the template filesystem.
func (l *loader) path(id string) (string, error) {
	p := strings.TrimSpace(strings.ReplaceAll(id, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" || !fs.ValidPath(p) {
		return "", ErrInvalidID
	}
	if path.Ext(p) == "" {
		p += l.ext
	}
	return p, nil
}
