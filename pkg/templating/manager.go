package templating

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"sync"
	"text/template"
	"time"
)

// TemplateManager is the central controller for the template engine. It
// loads sources from a filesystem, compiles them, keeps compiled templates in
// a Store and renders them into normalized documents.
//
// A render is a compile-then-execute sequence over shared state, so the
// manager serializes renders. All methods are safe for concurrent use.
type TemplateManager struct {
	logger       *slog.Logger
	config       Config
	fsys         fs.FS
	store        Store
	funcMap      template.FuncMap
	compiler     *compiler
	fingerprint  Fingerprinter
	parsed       map[string]*parsedTemplate
	compilations uint64
	mu           sync.Mutex
}

// parsedTemplate is the host template built from an artifact, reused while
// the compiled text is unchanged.
type parsedTemplate struct {
	compiled string
	tmpl     *template.Template
}

// NewTemplateManager creates a TemplateManager reading sources from fsys and
// persisting compiled templates in store. A nil store keeps them in memory.
// Zero fields of config are filled from DefaultConfig.
func NewTemplateManager(logger *slog.Logger, fsys fs.FS, store Store, config Config) (*TemplateManager, error) {
	if fsys == nil {
		return nil, errors.New("template filesystem is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	funcMap := FuncMap()
	tm := &TemplateManager{
		logger:      logger,
		config:      config,
		fsys:        fsys,
		store:       store,
		funcMap:     funcMap,
		compiler:    newCompiler(funcMap),
		fingerprint: newFingerprinter(config.Fingerprint),
		parsed:      make(map[string]*parsedTemplate),
	}

	logger.Info("Template manager initialized",
		"cache_enabled", config.CacheEnabled,
		"cache_namespace", config.CacheNamespace,
		"fingerprint", string(config.Fingerprint))
	return tm, nil
}

// SetConfig applies a new configuration. Compiled templates already in the
// store stay valid; they are checked against the new fingerprint mode on
// their next render.
func (tm *TemplateManager) SetConfig(config Config) error {
	config, err := config.withDefaults()
	if err != nil {
		return err
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.config = config
	tm.fingerprint = newFingerprinter(config.Fingerprint)
	return nil
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() Config {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.config
}

// Compilations returns how many times a template has been compiled since
// the manager was created. A render served from the store does not count.
func (tm *TemplateManager) Compilations() uint64 {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.compilations
}

// Render renders the template named id with data and returns the
// normalized document.
func (tm *TemplateManager) Render(id string, data map[string]any) (string, error) {
	return tm.RenderContext(context.Background(), id, data)
}

// RenderContext is Render with a context for the store operations.
//
// It fails with a *LookupError when id or one of its includes cannot be
// loaded, an *ExpressionError when an expression is invalid or cannot be
// evaluated, and a *DocumentFormatError when the output is not well-formed.
// Store failures are returned wrapped. No output is returned with an error.
func (tm *TemplateManager) RenderContext(ctx context.Context, id string, data map[string]any) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	logger := tm.logger.With("template", id, "render_id", newRenderID())

	artifact, err := tm.artifact(ctx, id, logger)
	if err != nil {
		return "", err
	}

	tmpl, err := tm.parsedFor(artifact)
	if err != nil {
		return "", &ExpressionError{ID: id, Stage: "parse", Err: err}
	}

	out, err := tm.execute(id, tmpl, data)
	if err != nil {
		logger.Debug("Render failed", "error", err)
		return "", err
	}
	logger.Debug("Rendered template", "bytes", len(out))
	return out, nil
}

// RenderString compiles and renders src as an unnamed template. Includes are
// resolved against the manager's filesystem. The result is never stored.
func (tm *TemplateManager) RenderString(src string, data map[string]any) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	const name = "<string>"
	l := newLoader(tm.fsys, tm.config.Extension, tm.config.MaxIncludeDepth)
	text, err := l.inline(name, src)
	if err != nil {
		return "", err
	}
	compiled := tm.compiler.compile(text, NewBlocks(tm.config.ParentMode))
	tmpl, err := tm.compiler.parse(name, compiled)
	if err != nil {
		return "", &ExpressionError{ID: name, Stage: "parse", Err: err}
	}
	return tm.execute(name, tmpl, data)
}

// ClearCache removes every compiled template in the manager's namespace.
func (tm *TemplateManager) ClearCache() error {
	return tm.ClearCacheContext(context.Background())
}

// ClearCacheContext is ClearCache with a context for the store operation.
func (tm *TemplateManager) ClearCacheContext(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.store.Clear(ctx, tm.config.CacheNamespace); err != nil {
		tm.logger.Error("failed to clear compiled templates", "error", err)
		return fmt.Errorf("clear compiled templates: %w", err)
	}
	tm.parsed = make(map[string]*parsedTemplate)
	tm.logger.Info("Compiled templates cleared", "namespace", tm.config.CacheNamespace)
	return nil
}

// Templates returns the identifiers of every template in the filesystem,
// sorted. Identifiers carry the configured extension.
func (tm *TemplateManager) Templates() ([]string, error) {
	tm.mu.Lock()
	ext := tm.config.Extension
	tm.mu.Unlock()

	var ids []string
	err := fs.WalkDir(tm.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (ext != "" && path.Ext(p) != ext) {
			return nil
		}
		ids = append(ids, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// artifact returns a fresh compiled template for id, reusing the stored one
// when caching is enabled and its fingerprint still matches.
func (tm *TemplateManager) artifact(ctx context.Context, id string, logger *slog.Logger) (Artifact, error) {
	ns := tm.config.CacheNamespace

	if tm.config.CacheEnabled {
		cached, ok, err := tm.store.Get(ctx, ns, id)
		if err != nil {
			return Artifact{}, fmt.Errorf("read compiled template %q: %w", id, err)
		}
		if ok {
			sources, err := readSources(tm.fsys, cached.Deps, tm.fingerprint.NeedsData())
			if err == nil && tm.fingerprint.Fingerprint(sources) == cached.Fingerprint {
				logger.Debug("Using compiled template", "compiled_at", cached.CompiledAt)
				return cached, nil
			}
			logger.Debug("Compiled template is stale", "stored", cached.Fingerprint)
		}
	}

	artifact, err := tm.compile(id)
	if err != nil {
		return Artifact{}, err
	}
	logger.Debug("Compiled template", "deps", artifact.Deps, "compilations", tm.compilations)

	if err = tm.store.Put(ctx, ns, artifact); err != nil {
		logger.Error("failed to store compiled template", "error", err)
		return Artifact{}, fmt.Errorf("store compiled template %q: %w", id, err)
	}
	return artifact, nil
}

// compile loads and compiles id with a fresh block registry, then checks
// the result against the host grammar before it can be stored.
func (tm *TemplateManager) compile(id string) (Artifact, error) {
	l := newLoader(tm.fsys, tm.config.Extension, tm.config.MaxIncludeDepth)
	text, err := l.load(id)
	if err != nil {
		return Artifact{}, err
	}

	compiled := tm.compiler.compile(text, NewBlocks(tm.config.ParentMode))
	tmpl, err := tm.compiler.parse(id, compiled)
	if err != nil {
		return Artifact{}, &ExpressionError{ID: id, Stage: "parse", Err: err}
	}

	fp := tm.fingerprint.Fingerprint(l.readSources())

	tm.compilations++
	tm.parsed[id] = &parsedTemplate{compiled: compiled, tmpl: tmpl}
	return Artifact{
		ID:          id,
		Compiled:    compiled,
		Fingerprint: fp,
		Deps:        l.deps,
		CompiledAt:  time.Now().UTC(),
	}, nil
}

func (tm *TemplateManager) parsedFor(a Artifact) (*template.Template, error) {
	if p, ok := tm.parsed[a.ID]; ok && p.compiled == a.Compiled {
		return p.tmpl, nil
	}
	tmpl, err := tm.compiler.parse(a.ID, a.Compiled)
	if err != nil {
		return nil, err
	}
	tm.parsed[a.ID] = &parsedTemplate{compiled: a.Compiled, tmpl: tmpl}
	return tmpl, nil
}
