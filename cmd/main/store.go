package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/epptmpl/pkg/templating"
)

// openManager builds the template manager over the configured source and
// cache backend. The returned function releases the backend.
func openManager(config *Config, logger *slog.Logger) (*templating.TemplateManager, func() error, error) {
	store, closeStore, err := openStore(config.Server)
	if err != nil {
		return nil, nil, err
	}

	tm, err := templating.NewTemplateManager(logger, config.templateFS(), store, config.Templates)
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("failed to create template manager: %w", err)
	}
	return tm, closeStore, nil
}

func openStore(sc *ServerConfig) (templating.Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(sc.CacheBackend) {
	case backendMemory, "":
		return templating.NewMemoryStore(), noop, nil
	case backendFile:
		return templating.NewFileStore(sc.CacheDir), noop, nil
	case backendSQLite:
		dbFile, _, _ := strings.Cut(sc.DatabasePath, "?")
		if err := os.MkdirAll(filepath.Dir(dbFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := initDB(sc.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err = templating.SetupSchema(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store, err := templating.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to prepare cache statements: %w", err)
		}
		return store, func() error {
			store.Close()
			return db.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", sc.CacheBackend)
	}
}
