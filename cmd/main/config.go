package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/CTAG07/epptmpl/pkg/eppxml"
	"github.com/CTAG07/epptmpl/pkg/templating"
	"github.com/natefinch/atomic"
)

// Cache backends selectable in ServerConfig.CacheBackend.
const (
	backendMemory = "memory"
	backendFile   = "file"
	backendSQLite = "sqlite"
)

// ServerConfig holds the configuration for the CLI and the preview server.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	TemplateDir  string `json:"template_dir"`
	CacheBackend string `json:"cache_backend"`
	CacheDir     string `json:"cache_dir"`
	DatabasePath string `json:"database_path"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig     `json:"server_config"`
	Templates templating.Config `json:"template_config"`
}

// DefaultServerConfig creates a server configuration with default values.
// An empty TemplateDir selects the bundled templates.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      "127.0.0.1:7700",
		LogLevel:     "info",
		TemplateDir:  "",
		CacheBackend: backendFile,
		CacheDir:     "./data/cache",
		DatabasePath: "./data/epptmpl.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server:    DefaultServerConfig(),
		Templates: templating.DefaultConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The defaults are still usable without a file on disk.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	return config, nil
}

// templateFS returns the directory named in the config, or the bundled
// templates when none is set.
func (c *Config) templateFS() fs.FS {
	if c.Server.TemplateDir == "" {
		return eppxml.FS
	}
	return os.DirFS(c.Server.TemplateDir)
}

// ConfigManager handles thread-safe access to the configuration and keeps the
// template manager in step with it.
type ConfigManager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
	tm         *templating.TemplateManager
}

// NewConfigManager wraps an already loaded config.
func NewConfigManager(path string, config *Config, tm *templating.TemplateManager) *ConfigManager {
	return &ConfigManager{config: config, configPath: path, tm: tm}
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c := *cm.config
	server := *cm.config.Server
	c.Server = &server
	return c
}

// UpdateTemplates applies a new template configuration and saves it to disk.
// An invalid configuration is rejected without touching the file.
func (cm *ConfigManager) UpdateTemplates(tc templating.Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.tm.SetConfig(tc); err != nil {
		return fmt.Errorf("template configuration rejected: %w", err)
	}
	cm.config.Templates = cm.tm.GetConfig()

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// newLogger builds the text logger for a configured level name.
func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
