package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CTAG07/epptmpl/pkg/templating"
)

// Server hosts the preview API.
type Server struct {
	config      *ConfigManager
	logger      *slog.Logger
	tm          *templating.TemplateManager
	templateAPI *TemplateAPI
	serverAPI   *ServerAPI
	apiMux      *http.ServeMux
}

// NewServer wires the API handlers to a fresh mux.
func NewServer(cm *ConfigManager, tm *templating.TemplateManager, fsys fs.FS, logger *slog.Logger, actionChan chan string) *Server {
	server := &Server{
		config:      cm,
		logger:      logger,
		tm:          tm,
		templateAPI: NewTemplateAPI(tm, fsys, logger),
		serverAPI:   NewServerAPI(cm, actionChan, logger),
		apiMux:      http.NewServeMux(),
	}
	server.templateAPI.RegisterRoutes(server.apiMux)
	server.serverAPI.RegisterRoutes(server.apiMux)
	return server
}

// serve runs the preview server until it is shut down, starting it again
// with a freshly loaded configuration whenever a restart is requested.
func serve(configPath string, overrides func(*Config)) error {
	baseLogger := newLogger("info")
	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(configPath, overrides, actionChan)
		if err != nil {
			return err
		}
		if action != actionRestart {
			break
		}
		baseLogger.Info("--- Server Restarting ---")
	}

	baseLogger.Info("epptmpl server has shut down.")
	return nil
}

// run hosts the API for one server cycle and returns the action that ended it.
func run(configPath string, overrides func(*Config), actionChan chan string) (string, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	overrides(config)

	logger := newLogger(config.Server.LogLevel)
	logger.Info("Starting server cycle...")

	tm, closeStore, err := openManager(config, logger)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close cache store", "error", err)
		}
	}()

	cm := NewConfigManager(configPath, config, tm)
	server := NewServer(cm, tm, config.templateFS(), logger, actionChan)
	apiHttpServer := &http.Server{
		Addr:              config.Server.ApiAddr,
		Handler:           server.apiMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting preview api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
			actionChan <- actionShutdown
		}
	}()

	action := <-actionChan

	logger.Info("Stopping server for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")
	return action, nil
}
