// Package app assembles the server: configuration from the
// environment, the logging router, the SQLite save store, the world,
// the hub, the HTTP server, and the autosave loop.
package app

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	gamenet "geocoin-carrier/server/internal/net"
	"geocoin-carrier/server/internal/storage"
	"geocoin-carrier/server/internal/telemetry"
	"geocoin-carrier/server/internal/world"
	"geocoin-carrier/server/logging"
	"geocoin-carrier/server/logging/sinks"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Addr             string        `env:"GEOCOIN_ADDR" envDefault:":8080"`
	ClientDir        string        `env:"GEOCOIN_CLIENT_DIR"`
	DBPath           string        `env:"GEOCOIN_DB_PATH" envDefault:"data/geocoin.db"`
	SessionID        string        `env:"GEOCOIN_SESSION" envDefault:"default"`
	Seed             string        `env:"GEOCOIN_SEED"`
	AutosaveInterval time.Duration `env:"GEOCOIN_AUTOSAVE_INTERVAL" envDefault:"30s"`
	LogJSONPath      string        `env:"GEOCOIN_LOG_JSON"`
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully: autosave stops, a final save is written, the HTTP
// server drains, and the log router flushes.
func Run(ctx context.Context, cfg Config) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	logCfg := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: logging.SinkConsole, Sink: sinks.NewConsole(os.Stdout)},
	}
	if cfg.LogJSONPath != "" {
		jsonSink, err := sinks.NewJSON(cfg.LogJSONPath)
		if err != nil {
			return err
		}
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, logging.SinkJSON)
		logCfg.JSON.FilePath = cfg.LogJSONPath
		namedSinks = append(namedSinks, logging.NamedSink{Name: logging.SinkJSON, Sink: jsonSink})
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, namedSinks)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := router.Close(closeCtx); err != nil {
			logger.Printf("log router close: %v", err)
		}
	}()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	worldCfg := world.DefaultConfig()
	if cfg.Seed != "" {
		worldCfg.Seed = cfg.Seed
	}
	w := world.New(worldCfg, world.Deps{Publisher: router})

	if doc, found, err := store.LoadGame(ctx, cfg.SessionID); err != nil {
		return err
	} else if found {
		if err := w.ImportSave(doc); err != nil {
			logger.Printf("discarding incompatible save for session %s: %v", cfg.SessionID, err)
		} else {
			logger.Printf("restored session %s (seed %q)", cfg.SessionID, doc.Seed)
		}
	}

	hub := gamenet.NewHub(w, telemetry.WrapLogger(logger))

	saveNow := func(saveCtx context.Context) {
		doc := hub.ExportSave()
		if err := store.SaveGame(saveCtx, cfg.SessionID, doc); err != nil {
			logger.Printf("autosave failed for session %s: %v", cfg.SessionID, err)
		}
	}

	autosaveDone := make(chan struct{})
	go func() {
		defer close(autosaveDone)
		interval := cfg.AutosaveInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				saveNow(ctx)
			}
		}
	}()

	server := &nethttp.Server{
		Addr: cfg.Addr,
		Handler: gamenet.NewHTTPHandler(hub, gamenet.HTTPHandlerConfig{
			ClientDir: cfg.ClientDir,
			Logger:    logger,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	<-autosaveDone
	saveNow(shutdownCtx)
	return nil
}
