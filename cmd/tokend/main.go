package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokenlayer/config"
	"tokenlayer/core"
	"tokenlayer/core/state"
	"tokenlayer/observability"
	"tokenlayer/observability/logging"
	"tokenlayer/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TOKENLAYER_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.LogEnvironment
	}
	logger := logging.Setup("tokend", env, cfg.LogPath)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine := core.NewEngine(cfg.NetworkName, logger)
	engine.SetMetrics(observability.Engine())

	height, err := engine.Restore(db)
	switch {
	case err == nil:
		logger.Info("state restored", slog.Int64("height", height))
	case errors.Is(err, state.ErrNoSnapshot):
		logger.Info("no snapshot found, starting from empty state")
	default:
		logger.Error("snapshot restore failed", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		logger.Info("metrics exposed", slog.String("address", cfg.MetricsAddress))
	}

	logger.Info("engine ready",
		slog.String("network", cfg.NetworkName),
		slog.String("consensus_hash", engine.ConsensusHash().Hex()))

	// The engine consumes confirmed blocks from the chain layer; wiring a
	// chain source is deployment-specific and happens here.
	select {}
}
