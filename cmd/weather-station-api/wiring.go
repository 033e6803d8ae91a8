package main

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-station-api/internal/config"
	"github.com/i474232898/weather-station-api/internal/logging"
	"github.com/i474232898/weather-station-api/internal/mirror"
	"github.com/i474232898/weather-station-api/internal/remote"
	"github.com/i474232898/weather-station-api/internal/store"
)

// setup loads configuration, initialises logging and builds the mirror engine.
func setup() (*config.AppConfig, *mirror.Engine, *store.MemoryStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	remoteStore, err := newRemoteStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	if n, err := mirror.CleanupTemp(cfg.CacheRoot); err != nil {
		log.Warn().Err(err).Str("root", cfg.CacheRoot).Msg("failed to sweep stale temp files")
	} else if n > 0 {
		log.Info().Int("removed", n).Msg("removed stale temp files")
	}

	status := store.NewMemoryStore(cfg.FailureThreshold)
	engine := mirror.NewEngine(remoteStore, mirror.Options{
		CacheRoot: cfg.CacheRoot,
		Targets:   targets(cfg.Devices),
		Retry: mirror.RetryPolicy{
			MaxRetries:      cfg.SyncMaxRetries,
			InitialInterval: cfg.SyncRetryInitial,
			MaxInterval:     cfg.SyncRetryMax,
		},
		FailureThreshold: cfg.FailureThreshold,
		Status:           status,
	})
	return cfg, engine, status, nil
}

func newRemoteStore(cfg *config.AppConfig) (mirror.RemoteStore, error) {
	switch cfg.RemoteKind {
	case config.RemoteDir:
		log.Info().Str("dir", cfg.RemoteDir).Msg("using directory remote store")
		return remote.NewDirStore(cfg.RemoteDir, 0), nil
	default:
		// Shared HTTP client for outbound blob calls.
		client := &http.Client{Timeout: cfg.HTTPTimeout}
		bs, err := remote.NewBlobStore(cfg.ConnectionString, cfg.Container, client, remote.BackoffConfig{
			MaxRetries:      cfg.SyncMaxRetries,
			InitialInterval: cfg.SyncRetryInitial,
			MaxInterval:     cfg.SyncRetryMax,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure blob store: %w", err)
		}
		log.Info().Str("container", cfg.Container).Msg("using azure blob remote store")
		return bs, nil
	}
}

func targets(devices []config.Device) []mirror.Target {
	out := make([]mirror.Target, 0, len(devices))
	for _, d := range devices {
		t := mirror.Target{Device: d.Name}
		for _, st := range d.SensorTypes {
			t.SensorTypes = append(t.SensorTypes, string(st))
		}
		out = append(out, t)
	}
	return out
}
