package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-station-api/internal/weather"
)

// RemoteKind selects the remote store implementation.
type RemoteKind string

const (
	RemoteAzure RemoteKind = "azure"
	RemoteDir   RemoteKind = "dir"
)

// Device is one tracked device and the sensor types mirrored for it.
type Device struct {
	Name        string               `yaml:"name"`
	SensorTypes []weather.SensorType `yaml:"sensorTypes"`
}

type AppConfig struct {
	RemoteKind       RemoteKind
	ConnectionString string
	Container        string
	RemoteDir        string

	// CacheRoot is the local mirror directory shared with the query layer.
	CacheRoot string

	// SyncInterval controls how often the mirror is refreshed.
	SyncInterval time.Duration

	// Devices to track.
	Devices []Device

	// Per-file retry policy.
	SyncMaxRetries   int
	SyncRetryInitial time.Duration
	SyncRetryMax     time.Duration
	FailureThreshold int // consecutive failures before a file is reported as persistent

	HTTPTimeout time.Duration
	Location    *time.Location

	LogLevel  string
	LogFormat string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("config: no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.RemoteKind = RemoteKind(strings.ToLower(getenvDefault("REMOTE_KIND", string(RemoteAzure))))
	cfg.ConnectionString = os.Getenv("STORAGE_CONNECTION_STRING")
	cfg.Container = getenvDefault("STORAGE_CONTAINER", "iotbackend")
	cfg.RemoteDir = os.Getenv("REMOTE_DIR")
	switch cfg.RemoteKind {
	case RemoteAzure:
	case RemoteDir:
		if cfg.RemoteDir == "" {
			return nil, fmt.Errorf("REMOTE_DIR is required when REMOTE_KIND=dir")
		}
	default:
		return nil, fmt.Errorf("invalid REMOTE_KIND %q", cfg.RemoteKind)
	}

	cfg.CacheRoot = getenvDefault("CACHE_ROOT", "/data")

	var err error
	// Refresh interval: default 20 minutes.
	if cfg.SyncInterval, err = getenvDuration("SYNC_INTERVAL", "20m"); err != nil {
		return nil, err
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if cfg.SyncRetryInitial, err = getenvDuration("SYNC_RETRY_INITIAL", "500ms"); err != nil {
		return nil, err
	}
	if cfg.SyncRetryMax, err = getenvDuration("SYNC_RETRY_MAX", "10s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	cfg.SyncMaxRetries = getenvInt("SYNC_MAX_RETRIES", 3)
	if cfg.SyncMaxRetries < 0 {
		return nil, fmt.Errorf("SYNC_MAX_RETRIES must not be negative")
	}
	cfg.FailureThreshold = getenvInt("SYNC_FAILURE_THRESHOLD", 3)
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("SYNC_FAILURE_THRESHOLD must be positive")
	}
	if cfg.SyncRetryInitial <= 0 {
		return nil, fmt.Errorf("SYNC_RETRY_INITIAL must be positive")
	}

	tz := getenvDefault("TIMEZONE", "UTC")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "console")
	cfg.Port = getenvDefault("PORT", "8080")

	if path := os.Getenv("DEVICES_FILE"); path != "" {
		cfg.Devices, err = LoadDevicesFromYAML(path)
	} else {
		cfg.Devices, err = loadDevicesFromEnv()
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDevicesFromEnv() ([]Device, error) {
	types, err := parseSensorTypes(getenvDefault("SYNC_SENSOR_TYPES", "temperature,humidity,rainfall"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SENSOR_TYPES: %w", err)
	}

	var devices []Device
	for _, name := range splitList(getenvDefault("SYNC_DEVICES", "dockan")) {
		if !weather.ValidDeviceName(name) {
			return nil, fmt.Errorf("invalid device name %q in SYNC_DEVICES", name)
		}
		devices = append(devices, Device{Name: name, SensorTypes: types})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("SYNC_DEVICES must name at least one device")
	}
	return devices, nil
}

func parseSensorTypes(s string) ([]weather.SensorType, error) {
	var types []weather.SensorType
	for _, name := range splitList(s) {
		t, err := weather.ParseSensorType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one sensor type is required")
	}
	return types, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
