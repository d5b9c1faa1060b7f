package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the live session service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	DatabaseURL      string

	AllowAnyOrigin bool

	// BroadcastStaleAfter is the heartbeat age beyond which the
	// discovery sweep reaps a broadcast.
	BroadcastStaleAfter time.Duration

	// HeartbeatInterval is advertised to clients driving their own
	// heartbeat loops.
	HeartbeatInterval time.Duration

	// ICEServers configures the client peer connection factory.
	ICEServers []string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "wavelength"),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AllowAnyOrigin:      false,
		ShutdownTimeout:     15 * time.Second,
		BroadcastStaleAfter: 30 * time.Second,
		HeartbeatInterval:   10 * time.Second,
	}
	if v := strings.TrimSpace(os.Getenv("APP_ICE_SERVERS")); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ICEServers = append(cfg.ICEServers, u)
			}
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BroadcastStaleAfter, err = durationFromEnv("APP_BROADCAST_STALE_AFTER", cfg.BroadcastStaleAfter)
	if err != nil {
		return Config{}, err
	}
	cfg.HeartbeatInterval, err = durationFromEnv("APP_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.BroadcastStaleAfter < 5*time.Second {
		return Config{}, fmt.Errorf("APP_BROADCAST_STALE_AFTER must be at least 5s")
	}
	if cfg.HeartbeatInterval < time.Second {
		return Config{}, fmt.Errorf("APP_HEARTBEAT_INTERVAL must be at least 1s")
	}
	if cfg.HeartbeatInterval >= cfg.BroadcastStaleAfter {
		return Config{}, fmt.Errorf("APP_HEARTBEAT_INTERVAL must be shorter than APP_BROADCAST_STALE_AFTER")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
