// Package config reads settings from the environment, after loading an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
)

type Config struct {
	Env      string // "production" switches to JSON logs
	LogLevel string
	Port     string

	Backend     Backend
	DatabaseURL string
	RoomTTL     time.Duration
	WriteRate   float64 // relay patches per second per room
	WriteBurst  int

	RelayURL string // where devices find the relay

	ContentAPIURL  string
	ContentAPIKey  string
	ContentTimeout time.Duration

	AdvanceDelay      time.Duration
	TimerPollInterval time.Duration
}

// Load reads .env files if present (missing files are fine) and then the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Config{
		Env:           env("ENV", "development"),
		LogLevel:      env("LOG_LEVEL", "info"),
		Port:          env("PORT", "8080"),
		Backend:       Backend(env("STORE_BACKEND", string(BackendMemory))),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RelayURL:      env("RELAY_URL", "http://localhost:8080"),
		ContentAPIURL: os.Getenv("CONTENT_API_URL"),
		ContentAPIKey: os.Getenv("CONTENT_API_KEY"),
	}

	var err error
	if c.RoomTTL, err = duration("ROOM_TTL", 2*time.Hour); err != nil {
		return Config{}, err
	}
	if c.ContentTimeout, err = duration("CONTENT_TIMEOUT", 8*time.Second); err != nil {
		return Config{}, err
	}
	if c.AdvanceDelay, err = duration("ADVANCE_DELAY", 2*time.Second); err != nil {
		return Config{}, err
	}
	if c.TimerPollInterval, err = duration("TIMER_POLL_INTERVAL", 250*time.Millisecond); err != nil {
		return Config{}, err
	}
	if c.WriteRate, err = float("WRITE_RATE", 20); err != nil {
		return Config{}, err
	}
	if c.WriteBurst, err = integer("WRITE_BURST", 40); err != nil {
		return Config{}, err
	}

	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return Config{}, fmt.Errorf("STORE_BACKEND=postgres needs DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	return c, nil
}

func (c Config) Production() bool { return c.Env == "production" }

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func float(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
