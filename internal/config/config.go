// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package config loads and validates the Resonate service configuration.
// Settings layer in order of precedence: struct defaults, then an optional
// YAML file, then RESONATE_-prefixed environment variables.
package config

import (
	"time"

	"github.com/affectlab/resonate/internal/engine"
)

// Config is the root configuration for the Resonate service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Engine    engine.Config   `koanf:"engine"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Retriever RetrieverConfig `koanf:"retriever"`
	Events    EventsConfig    `koanf:"events"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	// ShutdownTimeout bounds graceful drain on SIGTERM.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is the per-client request budget per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Store backends for the Q-table.
const (
	StoreBackendMemory = "memory"
	StoreBackendBadger = "badger"
)

// StoreConfig selects and tunes the Q-table store.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend"`

	// Path is the BadgerDB directory. Required for the badger backend.
	Path string `koanf:"path"`

	// SyncWrites fsyncs every Q-update commit.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// DatabaseConfig holds DuckDB experience-log settings.
type DatabaseConfig struct {
	// Path is the database file. Empty runs DuckDB in memory.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB's memory use, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. Zero uses NumCPU.
	Threads int `koanf:"threads"`

	// MaxOpenConns caps the sql.DB pool. Zero derives from NumCPU.
	MaxOpenConns int `koanf:"max_open_conns"`
}

// Retriever modes for candidate sourcing.
const (
	RetrieverModeStatic = "static"
	RetrieverModeHTTP   = "http"
)

// RetrieverConfig selects and tunes the candidate retriever.
type RetrieverConfig struct {
	// Mode is "static" (in-process catalog) or "http" (remote vector index).
	Mode string `koanf:"mode"`

	// URL is the remote index endpoint. Required for the http mode.
	URL string `koanf:"url"`

	// Timeout bounds a single retrieval call.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the steady-state requests/second to the remote index;
	// Burst is the short-term allowance above it.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	Breaker BreakerConfig `koanf:"breaker"`

	// CatalogPath optionally seeds the static retriever from a JSON file.
	CatalogPath string `koanf:"catalog_path"`
}

// BreakerConfig tunes the circuit breaker in front of the remote index.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval resets the closed-state failure counts.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout"`

	// FailureThreshold is the consecutive-failure count that trips the
	// breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// EventsConfig controls the asynchronous feedback pipeline.
type EventsConfig struct {
	Enabled bool       `koanf:"enabled"`
	NATS    NATSConfig `koanf:"nats"`
}

// NATSConfig holds NATS JetStream transport settings.
type NATSConfig struct {
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS server instead of dialing URL.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	StreamName string `koanf:"stream_name"`

	// MaxMemory and MaxStore cap embedded JetStream resources, in bytes.
	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// MaxReconnects for the client connection; negative retries forever.
	MaxReconnects  int           `koanf:"max_reconnects"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
}

// WebSocketConfig controls the live policy/progress update feed.
type WebSocketConfig struct {
	Enabled bool `koanf:"enabled"`

	// SendBufferSize is the per-client outbound queue; slow clients that
	// fall behind it are disconnected.
	SendBufferSize int `koanf:"send_buffer_size"`

	PingInterval time.Duration `koanf:"ping_interval"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// StatsInterval is how often engine stats snapshots are pushed to
	// connected clients.
	StatsInterval time.Duration `koanf:"stats_interval"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" (production) or "console" (development).
	Format string `koanf:"format"`

	// Caller annotates log lines with file:line.
	Caller bool `koanf:"caller"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// DefaultConfig returns the built-in defaults, suitable for a single-node
// development deployment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       300,
			RateLimitWindow: time.Minute,
		},
		Engine: engine.DefaultConfig(),
		Store: StoreConfig{
			Backend:    StoreBackendMemory,
			Path:       "/data/resonate/qtable",
			SyncWrites: false,
			GCInterval: 10 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:         "",
			MaxMemory:    "2GB",
			Threads:      0,
			MaxOpenConns: 0,
		},
		Retriever: RetrieverConfig{
			Mode:      RetrieverModeStatic,
			URL:       "",
			Timeout:   2 * time.Second,
			RateLimit: 50,
			Burst:     10,
			Breaker: BreakerConfig{
				MaxRequests:      5,
				Interval:         30 * time.Second,
				Timeout:          15 * time.Second,
				FailureThreshold: 5,
			},
			CatalogPath: "",
		},
		Events: EventsConfig{
			Enabled: false,
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: true,
				StoreDir:       "/data/resonate/nats",
				StreamName:     "RESONATE_FEEDBACK",
				MaxMemory:      512 << 20,
				MaxStore:       4 << 30,
				MaxReconnects:  -1,
				AckWaitTimeout: 30 * time.Second,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			SendBufferSize: 64,
			PingInterval:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
			StatsInterval:  15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
