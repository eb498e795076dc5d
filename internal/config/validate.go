// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package config

import (
	"fmt"
	"net/url"
)

// Validate checks every section for required values and sane ranges.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRetriever(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive, got %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive, got %v", c.Server.WriteTimeout)
	}
	if c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server.idle_timeout must be positive, got %v", c.Server.IdleTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is on, got %v",
			c.Server.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendMemory:
		return nil
	case StoreBackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger backend")
		}
		if c.Store.GCInterval <= 0 {
			return fmt.Errorf("store.gc_interval must be positive, got %v", c.Store.GCInterval)
		}
		return nil
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q",
			StoreBackendMemory, StoreBackendBadger, c.Store.Backend)
	}
}

func (c *Config) validateDatabase() error {
	if c.Database.MaxMemory == "" {
		return fmt.Errorf("database.max_memory is required, e.g. \"2GB\"")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must not be negative, got %d", c.Database.Threads)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative, got %d", c.Database.MaxOpenConns)
	}
	return nil
}

func (c *Config) validateRetriever() error {
	switch c.Retriever.Mode {
	case RetrieverModeStatic:
	case RetrieverModeHTTP:
		if err := validateHTTPURL(c.Retriever.URL, "retriever.url"); err != nil {
			return err
		}
		if c.Retriever.RateLimit <= 0 {
			return fmt.Errorf("retriever.rate_limit must be positive, got %v", c.Retriever.RateLimit)
		}
		if c.Retriever.Burst < 1 {
			return fmt.Errorf("retriever.burst must be at least 1, got %d", c.Retriever.Burst)
		}
		if c.Retriever.Breaker.FailureThreshold < 1 {
			return fmt.Errorf("retriever.breaker.failure_threshold must be at least 1, got %d",
				c.Retriever.Breaker.FailureThreshold)
		}
		if c.Retriever.Breaker.Timeout <= 0 {
			return fmt.Errorf("retriever.breaker.timeout must be positive, got %v",
				c.Retriever.Breaker.Timeout)
		}
	default:
		return fmt.Errorf("retriever.mode must be %q or %q, got %q",
			RetrieverModeStatic, RetrieverModeHTTP, c.Retriever.Mode)
	}

	if c.Retriever.Timeout <= 0 {
		return fmt.Errorf("retriever.timeout must be positive, got %v", c.Retriever.Timeout)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.NATS.StreamName == "" {
		return fmt.Errorf("events.nats.stream_name is required when events are enabled")
	}
	if c.Events.NATS.EmbeddedServer {
		if c.Events.NATS.StoreDir == "" {
			return fmt.Errorf("events.nats.store_dir is required for the embedded server")
		}
		return nil
	}
	if c.Events.NATS.URL == "" {
		return fmt.Errorf("events.nats.url is required when the embedded server is off")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if !c.WebSocket.Enabled {
		return nil
	}
	if c.WebSocket.SendBufferSize < 1 {
		return fmt.Errorf("websocket.send_buffer_size must be at least 1, got %d", c.WebSocket.SendBufferSize)
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket.ping_interval must be positive, got %v", c.WebSocket.PingInterval)
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket.write_timeout must be positive, got %v", c.WebSocket.WriteTimeout)
	}
	if c.WebSocket.StatsInterval <= 0 {
		return fmt.Errorf("websocket.stats_interval must be positive, got %v", c.WebSocket.StatsInterval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q",
			c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that value parses as an absolute http(s) URL.
func validateHTTPURL(value, field string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}
