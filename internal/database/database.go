// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package database persists the experience log in DuckDB. The log is the
// append-only history of applied feedback that progress analytics replay,
// and its columnar layout powers the per-content aggregate queries behind
// the diagnostics API.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/config"
)

// queryTimeout bounds read queries that run without a caller deadline.
const queryTimeout = 30 * time.Second

// DB wraps the DuckDB connection and provides experience-log access.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger

	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex

	// appendMu serializes inserts. DuckDB detects write-write conflicts
	// between connections optimistically, so a Go-side lock keeps hot
	// concurrent appends from aborting each other.
	appendMu sync.Mutex
}

// New opens (or creates) the experience database and initializes its schema.
// An empty cfg.Path runs DuckDB in memory.
func New(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		logger:    logger,
		stmtCache: make(map[string]*sql.Stmt),
	}
	db.configurePool(cfg.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("experience database opened")

	return db, nil
}

func (db *DB) configurePool(maxOpen int) {
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// getStmt returns a cached prepared statement, preparing it on first use.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok := db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

func (db *DB) clearStatementCache() {
	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()

	for query, stmt := range db.stmtCache {
		closeWithLog(stmt, db.logger, "prepared statement")
		delete(db.stmtCache, query)
	}
}

// Close releases prepared statements and the underlying connection.
func (db *DB) Close() error {
	db.clearStatementCache()

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	db.logger.Debug().Msg("experience database closed")
	return nil
}
