// Package database opens the PostgreSQL pool and the GORM handle shared by the
// recruitment repositories.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps a postgresql connection pool and GORM instance.
type DB struct {
	Pool *pgxpool.Pool
	GORM *gorm.DB
}

// Options tunes the pools. Zero values keep driver defaults.
type Options struct {
	MaxConns        int32
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

// New creates a new database connection pool and GORM instance.
func New(ctx context.Context, databaseURL string, opts Options) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.ConnMaxLifetime > 0 {
		config.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logMode := gormlogger.Silent
	if opts.LogSQL {
		logMode = gormlogger.Info
	}

	gormDB, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logMode),
		TranslateError: true,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{
		Pool: pool,
		GORM: gormDB,
	}, nil
}

// Close closes both pools.
func (db *DB) Close() {
	db.Pool.Close()
	if sqlDB, err := db.GORM.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
