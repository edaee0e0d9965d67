package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"time"

	"github.com/NighHunter/multi-chat-backend/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

func New(cfg config.DatabaseConfig) *bun.DB {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithAddr(net.JoinHostPort(cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.DBName),
		pgdriver.WithInsecure(sslMode == "disable"),
	)

	db := open(connector)
	configurePool(db, cfg)
	return db
}

// NewWithDSN connects using a raw DSN, which is how tests point the
// pool at a container.
func NewWithDSN(dsn string) *bun.DB {
	return open(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func open(connector *pgdriver.Connector) *bun.DB {
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.Ping(); err != nil {
		log.Fatal("Error pinging database:", err) // Fatal is OK here - can't run without DB
	}

	slog.Info("database connected successfully")
	return db
}

func configurePool(db *bun.DB, cfg config.DatabaseConfig) {
	sqlDB := db.DB

	maxOpen := intOr(cfg.MaxOpenConns, 25)
	maxIdle := intOr(cfg.MaxIdleConns, 10)
	maxLifetime := intOr(cfg.ConnMaxLifetime, 300)
	maxIdleTime := intOr(cfg.ConnMaxIdleTime, 60)

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(maxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(maxIdleTime) * time.Second)

	slog.Info("database pool configured",
		"max_open_conns", maxOpen,
		"max_idle_conns", maxIdle,
		"conn_max_lifetime_seconds", maxLifetime,
		"conn_max_idle_time_seconds", maxIdleTime,
	)
}

func intOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func Close(db *bun.DB) {
	if db != nil {
		db.Close()
	}
}

// RunMigrations creates the table for each model if it does not exist
// yet. Schema is simple enough that bun's model DDL is the migration.
func RunMigrations(ctx context.Context, db *bun.DB, models ...interface{}) error {
	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model: %w", err)
		}
	}
	slog.Info("database migrations completed successfully")
	return nil
}

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}

// UniqueConstraint returns the name of the violated unique constraint,
// or "" when err is not a unique violation. Callers use it to tell
// apart which of several unique columns lost a racing insert.
func UniqueConstraint(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return pgErr.Field('n')
	}
	return ""
}
