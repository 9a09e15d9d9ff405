// Package factory creates the configured persistence gateway.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"khata/internal/gateway"
	gwfile "khata/internal/gateway/file"
	gwmem "khata/internal/gateway/memory"
	gwsqlite "khata/internal/gateway/sqlite"
)

// Type selects a gateway implementation.
type Type string

const (
	File   Type = "file"
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) IsValid() bool {
	switch t {
	case File, SQLite, Memory:
		return true
	default:
		return false
	}
}

func (t Type) String() string { return string(t) }

// Config holds what the factory needs to open a gateway.
type Config struct {
	Type         Type
	DataFilePath string // file gateway
	SQLiteDBPath string // sqlite gateway
}

// CleanupFunc releases gateway resources.
type CleanupFunc func() error

func noopCleanup() error { return nil }

// Open creates the configured gateway.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (gateway.Gateway, CleanupFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case File:
		if cfg.DataFilePath == "" {
			return nil, nil, fmt.Errorf("data file path is required for the file gateway")
		}
		gw := gwfile.New(cfg.DataFilePath)
		logger.Info("Initialized file gateway", "path", cfg.DataFilePath)
		return gw, noopCleanup, nil

	case SQLite:
		if cfg.SQLiteDBPath == "" {
			return nil, nil, fmt.Errorf("database path is required for the sqlite gateway")
		}
		gw, err := gwsqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sqlite gateway: %w", err)
		}
		logger.Info("Initialized sqlite gateway", "path", cfg.SQLiteDBPath)
		return gw, gw.Close, nil

	case Memory:
		logger.Info("Initialized memory gateway")
		return gwmem.New(), noopCleanup, nil

	default:
		return nil, nil, fmt.Errorf("invalid gateway type: %s", cfg.Type)
	}
}
