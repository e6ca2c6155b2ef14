package main

import (
	"fmt"
	"path/filepath"

	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/internal/database"
	"github.com/tacticsboard/choreo/internal/storage"
	"github.com/tacticsboard/choreo/internal/storage/memory"
	pgstorage "github.com/tacticsboard/choreo/internal/storage/postgres"
	sqlitestorage "github.com/tacticsboard/choreo/internal/storage/sqlite"
	wsstorage "github.com/tacticsboard/choreo/internal/storage/websocket"
)

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		mgr := database.NewManager(ConnLogger)
		if err := mgr.Connect(database.PostgresConfigFromViper()); err != nil {
			return nil, err
		}
		if mgr.ShouldSaveLocal {
			// postgres is down, record into sqlite with periodic dumps instead
			mgr.Close()
			return newSqliteBackend(storageCfg.SQLite)
		}
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			DB:     mgr.DB,
			Logger: Logger,
		}), nil

	case "sqlite":
		return newSqliteBackend(storageCfg.SQLite)

	case "websocket":
		streamCfg := config.GetStreamConfig()
		Logger.Info("WebSocket storage backend initialized", "url", streamCfg.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    streamCfg.URL,
			Secret: streamCfg.Secret,
		}, Logger), nil

	case "memory":
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	case "", "none":
		return storage.Nop{}, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

func newSqliteBackend(cfg config.SQLiteConfig) (storage.Backend, error) {
	if dumps, err := database.GetBackupDBPaths(cfg.OutputDir); err == nil && len(dumps) > 0 {
		Logger.Info("Found earlier frame recordings", "count", len(dumps), "dir", cfg.OutputDir)
	}
	dumpPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.db", appName, SessionStartTime.Format("20060102_150405")))
	backend, err := sqlitestorage.New(sqlitestorage.Config{
		DumpInterval: cfg.DumpInterval,
		DumpPath:     dumpPath,
	}, Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
	}
	Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
	return backend, nil
}
