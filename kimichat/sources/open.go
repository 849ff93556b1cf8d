// Package sources selects the key-value backend that holds chat sessions.
package sources

import (
	"context"
	"fmt"

	"kimichat/kimichat/config"
	"kimichat/kimichat/sources/blob"
	"kimichat/kimichat/sources/psql"
	"kimichat/kimichat/sources/psql/dao"
	"kimichat/kimichat/sources/storage"
	"kimichat/kimichat/utils/logging"

	"go.uber.org/zap"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendMinIO    = "minio"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// OpenStorage returns the backend named by cfg.StoreBackend and a func that
// releases it.
func OpenStorage(ctx context.Context, cfg config.Config) (blob.Storage, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case BackendFile, "":
		fs, err := blob.NewFileStorage(cfg.StoreDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	case BackendMemory:
		return blob.NewMemoryStorage(), noop, nil
	case BackendMinIO:
		ms, err := storage.NewMinIOStorage(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("minio: %w", err)
		}
		return ms, noop, nil
	case BackendPostgres, BackendSQLite:
		db, err := psql.NewDatabase(ctx, cfg, cfg.StoreBackend)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cfg.StoreBackend, err)
		}
		return dao.NewBlobDAO(db.DB), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// MustOpenStorage is OpenStorage for command entrypoints: on failure it logs
// and falls back to memory so the session can still run.
func MustOpenStorage(ctx context.Context, cfg config.Config) (blob.Storage, func()) {
	s, closeFn, err := OpenStorage(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("storage unavailable, sessions will not persist",
			zap.String("backend", cfg.StoreBackend), zap.Error(err))
		return blob.NewMemoryStorage(), func() {}
	}
	return s, closeFn
}
