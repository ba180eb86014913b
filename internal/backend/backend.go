package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pvzvoice/internal/config"
)

var (
	// ErrNotFound is returned by Get for a namespace that was never written.
	ErrNotFound = errors.New("backend: namespace not found")
	// ErrQuotaExceeded is returned by Set when the value does not fit.
	ErrQuotaExceeded = errors.New("backend: quota exceeded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("backend: closed")
)

// Backend persists namespaces as opaque values. Implementations must be safe
// for concurrent use. Remove of a missing namespace is not an error.
type Backend interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, value []byte) error
	Remove(ctx context.Context, name string) error
	// Names lists stored namespaces in sorted order.
	Names(ctx context.Context) ([]string, error)
	Close() error
}

// Usage reports bytes held against a limit. Limit is zero when unbounded.
type Usage struct {
	Used  int64
	Limit int64
}

// Meter is implemented by backends that account their size.
type Meter interface {
	Usage(ctx context.Context) (Usage, error)
}

// Open builds the backend selected by cfg, wrapped in a quota when
// storage.quota_bytes is positive.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, errors.New("backend: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	var (
		b   Backend
		err error
	)
	switch cfg.Storage.Backend {
	case config.BackendFile:
		b, err = OpenDir(cfg.Storage.Dir, cfg.Storage.MinFreeBytes)
	case config.BackendSQLite:
		b, err = OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case config.BackendRedis:
		b, err = OpenRedis(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
	case config.BackendMemory:
		b = NewMemory()
	default:
		return nil, fmt.Errorf("backend: unsupported storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Storage.QuotaBytes > 0 {
		return WithQuota(b, cfg.Storage.QuotaBytes), nil
	}
	return b, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
