package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Quota bounds the total size of all namespaces held by the wrapped backend.
// Sizes are learned lazily on first use and tracked on every write.
type Quota struct {
	inner Backend
	limit int64

	mu     sync.Mutex
	loaded bool
	sizes  map[string]int64
	total  int64
}

// WithQuota wraps b so that writes pushing the total past limit fail with
// ErrQuotaExceeded.
func WithQuota(b Backend, limit int64) *Quota {
	return &Quota{inner: b, limit: limit, sizes: make(map[string]int64)}
}

func (q *Quota) Get(ctx context.Context, name string) ([]byte, error) {
	return q.inner.Get(ctx, name)
}

func (q *Quota) Set(ctx context.Context, name string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.loadLocked(ctx); err != nil {
		return err
	}
	next := q.total - q.sizes[name] + int64(len(value))
	if q.limit > 0 && next > q.limit {
		return fmt.Errorf("%w: namespace %q needs %d bytes, %d of %d in use",
			ErrQuotaExceeded, name, len(value), q.total, q.limit)
	}
	if err := q.inner.Set(ctx, name, value); err != nil {
		return err
	}
	q.total = next
	q.sizes[name] = int64(len(value))
	return nil
}

func (q *Quota) Remove(ctx context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.inner.Remove(ctx, name); err != nil {
		return err
	}
	q.total -= q.sizes[name]
	delete(q.sizes, name)
	return nil
}

func (q *Quota) Names(ctx context.Context) ([]string, error) {
	return q.inner.Names(ctx)
}

func (q *Quota) Close() error {
	return q.inner.Close()
}

// Usage reports the tracked total against the limit.
func (q *Quota) Usage(ctx context.Context) (Usage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.loadLocked(ctx); err != nil {
		return Usage{}, err
	}
	return Usage{Used: q.total, Limit: q.limit}, nil
}

func (q *Quota) loadLocked(ctx context.Context) error {
	if q.loaded {
		return nil
	}
	names, err := q.inner.Names(ctx)
	if err != nil {
		return fmt.Errorf("quota: list namespaces: %w", err)
	}
	for _, name := range names {
		value, err := q.inner.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("quota: size namespace %q: %w", name, err)
		}
		q.sizes[name] = int64(len(value))
		q.total += int64(len(value))
	}
	q.loaded = true
	return nil
}
