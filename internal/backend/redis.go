package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 100

// Redis stores each namespace as a string value under prefix:ns:<name>.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// OpenRedis connects to redis and verifies the connection.
func OpenRedis(ctx context.Context, opts *redis.Options, prefix string) (*Redis, error) {
	if opts == nil {
		return nil, errors.New("backend: redis options are required")
	}
	r := NewRedis(redis.NewClient(opts), prefix)
	if err := r.rdb.Ping(ensureContext(ctx)).Err(); err != nil {
		_ = r.rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return r, nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "pvzvoice"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(name string) string {
	return r.prefix + ":ns:" + name
}

func (r *Redis) Get(ctx context.Context, name string) ([]byte, error) {
	value, err := r.rdb.Get(ensureContext(ctx), r.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", name, err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, name string, value []byte) error {
	err := r.rdb.Set(ensureContext(ctx), r.key(name), value, 0).Err()
	if err != nil && strings.Contains(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	if err != nil {
		return fmt.Errorf("redis set %q: %w", name, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, name string) error {
	if err := r.rdb.Del(ensureContext(ctx), r.key(name)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", name, err)
	}
	return nil
}

func (r *Redis) Names(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	prefix := r.key("")
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, prefix+"*", redisScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
