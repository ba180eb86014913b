package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"pvzvoice/internal/fileutil"
)

const (
	namespaceExt    = ".json"
	lockFileName    = ".pvzvoice.lock"
	lockRetryDelay  = 25 * time.Millisecond
	lockWaitTimeout = 5 * time.Second
)

// Dir stores each namespace as one file in a directory. Writes go through a
// temp file and rename, serialized across processes by an advisory lock.
type Dir struct {
	root    string
	minFree int64
	lock    *flock.Flock

	// freeSpace is swapped in tests.
	freeSpace func(path string) (uint64, error)

	mu     sync.Mutex
	closed bool
}

// OpenDir prepares root for namespace storage. Writes fail with
// ErrQuotaExceeded when they would leave less than minFree bytes on the
// filesystem; minFree <= 0 disables the check.
func OpenDir(root string, minFree int64) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("backend: storage directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Dir{
		root:      root,
		minFree:   minFree,
		lock:      flock.New(filepath.Join(root, lockFileName)),
		freeSpace: availableBytes,
	}, nil
}

// Root returns the storage directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) path(name string) string {
	return filepath.Join(d.root, url.PathEscape(name)+namespaceExt)
}

func (d *Dir) Get(_ context.Context, name string) ([]byte, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read namespace %q: %w", name, err)
	}
	return data, nil
}

func (d *Dir) Set(ctx context.Context, name string, value []byte) error {
	if d.isClosed() {
		return ErrClosed
	}
	if err := d.checkFreeSpace(int64(len(value))); err != nil {
		return err
	}
	return d.withLock(ctx, func() error {
		if err := fileutil.WriteFileAtomic(d.path(name), value, 0o644); err != nil {
			return fmt.Errorf("namespace %q: %w", name, err)
		}
		return nil
	})
}

func (d *Dir) Remove(ctx context.Context, name string) error {
	if d.isClosed() {
		return ErrClosed
	}
	return d.withLock(ctx, func() error {
		err := os.Remove(d.path(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove namespace %q: %w", name, err)
		}
		return nil
	})
}

func (d *Dir) Names(context.Context) ([]string, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list storage directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(fileName, namespaceExt) {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(fileName, namespaceExt))
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.lock.Unlock()
}

func (d *Dir) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dir) withLock(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ensureContext(ctx), lockWaitTimeout)
	defer cancel()
	locked, err := d.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire storage lock: %w", err)
	}
	if !locked {
		return errors.New("acquire storage lock: held by another process")
	}
	defer func() { _ = d.lock.Unlock() }()
	return fn()
}

func (d *Dir) checkFreeSpace(need int64) error {
	if d.minFree <= 0 || d.freeSpace == nil {
		return nil
	}
	free, err := d.freeSpace(d.root)
	if err != nil {
		return nil
	}
	if int64(free)-need < d.minFree {
		return fmt.Errorf("%w: %d bytes free, reserve is %d", ErrQuotaExceeded, free, d.minFree)
	}
	return nil
}
