package assetstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/config"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
)

// Layout declares the namespaces a store spans. It is data, not code: a
// deployment may rename or reorder namespaces through configuration.
type Layout struct {
	Primary string
	// Backups are read by reconciliation; the first ReplicationFactor-1 of
	// them also receive every put.
	Backups           []string
	ReplicationFactor int
	EmergencySuffix   string
	EvictionAttempts  int

	RateKey      string
	VariantKey   string
	MigrationKey string
	DeviceKey    string
}

// LayoutFromConfig copies the namespace and storage settings from cfg.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{
		Primary:           cfg.Namespaces.Primary,
		Backups:           append([]string(nil), cfg.Namespaces.Backups...),
		ReplicationFactor: cfg.Namespaces.ReplicationFactor,
		EmergencySuffix:   cfg.Namespaces.EmergencySuffix,
		EvictionAttempts:  cfg.Storage.EvictionAttempts,
		RateKey:           cfg.Namespaces.RateKey,
		VariantKey:        cfg.Namespaces.VariantKey,
		MigrationKey:      cfg.Namespaces.MigrationKey,
		DeviceKey:         cfg.Namespaces.DeviceKey,
	}
}

// replicas returns the namespaces written on every put, primary first.
func (l Layout) replicas() []string {
	out := []string{l.Primary}
	for i := 0; i < l.ReplicationFactor-1 && i < len(l.Backups); i++ {
		out = append(out, l.Backups[i])
	}
	return out
}

// all returns the primary and every backup.
func (l Layout) all() []string {
	return append([]string{l.Primary}, l.Backups...)
}

func (l Layout) emergency(namespace string) string {
	return namespace + l.EmergencySuffix
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "assetstore")
		}
	}
}

// WithClock overrides the time source used for CreatedAt defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRegistry shares a session handle registry with the playback adapter.
func WithRegistry(reg *audiocodec.Registry) Option {
	return func(s *Store) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithVariant sets the voice variant used before Init reads the persisted
// selection.
func WithVariant(v keyspace.Variant) Option {
	return func(s *Store) {
		s.gen = keyspace.NewGenerator(v)
	}
}

// Store keeps the live alias collection in memory and persists it across
// the replica namespaces of a backend. It is safe for concurrent use: reads
// share a lock, writes are serialized.
type Store struct {
	backend  backend.Backend
	layout   Layout
	logger   *slog.Logger
	registry *audiocodec.Registry
	now      func() time.Time

	mu     sync.RWMutex
	gen    keyspace.Generator
	live   Collection
	closed bool
}

// New constructs a store over b. Call Init before use.
func New(b backend.Backend, layout Layout, opts ...Option) *Store {
	if layout.ReplicationFactor < 1 {
		layout.ReplicationFactor = 1
	}
	s := &Store{
		backend:  b,
		layout:   layout,
		logger:   logging.NewNop(),
		registry: audiocodec.NewRegistry(),
		now:      time.Now,
		gen:      keyspace.NewGenerator(keyspace.VariantV1),
		live:     Collection{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the persisted variant and reconciles every namespace into the
// live collection.
func (s *Store) Init(ctx context.Context) error {
	if s.backend == nil {
		return errors.New("assetstore: backend is required")
	}
	if v, err := s.loadVariant(ctx); err == nil {
		s.mu.Lock()
		s.gen = keyspace.NewGenerator(v)
		s.mu.Unlock()
	} else if !errors.Is(err, backend.ErrNotFound) {
		logging.WarnWithContext(s.logger, "voice variant unreadable; using default", "settings_read_failed",
			logging.String(logging.FieldNamespace, s.layout.VariantKey),
			logging.Error(err),
			logging.String(logging.FieldImpact, "variant-specific prompts use the v1 names"),
		)
	}
	report, err := s.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}
	s.logger.Debug("asset store ready",
		logging.Int("keys", report.Union),
		logging.Bool("repaired", report.Repaired),
	)
	return nil
}

// Teardown revokes session handles and closes the backend. The store is
// unusable afterwards.
func (s *Store) Teardown(context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.live = Collection{}
	s.mu.Unlock()

	s.registry.RevokeAll()
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}

// Registry returns the session handle registry.
func (s *Store) Registry() *audiocodec.Registry {
	return s.registry
}

// Generator returns the key-space generator for the active variant.
func (s *Store) Generator() keyspace.Generator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Peek returns the asset stored under exactly key in the live collection.
func (s *Store) Peek(key string) (Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.live[key]
	if !ok {
		return Asset{}, false
	}
	return rec.Asset(key), true
}

// Keys returns every alias in the live collection in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Keys()
}

// Get returns the first candidate present in the live collection. On a miss
// the backups are reconciled into the live collection and the scan runs
// once more. The matched alias is returned alongside the asset.
func (s *Store) Get(ctx context.Context, candidates []string) (Asset, string, bool) {
	if asset, key, ok := s.scan(candidates); ok {
		return asset, key, true
	}
	if err := s.Refresh(ctx); err != nil {
		logging.WarnWithContext(s.logger, "reconcile on lookup miss failed", "reconcile_failed",
			logging.Strings(logging.FieldCandidates, candidates),
			logging.Error(err),
			logging.String(logging.FieldImpact, "lookup answered from the live collection only"),
		)
		return Asset{}, "", false
	}
	return s.scan(candidates)
}

// Refresh reconciles every namespace into the live collection.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.Reconcile(ctx)
	return err
}

func (s *Store) scan(candidates []string) (Asset, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range candidates {
		if rec, ok := s.live[key]; ok {
			return rec.Asset(key), key, true
		}
	}
	return Asset{}, "", false
}

// Collection returns a copy of the live collection.
func (s *Store) Collection() Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Clone()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) readCollection(ctx context.Context, namespace string) (Collection, error) {
	data, err := s.backend.Get(ctx, namespace)
	if err != nil {
		return nil, err
	}
	coll, skipped, err := DecodeCollection(data)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Debug("skipped unreadable entries",
			logging.String(logging.FieldNamespace, namespace),
			logging.Int("skipped", skipped),
		)
	}
	return coll, nil
}

func (s *Store) writeCollection(ctx context.Context, namespace string, coll Collection) error {
	data, err := coll.Marshal()
	if err != nil {
		return fmt.Errorf("encode namespace %q: %w", namespace, err)
	}
	return s.backend.Set(ctx, namespace, data)
}
