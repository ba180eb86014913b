package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/cloudsync"
	"pvzvoice/internal/config"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
	"pvzvoice/internal/migrate"
	"pvzvoice/internal/playback"
	"pvzvoice/internal/resolver"
)

// ErrCloudDisabled is returned by cloud operations when no object store is
// configured.
var ErrCloudDisabled = errors.New("voice: cloud sync is not configured")

// Option customizes Open.
type Option func(*options)

type options struct {
	sink         playback.Sink
	objects      cloudsync.ObjectStore
	skipMigrate  bool
	storeOptions []assetstore.Option
}

// WithSink overrides the sink selected by configuration.
func WithSink(sink playback.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithObjectStore enables cloud sync over objects regardless of the cloud
// configuration.
func WithObjectStore(objects cloudsync.ObjectStore) Option {
	return func(o *options) { o.objects = objects }
}

// WithoutStartupMigration skips the one-time legacy import on Open.
func WithoutStartupMigration() Option {
	return func(o *options) { o.skipMigrate = true }
}

// WithStoreOptions passes options through to the asset store.
func WithStoreOptions(opts ...assetstore.Option) Option {
	return func(o *options) { o.storeOptions = append(o.storeOptions, opts...) }
}

// Service coordinates storage, lookup and playback of recorded prompts.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *assetstore.Store
	resolver *resolver.Resolver
	player   *playback.Player
	migrator *migrate.Migrator
	syncer   *cloudsync.Syncer

	closeOnce sync.Once
	closeErr  error
}

// Open constructs a service from cfg. The store is reconciled and the legacy
// migration is run once before Open returns.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("voice: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	variant, err := keyspace.ParseVariant(cfg.Playback.Variant)
	if err != nil {
		return nil, err
	}
	b, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}

	registry := audiocodec.NewRegistry()
	storeOpts := append([]assetstore.Option{
		assetstore.WithLogger(logger),
		assetstore.WithRegistry(registry),
		assetstore.WithVariant(variant),
	}, o.storeOptions...)
	store := assetstore.New(b, assetstore.LayoutFromConfig(cfg), storeOpts...)
	if err := store.Init(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("initialize asset store: %w", err)
	}

	sink := o.sink
	if sink == nil {
		if sink, err = playback.SinkFromConfig(cfg); err != nil {
			_ = store.Teardown(ctx)
			return nil, err
		}
	}

	svc := &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "voice"),
		store:  store,
		resolver: resolver.New(store,
			resolver.WithLogger(logger),
			resolver.WithStrategies(resolver.DefaultStrategies(cfg.Resolver.TokenFuzzy, cfg.Resolver.KeywordFuzzy)...),
			resolver.WithGenerator(store.Generator),
		),
		player: playback.New(registry, sink,
			playback.WithLogger(logger),
			playback.WithVolume(cfg.Playback.Volume),
			playback.WithRate(func(ctx context.Context) float64 {
				return store.PlaybackRate(ctx, cfg.Playback.Rate)
			}),
		),
		migrator: migrate.New(store, cfg.Namespaces.Legacy, migrate.WithLogger(logger)),
	}

	objects := o.objects
	if objects == nil && cfg.Cloud.Enabled {
		minioStore, err := cloudsync.NewMinioStore(cfg.Cloud)
		if err != nil {
			_ = store.Teardown(ctx)
			return nil, err
		}
		objects = minioStore
	}
	if objects != nil {
		svc.syncer = cloudsync.New(store, objects, cloudsync.WithLogger(logger))
	}

	if !o.skipMigrate {
		if _, err := svc.migrator.RunOnce(ctx); err != nil {
			logging.WarnWithContext(svc.logger, "legacy migration failed", "migration_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "assets from older layouts are not yet imported"),
				logging.String(logging.FieldErrorHint, "run `pvzvoice migrate` to retry"),
			)
		}
	}
	return svc, nil
}

// Close revokes session handles and closes the backend. It is safe to call
// more than once.
func (s *Service) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Teardown(ctx)
	})
	return s.closeErr
}

// Store exposes the underlying asset store for diagnostics.
func (s *Service) Store() *assetstore.Store { return s.store }

// Config returns the configuration the service was opened with.
func (s *Service) Config() *config.Config { return s.cfg }

// PlayByKey resolves key and plays the matched asset. A miss or a playback
// failure returns false.
func (s *Service) PlayByKey(ctx context.Context, key string) bool {
	res, ok := s.resolver.Resolve(ctx, key)
	if !ok {
		logging.WithContext(ctx, s.logger).Debug("no recording for key",
			logging.String(logging.FieldKey, key),
		)
		return false
	}
	return s.player.Play(ctx, res.Asset)
}

// Resolve reports which asset PlayByKey would play, without playing it.
func (s *Service) Resolve(ctx context.Context, key string) (resolver.Resolution, bool) {
	return s.resolver.Resolve(ctx, key)
}

// FallbackPhrase returns the text to speak when no recording exists for key.
func (s *Service) FallbackPhrase(key string) (string, bool) {
	req, ok := keyspace.Classify(key)
	if !ok {
		return "", false
	}
	return keyspace.Phrase(req)
}

// ListKnownCells returns the cell identifiers with a recording, in natural
// order.
func (s *Service) ListKnownCells(ctx context.Context) []string {
	if err := s.store.Refresh(ctx); err != nil {
		logging.WarnWithContext(s.logger, "refresh before listing failed", "refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "listing reflects the live collection only"),
		)
	}
	return s.store.ListCells()
}

// RemoveAsset deletes key and every alias sharing its recording.
func (s *Service) RemoveAsset(ctx context.Context, key string) ([]string, error) {
	return s.store.Remove(ctx, key)
}

// ClearAll removes every recording from every namespace and records the
// migration marker so legacy data is not imported again on next start.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	return s.store.SetMigrationMarker(ctx, migrate.Version)
}

// PlaybackRate returns the persisted playback rate.
func (s *Service) PlaybackRate(ctx context.Context) float64 {
	return s.store.PlaybackRate(ctx, s.cfg.Playback.Rate)
}

// SetPlaybackRate persists a new playback rate; it applies to the next
// play.
func (s *Service) SetPlaybackRate(ctx context.Context, rate float64) error {
	return s.store.SetPlaybackRate(ctx, rate)
}

// Variant returns the active voice variant.
func (s *Service) Variant() keyspace.Variant {
	return s.store.Variant()
}

// SetVariant persists and activates a voice variant.
func (s *Service) SetVariant(ctx context.Context, v keyspace.Variant) error {
	return s.store.SetVariant(ctx, v)
}

// Reconcile merges every namespace and repairs the replicas.
func (s *Service) Reconcile(ctx context.Context) (assetstore.ReconcileReport, error) {
	return s.store.Reconcile(ctx)
}

// Migrate imports legacy namespaces now, regardless of the marker.
func (s *Service) Migrate(ctx context.Context) (migrate.Report, error) {
	return s.migrator.Run(ctx)
}

// Stats summarizes the stored recordings.
func (s *Service) Stats(ctx context.Context) (assetstore.Stats, error) {
	return s.store.Stats(ctx)
}

// CloudPush uploads every recording to object storage.
func (s *Service) CloudPush(ctx context.Context) (cloudsync.PushReport, error) {
	if s.syncer == nil {
		return cloudsync.PushReport{}, ErrCloudDisabled
	}
	return s.syncer.Push(ctx)
}

// CloudPull downloads this device's recordings and merges them.
func (s *Service) CloudPull(ctx context.Context) (cloudsync.PullReport, error) {
	if s.syncer == nil {
		return cloudsync.PullReport{}, ErrCloudDisabled
	}
	return s.syncer.Pull(ctx)
}

// CloudList lists this device's recordings in object storage.
func (s *Service) CloudList(ctx context.Context) ([]cloudsync.RemoteAsset, error) {
	if s.syncer == nil {
		return nil, ErrCloudDisabled
	}
	return s.syncer.List(ctx)
}

// CloudDelete removes key's recordings from object storage.
func (s *Service) CloudDelete(ctx context.Context, key string) (int, error) {
	if s.syncer == nil {
		return 0, ErrCloudDisabled
	}
	return s.syncer.Delete(ctx, key)
}
