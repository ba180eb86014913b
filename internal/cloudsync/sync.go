package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
	"pvzvoice/internal/textutil"
)

const (
	metaKey  = "key"
	metaName = "name"
)

// Store is the subset of the asset store sync needs.
type Store interface {
	Collection() assetstore.Collection
	Generator() keyspace.Generator
	Merge(ctx context.Context, imports assetstore.Collection) (int, error)
	DeviceID(ctx context.Context) (string, error)
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithLogger sets the sync logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "cloudsync")
		}
	}
}

// Syncer moves assets between a store and object storage.
type Syncer struct {
	store   Store
	objects ObjectStore
	logger  *slog.Logger
}

// New returns a syncer for store over objects.
func New(store Store, objects ObjectStore, opts ...Option) *Syncer {
	s := &Syncer{store: store, objects: objects, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RemoteAsset is one asset held in object storage.
type RemoteAsset struct {
	Key    string
	Name   string
	Object string
	Size   int64
}

// PushReport summarizes an upload.
type PushReport struct {
	Device   string
	Uploaded []string
	// Skipped lists keys held only as session handles.
	Skipped []string
	Failed  []string
}

// PullReport summarizes a download.
type PullReport struct {
	Device     string
	Downloaded int
	Imported   int
	Failed     []string
}

// Push uploads one object per canonical key. Per-object failures are
// collected; the error is reserved for failures that stop the whole run.
func (s *Syncer) Push(ctx context.Context) (PushReport, error) {
	device, err := s.prepare(ctx)
	if err != nil {
		return PushReport{}, err
	}
	report := PushReport{Device: device}

	for _, item := range canonicalAssets(s.store.Collection()) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !item.asset.Durable() {
			report.Skipped = append(report.Skipped, item.asset.Key)
			continue
		}
		src, err := audiocodec.Decode(item.asset.Payload)
		if err != nil {
			report.Failed = append(report.Failed, item.asset.Key)
			logging.WarnWithContext(s.logger, "asset payload undecodable", "cloud_push_failed",
				logging.String(logging.FieldKey, item.asset.Key),
				logging.Error(err),
			)
			continue
		}
		object := objectName(device, item.asset.Key, src.MIME)
		meta := map[string]string{
			metaKey:  url.QueryEscape(item.asset.Key),
			metaName: url.QueryEscape(item.asset.DisplayName),
		}
		if err := s.objects.Put(ctx, object, src.Data, src.MIME, meta); err != nil {
			report.Failed = append(report.Failed, item.asset.Key)
			logging.WarnWithContext(s.logger, "asset upload failed", "cloud_push_failed",
				logging.String(logging.FieldKey, item.asset.Key),
				logging.String("object", object),
				logging.Error(err),
				logging.String(logging.FieldImpact, "asset missing from cloud copy"),
			)
			continue
		}
		report.Uploaded = append(report.Uploaded, item.asset.Key)
	}

	s.logger.Info("cloud push complete",
		logging.String("device", device),
		logging.Int("uploaded", len(report.Uploaded)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// Pull downloads this device's objects and merges them into the store.
func (s *Syncer) Pull(ctx context.Context) (PullReport, error) {
	device, err := s.prepare(ctx)
	if err != nil {
		return PullReport{}, err
	}
	report := PullReport{Device: device}

	objects, err := s.objects.List(ctx, device+"/")
	if err != nil {
		return report, err
	}
	gen := s.store.Generator()
	imports := assetstore.Collection{}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		data, info, err := s.objects.Get(ctx, obj.Key)
		if err != nil {
			report.Failed = append(report.Failed, obj.Key)
			logging.WarnWithContext(s.logger, "object download failed", "cloud_pull_failed",
				logging.String("object", obj.Key),
				logging.Error(err),
			)
			continue
		}
		remote := remoteOf(info)
		req, ok := keyspace.Classify(remote.Key)
		if !ok {
			report.Failed = append(report.Failed, obj.Key)
			continue
		}
		report.Downloaded++

		rec := assetstore.Record{
			DataURL:   audiocodec.Encode(data, remote.Name),
			Name:      remote.Name,
			Size:      int64(len(data)),
			CreatedAt: assetstore.Timestamp{Time: info.LastModified},
			Kind:      assetstore.KindOf(req),
			Key:       req.Key(),
		}
		for _, alias := range gen.Aliases(req) {
			imports[alias] = rec
		}
	}

	added, err := s.store.Merge(ctx, imports)
	report.Imported = added
	if err != nil {
		return report, fmt.Errorf("merge cloud assets: %w", err)
	}
	s.logger.Info("cloud pull complete",
		logging.String("device", device),
		logging.Int("downloaded", report.Downloaded),
		logging.Int("imported", report.Imported),
	)
	return report, nil
}

// List returns the assets stored for this device.
func (s *Syncer) List(ctx context.Context) ([]RemoteAsset, error) {
	device, err := s.store.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := s.objects.List(ctx, device+"/")
	if err != nil {
		return nil, err
	}
	out := make([]RemoteAsset, 0, len(objects))
	for _, obj := range objects {
		out = append(out, remoteOf(obj))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes every object stored for key on this device.
func (s *Syncer) Delete(ctx context.Context, key string) (int, error) {
	req, ok := keyspace.Classify(key)
	if !ok {
		return 0, fmt.Errorf("cloud delete: empty key")
	}
	remote, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, item := range remote {
		if item.Key != req.Key() {
			continue
		}
		if err := s.objects.Delete(ctx, item.Object); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *Syncer) prepare(ctx context.Context) (string, error) {
	if err := s.objects.EnsureBucket(ctx); err != nil {
		return "", err
	}
	return s.store.DeviceID(ctx)
}

type canonicalItem struct {
	alias string
	asset assetstore.Asset
}

// canonicalAssets picks one record per canonical key, preferring the record
// stored under the canonical key itself.
func canonicalAssets(coll assetstore.Collection) []canonicalItem {
	picked := map[string]canonicalItem{}
	for _, alias := range coll.Keys() {
		asset := coll[alias].Asset(alias)
		current, ok := picked[asset.Key]
		if !ok || (alias == asset.Key && current.alias != asset.Key) {
			picked[asset.Key] = canonicalItem{alias: alias, asset: asset}
		}
	}
	keys := make([]string, 0, len(picked))
	for key := range picked {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]canonicalItem, 0, len(keys))
	for _, key := range keys {
		out = append(out, picked[key])
	}
	return out
}

func objectName(device, key, mime string) string {
	return path.Join(device, textutil.SanitizeFileName(key)+audiocodec.Extension(mime))
}

// remoteOf recovers the canonical key from metadata, or from the object
// name when metadata is missing.
func remoteOf(obj Object) RemoteAsset {
	base := path.Base(obj.Key)
	remote := RemoteAsset{Object: obj.Key, Size: obj.Size}
	if raw, ok := obj.Metadata[metaKey]; ok {
		if key, err := url.QueryUnescape(raw); err == nil {
			remote.Key = key
		}
	}
	if raw, ok := obj.Metadata[metaName]; ok {
		if name, err := url.QueryUnescape(raw); err == nil {
			remote.Name = name
		}
	}
	if remote.Key == "" {
		if req, ok := keyspace.InferFromFilename(base); ok {
			remote.Key = req.Key()
		} else {
			remote.Key = strings.TrimSuffix(base, path.Ext(base))
		}
	}
	if remote.Name == "" {
		remote.Name = base
	}
	return remote
}
