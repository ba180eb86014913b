package assetstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
)

// PutResult describes where a put landed.
type PutResult struct {
	Key     string
	Aliases []string
	// Written lists namespaces that accepted the write.
	Written []string
	// Failed lists namespaces that rejected it after recovery.
	Failed []string
	// Evicted lists aliases removed to make room.
	Evicted []string
	// Degraded is set when only a session handle could be kept.
	Degraded bool
}

// Put stores asset under every alias of req and persists the live
// collection to the replica namespaces. It succeeds when at least one
// namespace accepted the write. When the backend reports the quota is
// exhausted, the oldest assets are evicted and the write retried within the
// eviction budget; if that still fails the asset is kept for this session
// only and ErrDegraded is returned with the result.
func (s *Store) Put(ctx context.Context, req keyspace.Request, asset Asset) (PutResult, error) {
	if req == nil || req.Key() == "" {
		return PutResult{}, errors.New("assetstore: request key is required")
	}
	if asset.Payload == "" {
		return PutResult{}, ErrEmptyPayload
	}

	payload, err := s.registry.Durable(asset.Payload)
	if err != nil {
		return PutResult{}, fmt.Errorf("embed payload for %q: %w", req.Key(), err)
	}
	asset.Payload = payload
	asset.Key = req.Key()
	asset.Kind = KindOf(req)
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return PutResult{}, err
	}

	aliases := s.gen.Aliases(req)
	result := PutResult{Key: asset.Key, Aliases: aliases}
	logger := s.logger.With(logging.String(logging.FieldKey, asset.Key))

	next := s.live.Clone()
	rec := recordOf(asset)
	for _, alias := range aliases {
		next[alias] = rec
	}

	written, failed, evicted, quotaErr := s.persistWithEviction(ctx, next, aliases)
	result.Written, result.Failed, result.Evicted = written, failed, evicted
	if len(written) > 0 {
		s.live = next
		if len(failed) > 0 {
			logging.WarnWithContext(logger, "asset stored with reduced redundancy", "replica_write_failed",
				logging.Strings("written", written),
				logging.Strings("failed", failed),
				logging.String(logging.FieldImpact, "fewer backup copies exist until the next reconcile"),
			)
		}
		logger.Info("asset stored",
			logging.Strings("aliases", aliases),
			logging.Int("namespaces", len(written)),
			logging.Int("evicted", len(evicted)),
		)
		return result, nil
	}

	if quotaErr == nil {
		return result, fmt.Errorf("%w: %s", ErrNoNamespace, asset.Key)
	}

	if err := s.degradeLocked(ctx, aliases, asset); err != nil {
		return result, fmt.Errorf("emergency fallback for %q: %w", asset.Key, err)
	}
	result.Degraded = true
	result.Evicted = nil
	logging.WarnWithContext(logger, "storage quota exhausted; asset kept for this session only", "quota_exhausted",
		logging.Error(quotaErr),
		logging.String(logging.FieldErrorHint, "remove unused assets or raise storage.quota_bytes"),
		logging.String(logging.FieldImpact, "the asset will not survive a restart"),
	)
	return result, ErrDegraded
}

// persistWithEviction writes next to every replica namespace. A quota
// failure on any namespace evicts the oldest unprotected asset group from
// next and restarts the round, so replicas stay identical. next is trimmed in
// place.
func (s *Store) persistWithEviction(ctx context.Context, next Collection, protect []string) (written, failed, evicted []string, quotaErr error) {
	budget := s.layout.EvictionAttempts
	for attempt := 0; ; attempt++ {
		written, failed, quotaErr = s.writeReplicas(ctx, next)
		if quotaErr == nil || attempt >= budget {
			return written, failed, evicted, quotaErr
		}
		group := oldestGroup(next, protect)
		if len(group) == 0 {
			return written, failed, evicted, quotaErr
		}
		for _, key := range group {
			delete(next, key)
		}
		evicted = append(evicted, group...)
		s.logger.Info("evicted oldest asset under quota pressure",
			logging.Strings("aliases", group),
			logging.Int("attempt", attempt+1),
		)
	}
}

func (s *Store) writeReplicas(ctx context.Context, coll Collection) (written, failed []string, quotaErr error) {
	durable := coll.Durable()
	for _, ns := range s.layout.replicas() {
		err := s.writeCollection(ctx, ns, durable)
		if err == nil {
			written = append(written, ns)
			continue
		}
		failed = append(failed, ns)
		if errors.Is(err, backend.ErrQuotaExceeded) {
			quotaErr = err
			continue
		}
		s.logger.Debug("namespace write failed",
			logging.String(logging.FieldNamespace, ns),
			logging.Error(err),
		)
	}
	return written, failed, quotaErr
}

// degradeLocked keeps the asset reachable for this session through a
// session handle and records the non-embedded entries in the emergency
// namespace of the primary.
func (s *Store) degradeLocked(ctx context.Context, aliases []string, asset Asset) error {
	src, err := audiocodec.Decode(asset.Payload)
	if err != nil {
		return err
	}
	handle := s.registry.Register(src.Data, src.MIME)
	asset.Payload = handle
	rec := recordOf(asset)

	next := s.live.Clone()
	for _, alias := range aliases {
		next[alias] = rec
	}
	s.live = next

	emergency := s.layout.emergency(s.layout.Primary)
	if err := s.writeCollection(ctx, emergency, next.Ephemeral()); err != nil {
		logging.WarnWithContext(s.logger, "emergency namespace write failed", "emergency_write_failed",
			logging.String(logging.FieldNamespace, emergency),
			logging.Error(err),
			logging.String(logging.FieldImpact, "degraded entries are not listed after restart"),
		)
	}
	return nil
}

// oldestGroup returns the aliases of the oldest asset in coll. Entries
// written for one canonical key form an asset; older entries without a
// recorded key are grouped by payload. Groups touching protect are skipped.
func oldestGroup(coll Collection, protect []string) []string {
	type group struct {
		keys    []string
		created time.Time
	}
	groups := make(map[string]*group)
	for alias, rec := range coll {
		id := assetID(rec)
		g, ok := groups[id]
		if !ok {
			g = &group{created: rec.CreatedAt.Time}
			groups[id] = g
		}
		g.keys = append(g.keys, alias)
		if rec.CreatedAt.Before(g.created) {
			g.created = rec.CreatedAt.Time
		}
	}

	var oldest *group
	for _, g := range groups {
		if slices.ContainsFunc(g.keys, func(k string) bool { return slices.Contains(protect, k) }) {
			continue
		}
		slices.Sort(g.keys)
		if oldest == nil || g.created.Before(oldest.created) ||
			(g.created.Equal(oldest.created) && g.keys[0] < oldest.keys[0]) {
			oldest = g
		}
	}
	if oldest == nil {
		return nil
	}
	return oldest.keys
}
