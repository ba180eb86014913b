package assetstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/logging"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	// Sources maps each readable namespace to its entry count.
	Sources map[string]int
	// Union is the size of the consolidated collection.
	Union int
	// Repaired is set when the primary was missing, empty, or smaller than
	// the union.
	Repaired bool
	// Dropped counts session handles that no longer resolve.
	Dropped int
	Written []string
	Failed  []string
}

// Reconcile unions the live collection with the primary, every backup, and
// their emergency namespaces. For an alias present in several places an
// embedded payload beats a session handle, then the newest record wins. The
// union becomes the live collection and is written back to the replica
// namespaces whose content differs.
func (s *Store) Reconcile(ctx context.Context) (ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Sources: make(map[string]int)}
	union := s.live.Clone()
	raw := make(map[string][]byte)
	var readErrs []error

	for _, ns := range s.layout.all() {
		for _, name := range []string{ns, s.layout.emergency(ns)} {
			data, err := s.backend.Get(ctx, name)
			if errors.Is(err, backend.ErrNotFound) {
				continue
			}
			if err != nil {
				readErrs = append(readErrs, fmt.Errorf("read %s: %w", name, err))
				continue
			}
			coll, _, err := DecodeCollection(data)
			if err != nil {
				logging.WarnWithContext(s.logger, "namespace is corrupt; ignoring it", "namespace_corrupt",
					logging.String(logging.FieldNamespace, name),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the namespace is rebuilt from the other copies"),
				)
				continue
			}
			raw[name] = data
			report.Sources[name] = len(coll)
			mergeInto(union, coll)
		}
	}
	if len(report.Sources) == 0 && len(readErrs) > 0 {
		return report, errors.Join(readErrs...)
	}

	for key, rec := range union {
		if audiocodec.IsEphemeral(rec.DataURL) {
			if _, err := s.registry.Source(rec.DataURL); err != nil {
				delete(union, key)
				report.Dropped++
			}
		}
	}

	report.Union = len(union)
	durable := union.Durable()
	primaryCount := report.Sources[s.layout.Primary]
	report.Repaired = primaryCount < len(durable)
	s.live = union

	encoded, err := durable.Marshal()
	if err != nil {
		return report, fmt.Errorf("encode union: %w", err)
	}
	for _, ns := range s.layout.replicas() {
		if existing, ok := raw[ns]; ok && bytes.Equal(existing, encoded) {
			continue
		}
		if len(durable) == 0 && raw[ns] == nil {
			continue
		}
		if err := s.backend.Set(ctx, ns, encoded); err != nil {
			report.Failed = append(report.Failed, ns)
			logging.WarnWithContext(s.logger, "reconcile write-back failed", "reconcile_write_failed",
				logging.String(logging.FieldNamespace, ns),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this replica stays stale until the next pass"),
			)
			continue
		}
		report.Written = append(report.Written, ns)
	}

	if report.Repaired {
		s.logger.Info("live collection repaired from backups",
			logging.String(logging.FieldNamespace, s.layout.Primary),
			logging.Int("primary_entries", primaryCount),
			logging.Int("union_entries", len(durable)),
		)
	}
	return report, nil
}

// Merge adds imported records whose alias is not already present. Existing
// entries are never overwritten. Session handles are ignored. It returns the
// number of aliases added.
func (s *Store) Merge(ctx context.Context, imports Collection) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	next := s.live.Clone()
	added := 0
	for key, rec := range imports {
		if _, exists := next[key]; exists || !audiocodec.IsDurable(rec.DataURL) {
			continue
		}
		next[key] = rec
		added++
	}
	if added == 0 {
		return 0, nil
	}

	written, failed, quotaErr := s.writeReplicas(ctx, next)
	if len(written) == 0 {
		if quotaErr != nil {
			return 0, fmt.Errorf("merge %d entries: %w", added, quotaErr)
		}
		return 0, fmt.Errorf("merge %d entries: %w", added, ErrNoNamespace)
	}
	if len(failed) > 0 {
		logging.WarnWithContext(s.logger, "merge stored with reduced redundancy", "replica_write_failed",
			logging.Strings("failed", failed),
			logging.String(logging.FieldImpact, "fewer backup copies exist until the next reconcile"),
		)
	}
	s.live = next
	return added, nil
}

func mergeInto(dst, src Collection) {
	for key, rec := range src {
		current, ok := dst[key]
		if !ok || better(rec, current) {
			dst[key] = rec
		}
	}
}
