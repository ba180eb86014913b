package assetstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
	"pvzvoice/internal/textutil"
)

// Remove deletes the asset key names from the live collection and from every
// namespace, emergency copies included. An entry belongs to the asset when it
// sits under one of the asset's aliases or records the asset's canonical key.
// Older entries without a recorded key belong to it when their alias
// classifies to that key, or when they are non-cell spellings holding the
// asset's payload. Other assets are never touched, even when they hold the
// same bytes or a zero-padded form of the same cell. It returns the aliases
// removed from the live collection.
func (s *Store) Remove(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	req, ok := keyspace.Classify(key)
	if !ok {
		return nil, nil
	}
	target := newRemoval(req, s.gen, key)
	target.notePayloads(s.live)

	var removed []string
	next := s.live.Clone()
	for alias, rec := range next {
		if target.matches(alias, rec) {
			delete(next, alias)
			removed = append(removed, alias)
		}
	}
	for alias, rec := range s.live {
		if _, kept := next[alias]; kept || !audiocodec.IsEphemeral(rec.DataURL) {
			continue
		}
		if !next.references(rec.DataURL) {
			s.registry.Revoke(rec.DataURL)
		}
	}

	var errs []error
	for _, ns := range s.layout.all() {
		for _, name := range []string{ns, s.layout.emergency(ns)} {
			if err := s.pruneNamespace(ctx, name, target); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.live = next
	slices.Sort(removed)

	if err := errors.Join(errs...); err != nil {
		return removed, fmt.Errorf("remove %q: %w", key, err)
	}
	s.logger.Info("asset removed",
		logging.String(logging.FieldKey, target.canonical),
		logging.Strings("aliases", removed),
	)
	return removed, nil
}

// removal decides which entries belong to one asset.
type removal struct {
	canonical string
	aliases   map[string]struct{}
	payloads  map[audiocodec.Ref]struct{}
}

func newRemoval(req keyspace.Request, gen keyspace.Generator, raw string) *removal {
	r := &removal{
		canonical: req.Key(),
		aliases:   map[string]struct{}{},
		payloads:  map[audiocodec.Ref]struct{}{},
	}
	if literal := textutil.Normalize(raw); literal != "" {
		r.aliases[literal] = struct{}{}
	}
	for _, alias := range gen.Aliases(req) {
		r.aliases[alias] = struct{}{}
	}
	return r
}

// owns reports whether rec under alias was written for the asset.
func (r *removal) owns(alias string, rec Record) bool {
	if rec.Key != "" {
		return rec.Key == r.canonical
	}
	if _, ok := r.aliases[alias]; ok {
		return true
	}
	req, ok := keyspace.Classify(alias)
	return ok && req.Key() == r.canonical
}

// notePayloads remembers the payloads of entries the asset owns in coll.
func (r *removal) notePayloads(coll Collection) {
	for alias, rec := range coll {
		if r.owns(alias, rec) {
			r.payloads[rec.DataURL] = struct{}{}
		}
	}
}

func (r *removal) matches(alias string, rec Record) bool {
	if r.owns(alias, rec) {
		return true
	}
	if rec.Key != "" {
		return false
	}
	if _, ok := r.payloads[rec.DataURL]; !ok {
		return false
	}
	req, ok := keyspace.Classify(alias)
	return !ok || req.Kind() != keyspace.KindCell
}

func (s *Store) pruneNamespace(ctx context.Context, name string, target *removal) error {
	coll, err := s.readCollection(ctx, name)
	if errors.Is(err, backend.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	target.notePayloads(coll)
	changed := false
	for alias, rec := range coll {
		if target.matches(alias, rec) {
			delete(coll, alias)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := s.writeCollection(ctx, name, coll); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Clear empties the live collection and removes the primary, backup, and
// emergency namespaces. Legacy namespaces and settings are untouched.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	var errs []error
	for _, ns := range s.layout.all() {
		for _, name := range []string{ns, s.layout.emergency(ns)} {
			if err := s.backend.Remove(ctx, name); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			}
		}
	}
	s.live = Collection{}
	s.registry.RevokeAll()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("all assets cleared")
	return nil
}

// ListCells returns the canonical cell identifiers that have an asset, in
// natural order ("2" before "10", letters after numbers).
func (s *Store) ListCells() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	for alias, rec := range s.live {
		asset := rec.Asset(alias)
		if asset.Kind != KindCell {
			continue
		}
		req, ok := keyspace.Classify(asset.Key)
		if !ok || req.Kind() != keyspace.KindCell {
			continue
		}
		seen[req.Key()] = struct{}{}
	}
	cells := make([]string, 0, len(seen))
	for id := range seen {
		cells = append(cells, id)
	}
	slices.SortFunc(cells, compareCells)
	return cells
}

func compareCells(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if an != bn {
			return an - bn
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	ap, ad := splitCell(a)
	bp, bd := splitCell(b)
	if c := strings.Compare(ap, bp); c != 0 {
		return c
	}
	if ad != bd {
		return ad - bd
	}
	return strings.Compare(a, b)
}

func splitCell(id string) (string, int) {
	i := strings.IndexFunc(id, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return id, 0
	}
	n, _ := strconv.Atoi(id[i:])
	return id[:i], n
}

// Stats summarizes the live collection and backend usage.
type Stats struct {
	Keys      int
	Assets    int
	Cells     int
	Events    int
	Bytes     int64
	Durable   int
	Ephemeral int
	Usage     backend.Usage
	// Namespaces maps each stored namespace of the layout to its size.
	Namespaces map[string]int
}

// Stats counts aliases, distinct assets, and bytes. All aliases of one
// canonical key count as one asset.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	live := s.live.Clone()
	s.mu.RUnlock()

	st := Stats{Keys: len(live), Namespaces: map[string]int{}}
	groups := map[string]Asset{}
	for alias, rec := range live {
		if _, ok := groups[assetID(rec)]; !ok {
			groups[assetID(rec)] = rec.Asset(alias)
		}
	}
	for _, asset := range groups {
		st.Assets++
		st.Bytes += asset.SizeBytes
		if asset.Durable() {
			st.Durable++
		} else {
			st.Ephemeral++
		}
		if asset.Kind == KindCell {
			st.Cells++
		} else {
			st.Events++
		}
	}

	if meter, ok := s.backend.(backend.Meter); ok {
		usage, err := meter.Usage(ctx)
		if err != nil {
			return st, fmt.Errorf("backend usage: %w", err)
		}
		st.Usage = usage
	}
	for _, ns := range s.layout.all() {
		data, err := s.backend.Get(ctx, ns)
		if errors.Is(err, backend.ErrNotFound) {
			continue
		}
		if err != nil {
			return st, fmt.Errorf("read %s: %w", ns, err)
		}
		st.Namespaces[ns] = len(data)
	}
	return st, nil
}
