package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
)

// Version is recorded by RunOnce after a successful import.
const Version = "2"

// sectionPrefixes maps nested layout sections to the key prefix their
// entries used when they were stored flat.
var sectionPrefixes = map[string]string{
	"cells":      "",
	"files":      "",
	"delivery":   "delivery-",
	"acceptance": "receiving-",
	"receiving":  "receiving-",
	"returns":    "return-",
}

// Store is the subset of the asset store migration needs.
type Store interface {
	ReadNamespace(ctx context.Context, name string) ([]byte, error)
	Merge(ctx context.Context, imports assetstore.Collection) (int, error)
	Generator() keyspace.Generator
	MigrationMarker(ctx context.Context) (string, bool, error)
	SetMigrationMarker(ctx context.Context, version string) error
}

// Report summarizes one migration pass.
type Report struct {
	// Scanned lists legacy namespaces that held a readable value.
	Scanned []string
	// Unreadable lists namespaces whose value could not be parsed.
	Unreadable []string
	Entries    int
	Ephemeral  int
	Invalid    int
	Imported   int
	// AlreadyDone is set by RunOnce when the marker shows a previous run.
	AlreadyDone bool
}

// Option customizes a Migrator.
type Option func(*Migrator)

// WithLogger sets the migrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logging.NewComponentLogger(logger, "migrate")
		}
	}
}

// Migrator imports legacy namespaces into a store.
type Migrator struct {
	store  Store
	legacy []string
	logger *slog.Logger
}

// New returns a migrator scanning the given legacy namespaces in order.
func New(store Store, legacy []string, opts ...Option) *Migrator {
	m := &Migrator{
		store:  store,
		legacy: append([]string(nil), legacy...),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run scans every legacy namespace and merges what it finds. A missing
// namespace is not an error.
func (m *Migrator) Run(ctx context.Context) (Report, error) {
	var report Report
	gen := m.store.Generator()
	imports := assetstore.Collection{}

	for _, name := range m.legacy {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		data, err := m.store.ReadNamespace(ctx, name)
		if errors.Is(err, backend.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read legacy namespace %s: %w", name, err)
		}

		entries, err := flatten(data)
		if err != nil {
			report.Unreadable = append(report.Unreadable, name)
			logging.WarnWithContext(m.logger, "legacy namespace unreadable", "migration_unreadable",
				logging.String(logging.FieldNamespace, name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "assets in this namespace are not imported"),
			)
			continue
		}
		report.Scanned = append(report.Scanned, name)

		for _, entry := range entries {
			report.Entries++
			rec, ok := assetstore.RecordFromValue(entry.value)
			if !ok {
				report.Invalid++
				continue
			}
			if !audiocodec.IsDurable(rec.DataURL) {
				report.Ephemeral++
				continue
			}
			req, ok := classify(entry.section, entry.key)
			if !ok {
				report.Invalid++
				continue
			}
			rec.Key = req.Key()
			rec.Kind = assetstore.KindOf(req)
			if rec.Name == "" {
				rec.Name = entry.key
			}
			for _, alias := range gen.Aliases(req) {
				if current, exists := imports[alias]; exists && !newer(rec, current) {
					continue
				}
				imports[alias] = rec
			}
		}
	}

	added, err := m.store.Merge(ctx, imports)
	report.Imported = added
	if err != nil {
		return report, fmt.Errorf("merge legacy assets: %w", err)
	}
	m.logger.Info("legacy migration complete",
		logging.Strings("scanned", report.Scanned),
		logging.Int("entries", report.Entries),
		logging.Int("imported", report.Imported),
		logging.Int("ephemeral_skipped", report.Ephemeral),
		logging.Int("invalid_skipped", report.Invalid),
	)
	return report, nil
}

// RunOnce runs the migration unless the store already records Version.
// Recording the marker keeps a later clear from being undone on the next
// start.
func (m *Migrator) RunOnce(ctx context.Context) (Report, error) {
	marker, ok, err := m.store.MigrationMarker(ctx)
	if err != nil {
		return Report{}, err
	}
	if ok && marker == Version {
		m.logger.Debug("legacy migration already recorded", logging.String("version", marker))
		return Report{AlreadyDone: true}, nil
	}
	report, err := m.Run(ctx)
	if err != nil {
		return report, err
	}
	if err := m.store.SetMigrationMarker(ctx, Version); err != nil {
		return report, err
	}
	return report, nil
}

type entry struct {
	section string
	key     string
	value   json.RawMessage
}

// flatten walks the supported layouts: a flat alias map, and maps nested
// one level under a section name such as "cells" or "files".
func flatten(data []byte) ([]entry, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode legacy value: %w", err)
	}
	keys := make([]string, 0, len(top))
	for key := range top {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []entry
	for _, key := range keys {
		value := bytes.TrimSpace(top[key])
		if _, ok := assetstore.RecordFromValue(value); ok || len(value) == 0 || value[0] != '{' {
			out = append(out, entry{key: key, value: value})
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(value, &nested); err != nil {
			out = append(out, entry{key: key, value: value})
			continue
		}
		inner := make([]string, 0, len(nested))
		for k := range nested {
			inner = append(inner, k)
		}
		sort.Strings(inner)
		for _, k := range inner {
			out = append(out, entry{section: strings.ToLower(key), key: k, value: nested[k]})
		}
	}
	return out, nil
}

// classify normalizes a legacy key. Entries of a prefixed section that only
// make sense with the prefix, such as "check-product" under "delivery",
// resolve through the prefixed spelling when that names a known event.
func classify(section, key string) (keyspace.Request, bool) {
	if section == "cells" {
		if req, ok := keyspace.Classify(key); ok && req.Kind() == keyspace.KindCell {
			return req, true
		}
		if req, ok := keyspace.InferFromFilename(key); ok {
			return req, true
		}
	}
	if prefix := sectionPrefixes[section]; prefix != "" && !keyspace.IsKnownEvent(key) {
		if keyspace.IsKnownEvent(prefix + key) {
			return keyspace.Classify(prefix + key)
		}
	}
	return keyspace.Classify(key)
}

func newer(candidate, current assetstore.Record) bool {
	return candidate.CreatedAt.After(current.CreatedAt.Time)
}
