package resolver

import (
	"context"
	"log/slog"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
	"pvzvoice/internal/textutil"
)

// Source is the read surface the resolver needs from a store.
type Source interface {
	Peek(key string) (assetstore.Asset, bool)
	// Keys lists stored keys in sorted order.
	Keys() []string
	// Refresh pulls backup copies into the live view.
	Refresh(ctx context.Context) error
}

// Resolution describes a successful lookup.
type Resolution struct {
	Asset      assetstore.Asset
	Request    keyspace.Request
	MatchedKey string
	Strategy   string
	Candidates []string
	// Refreshed is set when the hit needed a second pass after Refresh.
	Refreshed bool
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "resolver")
		}
	}
}

// WithStrategies replaces the strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		r.strategies = strategies
	}
}

// WithGenerator supplies the key-space generator per lookup, so a variant
// switch takes effect immediately.
func WithGenerator(gen func() keyspace.Generator) Option {
	return func(r *Resolver) {
		if gen != nil {
			r.generator = gen
		}
	}
}

// Resolver answers "which stored asset should play for this key".
type Resolver struct {
	source     Source
	strategies []Strategy
	generator  func() keyspace.Generator
	logger     *slog.Logger
}

// New returns a resolver over src with every default strategy enabled.
func New(src Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:     src,
		strategies: DefaultStrategies(true, true),
		generator:  func() keyspace.Generator { return keyspace.Generator{} },
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the strategy chain against the live collection, stopping at
// the first hit. On a total miss the source is refreshed and the chain runs
// once more. A miss is reported as false, not as an error.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Resolution, bool) {
	req, ok := keyspace.Classify(raw)
	if !ok {
		return Resolution{}, false
	}
	q := Query{
		Raw:        textutil.Normalize(raw),
		Request:    req,
		Candidates: r.generator().ExpandRaw(raw),
	}
	logger := r.logger.With(logging.String(logging.FieldKey, q.Raw))

	if res, ok := r.pass(q); ok {
		logger.Debug("asset resolved",
			logging.String(logging.FieldStrategy, res.Strategy),
			logging.String("matched", res.MatchedKey),
		)
		return res, true
	}

	if err := r.source.Refresh(ctx); err != nil {
		logging.WarnWithContext(logger, "refresh before second lookup pass failed", "resolver_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "backup copies were not consulted"),
		)
		return Resolution{}, false
	}
	if res, ok := r.pass(q); ok {
		res.Refreshed = true
		logger.Info("asset resolved after refresh",
			logging.String(logging.FieldStrategy, res.Strategy),
			logging.String("matched", res.MatchedKey),
		)
		return res, true
	}

	logger.Info("no asset for key",
		logging.String("kind", req.Kind().String()),
		logging.Strings(logging.FieldCandidates, q.Candidates),
	)
	return Resolution{}, false
}

func (r *Resolver) pass(q Query) (Resolution, bool) {
	for _, strategy := range r.strategies {
		key, ok := strategy.Find(q, r.source)
		if !ok {
			continue
		}
		asset, ok := r.source.Peek(key)
		if !ok {
			continue
		}
		return Resolution{
			Asset:      asset,
			Request:    q.Request,
			MatchedKey: key,
			Strategy:   strategy.Name(),
			Candidates: q.Candidates,
		}, true
	}
	return Resolution{}, false
}
