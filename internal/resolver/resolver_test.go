package resolver_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/resolver"
)

type mapSource struct {
	assets    map[string]assetstore.Asset
	refreshes int
	onRefresh func(*mapSource) error
}

func newSource(keys ...string) *mapSource {
	src := &mapSource{assets: map[string]assetstore.Asset{}}
	for _, key := range keys {
		src.add(key, key+".mp3")
	}
	return src
}

func (m *mapSource) add(key, name string) {
	m.assets[key] = assetstore.Asset{
		Key:         key,
		Payload:     audiocodec.Encode([]byte(name), name),
		DisplayName: name,
	}
}

func (m *mapSource) Peek(key string) (assetstore.Asset, bool) {
	a, ok := m.assets[key]
	return a, ok
}

func (m *mapSource) Keys() []string {
	keys := make([]string, 0, len(m.assets))
	for k := range m.assets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *mapSource) Refresh(context.Context) error {
	m.refreshes++
	if m.onRefresh != nil {
		return m.onRefresh(m)
	}
	return nil
}

func TestExactKeyBeatsAlias(t *testing.T) {
	src := newSource()
	src.add("44", "fresh.mp3")
	src.add("cell-44", "stale.mp3")
	r := resolver.New(src)

	res, ok := r.Resolve(context.Background(), "cell-44")
	if !ok || res.Asset.DisplayName != "stale.mp3" || res.Strategy != "exact" {
		t.Fatalf("Resolve(cell-44) = %+v, %v", res, ok)
	}
	res, ok = r.Resolve(context.Background(), "44")
	if !ok || res.Asset.DisplayName != "fresh.mp3" {
		t.Fatalf("Resolve(44) = %+v, %v", res, ok)
	}
}

func TestAliasReachability(t *testing.T) {
	src := newSource("44")
	r := resolver.New(src)
	for _, raw := range []string{"cell-44", "ячейка-44", "Ячейка 44", "44.mp3"} {
		res, ok := r.Resolve(context.Background(), raw)
		if !ok || res.MatchedKey != "44" {
			t.Fatalf("Resolve(%q) = %+v, %v", raw, res, ok)
		}
	}
}

func TestCellRequestsNeverFuzzyMatch(t *testing.T) {
	src := newSource("cell-44", "cell-number")
	r := resolver.New(src)
	if res, ok := r.Resolve(context.Background(), "45"); ok {
		t.Fatalf("expected miss for cell 45, got %+v", res)
	}
	if src.refreshes != 1 {
		t.Fatalf("expected one refresh on miss, got %d", src.refreshes)
	}
}

func TestTokenFuzzyBoundary(t *testing.T) {
	src := newSource("welcome-greeting", "discount", "cell-7")
	r := resolver.New(src)

	res, ok := r.Resolve(context.Background(), "greeting-morning")
	if !ok || res.MatchedKey != "welcome-greeting" || res.Strategy != "token_fuzzy" {
		t.Fatalf("Resolve(greeting-morning) = %+v, %v", res, ok)
	}
	if _, ok := r.Resolve(context.Background(), "farewell"); ok {
		t.Fatal("expected miss for a request sharing no token")
	}
	if _, ok := r.Resolve(context.Background(), "ab-xy"); ok {
		t.Fatal("tokens of two runes must not match")
	}
}

func TestTokenFuzzyMatchesNumericTokens(t *testing.T) {
	src := newSource("2024-sale", "cell-2024")
	r := resolver.New(src)

	res, ok := r.Resolve(context.Background(), "promo-2024")
	if !ok || res.MatchedKey != "2024-sale" || res.Strategy != "token_fuzzy" {
		t.Fatalf("Resolve(promo-2024) = %+v, %v", res, ok)
	}
}

func TestKeywordFuzzyAndDisabling(t *testing.T) {
	src := newSource("Товары со скидкой ВБ")

	res, ok := resolver.New(src).Resolve(context.Background(), "discount")
	if !ok || res.Strategy != "keyword_fuzzy" {
		t.Fatalf("Resolve(discount) = %+v, %v", res, ok)
	}

	strict := resolver.New(src, resolver.WithStrategies(resolver.DefaultStrategies(false, false)...))
	if _, ok := strict.Resolve(context.Background(), "discount"); ok {
		t.Fatal("fuzzy strategies should be disabled")
	}
}

func TestSecondPassAfterRefresh(t *testing.T) {
	src := newSource()
	src.onRefresh = func(m *mapSource) error {
		m.add("rate-pvz", "rate.mp3")
		return nil
	}
	res, ok := resolver.New(src).Resolve(context.Background(), "rate-pickup-point")
	if !ok || !res.Refreshed || res.MatchedKey != "rate-pvz" {
		t.Fatalf("Resolve after refresh = %+v, %v", res, ok)
	}

	failing := newSource()
	failing.onRefresh = func(*mapSource) error { return errors.New("backend offline") }
	if _, ok := resolver.New(failing).Resolve(context.Background(), "44"); ok {
		t.Fatal("expected miss when refresh fails")
	}
}

func TestBlankKeyMisses(t *testing.T) {
	src := newSource("44")
	if _, ok := resolver.New(src).Resolve(context.Background(), "  "); ok {
		t.Fatal("blank key must not resolve")
	}
	if src.refreshes != 0 {
		t.Fatal("blank key must not trigger a refresh")
	}
}
