package testsupport

import (
	"context"
	"testing"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/config"
)

// MustOpenStore opens the configured backend, initializes an asset store
// over it, and registers teardown.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...assetstore.Option) *assetstore.Store {
	t.Helper()

	b, err := backend.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	store := assetstore.New(b, assetstore.LayoutFromConfig(cfg), opts...)
	if err := store.Init(context.Background()); err != nil {
		_ = b.Close()
		t.Fatalf("store.Init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Teardown(context.Background())
	})
	return store
}
