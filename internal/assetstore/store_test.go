package assetstore_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/config"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/testsupport"
)

func testLayout(rf int) assetstore.Layout {
	cfg := config.Default()
	layout := assetstore.LayoutFromConfig(&cfg)
	layout.ReplicationFactor = rf
	return layout
}

type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickClock() *tickClock {
	return &tickClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newStore(t *testing.T, b backend.Backend, layout assetstore.Layout, opts ...assetstore.Option) *assetstore.Store {
	t.Helper()
	s := assetstore.New(b, layout, opts...)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func cellAsset(name string, size int) assetstore.Asset {
	data := []byte(strings.Repeat(name, size/len(name)+1))[:size]
	return assetstore.Asset{
		Payload:     audiocodec.Encode(data, name),
		DisplayName: name,
		SizeBytes:   int64(size),
	}
}

func TestPutWritesAliasesToEveryReplica(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(3)
	s := newStore(t, b, layout)

	res, err := s.Put(ctx, keyspace.Cell("44"), cellAsset("44.mp3", 16))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(res.Written) != 3 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, alias := range []string{"44", "cell-44", "ячейка-44"} {
		asset, ok := s.Peek(alias)
		if !ok {
			t.Fatalf("alias %q not reachable", alias)
		}
		if asset.DisplayName != "44.mp3" || asset.Key != "44" || asset.Kind != assetstore.KindCell {
			t.Fatalf("unexpected asset under %q: %+v", alias, asset)
		}
	}

	for _, ns := range []string{layout.Primary, layout.Backups[0], layout.Backups[1]} {
		data, err := b.Get(ctx, ns)
		if err != nil {
			t.Fatalf("namespace %s not written: %v", ns, err)
		}
		coll, _, err := assetstore.DecodeCollection(data)
		if err != nil || len(coll) != 3 {
			t.Fatalf("namespace %s holds %d entries (%v)", ns, len(coll), err)
		}
	}
	if _, err := b.Get(ctx, layout.Backups[2]); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("backup beyond replication factor should be untouched, got %v", err)
	}
}

func TestGetReconcilesOnMiss(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(2)

	reader := newStore(t, b, layout)
	writer := newStore(t, b, layout)
	if _, err := writer.Put(ctx, keyspace.Event("discount"), cellAsset("discount.mp3", 8)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok := reader.Peek("discount"); ok {
		t.Fatal("reader should not see the asset before reconciling")
	}
	asset, key, ok := reader.Get(ctx, []string{"missing", "discount"})
	if !ok || key != "discount" || asset.DisplayName != "discount.mp3" {
		t.Fatalf("Get after reconcile = %+v %q %v", asset, key, ok)
	}
}

func TestReconcileRepairsPrimaryFromBackup(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(3)

	first := newStore(t, b, layout)
	if _, err := first.Put(ctx, keyspace.Cell("12"), cellAsset("12.mp3", 8)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Remove(ctx, layout.Primary); err != nil {
		t.Fatalf("drop primary: %v", err)
	}

	second := assetstore.New(b, layout)
	report, err := second.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !report.Repaired || !slices.Contains(report.Written, layout.Primary) {
		t.Fatalf("expected primary repair, got %+v", report)
	}
	if _, ok := second.Peek("cell-12"); !ok {
		t.Fatal("asset lost after primary was dropped")
	}
	if _, err := b.Get(ctx, layout.Primary); err != nil {
		t.Fatalf("primary not rewritten: %v", err)
	}

	again, err := second.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if again.Repaired || len(again.Written) != 0 {
		t.Fatalf("second pass should be a no-op, got %+v", again)
	}
}

func TestReconcileWritesOnlyReplicaNamespaces(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(2)
	seed := []byte(`{"9":{"dataUrl":"data:audio/mpeg;base64,bmluZQ==","name":"9.mp3","size":4,"createdAt":"2025-06-01T00:00:00Z"}}`)
	if err := b.Set(ctx, layout.Backups[3], seed); err != nil {
		t.Fatalf("seed backup: %v", err)
	}

	s := newStore(t, b, layout)
	if _, ok := s.Peek("9"); !ok {
		t.Fatal("entry from a non-replica backup not merged")
	}
	for _, ns := range []string{layout.Primary, layout.Backups[0]} {
		if _, err := b.Get(ctx, ns); err != nil {
			t.Fatalf("replica %s not written: %v", ns, err)
		}
	}
	if _, err := b.Get(ctx, layout.Backups[1]); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("namespace outside the replica set was written: %v", err)
	}
	if got, _ := b.Get(ctx, layout.Backups[3]); string(got) != string(seed) {
		t.Fatalf("read-only backup rewritten: %s", got)
	}
}

func TestReconcilePrefersNewestRecord(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(1)

	older := `{"7":{"dataUrl":"data:audio/mpeg;base64,b2xk","name":"old.mp3","size":3,"createdAt":1700000000000}}`
	newer := `{"7":{"dataUrl":"data:audio/mpeg;base64,bmV3","name":"new.mp3","size":3,"createdAt":"2025-06-01T00:00:00Z"}}`
	if err := b.Set(ctx, layout.Primary, []byte(older)); err != nil {
		t.Fatalf("seed primary: %v", err)
	}
	if err := b.Set(ctx, layout.Backups[3], []byte(newer)); err != nil {
		t.Fatalf("seed backup: %v", err)
	}

	s := newStore(t, b, layout)
	asset, ok := s.Peek("7")
	if !ok || asset.DisplayName != "new.mp3" {
		t.Fatalf("expected newest record to win, got %+v", asset)
	}
	if asset.Kind != assetstore.KindCell {
		t.Fatalf("expected kind inferred from key, got %q", asset.Kind)
	}
}

func TestPutEvictsOldestUnderQuota(t *testing.T) {
	ctx := context.Background()
	b := backend.WithQuota(backend.NewMemory(), 4000)
	clock := newTickClock()
	s := newStore(t, b, testLayout(1), assetstore.WithClock(clock.Now))

	for _, id := range []string{"1", "2"} {
		if _, err := s.Put(ctx, keyspace.Cell(id), cellAsset(id+".mp3", 300)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	res, err := s.Put(ctx, keyspace.Cell("3"), cellAsset("3.mp3", 300))
	if err != nil {
		t.Fatalf("Put 3: %v", err)
	}
	if !slices.Contains(res.Evicted, "1") || slices.Contains(res.Evicted, "2") {
		t.Fatalf("expected only the oldest asset evicted, got %v", res.Evicted)
	}
	if _, ok := s.Peek("1"); ok {
		t.Fatal("evicted asset still reachable")
	}
	for _, id := range []string{"2", "3"} {
		if _, ok := s.Peek(id); !ok {
			t.Fatalf("asset %s missing after eviction", id)
		}
	}
}

func TestPutEvictsOnlyTheOldestOfAssetsSharingBytes(t *testing.T) {
	ctx := context.Background()
	b := backend.WithQuota(backend.NewMemory(), 4000)
	s := newStore(t, b, testLayout(1), assetstore.WithClock(newTickClock().Now))

	for _, id := range []string{"1", "2"} {
		if _, err := s.Put(ctx, keyspace.Cell(id), cellAsset("shared.mp3", 300)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	res, err := s.Put(ctx, keyspace.Cell("3"), cellAsset("3.mp3", 300))
	if err != nil {
		t.Fatalf("Put 3: %v", err)
	}
	if !slices.Contains(res.Evicted, "1") || slices.Contains(res.Evicted, "2") {
		t.Fatalf("expected only cell 1 evicted, got %v", res.Evicted)
	}
	if _, ok := s.Peek("1"); ok {
		t.Fatal("evicted asset still reachable")
	}
	if _, ok := s.Peek("2"); !ok {
		t.Fatal("newer asset with the same bytes was evicted")
	}
}

func TestPutDegradesWhenEvictionCannotHelp(t *testing.T) {
	ctx := context.Background()
	b := backend.WithQuota(backend.NewMemory(), 4000)
	s := newStore(t, b, testLayout(1), assetstore.WithClock(newTickClock().Now))

	if _, err := s.Put(ctx, keyspace.Cell("1"), cellAsset("1.mp3", 300)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	res, err := s.Put(ctx, keyspace.Cell("99"), cellAsset("99.mp3", 2000))
	if !errors.Is(err, assetstore.ErrDegraded) {
		t.Fatalf("expected ErrDegraded, got %v", err)
	}
	if !res.Degraded {
		t.Fatalf("expected degraded result, got %+v", res)
	}

	asset, ok := s.Peek("99")
	if !ok || asset.Durable() {
		t.Fatalf("expected session-only asset, got %+v", asset)
	}
	src, err := s.Registry().Source(asset.Payload)
	if err != nil || len(src.Data) != 2000 {
		t.Fatalf("session handle unusable: %v", err)
	}
	if _, ok := s.Peek("1"); !ok {
		t.Fatal("older asset must survive a failed write")
	}
}

func TestMergeIsAdditive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, backend.NewMemory(), testLayout(1))
	if _, err := s.Put(ctx, keyspace.Cell("5"), cellAsset("5.mp3", 4)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	imports := assetstore.Collection{
		"5":        {DataURL: audiocodec.Encode([]byte("x"), "legacy.mp3"), Name: "legacy.mp3"},
		"6":        {DataURL: audiocodec.Encode([]byte("y"), "6.mp3"), Name: "6.mp3"},
		"blob-key": {DataURL: "blob:pvzvoice/dead", Name: "gone.mp3"},
	}
	added, err := s.Merge(ctx, imports)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}
	if asset, _ := s.Peek("5"); asset.DisplayName != "5.mp3" {
		t.Fatalf("existing entry overwritten: %+v", asset)
	}
	if _, ok := s.Peek("blob-key"); ok {
		t.Fatal("session handles must not be merged")
	}
}

func TestRemoveDropsAliasesEverywhere(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(2)
	s := newStore(t, b, layout)
	if _, err := s.Put(ctx, keyspace.Cell("44"), cellAsset("44.mp3", 8)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, keyspace.Cell("45"), cellAsset("45.mp3", 8)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := s.Remove(ctx, "cell-44")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !slices.Equal(removed, []string{"44", "cell-44", "ячейка-44"}) {
		t.Fatalf("unexpected removed aliases %v", removed)
	}

	fresh := newStore(t, b, layout)
	if _, ok := fresh.Peek("44"); ok {
		t.Fatal("removed asset resurrected by reconcile")
	}
	if got := fresh.ListCells(); !slices.Equal(got, []string{"45"}) {
		t.Fatalf("ListCells = %v", got)
	}
}

func TestRemoveKeepsOtherCellWithSameBytes(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(2)
	s := newStore(t, b, layout)
	for _, id := range []string{"44", "45"} {
		if _, err := s.Put(ctx, keyspace.Cell(id), cellAsset("beep.mp3", 8)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	removed, err := s.Remove(ctx, "44")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !slices.Equal(removed, []string{"44", "cell-44", "ячейка-44"}) {
		t.Fatalf("unexpected removed aliases %v", removed)
	}
	if got := s.ListCells(); !slices.Equal(got, []string{"45"}) {
		t.Fatalf("ListCells = %v", got)
	}
	if got := newStore(t, b, layout).ListCells(); !slices.Equal(got, []string{"45"}) {
		t.Fatalf("ListCells after reopen = %v", got)
	}
}

func TestRemoveKeepsPaddedCellVariant(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(2)
	s := newStore(t, b, layout)
	if _, err := s.Put(ctx, keyspace.Cell("A1"), cellAsset("a1.mp3", 8)); err != nil {
		t.Fatalf("Put A1: %v", err)
	}
	if _, err := s.Put(ctx, keyspace.Cell("A01"), cellAsset("a01.mp3", 8)); err != nil {
		t.Fatalf("Put A01: %v", err)
	}

	if _, err := s.Remove(ctx, "A1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := s.ListCells(); !slices.Equal(got, []string{"A01"}) {
		t.Fatalf("ListCells = %v", got)
	}
	if got := newStore(t, b, layout).ListCells(); !slices.Equal(got, []string{"A01"}) {
		t.Fatalf("ListCells after reopen = %v", got)
	}
}

func TestRemoveDropsLegacyEntriesOfTheAsset(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(1)
	legacy := `{
		"delivery-cell-7": {"dataUrl":"data:audio/mpeg;base64,c2V2ZW4=","name":"7.mp3","size":5,"createdAt":1700000000000},
		"seven-announcement": {"dataUrl":"data:audio/mpeg;base64,c2V2ZW4=","name":"7.mp3","size":5,"createdAt":1700000000000},
		"delivery-cell-8": {"dataUrl":"data:audio/mpeg;base64,c2V2ZW4=","name":"7.mp3","size":5,"createdAt":1700000000000}
	}`
	if err := b.Set(ctx, layout.Primary, []byte(legacy)); err != nil {
		t.Fatalf("seed primary: %v", err)
	}
	s := newStore(t, b, layout)

	removed, err := s.Remove(ctx, "7")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !slices.Equal(removed, []string{"delivery-cell-7", "seven-announcement"}) {
		t.Fatalf("unexpected removed aliases %v", removed)
	}
	if _, ok := s.Peek("delivery-cell-8"); !ok {
		t.Fatal("cell 8 must survive removing cell 7")
	}
}

func TestClearEmptiesStoreButKeepsLegacy(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(2)
	if err := b.Set(ctx, "customAudioFiles", []byte(`{}`)); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	s := newStore(t, b, layout)
	if _, err := s.Put(ctx, keyspace.Cell("1"), cellAsset("1.mp3", 4)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Fatalf("live collection not empty: %v", s.Keys())
	}
	names, _ := b.Names(ctx)
	if !slices.Equal(names, []string{"customAudioFiles"}) {
		t.Fatalf("unexpected namespaces after clear: %v", names)
	}
}

func TestListCellsNaturalOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, backend.NewMemory(), testLayout(1))
	for _, id := range []string{"10", "2", "B1", "A12", "A2"} {
		if _, err := s.Put(ctx, keyspace.Cell(id), cellAsset(id+".mp3", 4)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	if _, err := s.Put(ctx, keyspace.Event("discount"), cellAsset("d.mp3", 4)); err != nil {
		t.Fatalf("Put event: %v", err)
	}
	want := []string{"2", "10", "A2", "A12", "B1"}
	if got := s.ListCells(); !slices.Equal(got, want) {
		t.Fatalf("ListCells = %v, want %v", got, want)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Cells != 5 || st.Events != 1 || st.Durable != 6 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSettingsPersist(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	layout := testLayout(1)
	s := newStore(t, b, layout)

	if got := s.PlaybackRate(ctx, 1); got != 1 {
		t.Fatalf("default rate = %v", got)
	}
	if err := s.SetPlaybackRate(ctx, 1.25); err != nil {
		t.Fatalf("SetPlaybackRate: %v", err)
	}
	if err := s.SetPlaybackRate(ctx, 9); err == nil {
		t.Fatal("expected out-of-range rate to be rejected")
	}
	if err := s.SetVariant(ctx, keyspace.VariantV2); err != nil {
		t.Fatalf("SetVariant: %v", err)
	}

	reopened := newStore(t, b, layout)
	if got := reopened.PlaybackRate(ctx, 1); got != 1.25 {
		t.Fatalf("rate after reopen = %v", got)
	}
	if reopened.Variant() != keyspace.VariantV2 {
		t.Fatalf("variant after reopen = %q", reopened.Variant())
	}

	id, err := reopened.DeviceID(ctx)
	if err != nil || !strings.HasPrefix(id, "device_") {
		t.Fatalf("DeviceID = %q, %v", id, err)
	}
	again, _ := s.DeviceID(ctx)
	if again != id {
		t.Fatalf("device id not stable: %q vs %q", again, id)
	}
}

func TestTeardownClosesStore(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t, testsupport.WithBackend(config.BackendFile))
	s := testsupport.MustOpenStore(t, cfg)
	if err := s.Teardown(ctx); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if _, err := s.Put(ctx, keyspace.Cell("1"), cellAsset("1.mp3", 4)); !errors.Is(err, assetstore.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDecodeCollectionAcceptsLegacyValues(t *testing.T) {
	data := []byte(`{
		"44": "data:audio/mpeg;base64,AAAA",
		"cell-44": {"dataUrl": "data:audio/mpeg;base64,AAAA", "name": "44.mp3", "size": 3, "createdAt": 1700000000000},
		"broken": 17,
		"text": "not audio"
	}`)
	coll, skipped, err := assetstore.DecodeCollection(data)
	if err != nil {
		t.Fatalf("DecodeCollection: %v", err)
	}
	if len(coll) != 2 || skipped != 2 {
		t.Fatalf("got %d entries, %d skipped", len(coll), skipped)
	}
	if ts := coll["cell-44"].CreatedAt; ts.UnixMilli() != 1700000000000 {
		t.Fatalf("epoch timestamp misread: %v", ts)
	}
}
