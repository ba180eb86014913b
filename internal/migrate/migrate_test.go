package migrate_test

import (
	"bytes"
	"context"
	"testing"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/config"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/migrate"
)

var legacyValues = map[string]string{
	"customAudioFiles": `{
		"44": "` + string(audiocodec.Encode([]byte("legacy-44"), "44.mp3")) + `",
		"7": {"dataUrl": "` + string(audiocodec.Encode([]byte("legacy-7"), "7.mp3")) + `", "name": "7.mp3", "size": 8, "createdAt": 1700000000000},
		"blobby": "blob:http://localhost/3f1c",
		"junk": 5
	}`,
	"wb-audio-files-unified": `{
		"cells": {"12": "` + string(audiocodec.Encode([]byte("legacy-12"), "12.wav")) + `"},
		"delivery": {"check-product": "` + string(audiocodec.Encode([]byte("legacy-camera"), "camera.mp3")) + `"}
	}`,
	"audioFiles": `{
		"files": {"A1.mp3": "` + string(audiocodec.Encode([]byte("legacy-a1"), "A1.mp3")) + `"}
	}`,
	"wb-audio-files-backup": `not json`,
}

func setup(t *testing.T) (*assetstore.Store, *backend.Memory, *config.Config) {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	mem := backend.NewMemory()
	for name, value := range legacyValues {
		if err := mem.Set(ctx, name, []byte(value)); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	store := assetstore.New(mem, assetstore.LayoutFromConfig(&cfg))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = store.Teardown(ctx) })
	return store, mem, &cfg
}

func TestRunImportsEveryLayout(t *testing.T) {
	ctx := context.Background()
	store, mem, cfg := setup(t)

	current := audiocodec.Encode([]byte("current-44"), "44.mp3")
	if _, err := store.Put(ctx, keyspace.Cell("44"), assetstore.Asset{Payload: current, DisplayName: "44.mp3"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	m := migrate.New(store, cfg.Namespaces.Legacy)
	report, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Entries != 7 || report.Ephemeral != 1 || report.Invalid != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Imported != 11 {
		t.Fatalf("expected 11 imported aliases, got %d", report.Imported)
	}
	if len(report.Unreadable) != 1 || report.Unreadable[0] != "wb-audio-files-backup" {
		t.Fatalf("unexpected unreadable list: %v", report.Unreadable)
	}

	for _, key := range []string{"7", "cell-7", "12", "ячейка-12", "A1", "cell-A1", "check-product", "please_check_good_under_camera"} {
		if _, ok := store.Peek(key); !ok {
			t.Fatalf("expected %q after migration", key)
		}
	}
	got, ok := store.Peek("cell-44")
	if !ok || got.Payload != current {
		t.Fatalf("existing entry must not be overwritten, got %+v", got)
	}
	if _, ok := store.Peek("blobby"); ok {
		t.Fatal("session handles must not be imported")
	}

	for name, value := range legacyValues {
		data, err := mem.Get(ctx, name)
		if err != nil || !bytes.Equal(data, []byte(value)) {
			t.Fatalf("legacy namespace %s modified", name)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _, cfg := setup(t)
	m := migrate.New(store, cfg.Namespaces.Legacy)

	if _, err := m.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before := store.Keys()

	report, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Imported != 0 {
		t.Fatalf("second run imported %d aliases", report.Imported)
	}
	after := store.Keys()
	if len(before) != len(after) {
		t.Fatalf("key set changed: %v -> %v", before, after)
	}
}

func TestRunOnceRespectsMarker(t *testing.T) {
	ctx := context.Background()
	store, _, cfg := setup(t)
	m := migrate.New(store, cfg.Namespaces.Legacy)

	report, err := m.RunOnce(ctx)
	if err != nil || report.AlreadyDone || report.Imported == 0 {
		t.Fatalf("first RunOnce = %+v, %v", report, err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	report, err = m.RunOnce(ctx)
	if err != nil || !report.AlreadyDone {
		t.Fatalf("second RunOnce = %+v, %v", report, err)
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Fatalf("cleared store repopulated: %v", keys)
	}
}

func TestRunWithoutLegacyData(t *testing.T) {
	cfg := config.Default()
	store := assetstore.New(backend.NewMemory(), assetstore.LayoutFromConfig(&cfg))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	report, err := migrate.New(store, cfg.Namespaces.Legacy).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Scanned) != 0 || report.Imported != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
