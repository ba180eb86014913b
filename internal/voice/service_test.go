package voice_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/iotest"
	"time"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/backend"
	"pvzvoice/internal/config"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/playback"
	"pvzvoice/internal/testsupport"
	"pvzvoice/internal/voice"
)

func openService(t *testing.T, cfg *config.Config, opts ...voice.Option) (*voice.Service, *playback.DrainSink) {
	t.Helper()
	sink := &playback.DrainSink{}
	svc, err := voice.Open(context.Background(), cfg, nil, append([]voice.Option{voice.WithSink(sink)}, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, sink
}

func clipFile(t *testing.T, name string) voice.File {
	t.Helper()
	return clipFileOf(t, name, 300*time.Millisecond)
}

func clipFileOf(t *testing.T, name string, d time.Duration) voice.File {
	t.Helper()
	return voice.File{Name: name, Reader: bytes.NewReader(testsupport.WAVClip(t, d, 8000))}
}

func TestUploadWithoutKeyThenPlay(t *testing.T) {
	ctx := context.Background()
	svc, sink := openService(t, testsupport.NewConfig(t))

	if !svc.SaveAsset(ctx, "", clipFile(t, "44.mp3")) {
		t.Fatal("SaveAsset returned false")
	}
	if !svc.PlayByKey(ctx, "44") {
		t.Fatal("expected 44 to play")
	}
	if !svc.PlayByKey(ctx, "cell-44") {
		t.Fatal("expected cell-44 to play")
	}
	if svc.PlayByKey(ctx, "45") {
		t.Fatal("45 was never uploaded")
	}
	if sink.Plays() != 2 {
		t.Fatalf("expected two plays, got %d", sink.Plays())
	}
	phrase, ok := svc.FallbackPhrase("45")
	if !ok || phrase != "Ячейка номер 45" {
		t.Fatalf("unexpected fallback phrase %q", phrase)
	}
	if cells := svc.ListKnownCells(ctx); len(cells) != 1 || cells[0] != "44" {
		t.Fatalf("unexpected cells: %v", cells)
	}
}

func TestSaveAssetWithExplicitEventKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t, testsupport.NewConfig(t))

	if !svc.SaveAsset(ctx, "Товары со скидкой проверьте ВБ кошелек", clipFile(t, "upload.wav")) {
		t.Fatal("SaveAsset returned false")
	}
	res, ok := svc.Resolve(ctx, "discount")
	if !ok || res.Asset.Key != keyspace.EventDiscount || res.Strategy != "exact" {
		t.Fatalf("unexpected resolution %+v, %v", res, ok)
	}
	if !svc.PlayByKey(ctx, "check-discount-wallet") {
		t.Fatal("synonym should play the discount recording")
	}
}

func TestSaveBatchSkipsFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t, testsupport.NewConfig(t))

	report := svc.SaveBatch(ctx, []voice.File{
		clipFile(t, "cell-12.wav"),
		{Name: "13.mp3", Reader: iotest.ErrReader(errors.New("unreadable"))},
		clipFile(t, "A7.mp3"),
		{Name: " .mp3", Reader: bytes.NewReader([]byte("x"))},
	})
	if len(report.Saved) != 2 || report.Saved["cell-12.wav"] != "12" || report.Saved["A7.mp3"] != "A7" {
		t.Fatalf("unexpected saved set: %v", report.Saved)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("expected two failures, got %+v", report.Failed)
	}
	if cells := svc.ListKnownCells(ctx); len(cells) != 2 || cells[0] != "12" || cells[1] != "A7" {
		t.Fatalf("unexpected cells: %v", cells)
	}
}

func TestSaveDir(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t, testsupport.NewConfig(t))
	dir := t.TempDir()
	clip := testsupport.WAVClip(t, 100*time.Millisecond, 8000)
	testsupport.WriteUpload(t, dir, "1.wav", clip)
	testsupport.WriteUpload(t, dir, "ячейка 2.wav", clip)
	testsupport.WriteUpload(t, dir, "notes.txt", []byte("ignored"))

	report, err := svc.SaveDir(ctx, dir)
	if err != nil {
		t.Fatalf("SaveDir: %v", err)
	}
	if len(report.Saved) != 2 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t, testsupport.NewConfig(t))
	svc.SaveAsset(ctx, "", clipFileOf(t, "5.wav", 100*time.Millisecond))
	svc.SaveAsset(ctx, "", clipFileOf(t, "6.wav", 200*time.Millisecond))

	removed, err := svc.RemoveAsset(ctx, "cell-5")
	if err != nil || len(removed) == 0 {
		t.Fatalf("RemoveAsset = %v, %v", removed, err)
	}
	if svc.PlayByKey(ctx, "5") {
		t.Fatal("removed cell still plays")
	}
	if !svc.PlayByKey(ctx, "6") {
		t.Fatal("unrelated cell must survive removal")
	}
	if err := svc.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if cells := svc.ListKnownCells(ctx); len(cells) != 0 {
		t.Fatalf("expected no cells, got %v", cells)
	}
}

func TestClearAllIsNotUndoneByMigration(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	b, err := backend.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	legacy := `{"9": "` + string(audiocodec.Encode(testsupport.WAVClip(t, 100*time.Millisecond, 8000), "9.wav")) + `"}`
	if err := b.Set(ctx, "cellAudios", []byte(legacy)); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	_ = b.Close()

	first, err := voice.Open(ctx, cfg, nil, voice.WithSink(&playback.DrainSink{}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !first.PlayByKey(ctx, "cell-9") {
		t.Fatal("legacy recording should be imported on first open")
	}
	if err := first.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	_ = first.Close(ctx)

	second, _ := openService(t, cfg)
	if second.PlayByKey(ctx, "9") {
		t.Fatal("cleared recording came back after restart")
	}
	report, err := second.Migrate(ctx)
	if err != nil || report.Imported == 0 {
		t.Fatalf("explicit Migrate = %+v, %v", report, err)
	}
}

func TestSettingsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	first, err := voice.Open(ctx, cfg, nil, voice.WithSink(&playback.DrainSink{}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.SetPlaybackRate(ctx, 1.5); err != nil {
		t.Fatalf("SetPlaybackRate: %v", err)
	}
	if err := first.SetPlaybackRate(ctx, 9); err == nil {
		t.Fatal("expected out of range rate to fail")
	}
	if err := first.SetVariant(ctx, keyspace.VariantV2); err != nil {
		t.Fatalf("SetVariant: %v", err)
	}
	_ = first.Close(ctx)

	second, _ := openService(t, cfg)
	if got := second.PlaybackRate(ctx); got != 1.5 {
		t.Fatalf("rate not persisted: %v", got)
	}
	if got := second.Variant(); got != keyspace.VariantV2 {
		t.Fatalf("variant not persisted: %v", got)
	}
}

func TestReconcileAndStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t, testsupport.NewConfig(t))
	svc.SaveAsset(ctx, "", clipFile(t, "3.wav"))
	svc.SaveAsset(ctx, "goods", clipFileOf(t, "goods.wav", 200*time.Millisecond))

	if _, err := svc.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Cells != 1 || stats.Events != 1 || stats.Assets != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCloudDisabled(t *testing.T) {
	svc, _ := openService(t, testsupport.NewConfig(t))
	if _, err := svc.CloudPush(context.Background()); !errors.Is(err, voice.ErrCloudDisabled) {
		t.Fatalf("expected ErrCloudDisabled, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	svc, err := voice.Open(context.Background(), testsupport.NewConfig(t), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
