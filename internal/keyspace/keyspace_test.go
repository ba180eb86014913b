package keyspace_test

import (
	"slices"
	"testing"

	"pvzvoice/internal/keyspace"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		kind keyspace.Kind
		key  string
	}{
		{"44", keyspace.KindCell, "44"},
		{"44.mp3", keyspace.KindCell, "44"},
		{"cell-44", keyspace.KindCell, "44"},
		{"ячейка-44", keyspace.KindCell, "44"},
		{"Ячейка 44", keyspace.KindCell, "44"},
		{"delivery-cell-7", keyspace.KindCell, "7"},
		{"a1", keyspace.KindCell, "A1"},
		{"cell_b12", keyspace.KindCell, "B12"},
		{"discount", keyspace.KindEvent, "discount"},
		{"Товары со скидкой проверьте ВБ кошелек", keyspace.KindEvent, "discount"},
		{"check-discount-wallet", keyspace.KindEvent, "discount"},
		{"delivery-thanks", keyspace.KindEvent, "rate-pvz"},
		{"cell-number", keyspace.KindEvent, "cell-number"},
		{"welcome-jingle", keyspace.KindEvent, "welcome-jingle"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req, ok := keyspace.Classify(tt.raw)
			if !ok {
				t.Fatalf("Classify(%q) reported blank", tt.raw)
			}
			if req.Kind() != tt.kind || req.Key() != tt.key {
				t.Fatalf("Classify(%q) = %s %q, want %s %q", tt.raw, req.Kind(), req.Key(), tt.kind, tt.key)
			}
		})
	}

	if _, ok := keyspace.Classify("   "); ok {
		t.Fatal("expected blank input to be rejected")
	}
}

func TestExpandCellStartsWithCanonicalAndCoversAliases(t *testing.T) {
	gen := keyspace.NewGenerator(keyspace.VariantV1)
	req := keyspace.Cell("44")

	candidates := gen.Expand(req)
	if len(candidates) == 0 || candidates[0] != "44" {
		t.Fatalf("expected canonical key first, got %v", candidates)
	}
	for _, alias := range gen.Aliases(req) {
		if !slices.Contains(candidates, alias) {
			t.Fatalf("alias %q missing from search list %v", alias, candidates)
		}
	}
	for _, want := range []string{"cell-44", "ячейка-44", "Ячейка 44", "44.mp3"} {
		if !slices.Contains(candidates, want) {
			t.Fatalf("expected %q in %v", want, candidates)
		}
	}
	seen := map[string]bool{}
	for _, c := range candidates {
		if seen[c] {
			t.Fatalf("duplicate candidate %q in %v", c, candidates)
		}
		seen[c] = true
	}
}

func TestExpandRawKeepsLiteralFirst(t *testing.T) {
	gen := keyspace.Generator{}
	candidates := gen.ExpandRaw("cell-44")
	if candidates[0] != "cell-44" || candidates[1] != "44" {
		t.Fatalf("unexpected order: %v", candidates)
	}
}

func TestExpandPaddingVariants(t *testing.T) {
	gen := keyspace.Generator{}
	if c := gen.Expand(keyspace.Cell("A1")); !slices.Contains(c, "A01") || !slices.Contains(c, "a1") {
		t.Fatalf("expected padded and folded forms, got %v", c)
	}
	if c := gen.Expand(keyspace.Cell("007")); !slices.Contains(c, "7") {
		t.Fatalf("expected unpadded form, got %v", c)
	}
}

func TestVariantSelectsEventKey(t *testing.T) {
	req := keyspace.Event("check-product")
	v1 := keyspace.NewGenerator(keyspace.VariantV1).Aliases(req)
	v2 := keyspace.NewGenerator(keyspace.VariantV2).Aliases(req)
	if !slices.Contains(v1, "please_check_good_under_camera") {
		t.Fatalf("v1 aliases missing pack key: %v", v1)
	}
	if !slices.Contains(v2, "scanAfterQrClient") || slices.Contains(v2, "please_check_good_under_camera") {
		t.Fatalf("v2 aliases wrong: %v", v2)
	}

	search := keyspace.NewGenerator(keyspace.VariantV2).Expand(req)
	if !slices.Contains(search, "Проверьте товар под камерой") {
		t.Fatalf("expected synonym in search list: %v", search)
	}

	if _, err := keyspace.ParseVariant("v3"); err == nil {
		t.Fatal("expected unknown variant error")
	}
}

func TestInferFromFilename(t *testing.T) {
	tests := []struct {
		name string
		kind keyspace.Kind
		key  string
	}{
		{"44.mp3", keyspace.KindCell, "44"},
		{"/uploads/cell-a12.wav", keyspace.KindCell, "A12"},
		{"ячейка_126.mp3", keyspace.KindCell, "126"},
		{"locker-9.ogg", keyspace.KindCell, "9"},
		{"track 5 final.mp3", keyspace.KindCell, "5"},
		{"коробка-принята.mp3", keyspace.KindEvent, "box-accepted"},
		{"check-discount-wallet.mp3", keyspace.KindEvent, "discount"},
		{"welcome.mp3", keyspace.KindEvent, "welcome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := keyspace.InferFromFilename(tt.name)
			if !ok {
				t.Fatalf("InferFromFilename(%q) failed", tt.name)
			}
			if req.Kind() != tt.kind || req.Key() != tt.key {
				t.Fatalf("InferFromFilename(%q) = %s %q, want %s %q", tt.name, req.Kind(), req.Key(), tt.kind, tt.key)
			}
		})
	}
	if _, ok := keyspace.InferFromFilename(".mp3"); ok {
		t.Fatal("expected empty stem to be rejected")
	}
}

func TestPhrase(t *testing.T) {
	if text, ok := keyspace.Phrase(keyspace.Cell("12")); !ok || text != "Ячейка номер 12" {
		t.Fatalf("unexpected cell phrase %q", text)
	}
	if text, ok := keyspace.Phrase(keyspace.Event("rate-pvz")); !ok || text == "" {
		t.Fatal("expected rate-pvz phrase")
	}
	if _, ok := keyspace.Phrase(keyspace.Event("unknown-event")); ok {
		t.Fatal("expected no phrase for unknown event")
	}
	if kw := keyspace.Keywords(keyspace.EventDiscount); len(kw) == 0 {
		t.Fatal("expected discount keywords")
	}
}
