package keyspace

import (
	"fmt"
	"strings"

	"pvzvoice/internal/textutil"
)

// Variant selects which historical voice-pack naming is preferred for
// events whose file names differ between packs.
type Variant string

const (
	VariantV1 Variant = "v1"
	VariantV2 Variant = "v2"
)

// ParseVariant accepts "v1" or "v2" in any case. Blank input maps to v1.
func ParseVariant(raw string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "v1":
		return VariantV1, nil
	case "v2":
		return VariantV2, nil
	default:
		return "", fmt.Errorf("unknown voice variant %q", raw)
	}
}

// variantKeys maps canonical events to their per-pack file names.
var variantKeys = map[string]map[Variant]string{
	EventGoods: {
		VariantV1: "goods",
		VariantV2: "checkWBWallet",
	},
	EventCheckProduct: {
		VariantV1: "please_check_good_under_camera",
		VariantV2: "scanAfterQrClient",
	},
	EventRatePVZ: {
		VariantV1: "thanks_for_order_rate_pickpoint",
		VariantV2: "askRatePickPoint",
	},
	EventCashOnDelivery: {
		VariantV1: "payment_on_delivery",
		VariantV2: "payment_on_delivery",
	},
}

var candidateExtensions = []string{".mp3", ".wav", ".ogg"}

// Generator produces key spellings for a request. The zero value uses the
// v1 variant.
type Generator struct {
	Variant Variant
}

// NewGenerator returns a generator for the given variant.
func NewGenerator(v Variant) Generator {
	return Generator{Variant: v}
}

// Aliases returns the keys an asset is written under. The canonical key is
// first. Writing every alias is what lets later lookups by any spelling hit
// without a fuzzy search.
func (g Generator) Aliases(req Request) []string {
	switch r := req.(type) {
	case CellRequest:
		if r.ID == "" {
			return nil
		}
		return dedupe([]string{r.ID, "cell-" + r.ID, "ячейка-" + r.ID})
	case EventRequest:
		if r.Name == "" {
			return nil
		}
		out := []string{r.Name}
		if key, ok := g.variantKey(r.Name); ok {
			out = append(out, key)
		}
		return dedupe(out)
	default:
		return nil
	}
}

// Expand returns the ordered search candidates for a request, most specific
// first. The list is finite, duplicate-free, and starts with the canonical
// key.
func (g Generator) Expand(req Request) []string {
	switch r := req.(type) {
	case CellRequest:
		return g.expandCell(r)
	case EventRequest:
		return g.expandEvent(r)
	default:
		return nil
	}
}

// ExpandRaw classifies raw and expands it, keeping raw itself as the first
// candidate so a key stored verbatim always wins.
func (g Generator) ExpandRaw(raw string) []string {
	literal := textutil.Normalize(raw)
	req, ok := Classify(raw)
	if !ok {
		return nil
	}
	return dedupe(append([]string{literal}, g.Expand(req)...))
}

func (g Generator) expandCell(r CellRequest) []string {
	if r.ID == "" {
		return nil
	}
	ids := []string{r.ID}
	if lower := strings.ToLower(r.ID); lower != r.ID {
		ids = append(ids, lower)
	}
	ids = append(ids, paddingVariants(r.ID)...)

	var out []string
	for _, id := range ids {
		out = append(out,
			id,
			"cell-"+id,
			"ячейка-"+id,
			"Ячейка "+id,
			"delivery-cell-"+id,
			"cell_"+id,
		)
	}
	for _, ext := range candidateExtensions {
		out = append(out, r.ID+ext)
	}
	return dedupe(out)
}

func (g Generator) expandEvent(r EventRequest) []string {
	if r.Name == "" {
		return nil
	}
	out := []string{r.Name}
	out = append(out, Synonyms(r.Name)...)
	if key, ok := g.variantKey(r.Name); ok {
		out = append(out, key)
	}
	for _, ext := range candidateExtensions {
		out = append(out, r.Name+ext)
	}
	return dedupe(out)
}

func (g Generator) variantKey(event string) (string, bool) {
	keys, ok := variantKeys[event]
	if !ok {
		return "", false
	}
	v := g.Variant
	if v == "" {
		v = VariantV1
	}
	key, ok := keys[v]
	return key, ok
}

// paddingVariants yields zero-padding alternatives: "A1" -> "A01", "A01" ->
// "A1", "007" -> "7".
func paddingVariants(id string) []string {
	prefix, digits := splitCellID(id)
	if digits == "" {
		return nil
	}
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	var out []string
	if trimmed != digits {
		out = append(out, prefix+trimmed)
	}
	if prefix != "" && len(trimmed) == 1 {
		out = append(out, prefix+"0"+trimmed)
	}
	return out
}

func splitCellID(id string) (string, string) {
	for i, r := range id {
		if r >= '0' && r <= '9' {
			return id[:i], id[i:]
		}
	}
	return id, ""
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
