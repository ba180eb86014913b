package keyspace

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pvzvoice/internal/textutil"
)

// Kind tags the two request shapes.
type Kind int

const (
	KindCell Kind = iota + 1
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Request is a lookup target decided once at the call site: either a cell
// identifier or a semantic event name.
type Request interface {
	// Key is the canonical storage key.
	Key() string
	Kind() Kind
	isRequest()
}

// CellRequest addresses a pickup cell such as "44" or "A1".
type CellRequest struct {
	ID string
}

func (r CellRequest) Key() string { return r.ID }
func (CellRequest) Kind() Kind    { return KindCell }
func (CellRequest) isRequest()    {}

// EventRequest addresses a system prompt such as "discount".
type EventRequest struct {
	Name string
}

func (r EventRequest) Key() string { return r.Name }
func (EventRequest) Kind() Kind    { return KindEvent }
func (EventRequest) isRequest()    {}

var (
	bareCellPattern     = regexp.MustCompile(`^(\d+)$`)
	letterCellPattern   = regexp.MustCompile(`^(\p{L})(\d+)$`)
	prefixedCellPattern = regexp.MustCompile(`(?i)^(?:delivery-cell|cell|ячейка|коробка|box|slot|locker|compartment|номер|number)[-_ ]?(\p{L}?\d+)$`)
	audioExtensions     = map[string]struct{}{".mp3": {}, ".wav": {}, ".ogg": {}, ".m4a": {}, ".webm": {}, ".aac": {}, ".flac": {}, ".opus": {}}
)

// Cell builds a CellRequest with a canonical identifier: trimmed, NFC, and
// with a letter prefix upper-cased.
func Cell(id string) CellRequest {
	id = textutil.Normalize(id)
	return CellRequest{ID: cases.Upper(language.Und).String(id)}
}

// Event builds an EventRequest, mapping known historical spellings to their
// canonical event name.
func Event(name string) EventRequest {
	name = textutil.Normalize(name)
	if canonical, ok := canonicalEvent(name); ok {
		return EventRequest{Name: canonical}
	}
	return EventRequest{Name: name}
}

// Classify decides the request shape for a raw key. Audio extensions are
// ignored, decorated cell forms ("cell-44", "Ячейка 44") collapse to the bare
// cell, and known event synonyms collapse to their canonical event. It
// reports false for blank input.
func Classify(raw string) (Request, bool) {
	key := stripAudioExtension(textutil.Normalize(raw))
	if key == "" {
		return nil, false
	}
	if m := bareCellPattern.FindStringSubmatch(key); m != nil {
		return Cell(m[1]), true
	}
	if m := letterCellPattern.FindStringSubmatch(key); m != nil {
		return Cell(m[1] + m[2]), true
	}
	if m := prefixedCellPattern.FindStringSubmatch(key); m != nil {
		return Cell(m[1]), true
	}
	return Event(key), true
}

// Canonical returns the canonical key for raw, or raw itself when blank.
func Canonical(raw string) string {
	req, ok := Classify(raw)
	if !ok {
		return raw
	}
	return req.Key()
}

// IsCellKey reports whether raw classifies as a cell.
func IsCellKey(raw string) bool {
	req, ok := Classify(raw)
	return ok && req.Kind() == KindCell
}

func stripAudioExtension(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if _, ok := audioExtensions[ext]; ok {
		return strings.TrimSpace(key[:len(key)-len(ext)])
	}
	return key
}
