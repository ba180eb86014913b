package assetstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/keyspace"
)

// Kind tags what an asset announces.
type Kind string

const (
	KindCell        Kind = "cell"
	KindSystemEvent Kind = "event"
)

// KindOf maps a request shape to an asset kind.
func KindOf(req keyspace.Request) Kind {
	if req != nil && req.Kind() == keyspace.KindCell {
		return KindCell
	}
	return KindSystemEvent
}

// Asset is one stored audio clip plus its metadata.
type Asset struct {
	Key         string
	Payload     audiocodec.Ref
	DisplayName string
	SizeBytes   int64
	CreatedAt   time.Time
	Kind        Kind
}

// Durable reports whether the payload survives a restart.
func (a Asset) Durable() bool {
	return audiocodec.IsDurable(a.Payload)
}

// Record is the persisted form of an asset under one alias.
type Record struct {
	DataURL   audiocodec.Ref `json:"dataUrl"`
	Name      string         `json:"name"`
	Size      int64          `json:"size"`
	CreatedAt Timestamp      `json:"createdAt"`
	Kind      Kind           `json:"kind,omitempty"`
	// Key is the canonical key the record was written for. Older data
	// lacks it; the alias is classified instead.
	Key string `json:"key,omitempty"`
}

func recordOf(a Asset) Record {
	return Record{
		DataURL:   a.Payload,
		Name:      a.DisplayName,
		Size:      a.SizeBytes,
		CreatedAt: Timestamp{a.CreatedAt},
		Kind:      a.Kind,
		Key:       a.Key,
	}
}

// Asset rebuilds the asset a record was stored from. alias is the key the
// record was found under.
func (r Record) Asset(alias string) Asset {
	key := r.Key
	req, ok := keyspace.Classify(alias)
	if key == "" {
		key = alias
		if ok {
			key = req.Key()
		}
	}
	kind := r.Kind
	if kind == "" {
		kind = KindOf(req)
	}
	return Asset{
		Key:         key,
		Payload:     r.DataURL,
		DisplayName: r.Name,
		SizeBytes:   r.Size,
		CreatedAt:   r.CreatedAt.Time,
		Kind:        kind,
	}
}

// Timestamp reads RFC 3339 strings or millisecond epochs and writes RFC 3339.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.Time = parseTimestamp(s)
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC()
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// Collection maps alias keys to records. It is the value of one namespace.
type Collection map[string]Record

// Clone returns a shallow copy.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	return maps.Clone(c)
}

// Keys returns the aliases in sorted order.
func (c Collection) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// assetID identifies the asset a record belongs to: its canonical key, or
// its payload for older records written without one.
func assetID(rec Record) string {
	if rec.Key != "" {
		return "key:" + rec.Key
	}
	return "payload:" + string(rec.DataURL)
}

func (c Collection) references(ref audiocodec.Ref) bool {
	for _, r := range c {
		if r.DataURL == ref {
			return true
		}
	}
	return false
}

// Durable returns only the records with embedded payloads.
func (c Collection) Durable() Collection {
	out := make(Collection, len(c))
	for k, r := range c {
		if audiocodec.IsDurable(r.DataURL) {
			out[k] = r
		}
	}
	return out
}

// Ephemeral returns only the records holding session handles.
func (c Collection) Ephemeral() Collection {
	out := make(Collection, len(c))
	for k, r := range c {
		if audiocodec.IsEphemeral(r.DataURL) {
			out[k] = r
		}
	}
	return out
}

// Marshal serializes the collection as a JSON object with sorted keys.
func (c Collection) Marshal() ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	return json.Marshal(map[string]Record(c))
}

// DecodeCollection parses a namespace value. Values may be full records or
// bare data URL strings as written by older versions; entries that are
// neither are skipped and counted.
func DecodeCollection(data []byte) (Collection, int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode collection: %w", err)
	}
	out := make(Collection, len(raw))
	skipped := 0
	for key, value := range raw {
		rec, ok := decodeRecord(value)
		if !ok {
			skipped++
			continue
		}
		out[key] = rec
	}
	return out, skipped, nil
}

func decodeRecord(value json.RawMessage) (Record, bool) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return Record{}, false
	}
	switch value[0] {
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil || !isPayload(s) {
			return Record{}, false
		}
		return Record{DataURL: audiocodec.Ref(s)}, true
	case '{':
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil || !isPayload(string(rec.DataURL)) {
			return Record{}, false
		}
		return rec, true
	default:
		return Record{}, false
	}
}

// RecordFromValue parses a single stored asset value: a record object or a
// bare data URL string.
func RecordFromValue(value json.RawMessage) (Record, bool) {
	return decodeRecord(value)
}

func isPayload(s string) bool {
	ref := audiocodec.Ref(s)
	return audiocodec.IsDurable(ref) || audiocodec.IsEphemeral(ref)
}

// better reports whether candidate should replace current: an embedded
// payload beats a session handle, then the newer record wins.
func better(candidate, current Record) bool {
	cd, kd := audiocodec.IsDurable(candidate.DataURL), audiocodec.IsDurable(current.DataURL)
	if cd != kd {
		return cd
	}
	return candidate.CreatedAt.After(current.CreatedAt.Time)
}
