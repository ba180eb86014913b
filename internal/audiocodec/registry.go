package audiocodec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry issues session-local handles for audio held in memory. Handles are
// only valid for the lifetime of the Registry, mirroring object URLs that die
// with the page.
type Registry struct {
	mu      sync.RWMutex
	entries map[Ref]Source
}

// NewRegistry returns an empty handle registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Ref]Source)}
}

// Register stores a copy of data and returns a fresh ephemeral handle.
func (r *Registry) Register(data []byte, mime string) Ref {
	if mime == "" {
		mime = defaultMIME
	}
	ref := Ref(ephemeralPrefix + "pvzvoice/" + uuid.NewString())
	r.mu.Lock()
	r.entries[ref] = Source{MIME: mime, Data: append([]byte(nil), data...)}
	r.mu.Unlock()
	return ref
}

// Source returns a playable view of ref. Durable refs are decoded directly;
// ephemeral refs must have been issued by this registry and not revoked.
func (r *Registry) Source(ref Ref) (Source, error) {
	switch {
	case IsDurable(ref):
		return Decode(ref)
	case IsEphemeral(ref):
		if r == nil {
			return Source{}, fmt.Errorf("%w: handle %s from another session", ErrMalformedRef, ref)
		}
		r.mu.RLock()
		src, ok := r.entries[ref]
		r.mu.RUnlock()
		if !ok {
			return Source{}, fmt.Errorf("%w: handle %s expired", ErrMalformedRef, ref)
		}
		return src, nil
	default:
		return Source{}, fmt.Errorf("%w: unknown scheme in %q", ErrMalformedRef, truncate(string(ref), 32))
	}
}

// Durable converts ref to a data URL. Ephemeral handles are re-encoded while
// they are still live.
func (r *Registry) Durable(ref Ref) (Ref, error) {
	if IsDurable(ref) {
		return ref, nil
	}
	src, err := r.Source(ref)
	if err != nil {
		return "", err
	}
	return encodeWithMIME(src.Data, src.MIME), nil
}

// Revoke invalidates a handle.
func (r *Registry) Revoke(ref Ref) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.entries, ref)
	r.mu.Unlock()
}

// RevokeAll invalidates every handle.
func (r *Registry) RevokeAll() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.entries = make(map[Ref]Source)
	r.mu.Unlock()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func encodeWithMIME(data []byte, mime string) Ref {
	ref := Encode(data, "")
	if mime == "" || mime == MIMEOf(ref) {
		return ref
	}
	_, payload, _ := strings.Cut(string(ref), ",")
	return Ref(dataPrefix + mime + ";base64," + payload)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
