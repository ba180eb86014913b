package audiocodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// Ref is an encoded reference to audio bytes: either a durable data URL or a
// session-local handle issued by a Registry.
type Ref string

const (
	dataPrefix      = "data:"
	ephemeralPrefix = "blob:"
	defaultMIME     = "application/octet-stream"
)

// ErrMalformedRef is returned when a reference cannot be decoded.
var ErrMalformedRef = errors.New("audiocodec: malformed reference")

// Source is a playable view of a reference.
type Source struct {
	MIME string
	Data []byte
}

var extensionMIME = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".wave": "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// IsDurable reports whether ref embeds its bytes and survives a restart.
func IsDurable(ref Ref) bool {
	return strings.HasPrefix(string(ref), dataPrefix)
}

// IsEphemeral reports whether ref is a session-local handle.
func IsEphemeral(ref Ref) bool {
	return strings.HasPrefix(string(ref), ephemeralPrefix)
}

// Encode embeds data in a base64 data URL. It never inspects whether data is
// valid audio; that is discovered at playback.
func Encode(data []byte, filename string) Ref {
	mime := DetectMIME(data, filename)
	var b strings.Builder
	b.Grow(len(dataPrefix) + len(mime) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(dataPrefix)
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return Ref(b.String())
}

// EncodeReader reads r fully and encodes it. A read failure is the only error.
func EncodeReader(r io.Reader, filename string) (Ref, int64, error) {
	if r == nil {
		return "", 0, errors.New("audiocodec: nil reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", filename, err)
	}
	return Encode(data, filename), int64(len(data)), nil
}

// Decode parses a data URL into its MIME type and bytes.
func Decode(ref Ref) (Source, error) {
	raw := string(ref)
	if !strings.HasPrefix(raw, dataPrefix) {
		return Source{}, fmt.Errorf("%w: not a data URL", ErrMalformedRef)
	}
	header, payload, ok := strings.Cut(raw[len(dataPrefix):], ",")
	if !ok {
		return Source{}, fmt.Errorf("%w: missing payload separator", ErrMalformedRef)
	}

	params := strings.Split(header, ";")
	mime := strings.TrimSpace(params[0])
	if mime == "" {
		mime = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some producers strip padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return Source{}, fmt.Errorf("%w: %v", ErrMalformedRef, err)
			}
		}
		return Source{MIME: mime, Data: data}, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrMalformedRef, err)
	}
	return Source{MIME: mime, Data: []byte(unescaped)}, nil
}

// MIMEOf returns the MIME marker of a data URL without decoding the payload.
func MIMEOf(ref Ref) string {
	raw := string(ref)
	if !strings.HasPrefix(raw, dataPrefix) {
		return ""
	}
	header, _, _ := strings.Cut(raw[len(dataPrefix):], ",")
	mime, _, _ := strings.Cut(header, ";")
	return mime
}

// DetectMIME picks a MIME type from the file extension, falling back to the
// leading bytes.
func DetectMIME(data []byte, filename string) string {
	if mime, ok := extensionMIME[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	switch {
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "audio/mpeg"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "audio/wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "audio/ogg"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "audio/flac"
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "audio/") {
		return sniffed
	}
	return defaultMIME
}

// Extension returns the conventional file extension for mime, or "".
func Extension(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/mp4":
		return ".m4a"
	case "audio/aac":
		return ".aac"
	case "audio/webm":
		return ".webm"
	case "audio/opus":
		return ".opus"
	}
	return ""
}
