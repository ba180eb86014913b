package audiocodec_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/testsupport"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("not really audio \x00\xff")
	ref := audiocodec.Encode(payload, "44.mp3")

	if !audiocodec.IsDurable(ref) {
		t.Fatalf("expected durable ref, got %q", ref)
	}
	if !strings.HasPrefix(string(ref), "data:audio/mpeg;base64,") {
		t.Fatalf("unexpected prefix: %q", ref)
	}

	src, err := audiocodec.Decode(ref)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if src.MIME != "audio/mpeg" {
		t.Fatalf("unexpected mime: %q", src.MIME)
	}
	if !bytes.Equal(src.Data, payload) {
		t.Fatalf("payload mismatch: %q", src.Data)
	}
}

func TestDetectMIMEFallsBackToMagicBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"id3", []byte("ID3\x03\x00rest"), "audio/mpeg"},
		{"riff", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "audio/wav"},
		{"ogg", []byte("OggS\x00\x02"), "audio/ogg"},
		{"unknown", []byte("hello"), "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audiocodec.DetectMIME(tt.data, "upload"); got != tt.want {
				t.Fatalf("DetectMIME = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodePercentEncodedAndUnpadded(t *testing.T) {
	src, err := audiocodec.Decode("data:audio/wav,ab%20c")
	if err != nil {
		t.Fatalf("Decode percent: %v", err)
	}
	if string(src.Data) != "ab c" {
		t.Fatalf("unexpected data %q", src.Data)
	}

	src, err = audiocodec.Decode("data:audio/mpeg;base64,YWI")
	if err != nil {
		t.Fatalf("Decode unpadded: %v", err)
	}
	if string(src.Data) != "ab" {
		t.Fatalf("unexpected data %q", src.Data)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, ref := range []audiocodec.Ref{"", "blob:x", "data:audio/mpeg;base64", "data:audio/mpeg;base64,!!!"} {
		if _, err := audiocodec.Decode(ref); !errors.Is(err, audiocodec.ErrMalformedRef) {
			t.Fatalf("Decode(%q): expected ErrMalformedRef, got %v", ref, err)
		}
	}
}

func TestEncodeReaderReportsReadFailure(t *testing.T) {
	_, _, err := audiocodec.EncodeReader(iotest.ErrReader(errors.New("disk gone")), "44.mp3")
	if err == nil || !strings.Contains(err.Error(), "disk gone") {
		t.Fatalf("expected read error, got %v", err)
	}

	ref, size, err := audiocodec.EncodeReader(strings.NewReader("abc"), "x.wav")
	if err != nil {
		t.Fatalf("EncodeReader: %v", err)
	}
	if size != 3 || audiocodec.MIMEOf(ref) != "audio/wav" {
		t.Fatalf("unexpected result size=%d mime=%q", size, audiocodec.MIMEOf(ref))
	}
}

func TestRegistryHandlesExpire(t *testing.T) {
	reg := audiocodec.NewRegistry()
	ref := reg.Register([]byte("pcm"), "audio/wav")
	if !audiocodec.IsEphemeral(ref) || audiocodec.IsDurable(ref) {
		t.Fatalf("expected ephemeral handle, got %q", ref)
	}

	src, err := reg.Source(ref)
	if err != nil || string(src.Data) != "pcm" {
		t.Fatalf("Source: %v %q", err, src.Data)
	}

	durable, err := reg.Durable(ref)
	if err != nil {
		t.Fatalf("Durable: %v", err)
	}
	if audiocodec.MIMEOf(durable) != "audio/wav" {
		t.Fatalf("expected mime preserved, got %q", audiocodec.MIMEOf(durable))
	}

	reg.RevokeAll()
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	if _, err := reg.Source(ref); !errors.Is(err, audiocodec.ErrMalformedRef) {
		t.Fatalf("expected expired handle error, got %v", err)
	}
	if _, err := audiocodec.NewRegistry().Source(ref); err == nil {
		t.Fatal("handle from another registry must not resolve")
	}
}

func TestProbeWAV(t *testing.T) {
	clip := testsupport.WAVClip(t, 500*time.Millisecond, 8000)
	info, err := audiocodec.Probe(audiocodec.Source{MIME: "audio/wav", Data: clip})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.SampleRate != 8000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Duration < 400*time.Millisecond || info.Duration > 600*time.Millisecond {
		t.Fatalf("unexpected duration: %v", info.Duration)
	}

	if _, err := audiocodec.Probe(audiocodec.Source{MIME: "audio/mpeg"}); !errors.Is(err, audiocodec.ErrUnsupportedContainer) {
		t.Fatalf("expected unsupported container, got %v", err)
	}
}
