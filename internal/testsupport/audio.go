package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVClip renders a mono 16-bit sine tone of the given duration and returns
// the encoded WAV bytes.
func WAVClip(t testing.TB, duration time.Duration, sampleRate int) []byte {
	t.Helper()

	if sampleRate <= 0 {
		sampleRate = 8000
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	frames := int(duration.Seconds() * float64(sampleRate))
	data := make([]int, frames)
	for i := range data {
		data[i] = int(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 8000)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return out
}
