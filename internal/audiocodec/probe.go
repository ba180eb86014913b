package audiocodec

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

// ErrUnsupportedContainer is returned by Probe for formats it cannot inspect.
var ErrUnsupportedContainer = errors.New("audiocodec: container not supported for probing")

// Info summarizes an audio container header.
type Info struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	BitDepth   int
}

// Probe reads container metadata. Only WAV headers are inspected; other
// formats return ErrUnsupportedContainer and are validated at playback.
func Probe(src Source) (Info, error) {
	switch src.MIME {
	case "audio/wav", "audio/wave", "audio/x-wav":
	default:
		return Info{}, ErrUnsupportedContainer
	}

	dec := wav.NewDecoder(bytes.NewReader(src.Data))
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("probe wav: invalid header")
	}
	duration, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("probe wav duration: %w", err)
	}
	return Info{
		Duration:   duration,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}
