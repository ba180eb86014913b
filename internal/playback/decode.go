package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"pvzvoice/internal/audiocodec"
)

// ErrUnsupportedFormat is returned for payloads no decoder accepts.
var ErrUnsupportedFormat = errors.New("playback: unsupported audio format")

func decode(src audiocodec.Source) (beep.StreamSeekCloser, beep.Format, error) {
	if len(src.Data) == 0 {
		return nil, beep.Format{}, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}
	// Leading bytes win over the declared type.
	mime := src.MIME
	if sniffed := audiocodec.DetectMIME(src.Data, ""); isDecodable(sniffed) {
		mime = sniffed
	}

	switch mime {
	case "audio/mpeg", "audio/mp3":
		return mp3.Decode(io.NopCloser(bytes.NewReader(src.Data)))
	case "audio/wav", "audio/wave", "audio/x-wav":
		return wav.Decode(bytes.NewReader(src.Data))
	case "audio/ogg", "audio/vorbis":
		return vorbis.Decode(io.NopCloser(bytes.NewReader(src.Data)))
	case "audio/flac", "audio/x-flac":
		return flac.Decode(bytes.NewReader(src.Data))
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
}

func isDecodable(mime string) bool {
	switch mime {
	case "audio/mpeg", "audio/mp3",
		"audio/wav", "audio/wave", "audio/x-wav",
		"audio/ogg", "audio/vorbis",
		"audio/flac", "audio/x-flac":
		return true
	default:
		return false
	}
}
