package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/config"
	"pvzvoice/internal/logging"
)

const resampleQuality = 4

// Option customizes a Player.
type Option func(*Player)

// WithLogger sets the player logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "playback")
		}
	}
}

// WithRate supplies the playback rate per play, so a persisted change
// applies to the next clip.
func WithRate(rate func(ctx context.Context) float64) Option {
	return func(p *Player) {
		if rate != nil {
			p.rate = rate
		}
	}
}

// WithVolume sets the fixed output volume in [0, 1].
func WithVolume(volume float64) Option {
	return func(p *Player) {
		p.volume = math.Max(0, math.Min(1, volume))
	}
}

// Player decodes assets and streams them into a sink.
type Player struct {
	registry *audiocodec.Registry
	sink     Sink
	volume   float64
	rate     func(ctx context.Context) float64
	logger   *slog.Logger
}

// New returns a player resolving session handles through reg.
func New(reg *audiocodec.Registry, sink Sink, opts ...Option) *Player {
	p := &Player{
		registry: reg,
		sink:     sink,
		volume:   0.8,
		rate:     func(context.Context) float64 { return 1 },
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SinkFromConfig builds the sink selected by playback.sink.
func SinkFromConfig(cfg *config.Config) (Sink, error) {
	switch cfg.Playback.Sink {
	case config.SinkDrain, "":
		return &DrainSink{}, nil
	case config.SinkFile:
		return &FileSink{Dir: cfg.Playback.OutputPath}, nil
	case config.SinkCommand:
		return &CommandSink{Command: cfg.Playback.Command}, nil
	default:
		return nil, fmt.Errorf("unsupported playback sink %q", cfg.Playback.Sink)
	}
}

// Sink returns the output sink.
func (p *Player) Sink() Sink { return p.sink }

// Play decodes asset, applies the playback rate and volume, and streams it
// into the sink. Every failure, a panic inside a decoder included, is
// logged and reported as false.
func (p *Player) Play(ctx context.Context, asset assetstore.Asset) (ok bool) {
	logger := logging.WithContext(ctx, p.logger).With(
		logging.String(logging.FieldKey, asset.Key),
		logging.String("sink", p.sink.Name()),
	)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "playback panicked", "playback_panic",
				logging.Any("panic", r),
				logging.Alert("decoder_panic"),
			)
			ok = false
		}
	}()

	if err := p.play(ctx, asset); err != nil {
		logging.WarnWithContext(logger, "playback failed", "playback_failed",
			logging.String("name", asset.DisplayName),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-upload the file in a supported format (mp3, wav, ogg, flac)"),
			logging.String(logging.FieldImpact, "announcement skipped"),
		)
		return false
	}
	logger.Debug("asset played", logging.String("name", asset.DisplayName))
	return true
}

func (p *Player) play(ctx context.Context, asset assetstore.Asset) error {
	src, err := p.registry.Source(asset.Payload)
	if err != nil {
		return fmt.Errorf("open payload: %w", err)
	}
	stream, format, err := decode(src)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if rate := p.rate(ctx); rate > 0 && rate != 1 {
		s = beep.ResampleRatio(resampleQuality, rate, s)
	}
	s = &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   math.Log2(math.Max(p.volume, 1e-6)),
		Silent:   p.volume <= 0,
	}

	name := asset.Key
	if name == "" {
		name = asset.DisplayName
	}
	return p.sink.Consume(ctx, Clip{Name: name, Streamer: s, Format: format})
}
