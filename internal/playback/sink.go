package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"pvzvoice/internal/textutil"
)

const drainChunk = 512

// Clip is a decoded, rate- and volume-adjusted stream ready for output.
type Clip struct {
	Name     string
	Streamer beep.Streamer
	Format   beep.Format
}

// Sink consumes a clip to completion.
type Sink interface {
	Name() string
	Consume(ctx context.Context, clip Clip) error
}

// DrainSink pulls every sample and discards it. It stands in for a speaker
// on headless hosts and in tests.
type DrainSink struct {
	mu      sync.Mutex
	plays   int
	samples int
}

func (*DrainSink) Name() string { return "drain" }

func (d *DrainSink) Consume(ctx context.Context, clip Clip) error {
	n, err := drain(ctx, clip.Streamer)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.plays++
	d.samples += n
	d.mu.Unlock()
	return nil
}

// Plays returns the number of clips consumed.
func (d *DrainSink) Plays() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays
}

// Samples returns the total number of frames consumed.
func (d *DrainSink) Samples() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samples
}

func drain(ctx context.Context, s beep.Streamer) (int, error) {
	buf := make([][2]float64, drainChunk)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return total, fmt.Errorf("stream: %w", err)
	}
	if total == 0 {
		return 0, errors.New("stream produced no samples")
	}
	return total, nil
}

// FileSink renders each clip to a WAV file in Dir.
type FileSink struct {
	Dir string

	mu   sync.Mutex
	last string
}

func (*FileSink) Name() string { return "file" }

func (f *FileSink) Consume(ctx context.Context, clip Clip) error {
	path, err := renderWAV(ctx, f.Dir, clip)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.last = path
	f.mu.Unlock()
	return nil
}

// Last returns the path of the most recent rendering.
func (f *FileSink) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// CommandSink renders a clip to a temporary WAV and runs an external player
// with the file path appended to Command.
type CommandSink struct {
	Command []string
	Dir     string
}

func (*CommandSink) Name() string { return "command" }

func (c *CommandSink) Consume(ctx context.Context, clip Clip) error {
	if len(c.Command) == 0 {
		return errors.New("command sink has no command")
	}
	dir := c.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path, err := renderWAV(ctx, dir, clip)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	args := append(append([]string(nil), c.Command[1:]...), path)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.Command[0], err, truncateOutput(out))
	}
	return nil
}

func renderWAV(ctx context.Context, dir string, clip Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	name := textutil.SanitizeFileName(clip.Name)
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.wav", name, time.Now().UnixNano()))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := wav.Encode(out, clip.Streamer, clip.Format); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("render wav: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := clip.Streamer.Err(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("stream: %w", err)
	}
	return path, nil
}

func truncateOutput(out []byte) string {
	const limit = 200
	if len(out) > limit {
		return string(out[:limit]) + "..."
	}
	return string(out)
}
