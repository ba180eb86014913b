package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/audiocodec"
	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/logging"
)

// File is one uploaded audio file.
type File struct {
	Name   string
	Reader io.Reader
}

// FileFromPath opens path for upload. The caller closes the returned file.
func FileFromPath(path string) (File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Reader: f}, f, nil
}

// BatchFailure records one file a batch could not store.
type BatchFailure struct {
	Name string
	Err  error
}

// BatchReport summarizes a bulk upload.
type BatchReport struct {
	// Saved maps each stored file name to its canonical key.
	Saved map[string]string
	// Degraded lists files kept for this session only.
	Degraded []string
	Failed   []BatchFailure
}

// SaveAsset stores file under key, inferring the key from the file name
// when key is blank. It reports whether the recording was stored durably
// in at least one namespace.
func (s *Service) SaveAsset(ctx context.Context, key string, file File) bool {
	_, err := s.Save(ctx, key, file)
	return err == nil
}

// Save is SaveAsset with the full result. A recording kept only for this
// session returns the result together with assetstore.ErrDegraded.
func (s *Service) Save(ctx context.Context, key string, file File) (assetstore.PutResult, error) {
	req, err := requestFor(key, file.Name)
	if err != nil {
		return assetstore.PutResult{}, err
	}
	if file.Reader == nil {
		return assetstore.PutResult{}, fmt.Errorf("%s: %w", file.Name, assetstore.ErrEmptyPayload)
	}

	logger := logging.WithContext(ctx, s.logger)
	payload, size, err := audiocodec.EncodeReader(file.Reader, file.Name)
	if err != nil {
		logging.WarnWithContext(logger, "upload unreadable", "upload_failed",
			logging.String(logging.FieldKey, req.Key()),
			logging.String("name", file.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording not saved"),
		)
		return assetstore.PutResult{}, fmt.Errorf("encode %s: %w", file.Name, err)
	}
	if size == 0 {
		return assetstore.PutResult{}, fmt.Errorf("%s: %w", file.Name, assetstore.ErrEmptyPayload)
	}
	probeUpload(logger, req, file.Name, payload)

	result, err := s.store.Put(ctx, req, assetstore.Asset{
		Key:         req.Key(),
		Payload:     payload,
		DisplayName: file.Name,
		SizeBytes:   size,
		Kind:        assetstore.KindOf(req),
	})
	if err != nil {
		return result, fmt.Errorf("store %s: %w", req.Key(), err)
	}
	logger.Debug("recording saved",
		logging.String(logging.FieldKey, req.Key()),
		logging.String("name", file.Name),
		logging.Int64("size_bytes", size),
		logging.Strings("aliases", result.Aliases),
	)
	return result, nil
}

// SaveBatch stores files one at a time, inferring every key from its file
// name. A failing file is logged and skipped.
func (s *Service) SaveBatch(ctx context.Context, files []File) BatchReport {
	report := BatchReport{Saved: map[string]string{}}
	for _, file := range files {
		if ctx.Err() != nil {
			report.Failed = append(report.Failed, BatchFailure{Name: file.Name, Err: ctx.Err()})
			continue
		}
		result, err := s.Save(ctx, "", file)
		switch {
		case err == nil:
			report.Saved[file.Name] = result.Key
		case errors.Is(err, assetstore.ErrDegraded):
			report.Saved[file.Name] = result.Key
			report.Degraded = append(report.Degraded, file.Name)
		default:
			report.Failed = append(report.Failed, BatchFailure{Name: file.Name, Err: err})
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "batch file skipped", "upload_failed",
				logging.String("name", file.Name),
				logging.Error(err),
			)
		}
	}
	return report
}

// SaveDir uploads every audio file directly inside dir.
func (s *Service) SaveDir(ctx context.Context, dir string) (BatchReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchReport{}, fmt.Errorf("read %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isAudioName(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	report := BatchReport{Saved: map[string]string{}}
	for _, path := range paths {
		file, closer, err := FileFromPath(path)
		if err != nil {
			report.Failed = append(report.Failed, BatchFailure{Name: filepath.Base(path), Err: err})
			continue
		}
		one := s.SaveBatch(ctx, []File{file})
		_ = closer.Close()
		for name, key := range one.Saved {
			report.Saved[name] = key
		}
		report.Degraded = append(report.Degraded, one.Degraded...)
		report.Failed = append(report.Failed, one.Failed...)
	}
	return report, nil
}

func probeUpload(logger *slog.Logger, req keyspace.Request, name string, payload audiocodec.Ref) {
	src, err := audiocodec.Decode(payload)
	if err != nil {
		return
	}
	info, err := audiocodec.Probe(src)
	if err != nil {
		return
	}
	logger.Debug("upload probed",
		logging.String(logging.FieldKey, req.Key()),
		logging.String("name", name),
		logging.Duration("duration", info.Duration),
		logging.Int("sample_rate", info.SampleRate),
	)
}

func requestFor(key, name string) (keyspace.Request, error) {
	if strings.TrimSpace(key) != "" {
		req, ok := keyspace.Classify(key)
		if !ok {
			return nil, fmt.Errorf("invalid key %q", key)
		}
		return req, nil
	}
	req, ok := keyspace.InferFromFilename(name)
	if !ok {
		return nil, fmt.Errorf("cannot infer a key from file name %q", name)
	}
	return req, nil
}

func isAudioName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".wav", ".ogg", ".m4a", ".webm", ".aac", ".flac", ".opus":
		return true
	default:
		return false
	}
}
