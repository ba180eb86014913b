package assetstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"pvzvoice/internal/backend"
	"pvzvoice/internal/keyspace"
)

const defaultPlaybackRate = 1.0

// variantSetting is the persisted voice selection. "old" is v1 and "new" is
// v2, matching data written by earlier versions.
type variantSetting struct {
	CurrentAssistant string `json:"currentAssistant"`
	Timestamp        int64  `json:"timestamp"`
}

// PlaybackRate returns the persisted playback rate, or fallback when none
// is stored or the value is unusable.
func (s *Store) PlaybackRate(ctx context.Context, fallback float64) float64 {
	if fallback <= 0 {
		fallback = defaultPlaybackRate
	}
	data, err := s.backend.Get(ctx, s.layout.RateKey)
	if err != nil {
		return fallback
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil || rate <= 0 || rate > 4 {
		return fallback
	}
	return rate
}

// SetPlaybackRate persists the playback rate. Valid rates are in (0, 4].
func (s *Store) SetPlaybackRate(ctx context.Context, rate float64) error {
	if rate <= 0 || rate > 4 {
		return fmt.Errorf("playback rate %.2f out of range (0, 4]", rate)
	}
	value := strconv.FormatFloat(rate, 'f', -1, 64)
	if err := s.backend.Set(ctx, s.layout.RateKey, []byte(value)); err != nil {
		return fmt.Errorf("store playback rate: %w", err)
	}
	return nil
}

// Variant returns the active voice variant.
func (s *Store) Variant() keyspace.Variant {
	return s.Generator().Variant
}

// SetVariant persists v and switches the alias generator to it.
func (s *Store) SetVariant(ctx context.Context, v keyspace.Variant) error {
	assistant := "old"
	switch v {
	case keyspace.VariantV1:
	case keyspace.VariantV2:
		assistant = "new"
	default:
		return fmt.Errorf("unknown voice variant %q", v)
	}
	data, err := json.Marshal(variantSetting{CurrentAssistant: assistant, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, s.layout.VariantKey, data); err != nil {
		return fmt.Errorf("store voice variant: %w", err)
	}
	s.mu.Lock()
	s.gen = keyspace.NewGenerator(v)
	s.mu.Unlock()
	return nil
}

func (s *Store) loadVariant(ctx context.Context) (keyspace.Variant, error) {
	data, err := s.backend.Get(ctx, s.layout.VariantKey)
	if err != nil {
		return "", err
	}
	var setting variantSetting
	if err := json.Unmarshal(data, &setting); err != nil {
		return keyspace.ParseVariant(string(data))
	}
	switch setting.CurrentAssistant {
	case "new", "v2":
		return keyspace.VariantV2, nil
	case "", "old", "v1":
		return keyspace.VariantV1, nil
	default:
		return "", fmt.Errorf("unknown assistant %q", setting.CurrentAssistant)
	}
}

// MigrationMarker returns the recorded migration version, if any.
func (s *Store) MigrationMarker(ctx context.Context) (string, bool, error) {
	data, err := s.backend.Get(ctx, s.layout.MigrationKey)
	if errors.Is(err, backend.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read migration marker: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// SetMigrationMarker records that migration version has run.
func (s *Store) SetMigrationMarker(ctx context.Context, version string) error {
	if err := s.backend.Set(ctx, s.layout.MigrationKey, []byte(version)); err != nil {
		return fmt.Errorf("store migration marker: %w", err)
	}
	return nil
}

// DeviceID returns the persisted device identifier, creating one on first
// use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	data, err := s.backend.Get(ctx, s.layout.DeviceKey)
	if err == nil && strings.TrimSpace(string(data)) != "" {
		return strings.TrimSpace(string(data)), nil
	}
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return "", fmt.Errorf("read device id: %w", err)
	}
	id := "device_" + uuid.NewString()
	if err := s.backend.Set(ctx, s.layout.DeviceKey, []byte(id)); err != nil {
		return "", fmt.Errorf("store device id: %w", err)
	}
	return id, nil
}

// ReadNamespace returns the raw value of any namespace, for migration and
// diagnostics.
func (s *Store) ReadNamespace(ctx context.Context, name string) ([]byte, error) {
	return s.backend.Get(ctx, name)
}
