package testsupport

import (
	"path/filepath"
	"testing"

	"pvzvoice/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage defaults to the file backend under the temp dir with the free-space
// reserve disabled; playback drains to nowhere.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Dir = filepath.Join(base, "data", "namespaces")
	cfgVal.Storage.SQLitePath = filepath.Join(base, "data", "pvzvoice.db")
	cfgVal.Storage.MinFreeBytes = 0
	cfgVal.Playback.Sink = config.SinkDrain
	cfgVal.Playback.OutputPath = filepath.Join(base, "out")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackend selects the storage backend.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = name
	}
}

// WithQuota sets the total storage quota in bytes. Zero disables it.
func WithQuota(bytes int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.QuotaBytes = bytes
	}
}

// WithReplicationFactor sets how many namespaces each put writes.
func WithReplicationFactor(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Namespaces.ReplicationFactor = n
	}
}

// WithVariant sets the active voice variant.
func WithVariant(v string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Playback.Variant = v
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
