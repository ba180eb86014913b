package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage selects and sizes the key-value backend holding the namespaces.
type Storage struct {
	// Backend is one of "file", "sqlite", "redis", or "memory".
	Backend          string `toml:"backend"`
	Dir              string `toml:"dir"`
	SQLitePath       string `toml:"sqlite_path"`
	QuotaBytes       int64  `toml:"quota_bytes"`
	MinFreeBytes     int64  `toml:"min_free_bytes"`
	EvictionAttempts int    `toml:"eviction_attempts"`
}

// Namespaces declares the primary collection, its replicas, and the legacy
// layouts scanned by migration. Names are data so a deployment can rename
// them without code changes.
type Namespaces struct {
	Primary           string   `toml:"primary"`
	Backups           []string `toml:"backups"`
	ReplicationFactor int      `toml:"replication_factor"`
	EmergencySuffix   string   `toml:"emergency_suffix"`
	Legacy            []string `toml:"legacy"`
	RateKey           string   `toml:"rate_key"`
	VariantKey        string   `toml:"variant_key"`
	MigrationKey      string   `toml:"migration_key"`
	DeviceKey         string   `toml:"device_key"`
}

// Playback contains rendering defaults for the playback adapter.
type Playback struct {
	Rate    float64 `toml:"rate"`
	Volume  float64 `toml:"volume"`
	Variant string  `toml:"variant"`
	// Sink is one of "drain", "file", or "command".
	Sink       string   `toml:"sink"`
	OutputPath string   `toml:"output_path"`
	Command    []string `toml:"command"`
}

// Resolver toggles the last-resort fuzzy strategies.
type Resolver struct {
	TokenFuzzy   bool `toml:"token_fuzzy"`
	KeywordFuzzy bool `toml:"keyword_fuzzy"`
}

// Redis contains connection settings for the redis backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Cloud contains object storage settings used by cloud sync.
type Cloud struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pvzvoice.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Storage: backend selection, quota and eviction budget
//   - Namespaces: primary/backup/legacy namespace names and scalar setting keys
//   - Playback: rate, volume, voice variant and output sink
//   - Resolver: fuzzy fallback toggles
//   - Redis: redis backend connection
//   - Cloud: S3-compatible snapshot storage
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Storage    Storage    `toml:"storage"`
	Namespaces Namespaces `toml:"namespaces"`
	Playback   Playback   `toml:"playback"`
	Resolver   Resolver   `toml:"resolver"`
	Redis      Redis      `toml:"redis"`
	Cloud      Cloud      `toml:"cloud"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pvzvoice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pvzvoice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories plus the storage
// location of the selected backend.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	switch c.Storage.Backend {
	case BackendFile:
		if err := os.MkdirAll(c.Storage.Dir, 0o755); err != nil {
			return fmt.Errorf("create storage directory %q: %w", c.Storage.Dir, err)
		}
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(c.Storage.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return nil
}

// ReplicaNamespaces returns the namespaces written on every put: the primary
// followed by the first ReplicationFactor-1 backups.
func (c *Config) ReplicaNamespaces() []string {
	out := []string{c.Namespaces.Primary}
	for i := 0; i < c.Namespaces.ReplicationFactor-1 && i < len(c.Namespaces.Backups); i++ {
		out = append(out, c.Namespaces.Backups[i])
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
