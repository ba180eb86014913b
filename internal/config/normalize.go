package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeNamespaces()
	if err := c.normalizePlayback(); err != nil {
		return err
	}
	c.normalizeRedis()
	c.normalizeCloud()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	var err error
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = filepath.Join(c.Paths.DataDir, defaultStorageSubdir)
	}
	if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	if strings.TrimSpace(c.Storage.SQLitePath) == "" {
		c.Storage.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteName)
	}
	if c.Storage.SQLitePath, err = expandPath(c.Storage.SQLitePath); err != nil {
		return fmt.Errorf("storage.sqlite_path: %w", err)
	}
	if c.Storage.EvictionAttempts == 0 {
		c.Storage.EvictionAttempts = defaultEvictionAttempts
	}
	return nil
}

func (c *Config) normalizeNamespaces() {
	c.Namespaces.Primary = strings.TrimSpace(c.Namespaces.Primary)
	if c.Namespaces.Primary == "" {
		c.Namespaces.Primary = defaultPrimary
	}
	c.Namespaces.Backups = dedupeNames(c.Namespaces.Backups, c.Namespaces.Primary)
	c.Namespaces.Legacy = dedupeNames(c.Namespaces.Legacy, c.Namespaces.Primary)
	if c.Namespaces.ReplicationFactor == 0 {
		c.Namespaces.ReplicationFactor = 1 + len(c.Namespaces.Backups)
	}
	if c.Namespaces.EmergencySuffix == "" {
		c.Namespaces.EmergencySuffix = defaultEmergencySuffix
	}
	if strings.TrimSpace(c.Namespaces.RateKey) == "" {
		c.Namespaces.RateKey = defaultRateKey
	}
	if strings.TrimSpace(c.Namespaces.VariantKey) == "" {
		c.Namespaces.VariantKey = defaultVariantKey
	}
	if strings.TrimSpace(c.Namespaces.MigrationKey) == "" {
		c.Namespaces.MigrationKey = defaultMigrationKey
	}
	if strings.TrimSpace(c.Namespaces.DeviceKey) == "" {
		c.Namespaces.DeviceKey = defaultDeviceKey
	}
}

func (c *Config) normalizePlayback() error {
	c.Playback.Variant = strings.ToLower(strings.TrimSpace(c.Playback.Variant))
	if c.Playback.Variant == "" {
		c.Playback.Variant = defaultVariant
	}
	c.Playback.Sink = strings.ToLower(strings.TrimSpace(c.Playback.Sink))
	if c.Playback.Sink == "" {
		c.Playback.Sink = defaultSink
	}
	if c.Playback.Rate == 0 {
		c.Playback.Rate = defaultPlaybackRate
	}
	if strings.TrimSpace(c.Playback.OutputPath) != "" {
		var err error
		if c.Playback.OutputPath, err = expandPath(c.Playback.OutputPath); err != nil {
			return fmt.Errorf("playback.output_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeRedis() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Redis.Password == "" {
		if value, ok := os.LookupEnv("PVZVOICE_REDIS_PASSWORD"); ok {
			c.Redis.Password = strings.TrimSpace(value)
		}
	}
	c.Redis.Prefix = strings.TrimSpace(c.Redis.Prefix)
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaultRedisPrefix
	}
}

func (c *Config) normalizeCloud() {
	c.Cloud.Endpoint = strings.TrimSpace(c.Cloud.Endpoint)
	if c.Cloud.AccessKey == "" {
		if value, ok := os.LookupEnv("PVZVOICE_CLOUD_ACCESS_KEY"); ok {
			c.Cloud.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Cloud.SecretKey == "" {
		if value, ok := os.LookupEnv("PVZVOICE_CLOUD_SECRET_KEY"); ok {
			c.Cloud.SecretKey = strings.TrimSpace(value)
		}
	}
	c.Cloud.Bucket = strings.TrimSpace(c.Cloud.Bucket)
	if c.Cloud.Bucket == "" {
		c.Cloud.Bucket = defaultCloudBucket
	}
	c.Cloud.Region = strings.TrimSpace(c.Cloud.Region)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// dedupeNames trims names, drops blanks and duplicates, and removes reserved.
func dedupeNames(names []string, reserved string) []string {
	seen := map[string]struct{}{reserved: {}}
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
