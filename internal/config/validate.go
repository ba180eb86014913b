package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNamespaces(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateCloud(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		return errors.New("storage.quota_bytes must be zero (unlimited) or positive")
	}
	if c.Storage.MinFreeBytes < 0 {
		return errors.New("storage.min_free_bytes must not be negative")
	}
	if c.Storage.EvictionAttempts < 1 {
		return errors.New("storage.eviction_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateNamespaces() error {
	rf := c.Namespaces.ReplicationFactor
	if rf < 1 {
		return errors.New("namespaces.replication_factor must be at least 1")
	}
	if rf > 1+len(c.Namespaces.Backups) {
		return fmt.Errorf("namespaces.replication_factor %d exceeds primary plus %d backups", rf, len(c.Namespaces.Backups))
	}
	if strings.HasPrefix(c.Namespaces.EmergencySuffix, " ") {
		return errors.New("namespaces.emergency_suffix must not start with whitespace")
	}
	for _, legacy := range c.Namespaces.Legacy {
		for _, backup := range c.Namespaces.Backups {
			if legacy == backup {
				return fmt.Errorf("namespace %q cannot be both a backup and a legacy source", legacy)
			}
		}
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.Rate <= 0 || c.Playback.Rate > 4 {
		return errors.New("playback.rate must be in (0, 4]")
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		return errors.New("playback.volume must be between 0 and 1")
	}
	switch c.Playback.Variant {
	case "v1", "v2":
	default:
		return fmt.Errorf("playback.variant: unsupported value %q (want v1 or v2)", c.Playback.Variant)
	}
	switch c.Playback.Sink {
	case SinkDrain:
	case SinkFile:
		if c.Playback.OutputPath == "" {
			return errors.New("playback.output_path must be set when playback.sink is \"file\"")
		}
	case SinkCommand:
		if len(c.Playback.Command) == 0 || strings.TrimSpace(c.Playback.Command[0]) == "" {
			return errors.New("playback.command must be set when playback.sink is \"command\"")
		}
	default:
		return fmt.Errorf("playback.sink: unsupported value %q", c.Playback.Sink)
	}
	return nil
}

func (c *Config) validateCloud() error {
	if !c.Cloud.Enabled {
		return nil
	}
	if c.Cloud.Endpoint == "" {
		return errors.New("cloud.endpoint must be set when cloud sync is enabled")
	}
	if c.Cloud.AccessKey == "" || c.Cloud.SecretKey == "" {
		return errors.New("cloud credentials are required. Set PVZVOICE_CLOUD_ACCESS_KEY and PVZVOICE_CLOUD_SECRET_KEY or edit the [cloud] section")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
