package config

// Storage backend identifiers.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Playback sink identifiers.
const (
	SinkDrain   = "drain"
	SinkFile    = "file"
	SinkCommand = "command"
)

const (
	defaultDataDir          = "~/.local/share/pvzvoice"
	defaultLogDir           = "~/.local/share/pvzvoice/logs"
	defaultStorageBackend   = BackendFile
	defaultStorageSubdir    = "namespaces"
	defaultSQLiteName       = "pvzvoice.db"
	defaultQuotaBytes       = 10 * 1024 * 1024
	defaultMinFreeBytes     = 64 * 1024 * 1024
	defaultEvictionAttempts = 5
	defaultPrimary          = "wb-audio-files"
	defaultEmergencySuffix  = "-emergency"
	defaultRateKey          = "wb-pvz-audio-speed"
	defaultVariantKey       = "wb-voice-assistant-config"
	defaultMigrationKey     = "pvzvoice-migration-version"
	defaultDeviceKey        = "wb-pvz-cloud-device-id"
	defaultPlaybackRate     = 1.0
	defaultPlaybackVolume   = 0.8
	defaultVariant          = "v1"
	defaultSink             = SinkDrain
	defaultRedisAddr        = "127.0.0.1:6379"
	defaultRedisPrefix      = "pvzvoice"
	defaultCloudBucket      = "pvz-voice"
	defaultCloudRegion      = "us-east-1"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

func defaultBackups() []string {
	return []string{
		"wb-pvz-cell-audio-settings-permanent",
		"wb-pvz-cell-audio-settings-backup",
		"wb-pvz-cell-audio-settings-cement",
		"wb-pvz-cell-audio-settings-STEEL-PROTECTION",
		"wb-pvz-EMERGENCY-audio-backup",
		"wb-pvz-NEVER-LOSE-CELLS-BACKUP",
	}
}

func defaultLegacy() []string {
	return []string{
		"wb-audio-files-backup",
		"wb-audio-files-cells-backup",
		"customAudioFiles",
		"audioFiles",
		"cellAudios",
		"wb-audio-files-unified",
		"wb-unified-audio-system",
		"SIMPLE_CELL_AUDIO_SYSTEM",
		"wb-pvz-individual-cell-audios",
		"wb-new-voice-sounds",
		"wb-pvz-variant-variant1-audio-base64",
		"wb-pvz-variant-variant2-audio-base64",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	backups := defaultBackups()
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Backend:          defaultStorageBackend,
			QuotaBytes:       defaultQuotaBytes,
			MinFreeBytes:     defaultMinFreeBytes,
			EvictionAttempts: defaultEvictionAttempts,
		},
		Namespaces: Namespaces{
			Primary:           defaultPrimary,
			Backups:           backups,
			ReplicationFactor: 1 + len(backups),
			EmergencySuffix:   defaultEmergencySuffix,
			Legacy:            defaultLegacy(),
			RateKey:           defaultRateKey,
			VariantKey:        defaultVariantKey,
			MigrationKey:      defaultMigrationKey,
			DeviceKey:         defaultDeviceKey,
		},
		Playback: Playback{
			Rate:    defaultPlaybackRate,
			Volume:  defaultPlaybackVolume,
			Variant: defaultVariant,
			Sink:    defaultSink,
			Command: []string{"aplay", "-q"},
		},
		Resolver: Resolver{
			TokenFuzzy:   true,
			KeywordFuzzy: true,
		},
		Redis: Redis{
			Addr:   defaultRedisAddr,
			Prefix: defaultRedisPrefix,
		},
		Cloud: Cloud{
			Bucket: defaultCloudBucket,
			Region: defaultCloudRegion,
			UseSSL: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
