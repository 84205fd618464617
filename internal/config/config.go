// Package config provides configuration management for transcodarr using
// Viper. It supports configuration from files, environment variables, and
// defaults.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultResourcePollEvery = 5 * time.Second
	defaultCPUThreshold      = 90.0
	defaultMemThreshold      = 90.0
	defaultScanBatchSize     = 500
	defaultWatcherDebounce   = 2 * time.Second
	defaultSchedulerTick     = 60 * time.Second
	defaultMaxConcurrentJobs = 2
	defaultNiceLevel         = 10
	defaultDiskHeadroomPct   = 10.0
	defaultSyncInterval      = 24 * time.Hour
	defaultSyncHTTPTimeout   = 30 * time.Second
	defaultDiagnosticsPort   = 9090
)

// Config holds all configuration for the application.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Resources    ResourceConfig     `mapstructure:"resources"`
	Scan         ScanConfig         `mapstructure:"scan"`
	Watcher      WatcherConfig      `mapstructure:"watcher"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Encoder      EncoderConfig      `mapstructure:"encoder"`
	Upscale      UpscaleConfig      `mapstructure:"upscale"`
	ExternalSync ExternalSyncConfig `mapstructure:"external_sync"`
	Diagnostics  DiagnosticsConfig  `mapstructure:"diagnostics"`
	FFmpeg       FFmpegConfig       `mapstructure:"ffmpeg"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ResourceConfig holds Resource Monitor thresholds and poll cadence.
type ResourceConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	CPUThresholdPct    float64       `mapstructure:"cpu_threshold_pct"`
	MemThresholdPct    float64       `mapstructure:"mem_threshold_pct"`
	GPUThresholdPct    float64       `mapstructure:"gpu_threshold_pct"`
	NvidiaSMIPath      string        `mapstructure:"nvidia_smi_path"`
	EnableGPUSampling  bool          `mapstructure:"enable_gpu_sampling"`
}

// ScanConfig holds Scan Pipeline behaviour.
type ScanConfig struct {
	BatchSize         int      `mapstructure:"batch_size"`
	DefaultExtensions []string `mapstructure:"default_extensions"`
}

// WatcherConfig holds Folder Watcher behaviour.
type WatcherConfig struct {
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	PollFallback     time.Duration `mapstructure:"poll_fallback"`
}

// SchedulerConfig holds scheduler tick and catch-up behaviour.
type SchedulerConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	CatchupMissedRuns  bool          `mapstructure:"catchup_missed_runs"`
	HostRestHoursStart string        `mapstructure:"host_rest_hours_start"`
	HostRestHoursEnd   string        `mapstructure:"host_rest_hours_end"`
}

// EncoderConfig holds Encoder Supervisor/Pool behaviour.
type EncoderConfig struct {
	MaxConcurrentJobs int    `mapstructure:"max_concurrent_jobs"`
	NiceLevel         int    `mapstructure:"nice_level"`
	ProgressPollEvery Duration `mapstructure:"progress_poll_every"`
	PauseMechanism    string `mapstructure:"pause_mechanism"` // signal, affinity
}

// UpscaleConfig holds Upscale Pre-stage behaviour.
type UpscaleConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	DiskHeadroomPercent float64 `mapstructure:"disk_headroom_percent"`
}

// ExternalSyncConfig holds External Sync behaviour.
type ExternalSyncConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	SyncInterval      time.Duration `mapstructure:"sync_interval"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	EncryptionKeyEnv  string        `mapstructure:"encryption_key_env"`
}

// DiagnosticsConfig holds the narrow diagnostics HTTP endpoint.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath      string   `mapstructure:"binary_path"`      // Path to ffmpeg binary (empty = auto-detect)
	ProbePath       string   `mapstructure:"probe_path"`       // Path to ffprobe binary (empty = auto-detect)
	HWAccelPriority []string `mapstructure:"hwaccel_priority"` // Priority order: vaapi, nvenc, qsv, amf
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TRANSCODARR_ and use underscores
// for nesting. Example: TRANSCODARR_ENCODER_MAX_CONCURRENT_JOBS=2.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/transcodarr")
		v.AddConfigPath("$HOME/.transcodarr")
	}

	v.SetEnvPrefix("TRANSCODARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "transcodarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("resources.poll_interval", defaultResourcePollEvery)
	v.SetDefault("resources.cpu_threshold_pct", defaultCPUThreshold)
	v.SetDefault("resources.mem_threshold_pct", defaultMemThreshold)
	v.SetDefault("resources.gpu_threshold_pct", defaultCPUThreshold)
	v.SetDefault("resources.nvidia_smi_path", "nvidia-smi")
	v.SetDefault("resources.enable_gpu_sampling", false)

	v.SetDefault("scan.batch_size", defaultScanBatchSize)
	v.SetDefault("scan.default_extensions", []string{".mkv", ".mp4", ".avi", ".mov", ".ts", ".m2ts", ".webm"})

	v.SetDefault("watcher.debounce_interval", defaultWatcherDebounce)
	v.SetDefault("watcher.poll_fallback", 5*time.Minute)

	v.SetDefault("scheduler.tick_interval", defaultSchedulerTick)
	v.SetDefault("scheduler.catchup_missed_runs", true)
	v.SetDefault("scheduler.host_rest_hours_start", "")
	v.SetDefault("scheduler.host_rest_hours_end", "")

	v.SetDefault("encoder.max_concurrent_jobs", defaultMaxConcurrentJobs)
	v.SetDefault("encoder.nice_level", defaultNiceLevel)
	v.SetDefault("encoder.progress_poll_every", "2s")
	v.SetDefault("encoder.pause_mechanism", "signal")

	v.SetDefault("upscale.enabled", true)
	v.SetDefault("upscale.disk_headroom_percent", defaultDiskHeadroomPct)

	v.SetDefault("external_sync.enabled", false)
	v.SetDefault("external_sync.sync_interval", defaultSyncInterval)
	v.SetDefault("external_sync.http_timeout", defaultSyncHTTPTimeout)
	v.SetDefault("external_sync.encryption_key_env", "TRANSCODARR_SYNC_ENCRYPTION_KEY")

	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.host", "127.0.0.1")
	v.SetDefault("diagnostics.port", defaultDiagnosticsPort)

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.hwaccel_priority", []string{"vaapi", "nvenc", "qsv", "amf"})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Resources.CPUThresholdPct <= 0 || c.Resources.CPUThresholdPct > 100 {
		return fmt.Errorf("resources.cpu_threshold_pct must be between 0 and 100")
	}
	if c.Resources.MemThresholdPct <= 0 || c.Resources.MemThresholdPct > 100 {
		return fmt.Errorf("resources.mem_threshold_pct must be between 0 and 100")
	}

	if c.Scan.BatchSize < 1 {
		return fmt.Errorf("scan.batch_size must be at least 1")
	}

	if c.Encoder.MaxConcurrentJobs < 1 {
		return fmt.Errorf("encoder.max_concurrent_jobs must be at least 1")
	}
	validPauseMechanisms := map[string]bool{"signal": true, "affinity": true}
	if !validPauseMechanisms[c.Encoder.PauseMechanism] {
		return fmt.Errorf("encoder.pause_mechanism must be one of: signal, affinity")
	}

	const maxPort = 65535
	if c.Diagnostics.Enabled && (c.Diagnostics.Port < 1 || c.Diagnostics.Port > maxPort) {
		return fmt.Errorf("diagnostics.port must be between 1 and %d", maxPort)
	}

	if c.Scheduler.HostRestHoursStart != "" {
		if err := validateRestHour("scheduler.host_rest_hours_start", c.Scheduler.HostRestHoursStart); err != nil {
			return err
		}
	}
	if c.Scheduler.HostRestHoursEnd != "" {
		if err := validateRestHour("scheduler.host_rest_hours_end", c.Scheduler.HostRestHoursEnd); err != nil {
			return err
		}
	}

	return nil
}

// restHourParser parses the minute/hour fields of a standard 5-field cron
// expression; it's reused here purely for its range checking rather than
// any scheduling it would otherwise do, so a "HH:MM" rest-window boundary
// fails fast at config load instead of at the scheduler's first tick.
var restHourParser = cron.NewParser(cron.Minute | cron.Hour)

// validateRestHour checks that value is a well-formed "HH:MM" clock time,
// by reformulating it as the minute/hour fields of a cron expression and
// handing it to restHourParser.
func validateRestHour(field, value string) error {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, value)
	}
	if _, err := restHourParser.Parse(fmt.Sprintf("%d %d", minute, hour)); err != nil {
		return fmt.Errorf("%s is not a valid time of day: %w", field, err)
	}
	return nil
}
