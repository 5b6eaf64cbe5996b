// Package config loads transcoder settings from file, environment and
// defaults using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultSegmentSeconds   = 6
	defaultLiveBufferSecs   = 300
	defaultStopGrace        = 5 * time.Second
	defaultFileWaitTimeout  = 30 * time.Second
	defaultPlaylistTimeout  = 25 * time.Second
	defaultCacheMaxAge      = 7 * 24 * time.Hour
	defaultCacheMaxSize     = "10GB"
	defaultSweepSchedule    = "@every 1h"
	defaultSessionsPerAccel = 2
	defaultProbeTimeout     = 30 * time.Second
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	FFmpeg    FFmpegConfig   `mapstructure:"ffmpeg"`
	HLS       HLSConfig      `mapstructure:"hls"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Subtitles SubtitleConfig `mapstructure:"subtitles"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`

	// File enables rotated file output next to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"`
	ProbePath  string `mapstructure:"probe_path"`
	// MaxThreads is passed as -threads; 0 uses every logical CPU.
	MaxThreads int `mapstructure:"max_threads"`

	HWAccel          bool          `mapstructure:"hwaccel"`
	HWAccelPriority  []string      `mapstructure:"hwaccel_priority"`
	SessionsPerAccel int           `mapstructure:"sessions_per_accel"`
	StopGrace        time.Duration `mapstructure:"stop_grace"`
	FileWaitTimeout  time.Duration `mapstructure:"file_wait_timeout"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
}

type HLSConfig struct {
	SegmentSeconds    int           `mapstructure:"segment_seconds"`
	LiveBufferSeconds int           `mapstructure:"live_buffer_seconds"`
	PlaylistTimeout   time.Duration `mapstructure:"playlist_timeout"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	MaxAge  time.Duration `mapstructure:"max_age"`
	// MaxSize accepts human readable sizes such as "10GB".
	MaxSize  string `mapstructure:"max_size"`
	Schedule string `mapstructure:"schedule"`
}

type SubtitleConfig struct {
	Hardcode   bool   `mapstructure:"hardcode"`
	Font       string `mapstructure:"font"`
	FontSize   int    `mapstructure:"font_size"`
	Color      string `mapstructure:"color"`
	BoxStyle   bool   `mapstructure:"box_style"`
	DefaultEnc string `mapstructure:"default_encoding"`
}

// MaxSizeBytes parses MaxSize. An empty value disables the size limit.
func (c CacheConfig) MaxSizeBytes() (int64, error) {
	if c.MaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("cache.max_size: %w", err)
	}
	return int64(n), nil
}

// Load reads configuration from file and environment variables.
// Environment variables are prefixed with TRANSCODER_ and use underscores
// for nesting, e.g. TRANSCODER_HLS_SEGMENT_SECONDS=4.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("transcoder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/transcoder")
		v.AddConfigPath("$HOME/.transcoder")
	}

	v.SetEnvPrefix("TRANSCODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates an already populated Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.max_backups", 10)

	v.SetDefault("ffmpeg.binary_path", "ffmpeg")
	v.SetDefault("ffmpeg.probe_path", "ffprobe")
	v.SetDefault("ffmpeg.max_threads", 0)
	v.SetDefault("ffmpeg.hwaccel", false)
	v.SetDefault("ffmpeg.hwaccel_priority", []string{"cuda", "qsv", "videotoolbox", "vaapi"})
	v.SetDefault("ffmpeg.sessions_per_accel", defaultSessionsPerAccel)
	v.SetDefault("ffmpeg.stop_grace", defaultStopGrace)
	v.SetDefault("ffmpeg.file_wait_timeout", defaultFileWaitTimeout)
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	v.SetDefault("hls.segment_seconds", defaultSegmentSeconds)
	v.SetDefault("hls.live_buffer_seconds", defaultLiveBufferSecs)
	v.SetDefault("hls.playlist_timeout", defaultPlaylistTimeout)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "./cache")
	v.SetDefault("cache.max_age", defaultCacheMaxAge)
	v.SetDefault("cache.max_size", defaultCacheMaxSize)
	v.SetDefault("cache.schedule", defaultSweepSchedule)

	v.SetDefault("subtitles.hardcode", true)
	v.SetDefault("subtitles.font", "Arial")
	v.SetDefault("subtitles.font_size", 20)
	v.SetDefault("subtitles.color", "FFFFFF")
	v.SetDefault("subtitles.box_style", false)
	v.SetDefault("subtitles.default_encoding", "UTF-8")
}

func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.FFmpeg.BinaryPath == "" {
		return fmt.Errorf("ffmpeg.binary_path is required")
	}
	if c.FFmpeg.MaxThreads < 0 {
		return fmt.Errorf("ffmpeg.max_threads must not be negative")
	}
	validAccels := map[string]bool{"cuda": true, "qsv": true, "videotoolbox": true, "vaapi": true}
	for _, a := range c.FFmpeg.HWAccelPriority {
		if !validAccels[a] {
			return fmt.Errorf("ffmpeg.hwaccel_priority: unknown accelerator %q", a)
		}
	}

	if c.HLS.SegmentSeconds < 1 {
		return fmt.Errorf("hls.segment_seconds must be at least 1")
	}
	if c.HLS.LiveBufferSeconds < c.HLS.SegmentSeconds {
		return fmt.Errorf("hls.live_buffer_seconds must cover at least one segment")
	}

	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if _, err := c.Cache.MaxSizeBytes(); err != nil {
		return err
	}
	if c.Cache.Schedule != "" {
		if _, err := cron.ParseStandard(c.Cache.Schedule); err != nil {
			return fmt.Errorf("cache.schedule: %w", err)
		}
	}

	return nil
}
