// Package cmd implements the transcoder command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eleven-am/transcoder"
	"github.com/eleven-am/transcoder/internal/config"
	"github.com/eleven-am/transcoder/internal/observability"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "transcoder",
	Short: "On-demand media transcoding service",
	Long: `transcoder converts video, audio and images with ffmpeg on demand.

Outputs are cached and shared between clients requesting the same result.
HLS outputs are served segment by segment while the encoder runs.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./transcoder.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
	rootCmd.PersistentFlags().String("cache-dir", "./cache", "directory for transcoded output")
	rootCmd.PersistentFlags().String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	rootCmd.PersistentFlags().String("ffprobe", "ffprobe", "path to the ffprobe binary")

	mustBindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	mustBindPFlag("cache.dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	mustBindPFlag("ffmpeg.binary_path", rootCmd.PersistentFlags().Lookup("ffmpeg"))
	mustBindPFlag("ffmpeg.probe_path", rootCmd.PersistentFlags().Lookup("ffprobe"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("transcoder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/transcoder")
	}

	viper.SetEnvPrefix("TRANSCODER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// loadConfig validates the merged flag, environment and file settings and
// builds the logger they describe.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", slog.String("path", used))
	}
	return cfg, logger, nil
}

func newController(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*transcoder.Controller, error) {
	maxSize, err := cfg.Cache.MaxSizeBytes()
	if err != nil {
		return nil, err
	}
	return transcoder.NewController(ctx, transcoder.Options{
		CacheDir:            cfg.Cache.Dir,
		DisableCache:        !cfg.Cache.Enabled,
		BinaryPath:          cfg.FFmpeg.BinaryPath,
		ProbePath:           cfg.FFmpeg.ProbePath,
		Threads:             cfg.FFmpeg.MaxThreads,
		HWAccel:             cfg.FFmpeg.HWAccel,
		HWAccelPriority:     cfg.FFmpeg.HWAccelPriority,
		SessionsPerAccel:    cfg.FFmpeg.SessionsPerAccel,
		SegmentSeconds:      cfg.HLS.SegmentSeconds,
		LiveBufferSeconds:   cfg.HLS.LiveBufferSeconds,
		StopGrace:           cfg.FFmpeg.StopGrace,
		FileWaitTimeout:     cfg.FFmpeg.FileWaitTimeout,
		PlaylistWaitTimeout: cfg.HLS.PlaylistTimeout,
		ProbeTimeout:        cfg.FFmpeg.ProbeTimeout,
		CacheMaxAge:         cfg.Cache.MaxAge,
		CacheMaxSize:        maxSize,
		SweepSchedule:       cfg.Cache.Schedule,
		Subtitles: transcoder.SubtitleOptions{
			Hardcode:        cfg.Subtitles.Hardcode,
			Font:            cfg.Subtitles.Font,
			FontSize:        cfg.Subtitles.FontSize,
			Color:           cfg.Subtitles.Color,
			Box:             cfg.Subtitles.BoxStyle,
			DefaultEncoding: cfg.Subtitles.DefaultEnc,
		},
		Logger: logger,
	})
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
