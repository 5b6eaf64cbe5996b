package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eleven-am/transcoder"
	"github.com/eleven-am/transcoder/internal/domain"
)

type transcodeFlags struct {
	kind      string
	output    string
	container string
	codec     string
	audio     string
	maxHeight int
	bitrate   int
	start     float64
	duration  float64
	subtitles string
	languages []string
}

var tcFlags transcodeFlags

var transcodeCmd = &cobra.Command{
	Use:   "transcode INPUT...",
	Short: "Transcode files once and exit",
	Long: `Probe the inputs, transcode them into the cache and copy the result to
--output. Several video inputs are joined in order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranscode,
}

var probeCmd = &cobra.Command{
	Use:   "probe FILE",
	Short: "Print what the transcoder sees in a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctrl, err := newController(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		var src any
		switch domain.Kind(tcFlags.kind) {
		case domain.KindAudio:
			src, err = ctrl.ProbeAudio(cmd.Context(), args[0])
		case domain.KindImage:
			src, err = ctrl.ProbeImage(cmd.Context(), args[0])
		default:
			src, err = ctrl.ProbeVideo(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(src)
	},
}

func init() {
	rootCmd.AddCommand(transcodeCmd, probeCmd)

	for _, c := range []*cobra.Command{transcodeCmd, probeCmd} {
		c.Flags().StringVar(&tcFlags.kind, "kind", "video", "input kind (video, audio, image)")
	}

	f := transcodeCmd.Flags()
	f.StringVarP(&tcFlags.output, "output", "o", "", "output file (default: stdout)")
	f.StringVar(&tcFlags.container, "container", "mp4", "target container")
	f.StringVar(&tcFlags.codec, "codec", "", "target video or audio codec")
	f.StringVar(&tcFlags.audio, "audio-codec", "aac", "target audio codec for video")
	f.IntVar(&tcFlags.maxHeight, "max-height", 0, "maximum video or image height")
	f.IntVar(&tcFlags.bitrate, "bitrate", 0, "target bitrate in kbit/s")
	f.Float64Var(&tcFlags.start, "start", 0, "start offset in seconds")
	f.Float64Var(&tcFlags.duration, "duration", 0, "output length in seconds")
	f.StringVar(&tcFlags.subtitles, "subtitles", "", "subtitle handling (embedded, hardcoded, softcoded)")
	f.StringSliceVar(&tcFlags.languages, "subtitle-lang", nil, "preferred subtitle languages")
}

func runTranscode(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	ctrl, err := newController(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = ctrl.Stop(stopCtx)
	}()

	req, err := buildRequest(ctx, ctrl, args)
	if err != nil {
		return err
	}

	start := time.Now()
	tc, err := ctrl.Transcode(ctx, req, tcFlags.start, tcFlags.duration)
	if err != nil {
		return err
	}
	if tc.Segmented() {
		<-tc.Done()
		if err := tc.Err(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "segments written to %s\n", filepath.Join(cfg.Cache.Dir, tc.Name))
		return nil
	}

	// A cached file is complete only once the encoder exits; a stream has
	// to be drained while it runs.
	if tc.Name != "" {
		<-tc.Done()
		if err := tc.Err(); err != nil {
			return err
		}
	}
	body, err := ctrl.Open(ctx, tc.ClientID, tc.TranscodeID)
	if err != nil {
		return err
	}
	defer body.Close()

	var out io.Writer = cmd.OutOrStdout()
	if tcFlags.output != "" {
		f, err := os.Create(tcFlags.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := io.Copy(out, body)
	if err != nil {
		return fmt.Errorf("copy output: %w", err)
	}
	<-tc.Done()
	if err := tc.Err(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s in %s\n", humanize.Bytes(uint64(n)), time.Since(start).Round(time.Millisecond))
	return nil
}

func buildRequest(ctx context.Context, ctrl *transcoder.Controller, paths []string) (transcoder.Request, error) {
	job := transcoder.Job{
		ClientID:    "cli",
		TranscodeID: strings.TrimSuffix(filepath.Base(paths[0]), filepath.Ext(paths[0])),
	}

	switch domain.Kind(tcFlags.kind) {
	case domain.KindAudio:
		src, err := ctrl.ProbeAudio(ctx, paths[0])
		if err != nil {
			return nil, err
		}
		return &transcoder.AudioRequest{Job: job, Source: src, Target: transcoder.AudioTarget{
			Container: domain.AudioContainer(tcFlags.container),
			Codec:     domain.AudioCodec(tcFlags.codec),
			Bitrate:   tcFlags.bitrate,
		}}, nil
	case domain.KindImage:
		src, err := ctrl.ProbeImage(ctx, paths[0])
		if err != nil {
			return nil, err
		}
		return &transcoder.ImageRequest{Job: job, Source: src, Target: transcoder.ImageTarget{
			Container:  domain.ImageContainer(tcFlags.container),
			MaxHeight:  tcFlags.maxHeight,
			AutoRotate: true,
		}}, nil
	case domain.KindVideo:
	default:
		return nil, fmt.Errorf("unknown kind %q", tcFlags.kind)
	}

	req := &transcoder.VideoRequest{Job: job, Target: transcoder.VideoTarget{
		Container:         domain.VideoContainer(tcFlags.container),
		Codec:             domain.VideoCodec(tcFlags.codec),
		MaxHeight:         tcFlags.maxHeight,
		Bitrate:           tcFlags.bitrate,
		AudioCodec:        domain.AudioCodec(tcFlags.audio),
		Subtitles:         domain.SubtitleSupport(tcFlags.subtitles),
		SubtitleLanguages: tcFlags.languages,
	}}
	for _, p := range paths {
		src, err := ctrl.ProbeVideo(ctx, p)
		if err != nil {
			return nil, err
		}
		req.Sources = append(req.Sources, src)
	}
	return req, nil
}
