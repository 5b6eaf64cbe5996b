package subtitle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/ffmpeg"
	"github.com/eleven-am/transcoder/internal/observability"
)

var ErrNotConvertible = errors.New("bitmap subtitles cannot be converted to text")

// subtitleMuxers is the -f value that writes each text codec to a file.
var subtitleMuxers = map[domain.SubtitleCodec]string{
	domain.SubtitleCodecSRT:     "srt",
	domain.SubtitleCodecASS:     "ass",
	domain.SubtitleCodecSSA:     "ass",
	domain.SubtitleCodecWebVTT:  "webvtt",
	domain.SubtitleCodecMovText: "mp4",
}

// Converter writes a subtitle track as a standalone file in the cache.
type Converter struct {
	binary  string
	store   domain.ArtifactStore
	logger  *slog.Logger
	charset string
}

func NewConverter(binary string, store domain.ArtifactStore, defaultEncoding string, logger *slog.Logger) *Converter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Converter{
		binary:  binary,
		store:   store,
		logger:  observability.WithComponent(logger, "subtitle"),
		charset: defaultEncoding,
	}
}

// Name is the cache name of a converted track: <key>.<lang>.<ext>.
func Name(key string, s domain.SubtitleStream, codec domain.SubtitleCodec) string {
	lang := s.Language
	if lang == "" {
		lang = "und"
	}
	return fmt.Sprintf("%s.%s.%s", key, strings.ToLower(lang), codec.Extension())
}

// Convert writes track s of src as codec under name and returns its path. An
// existing non-empty file is reused and touched.
func (c *Converter) Convert(ctx context.Context, src domain.VideoSource, s domain.SubtitleStream, codec domain.SubtitleCodec, name string) (string, error) {
	if codec == domain.SubtitleCodecUnknown {
		codec = s.Codec
	}
	muxer, ok := subtitleMuxers[codec]
	if !ok || s.Codec.IsImage() {
		return "", ErrNotConvertible
	}

	lock := c.store.Lock(name)
	lock.Lock()
	defer lock.Unlock()

	if c.store.Exists(name) {
		if err := c.store.Touch(name); err != nil {
			c.logger.Warn("touch subtitle", slog.String("name", name), slog.String("error", err.Error()))
		}
		return c.store.Path(name), nil
	}

	target := c.store.Path(name)
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	input, stream := src.Path, 0
	if s.IsEmbedded() {
		stream = s.Index
	} else {
		input = s.Path
		enc := s.Encoding
		if enc == "" {
			enc = c.charset
		}
		if enc != "" {
			args = append(args, "-sub_charenc", enc)
		}
	}

	encoder := ffmpeg.SubtitleEncoder(codec)
	if codec == s.Codec {
		encoder = "copy"
	}
	args = append(args,
		"-i", input,
		"-vn", "-an",
		"-map", "0:"+strconv.Itoa(stream),
		"-c:s", encoder,
		"-f", muxer,
		target,
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = c.store.Remove(name)
		return "", fmt.Errorf("convert subtitle %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	if !c.store.Exists(name) {
		_ = c.store.Remove(name)
		return "", fmt.Errorf("convert subtitle %s: no output written", name)
	}

	c.logger.Debug("subtitle converted",
		slog.String("name", name),
		slog.String("codec", string(codec)),
		slog.Int("stream", stream),
	)
	return target, nil
}
