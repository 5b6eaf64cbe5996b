// Package probe describes media files by running ffprobe. It is the
// boundary that produces the source descriptors requests carry.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marusama/semaphore/v2"
	"github.com/spf13/afero"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/hwaccel"
	"github.com/eleven-am/transcoder/internal/observability"
)

const defaultTimeout = 30 * time.Second

type Options struct {
	// BinaryPath defaults to ffprobe on PATH.
	BinaryPath string
	Timeout    time.Duration
	// Concurrency bounds parallel ffprobe runs. Zero uses the logical CPU
	// count.
	Concurrency int
}

// Prober runs ffprobe and keeps the result per file until the file changes.
type Prober struct {
	binary  string
	timeout time.Duration
	fs      afero.Fs
	sem     semaphore.Semaphore
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	modTime time.Time
	size    int64
	out     *ffprobeOutput
}

func NewProber(opts Options, fs afero.Fs, logger *slog.Logger) *Prober {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "ffprobe"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = hwaccel.LogicalCPUs(context.Background())
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Prober{
		binary:  opts.BinaryPath,
		timeout: opts.Timeout,
		fs:      fs,
		sem:     semaphore.New(opts.Concurrency),
		logger:  observability.WithComponent(logger, "probe"),
		cache:   make(map[string]cached),
	}
}

// Video describes a video file. Subtitle files next to it are listed after
// the embedded tracks.
func (p *Prober) Video(ctx context.Context, path string) (domain.VideoSource, error) {
	out, err := p.probe(ctx, path)
	if err != nil {
		return domain.VideoSource{}, err
	}

	src := domain.VideoSource{
		Path:      path,
		Container: videoContainer(out.Format.FormatName, path),
		Duration:  parseFloat(out.Format.Duration),
	}
	videoFound := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if videoFound || s.Disposition.AttachedPic == 1 {
				continue
			}
			videoFound = true
			src.Video = domain.VideoStream{
				Index:            s.Index,
				Codec:            videoCodec(s.CodecName),
				Width:            s.Width,
				Height:           s.Height,
				PixelAspectRatio: parseRatio(s.SampleAspectRatio, ":"),
				PixelFormat:      domain.PixelFormat(s.PixFmt),
				FrameRate:        parseRatio(s.RFrameRate, "/"),
				Bitrate:          s.bitrate(),
				Profile:          s.Profile,
				Level:            float64(s.Level),
			}
		case "audio":
			src.Audios = append(src.Audios, s.audio())
		case "subtitle":
			src.Subtitles = append(src.Subtitles, domain.SubtitleStream{
				Index:    s.Index,
				Codec:    subtitleCodec(s.CodecName),
				Language: s.Tags["language"],
				Default:  s.Disposition.Default == 1,
				Forced:   s.Disposition.Forced == 1,
			})
		}
	}
	if !videoFound {
		return domain.VideoSource{}, fmt.Errorf("probe %s: no video stream", path)
	}

	external, err := p.ExternalSubtitles(path)
	if err != nil {
		p.logger.Warn("listing subtitle files", slog.String("path", path), slog.Any("error", err))
	}
	src.Subtitles = append(src.Subtitles, external...)
	return src, nil
}

func (p *Prober) Audio(ctx context.Context, path string) (domain.AudioSource, error) {
	out, err := p.probe(ctx, path)
	if err != nil {
		return domain.AudioSource{}, err
	}
	for _, s := range out.Streams {
		if s.CodecType == "audio" {
			return domain.AudioSource{
				Path:      path,
				Container: audioContainer(out.Format.FormatName, path),
				Duration:  parseFloat(out.Format.Duration),
				Stream:    s.audio(),
			}, nil
		}
	}
	return domain.AudioSource{}, fmt.Errorf("probe %s: no audio stream", path)
}

func (p *Prober) Image(ctx context.Context, path string) (domain.ImageSource, error) {
	out, err := p.probe(ctx, path)
	if err != nil {
		return domain.ImageSource{}, err
	}
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		orientation, _ := strconv.Atoi(s.Tags["Orientation"])
		return domain.ImageSource{
			Path:        path,
			Container:   imageContainer(s.CodecName),
			Width:       s.Width,
			Height:      s.Height,
			Orientation: orientation,
			PixelFormat: domain.PixelFormat(s.PixFmt),
		}, nil
	}
	return domain.ImageSource{}, fmt.Errorf("probe %s: no image stream", path)
}

// ExternalSubtitles lists subtitle files named after the media file, such
// as movie.srt or movie.en.forced.srt.
func (p *Prober) ExternalSubtitles(path string) ([]domain.SubtitleStream, error) {
	dir, file := filepath.Split(path)
	base := strings.TrimSuffix(file, filepath.Ext(file))

	entries, err := afero.ReadDir(p.fs, filepath.Clean(dir))
	if err != nil {
		return nil, err
	}

	var out []domain.SubtitleStream
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == file || !strings.HasPrefix(name, base+".") {
			continue
		}
		codec, ok := subtitleExtensions[strings.ToLower(filepath.Ext(name))]
		if !ok {
			continue
		}
		s := domain.SubtitleStream{Codec: codec, Path: filepath.Join(dir, name)}
		middle := strings.TrimSuffix(strings.TrimPrefix(name, base+"."), filepath.Ext(name))
		for _, part := range strings.Split(middle, ".") {
			switch strings.ToLower(part) {
			case "":
			case "forced":
				s.Forced = true
			case "default":
				s.Default = true
			default:
				if s.Language == "" {
					s.Language = part
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *Prober) probe(ctx context.Context, path string) (*ffprobeOutput, error) {
	fi, statErr := p.fs.Stat(path)
	if statErr == nil {
		p.mu.Lock()
		hit, ok := p.cache[path]
		p.mu.Unlock()
		if ok && hit.modTime.Equal(fi.ModTime()) && hit.size == fi.Size() {
			return hit.out, nil
		}
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	cmd.Stderr = &stderr

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("probe %s: decode output: %w", path, err)
	}
	p.logger.Debug("probed",
		slog.String("path", path),
		slog.Int("streams", len(out.Streams)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if statErr == nil {
		p.mu.Lock()
		p.cache[path] = cached{modTime: fi.ModTime(), size: fi.Size(), out: &out}
		p.mu.Unlock()
	}
	return &out, nil
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index             int               `json:"index"`
	CodecName         string            `json:"codec_name"`
	CodecType         string            `json:"codec_type"`
	Profile           string            `json:"profile"`
	Level             int               `json:"level"`
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	PixFmt            string            `json:"pix_fmt"`
	SampleAspectRatio string            `json:"sample_aspect_ratio"`
	RFrameRate        string            `json:"r_frame_rate"`
	Channels          int               `json:"channels"`
	SampleRate        string            `json:"sample_rate"`
	BitRate           string            `json:"bit_rate"`
	Tags              map[string]string `json:"tags"`
	Disposition       ffprobeDisp       `json:"disposition"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeDisp struct {
	Default     int `json:"default"`
	Forced      int `json:"forced"`
	AttachedPic int `json:"attached_pic"`
}

// bitrate is in kbit/s. Matroska stores it in the BPS tag only.
func (s ffprobeStream) bitrate() int {
	raw := s.BitRate
	if raw == "" {
		raw = s.Tags["BPS"]
	}
	bps, _ := strconv.Atoi(raw)
	return bps / 1000
}

func (s ffprobeStream) audio() domain.AudioStream {
	freq, _ := strconv.Atoi(s.SampleRate)
	return domain.AudioStream{
		Index:     s.Index,
		Codec:     audioCodec(s.CodecName),
		Language:  s.Tags["language"],
		Channels:  s.Channels,
		Bitrate:   s.bitrate(),
		Frequency: freq,
		Default:   s.Disposition.Default == 1,
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseRatio parses "num<sep>den". Zero or malformed values yield 0.
func parseRatio(s, sep string) float64 {
	num, den, ok := strings.Cut(s, sep)
	if !ok {
		return 0
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
