// Package transcoder turns media sources into files, byte streams and HLS
// segment sets by driving an external ffmpeg process.
//
// A request names a source and a target profile. The controller negotiates
// the output format, builds the encoder command, runs it and hands back a
// Context the caller reads from. Finished outputs stay in a cache directory
// and are reused by later requests for the same output; concurrent requests
// for the same output share one encoder.
//
// # Basic Usage
//
//	ctrl, err := transcoder.NewController(ctx, transcoder.Options{
//	    CacheDir: "/var/cache/transcoder",
//	    HWAccel:  true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctrl.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer ctrl.Stop(context.Background())
//
//	src, err := ctrl.ProbeVideo(ctx, "/media/movie.mkv")
//	tc, err := ctrl.Transcode(ctx, &transcoder.VideoRequest{
//	    Job:     transcoder.Job{ClientID: "tv", TranscodeID: "movie"},
//	    Sources: []transcoder.VideoSource{src},
//	    Target:  transcoder.VideoTarget{Container: "hls", MaxHeight: 720},
//	}, 0, 0)
//
// # Segmented Output
//
// HLS targets write a playlist and numbered segments into a directory in
// the cache. Playlist returns the playlist with segment URIs pointing at the
// caller's base URL, and Segment returns one segment, waiting for the
// encoder when it is about to produce it. A segment far from the position
// the client last fetched is reported as ErrSegmentUnavailable: the client
// has seeked and should request a new transcode starting there.
package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"

	"github.com/eleven-am/transcoder/internal/cache"
	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/ffmpeg"
	"github.com/eleven-am/transcoder/internal/hwaccel"
	"github.com/eleven-am/transcoder/internal/playlist"
	"github.com/eleven-am/transcoder/internal/probe"
	"github.com/eleven-am/transcoder/internal/rendition"
	"github.com/eleven-am/transcoder/internal/subtitle"
	"github.com/eleven-am/transcoder/internal/transcode"
)

type (
	// Request is one of *VideoRequest, *AudioRequest or *ImageRequest.
	Request      = domain.Request
	Job          = domain.Job
	VideoRequest = domain.VideoRequest
	AudioRequest = domain.AudioRequest
	ImageRequest = domain.ImageRequest

	VideoSource = domain.VideoSource
	AudioSource = domain.AudioSource
	ImageSource = domain.ImageSource
	VideoTarget = domain.VideoTarget
	AudioTarget = domain.AudioTarget
	ImageTarget = domain.ImageTarget

	SubtitleRendition = domain.SubtitleRendition

	// Context is the live state of one transcode.
	Context = transcode.Context

	// SweepReport lists what a cache sweep removed.
	SweepReport = cache.Report
)

var (
	ErrNotFound           = transcode.ErrNotFound
	ErrSegmentUnavailable = transcode.ErrSegmentUnavailable
	ErrWaitTimeout        = transcode.ErrWaitTimeout
	ErrAborted            = transcode.ErrAborted
	ErrNotSegmented       = transcode.ErrNotSegmented
	ErrClosed             = transcode.ErrClosed
)

// ErrUnknownRendition is returned for a rendition name the source's ladder
// does not contain.
var ErrUnknownRendition = errors.New("unknown rendition")

// SubtitleOptions controls burned-in subtitles.
type SubtitleOptions struct {
	// Hardcode allows burning subtitles into the video when the target
	// cannot carry them.
	Hardcode bool
	Font     string
	FontSize int
	// Color is an RGB hex string such as "FFFFFF".
	Color string
	Box   bool
	// DefaultEncoding is the character set assumed for subtitle files that
	// do not declare one.
	DefaultEncoding string
}

// Options configures the Controller.
type Options struct {
	// CacheDir is required. Outputs, segment directories and converted
	// subtitles are written here.
	CacheDir string

	// Fs backs the cache and sidecar subtitle discovery. Default: the OS
	// filesystem. The encoder always writes to the OS filesystem.
	Fs afero.Fs

	// DisableCache streams every video and audio transcode instead of
	// keeping the output.
	DisableCache bool

	// BinaryPath is the encoder. Default: ffmpeg.
	BinaryPath string
	// ProbePath is the prober. Default: ffprobe.
	ProbePath string

	// Threads is the per-input decode thread count. Default: every logical
	// CPU.
	Threads int

	// HWAccel enables hardware encoders the ffmpeg build reports.
	HWAccel bool
	// HWAccelPriority orders the hardware backends tried. Default: cuda,
	// qsv, videotoolbox, vaapi.
	HWAccelPriority []string
	// SessionsPerAccel is the number of concurrent encodes per hardware
	// backend. Default: 2.
	SessionsPerAccel int

	// SegmentSeconds is the HLS segment length. Default: 6.
	SegmentSeconds int
	// LiveBufferSeconds is how much media a live playlist keeps. Default:
	// 300.
	LiveBufferSeconds int

	// StopGrace is how long a stopped encoder may take to finish before it
	// is killed. Default: 5 seconds.
	StopGrace time.Duration
	// FileWaitTimeout bounds waiting for an output file. Default: 30 seconds.
	FileWaitTimeout time.Duration
	// PlaylistWaitTimeout bounds waiting for a playlist or segment.
	// Default: 25 seconds.
	PlaylistWaitTimeout time.Duration
	// ProbeTimeout bounds one ffprobe run. Default: 30 seconds.
	ProbeTimeout time.Duration

	// CacheMaxAge evicts outputs not used for longer. Zero keeps them.
	CacheMaxAge time.Duration
	// CacheMaxSize evicts the least recently used outputs above this many
	// bytes. Zero disables the limit.
	CacheMaxSize int64
	// SweepSchedule is a cron spec for cache sweeps. Empty disables
	// scheduled sweeps; Sweep still works.
	SweepSchedule string

	Subtitles SubtitleOptions

	Logger *slog.Logger
}

func (o *Options) setDefaults(ctx context.Context) {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.BinaryPath == "" {
		o.BinaryPath = "ffmpeg"
	}
	if o.ProbePath == "" {
		o.ProbePath = "ffprobe"
	}
	if o.Threads == 0 {
		o.Threads = hwaccel.LogicalCPUs(ctx)
	}
	if o.SessionsPerAccel == 0 {
		o.SessionsPerAccel = 2
	}
	if o.SegmentSeconds == 0 {
		o.SegmentSeconds = playlist.DefaultSegmentSeconds
	}
	if o.LiveBufferSeconds == 0 {
		o.LiveBufferSeconds = playlist.DefaultLiveBufferSeconds
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func (o *Options) validate() {
	if o.CacheDir == "" {
		panic("transcoder: CacheDir is required")
	}
}

func (o *Options) priority() []domain.Accelerator {
	if len(o.HWAccelPriority) == 0 {
		return nil
	}
	out := make([]domain.Accelerator, len(o.HWAccelPriority))
	for i, a := range o.HWAccelPriority {
		out[i] = domain.Accelerator(a)
	}
	return out
}

// Controller is the entry point for transcoding. Start begins scheduled
// cache sweeps; Stop ends every running transcode.
type Controller struct {
	opts         Options
	store        *cache.Store
	orchestrator *transcode.Orchestrator
	prober       *probe.Prober
	sweeper      *cache.Sweeper
	logger       *slog.Logger
}

// NewController creates a Controller. It panics if CacheDir is empty. With
// HWAccel set it asks the encoder which hardware backends it supports and
// falls back to software encoding when that fails.
func NewController(ctx context.Context, opts Options) (*Controller, error) {
	opts.validate()
	opts.setDefaults(ctx)
	logger := opts.Logger

	store, err := cache.New(opts.Fs, opts.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	var caps hwaccel.Capabilities
	if opts.HWAccel {
		caps, err = hwaccel.Detect(ctx, opts.BinaryPath)
		if err != nil {
			logger.Warn("hardware acceleration unavailable, encoding in software", slog.Any("error", err))
			caps = nil
		}
	}
	slots := hwaccel.NewSlots(caps, opts.SessionsPerAccel, opts.priority(), logger)

	builder := ffmpeg.NewBuilder(ffmpeg.Options{
		Threads:           opts.Threads,
		SegmentSeconds:    opts.SegmentSeconds,
		LiveBufferSeconds: opts.LiveBufferSeconds,
	}, slots)

	subs := subtitle.Options{
		Hardcode: opts.Subtitles.Hardcode,
		Style: subtitle.Style{
			Font:            opts.Subtitles.Font,
			FontSize:        opts.Subtitles.FontSize,
			Color:           opts.Subtitles.Color,
			Box:             opts.Subtitles.Box,
			DefaultEncoding: opts.Subtitles.DefaultEncoding,
		},
	}
	converter := subtitle.NewConverter(opts.BinaryPath, store, opts.Subtitles.DefaultEncoding, logger)

	orch := transcode.New(transcode.Options{
		BinaryPath:          opts.BinaryPath,
		SegmentSeconds:      opts.SegmentSeconds,
		CacheEnabled:        !opts.DisableCache,
		StopGrace:           opts.StopGrace,
		FileWaitTimeout:     opts.FileWaitTimeout,
		PlaylistWaitTimeout: opts.PlaylistWaitTimeout,
		Subtitles:           subs,
	}, builder, store, slots, converter, logger)

	return &Controller{
		opts:         opts,
		store:        store,
		orchestrator: orch,
		prober: probe.NewProber(probe.Options{
			BinaryPath: opts.ProbePath,
			Timeout:    opts.ProbeTimeout,
		}, opts.Fs, logger),
		sweeper: cache.NewSweeper(store, cache.Policy{
			MaxAge:  opts.CacheMaxAge,
			MaxSize: opts.CacheMaxSize,
		}, orch.InUse, logger),
		logger: logger,
	}, nil
}

// Start schedules cache sweeps when SweepSchedule is set.
func (c *Controller) Start() error {
	if c.opts.SweepSchedule == "" {
		return nil
	}
	if err := c.sweeper.Start(c.opts.SweepSchedule); err != nil {
		return fmt.Errorf("start cache sweeper: %w", err)
	}
	return nil
}

// Stop ends scheduled sweeps, stops every transcode and waits for the
// encoders to exit until ctx ends.
func (c *Controller) Stop(ctx context.Context) error {
	c.sweeper.Stop(ctx)
	return c.orchestrator.Close(ctx)
}

// Transcode starts or reuses a transcode of req from timeStart seconds. A
// positive duration caps the output length. It returns before any output
// exists; read it with Open, Playlist and Segment.
func (c *Controller) Transcode(ctx context.Context, req Request, timeStart, duration float64) (*Context, error) {
	return c.orchestrator.RequestTranscode(ctx, req, timeStart, duration)
}

// Lookup returns the context a client was last handed for a transcode.
func (c *Controller) Lookup(clientID, transcodeID string) (*Context, error) {
	return c.orchestrator.Lookup(clientID, transcodeID)
}

// Open returns the output of a transcode: the file once it has data, the
// encoder's byte stream, or the playlist of segmented output.
func (c *Controller) Open(ctx context.Context, clientID, transcodeID string) (io.ReadCloser, error) {
	tc, err := c.orchestrator.Lookup(clientID, transcodeID)
	if err != nil {
		return nil, err
	}
	return c.orchestrator.OpenStream(ctx, tc)
}

// Playlist returns the HLS playlist of a transcode with segment URIs under
// baseURL.
func (c *Controller) Playlist(ctx context.Context, clientID, transcodeID, baseURL string) ([]byte, error) {
	tc, err := c.orchestrator.Lookup(clientID, transcodeID)
	if err != nil {
		return nil, err
	}
	return c.orchestrator.Playlist(ctx, tc, baseURL)
}

// Segment returns the named segment of a transcode.
func (c *Controller) Segment(ctx context.Context, clientID, transcodeID, name string) (io.ReadCloser, error) {
	tc, err := c.orchestrator.Lookup(clientID, transcodeID)
	if err != nil {
		return nil, err
	}
	return c.orchestrator.Segment(ctx, tc, name)
}

// Subtitle returns a subtitle file written next to a transcode's output.
func (c *Controller) Subtitle(clientID, transcodeID, name string) (io.ReadCloser, error) {
	tc, err := c.orchestrator.Lookup(clientID, transcodeID)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(tc.Subtitles, func(p string) bool { return filepath.Base(p) == name }) {
		return nil, ErrNotFound
	}
	return c.store.Open(name)
}

// StopTranscode stops every job of a transcode and reports whether one was
// running.
func (c *Controller) StopTranscode(clientID, transcodeID string) bool {
	return c.orchestrator.StopTranscode(clientID, transcodeID)
}

// Active returns the running transcodes.
func (c *Controller) Active() []*Context {
	return c.orchestrator.Active()
}

// Sweep evicts empty, stale and excess cache entries now.
func (c *Controller) Sweep() (SweepReport, error) {
	return c.sweeper.Sweep()
}

func (c *Controller) ProbeVideo(ctx context.Context, path string) (VideoSource, error) {
	return c.prober.Video(ctx, path)
}

func (c *Controller) ProbeAudio(ctx context.Context, path string) (AudioSource, error) {
	return c.prober.Audio(ctx, path)
}

func (c *Controller) ProbeImage(ctx context.Context, path string) (ImageSource, error) {
	return c.prober.Image(ctx, path)
}

// MasterPlaylist returns a multivariant playlist advertising the quality
// ladder of req's source. variantURI maps a rendition name such as "720p"
// to the URI of its media playlist.
func (c *Controller) MasterPlaylist(req *VideoRequest, variantURI func(name string) string, subtitles ...SubtitleRendition) ([]byte, error) {
	src := req.Source()
	ladder := rendition.Ladder(src.Video)
	if len(ladder) == 0 {
		return nil, fmt.Errorf("master playlist %s: source has no video dimensions", req.TranscodeID)
	}

	audio := req.Target.AudioCodec
	if audio == domain.AudioCodecUnknown {
		audio = domain.AudioCodecAAC
	}

	variants := make([]domain.Variant, 0, len(ladder))
	for _, r := range ladder {
		variants = append(variants, r.Variant(src.Video, audio, req.Target.AudioBitrate, variantURI(r.Name)))
	}
	return playlist.Master(variants, subtitles)
}

// Rendition returns req narrowed to one rung of its source's quality ladder
// as an HLS request. Each rendition is its own transcode, identified by the
// transcode id suffixed with the rendition name.
func (c *Controller) Rendition(req *VideoRequest, name string) (*VideoRequest, error) {
	r, ok := rendition.Find(rendition.Ladder(req.Source().Video), name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRendition, name)
	}
	out := *req
	out.TranscodeID = req.TranscodeID + "-" + r.Name
	out.Target = r.Target(req.Target)
	out.Target.Container = domain.VideoContainerHLS
	return &out, nil
}
