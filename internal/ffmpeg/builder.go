package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/hwaccel"
	"github.com/eleven-am/transcoder/internal/playlist"
)

type Options struct {
	// Threads is the per-input decode thread count; zero lets ffmpeg pick.
	Threads           int
	SegmentSeconds    int
	LiveBufferSeconds int
}

// EncoderPool hands out encoder configurations per job. *hwaccel.Slots
// implements it.
type EncoderPool interface {
	Acquire(jobID string, codec domain.VideoCodec) *domain.HWAccelConfig
}

// Output says where a job writes.
type Output struct {
	// Path is the output file for single-file jobs.
	Path string
	// SegmentDir is the directory an HLS job writes its playlist and
	// segments to.
	SegmentDir string
	// StartSegment is the first segment number an HLS job produces.
	StartSegment int64
	// Pipe sends the output to stdout.
	Pipe bool
	// Progressive files are read while the encoder still writes them.
	Progressive bool
}

type Params struct {
	TimeStart float64
	Duration  float64
	Subtitle  *SubtitleFragment
	Output    Output
	// SlotKey names the encoder slot the job holds. Empty uses JobID.
	SlotKey string
}

func (p Params) slotKey(job domain.Job) string {
	if p.SlotKey != "" {
		return p.SlotKey
	}
	return JobID(job)
}

// Builder turns a request into a TranscodeData by running an ordered list of
// stages over it.
type Builder struct {
	opts     Options
	encoders EncoderPool
}

func NewBuilder(opts Options, encoders EncoderPool) *Builder {
	if opts.SegmentSeconds <= 0 {
		opts.SegmentSeconds = playlist.DefaultSegmentSeconds
	}
	if opts.LiveBufferSeconds <= 0 {
		opts.LiveBufferSeconds = playlist.DefaultLiveBufferSeconds
	}
	return &Builder{opts: opts, encoders: encoders}
}

// JobID is the key encoder slots are held under.
func JobID(job domain.Job) string {
	return job.ClientID + "/" + job.TranscodeID
}

func (b *Builder) Build(req domain.Request, p Params) (*TranscodeData, error) {
	switch r := req.(type) {
	case *domain.VideoRequest:
		return b.Video(r, p)
	case *domain.AudioRequest:
		return b.Audio(r, p)
	case *domain.ImageRequest:
		return b.Image(r, p)
	default:
		return nil, ErrUnsupported
	}
}

// InitInputs adds one input block per path together with the global flags.
func (b *Builder) InitInputs(d *TranscodeData, paths []string, firstInputArgs ...string) {
	d.GlobalArgs = append(d.GlobalArgs, "-hide_banner", "-nostats", "-loglevel", "warning", "-y")
	for i, path := range paths {
		var args []string
		if i == 0 {
			args = append(args, firstInputArgs...)
		}
		if b.opts.Threads > 0 {
			args = append(args, "-threads", strconv.Itoa(b.opts.Threads))
		}
		if strings.HasPrefix(path, "rtsp://") {
			args = append(args, "-rtsp_transport", "+tcp+udp", "-analyzeduration", "10000000")
		}
		d.AddInput(i, path, args...)
	}
}

// AddTime seeks the first input to start and caps the output at duration.
// Zero values are omitted.
func (b *Builder) AddTime(d *TranscodeData, start, duration float64) {
	if start > 0 {
		d.InputArgs[0] = append(d.InputArgs[0], "-ss", formatSeconds(start))
	}
	if duration > 0 {
		d.OutputArgs = append(d.OutputArgs, "-t", formatSeconds(duration))
	}
}

// AddOutput selects the muxer and the output target of a video job.
func (b *Builder) AddOutput(d *TranscodeData, t domain.VideoTarget, out Output, duration float64) {
	if t.Container == domain.VideoContainerHLS && !out.Pipe {
		b.addHLSOutput(d, t.Live, out, duration)
		return
	}

	if muxer := t.Container.Muxer(); muxer != "" {
		d.OutputArgs = append(d.OutputArgs, "-f", muxer)
	}
	switch t.Container {
	case domain.VideoContainerMP4, domain.VideoContainer3GP:
		flags := t.MovFlags
		if flags == "" && (out.Pipe || out.Progressive) {
			flags = "frag_keyframe+empty_moov"
		} else if flags == "" {
			flags = "+faststart"
		}
		d.OutputArgs = append(d.OutputArgs, "-movflags", flags)
	case domain.VideoContainerM2TS:
		d.OutputArgs = append(d.OutputArgs, "-mpegts_m2ts_mode", "1")
	}
	d.OutputPath = fileTarget(out)
}

func (b *Builder) addHLSOutput(d *TranscodeData, live bool, out Output, duration float64) {
	seg := b.opts.SegmentSeconds
	d.SegmentDir = out.SegmentDir
	d.OutputArgs = append(d.OutputArgs,
		"-f", "hls",
		"-hls_time", strconv.Itoa(seg),
		"-hls_allow_cache", "0",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(out.SegmentDir, domain.SegmentTemplate),
		"-hls_base_url", domain.BaseURLPlaceholder,
	)

	if live {
		d.OutputArgs = append(d.OutputArgs,
			"-hls_list_size", strconv.Itoa(playlist.LiveWindow(b.opts.LiveBufferSeconds, seg)),
			"-hls_flags", "delete_segments",
		)
		d.OutputPath = filepath.Join(out.SegmentDir, domain.PlaylistFileName)
		return
	}

	d.StartSegment = out.StartSegment
	d.OutputArgs = append(d.OutputArgs,
		"-hls_list_size", strconv.Itoa(playlist.SegmentCount(duration, seg)),
		"-start_number", strconv.FormatInt(out.StartSegment, 10),
	)
	if out.StartSegment > 0 {
		d.OutputArgs = append(d.OutputArgs, "-output_ts_offset", formatSeconds(float64(out.StartSegment)*float64(seg)))
	}
	d.OutputPath = filepath.Join(out.SegmentDir, domain.TempPlaylistFileName)
}

func (b *Builder) encoder(jobID string, codec domain.VideoCodec) *domain.HWAccelConfig {
	if b.encoders == nil {
		return hwaccel.NewConfig(domain.AccelNone, codec)
	}
	return b.encoders.Acquire(jobID, codec)
}

func fileTarget(out Output) string {
	if out.Pipe {
		return PipeOutput
	}
	return out.Path
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func kbps(v int) string {
	return fmt.Sprintf("%dk", v)
}
