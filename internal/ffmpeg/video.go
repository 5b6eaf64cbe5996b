package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/negotiate"
)

// videoGraph is the filter layout of a video job. A job with a plain filter
// chain uses -vf; overlays and concatenation need a filter graph.
type videoGraph struct {
	filters    []string
	complex    []string
	videoLabel string
	audioLabel string
}

// Video builds the command for a video request.
func (b *Builder) Video(req *domain.VideoRequest, p Params) (*TranscodeData, error) {
	if len(req.Sources) == 0 {
		return nil, negotiationError(req.TranscodeID, ErrNoSource)
	}
	src := req.Source()
	t := resolveVideo(src, req.Target)
	if t.Codec == domain.VideoCodecUnknown {
		return nil, negotiationError(req.TranscodeID, ErrNoCodec)
	}

	d := NewTranscodeData(req.Job)
	paths := make([]string, len(req.Sources))
	for i, s := range req.Sources {
		paths[i] = s.Path
	}

	if d.Override != "" {
		for i, path := range paths {
			d.AddInput(i, path)
		}
		p.Subtitle.applyInputs(d)
		b.AddOutput(d, t, p.Output, req.Duration())
		return d, nil
	}

	dims := negotiate.Dimensions(
		negotiate.Geometry{Width: src.Video.Width, Height: src.Video.Height, PixelAspectRatio: src.Video.PixelAspectRatio},
		negotiate.Constraints{MaxHeight: t.MaxHeight, AspectRatio: t.AspectRatio, SquarePixels: t.SquarePixels || t.Container.RequiresSquarePixels()},
	)
	concat := len(req.Sources) > 1
	encode := concat || negotiate.VideoChanged(src.Video, t, dims, p.Subtitle.burns())

	var enc *domain.HWAccelConfig
	if encode {
		enc = b.encoder(p.slotKey(req.Job), t.Codec)
		d.Accelerator = enc.Accelerator
	}
	d.Copy = !encode

	hwDecode := enc != nil && enc.Accelerator.IsHardware() && !concat && !dims.AspectChanged && !p.Subtitle.burns()
	var decodeFlags []string
	if hwDecode {
		decodeFlags = enc.DecodeFlags
	}

	b.InitInputs(d, paths, decodeFlags...)
	p.Subtitle.applyInputs(d)
	b.AddTime(d, p.TimeStart, p.Duration)

	graph := b.buildGraph(d, req, t, dims, enc, hwDecode, p.Subtitle)
	b.AddStreamMap(d, req, t, graph, p.Subtitle)
	b.AddVideo(d, src.Video, t, dims, enc, graph)
	audioCopied, audioCodec := b.AddAudio(d, req, t, concat)
	b.AddBitstreamFilters(d, src, t, !encode, audioCopied, audioCodec)
	d.OutputArgs = append(d.OutputArgs, p.Subtitle.outputArgs()...)
	b.AddOutput(d, t, p.Output, req.Duration())
	return d, nil
}

func resolveVideo(src domain.VideoSource, t domain.VideoTarget) domain.VideoTarget {
	if t.Codec == domain.VideoCodecUnknown {
		t.Codec = src.Video.Codec
	}
	if t.Container == domain.VideoContainerUnknown {
		t.Container = src.Container
	}
	return t
}

func (b *Builder) buildGraph(d *TranscodeData, req *domain.VideoRequest, t domain.VideoTarget, dims negotiate.Result, enc *domain.HWAccelConfig, hwDecode bool, sub *SubtitleFragment) videoGraph {
	g := videoGraph{videoLabel: "0:v:0"}
	if enc == nil {
		return g
	}

	concat := len(req.Sources) > 1
	var chain []string
	if !concat {
		scaleFormat := ""
		if hwDecode {
			scaleFormat = enc.ScaleFilter
		}
		chain = dims.Filters(req.Source().Video.PixelAspectRatio, scaleFormat)
	}
	if sub != nil && sub.TextFilter != "" {
		chain = append(chain, sub.TextFilter)
	}
	if enc.Accelerator == domain.AccelVAAPI && !hwDecode {
		d.GlobalArgs = append(d.GlobalArgs, "-vaapi_device", "/dev/dri/renderD128")
		chain = append(chain, "format=nv12", "hwupload")
	}

	overlay := sub != nil && sub.Overlay != nil
	if !concat && !overlay {
		g.filters = chain
		return g
	}

	label := "[0:v:0]"
	if overlay {
		g.complex = append(g.complex, fmt.Sprintf("%s%soverlay[vsub]", label, sub.overlayLabel(d)))
		label = "[vsub]"
	}

	if concat {
		withAudio := true
		for _, s := range req.Sources {
			if len(s.Audios) == 0 {
				withAudio = false
			}
		}

		var pads strings.Builder
		for i := range req.Sources {
			in := fmt.Sprintf("[%d:v:0]", i)
			if i == 0 && overlay {
				in = "[vsub]"
			}
			norm := fmt.Sprintf("[vn%d]", i)
			g.complex = append(g.complex, fmt.Sprintf(
				"%sscale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1%s",
				in, dims.Width, dims.Height, dims.Width, dims.Height, norm,
			))
			pads.WriteString(norm)
			if withAudio {
				fmt.Fprintf(&pads, "[%d:a:0]", i)
			}
		}

		a, outs := 0, "[vcat]"
		if withAudio {
			a, outs = 1, "[vcat][acat]"
			g.audioLabel = "[acat]"
		}
		g.complex = append(g.complex, fmt.Sprintf("%sconcat=n=%d:v=1:a=%d%s", pads.String(), len(req.Sources), a, outs))
		label = "[vcat]"
	}

	if len(chain) > 0 {
		g.complex = append(g.complex, label+strings.Join(chain, ",")+"[vout]")
		label = "[vout]"
	}
	g.videoLabel = label
	return g
}

// AddStreamMap selects the video, audio and subtitle streams of the output.
func (b *Builder) AddStreamMap(d *TranscodeData, req *domain.VideoRequest, t domain.VideoTarget, g videoGraph, sub *SubtitleFragment) {
	d.OutputArgs = append(d.OutputArgs, "-map", g.videoLabel)

	switch {
	case g.audioLabel != "":
		d.OutputArgs = append(d.OutputArgs, "-map", g.audioLabel)
	case len(req.Source().Audios) == 0:
	case t.AudioIndex == domain.AllAudioStreams:
		d.OutputArgs = append(d.OutputArgs, "-map", "0:a?")
	default:
		d.OutputArgs = append(d.OutputArgs, "-map", fmt.Sprintf("0:a:%d?", audioPosition(req.Source(), t.AudioIndex)))
	}

	d.OutputArgs = append(d.OutputArgs, sub.mapArgs(d)...)
}

// AddVideo emits the copy flags or the full encoder arguments.
func (b *Builder) AddVideo(d *TranscodeData, src domain.VideoStream, t domain.VideoTarget, dims negotiate.Result, enc *domain.HWAccelConfig, g videoGraph) {
	if enc == nil {
		d.GlobalArgs = append(d.GlobalArgs, "-fflags", "+genpts")
		d.OutputArgs = append(d.OutputArgs, "-c:v", "copy")
		return
	}

	args := append([]string{}, enc.EncodeFlags...)
	accel := enc.Accelerator

	if accel.IsHardware() || t.Codec == domain.VideoCodecH264 || t.Codec == domain.VideoCodecH265 {
		if preset := negotiate.Preset(accel, t.Preset); preset != "" {
			args = append(args, "-preset", preset)
		}
	}
	if !accel.IsHardware() {
		pixFmt := t.PixelFormat
		if pixFmt == domain.PixelFormatUnknown {
			pixFmt = domain.PixelFormatYUV420P
		}
		args = append(args, "-pix_fmt", string(pixFmt))
	}
	if t.Profile != "" {
		args = append(args, "-profile:v", strings.ToLower(t.Profile))
	}
	if t.Level > 0 {
		args = append(args, "-level:v", strconv.FormatFloat(t.Level, 'f', -1, 64))
	}

	switch {
	case t.Bitrate > 0:
		args = append(args, bitrateArgs(t.Bitrate)...)
		if accel == domain.AccelCUDA && (t.Codec == domain.VideoCodecH264 || t.Codec == domain.VideoCodecH265) {
			args = append(args, "-rc", "cbr")
		}
	default:
		args = append(args, qualityArgs(accel, t, dims)...)
	}

	if len(g.filters) > 0 {
		args = append(args, "-vf", strings.Join(g.filters, ","))
	}
	if len(g.complex) > 0 {
		d.OutputFilter = append(d.OutputFilter, g.complex...)
	}

	if t.Container == domain.VideoContainerHLS {
		seg := b.opts.SegmentSeconds
		args = append(args, "-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", seg))
		if src.FrameRate > 0 {
			args = append(args, "-g", strconv.Itoa(int(math.Round(src.FrameRate*float64(seg)))))
		}
		if accel == domain.AccelCUDA {
			args = append(args, "-forced-idr", "1")
		}
	}

	if !accel.IsHardware() && t.Codec != domain.VideoCodecH264 && t.Codec != domain.VideoCodecH265 && b.opts.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(b.opts.Threads))
	}
	d.OutputArgs = append(d.OutputArgs, args...)
}

func bitrateArgs(kbit int) []string {
	return []string{"-b:v", kbps(kbit), "-maxrate:v", kbps(kbit), "-bufsize:v", kbps(2 * kbit)}
}

func qualityArgs(accel domain.Accelerator, t domain.VideoTarget, dims negotiate.Result) []string {
	q := strconv.Itoa(negotiate.QualityFactor(t.Codec, t.Quality, t.QualityFactor))
	switch accel {
	case domain.AccelCUDA:
		return []string{"-cq", q}
	case domain.AccelQSV:
		return []string{"-global_quality", q}
	case domain.AccelVAAPI:
		return []string{"-qp", q}
	case domain.AccelVideoToolbox:
		return bitrateArgs(negotiate.EstimateBitrate(dims.Height))
	}

	if negotiate.ScaleFor(t.Codec) == negotiate.ScaleQScale {
		return []string{"-qscale:v", q}
	}
	switch t.Codec {
	case domain.VideoCodecH265:
		return []string{"-x265-params", "crf=" + q}
	case domain.VideoCodecVP8, domain.VideoCodecVP9:
		return []string{"-crf", q, "-b:v", "0"}
	}
	return []string{"-crf", q}
}

// AddAudio emits the audio arguments of a video job and reports whether the
// stream is copied, along with the codec that reaches the output.
func (b *Builder) AddAudio(d *TranscodeData, req *domain.VideoRequest, t domain.VideoTarget, force bool) (bool, domain.AudioCodec) {
	src := req.Source()
	if len(src.Audios) == 0 {
		d.OutputArgs = append(d.OutputArgs, "-an")
		return false, domain.AudioCodecUnknown
	}
	a := src.Audios[audioPosition(src, t.AudioIndex)]

	codec := t.AudioCodec
	if codec == domain.AudioCodecUnknown {
		codec = a.Codec
	}
	codec = containerAudioCodec(t.Container, codec)

	if !force && !negotiate.AudioChanged(a, codec, t.AudioBitrate, t.AudioFrequency, t.ForceStereo) {
		d.OutputArgs = append(d.OutputArgs, "-c:a", "copy")
		return true, a.Codec
	}

	d.OutputArgs = append(d.OutputArgs, audioEncodeArgs(a, codec, domain.AudioContainerUnknown, t.AudioBitrate, t.AudioFrequency, t.ForceStereo)...)
	return false, codec
}

func audioEncodeArgs(src domain.AudioStream, codec domain.AudioCodec, container domain.AudioContainer, bitrate, frequency int, forceStereo bool) []string {
	args := []string{"-c:a", audioEncoder(codec, container)}
	if codec == domain.AudioCodecDTS {
		args = append(args, "-strict", "experimental")
	}
	args = append(args, "-ar", strconv.Itoa(negotiate.AudioFrequency(src, frequency, codec)))
	if !isLossless(codec) {
		args = append(args, "-b:a", kbps(negotiate.AudioBitrate(src, bitrate)))
	}
	return append(args, "-ac", strconv.Itoa(negotiate.AudioChannels(src, codec, forceStereo)))
}

func audioPosition(src domain.VideoSource, index int) int {
	if index < 0 || index >= len(src.Audios) {
		return 0
	}
	return index
}

// AddBitstreamFilters appends the filters required to move the streams
// between container families. Applies to copy and encode paths alike.
func (b *Builder) AddBitstreamFilters(d *TranscodeData, src domain.VideoSource, t domain.VideoTarget, videoCopied, audioCopied bool, audioCodec domain.AudioCodec) {
	d.OutputArgs = append(d.OutputArgs, bitstreamArgs("v", string(t.Codec), videoCopied, src.Container, t.Container)...)
	if audioCodec != domain.AudioCodecUnknown {
		d.OutputArgs = append(d.OutputArgs, bitstreamArgs("a", string(audioCodec), audioCopied, src.Container, t.Container)...)
	}
}
