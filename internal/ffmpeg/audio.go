package ffmpeg

import (
	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/negotiate"
)

// Audio builds the command for an audio-only request.
func (b *Builder) Audio(req *domain.AudioRequest, p Params) (*TranscodeData, error) {
	if req.Source.Path == "" {
		return nil, negotiationError(req.TranscodeID, ErrNoSource)
	}
	t := req.Target
	if t.Container == domain.AudioContainerUnknown {
		t.Container = req.Source.Container
	}
	codec := t.Codec
	if codec == domain.AudioCodecUnknown {
		codec = req.Source.Stream.Codec
	}
	if codec == domain.AudioCodecUnknown {
		return nil, negotiationError(req.TranscodeID, ErrNoCodec)
	}

	d := NewTranscodeData(req.Job)
	if d.Override != "" {
		d.AddInput(0, req.Source.Path)
		d.OutputPath = fileTarget(p.Output)
		return d, nil
	}

	b.InitInputs(d, []string{req.Source.Path})
	b.AddTime(d, p.TimeStart, p.Duration)
	d.OutputArgs = append(d.OutputArgs, "-vn", "-map", "0:a:0")

	if negotiate.AudioChanged(req.Source.Stream, codec, t.Bitrate, t.Frequency, t.ForceStereo) {
		d.OutputArgs = append(d.OutputArgs, audioEncodeArgs(req.Source.Stream, codec, t.Container, t.Bitrate, t.Frequency, t.ForceStereo)...)
	} else {
		d.Copy = true
		d.OutputArgs = append(d.OutputArgs, "-c:a", "copy")
	}

	if muxer := t.Container.Muxer(); muxer != "" {
		d.OutputArgs = append(d.OutputArgs, "-f", muxer)
	}
	if t.Container == domain.AudioContainerMP3 {
		d.OutputArgs = append(d.OutputArgs, "-id3v2_version", "3")
	}
	d.OutputPath = fileTarget(Output{Path: p.Output.Path, Pipe: p.Output.Pipe || t.Live})
	return d, nil
}
