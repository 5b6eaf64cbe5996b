package ffmpeg

import "github.com/eleven-am/transcoder/internal/domain"

var audioEncoders = map[domain.AudioCodec]string{
	domain.AudioCodecAAC:    "aac",
	domain.AudioCodecAC3:    "ac3",
	domain.AudioCodecEAC3:   "eac3",
	domain.AudioCodecMP3:    "libmp3lame",
	domain.AudioCodecMP2:    "mp2",
	domain.AudioCodecDTS:    "dca",
	domain.AudioCodecFLAC:   "flac",
	domain.AudioCodecLPCM:   "pcm_s16be",
	domain.AudioCodecOpus:   "libopus",
	domain.AudioCodecVorbis: "libvorbis",
	domain.AudioCodecWMA:    "wmav2",
}

func audioEncoder(codec domain.AudioCodec, container domain.AudioContainer) string {
	if codec == domain.AudioCodecLPCM && container == domain.AudioContainerWAV {
		return "pcm_s16le"
	}
	if enc, ok := audioEncoders[codec]; ok {
		return enc
	}
	return string(codec)
}

func isLossless(codec domain.AudioCodec) bool {
	return codec == domain.AudioCodecFLAC || codec == domain.AudioCodecLPCM
}

// videoContainerAudio lists the audio codecs a container can carry. The
// first entry is used when the source codec does not fit.
var videoContainerAudio = map[domain.VideoContainer][]domain.AudioCodec{
	domain.VideoContainerHLS:    {domain.AudioCodecAAC, domain.AudioCodecAC3, domain.AudioCodecEAC3, domain.AudioCodecMP3},
	domain.VideoContainerMPEGTS: {domain.AudioCodecAAC, domain.AudioCodecAC3, domain.AudioCodecEAC3, domain.AudioCodecMP3, domain.AudioCodecMP2, domain.AudioCodecDTS, domain.AudioCodecLPCM},
	domain.VideoContainerM2TS:   {domain.AudioCodecAAC, domain.AudioCodecAC3, domain.AudioCodecEAC3, domain.AudioCodecMP3, domain.AudioCodecMP2, domain.AudioCodecDTS, domain.AudioCodecLPCM},
	domain.VideoContainerMP4:    {domain.AudioCodecAAC, domain.AudioCodecAC3, domain.AudioCodecEAC3, domain.AudioCodecMP3, domain.AudioCodecOpus, domain.AudioCodecFLAC},
	domain.VideoContainer3GP:    {domain.AudioCodecAAC},
	domain.VideoContainerWebM:   {domain.AudioCodecOpus, domain.AudioCodecVorbis},
	domain.VideoContainerFLV:    {domain.AudioCodecAAC, domain.AudioCodecMP3},
	domain.VideoContainerASF:    {domain.AudioCodecWMA, domain.AudioCodecMP3},
	domain.VideoContainerAVI:    {domain.AudioCodecMP3, domain.AudioCodecAC3, domain.AudioCodecMP2, domain.AudioCodecDTS, domain.AudioCodecLPCM},
}

// containerAudioCodec returns codec if the container carries it, otherwise
// the container's preferred codec. Containers without an entry take anything.
func containerAudioCodec(container domain.VideoContainer, codec domain.AudioCodec) domain.AudioCodec {
	allowed, ok := videoContainerAudio[container]
	if !ok {
		if codec == domain.AudioCodecUnknown {
			return domain.AudioCodecAAC
		}
		return codec
	}
	for _, c := range allowed {
		if c == codec {
			return codec
		}
	}
	return allowed[0]
}

type bsfPath int

const (
	anyPath bsfPath = iota
	copyPath
	encodePath
)

// bitstreamRule adds a bitstream filter when a stream of codec moves from
// one container family to another.
type bitstreamRule struct {
	stream string
	codec  string
	path   bsfPath
	match  func(src, dst domain.VideoContainer) bool
	args   []string
}

func intoTransportStream(src, dst domain.VideoContainer) bool {
	return !src.IsMPEGTS() && dst.IsMPEGTS()
}

var bitstreamRules = []bitstreamRule{
	{
		stream: "v", codec: string(domain.VideoCodecH264), path: copyPath,
		match: intoTransportStream,
		args:  []string{"-bsf:v", "h264_mp4toannexb"},
	},
	{
		stream: "v", codec: string(domain.VideoCodecH265), path: copyPath,
		match: intoTransportStream,
		args:  []string{"-bsf:v", "hevc_mp4toannexb"},
	},
	{
		stream: "v", codec: string(domain.VideoCodecH264), path: encodePath,
		match: func(_, dst domain.VideoContainer) bool { return dst.IsMPEGTS() },
		args:  []string{"-bsf:v", "h264_mp4toannexb", "-flags", "-global_header"},
	},
	{
		stream: "v", codec: string(domain.VideoCodecMPEG4), path: copyPath,
		match: func(src, dst domain.VideoContainer) bool {
			return src == domain.VideoContainerAVI && dst != domain.VideoContainerAVI
		},
		args: []string{"-bsf:v", "mpeg4_unpack_bframes"},
	},
	{
		stream: "a", codec: string(domain.AudioCodecAAC), path: copyPath,
		match: func(src, dst domain.VideoContainer) bool {
			switch dst {
			case domain.VideoContainerMP4, domain.VideoContainer3GP, domain.VideoContainerFLV:
				return src.IsMPEGTS()
			}
			return false
		},
		args: []string{"-bsf:a", "aac_adtstoasc"},
	},
}

func bitstreamArgs(stream, codec string, copied bool, src, dst domain.VideoContainer) []string {
	var args []string
	for _, r := range bitstreamRules {
		if r.stream != stream || r.codec != codec {
			continue
		}
		if (r.path == copyPath && !copied) || (r.path == encodePath && copied) {
			continue
		}
		if r.match(src, dst) {
			args = append(args, r.args...)
		}
	}
	return args
}

// subtitleEncoders is the -c:s value that writes each codec.
var subtitleEncoders = map[domain.SubtitleCodec]string{
	domain.SubtitleCodecSRT:     "srt",
	domain.SubtitleCodecASS:     "ass",
	domain.SubtitleCodecSSA:     "ssa",
	domain.SubtitleCodecWebVTT:  "webvtt",
	domain.SubtitleCodecMovText: "mov_text",
}

// SubtitleEncoder returns the encoder for codec, or "" if ffmpeg cannot
// produce it.
func SubtitleEncoder(codec domain.SubtitleCodec) string {
	return subtitleEncoders[codec]
}
