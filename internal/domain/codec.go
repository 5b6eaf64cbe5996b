package domain

type VideoCodec string

const (
	VideoCodecUnknown VideoCodec = ""
	VideoCodecH264    VideoCodec = "h264"
	VideoCodecH265    VideoCodec = "h265"
	VideoCodecMPEG2   VideoCodec = "mpeg2video"
	VideoCodecMPEG4   VideoCodec = "mpeg4"
	VideoCodecVP8     VideoCodec = "vp8"
	VideoCodecVP9     VideoCodec = "vp9"
	VideoCodecAV1     VideoCodec = "av1"
	VideoCodecWMV     VideoCodec = "wmv"
	VideoCodecMJPEG   VideoCodec = "mjpeg"
)

type AudioCodec string

const (
	AudioCodecUnknown AudioCodec = ""
	AudioCodecAAC     AudioCodec = "aac"
	AudioCodecAC3     AudioCodec = "ac3"
	AudioCodecEAC3    AudioCodec = "eac3"
	AudioCodecMP3     AudioCodec = "mp3"
	AudioCodecMP2     AudioCodec = "mp2"
	AudioCodecDTS     AudioCodec = "dts"
	AudioCodecFLAC    AudioCodec = "flac"
	AudioCodecLPCM    AudioCodec = "lpcm"
	AudioCodecOpus    AudioCodec = "opus"
	AudioCodecVorbis  AudioCodec = "vorbis"
	AudioCodecWMA     AudioCodec = "wma"
)

type SubtitleCodec string

const (
	SubtitleCodecUnknown  SubtitleCodec = ""
	SubtitleCodecSRT      SubtitleCodec = "srt"
	SubtitleCodecASS      SubtitleCodec = "ass"
	SubtitleCodecSSA      SubtitleCodec = "ssa"
	SubtitleCodecWebVTT   SubtitleCodec = "webvtt"
	SubtitleCodecMovText  SubtitleCodec = "mov_text"
	SubtitleCodecSMI      SubtitleCodec = "smi"
	SubtitleCodecMicroDVD SubtitleCodec = "microdvd"
	SubtitleCodecVobSub   SubtitleCodec = "vobsub"
	SubtitleCodecDVBSub   SubtitleCodec = "dvbsub"
	SubtitleCodecPGS      SubtitleCodec = "pgs"
)

// IsImage reports whether the subtitle is bitmap based and has to be
// overlaid rather than rendered from text.
func (c SubtitleCodec) IsImage() bool {
	switch c {
	case SubtitleCodecVobSub, SubtitleCodecDVBSub, SubtitleCodecPGS:
		return true
	}
	return false
}

func (c SubtitleCodec) Extension() string {
	switch c {
	case SubtitleCodecSRT:
		return "srt"
	case SubtitleCodecASS:
		return "ass"
	case SubtitleCodecSSA:
		return "ssa"
	case SubtitleCodecWebVTT:
		return "vtt"
	case SubtitleCodecMovText:
		return "mp4"
	case SubtitleCodecSMI:
		return "smi"
	case SubtitleCodecMicroDVD:
		return "sub"
	case SubtitleCodecVobSub:
		return "idx"
	case SubtitleCodecPGS:
		return "sup"
	}
	return "sub"
}

func (c SubtitleCodec) Mime() string {
	switch c {
	case SubtitleCodecSRT:
		return "text/srt"
	case SubtitleCodecWebVTT:
		return "text/vtt"
	case SubtitleCodecASS, SubtitleCodecSSA:
		return "text/x-ssa"
	case SubtitleCodecSMI:
		return "smi/caption"
	}
	return "text/plain"
}

type PixelFormat string

const (
	PixelFormatUnknown   PixelFormat = ""
	PixelFormatYUV420P   PixelFormat = "yuv420p"
	PixelFormatYUV422P   PixelFormat = "yuv422p"
	PixelFormatYUV444P   PixelFormat = "yuv444p"
	PixelFormatNV12      PixelFormat = "nv12"
	PixelFormatYUV420P10 PixelFormat = "yuv420p10le"
)
