package probe

import (
	"path/filepath"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
)

var videoCodecs = map[string]domain.VideoCodec{
	"h264":       domain.VideoCodecH264,
	"hevc":       domain.VideoCodecH265,
	"mpeg2video": domain.VideoCodecMPEG2,
	"mpeg4":      domain.VideoCodecMPEG4,
	"vp8":        domain.VideoCodecVP8,
	"vp9":        domain.VideoCodecVP9,
	"av1":        domain.VideoCodecAV1,
	"wmv1":       domain.VideoCodecWMV,
	"wmv2":       domain.VideoCodecWMV,
	"wmv3":       domain.VideoCodecWMV,
	"vc1":        domain.VideoCodecWMV,
	"mjpeg":      domain.VideoCodecMJPEG,
}

var audioCodecs = map[string]domain.AudioCodec{
	"aac":    domain.AudioCodecAAC,
	"ac3":    domain.AudioCodecAC3,
	"eac3":   domain.AudioCodecEAC3,
	"mp3":    domain.AudioCodecMP3,
	"mp2":    domain.AudioCodecMP2,
	"dts":    domain.AudioCodecDTS,
	"flac":   domain.AudioCodecFLAC,
	"opus":   domain.AudioCodecOpus,
	"vorbis": domain.AudioCodecVorbis,
	"wmav1":  domain.AudioCodecWMA,
	"wmav2":  domain.AudioCodecWMA,
	"wmapro": domain.AudioCodecWMA,
}

var subtitleCodecs = map[string]domain.SubtitleCodec{
	"subrip":            domain.SubtitleCodecSRT,
	"srt":               domain.SubtitleCodecSRT,
	"ass":               domain.SubtitleCodecASS,
	"ssa":               domain.SubtitleCodecSSA,
	"webvtt":            domain.SubtitleCodecWebVTT,
	"mov_text":          domain.SubtitleCodecMovText,
	"sami":              domain.SubtitleCodecSMI,
	"microdvd":          domain.SubtitleCodecMicroDVD,
	"dvd_subtitle":      domain.SubtitleCodecVobSub,
	"dvb_subtitle":      domain.SubtitleCodecDVBSub,
	"hdmv_pgs_subtitle": domain.SubtitleCodecPGS,
}

var subtitleExtensions = map[string]domain.SubtitleCodec{
	".srt": domain.SubtitleCodecSRT,
	".ass": domain.SubtitleCodecASS,
	".ssa": domain.SubtitleCodecSSA,
	".vtt": domain.SubtitleCodecWebVTT,
	".smi": domain.SubtitleCodecSMI,
	".sub": domain.SubtitleCodecMicroDVD,
	".idx": domain.SubtitleCodecVobSub,
	".sup": domain.SubtitleCodecPGS,
}

func videoCodec(name string) domain.VideoCodec {
	return videoCodecs[name]
}

// audioCodec maps every raw PCM variant to LPCM.
func audioCodec(name string) domain.AudioCodec {
	if strings.HasPrefix(name, "pcm_") {
		return domain.AudioCodecLPCM
	}
	return audioCodecs[name]
}

func subtitleCodec(name string) domain.SubtitleCodec {
	return subtitleCodecs[name]
}

// videoContainer resolves ffprobe's comma separated demuxer list. Demuxers
// shared by several containers are told apart by the file extension.
func videoContainer(formatName, path string) domain.VideoContainer {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, f := range strings.Split(formatName, ",") {
		switch f {
		case "matroska":
			if ext == "webm" {
				return domain.VideoContainerWebM
			}
			return domain.VideoContainerMatroska
		case "webm":
			return domain.VideoContainerWebM
		case "mov", "mp4":
			if ext == "3gp" {
				return domain.VideoContainer3GP
			}
			return domain.VideoContainerMP4
		case "mpegts":
			switch ext {
			case "m2ts", "mts":
				return domain.VideoContainerM2TS
			case "wtv":
				return domain.VideoContainerWTV
			}
			return domain.VideoContainerMPEGTS
		case "avi":
			return domain.VideoContainerAVI
		case "asf":
			return domain.VideoContainerASF
		case "flv":
			return domain.VideoContainerFLV
		case "mpeg", "mpegvideo":
			return domain.VideoContainerMPEGPS
		case "wtv":
			return domain.VideoContainerWTV
		case "hls":
			return domain.VideoContainerHLS
		}
	}
	return domain.VideoContainerUnknown
}

func audioContainer(formatName, path string) domain.AudioContainer {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, f := range strings.Split(formatName, ",") {
		switch f {
		case "mp3":
			return domain.AudioContainerMP3
		case "aac":
			return domain.AudioContainerADTS
		case "ac3", "eac3":
			return domain.AudioContainerAC3
		case "flac":
			return domain.AudioContainerFLAC
		case "wav":
			return domain.AudioContainerWAV
		case "ogg":
			return domain.AudioContainerOgg
		case "mov", "mp4", "m4a":
			return domain.AudioContainerMP4
		case "asf":
			return domain.AudioContainerASF
		case "s16be":
			return domain.AudioContainerLPCM
		}
	}
	if ext == "wma" {
		return domain.AudioContainerASF
	}
	return domain.AudioContainerUnknown
}

func imageContainer(codecName string) domain.ImageContainer {
	switch codecName {
	case "mjpeg":
		return domain.ImageContainerJPEG
	case "png":
		return domain.ImageContainerPNG
	case "gif":
		return domain.ImageContainerGIF
	case "bmp":
		return domain.ImageContainerBMP
	case "webp":
		return domain.ImageContainerWebP
	}
	return domain.ImageContainerUnknown
}
