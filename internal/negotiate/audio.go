package negotiate

import "github.com/eleven-am/transcoder/internal/domain"

const (
	DefaultAudioBitrate   = 192
	DefaultAudioFrequency = 48000
	minAudioFrequency     = 44100
)

func AudioFrequency(src domain.AudioStream, target int, codec domain.AudioCodec) int {
	if target > 0 {
		return target
	}
	if codec == domain.AudioCodecLPCM || src.Frequency <= 0 || src.Frequency < minAudioFrequency {
		return DefaultAudioFrequency
	}
	return src.Frequency
}

func AudioBitrate(src domain.AudioStream, target int) int {
	if target > 0 {
		return target
	}
	if src.Bitrate > 0 && src.Bitrate < DefaultAudioBitrate {
		return src.Bitrate
	}
	return DefaultAudioBitrate
}

func AudioChannels(src domain.AudioStream, codec domain.AudioCodec, forceStereo bool) int {
	if forceStereo || src.Channels <= 0 {
		return 2
	}
	switch codec {
	case domain.AudioCodecMP3, domain.AudioCodecMP2:
		return min(src.Channels, 2)
	}
	return src.Channels
}

// AudioChanged reports whether the audio stream needs re-encoding. Unknown
// source values count as a change whenever the target pins them.
func AudioChanged(src domain.AudioStream, codec domain.AudioCodec, bitrate, frequency int, forceStereo bool) bool {
	if codec != domain.AudioCodecUnknown && codec != src.Codec {
		return true
	}
	if bitrate > 0 && bitrate != src.Bitrate {
		return true
	}
	if frequency > 0 && frequency != src.Frequency {
		return true
	}
	return forceStereo && src.Channels > 2
}
