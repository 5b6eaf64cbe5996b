package negotiate

import (
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
)

// QualityScale is the option a quantizer value is passed with.
type QualityScale string

const (
	ScaleCRF    QualityScale = "crf"
	ScaleQScale QualityScale = "qscale"
)

type tiers struct {
	def, best, normal, low int
}

var crfTiers = map[domain.VideoCodec]tiers{
	domain.VideoCodecH264: {def: 23, best: 18, normal: 23, low: 28},
	domain.VideoCodecH265: {def: 28, best: 22, normal: 28, low: 32},
	domain.VideoCodecVP8:  {def: 31, best: 20, normal: 31, low: 40},
	domain.VideoCodecVP9:  {def: 31, best: 20, normal: 31, low: 40},
	domain.VideoCodecAV1:  {def: 30, best: 24, normal: 30, low: 38},
}

var qscaleTiers = tiers{def: 4, best: 1, normal: 4, low: 10}

var imageTiers = tiers{def: 3, best: 2, normal: 5, low: 10}

func ScaleFor(codec domain.VideoCodec) QualityScale {
	if _, ok := crfTiers[codec]; ok {
		return ScaleCRF
	}
	return ScaleQScale
}

// QualityFactor maps a quality tier to the codec's quantizer. Custom mode
// returns the caller's factor as is.
func QualityFactor(codec domain.VideoCodec, mode domain.QualityMode, custom int) int {
	if mode == domain.QualityCustom {
		return max(custom, 0)
	}
	t, ok := crfTiers[codec]
	if !ok {
		t = qscaleTiers
	}
	return t.pick(mode)
}

func ImageQuality(mode domain.QualityMode, custom int) int {
	if mode == domain.QualityCustom {
		return max(custom, 0)
	}
	return imageTiers.pick(mode)
}

func (t tiers) pick(mode domain.QualityMode) int {
	switch mode {
	case domain.QualityBest:
		return t.best
	case domain.QualityNormal:
		return t.normal
	case domain.QualityLow:
		return t.low
	}
	return t.def
}

// Preset translates a generic preset into the accelerator's vocabulary.
// An empty result means the encoder takes no preset.
func Preset(accel domain.Accelerator, preset domain.EncodePreset) string {
	switch accel {
	case domain.AccelCUDA:
		switch preset {
		case domain.PresetUltraFast:
			return "p1"
		case domain.PresetVeryFast:
			return "p2"
		case domain.PresetFast:
			return "p3"
		case domain.PresetSlow:
			return "p6"
		case domain.PresetVerySlow:
			return "p7"
		}
		return "p4"
	case domain.AccelQSV:
		switch preset {
		case domain.PresetUltraFast, domain.PresetVeryFast, domain.PresetDefault:
			return "veryfast"
		}
		return string(preset)
	case domain.AccelVAAPI, domain.AccelVideoToolbox:
		return ""
	}
	if preset == domain.PresetDefault {
		return string(domain.PresetVeryFast)
	}
	return string(preset)
}

// VideoChanged decides whether the video stream has to be re-encoded. When it
// returns false the stream is copied unchanged.
func VideoChanged(src domain.VideoStream, t domain.VideoTarget, dims Result, burnSubtitles bool) bool {
	if t.ForceEncode || burnSubtitles {
		return true
	}
	if t.Codec != domain.VideoCodecUnknown && t.Codec != src.Codec {
		return true
	}
	if dims.Changed() {
		return true
	}
	if t.Bitrate > 0 && (src.Bitrate <= 0 || t.Bitrate < src.Bitrate) {
		return true
	}
	if t.PixelFormat != domain.PixelFormatUnknown && src.PixelFormat != domain.PixelFormatUnknown && t.PixelFormat != src.PixelFormat {
		return true
	}
	if t.Profile != "" && !strings.EqualFold(t.Profile, src.Profile) {
		return true
	}
	return false
}
