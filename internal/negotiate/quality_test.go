package negotiate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/transcoder/internal/domain"
)

func TestQualityFactor(t *testing.T) {
	assert.Equal(t, 18, QualityFactor(domain.VideoCodecH264, domain.QualityBest, 0))
	assert.Equal(t, 23, QualityFactor(domain.VideoCodecH264, domain.QualityDefault, 0))
	assert.Equal(t, 32, QualityFactor(domain.VideoCodecH265, domain.QualityLow, 0))
	assert.Equal(t, 10, QualityFactor(domain.VideoCodecMPEG2, domain.QualityLow, 0))
	assert.Equal(t, 7, QualityFactor(domain.VideoCodecH264, domain.QualityCustom, 7))
	assert.Equal(t, 0, QualityFactor(domain.VideoCodecH264, domain.QualityCustom, -3))

	assert.Equal(t, ScaleCRF, ScaleFor(domain.VideoCodecVP9))
	assert.Equal(t, ScaleQScale, ScaleFor(domain.VideoCodecMPEG4))
}

func TestPreset(t *testing.T) {
	assert.Equal(t, "p4", Preset(domain.AccelCUDA, domain.PresetDefault))
	assert.Equal(t, "p7", Preset(domain.AccelCUDA, domain.PresetVerySlow))
	assert.Equal(t, "veryfast", Preset(domain.AccelQSV, domain.PresetUltraFast))
	assert.Equal(t, "slow", Preset(domain.AccelQSV, domain.PresetSlow))
	assert.Empty(t, Preset(domain.AccelVAAPI, domain.PresetFast))
	assert.Equal(t, "veryfast", Preset(domain.AccelNone, domain.PresetDefault))
	assert.Equal(t, "medium", Preset(domain.AccelNone, domain.PresetMedium))
}

func TestVideoChanged(t *testing.T) {
	src := domain.VideoStream{Codec: domain.VideoCodecH264, Width: 1280, Height: 720, Bitrate: 4000, PixelFormat: domain.PixelFormatYUV420P, Profile: "high"}
	same := Dimensions(Geometry{Width: 1280, Height: 720, PixelAspectRatio: 1}, Constraints{})

	assert.False(t, VideoChanged(src, domain.VideoTarget{}, same, false))
	assert.False(t, VideoChanged(src, domain.VideoTarget{Codec: domain.VideoCodecH264, Bitrate: 6000, Profile: "High"}, same, false))

	assert.True(t, VideoChanged(src, domain.VideoTarget{ForceEncode: true}, same, false))
	assert.True(t, VideoChanged(src, domain.VideoTarget{}, same, true))
	assert.True(t, VideoChanged(src, domain.VideoTarget{Codec: domain.VideoCodecH265}, same, false))
	assert.True(t, VideoChanged(src, domain.VideoTarget{Bitrate: 2000}, same, false))
	assert.True(t, VideoChanged(src, domain.VideoTarget{PixelFormat: domain.PixelFormatYUV444P}, same, false))
	assert.True(t, VideoChanged(src, domain.VideoTarget{Profile: "main"}, same, false))

	scaled := Dimensions(Geometry{Width: 1280, Height: 720, PixelAspectRatio: 1}, Constraints{MaxHeight: 480})
	assert.True(t, VideoChanged(src, domain.VideoTarget{}, scaled, false))
}
