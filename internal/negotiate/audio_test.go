package negotiate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/transcoder/internal/domain"
)

func TestAudioFrequency(t *testing.T) {
	assert.Equal(t, 48000, AudioFrequency(domain.AudioStream{Frequency: 22050}, 0, domain.AudioCodecAAC))
	assert.Equal(t, 44100, AudioFrequency(domain.AudioStream{Frequency: 44100}, 0, domain.AudioCodecAAC))
	assert.Equal(t, 48000, AudioFrequency(domain.AudioStream{Frequency: 44100}, 0, domain.AudioCodecLPCM))
	assert.Equal(t, 32000, AudioFrequency(domain.AudioStream{Frequency: 44100}, 32000, domain.AudioCodecMP3))
	assert.Equal(t, 48000, AudioFrequency(domain.AudioStream{}, 0, domain.AudioCodecAAC))
}

func TestAudioBitrateAndChannels(t *testing.T) {
	assert.Equal(t, 128, AudioBitrate(domain.AudioStream{Bitrate: 128}, 0))
	assert.Equal(t, DefaultAudioBitrate, AudioBitrate(domain.AudioStream{Bitrate: 640}, 0))
	assert.Equal(t, 256, AudioBitrate(domain.AudioStream{Bitrate: 640}, 256))

	assert.Equal(t, 6, AudioChannels(domain.AudioStream{Channels: 6}, domain.AudioCodecAC3, false))
	assert.Equal(t, 2, AudioChannels(domain.AudioStream{Channels: 6}, domain.AudioCodecAC3, true))
	assert.Equal(t, 2, AudioChannels(domain.AudioStream{Channels: 6}, domain.AudioCodecMP3, false))
	assert.Equal(t, 2, AudioChannels(domain.AudioStream{}, domain.AudioCodecAAC, false))
}

func TestAudioChanged(t *testing.T) {
	src := domain.AudioStream{Codec: domain.AudioCodecAAC, Bitrate: 128, Frequency: 48000, Channels: 2}

	assert.False(t, AudioChanged(src, domain.AudioCodecUnknown, 0, 0, false))
	assert.False(t, AudioChanged(src, domain.AudioCodecAAC, 128, 48000, true))
	assert.True(t, AudioChanged(src, domain.AudioCodecMP3, 0, 0, false))
	assert.True(t, AudioChanged(src, domain.AudioCodecAAC, 192, 0, false))
	assert.True(t, AudioChanged(src, domain.AudioCodecAAC, 0, 44100, false))

	surround := domain.AudioStream{Codec: domain.AudioCodecAC3, Channels: 6}
	assert.True(t, AudioChanged(surround, domain.AudioCodecUnknown, 0, 0, true))
}

func TestImageHelpers(t *testing.T) {
	w, h := ImageSize(4000, 3000, 1920, 1080)
	assert.Equal(t, 1440, w)
	assert.Equal(t, 1080, h)

	w, h = ImageSize(800, 600, 0, 0)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	assert.Equal(t, []string{"transpose=1"}, RotationFilters(6))
	assert.Nil(t, RotationFilters(1))

	src := domain.ImageSource{Container: domain.ImageContainerJPEG, Width: 800, Height: 600, Orientation: 6}
	assert.False(t, ImageChanged(src, domain.ImageTarget{Container: domain.ImageContainerJPEG}))
	assert.True(t, ImageChanged(src, domain.ImageTarget{AutoRotate: true}))
	assert.True(t, ImageChanged(src, domain.ImageTarget{MaxWidth: 640}))
	assert.True(t, ImageChanged(src, domain.ImageTarget{Container: domain.ImageContainerPNG}))
}

func TestBandwidth(t *testing.T) {
	assert.Equal(t, 2628000, Bandwidth(2500, 128, 720))
	assert.Equal(t, (5000+DefaultAudioBitrate)*1000, Bandwidth(0, 0, 1080))
}
