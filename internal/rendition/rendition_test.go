package rendition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/domain"
)

func TestLadderCopyRungAndClamping(t *testing.T) {
	src := domain.VideoStream{Codec: domain.VideoCodecH264, Width: 1920, Height: 1080, Bitrate: 10000}

	ladder := Ladder(src)
	require.Len(t, ladder, 4)

	top := ladder[0]
	assert.Equal(t, "1080p", top.Name)
	assert.True(t, top.Copy)
	assert.Equal(t, 8000, top.Bitrate, "clamped to the 1080p cap")

	r720, ok := Find(ladder, "720p")
	require.True(t, ok)
	assert.Equal(t, 1280, r720.Width)
	assert.Equal(t, 4000, r720.Bitrate)
	assert.False(t, r720.Copy)

	_, ok = Find(ladder, "2160p")
	assert.False(t, ok)
}

func TestLadderOddSourceGetsOwnRung(t *testing.T) {
	src := domain.VideoStream{Codec: domain.VideoCodecH265, Width: 1920, Height: 800}

	ladder := Ladder(src)
	require.NotEmpty(t, ladder)
	assert.Equal(t, "800p", ladder[0].Name)
	assert.False(t, ladder[0].Copy, "hevc is re-encoded")

	for _, r := range ladder {
		assert.Zero(t, r.Width%2, r.Name)
		assert.LessOrEqual(t, r.Height, 800)
	}

	r720, _ := Find(ladder, "720p")
	assert.Equal(t, 1728, r720.Width)
}

func TestLadderWithoutDimensions(t *testing.T) {
	assert.Nil(t, Ladder(domain.VideoStream{}))
}

func TestRenditionTarget(t *testing.T) {
	base := domain.VideoTarget{Container: domain.VideoContainerHLS}

	r := Rendition{Name: "720p", Width: 1280, Height: 720, Bitrate: 3000}
	got := r.Target(base)
	assert.Equal(t, 720, got.MaxHeight)
	assert.Equal(t, 3000, got.Bitrate)
	assert.Equal(t, domain.VideoCodecH264, got.Codec)

	assert.Equal(t, base, Rendition{Copy: true}.Target(base))
}

func TestRenditionVariant(t *testing.T) {
	src := domain.VideoStream{Codec: domain.VideoCodecH265, FrameRate: 23.976}
	r := Rendition{Name: "480p", Width: 854, Height: 480, Bitrate: 1200}

	v := r.Variant(src, domain.AudioCodecAAC, 192, "480p/playlist.m3u8")
	assert.Equal(t, 1392000, v.Bandwidth)
	assert.Equal(t, domain.VideoCodecH264, v.VideoCodec)
	assert.Equal(t, 23.976, v.FrameRate)
	assert.Equal(t, "480p/playlist.m3u8", v.URI)
}
