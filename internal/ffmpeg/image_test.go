package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/domain"
)

func TestImage_CopyWhenUnchanged(t *testing.T) {
	b := NewBuilder(Options{}, nil)
	d, err := b.Image(&domain.ImageRequest{
		Job:    domain.Job{TranscodeID: "img"},
		Source: domain.ImageSource{Path: "/p.jpg", Container: domain.ImageContainerJPEG, Width: 800, Height: 600},
		Target: domain.ImageTarget{Container: domain.ImageContainerJPEG, MaxWidth: 1920},
	}, Params{Output: Output{Path: "/cache/p.jpg"}})
	require.NoError(t, err)
	assert.True(t, d.Copy)

	args, _ := d.Args()
	assert.Equal(t, "image2pipe", valueAfter(args, "-f"))
	assert.Equal(t, "copy", valueAfter(args, "-c:v"))
	assert.Equal(t, "/cache/p.jpg", args[len(args)-1])
}

func TestImage_RotateScaleAndQuality(t *testing.T) {
	b := NewBuilder(Options{}, nil)
	d, err := b.Image(&domain.ImageRequest{
		Job: domain.Job{TranscodeID: "img"},
		Source: domain.ImageSource{
			Path: "/p.jpg", Container: domain.ImageContainerJPEG,
			Width: 4000, Height: 3000, Orientation: 6,
		},
		Target: domain.ImageTarget{
			Container: domain.ImageContainerJPEG, MaxWidth: 1000, MaxHeight: 1000,
			AutoRotate: true, Quality: domain.QualityBest,
		},
	}, Params{Output: Output{Path: "/cache/p.jpg"}})
	require.NoError(t, err)
	assert.False(t, d.Copy)

	args, _ := d.Args()
	assert.Equal(t, "mjpeg", valueAfter(args, "-c:v"))
	assert.Equal(t, "transpose=1,scale=750:1000", valueAfter(args, "-vf"))
	assert.Equal(t, "2", valueAfter(args, "-q:v"))
	assert.Contains(t, args, "image2")
}

func TestImage_NoSource(t *testing.T) {
	b := NewBuilder(Options{}, nil)
	_, err := b.Image(&domain.ImageRequest{}, Params{})
	assert.ErrorIs(t, err, ErrNoSource)
}
