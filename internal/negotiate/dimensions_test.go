package negotiate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions_DownscaleKeepsAspect(t *testing.T) {
	r := Dimensions(Geometry{Width: 1920, Height: 1080, PixelAspectRatio: 1}, Constraints{MaxHeight: 720, AspectRatio: 16.0 / 9.0})

	assert.Equal(t, 1280, r.Width)
	assert.Equal(t, 720, r.Height)
	assert.Equal(t, 1280, r.ContentWidth)
	assert.Equal(t, 720, r.ContentHeight)
	assert.False(t, r.AspectChanged)
	assert.False(t, r.PixelARChanged)
	assert.True(t, r.HeightChanged)
	assert.Equal(t, []string{"scale=1280:720"}, r.Filters(1, ""))
}

func TestDimensions_IsDeterministic(t *testing.T) {
	src := Geometry{Width: 1437, Height: 1077, PixelAspectRatio: 1.21}
	c := Constraints{MaxHeight: 576, AspectRatio: 16.0 / 9.0, SquarePixels: true}

	first := Dimensions(src, c)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Dimensions(src, c))
	}
}

func TestDimensions_WidthsAreAlwaysEven(t *testing.T) {
	pars := []float64{0, 1, 0.9, 1.333, 1.5, 32.0 / 27.0}
	for w := 101; w < 2000; w += 37 {
		for h := 75; h < 1200; h += 41 {
			for _, par := range pars {
				for _, square := range []bool{false, true} {
					r := Dimensions(Geometry{Width: w, Height: h, PixelAspectRatio: par}, Constraints{MaxHeight: 480, SquarePixels: square})
					require.Zero(t, r.Width%2, "width for %dx%d par %.3f", w, h, par)
					require.Zero(t, r.ContentWidth%2, "content width for %dx%d par %.3f", w, h, par)
					require.LessOrEqual(t, r.Height, 480)
				}
			}
		}
	}
}

func TestDimensions_PillarboxesNarrowSource(t *testing.T) {
	r := Dimensions(Geometry{Width: 1440, Height: 1080, PixelAspectRatio: 1}, Constraints{MaxHeight: 1080})

	assert.Equal(t, 1920, r.Width)
	assert.Equal(t, 1080, r.Height)
	assert.Equal(t, 1440, r.ContentWidth)
	assert.True(t, r.AspectChanged)
	assert.False(t, r.HeightChanged)
	assert.Equal(t, []string{"pad=1920:1080:240:0:black", "setdar=1920/1080"}, r.Filters(1, ""))
}

func TestDimensions_LetterboxesWideSource(t *testing.T) {
	r := Dimensions(Geometry{Width: 1920, Height: 800, PixelAspectRatio: 1}, Constraints{MaxHeight: 1080})

	assert.Equal(t, 1920, r.Width)
	assert.Equal(t, 1080, r.Height)
	assert.Equal(t, 800, r.ContentHeight)
	assert.Contains(t, r.Filters(1, ""), "pad=1920:1080:0:140:black")
}

func TestDimensions_SquarePixelsStretchWidth(t *testing.T) {
	par := 1024.0 / 720.0
	r := Dimensions(Geometry{Width: 720, Height: 576, PixelAspectRatio: par}, Constraints{SquarePixels: true})

	assert.Equal(t, 1024, r.Width)
	assert.Equal(t, 576, r.Height)
	assert.Equal(t, 1.0, r.PixelAspectRatio)
	assert.True(t, r.PixelARChanged)
	assert.False(t, r.AspectChanged)
	assert.Equal(t, []string{"scale=1024:576", "setsar=1"}, r.Filters(par, ""))
}

func TestDimensions_AnamorphicWithoutSquarePixelsKeepsSAR(t *testing.T) {
	par := 1024.0 / 720.0
	r := Dimensions(Geometry{Width: 720, Height: 576, PixelAspectRatio: par}, Constraints{})

	assert.False(t, r.Changed())
	assert.Equal(t, []string{"setsar=1.42"}, r.Filters(par, ""))
}

func TestDimensions_ToleranceIsTunable(t *testing.T) {
	orig := AspectRatioTolerance
	t.Cleanup(func() { AspectRatioTolerance = orig })

	src := Geometry{Width: 1920, Height: 1088, PixelAspectRatio: 1}
	assert.True(t, Dimensions(src, Constraints{}).AspectChanged)

	AspectRatioTolerance = 0.02
	assert.False(t, Dimensions(src, Constraints{}).AspectChanged)
}

func TestDimensions_HardwareScaleFormat(t *testing.T) {
	r := Dimensions(Geometry{Width: 3840, Height: 2160, PixelAspectRatio: 1}, Constraints{MaxHeight: 1080})
	assert.Equal(t, []string{"scale_cuda=1920:1080:format=nv12"}, r.Filters(1, "scale_cuda=%d:%d:format=nv12"))
}

func TestDimensions_UnknownGeometryIsUntouched(t *testing.T) {
	r := Dimensions(Geometry{}, Constraints{MaxHeight: 720})
	assert.False(t, r.Changed())
	assert.Zero(t, r.Width)
	assert.Empty(t, r.Filters(0, ""))
}
