// Package negotiate computes the target geometry, quality and copy decisions
// for a transcode. Everything here is pure: no I/O, no clocks, no globals
// mutated at call time.
package negotiate

import (
	"fmt"
	"math"
)

const (
	DefaultAspectRatio = 16.0 / 9.0
	DefaultMaxHeight   = 1080
)

// AspectRatioTolerance is the largest difference between the computed and
// the requested display aspect ratio that still counts as equal. It also
// decides whether a pixel aspect ratio is square.
var AspectRatioTolerance = 0.01

type Geometry struct {
	Width            int
	Height           int
	PixelAspectRatio float64
}

type Constraints struct {
	MaxHeight    int
	AspectRatio  float64
	SquarePixels bool
}

// Result is the negotiated canvas. Content is the picture inside the canvas;
// the difference between the two is padding.
type Result struct {
	Width            int
	Height           int
	ContentWidth     int
	ContentHeight    int
	PixelAspectRatio float64

	PixelARChanged bool
	AspectChanged  bool
	HeightChanged  bool
}

func (r Result) Changed() bool {
	return r.PixelARChanged || r.AspectChanged || r.HeightChanged
}

func Dimensions(src Geometry, c Constraints) Result {
	par := src.PixelAspectRatio
	if par <= 0 {
		par = 1
	}
	maxHeight := c.MaxHeight
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	target := c.AspectRatio
	if target <= 0 {
		target = DefaultAspectRatio
	}

	r := Result{
		Width:            src.Width,
		Height:           src.Height,
		ContentWidth:     src.Width,
		ContentHeight:    src.Height,
		PixelAspectRatio: par,
	}
	if src.Width <= 0 || src.Height <= 0 {
		return r
	}

	if c.SquarePixels && !IsSquare(par) {
		r.Width = round(float64(r.Width) * par)
		r.ContentWidth = r.Width
		par = 1
		r.PixelAspectRatio = 1
		r.PixelARChanged = true
	}

	current := par * float64(r.Width) / float64(r.Height)
	if math.Abs(current-target) > AspectRatioTolerance {
		if target > current {
			r.Width = round(float64(r.Height) * target / par)
		} else {
			r.Height = round(float64(r.Width) * par / target)
		}
		r.AspectChanged = true
	}

	if r.Height > maxHeight {
		scale := float64(maxHeight) / float64(r.Height)
		r.Width = round(float64(r.Width) * scale)
		r.ContentWidth = round(float64(r.ContentWidth) * scale)
		r.ContentHeight = round(float64(r.ContentHeight) * scale)
		r.Height = maxHeight
		r.HeightChanged = true
	}

	r.Width = even(r.Width)
	r.ContentWidth = even(r.ContentWidth)
	return r
}

// Filters returns the video filter chain for the result. scaleFormat is a
// printf pattern taking width and height; empty means the software scaler.
func (r Result) Filters(sourcePAR float64, scaleFormat string) []string {
	if scaleFormat == "" {
		scaleFormat = "scale=%d:%d"
	}

	var filters []string
	if r.HeightChanged || r.PixelARChanged {
		filters = append(filters, fmt.Sprintf(scaleFormat, r.ContentWidth, r.ContentHeight))
	}
	if r.AspectChanged {
		x := (r.Width - r.ContentWidth) / 2
		y := (r.Height - r.ContentHeight) / 2
		filters = append(filters,
			fmt.Sprintf("pad=%d:%d:%d:%d:black", r.Width, r.Height, x, y),
			fmt.Sprintf("setdar=%d/%d", r.Width, r.Height),
		)
	}
	switch {
	case r.PixelARChanged:
		filters = append(filters, "setsar=1")
	case sourcePAR > 0 && !IsSquare(sourcePAR):
		filters = append(filters, fmt.Sprintf("setsar=%.2f", sourcePAR))
	}
	return filters
}

func IsSquare(par float64) bool {
	return par <= 0 || math.Abs(1-par) < AspectRatioTolerance
}

func round(v float64) int {
	return int(math.Round(v))
}

func even(v int) int {
	if v%2 != 0 {
		return v + 1
	}
	return v
}
