// Package rendition derives the quality ladder a master playlist advertises
// for a source.
package rendition

import (
	"fmt"
	"math"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/negotiate"
)

// Rendition is one rung of the ladder. Bitrates are in kbit/s.
type Rendition struct {
	Name    string
	Width   int
	Height  int
	Bitrate int
	// Copy marks the source rung of a codec players take as is. Its target
	// leaves the video untouched so the builder can copy the stream.
	Copy bool
}

type bounds struct {
	min int
	max int
}

var targetHeights = []int{2160, 1080, 720, 480, 360}

var bitrateBounds = map[int]bounds{
	2160: {min: 8000, max: 20000},
	1080: {min: 2000, max: 8000},
	720:  {min: 1000, max: 4000},
	480:  {min: 500, max: 2000},
	360:  {min: 300, max: 1000},
}

var copyCodecs = map[domain.VideoCodec]bool{
	domain.VideoCodecH264: true,
}

// Ladder returns the renditions for v from the highest down. A source whose
// height is not a ladder step gets its own top rung.
func Ladder(v domain.VideoStream) []Rendition {
	if v.Width <= 0 || v.Height <= 0 {
		return nil
	}

	srcBitrate := v.Bitrate
	if srcBitrate <= 0 {
		srcBitrate = negotiate.EstimateBitrate(v.Height)
	}
	srcPixels := v.Width * v.Height

	heights := targetHeights
	if !contains(heights, v.Height) {
		heights = append([]int{v.Height}, heights...)
	}

	var out []Rendition
	for _, h := range heights {
		if h > v.Height {
			continue
		}
		w := width(v.Width, v.Height, h)
		ratio := float64(w*h) / float64(srcPixels)
		out = append(out, Rendition{
			Name:    fmt.Sprintf("%dp", h),
			Width:   w,
			Height:  h,
			Bitrate: clampBitrate(h, int(float64(srcBitrate)*ratio)),
			Copy:    h == v.Height && copyCodecs[v.Codec],
		})
	}
	return out
}

// Find returns the rendition called name.
func Find(ladder []Rendition, name string) (Rendition, bool) {
	for _, r := range ladder {
		if r.Name == name {
			return r, true
		}
	}
	return Rendition{}, false
}

// Target narrows t to the rendition. The copy rung keeps t as it is.
func (r Rendition) Target(t domain.VideoTarget) domain.VideoTarget {
	if r.Copy {
		return t
	}
	t.MaxHeight = r.Height
	t.Bitrate = r.Bitrate
	if t.Codec == domain.VideoCodecUnknown {
		t.Codec = domain.VideoCodecH264
	}
	return t
}

// Variant describes the rendition in a master playlist. Bandwidth is in
// bit/s and includes audio.
func (r Rendition) Variant(v domain.VideoStream, audio domain.AudioCodec, audioKbps int, uri string) domain.Variant {
	codec := v.Codec
	if !r.Copy {
		codec = domain.VideoCodecH264
	}
	return domain.Variant{
		Width:      r.Width,
		Height:     r.Height,
		Bandwidth:  negotiate.Bandwidth(r.Bitrate, audioKbps, r.Height),
		FrameRate:  v.FrameRate,
		VideoCodec: codec,
		AudioCodec: audio,
		URI:        uri,
	}
}

func width(srcWidth, srcHeight, targetHeight int) int {
	w := int(math.Round(float64(targetHeight) * float64(srcWidth) / float64(srcHeight)))
	if w%2 != 0 {
		w++
	}
	return w
}

func clampBitrate(height, kbps int) int {
	b, ok := bitrateBounds[height]
	if !ok {
		return kbps
	}
	return min(max(kbps, b.min), b.max)
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
