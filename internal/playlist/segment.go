package playlist

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
)

const (
	DefaultSegmentSeconds    = 6
	DefaultLiveBufferSeconds = 300
)

// SegmentIndex is the segment a request starting at timeStart begins with.
// One segment of margin is kept so the player has the keyframe before the
// requested position.
func SegmentIndex(timeStart float64, segSeconds int) int64 {
	if segSeconds <= 0 || timeStart <= 0 {
		return 0
	}
	return max(0, int64(math.Floor(timeStart/float64(segSeconds)))-1)
}

// SegmentCount is the muxer list size for a VOD job over duration.
func SegmentCount(duration float64, segSeconds int) int {
	if segSeconds <= 0 || duration <= 0 {
		return 1
	}
	return int(math.Ceil(duration/float64(segSeconds))) + 1
}

// Segments splits duration into fixed-length segments. The last one is
// shorter when duration is not a multiple of segSeconds.
func Segments(duration float64, segSeconds int) []domain.Segment {
	if segSeconds <= 0 || duration <= 0 {
		return nil
	}
	s := float64(segSeconds)
	n := int(math.Ceil(duration / s))
	segments := make([]domain.Segment, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * s
		end := math.Min(start+s, duration)
		segments = append(segments, domain.Segment{
			Index:    i,
			Start:    start,
			End:      end,
			Duration: end - start,
		})
	}
	return segments
}

// LiveWindow is the number of segments a live playlist keeps.
func LiveWindow(bufferSeconds, segSeconds int) int {
	if segSeconds <= 0 {
		segSeconds = DefaultSegmentSeconds
	}
	if bufferSeconds <= 0 {
		bufferSeconds = DefaultLiveBufferSeconds
	}
	return bufferSeconds/segSeconds + 1
}

func SegmentName(index int64) string {
	return fmt.Sprintf(domain.SegmentNameFormat, index)
}

// ParseSegmentIndex reverses SegmentName. Anything else reports false.
func ParseSegmentIndex(name string) (int64, bool) {
	base, ok := strings.CutSuffix(name, ".ts")
	if !ok || base == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
