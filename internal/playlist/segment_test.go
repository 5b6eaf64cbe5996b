package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentIndex(t *testing.T) {
	cases := []struct {
		start float64
		want  int64
	}{
		{0, 0},
		{5.9, 0},
		{6, 0},
		{12, 1},
		{20, 2},
		{600, 99},
		{-4, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SegmentIndex(tc.start, 6), "start %.1f", tc.start)
	}
	assert.Equal(t, int64(0), SegmentIndex(20, 0))
}

func TestSegmentCount(t *testing.T) {
	assert.Equal(t, 11, SegmentCount(60, 6))
	assert.Equal(t, 12, SegmentCount(61, 6))
	assert.Equal(t, 1, SegmentCount(0, 6))
}

func TestSegmentsCoverDuration(t *testing.T) {
	segments := Segments(20, 6)
	require.Len(t, segments, 4)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
		assert.InDelta(t, float64(i)*6, seg.Start, 1e-9)
	}
	assert.InDelta(t, 2.0, segments[3].Duration, 1e-9)
	assert.InDelta(t, 20.0, segments[3].End, 1e-9)
	assert.Nil(t, Segments(0, 6))
}

func TestLiveWindow(t *testing.T) {
	assert.Equal(t, 51, LiveWindow(300, 6))
	assert.Equal(t, 51, LiveWindow(0, 0))
	assert.Equal(t, 31, LiveWindow(300, 10))
}

func TestSegmentNameRoundTrip(t *testing.T) {
	assert.Equal(t, "00042.ts", SegmentName(42))

	n, ok := ParseSegmentIndex("00042.ts")
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	for _, bad := range []string{"playlist.m3u8", ".ts", "abc.ts", "-1.ts"} {
		_, ok := ParseSegmentIndex(bad)
		assert.False(t, ok, bad)
	}
}
