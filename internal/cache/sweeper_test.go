package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, name string, size int, mod time.Time) {
	t.Helper()
	require.NoError(t, s.WriteFile(name, make([]byte, size)))
	require.NoError(t, s.fs.Chtimes(name, mod, mod))
}

func TestSweep_RemovesEmptyThenStaleThenOldest(t *testing.T) {
	s := newMemStore(t)
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	seed(t, s, "empty.mkv", 0, now)
	seed(t, s, "stale.mkv", 10, now.Add(-10*24*time.Hour))
	seed(t, s, "oldest.mkv", 40, now.Add(-3*time.Hour))
	seed(t, s, "older.mkv", 40, now.Add(-2*time.Hour))
	seed(t, s, "newest.mkv", 40, now.Add(-time.Hour))

	sw := NewSweeper(s, Policy{MaxAge: 7 * 24 * time.Hour, MaxSize: 90}, nil, nil)
	report, err := sw.Sweep()
	require.NoError(t, err)

	assert.Equal(t, []string{"stale.mkv", "empty.mkv", "oldest.mkv"}, report.Removed)
	assert.Equal(t, int64(50), report.Freed)
	assert.Equal(t, int64(80), report.Remaining)
	assert.True(t, s.Exists("older.mkv"))
	assert.True(t, s.Exists("newest.mkv"))
}

func TestSweep_SkipsArtifactsInUse(t *testing.T) {
	s := newMemStore(t)
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	seed(t, s, "active.mkv", 0, now.Add(-30*24*time.Hour))
	seed(t, s, "idle.mkv", 100, now.Add(-time.Minute))

	sw := NewSweeper(s, Policy{MaxAge: time.Hour, MaxSize: 1}, func(name string) bool {
		return name == "active.mkv"
	}, nil)
	report, err := sw.Sweep()
	require.NoError(t, err)

	assert.Equal(t, []string{"idle.mkv"}, report.Removed)
	_, err = s.Stat("active.mkv")
	assert.NoError(t, err)
}

// sweepWhileLocked runs a sweep that blocks on the lock of name, calls
// meanwhile, and lets the sweep continue.
func sweepWhileLocked(t *testing.T, s *Store, sw *Sweeper, name string, meanwhile func()) Report {
	t.Helper()
	lock := s.Lock(name)
	lock.Lock()

	done := make(chan Report, 1)
	go func() {
		report, err := sw.Sweep()
		assert.NoError(t, err)
		done <- report
	}()

	require.Eventually(t, func() bool { return lockRefs(s, name) == 2 }, 5*time.Second, time.Millisecond)
	meanwhile()
	lock.Unlock()
	return <-done
}

func TestSweep_SkipsArtifactClaimedDuringSweep(t *testing.T) {
	s := newMemStore(t)
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	seed(t, s, "movie.mp4", 10, now.Add(-48*time.Hour))

	var claimed atomic.Bool
	sw := NewSweeper(s, Policy{MaxAge: time.Hour}, func(string) bool { return claimed.Load() }, nil)

	report := sweepWhileLocked(t, s, sw, "movie.mp4", func() { claimed.Store(true) })

	assert.Empty(t, report.Removed)
	assert.Equal(t, int64(10), report.Remaining)
	assert.True(t, s.Exists("movie.mp4"))
}

func TestSweep_SkipsArtifactTouchedDuringSweep(t *testing.T) {
	s := newMemStore(t)
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	seed(t, s, "movie.mp4", 10, now.Add(-48*time.Hour))

	sw := NewSweeper(s, Policy{MaxAge: time.Hour}, nil, nil)

	report := sweepWhileLocked(t, s, sw, "movie.mp4", func() {
		require.NoError(t, s.Touch("movie.mp4"))
	})

	assert.Empty(t, report.Removed)
	assert.True(t, s.Exists("movie.mp4"))
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	sw := NewSweeper(newMemStore(t), Policy{}, nil, nil)
	assert.Error(t, sw.Start("not a schedule"))

	require.NoError(t, sw.Start("@every 1h"))
	sw.Stop(context.Background())
}
