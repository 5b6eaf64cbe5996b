package cache

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(afero.NewMemMapFs(), "/cache")
	require.NoError(t, err)
	return s
}

func TestStore_ExistsRequiresContent(t *testing.T) {
	s := newMemStore(t)

	assert.False(t, s.Exists("movie.mkv"))

	require.NoError(t, s.WriteFile("movie.mkv", nil))
	assert.False(t, s.Exists("movie.mkv"), "zero-length files are not artifacts")

	require.NoError(t, s.WriteFile("movie.mkv", []byte("data")))
	assert.True(t, s.Exists("movie.mkv"))

	require.NoError(t, s.MkdirAll("movie_mptf"))
	assert.True(t, s.Exists("movie_mptf"))
}

func TestStore_ReadOpenAndPath(t *testing.T) {
	s := newMemStore(t)
	require.NoError(t, s.WriteFile("dir_mptf/playlist.m3u8", []byte("#EXTM3U\n")))

	data, err := s.ReadFile("dir_mptf/playlist.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(data))

	rc, err := s.Open("dir_mptf/playlist.m3u8")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, body)

	assert.Equal(t, filepath.Join("/cache", "dir_mptf", "playlist.m3u8"), s.Path("dir_mptf/playlist.m3u8"))
}

func TestStore_TouchAndRemove(t *testing.T) {
	s := newMemStore(t)
	fixed := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.WriteFile("a.ts", []byte("x")))
	require.NoError(t, s.Touch("a.ts"))

	info, err := s.Stat("a.ts")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(fixed))

	require.NoError(t, s.Remove("a.ts"))
	require.NoError(t, s.Remove("a.ts"), "removing twice is fine")
	assert.False(t, s.Exists("a.ts"))
}

func lockRefs(s *Store, name string) int {
	s.scopedLocks.Lock()
	defer s.scopedLocks.Unlock()
	if nl, ok := s.scopedLocks.locks[name]; ok {
		return nl.refs
	}
	return 0
}

func TestStore_LockIsPerName(t *testing.T) {
	s := newMemStore(t)

	a := s.Lock("a")
	a.Lock()

	b := s.Lock("b")
	b.Lock()
	b.Unlock()

	acquired := make(chan struct{})
	go func() {
		other := s.Lock("a")
		other.Lock()
		close(acquired)
		other.Unlock()
	}()

	require.Eventually(t, func() bool { return lockRefs(s, "a") == 2 }, time.Second, time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second holder entered a locked name")
	default:
	}

	a.Unlock()
	<-acquired
	assert.Equal(t, 0, lockRefs(s, "a"))
}

func TestStore_LocksAreDroppedAfterUse(t *testing.T) {
	s := newMemStore(t)

	for i := 0; i < 100; i++ {
		l := s.Lock(fmt.Sprintf("movie%d.mp4", i))
		l.Lock()
		l.Unlock()
	}

	s.scopedLocks.Lock()
	defer s.scopedLocks.Unlock()
	assert.Empty(t, s.scopedLocks.locks)
}

func TestStore_EntriesOldestFirstWithDirectorySizes(t *testing.T) {
	s := newMemStore(t)
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteFile("new.mkv", []byte("12345")))
	require.NoError(t, s.WriteFile("old_mptf/00000.ts", []byte("123")))
	require.NoError(t, s.WriteFile("old_mptf/00001.ts", []byte("4567")))
	require.NoError(t, s.fs.Chtimes("new.mkv", base.Add(time.Hour), base.Add(time.Hour)))
	require.NoError(t, s.fs.Chtimes("old_mptf", base, base))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "old_mptf", entries[0].Name)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, int64(7), entries[0].Size)
	assert.Equal(t, "new.mkv", entries[1].Name)
	assert.Equal(t, int64(5), entries[1].Size)
}
