package transcoder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/domain"
)

const writeOutput = `for last; do :; done
printf data > "$last"
`

const writeSegments = `for last; do :; done
dir=$(dirname "$last")
: > "$last"
for i in 00000 00001 00002; do
  printf "seg$i" > "$dir/$i.ts"
  echo "#EXTINF:6.000000," >> "$last"
  echo "{{BASE_URL}}$i.ts" >> "$last"
done
`

func newTestController(t *testing.T, body string, mutate func(*Options)) *Controller {
	t.Helper()
	script := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0o755))

	opts := Options{
		CacheDir:            t.TempDir(),
		BinaryPath:          script,
		Threads:             1,
		StopGrace:           time.Second,
		FileWaitTimeout:     5 * time.Second,
		PlaylistWaitTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctrl, err := NewController(context.Background(), opts)
	require.NoError(t, err)
	require.NoError(t, ctrl.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = ctrl.Stop(ctx)
	})
	return ctrl
}

func movie(container domain.VideoContainer) *VideoRequest {
	return &VideoRequest{
		Job: Job{ClientID: "tv", TranscodeID: "movie"},
		Sources: []VideoSource{{
			Path:      "/media/movie.mkv",
			Container: domain.VideoContainerMatroska,
			Duration:  18,
			Video:     domain.VideoStream{Codec: domain.VideoCodecH264, Width: 1280, Height: 720, FrameRate: 24},
			Audios:    []domain.AudioStream{{Index: 1, Codec: domain.AudioCodecAAC, Channels: 2}},
		}},
		Target: VideoTarget{Container: container, Codec: domain.VideoCodecH264, AudioCodec: domain.AudioCodecAAC},
	}
}

func waitDone(t *testing.T, tc *Context) {
	t.Helper()
	select {
	case <-tc.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("transcode %s still running", tc.TranscodeID)
	}
}

func TestNewControllerRequiresCacheDir(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = NewController(context.Background(), Options{})
	})
}

func TestControllerFileTranscode(t *testing.T) {
	ctrl := newTestController(t, writeOutput, nil)
	ctx := context.Background()

	tc, err := ctrl.Transcode(ctx, movie(domain.VideoContainerMP4), 0, 0)
	require.NoError(t, err)
	waitDone(t, tc)
	assert.Empty(t, ctrl.Active())

	r, err := ctrl.Open(ctx, "tv", "movie")
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "data", string(body))

	_, err = ctrl.Playlist(ctx, "tv", "movie", "/seg/")
	assert.ErrorIs(t, err, ErrNotSegmented)
	assert.False(t, ctrl.StopTranscode("tv", "movie"))
}

func TestControllerSegmentedTranscode(t *testing.T) {
	ctrl := newTestController(t, writeSegments, nil)
	ctx := context.Background()

	tc, err := ctrl.Transcode(ctx, movie(domain.VideoContainerHLS), 0, 0)
	require.NoError(t, err)
	waitDone(t, tc)

	body, err := ctrl.Playlist(ctx, "tv", "movie", "http://host/movie")
	require.NoError(t, err)
	assert.Contains(t, string(body), "http://host/movie/00002.ts")

	r, err := ctrl.Segment(ctx, "tv", "movie", "00001.ts")
	require.NoError(t, err)
	seg, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "seg00001", string(seg))

	_, err = ctrl.Subtitle("tv", "movie", "movie.eng.vtt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerUnknownTranscode(t *testing.T) {
	ctrl := newTestController(t, writeOutput, nil)
	ctx := context.Background()

	_, err := ctrl.Open(ctx, "tv", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ctrl.Playlist(ctx, "tv", "missing", "/")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ctrl.Segment(ctx, "tv", "missing", "00000.ts")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerAfterStopRejectsRequests(t *testing.T) {
	ctrl := newTestController(t, writeOutput, nil)
	require.NoError(t, ctrl.Stop(context.Background()))

	_, err := ctrl.Transcode(context.Background(), movie(domain.VideoContainerMP4), 0, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMasterPlaylistAdvertisesLadder(t *testing.T) {
	ctrl := newTestController(t, writeOutput, nil)

	body, err := ctrl.MasterPlaylist(movie(domain.VideoContainerHLS), func(name string) string {
		return name + "/index.m3u8"
	}, SubtitleRendition{Name: "English", Language: "en", URI: "subs/en.m3u8", Default: true})
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "#EXTM3U")
	assert.Contains(t, out, "720p/index.m3u8")
	assert.Contains(t, out, "480p/index.m3u8")
	assert.Contains(t, out, "360p/index.m3u8")
	assert.NotContains(t, out, "1080p")
	assert.Contains(t, out, "subs/en.m3u8")

	_, err = ctrl.MasterPlaylist(&VideoRequest{Job: Job{TranscodeID: "empty"}}, func(string) string { return "" })
	assert.Error(t, err)
}

func TestRenditionNarrowsRequest(t *testing.T) {
	ctrl := newTestController(t, writeOutput, nil)
	req := movie(domain.VideoContainerMP4)

	low, err := ctrl.Rendition(req, "480p")
	require.NoError(t, err)
	assert.Equal(t, "movie-480p", low.TranscodeID)
	assert.Equal(t, "tv", low.ClientID)
	assert.Equal(t, 480, low.Target.MaxHeight)
	assert.Equal(t, domain.VideoContainerHLS, low.Target.Container)
	assert.Equal(t, "movie", req.TranscodeID)
	assert.Equal(t, domain.VideoContainerMP4, req.Target.Container)

	top, err := ctrl.Rendition(req, "720p")
	require.NoError(t, err)
	assert.Zero(t, top.Target.MaxHeight)

	_, err = ctrl.Rendition(req, "2160p")
	assert.ErrorIs(t, err, ErrUnknownRendition)
}

func TestControllerSweepRemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	ctrl := newTestController(t, writeOutput, func(o *Options) {
		o.CacheDir = dir
		o.CacheMaxAge = time.Hour
	})

	stale := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "new.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	report, err := ctrl.Sweep()
	require.NoError(t, err)
	assert.Equal(t, []string{"old.mp4"}, report.Removed)
	assert.Equal(t, int64(3), report.Freed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}
