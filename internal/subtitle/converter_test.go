package subtitle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/cache"
	"github.com/eleven-am/transcoder/internal/domain"
)

func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(afero.NewOsFs(), t.TempDir())
	require.NoError(t, err)
	return store
}

func TestConverterWritesTrack(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	binary := fakeFFmpeg(t, `for last; do :; done
echo "$@" > "`+argsFile+`"
printf WEBVTT > "$last"
`)
	store := newStore(t)
	c := NewConverter(binary, store, "", nil)

	src := domain.VideoSource{Path: "/media/movie.mkv"}
	track := domain.SubtitleStream{Index: 3, Codec: domain.SubtitleCodecSRT, Language: "en"}
	name := Name("movie.A1", track, domain.SubtitleCodecWebVTT)
	assert.Equal(t, "movie.A1.en.vtt", name)

	path, err := c.Convert(context.Background(), src, track, domain.SubtitleCodecWebVTT, name)
	require.NoError(t, err)
	assert.Equal(t, store.Path(name), path)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-i /media/movie.mkv")
	assert.Contains(t, string(args), "-map 0:3 -c:s webvtt -f webvtt")
}

func TestConverterReusesExistingFile(t *testing.T) {
	store := newStore(t)
	c := NewConverter(fakeFFmpeg(t, "exit 1\n"), store, "", nil)
	require.NoError(t, store.WriteFile("movie.und.srt", []byte("1\n")))

	track := domain.SubtitleStream{Codec: domain.SubtitleCodecSRT, Path: "/media/movie.srt"}
	path, err := c.Convert(context.Background(), domain.VideoSource{}, track, domain.SubtitleCodecSRT, Name("movie", track, domain.SubtitleCodecSRT))
	require.NoError(t, err)
	assert.Equal(t, store.Path("movie.und.srt"), path)
}

func TestConverterExternalFileUsesCharset(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	binary := fakeFFmpeg(t, `for last; do :; done
echo "$@" > "`+argsFile+`"
printf 1 > "$last"
`)
	c := NewConverter(binary, newStore(t), "CP1252", nil)

	track := domain.SubtitleStream{Codec: domain.SubtitleCodecSRT, Language: "fr", Path: "/media/movie.fr.srt"}
	_, err := c.Convert(context.Background(), domain.VideoSource{Path: "/media/movie.mkv"}, track, domain.SubtitleCodecSRT, "movie.fr.srt")
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-sub_charenc CP1252 -i /media/movie.fr.srt")
	assert.Contains(t, string(args), "-map 0:0 -c:s copy -f srt")
}

func TestConverterFailureLeavesNothing(t *testing.T) {
	store := newStore(t)
	c := NewConverter(fakeFFmpeg(t, `for last; do :; done
printf half > "$last"
echo "invalid data" >&2
exit 1
`), store, "", nil)

	track := domain.SubtitleStream{Index: 2, Codec: domain.SubtitleCodecASS}
	_, err := c.Convert(context.Background(), domain.VideoSource{Path: "/media/movie.mkv"}, track, domain.SubtitleCodecWebVTT, "movie.und.vtt")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid data"))
	assert.False(t, store.Exists("movie.und.vtt"))
}

func TestConverterRejectsBitmapTracks(t *testing.T) {
	c := NewConverter(fakeFFmpeg(t, "exit 0\n"), newStore(t), "", nil)

	track := domain.SubtitleStream{Index: 5, Codec: domain.SubtitleCodecPGS}
	_, err := c.Convert(context.Background(), domain.VideoSource{Path: "/media/movie.mkv"}, track, domain.SubtitleCodecWebVTT, "movie.und.vtt")
	assert.ErrorIs(t, err, ErrNotConvertible)
}
