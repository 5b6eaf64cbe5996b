package transcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/domain"
)

func testJob() domain.Job {
	return domain.Job{ClientID: "client", TranscodeID: "movie"}
}

func TestContextLifecycle(t *testing.T) {
	c := newContext(testJob(), domain.KindVideo)
	assert.Equal(t, StateCreated, c.State())
	assert.NotEmpty(t, c.ID)

	require.NoError(t, c.Start())
	assert.True(t, c.Running())
	assert.Error(t, c.Start())

	c.Complete()
	assert.Equal(t, StateCompleted, c.State())
	assert.NoError(t, c.Err())

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}

	c.Fail(errors.New("late"))
	assert.Equal(t, StateCompleted, c.State(), "terminal state is final")
	assert.NoError(t, c.Err())
}

func TestContextAbortCarriesErrAborted(t *testing.T) {
	c := newContext(testJob(), domain.KindAudio)
	require.NoError(t, c.Start())

	c.Stop()
	c.Stop()
	assert.True(t, c.stopping())

	c.finish(StateAborted, ErrAborted)
	assert.True(t, c.Aborted())
	assert.ErrorIs(t, c.Err(), ErrAborted)
}

func TestContextSegmentPositions(t *testing.T) {
	c := newContext(testJob(), domain.KindVideo)
	c.SegmentDir = "/cache/movie_mptf"
	c.SegmentSeconds = 6
	c.TargetDuration = 20

	assert.Equal(t, int64(-1), c.LastSegment())
	assert.Zero(t, c.CurrentDuration())

	c.SetSegment(2)
	c.SetSegment(1)
	assert.Equal(t, int64(2), c.LastSegment())
	assert.Equal(t, 18.0, c.CurrentDuration())

	c.SetSegment(5)
	assert.Equal(t, 20.0, c.CurrentDuration(), "capped at the media duration")

	c.Seek(4)
	c.Seek(1)
	assert.Equal(t, int64(1), c.CurrentSegment())
}

func TestCachedContextIsCompleted(t *testing.T) {
	c := newCachedContext(testJob(), domain.KindImage, "movie.jpg")
	assert.True(t, c.Cached)
	assert.Equal(t, StateCompleted, c.State())
	assert.Zero(t, c.Elapsed())
	<-c.Done()
}
