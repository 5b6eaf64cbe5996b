package transcode

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/transcoder/internal/domain"
)

func registered(clientID, transcodeID, name string, partial bool) *Context {
	c := newContext(domain.Job{ClientID: clientID, TranscodeID: transcodeID}, domain.KindVideo)
	c.Name = name
	c.Partial = partial
	return c
}

func TestRegistryPartialJobStopsOtherPartialJobsOfSameTranscode(t *testing.T) {
	r := NewRegistry(nil)
	first := registered("c1", "movie", "movie.20.mp4", true)
	second := registered("c1", "movie", "movie.40.mp4", true)

	assert.Empty(t, r.Add(first))
	assert.Equal(t, []*Context{first}, r.Add(second))

	assert.True(t, first.stopping())
	assert.False(t, second.stopping())
	assert.Equal(t, 2, r.Len())
	assert.Same(t, second, r.Get("c1", "movie"))
}

func TestRegistryNewTranscodeStopsEverythingOfClient(t *testing.T) {
	r := NewRegistry(nil)
	a := registered("c1", "movie", "movie.20.mp4", true)
	other := registered("c2", "movie", "movie.mp4", false)
	b := registered("c1", "show", "show.20.mp4", true)

	r.Add(a)
	r.Add(other)
	r.Add(b)

	assert.True(t, a.stopping())
	assert.False(t, other.stopping(), "other clients are left alone")
	assert.Nil(t, r.Get("c1", "movie"))
	assert.Same(t, b, r.Get("c1", "show"))
}

func TestRegistryFullJobStopsClientJobs(t *testing.T) {
	r := NewRegistry(nil)
	partial := registered("c1", "movie", "movie.20.mp4", true)
	full := registered("c1", "movie", "movie.A1.mp4", false)

	r.Add(partial)
	r.Add(full)

	assert.True(t, partial.stopping())
	assert.Same(t, full, r.Get("c1", "movie"))
}

func TestRegistryRemoveAndLookup(t *testing.T) {
	r := NewRegistry(nil)
	c := registered("c1", "movie", "movie_mptf", true)

	r.Add(c)
	r.Remember("c1", "movie", c)
	assert.True(t, r.InUse("movie_mptf"))
	assert.True(t, r.InUse("movie_mptf/00001.ts"))
	assert.Same(t, c, r.ByName("movie_mptf"))

	r.Remove(c)
	r.Remove(c)
	assert.Zero(t, r.Len())
	assert.False(t, r.InUse("movie_mptf"))
	assert.Same(t, c, r.Lookup("c1", "movie"), "the last handed out context outlives the job")

	r.Stop("c1", "movie")
	assert.Nil(t, r.Lookup("c1", "movie"))
}

func TestRegistryByNameSkipsStoppedContexts(t *testing.T) {
	r := NewRegistry(nil)
	c := registered("c1", "movie", "movie.A1.mp4", false)
	r.Add(c)

	assert.Empty(t, r.Stopping("movie.A1.mp4"))
	c.Stop()
	assert.Nil(t, r.ByName("movie.A1.mp4"))
	assert.True(t, r.InUse("movie.A1.mp4"))
	assert.Equal(t, []*Context{c}, r.Stopping("movie.A1.mp4"))
}

func TestRegistryClaimSerializesPerKey(t *testing.T) {
	r := NewRegistry(nil)

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := r.Claim("c1", "movie")
			defer release()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, r.claims)
}

func TestRegistryNameClaimSpansClients(t *testing.T) {
	r := NewRegistry(nil)

	releaseA := r.Claim("c1", "movie")
	releaseB := r.Claim("c2", "movie")
	defer releaseA()
	defer releaseB()

	name := r.ClaimName("movie.A1.mp4")
	entered := make(chan struct{})
	go func() {
		release := r.ClaimName("movie.A1.mp4")
		close(entered)
		release()
	}()

	select {
	case <-entered:
		t.Fatal("two callers held the same artifact claim")
	case <-time.After(50 * time.Millisecond):
	}
	name()
	<-entered

	other := r.ClaimName("movie.A1.mkv")
	other()
}

func TestRegistryStopAll(t *testing.T) {
	r := NewRegistry(nil)
	a := registered("c1", "movie", "a", false)
	b := registered("c2", "show", "b", false)
	r.Add(a)
	r.Add(b)

	assert.Equal(t, 2, r.StopAll())
	assert.True(t, a.stopping())
	assert.True(t, b.stopping())
	assert.Len(t, r.Active(), 2, "contexts stay registered until their process exits")
}
