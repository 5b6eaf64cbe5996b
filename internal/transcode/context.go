package transcode

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/transcoder/internal/domain"
)

type State int

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Context is the live state of one transcode. The orchestrator creates it;
// clients read from it and may Stop it.
type Context struct {
	// ID is unique per run and names the encoder slot it holds.
	ID          string
	ClientID    string
	TranscodeID string
	Kind        domain.Kind

	// Name is the cache name of the artifact. Segmented outputs use their
	// segment directory.
	Name string
	// Partial contexts produce output that is not kept as a cache entry.
	Partial bool
	// Live contexts produce an open-ended stream or a rolling playlist.
	Live bool
	// Cached contexts serve a finished artifact and never ran a process.
	Cached bool

	// TargetFile is what a client reads first: the output file or the
	// segmented playlist.
	TargetFile     string
	SegmentDir     string
	SegmentSeconds int
	StartSegment   int64
	TargetDuration float64
	// Subtitles are sidecar files written next to the media.
	Subtitles []string

	mu         sync.RWMutex
	state      State
	err        error
	exitCode   int
	baseURL    string
	stream     io.ReadCloser
	startedAt  time.Time
	finishedAt time.Time

	current atomic.Int64
	last    atomic.Int64
	size    atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func newContext(job domain.Job, kind domain.Kind) *Context {
	c := &Context{
		ID:          uuid.NewString(),
		ClientID:    job.ClientID,
		TranscodeID: job.TranscodeID,
		Kind:        kind,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	c.last.Store(-1)
	return c
}

// newCachedContext wraps a finished artifact.
func newCachedContext(job domain.Job, kind domain.Kind, name string) *Context {
	c := newContext(job, kind)
	c.Name = name
	c.Cached = true
	c.state = StateCompleted
	close(c.done)
	return c
}

func (c *Context) Segmented() bool {
	return c.SegmentDir != ""
}

// Start moves a created context to running.
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCreated {
		return fmt.Errorf("transcode %s: start from state %s", c.TranscodeID, c.state)
	}
	c.state = StateRunning
	c.startedAt = time.Now()
	return nil
}

// Complete marks a successful run.
func (c *Context) Complete() {
	c.finish(StateCompleted, nil)
}

// Fail records err as the outcome of the run.
func (c *Context) Fail(err error) {
	c.finish(StateFailed, err)
}

func (c *Context) finish(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = state
	c.err = err
	c.finishedAt = time.Now()
	close(c.done)
}

// Stop asks the encoder to end. It returns immediately; Done closes once the
// process has exited and its output is settled.
func (c *Context) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Context) stopRequested() <-chan struct{} {
	return c.stopCh
}

func (c *Context) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Done is closed when the context reaches a terminal state.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Context) Running() bool {
	return c.State() == StateRunning
}

func (c *Context) Failed() bool {
	return c.State() == StateFailed
}

func (c *Context) Aborted() bool {
	return c.State() == StateAborted
}

func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Context) ExitCode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exitCode
}

func (c *Context) setExitCode(code int) {
	c.mu.Lock()
	c.exitCode = code
	c.mu.Unlock()
}

// CurrentSegment is the segment the client fetched last.
func (c *Context) CurrentSegment() int64 {
	return c.current.Load()
}

// Seek records the segment the client is at. It moves in both directions.
func (c *Context) Seek(index int64) {
	c.current.Store(index)
}

// LastSegment is the highest segment the encoder has finished, or -1.
func (c *Context) LastSegment() int64 {
	return c.last.Load()
}

// SetSegment advances LastSegment. Lower values are ignored.
func (c *Context) SetSegment(index int64) {
	for {
		cur := c.last.Load()
		if index <= cur || c.last.CompareAndSwap(cur, index) {
			return
		}
	}
}

// CurrentDuration is the media time produced so far. Only segmented output
// reports it.
func (c *Context) CurrentDuration() float64 {
	last := c.LastSegment()
	if !c.Segmented() || last < 0 {
		return 0
	}
	d := float64(last+1) * float64(c.SegmentSeconds)
	if c.TargetDuration > 0 && d > c.TargetDuration {
		return c.TargetDuration
	}
	return d
}

// CurrentSize is the size of the output file at the last check.
func (c *Context) CurrentSize() int64 {
	return c.size.Load()
}

func (c *Context) setSize(n int64) {
	c.size.Store(n)
}

func (c *Context) HLSBaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

func (c *Context) SetHLSBaseURL(url string) {
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

// Stream returns the attached byte stream of a piped job, or nil.
func (c *Context) Stream() io.ReadCloser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream
}

// AttachStream sets the stream if none is attached and reports whether it
// did.
func (c *Context) AttachStream(r io.ReadCloser) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return false
	}
	c.stream = r
	return true
}

// Elapsed is the run time so far, or the total run time once finished.
func (c *Context) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startedAt.IsZero() {
		return 0
	}
	if c.finishedAt.IsZero() {
		return time.Since(c.startedAt)
	}
	return c.finishedAt.Sub(c.startedAt)
}

// Close stops the job and releases the attached stream.
func (c *Context) Close() error {
	c.Stop()
	c.mu.Lock()
	r := c.stream
	c.stream = nil
	c.mu.Unlock()
	if r != nil {
		return r.Close()
	}
	return nil
}
