// Package transcode runs encoder processes for transcode requests, reuses
// cached and in-flight output, and serves the results to clients.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/ffmpeg"
	"github.com/eleven-am/transcoder/internal/observability"
	"github.com/eleven-am/transcoder/internal/playlist"
	"github.com/eleven-am/transcoder/internal/segment"
	"github.com/eleven-am/transcoder/internal/subtitle"
)

// forwardWindow is how far past the encoder position a segment may be
// requested and still be waited for.
const forwardWindow = 2

type Options struct {
	BinaryPath     string
	SegmentSeconds int
	// CacheEnabled keeps full transcodes as cache entries. Without it every
	// video and audio transcode is partial.
	CacheEnabled bool

	// StopGrace is how long a stopped encoder may take to finish its output
	// before it is killed. Default: 5 seconds.
	StopGrace time.Duration
	// FileWaitTimeout bounds OpenStream. Default: 30 seconds.
	FileWaitTimeout time.Duration
	// PlaylistWaitTimeout bounds Playlist and Segment. Default: 25 seconds.
	PlaylistWaitTimeout time.Duration
	// PollInterval is the OpenStream poll period. Default: 500ms.
	PollInterval time.Duration
	// SegmentPollInterval is the Playlist and Segment poll period.
	// Default: 100ms.
	SegmentPollInterval time.Duration
	// RescanInterval is how often running jobs re-read their output when no
	// file notification arrives. Default: 2 seconds.
	RescanInterval time.Duration

	Subtitles subtitle.Options
}

func (o *Options) setDefaults() {
	if o.BinaryPath == "" {
		o.BinaryPath = "ffmpeg"
	}
	if o.SegmentSeconds <= 0 {
		o.SegmentSeconds = playlist.DefaultSegmentSeconds
	}
	if o.StopGrace <= 0 {
		o.StopGrace = 5 * time.Second
	}
	if o.FileWaitTimeout <= 0 {
		o.FileWaitTimeout = 30 * time.Second
	}
	if o.PlaylistWaitTimeout <= 0 {
		o.PlaylistWaitTimeout = 25 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.SegmentPollInterval <= 0 {
		o.SegmentPollInterval = 100 * time.Millisecond
	}
	if o.RescanInterval <= 0 {
		o.RescanInterval = segment.DefaultRescanInterval
	}
}

// SlotReleaser frees the encoder slot a job holds. *hwaccel.Slots
// implements it.
type SlotReleaser interface {
	Release(jobID string)
}

// Orchestrator turns requests into running, coalesced or cached transcodes.
type Orchestrator struct {
	opts      Options
	builder   *ffmpeg.Builder
	store     domain.ArtifactStore
	slots     SlotReleaser
	converter *subtitle.Converter
	registry  *Registry
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates an orchestrator writing into store. slots and converter may
// be nil.
func New(opts Options, builder *ffmpeg.Builder, store domain.ArtifactStore, slots SlotReleaser, converter *subtitle.Converter, logger *slog.Logger) *Orchestrator {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = ffmpeg.NewBuilder(ffmpeg.Options{SegmentSeconds: opts.SegmentSeconds}, nil)
	}
	if converter == nil {
		converter = subtitle.NewConverter(opts.BinaryPath, store, opts.Subtitles.Style.DefaultEncoding, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:      opts,
		builder:   builder,
		store:     store,
		slots:     slots,
		converter: converter,
		registry:  NewRegistry(logger),
		logger:    observability.WithComponent(logger, "orchestrator"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RequestTranscode returns a context serving req from timeStart. It reuses a
// cache entry or a running job when one can serve the request and starts an
// encoder otherwise. It does not wait for output; see OpenStream, Playlist
// and Segment.
func (o *Orchestrator) RequestTranscode(ctx context.Context, req domain.Request, timeStart, duration float64) (*Context, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}

	job := req.Identity()
	release := o.registry.Claim(job.ClientID, job.TranscodeID)
	defer release()

	var (
		c   *Context
		err error
	)
	switch r := req.(type) {
	case *domain.VideoRequest:
		c, err = o.requestVideo(ctx, r, timeStart, duration)
	case *domain.AudioRequest:
		c, err = o.requestAudio(ctx, r, timeStart, duration)
	case *domain.ImageRequest:
		c, err = o.requestImage(ctx, r)
	default:
		err = &ffmpeg.NegotiationError{TranscodeID: job.TranscodeID, Err: ffmpeg.ErrUnsupported}
	}
	if err != nil {
		return nil, err
	}

	o.registry.Remember(job.ClientID, job.TranscodeID, c)
	return c, nil
}

func (o *Orchestrator) requestVideo(ctx context.Context, r *domain.VideoRequest, timeStart, duration float64) (*Context, error) {
	if len(r.Sources) == 0 {
		return nil, &ffmpeg.NegotiationError{TranscodeID: r.TranscodeID, Err: ffmpeg.ErrNoSource}
	}
	req := *r
	src := req.Source()
	if req.Target.Container == domain.VideoContainerUnknown {
		req.Target.Container = src.Container
	}
	t := req.Target
	hls := t.Container == domain.VideoContainerHLS

	c := newContext(req.Job, domain.KindVideo)
	c.TargetDuration = req.Duration()
	c.SegmentSeconds = o.opts.SegmentSeconds
	if timeStart == 0 && !t.Live && o.opts.CacheEnabled {
		duration = 0
	} else {
		c.Partial, c.Live = true, t.Live
	}

	plan, err := subtitle.Decide(src, t, o.opts.Subtitles)
	if err != nil {
		return nil, &ffmpeg.NegotiationError{TranscodeID: req.TranscodeID, Err: err}
	}

	if hls {
		return o.requestSegmented(ctx, c, &req, plan, timeStart, duration)
	}

	out := ffmpeg.Output{Pipe: c.Live}
	if !c.Live {
		name := VideoName(&req, plan, timeStart)
		if c.Partial {
			name = PartialName(name)
		}
		release := o.registry.ClaimName(name)
		defer release()

		if reused := o.reuse(req.Job, domain.KindVideo, name, !c.Partial); reused != nil {
			o.sidecars(ctx, reused, src, plan, t)
			return reused, nil
		}
		c.Name = name
		out.Path = o.store.Path(name)
		out.Progressive = c.Partial
		c.TargetFile = out.Path
	}
	o.sidecars(ctx, c, src, plan, t)

	d, err := o.builder.Build(&req, ffmpeg.Params{
		TimeStart: timeStart,
		Duration:  duration,
		Subtitle:  plan.Fragment(),
		Output:    out,
		SlotKey:   c.ID,
	})
	if err != nil {
		o.releaseSlot(c)
		return nil, err
	}
	return o.launch(ctx, c, d)
}

func (o *Orchestrator) requestSegmented(ctx context.Context, c *Context, req *domain.VideoRequest, plan subtitle.Plan, timeStart, duration float64) (*Context, error) {
	seg := o.opts.SegmentSeconds
	dir := SegmentDirName(req, plan)
	start := playlist.SegmentIndex(timeStart, seg)
	if c.Live {
		start = 0
	}

	release := o.registry.ClaimName(dir)
	defer release()

	if !c.Live {
		if active := o.registry.ByName(dir); active != nil && !active.Live && canServe(active, start) {
			if req.Target.HLSBaseURL != "" {
				active.SetHLSBaseURL(req.Target.HLSBaseURL)
			}
			observability.CacheHits.WithLabelValues("context").Inc()
			return active, nil
		}
		if o.claimCached(dir, path.Join(dir, domain.PlaylistFileName), segmentFile(dir, start)) {
			cached := newCachedContext(req.Job, domain.KindVideo, dir)
			cached.SegmentDir = o.store.Path(dir)
			cached.TargetFile = o.store.Path(path.Join(dir, domain.PlaylistFileName))
			cached.SegmentSeconds = seg
			cached.StartSegment = start
			cached.TargetDuration = c.TargetDuration
			cached.Seek(start)
			cached.SetHLSBaseURL(req.Target.HLSBaseURL)
			o.sidecars(ctx, cached, req.Source(), plan, req.Target)
			observability.CacheHits.WithLabelValues("disk").Inc()
			return cached, nil
		}
	}

	c.Name = dir
	c.SegmentDir = o.store.Path(dir)
	c.TargetFile = o.store.Path(path.Join(dir, domain.PlaylistFileName))
	c.StartSegment = start
	c.Seek(start)
	c.SetHLSBaseURL(req.Target.HLSBaseURL)
	o.sidecars(ctx, c, req.Source(), plan, req.Target)

	d, err := o.builder.Build(req, ffmpeg.Params{
		TimeStart: float64(start) * float64(seg),
		Duration:  duration,
		Subtitle:  plan.Fragment(),
		Output:    ffmpeg.Output{SegmentDir: c.SegmentDir, StartSegment: start},
		SlotKey:   c.ID,
	})
	if err != nil {
		o.releaseSlot(c)
		return nil, err
	}
	return o.launch(ctx, c, d)
}

// canServe reports whether a running segmented job has produced index or
// will shortly.
func canServe(c *Context, index int64) bool {
	if index < c.StartSegment {
		return false
	}
	produced := max(c.LastSegment(), c.StartSegment)
	return index <= produced+forwardWindow
}

func (o *Orchestrator) requestAudio(ctx context.Context, r *domain.AudioRequest, timeStart, duration float64) (*Context, error) {
	if r.Source.Path == "" {
		return nil, &ffmpeg.NegotiationError{TranscodeID: r.TranscodeID, Err: ffmpeg.ErrNoSource}
	}
	req := *r
	if req.Target.Container == domain.AudioContainerUnknown {
		req.Target.Container = req.Source.Container
	}

	c := newContext(req.Job, domain.KindAudio)
	c.TargetDuration = req.Source.Duration
	if timeStart == 0 && !req.Target.Live && o.opts.CacheEnabled {
		duration = 0
	} else {
		c.Partial, c.Live = true, req.Target.Live
	}

	out := ffmpeg.Output{Pipe: c.Live}
	if !c.Live {
		name := AudioName(&req, timeStart)
		if c.Partial {
			name = PartialName(name)
		}
		release := o.registry.ClaimName(name)
		defer release()

		if reused := o.reuse(req.Job, domain.KindAudio, name, !c.Partial); reused != nil {
			return reused, nil
		}
		c.Name = name
		out.Path = o.store.Path(name)
		out.Progressive = c.Partial
		c.TargetFile = out.Path
	}

	d, err := o.builder.Build(&req, ffmpeg.Params{TimeStart: timeStart, Duration: duration, Output: out, SlotKey: c.ID})
	if err != nil {
		return nil, err
	}
	return o.launch(ctx, c, d)
}

func (o *Orchestrator) requestImage(ctx context.Context, r *domain.ImageRequest) (*Context, error) {
	if r.Source.Path == "" {
		return nil, &ffmpeg.NegotiationError{TranscodeID: r.TranscodeID, Err: ffmpeg.ErrNoSource}
	}
	req := *r
	if req.Target.Container == domain.ImageContainerUnknown {
		req.Target.Container = req.Source.Container
	}

	name := ImageName(&req)
	release := o.registry.ClaimName(name)
	defer release()

	if reused := o.reuse(req.Job, domain.KindImage, name, true); reused != nil {
		return reused, nil
	}

	c := newContext(req.Job, domain.KindImage)
	c.Name = name
	c.TargetFile = o.store.Path(name)

	d, err := o.builder.Build(&req, ffmpeg.Params{Output: ffmpeg.Output{Path: c.TargetFile}, SlotKey: c.ID})
	if err != nil {
		return nil, err
	}
	return o.launch(ctx, c, d)
}

// reuse returns a running job for name or, with fromDisk, a finished cache
// entry.
func (o *Orchestrator) reuse(job domain.Job, kind domain.Kind, name string, fromDisk bool) *Context {
	if active := o.registry.ByName(name); active != nil {
		observability.CacheHits.WithLabelValues("context").Inc()
		return active
	}
	if !fromDisk || !o.claimCached(name, name) {
		return nil
	}

	c := newCachedContext(job, kind, name)
	c.TargetFile = o.store.Path(name)
	if fi, err := o.store.Stat(name); err == nil {
		c.setSize(fi.Size())
	}
	observability.CacheHits.WithLabelValues("disk").Inc()
	return c
}

// claimCached reports whether the cache entry name is complete: every file
// in files exists and no job writes name, not even one that is stopping.
// The entry is touched under the store lock so a sweep running at the same
// time keeps it.
func (o *Orchestrator) claimCached(name string, files ...string) bool {
	lock := o.store.Lock(name)
	lock.Lock()
	defer lock.Unlock()

	if o.registry.InUse(name) {
		return false
	}
	for _, f := range files {
		if !o.store.Exists(f) {
			return false
		}
	}
	if err := o.store.Touch(name); err != nil {
		o.logger.Warn("touch cache entry", slog.String("name", name), slog.Any("error", err))
	}
	return true
}

// sidecars converts the tracks a plan delivers next to the media. A track
// that fails to convert is skipped.
func (o *Orchestrator) sidecars(ctx context.Context, c *Context, src domain.VideoSource, plan subtitle.Plan, t domain.VideoTarget) {
	if len(plan.Sidecar) == 0 || len(c.Subtitles) > 0 {
		return
	}
	codec := t.SubtitleCodec
	if codec == domain.SubtitleCodecUnknown {
		codec = domain.SubtitleCodecSRT
		if t.Container == domain.VideoContainerHLS {
			codec = domain.SubtitleCodecWebVTT
		}
	}

	key := c.TranscodeID
	if c.Name != "" {
		key = strings.TrimSuffix(strings.TrimSuffix(c.Name, domain.SegmentDirSuffix), path.Ext(c.Name))
	}
	for _, s := range plan.Sidecar {
		file, err := o.converter.Convert(ctx, src, s, codec, subtitle.Name(key, s, codec))
		if err != nil {
			o.logger.Warn("subtitle sidecar skipped",
				slog.String("transcode_id", c.TranscodeID),
				slog.Int("stream", s.Index),
				slog.Any("error", err),
			)
			continue
		}
		c.Subtitles = append(c.Subtitles, file)
	}
}

func (o *Orchestrator) launch(ctx context.Context, c *Context, d *ffmpeg.TranscodeData) (*Context, error) {
	logger := observability.WithJob(o.logger, c.ClientID, c.TranscodeID).With(slog.String("run_id", c.ID))

	args, err := d.Args()
	if err != nil {
		o.releaseSlot(c)
		return nil, err
	}
	binary := d.BinaryPath
	if binary == "" {
		binary = o.opts.BinaryPath
	}

	stopped := o.register(c)
	if c.Name != "" {
		stopped = append(stopped, o.registry.Stopping(c.Name)...)
	}
	if err := o.awaitExit(ctx, stopped); err != nil {
		return nil, o.spawnFailed(c, err, logger)
	}
	if o.closed.Load() {
		return nil, o.spawnFailed(c, ErrClosed, logger)
	}
	if err := o.prepare(c); err != nil {
		return nil, o.spawnFailed(c, err, logger)
	}
	if err := c.Start(); err != nil {
		return nil, o.spawnFailed(c, err, logger)
	}

	proc := NewProcess(binary, args, o.store.Path(""), d.IsPipe())
	if err := proc.Start(o.ctx); err != nil {
		return nil, o.spawnFailed(c, err, logger)
	}
	if d.IsPipe() {
		c.AttachStream(proc.Stdout())
	}

	observability.JobsStarted.WithLabelValues(string(c.Kind)).Inc()
	logger.Info("transcode started",
		slog.String("command", d.String()),
		slog.Bool("partial", c.Partial),
		slog.Bool("live", c.Live),
		slog.Bool("copy", d.Copy),
		slog.String("accelerator", string(d.Accelerator)),
		slog.Int64("start_segment", c.StartSegment),
	)

	o.wg.Add(1)
	go o.supervise(c, proc, logger)
	return c, nil
}

// register adds c to the registry under the store lock of its output and
// returns the jobs that gave way to it.
func (o *Orchestrator) register(c *Context) []*Context {
	if c.Name == "" {
		return o.registry.Add(c)
	}
	lock := o.store.Lock(c.Name)
	lock.Lock()
	defer lock.Unlock()
	return o.registry.Add(c)
}

// awaitExit waits for stopped jobs to exit. An encoder starts only once no
// other process of its transcode or its output is left.
func (o *Orchestrator) awaitExit(ctx context.Context, jobs []*Context) error {
	for _, j := range jobs {
		select {
		case <-j.Done():
		case <-ctx.Done():
			return ctx.Err()
		case <-o.ctx.Done():
			return ErrClosed
		}
	}
	return nil
}

// prepare readies the output. A partial file left by an earlier run is
// unlinked so its readers keep their data. A VOD playlist listing every
// segment is written up front so players can seek before the encoder gets
// there.
func (o *Orchestrator) prepare(c *Context) error {
	if !c.Segmented() {
		if c.Partial && c.Name != "" {
			return o.store.Remove(c.Name)
		}
		return nil
	}
	if err := o.store.MkdirAll(c.Name); err != nil {
		return err
	}
	if err := o.store.Remove(path.Join(c.Name, domain.TempPlaylistFileName)); err != nil {
		return err
	}
	if c.Live {
		return o.store.Remove(path.Join(c.Name, domain.PlaylistFileName))
	}

	body, err := playlist.Media(c.TargetDuration, c.SegmentSeconds)
	if err != nil {
		return err
	}
	return o.store.WriteFile(path.Join(c.Name, domain.PlaylistFileName), body)
}

func (o *Orchestrator) spawnFailed(c *Context, err error, logger *slog.Logger) error {
	spawnErr := &SpawnError{TranscodeID: c.TranscodeID, Err: err}
	o.releaseSlot(c)
	o.registry.Remove(c)
	o.cleanup(c, logger)
	c.Fail(spawnErr)
	observability.JobsFinished.WithLabelValues(string(c.Kind), c.State().String()).Inc()
	logger.Error("transcode failed to start", slog.Any("error", err))
	return spawnErr
}

// supervise follows one encoder until it exits: it records finished
// segments, forwards stop requests and settles the context.
func (o *Orchestrator) supervise(c *Context, p *Process, logger *slog.Logger) {
	defer o.wg.Done()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	segments := make(chan int64)
	var watchDone chan struct{}
	if c.Segmented() {
		listing := domain.TempPlaylistFileName
		if c.Live {
			listing = domain.PlaylistFileName
		}
		w := segment.NewWatcher(c.SegmentDir, listing, o.opts.RescanInterval, logger)
		watchDone = make(chan struct{})
		go func() {
			defer close(watchDone)
			err := w.Run(watchCtx, func(index int64) {
				select {
				case segments <- index:
				case <-watchCtx.Done():
					c.SetSegment(index)
				}
			})
			if err != nil {
				logger.Warn("segment watcher stopped", slog.Any("error", err))
			}
		}()
	}

	ticker := time.NewTicker(o.opts.RescanInterval)
	defer ticker.Stop()

	var grace <-chan time.Time
	stop := c.stopRequested()
	aborted := false

loop:
	for {
		select {
		case index := <-segments:
			c.SetSegment(index)
		case <-ticker.C:
			o.updateSize(c)
		case <-stop:
			stop = nil
			aborted = true
			if err := p.RequestGracefulStop(); err != nil {
				logger.Debug("graceful stop request failed", slog.Any("error", err))
			}
			timer := time.NewTimer(o.opts.StopGrace)
			defer timer.Stop()
			grace = timer.C
		case <-grace:
			grace = nil
			logger.Warn("encoder ignored stop request, killing it")
			p.Kill()
		case <-p.Done():
			break loop
		}
	}

	stopWatch()
	if watchDone != nil {
		<-watchDone
	}
	o.updateSize(c)
	o.settle(c, p, aborted, logger)
}

// settle records the outcome of a finished encoder. The output is touched
// or removed before the context turns terminal, so Done observers see the
// final cache state.
func (o *Orchestrator) settle(c *Context, p *Process, aborted bool, logger *slog.Logger) {
	code := p.ExitCode()
	c.setExitCode(code)
	o.releaseSlot(c)

	var (
		state State
		err   error
	)
	switch {
	case aborted || (code != 0 && c.stopping()):
		state, err = StateAborted, ErrAborted
	case p.Err() != nil:
		state, err = StateFailed, p.Err()
	case code != 0:
		state, err = StateFailed, &ExitError{TranscodeID: c.TranscodeID, Code: code, Stderr: p.Stderr()}
	case !c.Live && !c.Segmented() && !o.store.Exists(c.Name):
		state, err = StateFailed, ErrEmptyOutput
	default:
		state = StateCompleted
	}

	o.registry.Remove(c)
	if state == StateCompleted {
		if c.Name != "" && !c.Live {
			if err := o.store.Touch(c.Name); err != nil {
				logger.Warn("touch cache entry", slog.String("name", c.Name), slog.Any("error", err))
			}
		}
	} else {
		o.cleanup(c, logger)
	}
	c.finish(state, err)

	observability.JobsFinished.WithLabelValues(string(c.Kind), state.String()).Inc()
	observability.JobDuration.WithLabelValues(string(c.Kind)).Observe(c.Elapsed().Seconds())

	attrs := []any{
		slog.String("state", state.String()),
		slog.Int("exit_code", code),
		slog.Duration("elapsed", c.Elapsed()),
	}
	if c.Segmented() {
		attrs = append(attrs, slog.Int64("last_segment", c.LastSegment()))
	}
	if state == StateFailed {
		observability.WithError(logger, err).Error("transcode failed", attrs...)
		return
	}
	logger.Info("transcode finished", attrs...)
}

// cleanup deletes what a failed or aborted job wrote unless another job
// has taken the artifact over.
func (o *Orchestrator) cleanup(c *Context, logger *slog.Logger) {
	if c.Name == "" || c.Cached {
		return
	}

	lock := o.store.Lock(c.Name)
	lock.Lock()
	defer lock.Unlock()
	if o.registry.InUse(c.Name) {
		return
	}
	if err := o.store.Remove(c.Name); err != nil {
		logger.Warn("remove partial output", slog.String("name", c.Name), slog.Any("error", err))
	}
}

func (o *Orchestrator) updateSize(c *Context) {
	if c.Name == "" || c.Segmented() {
		return
	}
	if fi, err := o.store.Stat(c.Name); err == nil {
		c.setSize(fi.Size())
	}
}

func (o *Orchestrator) releaseSlot(c *Context) {
	if o.slots != nil {
		o.slots.Release(c.ID)
	}
}

// OpenStream returns the output of c for reading. File outputs are waited
// for until they are non-empty and then followed while the encoder writes
// them; segmented outputs return the playlist.
func (o *Orchestrator) OpenStream(ctx context.Context, c *Context) (io.ReadCloser, error) {
	if c.Segmented() {
		body, err := o.Playlist(ctx, c, "")
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	if c.Name == "" {
		if s := c.Stream(); s != nil {
			return s, nil
		}
		if err := c.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	ready := func() bool { return o.store.Exists(c.Name) }
	if err := o.waitFor(ctx, c, o.opts.FileWaitTimeout, o.opts.PollInterval, ready); err != nil {
		return nil, err
	}
	f, err := o.store.Open(c.Name)
	if err != nil {
		return nil, err
	}
	if c.State().Terminal() {
		return f, nil
	}
	return &followReader{file: f, job: c, interval: o.opts.PollInterval}, nil
}

// followReader reads a file an encoder is still writing. At the end of the
// written data it waits for more until the job is done; a job that did not
// complete ends the stream with its error.
type followReader struct {
	file     io.ReadCloser
	job      *Context
	interval time.Duration
}

func (r *followReader) Read(p []byte) (int, error) {
	for {
		n, err := r.file.Read(p)
		if n > 0 || !errors.Is(err, io.EOF) {
			return n, err
		}

		select {
		case <-r.job.Done():
			n, err = r.file.Read(p)
			if n == 0 && errors.Is(err, io.EOF) && r.job.Err() != nil {
				return 0, r.job.Err()
			}
			return n, err
		case <-time.After(r.interval):
		}
	}
}

func (r *followReader) Close() error {
	return r.file.Close()
}

// Playlist returns the segmented playlist of c with segment URIs pointing
// at baseURL. An empty baseURL uses the one the request carried.
func (o *Orchestrator) Playlist(ctx context.Context, c *Context, baseURL string) ([]byte, error) {
	if !c.Segmented() {
		return nil, ErrNotSegmented
	}
	if baseURL != "" {
		c.SetHLSBaseURL(baseURL)
	} else {
		baseURL = c.HLSBaseURL()
	}

	name := path.Join(c.Name, domain.PlaylistFileName)
	ready := func() bool { return o.store.Exists(name) }
	if err := o.waitFor(ctx, c, o.opts.PlaylistWaitTimeout, o.opts.SegmentPollInterval, ready); err != nil {
		return nil, err
	}
	body, err := o.store.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return playlist.Rewrite(body, baseURL), nil
}

// Segment returns one segment of c. A segment behind the client position
// or too far ahead of it that does not exist yet is unavailable: the client
// is seeking and should request a new transcode. Otherwise it is waited for
// until the encoder lists it.
func (o *Orchestrator) Segment(ctx context.Context, c *Context, name string) (io.ReadCloser, error) {
	if !c.Segmented() {
		return nil, ErrNotSegmented
	}
	index, ok := playlist.ParseSegmentIndex(name)
	if !ok {
		return nil, ErrNotFound
	}

	file := segmentFile(c.Name, index)
	listing := path.Join(c.Name, domain.TempPlaylistFileName)
	if c.Live {
		listing = path.Join(c.Name, domain.PlaylistFileName)
	}

	deadline := time.NewTimer(o.opts.PlaylistWaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.opts.SegmentPollInterval)
	defer ticker.Stop()

	for c.Running() {
		if !o.store.Exists(file) {
			current := c.CurrentSegment()
			if current > index || index-current > forwardWindow {
				return nil, ErrSegmentUnavailable
			}
		} else if body, err := o.store.ReadFile(listing); err == nil && playlist.Contains(body, index) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrWaitTimeout
		case <-ticker.C:
		case <-c.Done():
		}
	}

	if !o.store.Exists(file) {
		return nil, ErrSegmentUnavailable
	}
	c.Seek(index)
	return o.store.Open(file)
}

func (o *Orchestrator) waitFor(ctx context.Context, c *Context, timeout, interval time.Duration, ready func() bool) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ready() {
			return nil
		}
		if c.State().Terminal() {
			if ready() {
				return nil
			}
			if err := c.Err(); err != nil {
				return err
			}
			return ErrNotFound
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrWaitTimeout
		case <-ticker.C:
		case <-c.Done():
		}
	}
}

// Lookup returns the context a client was handed for a transcode.
func (o *Orchestrator) Lookup(clientID, transcodeID string) (*Context, error) {
	if c := o.registry.Lookup(clientID, transcodeID); c != nil {
		return c, nil
	}
	return nil, ErrNotFound
}

// StopTranscode stops every job of one transcode and reports whether there
// was one.
func (o *Orchestrator) StopTranscode(clientID, transcodeID string) bool {
	n := o.registry.Stop(clientID, transcodeID)
	if n > 0 {
		o.logger.Info("transcode stopped",
			slog.String("client_id", clientID),
			slog.String("transcode_id", transcodeID),
			slog.Int("jobs", n),
		)
	}
	return n > 0
}

func (o *Orchestrator) StopAll() {
	if n := o.registry.StopAll(); n > 0 {
		o.logger.Info("all transcodes stopped", slog.Int("jobs", n))
	}
}

// Active returns the running contexts.
func (o *Orchestrator) Active() []*Context {
	return o.registry.Active()
}

// InUse reports whether a running job writes the cache entry name.
func (o *Orchestrator) InUse(name string) bool {
	return o.registry.InUse(name)
}

// Close stops every job and waits for the encoders to exit. Encoders still
// running when ctx ends are killed.
func (o *Orchestrator) Close(ctx context.Context) error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	o.StopAll()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return errors.Join(ErrClosed, ctx.Err())
	}
}
