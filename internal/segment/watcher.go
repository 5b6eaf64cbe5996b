// Package segment follows the playlist an HLS muxer writes and reports the
// segments it has finished.
package segment

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eleven-am/transcoder/internal/observability"
	"github.com/eleven-am/transcoder/internal/playlist"
)

const DefaultRescanInterval = 2 * time.Second

// Watcher reports the highest segment listed in a muxer playlist. The
// muxer only lists a segment once it is complete.
type Watcher struct {
	dir      string
	playlist string
	rescan   time.Duration
	logger   *slog.Logger

	last atomic.Int64
}

func NewWatcher(dir, playlistName string, rescan time.Duration, logger *slog.Logger) *Watcher {
	if rescan <= 0 {
		rescan = DefaultRescanInterval
	}
	w := &Watcher{
		dir:      dir,
		playlist: playlistName,
		rescan:   rescan,
		logger:   observability.WithComponent(logger, "segment").With(slog.String("dir", dir)),
	}
	w.last.Store(-1)
	return w
}

// Run calls notify with every new highest segment index until ctx ends.
// Filesystem events drive it; a periodic rescan covers filesystems that do
// not deliver them.
func (w *Watcher) Run(ctx context.Context, notify func(index int64)) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fw.Add(w.dir); err != nil {
			_ = fw.Close()
		}
	}
	if err != nil {
		w.logger.Warn("segment notifications unavailable, rescanning only", slog.Any("error", err))
	} else {
		defer fw.Close()
		events, errs = fw.Events, fw.Errors
	}

	ticker := time.NewTicker(w.rescan)
	defer ticker.Stop()

	w.scan(notify)
	for {
		select {
		case <-ctx.Done():
			w.scan(notify)
			return nil
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if e.Has(fsnotify.Chmod) || filepath.Base(e.Name) != w.playlist {
				continue
			}
			w.scan(notify)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("segment watcher error", slog.Any("error", err))
		case <-ticker.C:
			w.scan(notify)
		}
	}
}

// Last is the highest segment reported so far, or -1.
func (w *Watcher) Last() int64 {
	return w.last.Load()
}

func (w *Watcher) scan(notify func(int64)) {
	body, err := os.ReadFile(filepath.Join(w.dir, w.playlist))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("read muxer playlist", slog.Any("error", err))
		}
		return
	}
	last, ok := playlist.LastSegment(body)
	if !ok || last <= w.last.Load() {
		return
	}
	w.last.Store(last)
	notify(last)
}
