package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"github.com/eleven-am/transcoder/internal/observability"
)

const (
	reasonEmpty = "empty"
	reasonAge   = "age"
	reasonSize  = "size"
)

type Policy struct {
	// MaxAge evicts artifacts not used for longer. Zero disables it.
	MaxAge time.Duration
	// MaxSize evicts the oldest artifacts until the cache fits. Zero
	// disables it.
	MaxSize int64
}

// Report summarizes one sweep.
type Report struct {
	Removed   []string
	Freed     int64
	Remaining int64
}

// Sweeper removes empty, stale and excess artifacts on a cron schedule.
type Sweeper struct {
	store  *Store
	policy Policy
	inUse  func(name string) bool
	logger *slog.Logger

	cron *cron.Cron
}

// NewSweeper creates a sweeper. inUse reports artifacts an active job still
// writes; they are never removed.
func NewSweeper(store *Store, policy Policy, inUse func(name string) bool, logger *slog.Logger) *Sweeper {
	if inUse == nil {
		inUse = func(string) bool { return false }
	}
	return &Sweeper{
		store:  store,
		policy: policy,
		inUse:  inUse,
		logger: observability.WithComponent(logger, "cache"),
	}
}

// Start runs Sweep on schedule until Stop.
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(); err != nil {
			s.logger.Error("cache sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule cache sweep %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("cache sweeper started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep deletes zero-length files, then artifacts older than MaxAge, then
// the oldest artifacts until the cache is within MaxSize.
func (s *Sweeper) Sweep() (Report, error) {
	entries, err := s.store.Entries()
	if err != nil {
		return Report{}, err
	}

	var (
		report Report
		kept   []Entry
		total  int64
	)
	cutoff := s.store.now().Add(-s.policy.MaxAge)

	for _, e := range entries {
		switch {
		case s.inUse(e.Name):
		case !e.IsDir && e.Size == 0:
			if s.remove(&report, e, reasonEmpty) {
				continue
			}
		case s.policy.MaxAge > 0 && e.ModTime.Before(cutoff):
			if s.remove(&report, e, reasonAge) {
				continue
			}
		}
		kept = append(kept, e)
		total += e.Size
	}

	if s.policy.MaxSize > 0 {
		for _, e := range kept {
			if total <= s.policy.MaxSize {
				break
			}
			if s.inUse(e.Name) {
				continue
			}
			if s.remove(&report, e, reasonSize) {
				total -= e.Size
			}
		}
	}

	report.Remaining = total
	observability.CacheSizeBytes.Set(float64(total))
	if len(report.Removed) > 0 {
		s.logger.Info("cache swept",
			slog.Int("removed", len(report.Removed)),
			slog.String("freed", humanize.IBytes(uint64(report.Freed))),
			slog.String("remaining", humanize.IBytes(uint64(total))),
		)
	}
	return report, nil
}

// remove evicts e unless a job claimed it or it was used since the listing.
// The orchestrator registers jobs and serves cache hits under the same lock.
func (s *Sweeper) remove(r *Report, e Entry, reason string) bool {
	lock := s.store.Lock(e.Name)
	lock.Lock()
	defer lock.Unlock()

	if s.inUse(e.Name) {
		return false
	}
	fi, err := s.store.Stat(e.Name)
	if err != nil || fi.ModTime().After(e.ModTime) {
		return false
	}

	if err := s.store.Remove(e.Name); err != nil {
		s.logger.Warn("evict artifact", slog.String("name", e.Name), slog.Any("error", err))
		return false
	}
	r.Removed = append(r.Removed, e.Name)
	r.Freed += e.Size
	observability.CacheEvictions.WithLabelValues(reason).Inc()
	return true
}
