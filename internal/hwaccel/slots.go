package hwaccel

import (
	"log/slog"
	"sync"

	"github.com/marusama/semaphore/v2"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/observability"
)

// Slots hands out encoder backends per job. Hardware backends have a fixed
// number of concurrent sessions; software is never exhausted.
type Slots struct {
	caps     Capabilities
	priority []domain.Accelerator
	logger   *slog.Logger

	mu       sync.Mutex
	sems     map[domain.Accelerator]semaphore.Semaphore
	assigned map[string]*domain.HWAccelConfig
}

// NewSlots creates a handler with perDevice sessions for every detected
// hardware accelerator. A nil priority uses DefaultPriority.
func NewSlots(caps Capabilities, perDevice int, priority []domain.Accelerator, logger *slog.Logger) *Slots {
	if priority == nil {
		priority = DefaultPriority
	}
	if perDevice <= 0 {
		perDevice = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	sems := make(map[domain.Accelerator]semaphore.Semaphore)
	for accel := range caps {
		if accel.IsHardware() {
			sems[accel] = semaphore.New(perDevice)
		}
	}

	return &Slots{
		caps:     caps,
		priority: priority,
		logger:   observability.WithComponent(logger, "slots"),
		sems:     sems,
		assigned: make(map[string]*domain.HWAccelConfig),
	}
}

// Acquire assigns the best free backend for codec to jobID. It never blocks.
// Calling it again for a job that holds a slot returns the same assignment.
func (s *Slots) Acquire(jobID string, codec domain.VideoCodec) *domain.HWAccelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg, ok := s.assigned[jobID]; ok {
		return cfg
	}

	accel := domain.AccelNone
	for _, candidate := range s.priority {
		if !s.caps.Supports(candidate, codec) {
			continue
		}
		sem, ok := s.sems[candidate]
		if !ok || !sem.TryAcquire(1) {
			continue
		}
		accel = candidate
		break
	}

	cfg := NewConfig(accel, codec)
	s.assigned[jobID] = cfg
	observability.SlotAcquisitions.WithLabelValues(string(accel)).Inc()
	s.logger.Debug("encoder assigned",
		slog.String("transcode_id", jobID),
		slog.String("accelerator", string(accel)),
		slog.String("encoder", cfg.Encoder),
	)
	return cfg
}

// Release frees the slot held by jobID. Releasing an unknown job is a no-op.
func (s *Slots) Release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.assigned[jobID]
	if !ok {
		return
	}
	delete(s.assigned, jobID)

	if sem, ok := s.sems[cfg.Accelerator]; ok {
		sem.Release(1)
	}
}

// InUse reports how many sessions of accel are currently assigned.
func (s *Slots) InUse(accel domain.Accelerator) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, cfg := range s.assigned {
		if cfg.Accelerator == accel {
			n++
		}
	}
	return n
}
