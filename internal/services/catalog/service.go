package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/models"
)

// Service records closed segments off the device loop. SegmentClosed only
// enqueues; a single goroutine probes and inserts.
type Service struct {
	repo   Repository
	prober Prober // optional
	logger zerolog.Logger

	queue   chan models.Segment
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

func NewService(repo Repository, prober Prober, queueSize int, logger zerolog.Logger) *Service {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &Service{
		repo:   repo,
		prober: prober,
		logger: logger,
		queue:  make(chan models.Segment, queueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Service) SegmentOpened(models.Segment) {}

// SegmentClosed never blocks; when the queue is full the segment is dropped
func (s *Service) SegmentClosed(seg models.Segment) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- seg:
	default:
		s.logger.Warn().
			Str("segment_id", seg.ID).
			Str("path", seg.Path).
			Int64("dropped", s.dropped.Add(1)).
			Msg("Catalog queue full, segment not recorded")
	}
}

func (s *Service) run() {
	defer close(s.done)
	for seg := range s.queue {
		s.record(seg)
	}
}

func (s *Service) record(seg models.Segment) {
	if s.prober != nil && seg.Frames > 0 {
		p, err := s.prober.Probe(seg.Path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", seg.Path).Msg("Failed to probe segment")
		} else {
			seg.Codec = p.Codec
			seg.Format = p.Format
			seg.DurationSeconds = p.DurationSeconds
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Add(ctx, seg); err != nil {
		s.logger.Error().Err(err).Str("segment_id", seg.ID).Msg("Failed to record segment")
		return
	}
	s.logger.Debug().
		Str("segment_id", seg.ID).
		Str("codec", seg.Codec).
		Float64("duration_seconds", seg.DurationSeconds).
		Msg("Segment recorded")
}

// List returns the newest segments of a device
func (s *Service) List(ctx context.Context, deviceIndex, limit int) ([]models.Segment, error) {
	return s.repo.ListByDevice(ctx, deviceIndex, limit)
}

// Close stops accepting segments and waits for the queue to drain
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
