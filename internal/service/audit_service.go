package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pressroom-io/pressroom/internal/domain/audit"
)

const (
	defaultAuditBufferSize   = 1000
	defaultAuditBatchSize    = 50
	defaultAuditFlushPeriod  = 2 * time.Second
	defaultAuditStopDeadline = 5 * time.Second
)

// AuditService decouples request handling from audit persistence.
// Records are buffered on a channel and written in batches by a
// background worker; when the buffer is full the record is dropped and
// counted rather than blocking a dispatch.
type AuditService struct {
	store   audit.Store
	logger  *slog.Logger
	records chan audit.Record

	batchSize   int
	flushPeriod time.Duration

	dropped atomic.Uint64

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// AuditOption configures an AuditService.
type AuditOption func(*AuditService)

// WithAuditBufferSize sets the channel buffer size.
func WithAuditBufferSize(n int) AuditOption {
	return func(s *AuditService) {
		s.records = make(chan audit.Record, n)
	}
}

// WithAuditBatchSize sets how many records are written per store call.
func WithAuditBatchSize(n int) AuditOption {
	return func(s *AuditService) {
		s.batchSize = n
	}
}

// WithAuditFlushPeriod sets how often a partial batch is flushed.
func WithAuditFlushPeriod(d time.Duration) AuditOption {
	return func(s *AuditService) {
		s.flushPeriod = d
	}
}

// NewAuditService creates the service and starts its worker goroutine.
func NewAuditService(store audit.Store, logger *slog.Logger, opts ...AuditOption) *AuditService {
	s := &AuditService{
		store:       store,
		logger:      logger,
		records:     make(chan audit.Record, defaultAuditBufferSize),
		batchSize:   defaultAuditBatchSize,
		flushPeriod: defaultAuditFlushPeriod,
		stopped:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.worker()
	return s
}

// Record queues an audit record without blocking. Params are redacted
// before the record leaves the calling goroutine.
func (s *AuditService) Record(record audit.Record) {
	record.Params = audit.RedactSensitiveParams(record.Params)

	select {
	case s.records <- record:
	default:
		n := s.dropped.Add(1)
		if n%100 == 1 {
			s.logger.Warn("audit buffer full, dropping records",
				"dropped_total", n,
				"action", record.Action,
			)
		}
	}
}

// Dropped returns the number of records dropped due to a full buffer.
func (s *AuditService) Dropped() uint64 {
	return s.dropped.Load()
}

// Stop drains the buffer, flushes remaining records and closes the
// underlying store. Blocks up to a deadline.
func (s *AuditService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		select {
		case <-s.done:
		case <-time.After(defaultAuditStopDeadline):
			s.logger.Warn("audit service stop deadline exceeded")
		}
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close audit store", "error", err)
		}
	})
}

// worker batches records and flushes on size or timer.
func (s *AuditService) worker() {
	defer close(s.done)

	batch := make([]audit.Record, 0, s.batchSize)
	ticker := time.NewTicker(s.flushPeriod)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Append(ctx, batch...); err != nil {
			s.logger.Error("failed to write audit batch",
				"error", err,
				"batch_size", len(batch),
			)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case record := <-s.records:
			batch = append(batch, record)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopped:
			// Drain whatever is still buffered, then final flush.
			for {
				select {
				case record := <-s.records:
					batch = append(batch, record)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
