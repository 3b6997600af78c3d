package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultJournalBuffer = 1024

	journalWriteTimeout = 5 * time.Second
)

// AttemptJournal persists attempts off the delivery path. ObserveAttempt never
// blocks: when the buffer is full the oldest pending attempt is dropped.
type AttemptJournal struct {
	attempts repository.AttemptRepository
	logger   *zap.Logger

	buf     chan domain.Attempt
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

func NewAttemptJournal(
	attempts repository.AttemptRepository,
	bufferSize int,
	logger *zap.Logger,
) (*AttemptJournal, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if bufferSize <= 0 {
		bufferSize = DefaultJournalBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &AttemptJournal{
		attempts: attempts,
		logger:   logger,
		buf:      make(chan domain.Attempt, bufferSize),
		done:     make(chan struct{}),
	}
	go j.writeLoop()

	return j, nil
}

func (j *AttemptJournal) ObserveAttempt(ctx context.Context, attempt domain.Attempt) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	select {
	case j.buf <- attempt:
		return
	default:
	}

	select {
	case evicted := <-j.buf:
		j.dropped.Add(1)
		j.logger.Warn("attempt journal buffer full, dropped oldest attempt",
			zap.String("runId", evicted.RunID),
			zap.String("pass", evicted.Pass.String()),
			zap.Int("sequence", evicted.Sequence),
		)
	default:
	}

	select {
	case j.buf <- attempt:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many attempts were discarded because the buffer was full.
func (j *AttemptJournal) Dropped() int64 {
	return j.dropped.Load()
}

// Close stops accepting attempts and waits until the buffered ones are written.
func (j *AttemptJournal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return
	}
	j.closed = true
	close(j.buf)
	j.mu.Unlock()

	<-j.done
}

func (j *AttemptJournal) writeLoop() {
	defer close(j.done)

	for attempt := range j.buf {
		j.write(attempt)
	}
}

func (j *AttemptJournal) write(attempt domain.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	if err := j.attempts.Create(ctx, &attempt); err != nil {
		j.logger.Error("failed to write attempt",
			zap.String("runId", attempt.RunID),
			zap.String("pass", attempt.Pass.String()),
			zap.Int("sequence", attempt.Sequence),
			zap.Error(err),
		)
	}
}
