package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/observability"
	"github.com/kursadbilgin/rowhook/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	historyWriteTimeout = 5 * time.Second
)

// Runner executes one run end to end. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*domain.RunSummary, error)
}

// SubmitRunInput describes a run to start.
type SubmitRunInput struct {
	Source   string
	Columns  []string
	Rows     []domain.RawRow
	Endpoint string
	Progress ProgressFunc
}

func (in SubmitRunInput) request(runID string) RunRequest {
	return RunRequest{
		RunID:    runID,
		Columns:  in.Columns,
		Rows:     in.Rows,
		Endpoint: in.Endpoint,
		Progress: in.Progress,
	}
}

// RunService starts runs and keeps their history. History is optional: with
// a nil repository runs still execute but are not recorded.
type RunService struct {
	runs   repository.RunRepository
	runner Runner
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	wg     sync.WaitGroup
}

func NewRunService(
	runs repository.RunRepository,
	runner Runner,
	logger *zap.Logger,
) (*RunService, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RunService{
		runs:   runs,
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}, nil
}

// Submit records a new RUNNING run and executes it in the background. The
// returned run is the initial history entry.
func (s *RunService) Submit(ctx context.Context, in SubmitRunInput) (*domain.Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.runs == nil {
		return nil, fmt.Errorf("run history is not configured")
	}

	run, err := s.start(ctx, in)
	if err != nil {
		return nil, err
	}

	initial := *run
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(bg, run, in)
	}()

	return &initial, nil
}

// Execute runs synchronously and returns the finished run.
func (s *RunService) Execute(ctx context.Context, in SubmitRunInput) (*domain.Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	run, err := s.start(ctx, in)
	if err != nil {
		return nil, err
	}

	s.execute(ctx, run, in)
	if run.Status == domain.RunStatusFailed {
		return run, fmt.Errorf("run %s failed: %s", run.ID, run.Error)
	}
	return run, nil
}

func (s *RunService) start(ctx context.Context, in SubmitRunInput) (*domain.Run, error) {
	if err := in.request("").Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	run := &domain.Run{
		ID:           s.newID(),
		Source:       in.Source,
		Endpoint:     in.Endpoint,
		Status:       domain.RunStatusRunning,
		TotalRecords: len(in.Rows),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	return run, nil
}

func (s *RunService) execute(ctx context.Context, run *domain.Run, in SubmitRunInput) {
	logger := observability.WithContextLogger(s.logger, observability.WithRunID(ctx, run.ID))

	summary, err := s.runner.Run(ctx, in.request(run.ID))
	run.UpdatedAt = s.now()
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = summary.Status()
		run.Summary = summary
	}

	if s.runs == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	if err := s.runs.Update(writeCtx, run); err != nil {
		logger.Error("failed to record run result",
			zap.String("status", run.Status.String()),
			zap.Error(err),
		)
	}
}

func (s *RunService) Get(ctx context.Context, id string) (*domain.Run, error) {
	if s.runs == nil {
		return nil, domain.ErrNotFound
	}
	return s.runs.GetByID(ctx, id)
}

// List returns the most recent runs. A non-positive limit selects the
// default and larger limits are capped.
func (s *RunService) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.runs == nil {
		return []domain.Run{}, nil
	}
	return s.runs.ListRecent(ctx, NormalizeListLimit(limit))
}

func NormalizeListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Wait blocks until every submitted run has finished.
func (s *RunService) Wait() {
	s.wg.Wait()
}
