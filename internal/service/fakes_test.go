package service

import (
	"context"
	"sync"

	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/provider"
	"github.com/kursadbilgin/rowhook/internal/repository"
)

type fakeSender struct {
	calls  int
	sendFn func(ctx context.Context, endpoint string, payload domain.Payload) (*provider.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, endpoint string, payload domain.Payload) (*provider.Response, error) {
	f.calls++
	if f.sendFn != nil {
		return f.sendFn(ctx, endpoint, payload)
	}
	return &provider.Response{StatusCode: 200}, nil
}

type recordingObserver struct {
	attempts []domain.Attempt
}

func (r *recordingObserver) ObserveAttempt(ctx context.Context, attempt domain.Attempt) {
	r.attempts = append(r.attempts, attempt)
}

type fakeRunner struct {
	runFn func(ctx context.Context, req RunRequest) (*domain.RunSummary, error)
}

func (f *fakeRunner) Run(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
	if f.runFn != nil {
		return f.runFn(ctx, req)
	}
	return &domain.RunSummary{TotalRecords: len(req.Rows), PermanentlyFailed: []domain.Payload{}}, nil
}

type fakeRunRepo struct {
	mu        sync.Mutex
	created   []domain.Run
	updated   []domain.Run
	createFn  func(ctx context.Context, run *domain.Run) error
	updateFn  func(ctx context.Context, run *domain.Run) error
	getByIDFn func(ctx context.Context, id string) (*domain.Run, error)
	listFn    func(ctx context.Context, limit int) ([]domain.Run, error)
}

var _ repository.RunRepository = (*fakeRunRepo)(nil)

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.Run) error {
	f.mu.Lock()
	f.created = append(f.created, *run)
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(ctx, run)
	}
	return nil
}

func (f *fakeRunRepo) Update(ctx context.Context, run *domain.Run) error {
	f.mu.Lock()
	f.updated = append(f.updated, *run)
	f.mu.Unlock()
	if f.updateFn != nil {
		return f.updateFn(ctx, run)
	}
	return nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit)
	}
	return []domain.Run{}, nil
}

func (f *fakeRunRepo) updates() []domain.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Run, len(f.updated))
	copy(out, f.updated)
	return out
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.Attempt
	createFn func(ctx context.Context, a *domain.Attempt) error
}

var _ repository.AttemptRepository = (*fakeAttemptRepo)(nil)

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.Attempt) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.attempts = append(f.attempts, *a)
	f.mu.Unlock()
	return nil
}

func (f *fakeAttemptRepo) ListByRunID(ctx context.Context, runID string) ([]domain.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Attempt, 0)
	for _, a := range f.attempts {
		if a.RunID == runID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) stored() []domain.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Attempt, len(f.attempts))
	copy(out, f.attempts)
	return out
}
