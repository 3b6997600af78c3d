package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/rowhook/internal/domain"
	"go.uber.org/zap"
)

func newTestRunService(t *testing.T, runs *fakeRunRepo, runner Runner) *RunService {
	t.Helper()

	var svc *RunService
	var err error
	if runs == nil {
		svc, err = NewRunService(nil, runner, zap.NewNop())
	} else {
		svc, err = NewRunService(runs, runner, zap.NewNop())
	}
	if err != nil {
		t.Fatalf("NewRunService() error = %v", err)
	}

	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	svc.newID = func() string { return "run-1" }
	return svc
}

func validSubmitInput() SubmitRunInput {
	return SubmitRunInput{
		Source:   "contacts.csv",
		Columns:  testColumns,
		Rows:     testRows(3),
		Endpoint: "https://hooks.example.com/in",
	}
}

func TestNewRunServiceRequiresRunner(t *testing.T) {
	t.Parallel()

	if _, err := NewRunService(&fakeRunRepo{}, nil, nil); err == nil {
		t.Fatal("expected error when runner is nil")
	}
}

func TestRunServiceSubmitCompletes(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{}
	var gotReq RunRequest
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			gotReq = req
			return &domain.RunSummary{TotalRecords: len(req.Rows), PermanentlyFailed: []domain.Payload{}}, nil
		},
	}
	svc := newTestRunService(t, runs, runner)

	run, err := svc.Submit(context.Background(), validSubmitInput())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	svc.Wait()

	if run.ID != "run-1" || run.Status != domain.RunStatusRunning || run.TotalRecords != 3 {
		t.Fatalf("submitted run = %+v", run)
	}
	if len(runs.created) != 1 || runs.created[0].Status != domain.RunStatusRunning {
		t.Fatalf("created = %+v", runs.created)
	}
	if gotReq.RunID != "run-1" || gotReq.Endpoint != "https://hooks.example.com/in" {
		t.Fatalf("runner request = %+v", gotReq)
	}

	updates := runs.updates()
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].Status != domain.RunStatusCompleted || updates[0].Summary == nil {
		t.Fatalf("final run = %+v", updates[0])
	}
}

func TestRunServiceSubmitPartialFailure(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{}
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			return &domain.RunSummary{
				TotalRecords:      len(req.Rows),
				PermanentlyFailed: []domain.Payload{domain.NewPayload(domain.Field{Key: "id", Value: "3"})},
			}, nil
		},
	}
	svc := newTestRunService(t, runs, runner)

	if _, err := svc.Submit(context.Background(), validSubmitInput()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	svc.Wait()

	updates := runs.updates()
	if len(updates) != 1 || updates[0].Status != domain.RunStatusPartialFailure {
		t.Fatalf("updates = %+v, want one PARTIAL_FAILURE", updates)
	}
}

func TestRunServiceSubmitRunnerErrorMarksFailed(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{}
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			return nil, errors.New("boom")
		},
	}
	svc := newTestRunService(t, runs, runner)

	if _, err := svc.Submit(context.Background(), validSubmitInput()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	svc.Wait()

	updates := runs.updates()
	if len(updates) != 1 || updates[0].Status != domain.RunStatusFailed || updates[0].Error != "boom" {
		t.Fatalf("updates = %+v, want one FAILED", updates)
	}
}

func TestRunServiceSubmitValidationSkipsHistory(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{}
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			t.Error("runner should not be called")
			return nil, nil
		},
	}
	svc := newTestRunService(t, runs, runner)

	in := validSubmitInput()
	in.Rows = []domain.RawRow{{1.0}}

	_, err := svc.Submit(context.Background(), in)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Submit() error = %v, want ErrValidation", err)
	}
	svc.Wait()
	if len(runs.created) != 0 {
		t.Fatalf("created = %d, want 0", len(runs.created))
	}
}

func TestRunServiceSubmitCreateError(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{
		createFn: func(ctx context.Context, run *domain.Run) error {
			return errors.New("redis down")
		},
	}
	called := false
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			called = true
			return &domain.RunSummary{}, nil
		},
	}
	svc := newTestRunService(t, runs, runner)

	if _, err := svc.Submit(context.Background(), validSubmitInput()); err == nil {
		t.Fatal("expected error when history write fails")
	}
	svc.Wait()
	if called {
		t.Fatal("runner should not be called when history write fails")
	}
}

func TestRunServiceSubmitRequiresHistory(t *testing.T) {
	t.Parallel()

	svc := newTestRunService(t, nil, &fakeRunner{})

	if _, err := svc.Submit(context.Background(), validSubmitInput()); err == nil {
		t.Fatal("expected error without history store")
	}
}

func TestRunServiceSubmitOutlivesRequestContext(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{}
	release := make(chan struct{})
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			<-release
			if ctx.Err() != nil {
				t.Errorf("runner context error = %v, want nil", ctx.Err())
			}
			return &domain.RunSummary{TotalRecords: len(req.Rows), PermanentlyFailed: []domain.Payload{}}, nil
		},
	}
	svc := newTestRunService(t, runs, runner)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := svc.Submit(ctx, validSubmitInput()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	cancel()
	close(release)
	svc.Wait()

	updates := runs.updates()
	if len(updates) != 1 || updates[0].Status != domain.RunStatusCompleted {
		t.Fatalf("updates = %+v, want one COMPLETED", updates)
	}
}

func TestRunServiceExecuteWithoutHistory(t *testing.T) {
	t.Parallel()

	svc := newTestRunService(t, nil, &fakeRunner{})

	run, err := svc.Execute(context.Background(), validSubmitInput())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if run.Status != domain.RunStatusCompleted || run.Summary == nil || run.Summary.TotalRecords != 3 {
		t.Fatalf("run = %+v", run)
	}
}

func TestRunServiceExecuteRecordsHistory(t *testing.T) {
	t.Parallel()

	runs := &fakeRunRepo{}
	svc := newTestRunService(t, runs, &fakeRunner{})

	run, err := svc.Execute(context.Background(), validSubmitInput())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(runs.created) != 1 || len(runs.updates()) != 1 {
		t.Fatalf("created=%d updated=%d, want 1/1", len(runs.created), len(runs.updates()))
	}
	if run.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt should be set")
	}
}

func TestRunServiceExecuteRunnerError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		runFn: func(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
			return nil, errors.New("boom")
		},
	}
	svc := newTestRunService(t, nil, runner)

	run, err := svc.Execute(context.Background(), validSubmitInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if run == nil || run.Status != domain.RunStatusFailed {
		t.Fatalf("run = %+v, want FAILED", run)
	}
}

func TestRunServiceGetAndList(t *testing.T) {
	t.Parallel()

	var gotLimit int
	runs := &fakeRunRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Run, error) {
			if id == "run-9" {
				return &domain.Run{ID: id, Status: domain.RunStatusCompleted}, nil
			}
			return nil, domain.ErrNotFound
		},
		listFn: func(ctx context.Context, limit int) ([]domain.Run, error) {
			gotLimit = limit
			return []domain.Run{{ID: "run-9"}}, nil
		},
	}
	svc := newTestRunService(t, runs, &fakeRunner{})

	run, err := svc.Get(context.Background(), "run-9")
	if err != nil || run.ID != "run-9" {
		t.Fatalf("Get() = %+v, %v", run, err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	list, err := svc.List(context.Background(), 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %+v, %v", list, err)
	}
	if gotLimit != DefaultListLimit {
		t.Fatalf("limit = %d, want %d", gotLimit, DefaultListLimit)
	}
}

func TestRunServiceWithoutHistoryReads(t *testing.T) {
	t.Parallel()

	svc := newTestRunService(t, nil, &fakeRunner{})

	if _, err := svc.Get(context.Background(), "run-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	list, err := svc.List(context.Background(), 5)
	if err != nil || len(list) != 0 {
		t.Fatalf("List() = %+v, %v", list, err)
	}
}

func TestNormalizeListLimit(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   int
		want int
	}{
		{in: -1, want: DefaultListLimit},
		{in: 0, want: DefaultListLimit},
		{in: 1, want: 1},
		{in: 100, want: 100},
		{in: 101, want: MaxListLimit},
	}

	for _, tc := range testCases {
		if got := NormalizeListLimit(tc.in); got != tc.want {
			t.Fatalf("NormalizeListLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
