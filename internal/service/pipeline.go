package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/observability"
	"github.com/kursadbilgin/rowhook/internal/provider"
	"go.uber.org/zap"
)

const (
	DefaultDispatchDelay = 200 * time.Millisecond
	DefaultRetryDelay    = 2 * time.Second
)

// ProgressFunc receives the 1-based number of records attempted so far in the
// dispatch pass and the total record count. It runs on the delivery path and
// must return quickly.
type ProgressFunc func(current, total int)

// AttemptObserver receives every attempt of both passes. It runs on the
// delivery path and must not block.
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, attempt domain.Attempt)
}

// RunRequest is the input of one pipeline run.
type RunRequest struct {
	RunID    string
	Columns  []string
	Rows     []domain.RawRow
	Endpoint string
	Progress ProgressFunc
}

// Validate rejects malformed input before any request is sent.
func (r RunRequest) Validate() error {
	if err := domain.ValidateEndpoint(r.Endpoint); err != nil {
		return err
	}
	if err := domain.ValidateColumns(r.Columns); err != nil {
		return err
	}
	return domain.ValidateRows(r.Columns, r.Rows)
}

// Pipeline delivers rows one at a time, then re-sends first-pass failures once.
type Pipeline struct {
	sender        provider.Sender
	logger        *zap.Logger
	metrics       *observability.Metrics
	observer      AttemptObserver
	dispatchDelay time.Duration
	retryDelay    time.Duration
	now           func() time.Time
	sleep         func(d time.Duration)
}

func NewPipeline(
	sender provider.Sender,
	dispatchDelay time.Duration,
	retryDelay time.Duration,
	logger *zap.Logger,
) (*Pipeline, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if dispatchDelay < 0 {
		return nil, fmt.Errorf("dispatch delay must be >= 0, got %s", dispatchDelay)
	}
	if retryDelay < 0 {
		return nil, fmt.Errorf("retry delay must be >= 0, got %s", retryDelay)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		sender:        sender,
		logger:        logger,
		dispatchDelay: dispatchDelay,
		retryDelay:    retryDelay,
		now:           time.Now,
		sleep:         time.Sleep,
	}, nil
}

func (p *Pipeline) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

func (p *Pipeline) SetObserver(observer AttemptObserver) {
	if p == nil {
		return
	}
	p.observer = observer
}

// Run executes the dispatch pass and, when anything failed, the retry sweep.
// Once started a run is not cancellable: ctx only scopes values.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*domain.RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if req.RunID != "" {
		ctx = observability.WithRunID(ctx, req.RunID)
	}
	logger := observability.WithContextLogger(p.logger, ctx)

	p.metrics.IncRunsInFlight()
	defer p.metrics.DecRunsInFlight()

	total := len(req.Rows)
	logger.Info("run started",
		zap.Int("records", total),
		zap.String("endpoint", req.Endpoint),
	)

	start := p.now()
	failed := p.dispatchPass(ctx, logger, req)

	permanentlyFailed := []domain.Payload{}
	if len(failed) > 0 {
		permanentlyFailed = p.retrySweep(ctx, logger, req, failed)
	}

	summary := &domain.RunSummary{
		TotalRecords:      total,
		Elapsed:           p.now().Sub(start),
		PermanentlyFailed: permanentlyFailed,
	}

	for _, payload := range permanentlyFailed {
		logger.Error("record not delivered after retry", observability.Payload("payload", payload))
	}
	logger.Info("run finished",
		zap.Int("records", total),
		zap.Int("firstPassFailures", len(failed)),
		zap.Int("permanentlyFailed", len(permanentlyFailed)),
		zap.Float64("elapsedSeconds", summary.ElapsedSeconds()),
	)
	p.metrics.ObserveRunFinished(*summary)

	return summary, nil
}

func (p *Pipeline) dispatchPass(ctx context.Context, logger *zap.Logger, req RunRequest) []domain.Payload {
	total := len(req.Rows)
	failed := make([]domain.Payload, 0)

	for i, row := range req.Rows {
		payload := domain.BuildPayload(domain.Normalize(req.Columns, row), req.Columns)

		outcome := p.attempt(ctx, logger, req, domain.PassDispatch, i+1, total, payload)
		if !outcome.Delivered {
			failed = append(failed, payload)
		}

		if req.Progress != nil {
			req.Progress(i+1, total)
		}
		p.pause(p.dispatchDelay)
	}

	return failed
}

func (p *Pipeline) retrySweep(ctx context.Context, logger *zap.Logger, req RunRequest, failed []domain.Payload) []domain.Payload {
	candidates := make([]domain.Payload, 0, len(failed))
	for _, payload := range failed {
		candidates = append(candidates, payload.Clone())
	}

	logger.Info("retry sweep started", zap.Int("records", len(candidates)))

	permanentlyFailed := make([]domain.Payload, 0)
	for i, payload := range candidates {
		outcome := p.attempt(ctx, logger, req, domain.PassRetry, i+1, len(candidates), payload)
		if !outcome.Delivered {
			permanentlyFailed = append(permanentlyFailed, payload)
		}
		p.pause(p.retryDelay)
	}

	return permanentlyFailed
}

func (p *Pipeline) attempt(
	ctx context.Context,
	logger *zap.Logger,
	req RunRequest,
	pass domain.Pass,
	sequence int,
	total int,
	payload domain.Payload,
) domain.Outcome {
	sendStart := p.now()
	resp, sendErr := p.sender.Send(ctx, req.Endpoint, payload)
	duration := p.now().Sub(sendStart)

	outcome := provider.OutcomeOf(resp, sendErr)
	p.metrics.ObserveAttempt(pass, outcome, duration)

	fields := []zap.Field{
		zap.String("pass", pass.String()),
		zap.Int("sequence", sequence),
		zap.Int("total", total),
		observability.Payload("payload", payload),
	}
	if resp != nil {
		fields = append(fields,
			zap.Int("status", resp.StatusCode),
			zap.String("responseBody", resp.Body),
		)
	}

	if outcome.Delivered {
		logger.Info("record delivered", fields...)
	} else {
		fields = append(fields,
			zap.String("failureKind", outcome.Kind.String()),
			zap.Error(sendErr),
		)
		if pass == domain.PassRetry {
			logger.Error("record delivery failed again", fields...)
		} else {
			logger.Error("record delivery failed", fields...)
		}
	}

	if p.observer != nil {
		p.observer.ObserveAttempt(ctx, domain.Attempt{
			RunID:     req.RunID,
			Pass:      pass,
			Sequence:  sequence,
			Total:     total,
			Payload:   payload,
			Outcome:   outcome,
			Duration:  duration,
			CreatedAt: sendStart.UTC(),
		})
	}

	return outcome
}

func (p *Pipeline) pause(d time.Duration) {
	if d <= 0 || p.sleep == nil {
		return
	}
	p.sleep(d)
}
