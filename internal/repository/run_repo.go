package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix = "rowhook:run:"
	runListKey   = "rowhook:runs"
)

type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Run, error)
}

// RedisRunRepo keeps the most recent runs as JSON documents plus a list of
// run ids, newest first. Runs pushed out of the list are deleted.
type RedisRunRepo struct {
	client *redis.Client
	limit  int
}

func NewRedisRunRepo(client *redis.Client, limit int) (*RedisRunRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("history limit must be > 0, got %d", limit)
	}

	return &RedisRunRepo{client: client, limit: limit}, nil
}

func runKey(id string) string {
	return runKeyPrefix + id
}

func (r *RedisRunRepo) Create(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrValidation)
	}

	raw, err := json.Marshal(runRecordFromDomain(run))
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	created, err := r.client.SetNX(ctx, runKey(run.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: run %s already exists", domain.ErrConflict, run.ID)
	}

	var evicted *redis.StringSliceCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, runListKey, run.ID)
		evicted = pipe.LRange(ctx, runListKey, int64(r.limit), -1)
		pipe.LTrim(ctx, runListKey, 0, int64(r.limit-1))
		return nil
	})
	if err != nil {
		return err
	}

	ids := evicted.Val()
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, runKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

// Update overwrites an existing run. It returns ErrNotFound when the run was
// never stored or has already been evicted.
func (r *RedisRunRepo) Update(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrValidation)
	}

	raw, err := json.Marshal(runRecordFromDomain(run))
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	updated, err := r.client.SetXX(ctx, runKey(run.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RedisRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	raw, err := r.client.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var record runRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return runRecordToDomain(&record), nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RedisRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		return []domain.Run{}, nil
	}

	ids, err := r.client.LRange(ctx, runListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Run{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, runKey(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	runs := make([]domain.Run, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var record runRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", ids[i], err)
		}
		runs = append(runs, *runRecordToDomain(&record))
	}

	return runs, nil
}
