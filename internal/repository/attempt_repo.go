package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.Attempt) error
	ListByRunID(ctx context.Context, runID string) ([]domain.Attempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.Attempt) error {
	if a == nil {
		return nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	model, err := attemptModelFromDomain(a)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	a.CreatedAt = model.CreatedAt
	return nil
}

// ListByRunID returns the attempts of a run, dispatch pass first, each pass in
// record order.
func (r *GormAttemptRepo) ListByRunID(ctx context.Context, runID string) ([]domain.Attempt, error) {
	var models []AttemptModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Order("sequence ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.Attempt, 0, len(models))
	for i := range models {
		a, err := attemptModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}

	return attempts, nil
}
