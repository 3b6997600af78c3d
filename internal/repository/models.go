package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/rowhook/internal/domain"
)

// runRecord is the JSON document stored per run in the history store.
type runRecord struct {
	ID           string             `json:"id"`
	Source       string             `json:"source,omitempty"`
	Endpoint     string             `json:"endpoint"`
	Status       domain.RunStatus   `json:"status"`
	TotalRecords int                `json:"total_records"`
	Summary      *domain.RunSummary `json:"summary,omitempty"`
	Error        string             `json:"error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// AttemptModel is the persistence model for delivery_attempts.
type AttemptModel struct {
	ID          string      `gorm:"type:uuid;primaryKey"`
	RunID       string      `gorm:"type:varchar(36);not null"`
	Pass        domain.Pass `gorm:"type:varchar(10);not null"`
	Sequence    int         `gorm:"not null"`
	Total       int         `gorm:"not null"`
	Payload     string      `gorm:"type:jsonb;not null"`
	Delivered   bool        `gorm:"not null;default:false"`
	FailureKind *string     `gorm:"type:varchar(20)"`
	StatusCode  *int        `gorm:"type:int"`
	Reason      *string     `gorm:"type:text"`
	DurationMS  int64       `gorm:"column:duration_ms;not null;default:0"`
	CreatedAt   time.Time
}

func (AttemptModel) TableName() string {
	return "delivery_attempts"
}

func runRecordFromDomain(r *domain.Run) *runRecord {
	if r == nil {
		return nil
	}

	return &runRecord{
		ID:           r.ID,
		Source:       r.Source,
		Endpoint:     r.Endpoint,
		Status:       r.Status,
		TotalRecords: r.TotalRecords,
		Summary:      r.Summary,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func runRecordToDomain(m *runRecord) *domain.Run {
	if m == nil {
		return nil
	}

	return &domain.Run{
		ID:           m.ID,
		Source:       m.Source,
		Endpoint:     m.Endpoint,
		Status:       m.Status,
		TotalRecords: m.TotalRecords,
		Summary:      m.Summary,
		Error:        m.Error,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.Attempt) (*AttemptModel, error) {
	if a == nil {
		return nil, nil
	}

	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, err
	}

	m := &AttemptModel{
		ID:         a.ID,
		RunID:      a.RunID,
		Pass:       a.Pass,
		Sequence:   a.Sequence,
		Total:      a.Total,
		Payload:    string(payload),
		Delivered:  a.Outcome.Delivered,
		DurationMS: a.Duration.Milliseconds(),
		CreatedAt:  a.CreatedAt,
	}
	if a.Outcome.StatusCode > 0 {
		code := a.Outcome.StatusCode
		m.StatusCode = &code
	}
	if !a.Outcome.Delivered {
		kind := a.Outcome.Kind.String()
		m.FailureKind = &kind
		if a.Outcome.Reason != "" {
			reason := a.Outcome.Reason
			m.Reason = &reason
		}
	}
	return m, nil
}

func attemptModelToDomain(m *AttemptModel) (*domain.Attempt, error) {
	if m == nil {
		return nil, nil
	}

	var payload domain.Payload
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return nil, err
	}

	outcome := domain.Outcome{Delivered: m.Delivered}
	if m.StatusCode != nil {
		outcome.StatusCode = *m.StatusCode
	}
	if m.FailureKind != nil {
		outcome.Kind = domain.FailureKind(*m.FailureKind)
	}
	if m.Reason != nil {
		outcome.Reason = *m.Reason
	}

	return &domain.Attempt{
		ID:        m.ID,
		RunID:     m.RunID,
		Pass:      m.Pass,
		Sequence:  m.Sequence,
		Total:     m.Total,
		Payload:   payload,
		Outcome:   outcome,
		Duration:  time.Duration(m.DurationMS) * time.Millisecond,
		CreatedAt: m.CreatedAt,
	}, nil
}
