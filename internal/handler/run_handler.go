package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/service"
)

type RunService interface {
	Submit(ctx context.Context, in service.SubmitRunInput) (*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, limit int) ([]domain.Run, error)
}

type AttemptLister interface {
	ListByRunID(ctx context.Context, runID string) ([]domain.Attempt, error)
}

type RunHandler struct {
	service  RunService
	attempts AttemptLister
}

// NewRunHandler builds the run routes. attempts may be nil when no attempt
// journal is configured.
func NewRunHandler(service RunService, attempts AttemptLister) (*RunHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("run service is required")
	}
	return &RunHandler{service: service, attempts: attempts}, nil
}

func RegisterRunRoutes(router fiber.Router, service RunService, attempts AttemptLister) error {
	h, err := NewRunHandler(service, attempts)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/runs", h.SubmitRun)
	v1.Get("/runs", h.ListRuns)
	v1.Get("/runs/:id", h.GetRun)
	v1.Get("/runs/:id/attempts", h.ListAttempts)

	return nil
}

type submitRunRequest struct {
	Source   string          `json:"source"`
	Endpoint string          `json:"endpoint"`
	Columns  []string        `json:"columns"`
	Rows     []domain.RawRow `json:"rows"`
}

type runResponse struct {
	ID           string             `json:"id"`
	Source       string             `json:"source,omitempty"`
	Endpoint     string             `json:"endpoint"`
	Status       string             `json:"status"`
	TotalRecords int                `json:"totalRecords"`
	Summary      *domain.RunSummary `json:"summary,omitempty"`
	Error        string             `json:"error,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

type listRunsResponse struct {
	Data []runResponse `json:"data"`
	Meta listMeta      `json:"meta"`
}

type listMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

type attemptResponse struct {
	ID          string         `json:"id"`
	RunID       string         `json:"runId"`
	Pass        string         `json:"pass"`
	Sequence    int            `json:"sequence"`
	Total       int            `json:"total"`
	Payload     domain.Payload `json:"payload"`
	Delivered   bool           `json:"delivered"`
	FailureKind string         `json:"failureKind,omitempty"`
	StatusCode  int            `json:"statusCode,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	DurationMS  int64          `json:"durationMs"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (h *RunHandler) SubmitRun(c *fiber.Ctx) error {
	var req submitRunRequest
	if err := decodeSubmitRunRequest(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	run, err := h.service.Submit(c.UserContext(), service.SubmitRunInput{
		Source:   strings.TrimSpace(req.Source),
		Endpoint: strings.TrimSpace(req.Endpoint),
		Columns:  req.Columns,
		Rows:     req.Rows,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toRunResponse(run))
}

// decodeSubmitRunRequest keeps row numbers as json.Number so integer
// identifiers reach normalization with every digit.
func decodeSubmitRunRequest(body []byte, req *submitRunRequest) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(req); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after request body")
	}
	return nil
}

func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	run, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRunResponse(run))
}

func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultListLimit)
	if limit < 1 || limit > service.MaxListLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, service.MaxListLimit))
	}

	runs, err := h.service.List(c.UserContext(), limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]runResponse, 0, len(runs))
	for i := range runs {
		data = append(data, toRunResponse(&runs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listRunsResponse{
		Data: data,
		Meta: listMeta{Limit: limit, Count: len(data)},
	})
}

func (h *RunHandler) ListAttempts(c *fiber.Ctx) error {
	if h.attempts == nil {
		return fiber.NewError(fiber.StatusNotFound, "attempt journal is not configured")
	}

	id := strings.TrimSpace(c.Params("id"))
	if _, err := h.service.Get(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	attempts, err := h.attempts.ListByRunID(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		data = append(data, toAttemptResponse(a))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"runId": id,
		"data":  data,
	})
}

func toRunResponse(r *domain.Run) runResponse {
	if r == nil {
		return runResponse{}
	}

	return runResponse{
		ID:           r.ID,
		Source:       r.Source,
		Endpoint:     r.Endpoint,
		Status:       r.Status.String(),
		TotalRecords: r.TotalRecords,
		Summary:      r.Summary,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toAttemptResponse(a domain.Attempt) attemptResponse {
	resp := attemptResponse{
		ID:         a.ID,
		RunID:      a.RunID,
		Pass:       a.Pass.String(),
		Sequence:   a.Sequence,
		Total:      a.Total,
		Payload:    a.Payload,
		Delivered:  a.Outcome.Delivered,
		StatusCode: a.Outcome.StatusCode,
		DurationMS: a.Duration.Milliseconds(),
		CreatedAt:  a.CreatedAt,
	}
	if !a.Outcome.Delivered {
		resp.FailureKind = a.Outcome.Kind.String()
		resp.Reason = a.Outcome.Reason
	}
	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
