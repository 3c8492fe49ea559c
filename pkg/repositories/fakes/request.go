package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// RequestRepo is an in-memory repositories.RequestRepo
type RequestRepo struct {
	mu       sync.Mutex
	Requests map[uuid.UUID]*models.Request

	// FailOn makes the named methods return an error for these IDs,
	// for testing per-row failure handling.
	FailOn map[uuid.UUID]error
}

func NewRequestRepo(requests ...*models.Request) *RequestRepo {
	r := &RequestRepo{
		Requests: make(map[uuid.UUID]*models.Request),
		FailOn:   make(map[uuid.UUID]error),
	}
	for _, req := range requests {
		r.Requests[req.ID] = req
	}
	return r
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.Requests[id]
	if !ok {
		return nil, repositories.NotFound("request %s not found", id)
	}
	copied := *req
	return &copied, nil
}

func (r *RequestRepo) ListActiveMonitored(ctx context.Context) ([]models.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Request
	for _, req := range r.Requests {
		if req.Status == models.RequestStatusActive && req.MonitoringDays != nil && req.ExecutionDate != nil {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *RequestRepo) UpdateMonitoringDays(ctx context.Context, id uuid.UUID, days int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailOn[id]; err != nil {
		return false, err
	}
	req, ok := r.Requests[id]
	if !ok {
		return false, nil
	}
	if req.MonitoringDays != nil && *req.MonitoringDays == days {
		return false, nil
	}
	req.MonitoringDays = &days
	return true, nil
}

func (r *RequestRepo) MarkActive(ctx context.Context, id uuid.UUID, executionDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.Requests[id]
	if !ok || req.Status != models.RequestStatusApproved {
		return repositories.Conflict("request is not approved")
	}
	zero := 0
	req.Status = models.RequestStatusActive
	req.ExecutionDate = &executionDate
	req.MonitoringDays = &zero
	req.LastActivityAt = executionDate
	return nil
}

func (r *RequestRepo) MarkRejected(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.Requests[id]
	if !ok || req.Status.IsTerminal() {
		return repositories.Conflict("request is already terminal")
	}
	req.Status = models.RequestStatusRejected
	return nil
}

func (r *RequestRepo) MarkLapsed(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailOn[id]; err != nil {
		return false, err
	}
	req, ok := r.Requests[id]
	if !ok || req.Status != models.RequestStatusActive {
		return false, nil
	}
	req.Status = models.RequestStatusLapsed
	return true, nil
}

func (r *RequestRepo) ListStaleProposalCandidates(ctx context.Context, cutoff time.Time) ([]models.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Request
	for _, req := range r.Requests {
		if req.OriginProspectID == nil || req.StaleDetectedAt != nil {
			continue
		}
		switch req.Status {
		case models.RequestStatusApproved, models.RequestStatusActive, models.RequestStatusRejected,
			models.RequestStatusLapsed, models.RequestStatusCancelled:
			continue
		}
		if req.ActivityAt().After(cutoff) {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (r *RequestRepo) MarkStale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailOn[id]; err != nil {
		return false, err
	}
	req, ok := r.Requests[id]
	if !ok || req.StaleDetectedAt != nil {
		return false, nil
	}
	req.StaleDetectedAt = &at
	return true, nil
}

func (r *RequestRepo) UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.Requests[id]
	if !ok {
		return repositories.NotFound("request %s not found", id)
	}
	req.LastActivityAt = at
	req.StaleDetectedAt = nil
	return nil
}

// MonitoringAlertRepo is an in-memory repositories.MonitoringAlertRepo
type MonitoringAlertRepo struct {
	mu     sync.Mutex
	Alerts []models.MonitoringAlert
}

func NewMonitoringAlertRepo() *MonitoringAlertRepo {
	return &MonitoringAlertRepo{}
}

func (r *MonitoringAlertRepo) InsertIfAbsent(ctx context.Context, requestID uuid.UUID, alertType models.AlertType, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Alerts {
		if a.RequestID == requestID && a.AlertType == alertType {
			return false, nil
		}
	}
	r.Alerts = append(r.Alerts, models.MonitoringAlert{
		ID:        uuid.New(),
		RequestID: requestID,
		AlertType: alertType,
		SentAt:    sentAt,
		CreatedAt: sentAt,
	})
	return true, nil
}

func (r *MonitoringAlertRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.MonitoringAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MonitoringAlert
	for _, a := range r.Alerts {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}
