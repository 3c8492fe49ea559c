package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// EngagementRenewalRepo is an in-memory repositories.EngagementRenewalRepo
type EngagementRenewalRepo struct {
	mu       sync.Mutex
	Renewals map[uuid.UUID]*models.EngagementRenewal
}

func NewEngagementRenewalRepo(renewals ...*models.EngagementRenewal) *EngagementRenewalRepo {
	r := &EngagementRenewalRepo{Renewals: make(map[uuid.UUID]*models.EngagementRenewal)}
	for _, renewal := range renewals {
		r.Renewals[renewal.ID] = renewal
	}
	return r
}

func (r *EngagementRenewalRepo) Create(ctx context.Context, renewal *models.EngagementRenewal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// one cycle per request, repeated creates are absorbed
	for _, existing := range r.Renewals {
		if existing.RequestID == renewal.RequestID {
			return nil
		}
	}
	copied := *renewal
	r.Renewals[renewal.ID] = &copied
	return nil
}

func (r *EngagementRenewalRepo) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.EngagementRenewal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, renewal := range r.Renewals {
		if renewal.RequestID == requestID {
			copied := *renewal
			return &copied, nil
		}
	}
	return nil, repositories.NotFound("renewal for request %s not found", requestID)
}

func (r *EngagementRenewalRepo) ListActive(ctx context.Context) ([]models.EngagementRenewal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EngagementRenewal
	for _, renewal := range r.Renewals {
		if renewal.Status == models.RenewalStatusActive || renewal.Status == models.RenewalStatusRenewalDue {
			out = append(out, *renewal)
		}
	}
	return out, nil
}

func (r *EngagementRenewalRepo) SetAlertSent(ctx context.Context, id uuid.UUID, flag models.RenewalAlertFlag) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	renewal, ok := r.Renewals[id]
	if !ok {
		return false, repositories.NotFound("renewal %s not found", id)
	}

	var field *bool
	switch flag {
	case models.RenewalAlert90Day:
		field = &renewal.Alert90Sent
	case models.RenewalAlert60Day:
		field = &renewal.Alert60Sent
	case models.RenewalAlert30Day:
		field = &renewal.Alert30Sent
	case models.RenewalAlertExpired:
		field = &renewal.ExpiredAlertSent
	default:
		return false, repositories.BadRequest("unknown alert flag")
	}

	if *field {
		return false, nil
	}
	*field = true
	return true, nil
}

func (r *EngagementRenewalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RenewalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	renewal, ok := r.Renewals[id]
	if !ok {
		return repositories.NotFound("renewal %s not found", id)
	}
	renewal.Status = status
	return nil
}

func (r *EngagementRenewalRepo) Renew(ctx context.Context, id uuid.UUID, newStart, newDue time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	renewal, ok := r.Renewals[id]
	if !ok {
		return repositories.NotFound("renewal %s not found", id)
	}
	renewal.StartDate = newStart
	renewal.DueDate = newDue
	renewal.Status = models.RenewalStatusActive
	renewal.Alert90Sent = false
	renewal.Alert60Sent = false
	renewal.Alert30Sent = false
	renewal.ExpiredAlertSent = false
	return nil
}
