package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// FunnelEventRepo is an in-memory repositories.FunnelEventRepo. Events
// keep append order; "latest" means last appended.
type FunnelEventRepo struct {
	mu     sync.Mutex
	Events []models.FunnelEvent
}

func NewFunnelEventRepo() *FunnelEventRepo {
	return &FunnelEventRepo{}
}

func (r *FunnelEventRepo) Append(ctx context.Context, event *models.FunnelEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	r.Events = append(r.Events, copied)
	event.CreatedAt = copied.CreatedAt
	return nil
}

func (r *FunnelEventRepo) GetLatestForRequest(ctx context.Context, requestID uuid.UUID) (*models.FunnelEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].RequestID != nil && *r.Events[i].RequestID == requestID {
			copied := r.Events[i]
			return &copied, nil
		}
	}
	return nil, repositories.NotFound("no funnel events recorded for request %s", requestID)
}

func (r *FunnelEventRepo) GetLatestForProspect(ctx context.Context, prospectID uuid.UUID) (*models.FunnelEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].ProspectID != nil && *r.Events[i].ProspectID == prospectID {
			copied := r.Events[i]
			return &copied, nil
		}
	}
	return nil, repositories.NotFound("no funnel events recorded for prospect %s", prospectID)
}

func (r *FunnelEventRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.FunnelEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FunnelEvent
	for _, e := range r.Events {
		if e.RequestID != nil && *e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *FunnelEventRepo) ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]models.FunnelEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FunnelEvent
	for _, e := range r.Events {
		if e.ProspectID != nil && *e.ProspectID == prospectID {
			out = append(out, e)
		}
	}
	return out, nil
}
