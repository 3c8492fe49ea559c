package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// ProspectRepo is an in-memory repositories.ProspectRepo
type ProspectRepo struct {
	mu        sync.Mutex
	Prospects map[uuid.UUID]*models.Prospect
}

func NewProspectRepo(prospects ...*models.Prospect) *ProspectRepo {
	r := &ProspectRepo{Prospects: make(map[uuid.UUID]*models.Prospect)}
	for _, p := range prospects {
		r.Prospects[p.ID] = p
	}
	return r
}

func (r *ProspectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Prospects[id]
	if !ok {
		return nil, repositories.NotFound("prospect %s not found", id)
	}
	copied := *p
	return &copied, nil
}

func (r *ProspectRepo) ListStaleCandidates(ctx context.Context, cutoff time.Time) ([]models.Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Prospect
	for _, p := range r.Prospects {
		if p.Status != models.ProspectStatusActive || p.StaleDetectedAt != nil {
			continue
		}
		if p.ActivityAt().After(cutoff) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *ProspectRepo) ListNeedingFollowup(ctx context.Context, staleCutoff, followupCutoff time.Time) ([]models.Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Prospect
	for _, p := range r.Prospects {
		if p.Status != models.ProspectStatusActive || p.StaleDetectedAt != nil {
			continue
		}
		at := p.ActivityAt()
		if at.After(staleCutoff) && !at.After(followupCutoff) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *ProspectRepo) MarkStale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Prospects[id]
	if !ok || p.StaleDetectedAt != nil {
		return false, nil
	}
	p.StaleDetectedAt = &at
	return true, nil
}

func (r *ProspectRepo) MarkLost(ctx context.Context, id uuid.UUID, reason, stage string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Prospects[id]
	if !ok || p.Status != models.ProspectStatusActive {
		return false, nil
	}
	p.Status = models.ProspectStatusInactive
	p.LostReason = &reason
	p.LostStage = &stage
	p.LostAt = &at
	return true, nil
}

func (r *ProspectRepo) UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Prospects[id]
	if !ok {
		return repositories.NotFound("prospect %s not found", id)
	}
	p.LastActivityAt = at
	p.StaleDetectedAt = nil
	return nil
}
