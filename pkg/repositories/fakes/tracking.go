package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// ExecutionTrackingRepo is an in-memory repositories.ExecutionTrackingRepo
type ExecutionTrackingRepo struct {
	mu       sync.Mutex
	Tracking map[uuid.UUID]*models.ExecutionTracking
	Notes    []models.ExecutionNote
}

func NewExecutionTrackingRepo() *ExecutionTrackingRepo {
	return &ExecutionTrackingRepo{Tracking: make(map[uuid.UUID]*models.ExecutionTracking)}
}

func (r *ExecutionTrackingRepo) GetOrCreate(ctx context.Context, requestID uuid.UUID) (*models.ExecutionTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(requestID), nil
}

func (r *ExecutionTrackingRepo) getOrCreateLocked(requestID uuid.UUID) *models.ExecutionTracking {
	if tracking, ok := r.Tracking[requestID]; ok {
		return tracking
	}
	tracking := &models.ExecutionTracking{ID: uuid.New(), RequestID: requestID}
	r.Tracking[requestID] = tracking
	return tracking
}

func (r *ExecutionTrackingRepo) SetMilestone(ctx context.Context, requestID uuid.UUID, milestone models.Milestone, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracking := r.getOrCreateLocked(requestID)
	switch milestone {
	case models.MilestoneProposalPrepared:
		tracking.ProposalPreparedAt = &at
	case models.MilestoneProposalSent:
		tracking.ProposalSentAt = &at
	case models.MilestoneFollowUp1:
		tracking.FollowUp1At = &at
	case models.MilestoneFollowUp2:
		tracking.FollowUp2At = &at
	case models.MilestoneFollowUp3:
		tracking.FollowUp3At = &at
	case models.MilestoneEngagementLetterPrepared:
		tracking.EngagementLetterPreparedAt = &at
	case models.MilestoneEngagementLetterSent:
		tracking.EngagementLetterSentAt = &at
	case models.MilestoneSigned:
		tracking.SignedAt = &at
	case models.MilestoneCountersigned:
		tracking.CountersignedAt = &at
	default:
		return repositories.BadRequest("unknown milestone")
	}
	return nil
}

func (r *ExecutionTrackingRepo) SetProposalRecipient(ctx context.Context, requestID uuid.UUID, recipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(requestID).ProposalRecipient = &recipient
	return nil
}

func (r *ExecutionTrackingRepo) RecordClientResponse(ctx context.Context, requestID uuid.UUID, response models.ClientResponseType, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracking := r.getOrCreateLocked(requestID)
	tracking.ClientResponseAt = &at
	tracking.ClientResponseType = &response
	return nil
}

func (r *ExecutionTrackingRepo) SetComplianceFormsCompleted(ctx context.Context, requestID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(requestID).ComplianceFormsCompleted = true
	return nil
}

func (r *ExecutionTrackingRepo) SetCountersigned(ctx context.Context, requestID uuid.UUID, docType string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracking := r.getOrCreateLocked(requestID)
	tracking.CountersignedAt = &at
	tracking.CountersignedDocType = &docType
	return nil
}

func (r *ExecutionTrackingRepo) AppendNote(ctx context.Context, note *models.ExecutionNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *note
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	copied.CreatedAt = time.Now()
	r.Notes = append(r.Notes, copied)
	return nil
}

func (r *ExecutionTrackingRepo) ListNotes(ctx context.Context, requestID uuid.UUID) ([]models.ExecutionNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExecutionNote
	for _, n := range r.Notes {
		if n.RequestID == requestID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
