package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
)

// RequestRepo provides persistence for requests. The sweep engines and
// the execution tracker depend on this interface so tests can run
// against in-memory fakes.
type RequestRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	ListActiveMonitored(ctx context.Context) ([]models.Request, error)
	UpdateMonitoringDays(ctx context.Context, id uuid.UUID, days int) (bool, error)
	MarkActive(ctx context.Context, id uuid.UUID, executionDate time.Time) error
	MarkRejected(ctx context.Context, id uuid.UUID) error
	MarkLapsed(ctx context.Context, id uuid.UUID) (bool, error)
	ListStaleProposalCandidates(ctx context.Context, cutoff time.Time) ([]models.Request, error)
	MarkStale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ExecutionTrackingRepo provides persistence for execution sub-state
type ExecutionTrackingRepo interface {
	GetOrCreate(ctx context.Context, requestID uuid.UUID) (*models.ExecutionTracking, error)
	SetMilestone(ctx context.Context, requestID uuid.UUID, milestone models.Milestone, at time.Time) error
	SetProposalRecipient(ctx context.Context, requestID uuid.UUID, recipient string) error
	RecordClientResponse(ctx context.Context, requestID uuid.UUID, response models.ClientResponseType, at time.Time) error
	SetComplianceFormsCompleted(ctx context.Context, requestID uuid.UUID) error
	SetCountersigned(ctx context.Context, requestID uuid.UUID, docType string, at time.Time) error
	AppendNote(ctx context.Context, note *models.ExecutionNote) error
	ListNotes(ctx context.Context, requestID uuid.UUID) ([]models.ExecutionNote, error)
}

// MonitoringAlertRepo provides persistence for monitoring-window alerts
type MonitoringAlertRepo interface {
	// InsertIfAbsent records an alert and reports whether this call won
	// the insert. False means the alert was already recorded.
	InsertIfAbsent(ctx context.Context, requestID uuid.UUID, alertType models.AlertType, sentAt time.Time) (bool, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.MonitoringAlert, error)
}

// EngagementRenewalRepo provides persistence for renewal cycles
type EngagementRenewalRepo interface {
	Create(ctx context.Context, renewal *models.EngagementRenewal) error
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.EngagementRenewal, error)
	ListActive(ctx context.Context) ([]models.EngagementRenewal, error)
	// SetAlertSent flips one alert flag and reports whether this call
	// performed the flip. False means the flag was already set.
	SetAlertSent(ctx context.Context, id uuid.UUID, flag models.RenewalAlertFlag) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.RenewalStatus) error
	Renew(ctx context.Context, id uuid.UUID, newStart, newDue time.Time) error
}

// ProspectRepo provides persistence for prospects
type ProspectRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prospect, error)
	ListStaleCandidates(ctx context.Context, cutoff time.Time) ([]models.Prospect, error)
	ListNeedingFollowup(ctx context.Context, staleCutoff, followupCutoff time.Time) ([]models.Prospect, error)
	MarkStale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkLost(ctx context.Context, id uuid.UUID, reason, stage string, at time.Time) (bool, error)
	UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

// FunnelEventRepo provides persistence for the funnel audit trail
type FunnelEventRepo interface {
	Append(ctx context.Context, event *models.FunnelEvent) error
	GetLatestForRequest(ctx context.Context, requestID uuid.UUID) (*models.FunnelEvent, error)
	GetLatestForProspect(ctx context.Context, prospectID uuid.UUID) (*models.FunnelEvent, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.FunnelEvent, error)
	ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]models.FunnelEvent, error)
}

// UserRepo provides read access to the actor directory
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}
