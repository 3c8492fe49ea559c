// Package execution advances an approved request through the
// proposal and engagement-letter sub-stages. Every milestone write is
// idempotent at the storage level; acceptance and rejection are the
// two operations with real side effects.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/appctx"
	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/funnel"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/notify"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// RenewalCreator starts a renewal cycle at acceptance time
type RenewalCreator interface {
	CreateTracking(ctx context.Context, requestID uuid.UUID, engagementCode string, startDate time.Time) (*models.EngagementRenewal, error)
}

// Tracker records execution-phase milestones for a request
type Tracker struct {
	requests repositories.RequestRepo
	tracking repositories.ExecutionTrackingRepo
	users    repositories.UserRepo
	renewals RenewalCreator
	notifier notify.Notifier
	emitter  funnel.Emitter
	clk      clock.Clock
	logger   ectologger.Logger
}

// NewTracker creates a new execution tracker
func NewTracker(
	requests repositories.RequestRepo,
	tracking repositories.ExecutionTrackingRepo,
	users repositories.UserRepo,
	renewals RenewalCreator,
	notifier notify.Notifier,
	emitter funnel.Emitter,
	clk clock.Clock,
	logger ectologger.Logger,
) *Tracker {
	return &Tracker{
		requests: requests,
		tracking: tracking,
		users:    users,
		renewals: renewals,
		notifier: notifier,
		emitter:  emitter,
		clk:      clk,
		logger:   logger,
	}
}

// GetTracking returns the execution sub-state for a request, creating
// an empty record on first access.
func (t *Tracker) GetTracking(ctx context.Context, requestID uuid.UUID) (*models.ExecutionTracking, error) {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.GetTracking")
	defer span.End()

	if _, err := t.requests.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return t.tracking.GetOrCreate(ctx, requestID)
}

// RecordProposalPrepared stamps the proposal-prepared milestone
func (t *Tracker) RecordProposalPrepared(ctx context.Context, requestID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordProposalPrepared")
	defer span.End()

	if err := t.setMilestone(ctx, requestID, models.MilestoneProposalPrepared); err != nil {
		return err
	}

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &requestID,
		ToStage:   models.FunnelStageProposalPrepared,
	})
	return nil
}

// RecordProposalSent stamps the proposal-sent milestone. When the
// request requires a disclaimer, the recipient gets a validity notice:
// the proposal is only good for 30 days.
func (t *Tracker) RecordProposalSent(ctx context.Context, requestID uuid.UUID, recipient string) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordProposalSent")
	defer span.End()

	if recipient == "" {
		return repositories.BadRequest("proposal recipient is required")
	}

	request, err := t.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := t.setMilestone(ctx, requestID, models.MilestoneProposalSent); err != nil {
		return err
	}
	if err := t.tracking.SetProposalRecipient(ctx, requestID, recipient); err != nil {
		return err
	}

	if request.DisclaimerRequired {
		t.sendBestEffort(ctx, notify.Notification{
			Type:       "proposal_validity",
			RequestID:  &requestID,
			Recipients: []string{recipient},
			Subject:    fmt.Sprintf("Proposal for %s", request.ClientName),
			Body:       "This proposal is valid for 30 days from the date of issue.",
		})
	}

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &requestID,
		ToStage:   models.FunnelStageProposalSent,
	})
	return nil
}

// RecordFollowUp stamps follow-up n (1..3) and appends its note to the
// admin log. Status is untouched.
func (t *Tracker) RecordFollowUp(ctx context.Context, requestID uuid.UUID, n int, note string) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordFollowUp")
	defer span.End()

	milestone, ok := models.FollowUpMilestone(n)
	if !ok {
		return repositories.BadRequest(fmt.Sprintf("follow-up number must be 1 to 3, got %d", n))
	}

	if err := t.setMilestone(ctx, requestID, milestone); err != nil {
		return err
	}
	if note != "" {
		return t.AppendNote(ctx, requestID, note)
	}
	return nil
}

// RecordClientResponse records the client's answer to the proposal.
// Acceptance activates the request, anchors the monitoring window and
// starts the renewal cycle; rejection is permanent. Notification and
// funnel failures never roll back the state change.
func (t *Tracker) RecordClientResponse(ctx context.Context, requestID uuid.UUID, response models.ClientResponseType, note string) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordClientResponse")
	defer span.End()

	if response != models.ClientResponseAccepted && response != models.ClientResponseRejected {
		return repositories.BadRequest("client response must be accepted or rejected")
	}

	request, err := t.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if _, err := t.tracking.GetOrCreate(ctx, requestID); err != nil {
		return err
	}

	now := t.clk.Now()
	if err := t.tracking.RecordClientResponse(ctx, requestID, response, now); err != nil {
		return err
	}
	if note != "" {
		if err := t.AppendNote(ctx, requestID, note); err != nil {
			return err
		}
	}

	if response == models.ClientResponseAccepted {
		return t.accept(ctx, request, now)
	}
	return t.reject(ctx, request)
}

func (t *Tracker) accept(ctx context.Context, request *models.Request, now time.Time) error {
	if err := t.requests.MarkActive(ctx, request.ID, now); err != nil {
		return err
	}

	if request.EngagementCode != nil && *request.EngagementCode != "" {
		if _, err := t.renewals.CreateTracking(ctx, request.ID, *request.EngagementCode, now); err != nil {
			return err
		}
	}

	recipients := t.acceptanceRecipients(ctx, request)
	t.sendBestEffort(ctx, notify.Notification{
		Type:       "client_accepted",
		RequestID:  &request.ID,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Client accepted: %s", request.ClientName),
		Body:       fmt.Sprintf("The client has accepted the proposal for request %s. The engagement is now active.", request.ID),
	})

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &request.ID,
		ToStage:   models.FunnelStageClientAccepted,
	})
	return nil
}

func (t *Tracker) reject(ctx context.Context, request *models.Request) error {
	// Permanent: a rejected request can never be resubmitted.
	if err := t.requests.MarkRejected(ctx, request.ID); err != nil {
		return err
	}

	recipients := t.requesterEmail(ctx, request)
	recipients = append(recipients, t.roleEmails(ctx, models.RoleAdmin)...)
	t.sendBestEffort(ctx, notify.Notification{
		Type:       "client_rejected",
		RequestID:  &request.ID,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Client rejected: %s", request.ClientName),
		Body:       fmt.Sprintf("The client has rejected the proposal for request %s. This rejection is permanent.", request.ID),
	})

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &request.ID,
		ToStage:   models.FunnelStageClientRejected,
	})
	return nil
}

// RecordEngagementLetterPrepared stamps the letter-prepared milestone
func (t *Tracker) RecordEngagementLetterPrepared(ctx context.Context, requestID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordEngagementLetterPrepared")
	defer span.End()

	if err := t.setMilestone(ctx, requestID, models.MilestoneEngagementLetterPrepared); err != nil {
		return err
	}

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &requestID,
		ToStage:   models.FunnelStageLetterPrepared,
	})
	return nil
}

// RecordEngagementLetterSent stamps the letter-sent milestone
func (t *Tracker) RecordEngagementLetterSent(ctx context.Context, requestID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordEngagementLetterSent")
	defer span.End()

	if err := t.setMilestone(ctx, requestID, models.MilestoneEngagementLetterSent); err != nil {
		return err
	}

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &requestID,
		ToStage:   models.FunnelStageLetterSent,
	})
	return nil
}

// RecordSignedEngagement stamps the signature and marks the compliance
// paperwork complete.
func (t *Tracker) RecordSignedEngagement(ctx context.Context, requestID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordSignedEngagement")
	defer span.End()

	if err := t.setMilestone(ctx, requestID, models.MilestoneSigned); err != nil {
		return err
	}
	if err := t.tracking.SetComplianceFormsCompleted(ctx, requestID); err != nil {
		return err
	}

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &requestID,
		ToStage:   models.FunnelStageSigned,
	})
	return nil
}

// RecordCountersigned stamps the countersignature with its document type
func (t *Tracker) RecordCountersigned(ctx context.Context, requestID uuid.UUID, documentType string) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.RecordCountersigned")
	defer span.End()

	if documentType == "" {
		return repositories.BadRequest("document type is required")
	}

	if _, err := t.tracking.GetOrCreate(ctx, requestID); err != nil {
		return err
	}
	if err := t.tracking.SetCountersigned(ctx, requestID, documentType, t.clk.Now()); err != nil {
		return err
	}

	t.emitter.Emit(ctx, funnel.Transition{
		RequestID: &requestID,
		ToStage:   models.FunnelStageCountersigned,
	})
	return nil
}

// AppendNote adds an entry to the request's append-only admin log
func (t *Tracker) AppendNote(ctx context.Context, requestID uuid.UUID, note string) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.AppendNote")
	defer span.End()

	if note == "" {
		return repositories.BadRequest("note is required")
	}

	actor := appctx.GetActor(ctx)
	if actor == "" {
		actor = funnel.SystemActor
	}

	return t.tracking.AppendNote(ctx, &models.ExecutionNote{
		RequestID: requestID,
		Actor:     actor,
		Note:      note,
	})
}

// ListNotes returns the request's admin log, newest first
func (t *Tracker) ListNotes(ctx context.Context, requestID uuid.UUID) ([]models.ExecutionNote, error) {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTracker.ListNotes")
	defer span.End()

	return t.tracking.ListNotes(ctx, requestID)
}

func (t *Tracker) setMilestone(ctx context.Context, requestID uuid.UUID, milestone models.Milestone) error {
	if _, err := t.tracking.GetOrCreate(ctx, requestID); err != nil {
		return err
	}
	return t.tracking.SetMilestone(ctx, requestID, milestone, t.clk.Now())
}

func (t *Tracker) acceptanceRecipients(ctx context.Context, request *models.Request) []string {
	recipients := t.requesterEmail(ctx, request)
	recipients = append(recipients, t.roleEmails(ctx, models.RoleAdmin)...)

	if request.ApprovingPartnerID != nil {
		if partner, err := t.users.GetByID(ctx, *request.ApprovingPartnerID); err != nil {
			t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"request_id": request.ID,
				"user_id":    *request.ApprovingPartnerID,
			}).Warn("failed to resolve approving partner")
		} else {
			recipients = append(recipients, partner.Email)
		}
	}
	return recipients
}

func (t *Tracker) requesterEmail(ctx context.Context, request *models.Request) []string {
	requester, err := t.users.GetByID(ctx, request.RequesterID)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": request.ID,
			"user_id":    request.RequesterID,
		}).Warn("failed to resolve requester")
		return nil
	}
	return []string{requester.Email}
}

func (t *Tracker) roleEmails(ctx context.Context, role models.Role) []string {
	users, err := t.users.ListByRole(ctx, role)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"role": role,
		}).Warn("failed to resolve recipients for role")
		return nil
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}

func (t *Tracker) sendBestEffort(ctx context.Context, n notify.Notification) {
	if err := t.notifier.Send(ctx, n); err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"notification_type": n.Type,
		}).Warn("notification failed")
	}
}
