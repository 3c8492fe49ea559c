// Package renewal tracks the multi-year renewal cycle of accepted
// engagements: one cycle per request, a 90/60/30-day pre-expiry alert
// cadence, and expiry handling when the due date passes.
package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/notify"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// DefaultTermYears is the engagement term when none is configured
const DefaultTermYears = 3

// SweepSummary reports what one renewal sweep did
type SweepSummary struct {
	Scanned     int `json:"scanned"`
	NinetyDay   int `json:"ninety_day_alerts"`
	SixtyDay    int `json:"sixty_day_alerts"`
	ThirtyDay   int `json:"thirty_day_alerts"`
	Expired     int `json:"expired_alerts"`
	RowFailures int `json:"row_failures"`
}

// Tracker runs renewal-cycle bookkeeping and the alert sweep
type Tracker struct {
	renewals  repositories.EngagementRenewalRepo
	requests  repositories.RequestRepo
	users     repositories.UserRepo
	notifier  notify.Notifier
	clk       clock.Clock
	termYears int
	logger    ectologger.Logger
}

// NewTracker creates a new renewal tracker
func NewTracker(
	renewals repositories.EngagementRenewalRepo,
	requests repositories.RequestRepo,
	users repositories.UserRepo,
	notifier notify.Notifier,
	clk clock.Clock,
	termYears int,
	logger ectologger.Logger,
) *Tracker {
	if termYears <= 0 {
		termYears = DefaultTermYears
	}
	return &Tracker{
		renewals:  renewals,
		requests:  requests,
		users:     users,
		notifier:  notifier,
		clk:       clk,
		termYears: termYears,
		logger:    logger,
	}
}

// CreateTracking starts the renewal cycle for an accepted engagement.
// The due date is the start date plus the engagement term. Repeated
// calls for the same request are absorbed by the unique constraint.
func (t *Tracker) CreateTracking(ctx context.Context, requestID uuid.UUID, engagementCode string, startDate time.Time) (*models.EngagementRenewal, error) {
	ctx, span := tracing.StartSpan(ctx, "RenewalTracker.CreateTracking")
	defer span.End()

	if engagementCode == "" {
		return nil, repositories.BadRequest("engagement code is required")
	}

	renewal := &models.EngagementRenewal{
		ID:             uuid.New(),
		RequestID:      requestID,
		EngagementCode: engagementCode,
		StartDate:      startDate,
		DueDate:        startDate.AddDate(t.termYears, 0, 0),
		Status:         models.RenewalStatusActive,
	}

	if err := t.renewals.Create(ctx, renewal); err != nil {
		return nil, err
	}
	return renewal, nil
}

// CheckRenewalAlerts runs the pre-expiry cadence over every alertable
// renewal. The windows are mutually exclusive; a renewal that crossed
// several windows between sweeps fires only the one it currently sits
// in, and each flag fires at most once thanks to the conditional flip.
func (t *Tracker) CheckRenewalAlerts(ctx context.Context) (*SweepSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "RenewalTracker.CheckRenewalAlerts")
	defer span.End()

	renewals, err := t.renewals.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := t.clk.Now()
	summary := &SweepSummary{Scanned: len(renewals)}

	for i := range renewals {
		renewal := &renewals[i]
		if err := t.checkOne(ctx, renewal, now, summary); err != nil {
			summary.RowFailures++
			t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"renewal_id": renewal.ID,
			}).Error("renewal alert failed, skipping row")
		}
	}

	t.logger.WithContext(ctx).WithFields(map[string]any{
		"scanned":    summary.Scanned,
		"ninety_day": summary.NinetyDay,
		"sixty_day":  summary.SixtyDay,
		"thirty_day": summary.ThirtyDay,
		"expired":    summary.Expired,
	}).Infof("Renewal alert sweep complete")
	return summary, nil
}

func (t *Tracker) checkOne(ctx context.Context, renewal *models.EngagementRenewal, now time.Time, summary *SweepSummary) error {
	daysUntil := clock.DaysUntil(now, renewal.DueDate)

	switch {
	case daysUntil > 90:
		return nil

	case daysUntil > 60:
		won, err := t.renewals.SetAlertSent(ctx, renewal.ID, models.RenewalAlert90Day)
		if err != nil || !won {
			return err
		}
		summary.NinetyDay++
		metrics.RenewalAlertsTotal.WithLabelValues(string(models.RenewalAlert90Day)).Inc()
		t.send(ctx, renewal, daysUntil, "90-day renewal notice", t.requesterOnly(ctx, renewal))
		return nil

	case daysUntil > 30:
		won, err := t.renewals.SetAlertSent(ctx, renewal.ID, models.RenewalAlert60Day)
		if err != nil || !won {
			return err
		}
		summary.SixtyDay++
		metrics.RenewalAlertsTotal.WithLabelValues(string(models.RenewalAlert60Day)).Inc()
		recipients := append(t.requesterOnly(ctx, renewal), t.roleEmails(ctx, models.RoleAdmin)...)
		t.send(ctx, renewal, daysUntil, "60-day renewal notice", recipients)
		return nil

	case daysUntil > 0:
		won, err := t.renewals.SetAlertSent(ctx, renewal.ID, models.RenewalAlert30Day)
		if err != nil {
			return err
		}
		if !won {
			// The flag is set but the status write may have failed on
			// the sweep that set it; retry it without re-notifying.
			return t.ensureStatus(ctx, renewal, models.RenewalStatusRenewalDue)
		}
		summary.ThirtyDay++
		metrics.RenewalAlertsTotal.WithLabelValues(string(models.RenewalAlert30Day)).Inc()
		recipients := append(t.requesterOnly(ctx, renewal), t.roleEmails(ctx, models.RolePartner)...)
		t.send(ctx, renewal, daysUntil, "30-day renewal notice", recipients)
		return t.ensureStatus(ctx, renewal, models.RenewalStatusRenewalDue)

	default: // due date has passed
		won, err := t.renewals.SetAlertSent(ctx, renewal.ID, models.RenewalAlertExpired)
		if err != nil {
			return err
		}
		if !won {
			return t.ensureStatus(ctx, renewal, models.RenewalStatusExpired)
		}
		summary.Expired++
		metrics.RenewalAlertsTotal.WithLabelValues(string(models.RenewalAlertExpired)).Inc()
		recipients := t.requesterOnly(ctx, renewal)
		recipients = append(recipients, t.roleEmails(ctx, models.RolePartner)...)
		recipients = append(recipients, t.roleEmails(ctx, models.RoleCompliance)...)
		recipients = append(recipients, t.roleEmails(ctx, models.RoleAdmin)...)
		t.send(ctx, renewal, daysUntil, "engagement expired", recipients)
		return t.ensureStatus(ctx, renewal, models.RenewalStatusExpired)
	}
}

// ensureStatus writes the status a renewal's window demands. Skips the
// write when the row already carries it, so repeat sweeps stay silent.
func (t *Tracker) ensureStatus(ctx context.Context, renewal *models.EngagementRenewal, status models.RenewalStatus) error {
	if renewal.Status == status {
		return nil
	}
	return t.renewals.UpdateStatus(ctx, renewal.ID, status)
}

// Renew starts a fresh cycle for an engagement: new start and due
// dates, all alert flags cleared, status back to active. This is the
// only legal way the alert flags ever reset.
func (t *Tracker) Renew(ctx context.Context, renewalID uuid.UUID, newStart time.Time) (*models.EngagementRenewal, error) {
	ctx, span := tracing.StartSpan(ctx, "RenewalTracker.Renew")
	defer span.End()

	if newStart.IsZero() {
		return nil, repositories.BadRequest("new start date is required")
	}

	newDue := newStart.AddDate(t.termYears, 0, 0)
	if err := t.renewals.Renew(ctx, renewalID, newStart, newDue); err != nil {
		return nil, err
	}

	return &models.EngagementRenewal{
		ID:        renewalID,
		StartDate: newStart,
		DueDate:   newDue,
		Status:    models.RenewalStatusActive,
	}, nil
}

func (t *Tracker) send(ctx context.Context, renewal *models.EngagementRenewal, daysUntil int, label string, recipients []string) {
	notification := notify.Notification{
		Type:       "renewal_alert",
		RequestID:  &renewal.RequestID,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Engagement %s: %s", renewal.EngagementCode, label),
		Body: fmt.Sprintf("Engagement %s is due for renewal on %s (%d days).",
			renewal.EngagementCode, renewal.DueDate.Format("2006-01-02"), daysUntil),
	}

	// Best-effort: the flag is already flipped and must not flip back.
	if err := t.notifier.Send(ctx, notification); err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": renewal.ID,
		}).Warn("renewal notification failed")
	}
}

func (t *Tracker) requesterOnly(ctx context.Context, renewal *models.EngagementRenewal) []string {
	request, err := t.requests.GetByID(ctx, renewal.RequestID)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": renewal.ID,
		}).Warn("failed to resolve request for renewal alert")
		return nil
	}
	requester, err := t.users.GetByID(ctx, request.RequesterID)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": request.ID,
		}).Warn("failed to resolve requester for renewal alert")
		return nil
	}
	return []string{requester.Email}
}

func (t *Tracker) roleEmails(ctx context.Context, role models.Role) []string {
	users, err := t.users.ListByRole(ctx, role)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"role": role,
		}).Warn("failed to resolve renewal recipients for role")
		return nil
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}
