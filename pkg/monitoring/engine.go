// Package monitoring implements the post-activation monitoring window:
// a request that goes active has a bounded number of days to resolve,
// with escalating alerts at 10 and 20 days and an automatic lapse at 30.
package monitoring

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/notify"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const (
	tenDayThreshold    = 10
	twentyDayThreshold = 20
	lapseThreshold     = 30
)

// SweepSummary reports what one alert sweep did
type SweepSummary struct {
	Scanned     int `json:"scanned"`
	TenDay      int `json:"ten_day_alerts"`
	TwentyDay   int `json:"twenty_day_alerts"`
	ThirtyDay   int `json:"thirty_day_alerts"`
	Lapsed      int `json:"lapsed"`
	RowFailures int `json:"row_failures"`
}

// Engine runs the monitoring-window sweeps
type Engine struct {
	requests repositories.RequestRepo
	alerts   repositories.MonitoringAlertRepo
	users    repositories.UserRepo
	notifier notify.Notifier
	clk      clock.Clock
	logger   ectologger.Logger
}

// NewEngine creates a new monitoring engine
func NewEngine(
	requests repositories.RequestRepo,
	alerts repositories.MonitoringAlertRepo,
	users repositories.UserRepo,
	notifier notify.Notifier,
	clk clock.Clock,
	logger ectologger.Logger,
) *Engine {
	return &Engine{
		requests: requests,
		alerts:   alerts,
		users:    users,
		notifier: notifier,
		clk:      clk,
		logger:   logger,
	}
}

// UpdateMonitoringDays recomputes the elapsed-days counter for every
// active monitored request and returns how many rows changed. The
// counter is always recomputed from the execution date, never
// incremented, so missed sweeps cannot make it drift.
func (e *Engine) UpdateMonitoringDays(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringEngine.UpdateMonitoringDays")
	defer span.End()

	requests, err := e.requests.ListActiveMonitored(ctx)
	if err != nil {
		return 0, err
	}

	now := e.clk.Now()
	updated := 0
	for i := range requests {
		request := &requests[i]
		if request.ExecutionDate == nil {
			continue
		}

		days := clock.DaysSince(now, *request.ExecutionDate)
		if days < 0 {
			days = 0
		}
		if request.MonitoringDays != nil && *request.MonitoringDays == days {
			continue
		}

		changed, err := e.requests.UpdateMonitoringDays(ctx, request.ID, days)
		if err != nil {
			// One row's failure must not abort the batch.
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"request_id": request.ID,
			}).Error("failed to update monitoring days, skipping row")
			continue
		}
		if changed {
			updated++
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"scanned": len(requests),
		"updated": updated,
	}).Infof("Monitoring day counters recomputed")
	return updated, nil
}

// SendIntervalAlerts fires the 10/20/30-day alerts for active monitored
// requests and auto-lapses anything at or past 30 days. The alert-row
// insert is the sole idempotency guard: whichever sweep wins the insert
// sends the notification and, for the 30-day tier, performs the lapse.
// Safe to call any number of times per day.
func (e *Engine) SendIntervalAlerts(ctx context.Context) (*SweepSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringEngine.SendIntervalAlerts")
	defer span.End()

	requests, err := e.requests.ListActiveMonitored(ctx)
	if err != nil {
		return nil, err
	}

	now := e.clk.Now()
	summary := &SweepSummary{Scanned: len(requests)}

	for i := range requests {
		request := &requests[i]
		if request.ExecutionDate == nil {
			continue
		}

		elapsed := clock.DaysSince(now, *request.ExecutionDate)
		alertType, ok := tierFor(elapsed)
		if !ok {
			continue
		}

		if err := e.fireAlert(ctx, request, alertType, elapsed, summary); err != nil {
			summary.RowFailures++
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"request_id": request.ID,
				"alert_type": alertType,
			}).Error("monitoring alert failed, skipping row")
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"scanned":    summary.Scanned,
		"ten_day":    summary.TenDay,
		"twenty_day": summary.TwentyDay,
		"thirty_day": summary.ThirtyDay,
		"lapsed":     summary.Lapsed,
	}).Infof("Monitoring alert sweep complete")
	return summary, nil
}

// tierFor maps elapsed days to an alert tier. The 10 and 20 day tiers
// fire on the exact day; 30 is treated as "at or past" so a request
// never escapes the lapse by skipping a sweep.
func tierFor(elapsed int) (models.AlertType, bool) {
	switch {
	case elapsed >= lapseThreshold:
		return models.AlertType30Day, true
	case elapsed == twentyDayThreshold:
		return models.AlertType20Day, true
	case elapsed == tenDayThreshold:
		return models.AlertType10Day, true
	}
	return "", false
}

func (e *Engine) fireAlert(ctx context.Context, request *models.Request, alertType models.AlertType, elapsed int, summary *SweepSummary) error {
	won, err := e.alerts.InsertIfAbsent(ctx, request.ID, alertType, e.clk.Now())
	if err != nil {
		return err
	}
	if !won {
		// Alert already sent by an earlier sweep. The lapse still has
		// to be retried: the earlier sweep may have won the alert row
		// and then failed the status write, leaving the request active.
		if alertType == models.AlertType30Day {
			return e.lapse(ctx, request.ID, summary)
		}
		return nil
	}

	metrics.MonitoringAlertsTotal.WithLabelValues(string(alertType)).Inc()

	recipients := e.recipientsFor(ctx, request, alertType)
	notification := notify.Notification{
		Type:       "monitoring_" + string(alertType),
		RequestID:  &request.ID,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Engagement request %s: %d days in monitoring", request.ClientName, elapsed),
		Body: fmt.Sprintf("Request %s for %s has been active for %d days without resolution.",
			request.ID, request.ClientName, elapsed),
	}

	switch alertType {
	case models.AlertType10Day:
		summary.TenDay++
	case models.AlertType20Day:
		summary.TwentyDay++
	case models.AlertType30Day:
		summary.ThirtyDay++
		notification.Subject = fmt.Sprintf("Engagement request %s lapsed after %d days", request.ClientName, elapsed)
		notification.Body = fmt.Sprintf("Request %s for %s reached the end of its monitoring window and has lapsed.",
			request.ID, request.ClientName)
	}

	// Best-effort: the guard row is already written, a delivery failure
	// must not block the lapse or get retried into a duplicate.
	if err := e.notifier.Send(ctx, notification); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": request.ID,
			"alert_type": alertType,
		}).Warn("monitoring alert notification failed")
	}

	if alertType == models.AlertType30Day {
		return e.lapse(ctx, request.ID, summary)
	}

	return nil
}

// lapse performs the terminal status write for the 30-day tier. Guarded
// by WHERE status = 'active', so it is safe to call on every sweep that
// sees the request past its window, whether or not the alert row was
// won this time.
func (e *Engine) lapse(ctx context.Context, requestID uuid.UUID, summary *SweepSummary) error {
	lapsed, err := e.requests.MarkLapsed(ctx, requestID)
	if err != nil {
		return err
	}
	if lapsed {
		summary.Lapsed++
		metrics.MonitoringLapsesTotal.Inc()
	}
	return nil
}

// recipientsFor builds the escalating recipient set: requester at 10
// days, plus admins at 20, plus compliance and partners at 30.
func (e *Engine) recipientsFor(ctx context.Context, request *models.Request, alertType models.AlertType) []string {
	var recipients []string

	if requester, err := e.users.GetByID(ctx, request.RequesterID); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": request.ID,
			"user_id":    request.RequesterID,
		}).Warn("failed to resolve requester for alert")
	} else {
		recipients = append(recipients, requester.Email)
	}

	if alertType == models.AlertType10Day {
		return recipients
	}

	recipients = append(recipients, e.roleEmails(ctx, models.RoleAdmin)...)
	if alertType == models.AlertType20Day {
		return recipients
	}

	recipients = append(recipients, e.roleEmails(ctx, models.RoleCompliance)...)
	recipients = append(recipients, e.roleEmails(ctx, models.RolePartner)...)
	return recipients
}

func (e *Engine) roleEmails(ctx context.Context, role models.Role) []string {
	users, err := e.users.ListByRole(ctx, role)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"role": role,
		}).Warn("failed to resolve alert recipients for role")
		return nil
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}
