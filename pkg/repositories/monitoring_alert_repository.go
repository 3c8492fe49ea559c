package repositories

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const monitoringAlertsTable = "monitoring_alerts"

var monitoringAlertStruct = database.NewStruct(new(models.MonitoringAlert))

// MonitoringAlertRepository handles database operations for
// monitoring-window alerts
type MonitoringAlertRepository struct {
	*Repository
}

// NewMonitoringAlertRepository creates a new monitoring alert repository
func NewMonitoringAlertRepository(db database.DB, logger ectologger.Logger) *MonitoringAlertRepository {
	return &MonitoringAlertRepository{
		Repository: NewRepository(db, logger),
	}
}

// InsertIfAbsent records an alert, relying on the unique constraint on
// (request_id, alert_type) to make the write race-free. The returned
// bool is true only for the caller that actually inserted the row, so
// an alert is dispatched at most once no matter how many sweeps run.
func (r *MonitoringAlertRepository) InsertIfAbsent(ctx context.Context, requestID uuid.UUID, alertType models.AlertType, sentAt time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringAlertRepository.InsertIfAbsent")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(monitoringAlertsTable).
		Cols("id", "request_id", "alert_type", "sent_at", "created_at").
		Values(uuid.New(), requestID, alertType, sentAt, sqlbuilder.Raw("NOW()")).
		OnConflictColumnsDoNothing("request_id", "alert_type")

	query, args := ib.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
			"alert_type": alertType,
		}).Error("failed to record monitoring alert")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to record monitoring alert")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
			"alert_type": alertType,
		}).Error("failed to record monitoring alert")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to record monitoring alert")
	}

	if rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"request_id": requestID,
			"alert_type": alertType,
		}).Debugf("Recorded monitoring alert")
	}
	return rows > 0, nil
}

// ListByRequest retrieves the alerts already sent for a request
func (r *MonitoringAlertRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.MonitoringAlert, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringAlertRepository.ListByRequest")
	defer span.End()

	sb := monitoringAlertStruct.SelectFrom(monitoringAlertsTable)
	sb.Where(sb.Equal("request_id", requestID))
	sb.OrderBy("sent_at")

	query, args := sb.Build()
	var alerts []models.MonitoringAlert
	err := r.DB().SelectContext(ctx, &alerts, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to list monitoring alerts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list monitoring alerts")
	}

	return alerts, nil
}
