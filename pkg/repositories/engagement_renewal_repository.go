package repositories

import (
	"context"
	"database/sql"
	"errors"
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

const engagementRenewalsTable = "engagement_renewals"

var engagementRenewalStruct = database.NewStruct(new(models.EngagementRenewal))

// EngagementRenewalRepository handles database operations for renewal cycles
type EngagementRenewalRepository struct {
	*Repository
}

// NewEngagementRenewalRepository creates a new engagement renewal repository
func NewEngagementRenewalRepository(db database.DB, logger ectologger.Logger) *EngagementRenewalRepository {
	return &EngagementRenewalRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a renewal cycle for a request. Creation is guarded by
// the unique constraint on request_id, so a repeated acceptance does
// not spawn a second cycle.
func (r *EngagementRenewalRepository) Create(ctx context.Context, renewal *models.EngagementRenewal) error {
	ctx, span := tracing.StartSpan(ctx, "EngagementRenewalRepository.Create")
	defer span.End()

	if renewal.ID == uuid.Nil {
		renewal.ID = uuid.New()
	}
	if renewal.Status == "" {
		renewal.Status = models.RenewalStatusActive
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(engagementRenewalsTable).
		Cols("id", "request_id", "engagement_code", "start_date", "due_date", "status", "created_at", "updated_at").
		Values(renewal.ID, renewal.RequestID, renewal.EngagementCode, renewal.StartDate, renewal.DueDate,
			renewal.Status, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		OnConflictColumnsDoNothing("request_id")

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": renewal.RequestID,
		}).Error("failed to create engagement renewal")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create engagement renewal")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id":      renewal.RequestID,
		"engagement_code": renewal.EngagementCode,
		"due_date":        renewal.DueDate,
	}).Infof("Created engagement renewal")
	return nil
}

// GetByRequestID retrieves the renewal cycle for a request
func (r *EngagementRenewalRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.EngagementRenewal, error) {
	ctx, span := tracing.StartSpan(ctx, "EngagementRenewalRepository.GetByRequestID")
	defer span.End()

	sb := engagementRenewalStruct.SelectFrom(engagementRenewalsTable)
	sb.Where(sb.Equal("request_id", requestID))

	query, args := sb.Build()
	var renewal models.EngagementRenewal
	err := r.DB().GetContext(ctx, &renewal, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "renewal for request %s does not exist", requestID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to get engagement renewal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engagement renewal")
	}

	return &renewal, nil
}

// ListActive retrieves renewals still in an alertable status, soonest
// due date first.
func (r *EngagementRenewalRepository) ListActive(ctx context.Context) ([]models.EngagementRenewal, error) {
	ctx, span := tracing.StartSpan(ctx, "EngagementRenewalRepository.ListActive")
	defer span.End()

	sb := engagementRenewalStruct.SelectFrom(engagementRenewalsTable)
	sb.Where(sb.In("status", models.RenewalStatusActive, models.RenewalStatusRenewalDue))
	sb.OrderBy("due_date")

	query, args := sb.Build()
	var renewals []models.EngagementRenewal
	err := r.DB().SelectContext(ctx, &renewals, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active renewals")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active renewals")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"renewal_count": len(renewals),
	}).Debugf("Listed %s", engagementRenewalsTable)
	return renewals, nil
}

// SetAlertSent flips one alert flag from false to true. Returns false
// when the flag was already set; the conditional WHERE makes the flip
// happen exactly once across concurrent sweeps.
func (r *EngagementRenewalRepository) SetAlertSent(ctx context.Context, id uuid.UUID, flag models.RenewalAlertFlag) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "EngagementRenewalRepository.SetAlertSent")
	defer span.End()

	if !flag.Valid() {
		return false, BadRequest("unknown renewal alert flag: " + string(flag))
	}

	ub := database.NewUpdateBuilder()
	ub.Update(engagementRenewalsTable).
		Set(
			ub.Assign(string(flag), true),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.Equal(string(flag), false),
		)

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": id,
			"alert_flag": flag,
		}).Error("failed to set renewal alert flag")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to set renewal alert flag")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": id,
			"alert_flag": flag,
		}).Error("failed to set renewal alert flag")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to set renewal alert flag")
	}

	return rows > 0, nil
}

// UpdateStatus moves a renewal to a new lifecycle status
func (r *EngagementRenewalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RenewalStatus) error {
	ctx, span := tracing.StartSpan(ctx, "EngagementRenewalRepository.UpdateStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(engagementRenewalsTable).
		Set(
			ub.Assign("status", status),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": id,
			"status":     status,
		}).Error("failed to update renewal status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update renewal status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": id,
		}).Error("failed to update renewal status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update renewal status")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "renewal %s does not exist", id)
	}

	return nil
}

// Renew starts a fresh cycle: new dates, status back to active, and
// every alert flag cleared so the next cycle's cadence fires again.
func (r *EngagementRenewalRepository) Renew(ctx context.Context, id uuid.UUID, newStart, newDue time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "EngagementRenewalRepository.Renew")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(engagementRenewalsTable).
		Set(
			ub.Assign("start_date", newStart),
			ub.Assign("due_date", newDue),
			ub.Assign("status", models.RenewalStatusActive),
			ub.Assign("alert_90_sent", false),
			ub.Assign("alert_60_sent", false),
			ub.Assign("alert_30_sent", false),
			ub.Assign("expired_alert_sent", false),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": id,
		}).Error("failed to renew engagement")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to renew engagement")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"renewal_id": id,
		}).Error("failed to renew engagement")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to renew engagement")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "renewal %s does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"renewal_id": id,
		"due_date":   newDue,
	}).Infof("Engagement renewed")
	return nil
}
