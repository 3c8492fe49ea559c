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

const requestsTable = "requests"

var requestStruct = database.NewStruct(new(models.Request))

// RequestRepository handles database operations for requests
type RequestRepository struct {
	*Repository
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db database.DB, logger ectologger.Logger) *RequestRepository {
	return &RequestRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.GetByID")
	defer span.End()

	sb := requestStruct.SelectFrom(requestsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var request models.Request
	err := r.DB().GetContext(ctx, &request, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "request %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to get request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get request")
	}

	return &request, nil
}

// ListActiveMonitored retrieves active requests that carry a monitoring
// window, oldest execution first so lapse decisions happen before newer
// alerts in the same sweep.
func (r *RequestRepository) ListActiveMonitored(ctx context.Context) ([]models.Request, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.ListActiveMonitored")
	defer span.End()

	sb := requestStruct.SelectFrom(requestsTable)
	sb.Where(
		sb.Equal("status", models.RequestStatusActive),
		sb.IsNotNull("monitoring_days"),
		sb.IsNotNull("execution_date"),
	)
	sb.OrderBy("execution_date")

	query, args := sb.Build()
	var requests []models.Request
	err := r.DB().SelectContext(ctx, &requests, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list monitored requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list monitored requests")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"request_count": len(requests),
	}).Debugf("Listed %s", requestsTable)
	return requests, nil
}

// UpdateMonitoringDays writes the recomputed elapsed-days counter for
// one request. Returns false when the stored value already matches, so
// an unchanged counter costs no write.
func (r *RequestRepository) UpdateMonitoringDays(ctx context.Context, id uuid.UUID, days int) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.UpdateMonitoringDays")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(requestsTable).
		Set(
			ub.Assign("monitoring_days", days),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.Equal("status", models.RequestStatusActive),
		)
	ub.SQL("AND monitoring_days IS DISTINCT FROM " + ub.Var(days))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id":      id,
			"monitoring_days": days,
		}).Error("failed to update monitoring days")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update monitoring days")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to update monitoring days")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update monitoring days")
	}

	return rows > 0, nil
}

// MarkActive transitions an approved request to active and stamps the
// execution date that anchors the monitoring window.
func (r *RequestRepository) MarkActive(ctx context.Context, id uuid.UUID, executionDate time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.MarkActive")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(requestsTable).
		Set(
			ub.Assign("status", models.RequestStatusActive),
			ub.Assign("execution_date", executionDate),
			ub.Assign("monitoring_days", 0),
			ub.Assign("last_activity_at", executionDate),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.Equal("status", models.RequestStatusApproved),
		)

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request active")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request active")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request active")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request active")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusConflict, "request %s is not in approved status", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id": id,
	}).Infof("Request marked active")
	return nil
}

// MarkRejected transitions a request to the terminal rejected status
func (r *RequestRepository) MarkRejected(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.MarkRejected")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(requestsTable).
		Set(
			ub.Assign("status", models.RequestStatusRejected),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", id))
	ub.SQL("AND status NOT IN ('rejected', 'lapsed', 'cancelled')")

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request rejected")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request rejected")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request rejected")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request rejected")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusConflict, "request %s is already in a terminal status", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id": id,
	}).Infof("Request marked rejected")
	return nil
}

// MarkLapsed transitions an active request to lapsed. Returns false
// when the request already left active status, which makes concurrent
// sweeps safe: only one caller observes the flip.
func (r *RequestRepository) MarkLapsed(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.MarkLapsed")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(requestsTable).
		Set(
			ub.Assign("status", models.RequestStatusLapsed),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.Equal("status", models.RequestStatusActive),
		)

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request lapsed")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request lapsed")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request lapsed")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request lapsed")
	}

	if rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"request_id": id,
		}).Infof("Request marked lapsed")
	}
	return rows > 0, nil
}

// ListStaleProposalCandidates retrieves prospect-originated requests
// not yet resolved (approved, active or terminal) whose most recent
// activity predates the cutoff and that have not been flagged yet.
func (r *RequestRepository) ListStaleProposalCandidates(ctx context.Context, cutoff time.Time) ([]models.Request, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.ListStaleProposalCandidates")
	defer span.End()

	sb := requestStruct.SelectFrom(requestsTable)
	sb.Where(
		sb.IsNotNull("origin_prospect_id"),
		sb.IsNull("stale_detected_at"),
		sb.LessEqualThan("GREATEST(created_at, updated_at, last_activity_at)", cutoff),
	)
	sb.SQL("AND status NOT IN ('approved', 'active', 'rejected', 'lapsed', 'cancelled')")
	sb.OrderBy("last_activity_at")

	query, args := sb.Build()
	var requests []models.Request
	err := r.DB().SelectContext(ctx, &requests, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list stale proposal candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list stale proposal candidates")
	}

	return requests, nil
}

// MarkStale flags a request as stale. Returns false when the flag was
// already set, so a sweep never double-logs the detection.
func (r *RequestRepository) MarkStale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.MarkStale")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(requestsTable).
		Set(
			ub.Assign("stale_detected_at", at),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.IsNull("stale_detected_at"),
		)

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request stale")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request stale")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to mark request stale")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark request stale")
	}

	return rows > 0, nil
}

// UpdateActivity bumps last_activity_at and clears any stale flag.
// Activity is the only thing that un-flags a stale request.
func (r *RequestRepository) UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "RequestRepository.UpdateActivity")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(requestsTable).
		Set(
			ub.Assign("last_activity_at", at),
			ub.Assign("stale_detected_at", nil),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to update request activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update request activity")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": id,
		}).Error("failed to update request activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update request activity")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "request %s does not exist", id)
	}

	return nil
}
