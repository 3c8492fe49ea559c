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

const prospectsTable = "prospects"

var prospectStruct = database.NewStruct(new(models.Prospect))

// ProspectRepository handles database operations for prospects
type ProspectRepository struct {
	*Repository
}

// NewProspectRepository creates a new prospect repository
func NewProspectRepository(db database.DB, logger ectologger.Logger) *ProspectRepository {
	return &ProspectRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetByID retrieves a prospect by ID
func (r *ProspectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prospect, error) {
	ctx, span := tracing.StartSpan(ctx, "ProspectRepository.GetByID")
	defer span.End()

	sb := prospectStruct.SelectFrom(prospectsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var prospect models.Prospect
	err := r.DB().GetContext(ctx, &prospect, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "prospect %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"prospect_id": id,
		}).Error("failed to get prospect")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get prospect")
	}

	return &prospect, nil
}

// ListStaleCandidates retrieves active prospects whose most recent
// activity predates the cutoff and that have not been flagged yet.
func (r *ProspectRepository) ListStaleCandidates(ctx context.Context, cutoff time.Time) ([]models.Prospect, error) {
	ctx, span := tracing.StartSpan(ctx, "ProspectRepository.ListStaleCandidates")
	defer span.End()

	sb := prospectStruct.SelectFrom(prospectsTable)
	sb.Where(
		sb.Equal("status", models.ProspectStatusActive),
		sb.IsNull("stale_detected_at"),
		sb.LessEqualThan("GREATEST(created_at, updated_at, last_activity_at)", cutoff),
	)
	sb.OrderBy("last_activity_at")

	query, args := sb.Build()
	var prospects []models.Prospect
	err := r.DB().SelectContext(ctx, &prospects, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list stale prospect candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list stale prospect candidates")
	}

	return prospects, nil
}

// ListNeedingFollowup retrieves active, unflagged prospects whose
// activity falls strictly between the stale cutoff and the follow-up
// cutoff. The two buckets are disjoint: anything at or past the stale
// cutoff belongs to the stale sweep, and anything already flagged stays
// out of both (MarkStale bumps updated_at, which would otherwise pull a
// flagged prospect back into this window).
func (r *ProspectRepository) ListNeedingFollowup(ctx context.Context, staleCutoff, followupCutoff time.Time) ([]models.Prospect, error) {
	ctx, span := tracing.StartSpan(ctx, "ProspectRepository.ListNeedingFollowup")
	defer span.End()

	sb := prospectStruct.SelectFrom(prospectsTable)
	sb.Where(
		sb.Equal("status", models.ProspectStatusActive),
		sb.IsNull("stale_detected_at"),
		sb.GreaterThan("GREATEST(created_at, updated_at, last_activity_at)", staleCutoff),
		sb.LessEqualThan("GREATEST(created_at, updated_at, last_activity_at)", followupCutoff),
	)
	sb.OrderBy("last_activity_at")

	query, args := sb.Build()
	var prospects []models.Prospect
	err := r.DB().SelectContext(ctx, &prospects, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list followup prospects")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list followup prospects")
	}

	return prospects, nil
}

// MarkStale flags a prospect as stale. Returns false when the flag was
// already set, so a sweep never double-logs the detection.
func (r *ProspectRepository) MarkStale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ProspectRepository.MarkStale")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(prospectsTable).
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
			"prospect_id": id,
		}).Error("failed to mark prospect stale")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark prospect stale")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"prospect_id": id,
		}).Error("failed to mark prospect stale")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark prospect stale")
	}

	return rows > 0, nil
}

// MarkLost deactivates a prospect with its loss reason and stage.
// Returns false when the prospect already left active status, so the
// loss is logged exactly once.
func (r *ProspectRepository) MarkLost(ctx context.Context, id uuid.UUID, reason, stage string, at time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ProspectRepository.MarkLost")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(prospectsTable).
		Set(
			ub.Assign("status", models.ProspectStatusInactive),
			ub.Assign("lost_reason", reason),
			ub.Assign("lost_stage", stage),
			ub.Assign("lost_at", at),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.Equal("status", models.ProspectStatusActive),
		)

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"prospect_id": id,
		}).Error("failed to mark prospect lost")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark prospect lost")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"prospect_id": id,
		}).Error("failed to mark prospect lost")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark prospect lost")
	}

	if rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"prospect_id": id,
			"lost_stage":  stage,
		}).Infof("Prospect marked lost")
	}
	return rows > 0, nil
}

// UpdateActivity bumps last_activity_at and clears any stale flag.
// Activity is the only thing that un-flags a stale prospect.
func (r *ProspectRepository) UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ProspectRepository.UpdateActivity")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(prospectsTable).
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
			"prospect_id": id,
		}).Error("failed to update prospect activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update prospect activity")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"prospect_id": id,
		}).Error("failed to update prospect activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update prospect activity")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "prospect %s does not exist", id)
	}

	return nil
}
