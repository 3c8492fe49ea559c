package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const funnelEventsTable = "funnel_events"

var funnelEventStruct = database.NewStruct(new(models.FunnelEvent))

// FunnelEventRepository handles database operations for the funnel
// audit trail. Rows are append-only; there is no update or delete.
type FunnelEventRepository struct {
	*Repository
}

// NewFunnelEventRepository creates a new funnel event repository
func NewFunnelEventRepository(db database.DB, logger ectologger.Logger) *FunnelEventRepository {
	return &FunnelEventRepository{
		Repository: NewRepository(db, logger),
	}
}

// Append inserts a new funnel event
func (r *FunnelEventRepository) Append(ctx context.Context, event *models.FunnelEvent) error {
	ctx, span := tracing.StartSpan(ctx, "FunnelEventRepository.Append")
	defer span.End()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	metadata := event.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(funnelEventsTable).
		Cols("id", "prospect_id", "request_id", "from_stage", "to_stage", "actor",
			"days_in_prev_stage", "notes", "metadata", "created_at").
		Values(event.ID, event.ProspectID, event.RequestID, event.FromStage, event.ToStage, event.Actor,
			event.DaysInPrevStage, event.Notes, string(metadata), sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	err := r.DB().QueryRowxContext(ctx, query, args...).Scan(&event.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"to_stage": event.ToStage,
		}).Error("failed to append funnel event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append funnel event")
	}

	return nil
}

// GetLatestForRequest retrieves the most recent event for a request
func (r *FunnelEventRepository) GetLatestForRequest(ctx context.Context, requestID uuid.UUID) (*models.FunnelEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "FunnelEventRepository.GetLatestForRequest")
	defer span.End()

	sb := funnelEventStruct.SelectFrom(funnelEventsTable)
	sb.Where(sb.Equal("request_id", requestID))
	sb.OrderBy("created_at").Desc().Limit(1)

	return r.getOne(ctx, sb)
}

// GetLatestForProspect retrieves the most recent event for a prospect
func (r *FunnelEventRepository) GetLatestForProspect(ctx context.Context, prospectID uuid.UUID) (*models.FunnelEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "FunnelEventRepository.GetLatestForProspect")
	defer span.End()

	sb := funnelEventStruct.SelectFrom(funnelEventsTable)
	sb.Where(sb.Equal("prospect_id", prospectID))
	sb.OrderBy("created_at").Desc().Limit(1)

	return r.getOne(ctx, sb)
}

func (r *FunnelEventRepository) getOne(ctx context.Context, sb *database.SelectBuilder) (*models.FunnelEvent, error) {
	query, args := sb.Build()
	var event models.FunnelEvent
	err := r.DB().GetContext(ctx, &event, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "no funnel events recorded")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get funnel event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get funnel event")
	}

	return &event, nil
}

// ListByRequest retrieves a request's funnel history, oldest first
func (r *FunnelEventRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.FunnelEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "FunnelEventRepository.ListByRequest")
	defer span.End()

	sb := funnelEventStruct.SelectFrom(funnelEventsTable)
	sb.Where(sb.Equal("request_id", requestID))
	sb.OrderBy("created_at")

	return r.list(ctx, sb)
}

// ListByProspect retrieves a prospect's funnel history, oldest first
func (r *FunnelEventRepository) ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]models.FunnelEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "FunnelEventRepository.ListByProspect")
	defer span.End()

	sb := funnelEventStruct.SelectFrom(funnelEventsTable)
	sb.Where(sb.Equal("prospect_id", prospectID))
	sb.OrderBy("created_at")

	return r.list(ctx, sb)
}

func (r *FunnelEventRepository) list(ctx context.Context, sb *database.SelectBuilder) ([]models.FunnelEvent, error) {
	query, args := sb.Build()
	var events []models.FunnelEvent
	err := r.DB().SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list funnel events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list funnel events")
	}

	return events, nil
}
