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

const executionTrackingTable = "execution_tracking"
const executionNotesTable = "execution_notes"

var executionTrackingStruct = database.NewStruct(new(models.ExecutionTracking))
var executionNoteStruct = database.NewStruct(new(models.ExecutionNote))

// ExecutionTrackingRepository handles database operations for
// execution-phase sub-state
type ExecutionTrackingRepository struct {
	*Repository
}

// NewExecutionTrackingRepository creates a new execution tracking repository
func NewExecutionTrackingRepository(db database.DB, logger ectologger.Logger) *ExecutionTrackingRepository {
	return &ExecutionTrackingRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetOrCreate retrieves the tracking row for a request, creating an
// empty one on first access. The insert races safely: on conflict the
// existing row is read back.
func (r *ExecutionTrackingRepository) GetOrCreate(ctx context.Context, requestID uuid.UUID) (*models.ExecutionTracking, error) {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.GetOrCreate")
	defer span.End()

	tracking, err := r.get(ctx, requestID)
	if err == nil {
		return tracking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to get execution tracking")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get execution tracking")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(executionTrackingTable).
		Cols("id", "request_id", "created_at", "updated_at").
		Values(uuid.New(), requestID, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		OnConflictColumnsDoNothing("request_id")

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to create execution tracking")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create execution tracking")
	}

	tracking, err = r.get(ctx, requestID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to read back execution tracking")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get execution tracking")
	}
	return tracking, nil
}

func (r *ExecutionTrackingRepository) get(ctx context.Context, requestID uuid.UUID) (*models.ExecutionTracking, error) {
	sb := executionTrackingStruct.SelectFrom(executionTrackingTable)
	sb.Where(sb.Equal("request_id", requestID))

	query, args := sb.Build()
	var tracking models.ExecutionTracking
	if err := r.DB().GetContext(ctx, &tracking, query, args...); err != nil {
		return nil, err
	}
	return &tracking, nil
}

// SetMilestone stamps one of the closed set of milestone columns.
// Re-stamping overwrites, which keeps the operation idempotent.
func (r *ExecutionTrackingRepository) SetMilestone(ctx context.Context, requestID uuid.UUID, milestone models.Milestone, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.SetMilestone")
	defer span.End()

	if !milestone.Valid() {
		return BadRequest("unknown milestone: " + string(milestone))
	}

	ub := database.NewUpdateBuilder()
	ub.Update(executionTrackingTable).
		Set(
			ub.Assign(string(milestone), at),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("request_id", requestID))

	return r.execTrackingUpdate(ctx, ub, requestID, "failed to set milestone")
}

// SetProposalRecipient records who the proposal was sent to
func (r *ExecutionTrackingRepository) SetProposalRecipient(ctx context.Context, requestID uuid.UUID, recipient string) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.SetProposalRecipient")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(executionTrackingTable).
		Set(
			ub.Assign("proposal_recipient", recipient),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("request_id", requestID))

	return r.execTrackingUpdate(ctx, ub, requestID, "failed to set proposal recipient")
}

// RecordClientResponse stores the client's answer and when it arrived
func (r *ExecutionTrackingRepository) RecordClientResponse(ctx context.Context, requestID uuid.UUID, response models.ClientResponseType, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.RecordClientResponse")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(executionTrackingTable).
		Set(
			ub.Assign("client_response_type", response),
			ub.Assign("client_response_at", at),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("request_id", requestID))

	return r.execTrackingUpdate(ctx, ub, requestID, "failed to record client response")
}

// SetComplianceFormsCompleted marks the compliance paperwork done
func (r *ExecutionTrackingRepository) SetComplianceFormsCompleted(ctx context.Context, requestID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.SetComplianceFormsCompleted")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(executionTrackingTable).
		Set(
			ub.Assign("compliance_forms_completed", true),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("request_id", requestID))

	return r.execTrackingUpdate(ctx, ub, requestID, "failed to set compliance forms completed")
}

// SetCountersigned stamps the countersignature and its document type
func (r *ExecutionTrackingRepository) SetCountersigned(ctx context.Context, requestID uuid.UUID, docType string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.SetCountersigned")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(executionTrackingTable).
		Set(
			ub.Assign("countersigned_at", at),
			ub.Assign("countersigned_doc_type", docType),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("request_id", requestID))

	return r.execTrackingUpdate(ctx, ub, requestID, "failed to set countersigned")
}

func (r *ExecutionTrackingRepository) execTrackingUpdate(ctx context.Context, ub *database.UpdateBuilder, requestID uuid.UUID, failMsg string) error {
	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error(failMsg)
		return httperror.NewHTTPError(http.StatusInternalServerError, failMsg)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error(failMsg)
		return httperror.NewHTTPError(http.StatusInternalServerError, failMsg)
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "execution tracking for request %s does not exist", requestID)
	}

	return nil
}

// AppendNote adds an entry to the append-only notes log
func (r *ExecutionTrackingRepository) AppendNote(ctx context.Context, note *models.ExecutionNote) error {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.AppendNote")
	defer span.End()

	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(executionNotesTable).
		Cols("id", "request_id", "actor", "note", "created_at").
		Values(note.ID, note.RequestID, note.Actor, note.Note, sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	err := r.DB().QueryRowxContext(ctx, query, args...).Scan(&note.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": note.RequestID,
		}).Error("failed to append execution note")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append execution note")
	}

	return nil
}

// ListNotes retrieves a request's notes, newest first
func (r *ExecutionTrackingRepository) ListNotes(ctx context.Context, requestID uuid.UUID) ([]models.ExecutionNote, error) {
	ctx, span := tracing.StartSpan(ctx, "ExecutionTrackingRepository.ListNotes")
	defer span.End()

	sb := executionNoteStruct.SelectFrom(executionNotesTable)
	sb.Where(sb.Equal("request_id", requestID))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var notes []models.ExecutionNote
	err := r.DB().SelectContext(ctx, &notes, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"request_id": requestID,
		}).Error("failed to list execution notes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list execution notes")
	}

	return notes, nil
}
