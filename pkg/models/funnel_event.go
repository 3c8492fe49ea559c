package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Funnel stage names recorded on transitions. These are analytics
// labels, not request statuses.
const (
	FunnelStageProposalPrepared = "proposal_prepared"
	FunnelStageProposalSent     = "proposal_sent"
	FunnelStageClientAccepted   = "client_accepted"
	FunnelStageClientRejected   = "client_rejected"
	FunnelStageLetterPrepared   = "engagement_letter_prepared"
	FunnelStageLetterSent       = "engagement_letter_sent"
	FunnelStageSigned           = "engagement_signed"
	FunnelStageCountersigned    = "engagement_countersigned"
	FunnelStageStaleDetected    = "stale_detected"
	FunnelStageLost             = "lost"
)

// FunnelEvent is one immutable row in the stage-transition audit trail.
// Events are only ever appended; conversion and attribution analytics
// are derived downstream.
type FunnelEvent struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	ProspectID      *uuid.UUID      `db:"prospect_id" json:"prospect_id,omitempty"`
	RequestID       *uuid.UUID      `db:"request_id" json:"request_id,omitempty"`
	FromStage       *string         `db:"from_stage" json:"from_stage,omitempty"`
	ToStage         string          `db:"to_stage" json:"to_stage"`
	Actor           string          `db:"actor" json:"actor"`
	DaysInPrevStage *int            `db:"days_in_prev_stage" json:"days_in_prev_stage,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (FunnelEvent) TableName() string {
	return "funnel_events"
}
