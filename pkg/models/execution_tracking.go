package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientResponseType records how the client answered a proposal
type ClientResponseType string

const (
	ClientResponseAccepted ClientResponseType = "accepted"
	ClientResponseRejected ClientResponseType = "rejected"
)

// Milestone identifies an execution-phase timestamp column. The set is
// closed so repository updates can never touch an arbitrary column.
type Milestone string

const (
	MilestoneProposalPrepared         Milestone = "proposal_prepared_at"
	MilestoneProposalSent             Milestone = "proposal_sent_at"
	MilestoneFollowUp1                Milestone = "followup_1_at"
	MilestoneFollowUp2                Milestone = "followup_2_at"
	MilestoneFollowUp3                Milestone = "followup_3_at"
	MilestoneEngagementLetterPrepared Milestone = "engagement_letter_prepared_at"
	MilestoneEngagementLetterSent     Milestone = "engagement_letter_sent_at"
	MilestoneSigned                   Milestone = "signed_at"
	MilestoneCountersigned            Milestone = "countersigned_at"
)

// Valid reports whether m is a known milestone column
func (m Milestone) Valid() bool {
	switch m {
	case MilestoneProposalPrepared, MilestoneProposalSent,
		MilestoneFollowUp1, MilestoneFollowUp2, MilestoneFollowUp3,
		MilestoneEngagementLetterPrepared, MilestoneEngagementLetterSent,
		MilestoneSigned, MilestoneCountersigned:
		return true
	}
	return false
}

// FollowUpMilestone maps a follow-up ordinal (1..3) to its column
func FollowUpMilestone(n int) (Milestone, bool) {
	switch n {
	case 1:
		return MilestoneFollowUp1, true
	case 2:
		return MilestoneFollowUp2, true
	case 3:
		return MilestoneFollowUp3, true
	}
	return "", false
}

// ExecutionTracking holds the execution-phase sub-milestones of an
// engagement-stage request. One row per request, created lazily on
// first read. Repeated milestone writes overwrite the timestamp, which
// keeps the recording operations idempotent at the storage level.
type ExecutionTracking struct {
	ID                         uuid.UUID           `db:"id" json:"id"`
	RequestID                  uuid.UUID           `db:"request_id" json:"request_id"`
	ProposalPreparedAt         *time.Time          `db:"proposal_prepared_at" json:"proposal_prepared_at,omitempty"`
	ProposalSentAt             *time.Time          `db:"proposal_sent_at" json:"proposal_sent_at,omitempty"`
	ProposalRecipient          *string             `db:"proposal_recipient" json:"proposal_recipient,omitempty"`
	FollowUp1At                *time.Time          `db:"followup_1_at" json:"followup_1_at,omitempty"`
	FollowUp2At                *time.Time          `db:"followup_2_at" json:"followup_2_at,omitempty"`
	FollowUp3At                *time.Time          `db:"followup_3_at" json:"followup_3_at,omitempty"`
	ClientResponseAt           *time.Time          `db:"client_response_at" json:"client_response_at,omitempty"`
	ClientResponseType         *ClientResponseType `db:"client_response_type" json:"client_response_type,omitempty"`
	EngagementLetterPreparedAt *time.Time          `db:"engagement_letter_prepared_at" json:"engagement_letter_prepared_at,omitempty"`
	EngagementLetterSentAt     *time.Time          `db:"engagement_letter_sent_at" json:"engagement_letter_sent_at,omitempty"`
	SignedAt                   *time.Time          `db:"signed_at" json:"signed_at,omitempty"`
	ComplianceFormsCompleted   bool                `db:"compliance_forms_completed" json:"compliance_forms_completed"`
	CountersignedAt            *time.Time          `db:"countersigned_at" json:"countersigned_at,omitempty"`
	CountersignedDocType       *string             `db:"countersigned_doc_type" json:"countersigned_doc_type,omitempty"`
	CreatedAt                  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time           `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (ExecutionTracking) TableName() string {
	return "execution_tracking"
}

// ExecutionNote is one entry in a request's append-only admin-notes log.
// Notes are never updated or deleted.
type ExecutionNote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RequestID uuid.UUID `db:"request_id" json:"request_id"`
	Actor     string    `db:"actor" json:"actor"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (ExecutionNote) TableName() string {
	return "execution_notes"
}
