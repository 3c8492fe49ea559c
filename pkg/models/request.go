package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the status of a COI request
type RequestStatus string

const (
	RequestStatusDraft            RequestStatus = "draft"
	RequestStatusSubmitted        RequestStatus = "submitted"
	RequestStatusDirectorReview   RequestStatus = "director_review"
	RequestStatusComplianceReview RequestStatus = "compliance_review"
	RequestStatusPartnerReview    RequestStatus = "partner_review"
	RequestStatusFinanceReview    RequestStatus = "finance_review"
	RequestStatusApproved         RequestStatus = "approved"
	RequestStatusActive           RequestStatus = "active"
	RequestStatusRejected         RequestStatus = "rejected"
	RequestStatusLapsed           RequestStatus = "lapsed"
	RequestStatusCancelled        RequestStatus = "cancelled"
)

// RequestStage represents the commercial stage of a request
type RequestStage string

const (
	StageProposal   RequestStage = "proposal"
	StageEngagement RequestStage = "engagement"
)

// requestTransitions is the closed set of legal status transitions.
// Rejected and lapsed are terminal: a rejected request can never be
// resubmitted, and a lapsed request must go through a fresh intake.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusDraft:            {RequestStatusSubmitted, RequestStatusCancelled},
	RequestStatusSubmitted:        {RequestStatusDirectorReview, RequestStatusCancelled},
	RequestStatusDirectorReview:   {RequestStatusComplianceReview, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusComplianceReview: {RequestStatusPartnerReview, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusPartnerReview:    {RequestStatusFinanceReview, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusFinanceReview:    {RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusApproved:         {RequestStatusActive, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusActive:           {RequestStatusLapsed, RequestStatusCancelled},
	RequestStatusRejected:         {},
	RequestStatusLapsed:           {},
	RequestStatusCancelled:        {},
}

// CanTransition reports whether a status change is legal
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, next := range requestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions
func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

// Request is a service engagement request moving through the approval
// chain. Laurel owns the derived temporal fields (monitoring_days,
// execution_date, stale_detected_at) and the status transitions that
// happen after approval; intake and the approval chain itself are owned
// by the surrounding application.
type Request struct {
	ID                 uuid.UUID     `db:"id" json:"id"`
	RequesterID        uuid.UUID     `db:"requester_id" json:"requester_id"`
	ApprovingPartnerID *uuid.UUID    `db:"approving_partner_id" json:"approving_partner_id,omitempty"`
	OriginProspectID   *uuid.UUID    `db:"origin_prospect_id" json:"origin_prospect_id,omitempty"`
	EngagementCode     *string       `db:"engagement_code" json:"engagement_code,omitempty"`
	ClientName         string        `db:"client_name" json:"client_name"`
	Status             RequestStatus `db:"status" json:"status"`
	Stage              RequestStage  `db:"stage" json:"stage"`
	DisclaimerRequired bool          `db:"disclaimer_required" json:"disclaimer_required"`
	MonitoringDays     *int          `db:"monitoring_days" json:"monitoring_days,omitempty"`
	ExecutionDate      *time.Time    `db:"execution_date" json:"execution_date,omitempty"`
	LastActivityAt     time.Time     `db:"last_activity_at" json:"last_activity_at"`
	StaleDetectedAt    *time.Time    `db:"stale_detected_at" json:"stale_detected_at,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Request) TableName() string {
	return "requests"
}

// ActivityAt returns the most recent recorded activity for staleness checks
func (r *Request) ActivityAt() time.Time {
	latest := r.CreatedAt
	if r.UpdatedAt.After(latest) {
		latest = r.UpdatedAt
	}
	if r.LastActivityAt.After(latest) {
		latest = r.LastActivityAt
	}
	return latest
}
