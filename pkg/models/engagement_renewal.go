package models

import (
	"time"

	"github.com/google/uuid"
)

// RenewalStatus represents the state of an engagement renewal cycle
type RenewalStatus string

const (
	RenewalStatusActive     RenewalStatus = "active"
	RenewalStatusRenewalDue RenewalStatus = "renewal_due"
	RenewalStatusExpired    RenewalStatus = "expired"
)

// RenewalAlertFlag identifies one of the monotonic alert-sent booleans
type RenewalAlertFlag string

const (
	RenewalAlert90Day   RenewalAlertFlag = "alert_90_sent"
	RenewalAlert60Day   RenewalAlertFlag = "alert_60_sent"
	RenewalAlert30Day   RenewalAlertFlag = "alert_30_sent"
	RenewalAlertExpired RenewalAlertFlag = "expired_alert_sent"
)

// Valid reports whether f is a known alert flag column
func (f RenewalAlertFlag) Valid() bool {
	switch f {
	case RenewalAlert90Day, RenewalAlert60Day, RenewalAlert30Day, RenewalAlertExpired:
		return true
	}
	return false
}

// EngagementRenewal tracks the 3-year renewal cycle of an accepted
// engagement. Each alert flag transitions false to true exactly once;
// only an explicit renewal resets them.
type EngagementRenewal struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	RequestID        uuid.UUID     `db:"request_id" json:"request_id"`
	EngagementCode   string        `db:"engagement_code" json:"engagement_code"`
	StartDate        time.Time     `db:"start_date" json:"start_date"`
	DueDate          time.Time     `db:"due_date" json:"due_date"`
	Status           RenewalStatus `db:"status" json:"status"`
	Alert90Sent      bool          `db:"alert_90_sent" json:"alert_90_sent"`
	Alert60Sent      bool          `db:"alert_60_sent" json:"alert_60_sent"`
	Alert30Sent      bool          `db:"alert_30_sent" json:"alert_30_sent"`
	ExpiredAlertSent bool          `db:"expired_alert_sent" json:"expired_alert_sent"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (EngagementRenewal) TableName() string {
	return "engagement_renewals"
}
