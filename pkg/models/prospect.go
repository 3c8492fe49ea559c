package models

import (
	"time"

	"github.com/google/uuid"
)

// ProspectStatus represents the state of a pre-client lead
type ProspectStatus string

const (
	ProspectStatusActive   ProspectStatus = "active"
	ProspectStatusInactive ProspectStatus = "inactive"
)

// Prospect is a pre-client lead. A non-null stale_detected_at means the
// prospect has already been flagged by a sweep and must not be
// re-flagged; updating activity is the only way the flag clears.
type Prospect struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	OwnerID         uuid.UUID      `db:"owner_id" json:"owner_id"`
	Status          ProspectStatus `db:"status" json:"status"`
	LastActivityAt  time.Time      `db:"last_activity_at" json:"last_activity_at"`
	StaleDetectedAt *time.Time     `db:"stale_detected_at" json:"stale_detected_at,omitempty"`
	LostReason      *string        `db:"lost_reason" json:"lost_reason,omitempty"`
	LostStage       *string        `db:"lost_stage" json:"lost_stage,omitempty"`
	LostAt          *time.Time     `db:"lost_at" json:"lost_at,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Prospect) TableName() string {
	return "prospects"
}

// ActivityAt returns the most recent recorded activity for staleness checks
func (p *Prospect) ActivityAt() time.Time {
	latest := p.CreatedAt
	if p.UpdatedAt.After(latest) {
		latest = p.UpdatedAt
	}
	if p.LastActivityAt.After(latest) {
		latest = p.LastActivityAt
	}
	return latest
}
