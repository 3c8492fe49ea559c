package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType identifies a monitoring-window alert tier
type AlertType string

const (
	AlertType10Day AlertType = "10_day"
	AlertType20Day AlertType = "20_day"
	AlertType30Day AlertType = "30_day"
)

// MonitoringAlert records that a monitoring-window alert was sent for a
// request. The UNIQUE(request_id, alert_type) constraint is the
// idempotency guard: an insert that hits the constraint means the alert
// already fired, so it must not be sent again.
type MonitoringAlert struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RequestID uuid.UUID `db:"request_id" json:"request_id"`
	AlertType AlertType `db:"alert_type" json:"alert_type"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (MonitoringAlert) TableName() string {
	return "monitoring_alerts"
}
