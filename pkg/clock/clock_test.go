package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysSince(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want int
	}{
		{"same instant", now, 0},
		{"under a day", now.Add(-23 * time.Hour), 0},
		{"exactly one day", now.AddDate(0, 0, -1), 1},
		{"partial second day rounds down", now.Add(-36 * time.Hour), 1},
		{"ten days", now.AddDate(0, 0, -10), 10},
		{"thirty days", now.AddDate(0, 0, -30), 30},
		{"future date is negative", now.Add(12 * time.Hour), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysSince(now, tt.t))
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want int
	}{
		{"same instant", now, 0},
		{"under a day", now.Add(23 * time.Hour), 0},
		{"exactly ninety days", now.AddDate(0, 0, 90), 90},
		{"just past ninety days", now.AddDate(0, 0, 90).Add(12 * time.Hour), 90},
		{"just under ninety days", now.AddDate(0, 0, 90).Add(-time.Hour), 89},
		{"past due truncates toward zero", now.Add(-36 * time.Hour), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(now, tt.t))
		})
	}
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, Fixed{Time: at}.Now())
}
