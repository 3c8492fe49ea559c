package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories/fakes"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type fixture struct {
	tracker   *Tracker
	renewals  *fakes.EngagementRenewalRepo
	requests  *fakes.RequestRepo
	notifier  *fakes.Notifier
	requester *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	requester := &models.User{ID: uuid.New(), Name: "Rory", Email: "rory@firm.test", Role: models.RoleRequester}
	users := fakes.NewUserRepo(
		requester,
		&models.User{ID: uuid.New(), Name: "Ada", Email: "ada@firm.test", Role: models.RoleAdmin},
		&models.User{ID: uuid.New(), Name: "Pat", Email: "pat@firm.test", Role: models.RolePartner},
		&models.User{ID: uuid.New(), Name: "Cleo", Email: "cleo@firm.test", Role: models.RoleCompliance},
	)

	renewals := fakes.NewEngagementRenewalRepo()
	requests := fakes.NewRequestRepo()
	notifier := &fakes.Notifier{}
	tracker := NewTracker(renewals, requests, users, notifier, clock.Fixed{Time: now}, DefaultTermYears, testLogger())

	return &fixture{
		tracker:   tracker,
		renewals:  renewals,
		requests:  requests,
		notifier:  notifier,
		requester: requester,
	}
}

// addRenewal seeds a renewal whose due date is daysUntilDue from now,
// with a matching active request so recipient resolution works.
func (f *fixture) addRenewal(t *testing.T, daysUntilDue int) *models.EngagementRenewal {
	t.Helper()

	due := now.AddDate(0, 0, daysUntilDue)
	request := &models.Request{
		ID:          uuid.New(),
		RequesterID: f.requester.ID,
		ClientName:  "Acme Holdings",
		Status:      models.RequestStatusActive,
	}
	f.requests.Requests[request.ID] = request

	renewal := &models.EngagementRenewal{
		ID:             uuid.New(),
		RequestID:      request.ID,
		EngagementCode: "ENG-1001",
		StartDate:      due.AddDate(-DefaultTermYears, 0, 0),
		DueDate:        due,
		Status:         models.RenewalStatusActive,
	}
	f.renewals.Renewals[renewal.ID] = renewal
	return renewal
}

func TestCreateTracking(t *testing.T) {
	f := newFixture(t)
	requestID := uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	renewal, err := f.tracker.CreateTracking(context.Background(), requestID, "ENG-1001", start)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), renewal.DueDate)
	assert.Equal(t, models.RenewalStatusActive, renewal.Status)
	assert.False(t, renewal.Alert90Sent)
	assert.False(t, renewal.Alert60Sent)
	assert.False(t, renewal.Alert30Sent)
	assert.False(t, renewal.ExpiredAlertSent)
}

func TestCreateTracking_RequiresEngagementCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.CreateTracking(context.Background(), uuid.New(), "", now)
	require.Error(t, err)
}

func TestCheckRenewalAlerts_OutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.addRenewal(t, 91)

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scanned)
	assert.Equal(t, 0, summary.NinetyDay)
	assert.Empty(t, f.notifier.Sent)
}

func TestCheckRenewalAlerts_NinetyDay(t *testing.T) {
	f := newFixture(t)
	renewal := f.addRenewal(t, 89)

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NinetyDay)
	assert.True(t, f.renewals.Renewals[renewal.ID].Alert90Sent)

	require.Len(t, f.notifier.Sent, 1)
	assert.Equal(t, []string{"rory@firm.test"}, f.notifier.Sent[0].Recipients)

	// A repeat sweep in the same window must not resend.
	summary, err = f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.NinetyDay)
	assert.Len(t, f.notifier.Sent, 1)
}

func TestCheckRenewalAlerts_SixtyDay(t *testing.T) {
	f := newFixture(t)
	renewal := f.addRenewal(t, 45)

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SixtyDay)
	assert.Equal(t, 0, summary.NinetyDay) // windows are mutually exclusive
	assert.True(t, f.renewals.Renewals[renewal.ID].Alert60Sent)
	assert.False(t, f.renewals.Renewals[renewal.ID].Alert90Sent)

	require.Len(t, f.notifier.Sent, 1)
	assert.ElementsMatch(t, []string{"rory@firm.test", "ada@firm.test"}, f.notifier.Sent[0].Recipients)
}

func TestCheckRenewalAlerts_ThirtyDaySetsRenewalDue(t *testing.T) {
	f := newFixture(t)
	renewal := f.addRenewal(t, 15)

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ThirtyDay)
	assert.True(t, f.renewals.Renewals[renewal.ID].Alert30Sent)
	assert.Equal(t, models.RenewalStatusRenewalDue, f.renewals.Renewals[renewal.ID].Status)

	require.Len(t, f.notifier.Sent, 1)
	assert.ElementsMatch(t, []string{"rory@firm.test", "pat@firm.test"}, f.notifier.Sent[0].Recipients)

	// Still listed while renewal_due, but the flag blocks a resend.
	summary, err = f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scanned)
	assert.Equal(t, 0, summary.ThirtyDay)
}

func TestCheckRenewalAlerts_Expired(t *testing.T) {
	f := newFixture(t)
	renewal := f.addRenewal(t, -5)

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.True(t, f.renewals.Renewals[renewal.ID].ExpiredAlertSent)
	assert.Equal(t, models.RenewalStatusExpired, f.renewals.Renewals[renewal.ID].Status)

	require.Len(t, f.notifier.Sent, 1)
	assert.ElementsMatch(t,
		[]string{"rory@firm.test", "pat@firm.test", "cleo@firm.test", "ada@firm.test"},
		f.notifier.Sent[0].Recipients)

	// Expired renewals drop out of the sweep entirely.
	summary, err = f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Scanned)
}

func TestCheckRenewalAlerts_DueDayCountsAsExpired(t *testing.T) {
	f := newFixture(t)

	// Due later today: renewal dates are day-granular, so the due day
	// itself already counts as expired rather than as a 30-day notice.
	renewal := f.addRenewal(t, 0)
	f.renewals.Renewals[renewal.ID].DueDate = now.Add(12 * time.Hour)

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 0, summary.ThirtyDay)
	assert.Equal(t, models.RenewalStatusExpired, f.renewals.Renewals[renewal.ID].Status)
}

func TestCheckRenewalAlerts_RepairsMissedStatusWrite(t *testing.T) {
	f := newFixture(t)

	// A prior sweep won the flag flip but its status write failed,
	// leaving the renewal active inside the 30-day window.
	dueSoon := f.addRenewal(t, 15)
	f.renewals.Renewals[dueSoon.ID].Alert30Sent = true

	// Same shape past the due date.
	expired := f.addRenewal(t, -5)
	f.renewals.Renewals[expired.ID].ExpiredAlertSent = true

	summary, err := f.tracker.CheckRenewalAlerts(context.Background())
	require.NoError(t, err)

	// The statuses catch up without any alert re-firing.
	assert.Equal(t, 0, summary.ThirtyDay)
	assert.Equal(t, 0, summary.Expired)
	assert.Empty(t, f.notifier.Sent)
	assert.Equal(t, models.RenewalStatusRenewalDue, f.renewals.Renewals[dueSoon.ID].Status)
	assert.Equal(t, models.RenewalStatusExpired, f.renewals.Renewals[expired.ID].Status)
}

func TestRenew_ResetsCycle(t *testing.T) {
	f := newFixture(t)
	renewal := f.addRenewal(t, -5)
	stored := f.renewals.Renewals[renewal.ID]
	stored.Status = models.RenewalStatusExpired
	stored.Alert90Sent = true
	stored.Alert60Sent = true
	stored.Alert30Sent = true
	stored.ExpiredAlertSent = true

	newStart := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	renewed, err := f.tracker.Renew(context.Background(), renewal.ID, newStart)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2028, 7, 1, 0, 0, 0, 0, time.UTC), renewed.DueDate)

	assert.Equal(t, models.RenewalStatusActive, stored.Status)
	assert.Equal(t, newStart, stored.StartDate)
	assert.False(t, stored.Alert90Sent)
	assert.False(t, stored.Alert60Sent)
	assert.False(t, stored.Alert30Sent)
	assert.False(t, stored.ExpiredAlertSent)
}

func TestRenew_RequiresStartDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.Renew(context.Background(), uuid.New(), time.Time{})
	require.Error(t, err)
}
