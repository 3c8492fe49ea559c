package monitoring

import (
	"context"
	"errors"
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

func activeRequest(requesterID uuid.UUID, daysAgo int) *models.Request {
	execution := now.AddDate(0, 0, -daysAgo)
	days := daysAgo
	return &models.Request{
		ID:             uuid.New(),
		RequesterID:    requesterID,
		ClientName:     "Acme Holdings",
		Status:         models.RequestStatusActive,
		Stage:          models.StageEngagement,
		MonitoringDays: &days,
		ExecutionDate:  &execution,
		LastActivityAt: execution,
		CreatedAt:      execution,
		UpdatedAt:      execution,
	}
}

func testUsers() (*fakes.UserRepo, *models.User) {
	requester := &models.User{ID: uuid.New(), Name: "Rory", Email: "rory@firm.test", Role: models.RoleRequester}
	users := fakes.NewUserRepo(
		requester,
		&models.User{ID: uuid.New(), Name: "Ada", Email: "ada@firm.test", Role: models.RoleAdmin},
		&models.User{ID: uuid.New(), Name: "Cleo", Email: "cleo@firm.test", Role: models.RoleCompliance},
		&models.User{ID: uuid.New(), Name: "Pat", Email: "pat@firm.test", Role: models.RolePartner},
	)
	return users, requester
}

func TestUpdateMonitoringDays(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	stale := activeRequest(requester.ID, 12)
	seven := 7
	stale.MonitoringDays = &seven // drifted counter, should be recomputed to 12

	current := activeRequest(requester.ID, 5) // already correct

	requests := fakes.NewRequestRepo(stale, current)
	engine := NewEngine(requests, fakes.NewMonitoringAlertRepo(), users, &fakes.Notifier{}, clock.Fixed{Time: now}, testLogger())

	updated, err := engine.UpdateMonitoringDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 12, *requests.Requests[stale.ID].MonitoringDays)
	assert.Equal(t, 5, *requests.Requests[current.ID].MonitoringDays)

	// Idempotent: a second sweep the same day changes nothing.
	updated, err = engine.UpdateMonitoringDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestUpdateMonitoringDays_SkipsFailedRow(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	bad := activeRequest(requester.ID, 9)
	good := activeRequest(requester.ID, 11)

	requests := fakes.NewRequestRepo(bad, good)
	requests.FailOn[bad.ID] = errors.New("deadlock detected")

	engine := NewEngine(requests, fakes.NewMonitoringAlertRepo(), users, &fakes.Notifier{}, clock.Fixed{Time: now}, testLogger())

	updated, err := engine.UpdateMonitoringDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 11, *requests.Requests[good.ID].MonitoringDays)
}

func TestSendIntervalAlerts_TenDay(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	request := activeRequest(requester.ID, 10)
	requests := fakes.NewRequestRepo(request)
	alerts := fakes.NewMonitoringAlertRepo()
	notifier := &fakes.Notifier{}
	engine := NewEngine(requests, alerts, users, notifier, clock.Fixed{Time: now}, testLogger())

	summary, err := engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TenDay)
	assert.Equal(t, 0, summary.Lapsed)

	require.Len(t, notifier.Sent, 1)
	assert.Equal(t, "monitoring_10_day", notifier.Sent[0].Type)
	assert.Equal(t, []string{"rory@firm.test"}, notifier.Sent[0].Recipients)

	// Same day again: the alert row already exists, nothing fires.
	summary, err = engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TenDay)
	assert.Len(t, notifier.Sent, 1)
}

func TestSendIntervalAlerts_TwentyDayEscalatesToAdmins(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	request := activeRequest(requester.ID, 20)
	notifier := &fakes.Notifier{}
	engine := NewEngine(fakes.NewRequestRepo(request), fakes.NewMonitoringAlertRepo(), users, notifier, clock.Fixed{Time: now}, testLogger())

	summary, err := engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TwentyDay)

	require.Len(t, notifier.Sent, 1)
	assert.ElementsMatch(t, []string{"rory@firm.test", "ada@firm.test"}, notifier.Sent[0].Recipients)
}

func TestSendIntervalAlerts_ThirtyDayLapsesOnce(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	request := activeRequest(requester.ID, 31) // past the window, caught late
	requests := fakes.NewRequestRepo(request)
	notifier := &fakes.Notifier{}
	engine := NewEngine(requests, fakes.NewMonitoringAlertRepo(), users, notifier, clock.Fixed{Time: now}, testLogger())

	summary, err := engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ThirtyDay)
	assert.Equal(t, 1, summary.Lapsed)
	assert.Equal(t, models.RequestStatusLapsed, requests.Requests[request.ID].Status)

	// Widest recipient set at the lapse tier.
	require.Len(t, notifier.Sent, 1)
	assert.ElementsMatch(t,
		[]string{"rory@firm.test", "ada@firm.test", "cleo@firm.test", "pat@firm.test"},
		notifier.Sent[0].Recipients)

	// The lapsed request drops out of the active set; nothing re-fires.
	summary, err = engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Scanned)
	assert.Equal(t, 0, summary.Lapsed)
}

func TestSendIntervalAlerts_RetriesLapseAfterStatusWriteFailure(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	request := activeRequest(requester.ID, 30)
	requests := fakes.NewRequestRepo(request)
	requests.FailOn[request.ID] = errors.New("deadlock detected")

	notifier := &fakes.Notifier{}
	alerts := fakes.NewMonitoringAlertRepo()
	engine := NewEngine(requests, alerts, users, notifier, clock.Fixed{Time: now}, testLogger())

	// First sweep wins the alert row but the status write fails.
	summary, err := engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RowFailures)
	assert.Equal(t, 0, summary.Lapsed)
	assert.Equal(t, models.RequestStatusActive, requests.Requests[request.ID].Status)
	assert.Len(t, alerts.Alerts, 1)

	// Once the failure clears, the next sweep must complete the lapse
	// even though the alert row already exists, without re-notifying.
	delete(requests.FailOn, request.ID)
	summary, err = engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Lapsed)
	assert.Equal(t, models.RequestStatusLapsed, requests.Requests[request.ID].Status)
	assert.Len(t, notifier.Sent, 1)
	assert.Len(t, alerts.Alerts, 1)
}

func TestSendIntervalAlerts_BetweenTiersFiresNothing(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	requests := fakes.NewRequestRepo(
		activeRequest(requester.ID, 9),
		activeRequest(requester.ID, 11),
		activeRequest(requester.ID, 25),
	)
	notifier := &fakes.Notifier{}
	engine := NewEngine(requests, fakes.NewMonitoringAlertRepo(), users, notifier, clock.Fixed{Time: now}, testLogger())

	summary, err := engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 0, summary.TenDay+summary.TwentyDay+summary.ThirtyDay)
	assert.Empty(t, notifier.Sent)
}

func TestSendIntervalAlerts_NotificationFailureStillLapses(t *testing.T) {
	ctx := context.Background()
	users, requester := testUsers()

	request := activeRequest(requester.ID, 30)
	requests := fakes.NewRequestRepo(request)
	alerts := fakes.NewMonitoringAlertRepo()
	notifier := &fakes.Notifier{Err: errors.New("broker unavailable")}
	engine := NewEngine(requests, alerts, users, notifier, clock.Fixed{Time: now}, testLogger())

	summary, err := engine.SendIntervalAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.RowFailures)
	assert.Equal(t, 1, summary.Lapsed)
	assert.Equal(t, models.RequestStatusLapsed, requests.Requests[request.ID].Status)
	assert.Len(t, alerts.Alerts, 1)
}
