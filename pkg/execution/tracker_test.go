package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/appctx"
	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/funnel"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories/fakes"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type renewalRecorder struct {
	created []string
	err     error
}

func (r *renewalRecorder) CreateTracking(ctx context.Context, requestID uuid.UUID, engagementCode string, startDate time.Time) (*models.EngagementRenewal, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.created = append(r.created, engagementCode)
	return &models.EngagementRenewal{
		ID:             uuid.New(),
		RequestID:      requestID,
		EngagementCode: engagementCode,
		StartDate:      startDate,
		DueDate:        startDate.AddDate(3, 0, 0),
		Status:         models.RenewalStatusActive,
	}, nil
}

type fixture struct {
	tracker   *Tracker
	requests  *fakes.RequestRepo
	tracking  *fakes.ExecutionTrackingRepo
	renewals  *renewalRecorder
	notifier  *fakes.Notifier
	events    *fakes.FunnelEventRepo
	requester *models.User
	partner   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	requester := &models.User{ID: uuid.New(), Name: "Rory", Email: "rory@firm.test", Role: models.RoleRequester}
	partner := &models.User{ID: uuid.New(), Name: "Pat", Email: "pat@firm.test", Role: models.RolePartner}
	users := fakes.NewUserRepo(
		requester,
		partner,
		&models.User{ID: uuid.New(), Name: "Ada", Email: "ada@firm.test", Role: models.RoleAdmin},
	)

	requests := fakes.NewRequestRepo()
	tracking := fakes.NewExecutionTrackingRepo()
	renewals := &renewalRecorder{}
	notifier := &fakes.Notifier{}
	events := fakes.NewFunnelEventRepo()
	emitter := funnel.NewEventEmitter(events, nil, clock.Fixed{Time: now}, testLogger())

	tracker := NewTracker(requests, tracking, users, renewals, notifier, emitter, clock.Fixed{Time: now}, testLogger())

	return &fixture{
		tracker:   tracker,
		requests:  requests,
		tracking:  tracking,
		renewals:  renewals,
		notifier:  notifier,
		events:    events,
		requester: requester,
		partner:   partner,
	}
}

func (f *fixture) addRequest(t *testing.T, status models.RequestStatus) *models.Request {
	t.Helper()

	code := "ENG-1001"
	r := &models.Request{
		ID:                 uuid.New(),
		RequesterID:        f.requester.ID,
		ApprovingPartnerID: &f.partner.ID,
		EngagementCode:     &code,
		ClientName:         "Acme Holdings",
		Status:             status,
		Stage:              models.StageProposal,
		LastActivityAt:     now.AddDate(0, 0, -1),
		CreatedAt:          now.AddDate(0, 0, -10),
		UpdatedAt:          now.AddDate(0, 0, -1),
	}
	f.requests.Requests[r.ID] = r
	return r
}

func TestGetTracking_CreatesOnFirstAccess(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	tracking, err := f.tracker.GetTracking(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, tracking.RequestID)
	assert.Nil(t, tracking.ProposalPreparedAt)

	// Unknown request: no phantom tracking record.
	_, err = f.tracker.GetTracking(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, 404, httperror.GetStatusCode(err))
}

func TestRecordProposalSent(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	err := f.tracker.RecordProposalSent(context.Background(), request.ID, "client@acme.test")
	require.NoError(t, err)

	tracking := f.tracking.Tracking[request.ID]
	assert.Equal(t, now, *tracking.ProposalSentAt)
	assert.Equal(t, "client@acme.test", *tracking.ProposalRecipient)

	events, _ := f.events.ListByRequest(context.Background(), request.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.FunnelStageProposalSent, events[0].ToStage)

	// No disclaimer on this request, so no validity notice goes out.
	assert.Empty(t, f.notifier.Sent)
}

func TestRecordProposalSent_DisclaimerValidityNotice(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)
	f.requests.Requests[request.ID].DisclaimerRequired = true

	err := f.tracker.RecordProposalSent(context.Background(), request.ID, "client@acme.test")
	require.NoError(t, err)

	require.Len(t, f.notifier.Sent, 1)
	assert.Equal(t, "proposal_validity", f.notifier.Sent[0].Type)
	assert.Equal(t, []string{"client@acme.test"}, f.notifier.Sent[0].Recipients)
}

func TestRecordProposalSent_RequiresRecipient(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	err := f.tracker.RecordProposalSent(context.Background(), request.ID, "")
	require.Error(t, err)
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestRecordFollowUp(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	require.NoError(t, f.tracker.RecordFollowUp(context.Background(), request.ID, 2, "left a voicemail"))

	tracking := f.tracking.Tracking[request.ID]
	assert.Nil(t, tracking.FollowUp1At)
	assert.Equal(t, now, *tracking.FollowUp2At)

	notes, err := f.tracker.ListNotes(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "left a voicemail", notes[0].Note)

	err = f.tracker.RecordFollowUp(context.Background(), request.ID, 4, "")
	require.Error(t, err)
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestRecordClientResponse_AcceptedActivatesAndStartsRenewal(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	err := f.tracker.RecordClientResponse(context.Background(), request.ID, models.ClientResponseAccepted, "")
	require.NoError(t, err)

	stored := f.requests.Requests[request.ID]
	assert.Equal(t, models.RequestStatusActive, stored.Status)
	assert.Equal(t, now, *stored.ExecutionDate)
	assert.Equal(t, 0, *stored.MonitoringDays)

	assert.Equal(t, []string{"ENG-1001"}, f.renewals.created)

	tracking := f.tracking.Tracking[request.ID]
	assert.Equal(t, models.ClientResponseAccepted, *tracking.ClientResponseType)

	accepted := f.notifier.ByType("client_accepted")
	require.Len(t, accepted, 1)
	assert.ElementsMatch(t, []string{"rory@firm.test", "ada@firm.test", "pat@firm.test"}, accepted[0].Recipients)

	events, _ := f.events.ListByRequest(context.Background(), request.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.FunnelStageClientAccepted, events[0].ToStage)
}

func TestRecordClientResponse_AcceptedWithoutEngagementCode(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)
	f.requests.Requests[request.ID].EngagementCode = nil

	err := f.tracker.RecordClientResponse(context.Background(), request.ID, models.ClientResponseAccepted, "")
	require.NoError(t, err)

	// Activation proceeds; the renewal cycle just isn't started.
	assert.Equal(t, models.RequestStatusActive, f.requests.Requests[request.ID].Status)
	assert.Empty(t, f.renewals.created)
}

func TestRecordClientResponse_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)
	f.notifier.Err = errors.New("broker unavailable")

	err := f.tracker.RecordClientResponse(context.Background(), request.ID, models.ClientResponseAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusActive, f.requests.Requests[request.ID].Status)
}

func TestRecordClientResponse_RejectedIsPermanent(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	err := f.tracker.RecordClientResponse(context.Background(), request.ID, models.ClientResponseRejected, "budget cut")
	require.NoError(t, err)

	stored := f.requests.Requests[request.ID]
	assert.Equal(t, models.RequestStatusRejected, stored.Status)
	assert.Empty(t, f.renewals.created)

	rejected := f.notifier.ByType("client_rejected")
	require.Len(t, rejected, 1)

	// A rejected request cannot take another response.
	err = f.tracker.RecordClientResponse(context.Background(), request.ID, models.ClientResponseAccepted, "")
	require.Error(t, err)
	assert.Equal(t, 409, httperror.GetStatusCode(err))
}

func TestRecordClientResponse_RejectsUnknownResponse(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	err := f.tracker.RecordClientResponse(context.Background(), request.ID, models.ClientResponseType("maybe"), "")
	require.Error(t, err)
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestRecordSignedEngagement(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusActive)

	require.NoError(t, f.tracker.RecordSignedEngagement(context.Background(), request.ID))

	tracking := f.tracking.Tracking[request.ID]
	assert.Equal(t, now, *tracking.SignedAt)
	assert.True(t, tracking.ComplianceFormsCompleted)
}

func TestRecordCountersigned(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusActive)

	require.NoError(t, f.tracker.RecordCountersigned(context.Background(), request.ID, "engagement_letter"))

	tracking := f.tracking.Tracking[request.ID]
	assert.Equal(t, "engagement_letter", *tracking.CountersignedDocType)

	err := f.tracker.RecordCountersigned(context.Background(), request.ID, "")
	require.Error(t, err)
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestAppendNote_AttributesActor(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusActive)

	ctx := appctx.SetActor(context.Background(), "rory@firm.test")
	require.NoError(t, f.tracker.AppendNote(ctx, request.ID, "client asked for revised scope"))

	// Without an actor the note is attributed to the system.
	require.NoError(t, f.tracker.AppendNote(context.Background(), request.ID, "auto-generated"))

	notes, err := f.tracker.ListNotes(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	byNote := map[string]string{}
	for _, n := range notes {
		byNote[n.Note] = n.Actor
	}
	assert.Equal(t, "rory@firm.test", byNote["client asked for revised scope"])
	assert.Equal(t, funnel.SystemActor, byNote["auto-generated"])
}

func TestFunnelTrailTracksStageProgression(t *testing.T) {
	f := newFixture(t)
	request := f.addRequest(t, models.RequestStatusApproved)

	require.NoError(t, f.tracker.RecordProposalPrepared(context.Background(), request.ID))
	require.NoError(t, f.tracker.RecordProposalSent(context.Background(), request.ID, "client@acme.test"))

	events, _ := f.events.ListByRequest(context.Background(), request.ID)
	require.Len(t, events, 2)

	assert.Nil(t, events[0].FromStage)
	require.NotNil(t, events[1].FromStage)
	assert.Equal(t, models.FunnelStageProposalPrepared, *events[1].FromStage)
	require.NotNil(t, events[1].DaysInPrevStage)
	assert.Equal(t, 0, *events[1].DaysInPrevStage)
}
