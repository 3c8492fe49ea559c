package staleness

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/funnel"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories/fakes"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type fixture struct {
	detector  *Detector
	prospects *fakes.ProspectRepo
	requests  *fakes.RequestRepo
	events    *fakes.FunnelEventRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	prospects := fakes.NewProspectRepo()
	requests := fakes.NewRequestRepo()
	events := fakes.NewFunnelEventRepo()
	emitter := funnel.NewEventEmitter(events, nil, clock.Fixed{Time: now}, testLogger())
	detector := NewDetector(prospects, requests, emitter, clock.Fixed{Time: now}, DefaultThresholds(), testLogger())

	return &fixture{
		detector:  detector,
		prospects: prospects,
		requests:  requests,
		events:    events,
	}
}

func (f *fixture) addProspect(t *testing.T, quietDays int) *models.Prospect {
	t.Helper()

	at := now.AddDate(0, 0, -quietDays)
	p := &models.Prospect{
		ID:             uuid.New(),
		Name:           "Acme Holdings",
		OwnerID:        uuid.New(),
		Status:         models.ProspectStatusActive,
		LastActivityAt: at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	f.prospects.Prospects[p.ID] = p
	return p
}

func (f *fixture) addProposal(t *testing.T, quietDays int, status models.RequestStatus) *models.Request {
	t.Helper()

	at := now.AddDate(0, 0, -quietDays)
	origin := uuid.New()
	r := &models.Request{
		ID:               uuid.New(),
		RequesterID:      uuid.New(),
		OriginProspectID: &origin,
		ClientName:       "Acme Holdings",
		Status:           status,
		Stage:            models.StageProposal,
		LastActivityAt:   at,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
	f.requests.Requests[r.ID] = r
	return r
}

func TestDetectionBucketsAreDisjoint(t *testing.T) {
	f := newFixture(t)
	fresh := f.addProspect(t, 5)
	followup := f.addProspect(t, 20)
	stale := f.addProspect(t, 35)

	staleOut, err := f.detector.DetectStaleProspects(context.Background())
	require.NoError(t, err)
	require.Len(t, staleOut, 1)
	assert.Equal(t, stale.ID, staleOut[0].ID)

	followupOut, err := f.detector.DetectProspectsNeedingFollowup(context.Background())
	require.NoError(t, err)
	require.Len(t, followupOut, 1)
	assert.Equal(t, followup.ID, followupOut[0].ID)

	// The fresh prospect appears in neither bucket.
	for _, p := range append(staleOut, followupOut...) {
		assert.NotEqual(t, fresh.ID, p.ID)
	}
}

func TestFollowupBucketExcludesFlaggedProspects(t *testing.T) {
	f := newFixture(t)

	// Flagged 20 days ago: the flag write bumped updated_at, which
	// would land the prospect in the follow-up window if the flag
	// were not checked.
	flagged := f.addProspect(t, 35)
	flaggedAt := now.AddDate(0, 0, -20)
	f.prospects.Prospects[flagged.ID].StaleDetectedAt = &flaggedAt
	f.prospects.Prospects[flagged.ID].UpdatedAt = flaggedAt

	out, err := f.detector.DetectProspectsNeedingFollowup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMarkProspectStale_OncePerQuietPeriod(t *testing.T) {
	f := newFixture(t)
	p := f.addProspect(t, 35)

	won, err := f.detector.MarkProspectStale(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, won)
	require.NotNil(t, f.prospects.Prospects[p.ID].StaleDetectedAt)

	events, err := f.events.ListByProspect(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.FunnelStageStaleDetected, events[0].ToStage)
	assert.Equal(t, funnel.SystemActor, events[0].Actor)

	// Already flagged: no re-flag, no second funnel event.
	won, err = f.detector.MarkProspectStale(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, won)
	events, _ = f.events.ListByProspect(context.Background(), p.ID)
	assert.Len(t, events, 1)
}

func TestUpdateProspectActivity_ClearsStaleFlag(t *testing.T) {
	f := newFixture(t)
	p := f.addProspect(t, 35)

	_, err := f.detector.MarkProspectStale(context.Background(), p.ID)
	require.NoError(t, err)

	require.NoError(t, f.detector.UpdateProspectActivity(context.Background(), p.ID))
	assert.Nil(t, f.prospects.Prospects[p.ID].StaleDetectedAt)
	assert.Equal(t, now, f.prospects.Prospects[p.ID].LastActivityAt)

	// Activity reset the quiet period, so it can be flagged again later.
	won, err := f.prospects.MarkStale(context.Background(), p.ID, now.AddDate(0, 0, 40))
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMarkProspectLost(t *testing.T) {
	f := newFixture(t)
	p := f.addProspect(t, 10)

	err := f.detector.MarkProspectLost(context.Background(), p.ID, "chose a competitor", "proposal")
	require.NoError(t, err)

	stored := f.prospects.Prospects[p.ID]
	assert.Equal(t, models.ProspectStatusInactive, stored.Status)
	assert.Equal(t, "chose a competitor", *stored.LostReason)
	assert.Equal(t, "proposal", *stored.LostStage)

	events, _ := f.events.ListByProspect(context.Background(), p.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.FunnelStageLost, events[0].ToStage)
	assert.Equal(t, "chose a competitor", *events[0].Notes)
}

func TestMarkProspectLost_AlreadyInactive(t *testing.T) {
	f := newFixture(t)
	p := f.addProspect(t, 10)

	require.NoError(t, f.detector.MarkProspectLost(context.Background(), p.ID, "went quiet", ""))

	// Terminal: a second mark is a conflict and adds no funnel event.
	err := f.detector.MarkProspectLost(context.Background(), p.ID, "still quiet", "")
	require.Error(t, err)
	assert.Equal(t, 409, httperror.GetStatusCode(err))

	events, _ := f.events.ListByProspect(context.Background(), p.ID)
	assert.Len(t, events, 1)
}

func TestMarkProspectLost_RequiresReason(t *testing.T) {
	f := newFixture(t)
	p := f.addProspect(t, 10)

	err := f.detector.MarkProspectLost(context.Background(), p.ID, "", "proposal")
	require.Error(t, err)
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestDetectStaleProposals_FiltersTerminalAndNonProspect(t *testing.T) {
	f := newFixture(t)
	quiet := f.addProposal(t, 40, models.RequestStatusSubmitted)
	f.addProposal(t, 40, models.RequestStatusRejected) // terminal, excluded
	f.addProposal(t, 40, models.RequestStatusActive)   // resolved, excluded
	f.addProposal(t, 5, models.RequestStatusSubmitted) // recent, excluded

	direct := f.addProposal(t, 40, models.RequestStatusSubmitted)
	f.requests.Requests[direct.ID].OriginProspectID = nil // not prospect-originated

	out, err := f.detector.DetectStaleProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, quiet.ID, out[0].ID)
}

func TestRunDetectionJob(t *testing.T) {
	f := newFixture(t)
	f.addProspect(t, 35)
	f.addProspect(t, 20)
	f.addProposal(t, 40, models.RequestStatusSubmitted)

	summary, err := f.detector.RunDetectionJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProspectsFlagged)
	assert.Equal(t, 1, summary.FollowupNeeded)
	assert.Equal(t, 1, summary.ProposalsFlagged)
	assert.Equal(t, 0, summary.RowFailures)

	// Everything is flagged now; a second run flags nothing new.
	summary, err = f.detector.RunDetectionJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProspectsFlagged)
	assert.Equal(t, 0, summary.ProposalsFlagged)
}
