package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/execution"
	"github.com/Ramsey-B/laurel/pkg/funnel"
	"github.com/Ramsey-B/laurel/pkg/middleware"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories/fakes"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type apiHelper struct {
	t        *testing.T
	e        *echo.Echo
	requests *fakes.RequestRepo
	tracking *fakes.ExecutionTrackingRepo
}

type noRenewals struct{}

func (noRenewals) CreateTracking(ctx context.Context, requestID uuid.UUID, engagementCode string, startDate time.Time) (*models.EngagementRenewal, error) {
	return &models.EngagementRenewal{RequestID: requestID, EngagementCode: engagementCode}, nil
}

func newAPIHelper(t *testing.T) *apiHelper {
	logger := testLogger()

	requests := fakes.NewRequestRepo()
	tracking := fakes.NewExecutionTrackingRepo()
	emitter := funnel.NewEventEmitter(fakes.NewFunnelEventRepo(), nil, clock.Fixed{Time: now}, logger)
	tracker := execution.NewTracker(
		requests, tracking, fakes.NewUserRepo(), noRenewals{},
		&fakes.Notifier{}, emitter, clock.Fixed{Time: now}, logger,
	)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewExecutionHandler(tracker).RegisterRoutes(e.Group("/api/v1"))

	return &apiHelper{t: t, e: e, requests: requests, tracking: tracking}
}

func (h *apiHelper) addRequest() uuid.UUID {
	r := &models.Request{
		ID:          uuid.New(),
		RequesterID: uuid.New(),
		ClientName:  "Acme Holdings",
		Status:      models.RequestStatusApproved,
		Stage:       models.StageProposal,
	}
	h.requests.Requests[r.ID] = r
	return r.ID
}

func (h *apiHelper) do(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderActor, "rory@firm.test")

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestExecutionAPI_ProposalSent(t *testing.T) {
	h := newAPIHelper(t)
	id := h.addRequest()

	rec := h.do(http.MethodPost, "/api/v1/requests/"+id.String()+"/execution/proposal/sent",
		map[string]any{"recipient": "client@acme.test"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "client@acme.test", *h.tracking.Tracking[id].ProposalRecipient)
}

func TestExecutionAPI_ProposalSent_InvalidRecipient(t *testing.T) {
	h := newAPIHelper(t)
	id := h.addRequest()

	rec := h.do(http.MethodPost, "/api/v1/requests/"+id.String()+"/execution/proposal/sent",
		map[string]any{"recipient": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "Recipient")
}

func TestExecutionAPI_ClientResponse_RejectsUnknownValue(t *testing.T) {
	h := newAPIHelper(t)
	id := h.addRequest()

	rec := h.do(http.MethodPost, "/api/v1/requests/"+id.String()+"/execution/client-response",
		map[string]any{"response": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutionAPI_ClientResponse_Accepted(t *testing.T) {
	h := newAPIHelper(t)
	id := h.addRequest()

	rec := h.do(http.MethodPost, "/api/v1/requests/"+id.String()+"/execution/client-response",
		map[string]any{"response": "accepted"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, models.RequestStatusActive, h.requests.Requests[id].Status)
}

func TestExecutionAPI_BadRequestID(t *testing.T) {
	h := newAPIHelper(t)

	rec := h.do(http.MethodGet, "/api/v1/requests/not-a-uuid/execution", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutionAPI_UnknownRequest(t *testing.T) {
	h := newAPIHelper(t)

	rec := h.do(http.MethodGet, "/api/v1/requests/"+uuid.NewString()+"/execution", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecutionAPI_NoteActorFromHeader(t *testing.T) {
	h := newAPIHelper(t)
	id := h.addRequest()

	rec := h.do(http.MethodPost, "/api/v1/requests/"+id.String()+"/execution/notes",
		map[string]any{"note": "called the client"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, h.tracking.Notes, 1)
	assert.Equal(t, "rory@firm.test", h.tracking.Notes[0].Actor)
}
