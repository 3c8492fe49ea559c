package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/execution"
	"github.com/Ramsey-B/laurel/pkg/models"
)

// ExecutionHandler handles execution sub-state API requests
type ExecutionHandler struct {
	tracker *execution.Tracker
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(tracker *execution.Tracker) *ExecutionHandler {
	return &ExecutionHandler{tracker: tracker}
}

// ProposalSentRequest is the request body for recording a sent proposal
type ProposalSentRequest struct {
	Recipient string `json:"recipient" validate:"required,email"`
}

// FollowUpRequest is the request body for recording a follow-up
type FollowUpRequest struct {
	Sequence int    `json:"sequence" validate:"required,min=1,max=3"`
	Note     string `json:"note"`
}

// ClientResponseRequest is the request body for recording a client response
type ClientResponseRequest struct {
	Response string `json:"response" validate:"required,oneof=accepted rejected"`
	Note     string `json:"note"`
}

// CountersignRequest is the request body for recording a countersigned document
type CountersignRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
}

// NoteRequest is the request body for appending an execution note
type NoteRequest struct {
	Note string `json:"note" validate:"required"`
}

// RegisterRoutes registers the execution routes
func (h *ExecutionHandler) RegisterRoutes(g *echo.Group) {
	exec := g.Group("/requests/:id/execution")
	exec.GET("", h.GetTracking)
	exec.POST("/proposal/prepared", h.ProposalPrepared)
	exec.POST("/proposal/sent", h.ProposalSent)
	exec.POST("/follow-up", h.FollowUp)
	exec.POST("/client-response", h.ClientResponse)
	exec.POST("/engagement-letter/prepared", h.EngagementLetterPrepared)
	exec.POST("/engagement-letter/sent", h.EngagementLetterSent)
	exec.POST("/signed", h.Signed)
	exec.POST("/countersigned", h.Countersigned)
	exec.POST("/notes", h.AppendNote)
	exec.GET("/notes", h.ListNotes)
}

// GetTracking handles GET /requests/:id/execution
func (h *ExecutionHandler) GetTracking(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	tracking, err := h.tracker.GetTracking(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, tracking)
}

// ProposalPrepared handles POST /requests/:id/execution/proposal/prepared
func (h *ExecutionHandler) ProposalPrepared(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tracker.RecordProposalPrepared(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ProposalSent handles POST /requests/:id/execution/proposal/sent
func (h *ExecutionHandler) ProposalSent(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req ProposalSentRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.tracker.RecordProposalSent(ctx, id, req.Recipient); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// FollowUp handles POST /requests/:id/execution/follow-up
func (h *ExecutionHandler) FollowUp(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req FollowUpRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.tracker.RecordFollowUp(ctx, id, req.Sequence, req.Note); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ClientResponse handles POST /requests/:id/execution/client-response
func (h *ExecutionHandler) ClientResponse(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req ClientResponseRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	response := models.ClientResponseType(req.Response)
	if err := h.tracker.RecordClientResponse(ctx, id, response, req.Note); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// EngagementLetterPrepared handles POST /requests/:id/execution/engagement-letter/prepared
func (h *ExecutionHandler) EngagementLetterPrepared(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tracker.RecordEngagementLetterPrepared(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// EngagementLetterSent handles POST /requests/:id/execution/engagement-letter/sent
func (h *ExecutionHandler) EngagementLetterSent(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tracker.RecordEngagementLetterSent(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Signed handles POST /requests/:id/execution/signed
func (h *ExecutionHandler) Signed(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tracker.RecordSignedEngagement(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Countersigned handles POST /requests/:id/execution/countersigned
func (h *ExecutionHandler) Countersigned(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req CountersignRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.tracker.RecordCountersigned(ctx, id, req.DocumentType); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// AppendNote handles POST /requests/:id/execution/notes
func (h *ExecutionHandler) AppendNote(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req NoteRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.tracker.AppendNote(ctx, id, req.Note); err != nil {
		return err
	}

	return CreatedResponse(c, map[string]string{"status": "created"})
}

// ListNotes handles GET /requests/:id/execution/notes
func (h *ExecutionHandler) ListNotes(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	notes, err := h.tracker.ListNotes(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, notes)
}
