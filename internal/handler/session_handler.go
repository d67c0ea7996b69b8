package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attend-api/internal/clock"
	"github.com/noah-isme/qr-attend-api/internal/dto"
	"github.com/noah-isme/qr-attend-api/internal/service"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
	"github.com/noah-isme/qr-attend-api/pkg/response"
)

// SessionHandler wires HTTP endpoints to the session and aggregate services.
type SessionHandler struct {
	sessions   *service.SessionService
	aggregates *service.AggregateService
	clock      clock.Clock
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(sessions *service.SessionService, aggregates *service.AggregateService, clk clock.Clock) *SessionHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &SessionHandler{sessions: sessions, aggregates: aggregates, clock: clk}
}

// Create godoc
// @Summary Open attendance session
// @Description Open a new attendance session for a class
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session parameters"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions [post]
// @Security BearerAuth
func (h *SessionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewSessionResponse(session, h.clock.Now()))
}

// Get godoc
// @Summary Get session
// @Description Fetch a session with its effective state
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
// @Security BearerAuth
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSessionResponse(session, h.clock.Now()), nil)
}

// List godoc
// @Summary List sessions
// @Description List the caller's sessions with optional filters
// @Tags Sessions
// @Produce json
// @Param class_id query string false "Class filter"
// @Param state query string false "State filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
// @Security BearerAuth
func (h *SessionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	sessions, pagination, err := h.sessions.List(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	now := h.clock.Now()
	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, dto.NewSessionResponse(&sessions[i], now))
	}
	response.JSON(c, http.StatusOK, out, pagination)
}

// End godoc
// @Summary End session
// @Description Transition an active session to ENDED
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/end [post]
// @Security BearerAuth
func (h *SessionHandler) End(c *gin.Context) {
	session, err := h.sessions.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSessionResponse(session, h.clock.Now()), nil)
}

// Aggregate godoc
// @Summary Session aggregate
// @Description Return attendance counters for a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param recompute query bool false "Recompute from records instead of the cached fold"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/aggregate [get]
// @Security BearerAuth
func (h *SessionHandler) Aggregate(c *gin.Context) {
	id := c.Param("id")
	var err error
	var agg interface{}
	if c.Query("recompute") == "true" {
		agg, err = h.aggregates.Recompute(c.Request.Context(), id)
	} else {
		agg, err = h.aggregates.Get(c.Request.Context(), id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, agg, nil)
}
