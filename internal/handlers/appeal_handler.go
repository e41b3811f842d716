package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/stwalsh4118/taxappeal/internal/errors"
	"github.com/stwalsh4118/taxappeal/internal/lifecycle"
	"github.com/stwalsh4118/taxappeal/internal/middleware"
	"github.com/stwalsh4118/taxappeal/internal/models"
	"github.com/stwalsh4118/taxappeal/internal/repository"
	"github.com/stwalsh4118/taxappeal/internal/services"
)

// AppealHandler handles appeal lifecycle HTTP requests. Every route runs
// behind middleware.RequireUser.
type AppealHandler struct {
	service services.AppealService
}

// NewAppealHandler creates a new AppealHandler instance.
func NewAppealHandler(service services.AppealService) *AppealHandler {
	return &AppealHandler{service: service}
}

// CreateAppealRequest is the body of POST /appeals.
type CreateAppealRequest struct {
	ParcelID string `json:"parcelId" binding:"required,max=32"`
}

// DecisionRequest is a review body's ruling.
type DecisionRequest struct {
	NewAssessedValue float64 `json:"newAssessedValue" binding:"gte=0"`
	Terminal         bool    `json:"terminal"`
}

// TransitionRequest is the body of POST /appeals/:id/transitions.
type TransitionRequest struct {
	OccurredAt         *time.Time       `json:"occurredAt"`
	HearingDate        *time.Time       `json:"hearingDate"`
	Decision           *DecisionRequest `json:"decision"`
	To                 string           `json:"to" binding:"required"`
	ConfirmationNumber string           `json:"confirmationNumber" binding:"max=64"`
	AcceptDecision     bool             `json:"acceptDecision"`
}

// PaymentRequest is the body of POST /appeals/:id/payments.
type PaymentRequest struct {
	Kind string `json:"kind" binding:"required,oneof=letter success_fee"`
}

// LetterRequest is the body of PUT /appeals/:id/letter.
type LetterRequest struct {
	Text string `json:"text" binding:"required,max=200000"`
}

// AppealResponse wraps one appeal.
type AppealResponse struct {
	Appeal *models.Appeal `json:"appeal"`
}

// AppealListResponse wraps the caller's appeals.
type AppealListResponse struct {
	Appeals []models.Appeal `json:"appeals"`
	Count   int             `json:"count"`
}

// HistoryResponse wraps an appeal's stage history.
type HistoryResponse struct {
	Events []repository.StageEvent `json:"events"`
	Count  int                     `json:"count"`
}

// LetterResponse reports whether the letter was newly stored.
type LetterResponse struct {
	Appeal  *models.Appeal `json:"appeal"`
	Created bool           `json:"created"`
}

// SuccessFeeResponse carries the billed fee.
type SuccessFeeResponse struct {
	Appeal *models.Appeal `json:"appeal"`
	Fee    float64        `json:"fee"`
}

// Create handles POST /api/v1/appeals.
func (h *AppealHandler) Create(c *gin.Context) {
	var req CreateAppealRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.service.Create(c.Request.Context(), middleware.GetUserID(c), req.ParcelID)
	if err != nil {
		writeServiceError(c, err, "Failed to create appeal")
		return
	}

	c.JSON(http.StatusCreated, AppealResponse{Appeal: a})
}

// List handles GET /api/v1/appeals.
func (h *AppealHandler) List(c *gin.Context) {
	appeals, err := h.service.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeServiceError(c, err, "Failed to list appeals")
		return
	}
	if appeals == nil {
		appeals = []models.Appeal{}
	}

	c.JSON(http.StatusOK, AppealListResponse{Appeals: appeals, Count: len(appeals)})
}

// Get handles GET /api/v1/appeals/:id.
func (h *AppealHandler) Get(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeServiceError(c, err, "Failed to load appeal")
		return
	}

	c.JSON(http.StatusOK, AppealResponse{Appeal: a})
}

// Delete handles DELETE /api/v1/appeals/:id.
func (h *AppealHandler) Delete(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		writeServiceError(c, err, "Failed to delete appeal")
		return
	}

	c.Status(http.StatusNoContent)
}

// History handles GET /api/v1/appeals/:id/history.
func (h *AppealHandler) History(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	events, err := h.service.History(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeServiceError(c, err, "Failed to load appeal history")
		return
	}
	if events == nil {
		events = []repository.StageEvent{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Events: events, Count: len(events)})
}

// Transition handles POST /api/v1/appeals/:id/transitions.
func (h *AppealHandler) Transition(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if !bindJSON(c, &req) {
		return
	}

	ev := lifecycle.Event{
		To:                 models.Stage(req.To),
		OccurredAt:         req.OccurredAt,
		HearingDate:        req.HearingDate,
		ConfirmationNumber: req.ConfirmationNumber,
		AcceptDecision:     req.AcceptDecision,
	}
	if req.Decision != nil {
		ev.Decision = &lifecycle.Decision{
			NewAssessedValue: req.Decision.NewAssessedValue,
			Terminal:         req.Decision.Terminal,
		}
	}

	a, err := h.service.Transition(c.Request.Context(), middleware.GetUserID(c), id, ev)
	if err != nil {
		writeServiceError(c, err, "Failed to transition appeal")
		return
	}

	c.JSON(http.StatusOK, AppealResponse{Appeal: a})
}

// Eligibility handles GET /api/v1/appeals/:id/eligibility.
func (h *AppealHandler) Eligibility(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	e, err := h.service.Eligibility(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeServiceError(c, err, "Failed to check eligibility")
		return
	}

	c.JSON(http.StatusOK, e)
}

// RecordPayment handles POST /api/v1/appeals/:id/payments.
func (h *AppealHandler) RecordPayment(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}
	var req PaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.service.RecordPayment(c.Request.Context(), middleware.GetUserID(c), id, lifecycle.PaymentKind(req.Kind))
	if err != nil {
		writeServiceError(c, err, "Failed to record payment")
		return
	}

	c.JSON(http.StatusOK, AppealResponse{Appeal: a})
}

// LetterFacts handles GET /api/v1/appeals/:id/letter-facts.
func (h *AppealHandler) LetterFacts(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	facts, err := h.service.LetterFacts(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeServiceError(c, err, "Failed to build letter facts")
		return
	}

	c.JSON(http.StatusOK, facts)
}

// StoreLetter handles PUT /api/v1/appeals/:id/letter. The first letter is
// answered with 201; repeats return the stored letter with 200.
func (h *AppealHandler) StoreLetter(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}
	var req LetterRequest
	if !bindJSON(c, &req) {
		return
	}

	a, created, err := h.service.StoreLetter(c.Request.Context(), middleware.GetUserID(c), id, req.Text)
	if err != nil {
		writeServiceError(c, err, "Failed to store letter")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, LetterResponse{Appeal: a, Created: created})
}

// ComputeSuccessFee handles POST /api/v1/appeals/:id/success-fee.
func (h *AppealHandler) ComputeSuccessFee(c *gin.Context) {
	id, ok := appealID(c)
	if !ok {
		return
	}

	a, fee, err := h.service.ComputeSuccessFee(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeServiceError(c, err, "Failed to compute success fee")
		return
	}

	c.JSON(http.StatusOK, SuccessFeeResponse{Appeal: a, Fee: fee})
}

func appealID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid appeal id", map[string]interface{}{"id": c.Param("id")})
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service, lifecycle and model errors onto the API
// error envelope. Anything unrecognized is a 500 carrying fallback.
func writeServiceError(c *gin.Context, err error, fallback string) {
	var ge *lifecycle.GuardError
	switch {
	case errors.As(err, &ge):
		apierrors.GuardViolation(c, ge)

	case errors.Is(err, models.ErrInvalidParcelID),
		errors.Is(err, lifecycle.ErrUnknownStage),
		errors.Is(err, lifecycle.ErrMissingEventData),
		errors.Is(err, lifecycle.ErrEmptyLetter):
		apierrors.BadRequest(c, err.Error(), nil)

	case errors.Is(err, services.ErrMissingUser):
		apierrors.Unauthorized(c, err.Error())

	case errors.Is(err, services.ErrPropertyNotFound):
		apierrors.NotFound(c, "No property found for this parcel id")

	case errors.Is(err, services.ErrAppealNotFound):
		apierrors.NotFound(c, "Appeal not found")

	case errors.Is(err, services.ErrAppealExists):
		apierrors.Conflict(c, err.Error(), nil)

	case errors.Is(err, services.ErrStageConflict):
		apierrors.StageConflict(c, err.Error())

	case errors.Is(err, services.ErrNoAppealRecommended),
		errors.Is(err, services.ErrIncompleteProperty),
		errors.Is(err, services.ErrMissingRecommendation):
		apierrors.Unprocessable(c, err.Error(), nil)

	default:
		apierrors.InternalServerError(c, fallback, err)
	}
}
