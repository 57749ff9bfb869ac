package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type cardService interface {
	Mine(ctx context.Context, actor models.Actor, semesterID string) (*models.CardView, error)
	Verify(ctx context.Context, token string) (*models.CardVerification, error)
	RenderPDF(ctx context.Context, actor models.Actor, cardID string) ([]byte, string, error)
}

// CardHandler exposes registration cards.
type CardHandler struct {
	service cardService
}

// NewCardHandler builds a new handler.
func NewCardHandler(svc cardService) *CardHandler {
	return &CardHandler{service: svc}
}

// Mine godoc
// @Summary Get the caller's registration card
// @Tags Registration Cards
// @Produce json
// @Param semester_id query string false "Semester ID (defaults to active)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registration-cards/me [get]
func (h *CardHandler) Mine(c *gin.Context) {
	view, err := h.service.Mine(c.Request.Context(), actorFromContext(c), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Verify godoc
// @Summary Verify a signed card token
// @Tags Registration Cards
// @Produce json
// @Param token query string true "Verification token printed on the card"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registration-cards/verify [get]
func (h *CardHandler) Verify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, bindError(errors.New("token is required"), "token is required"))
		return
	}
	result, err := h.service.Verify(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// PDF godoc
// @Summary Download a registration card as PDF
// @Tags Registration Cards
// @Produce application/pdf
// @Param id path string true "Card ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /registration-cards/{id}/pdf [get]
func (h *CardHandler) PDF(c *gin.Context) {
	body, filename, err := h.service.RenderPDF(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}
