package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type cardServiceMock struct {
	verifyCalls int
	pdfActor    models.Actor
}

func (m *cardServiceMock) Mine(_ context.Context, _ models.Actor, _ string) (*models.CardView, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "registration card not found")
}

func (m *cardServiceMock) Verify(_ context.Context, token string) (*models.CardVerification, error) {
	m.verifyCalls++
	if token == "expired" {
		return &models.CardVerification{Valid: false}, nil
	}
	return &models.CardVerification{Valid: true, CardNumber: "REG-2024-0001", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *cardServiceMock) RenderPDF(_ context.Context, actor models.Actor, cardID string) ([]byte, string, error) {
	m.pdfActor = actor
	if actor.Role == models.RoleStudent && actor.UserID != "stu-1" {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "card belongs to another student")
	}
	return []byte("%PDF-1.3"), cardID + ".pdf", nil
}

func TestCardHandlerVerifyRequiresToken(t *testing.T) {
	svc := &cardServiceMock{}
	h := NewCardHandler(svc)

	c, w := newContext(http.MethodGet, "/registration-cards/verify", "", nil)
	h.Verify(c)

	requireStatus(t, w, http.StatusBadRequest)
	assert.Zero(t, svc.verifyCalls)
}

func TestCardHandlerVerify(t *testing.T) {
	svc := &cardServiceMock{}
	h := NewCardHandler(svc)

	c, w := newContext(http.MethodGet, "/registration-cards/verify?token=good", "", nil)
	h.Verify(c)
	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"valid":true`)

	c, w = newContext(http.MethodGet, "/registration-cards/verify?token=expired", "", nil)
	h.Verify(c)
	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"valid":false`)
}

func TestCardHandlerMineNotFound(t *testing.T) {
	h := NewCardHandler(&cardServiceMock{})

	c, w := newContext(http.MethodGet, "/registration-cards/me", "", studentClaims)
	h.Mine(c)

	requireStatus(t, w, http.StatusNotFound)
}

func TestCardHandlerPDF(t *testing.T) {
	svc := &cardServiceMock{}
	h := NewCardHandler(svc)

	c, w := newContext(http.MethodGet, "/registration-cards/card-1/pdf", "", studentClaims, idParam("card-1"))
	h.PDF(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "card-1.pdf")
	assert.Equal(t, "stu-1", svc.pdfActor.UserID)

	other := &models.JWTClaims{UserID: "stu-2", Role: models.RoleStudent}
	c, w = newContext(http.MethodGet, "/registration-cards/card-1/pdf", "", other, idParam("card-1"))
	h.PDF(c)
	requireStatus(t, w, http.StatusForbidden)
}
