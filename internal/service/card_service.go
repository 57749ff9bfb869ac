package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/workflow"
	"github.com/noah-isme/registrar-api/pkg/database"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/export"
	"github.com/noah-isme/registrar-api/pkg/signing"
)

type cardRepository interface {
	FindByUserSemester(ctx context.Context, exec sqlx.ExtContext, userID, semesterID string) (*models.RegistrationCard, error)
	FindByID(ctx context.Context, id string) (*models.RegistrationCard, error)
	FindByNumber(ctx context.Context, number string) (*models.RegistrationCard, error)
	NextSequence(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int64, error)
	Create(ctx context.Context, exec sqlx.ExtContext, card *models.RegistrationCard) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CardService issues registration cards and produces their printable and verifiable forms.
type CardService struct {
	cards     cardRepository
	semesters semesterLookup
	users     userReader
	courses   approvedCourseLookup
	signer    *signing.Signer
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewCardService constructs the card service.
func NewCardService(cards cardRepository, semesters semesterLookup, users userReader, courses approvedCourseLookup, signer *signing.Signer, logger *zap.Logger) *CardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardService{
		cards:     cards,
		semesters: semesters,
		users:     users,
		courses:   courses,
		signer:    signer,
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// Generate returns the card number for (userID, semesterID), allocating the next number in
// the semester's sequence when no card exists yet. exec must be the caller's transaction.
func (s *CardService) Generate(ctx context.Context, exec sqlx.ExtContext, userID, semesterID string) (string, error) {
	card, _, err := s.issue(ctx, exec, userID, semesterID, nil)
	if err != nil {
		return "", err
	}
	return card.CardNumber, nil
}

// Issue returns the registration's card, creating it on first approval. created reports
// whether a new card was written.
func (s *CardService) Issue(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) (*models.RegistrationCard, bool, error) {
	return s.issue(ctx, exec, reg.UserID, reg.SemesterID, &reg.ID)
}

func (s *CardService) issue(ctx context.Context, exec sqlx.ExtContext, userID, semesterID string, registrationID *string) (*models.RegistrationCard, bool, error) {
	existing, err := s.cards.FindByUserSemester(ctx, exec, userID, semesterID)
	if err == nil {
		// A NULL registration_id is left behind when the owning registration was withdrawn.
		if registrationID != nil && existing.RegistrationID != nil && *existing.RegistrationID != *registrationID {
			return nil, false, appErrors.Clone(appErrors.ErrInconsistentState, "registration card belongs to another registration")
		}
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration card")
	}

	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		return nil, false, notFoundOrInternal(err, "semester")
	}
	seq, err := s.cards.NextSequence(ctx, exec, semesterID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate card number")
	}
	number, err := workflow.FormatCardNumber(semester.Code, seq)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status, "semester code cannot form a card number")
	}

	card := &models.RegistrationCard{
		ID:             uuid.NewString(),
		RegistrationID: registrationID,
		UserID:         userID,
		SemesterID:     semesterID,
		CardNumber:     number,
		IssuedDate:     time.Now().UTC(),
	}
	if err := s.cards.Create(ctx, exec, card); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, false, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "registration card already issued")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store registration card")
	}
	return card, true, nil
}

// Lookup returns the card for (userID, semesterID) or nil when none was issued.
func (s *CardService) Lookup(ctx context.Context, userID, semesterID string) (*models.RegistrationCard, error) {
	card, err := s.cards.FindByUserSemester(ctx, nil, userID, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration card")
	}
	return card, nil
}

// Mine returns the caller's card for a semester (active when empty) with a fresh verify token.
func (s *CardService) Mine(ctx context.Context, actor models.Actor, semesterID string) (*models.CardView, error) {
	semester, err := resolveSemester(ctx, s.semesters, semesterID)
	if err != nil {
		return nil, err
	}
	card, err := s.Lookup(ctx, actor.UserID, semester.ID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "registration card not found")
	}
	token, expiresAt, err := s.verifyToken(card)
	if err != nil {
		return nil, err
	}
	return &models.CardView{RegistrationCard: *card, VerifyToken: token, ExpiresAt: expiresAt}, nil
}

// Verify checks a token printed on a card. A well-formed but expired or mismatching token
// yields Valid=false rather than an error.
func (s *CardService) Verify(ctx context.Context, token string) (*models.CardVerification, error) {
	claims, err := s.signer.Parse(strings.TrimSpace(token))
	switch {
	case errors.Is(err, signing.ErrExpired):
		return &models.CardVerification{CardNumber: claims.Reference, ExpiresAt: claims.ExpiresAt, Reason: "token expired"}, nil
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid card token")
	}
	if _, _, err := workflow.ParseCardNumber(claims.Reference); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid card token")
	}

	card, err := s.cards.FindByNumber(ctx, claims.Reference)
	if err != nil {
		return nil, notFoundOrInternal(err, "registration card")
	}
	result := &models.CardVerification{CardNumber: card.CardNumber, ExpiresAt: claims.ExpiresAt}
	if claims.Subject != cardSubject(card) {
		result.Reason = "token does not match card holder"
		return result, nil
	}
	result.Valid = true
	result.UserID = card.UserID
	result.SemesterID = card.SemesterID
	result.IssuedDate = card.IssuedDate
	return result, nil
}

// RenderPDF produces the printable card. Students may only print their own card.
func (s *CardService) RenderPDF(ctx context.Context, actor models.Actor, cardID string) ([]byte, string, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, "", notFoundOrInternal(err, "registration card")
	}
	if card.UserID != actor.UserID && !actor.Role.IsApprover() {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "card belongs to another user")
	}

	holder, err := s.users.FindByID(ctx, card.UserID)
	if err != nil {
		return nil, "", notFoundOrInternal(err, "user")
	}
	semester, err := s.semesters.FindByID(ctx, card.SemesterID)
	if err != nil {
		return nil, "", notFoundOrInternal(err, "semester")
	}
	courses, err := s.courses.ListApprovedCourseIDs(ctx, card.UserID, card.SemesterID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved courses")
	}
	token, _, err := s.verifyToken(card)
	if err != nil {
		return nil, "", err
	}

	body, err := s.pdf.RenderCard(export.Card{
		CardNumber:  card.CardNumber,
		HolderName:  holder.FullName,
		HolderEmail: holder.Email,
		Semester:    semester.Name,
		IssuedDate:  card.IssuedDate.Format("2006-01-02"),
		Courses:     courses,
		VerifyToken: token,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render registration card")
	}
	return body, card.CardNumber + ".pdf", nil
}

func (s *CardService) verifyToken(card *models.RegistrationCard) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(card.CardNumber, cardSubject(card))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign card token")
	}
	return token, expiresAt, nil
}

func cardSubject(card *models.RegistrationCard) string {
	return card.UserID + "|" + card.SemesterID
}
