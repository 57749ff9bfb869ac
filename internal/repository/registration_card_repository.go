package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const cardColumns = "id, registration_id, user_id, semester_id, card_number, issued_date"

// RegistrationCardRepository persists issued cards and the per-semester card sequence.
type RegistrationCardRepository struct {
	db *sqlx.DB
}

// NewRegistrationCardRepository instantiates a card repository.
func NewRegistrationCardRepository(db *sqlx.DB) *RegistrationCardRepository {
	return &RegistrationCardRepository{db: db}
}

func (r *RegistrationCardRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByUserSemester returns the card issued to a student for a semester.
func (r *RegistrationCardRepository) FindByUserSemester(ctx context.Context, exec sqlx.ExtContext, userID, semesterID string) (*models.RegistrationCard, error) {
	query := "SELECT " + cardColumns + " FROM registration_cards WHERE user_id = $1 AND semester_id = $2"
	var card models.RegistrationCard
	if err := sqlx.GetContext(ctx, r.exec(exec), &card, query, userID, semesterID); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByID loads a card by identifier.
func (r *RegistrationCardRepository) FindByID(ctx context.Context, id string) (*models.RegistrationCard, error) {
	query := "SELECT " + cardColumns + " FROM registration_cards WHERE id = $1"
	var card models.RegistrationCard
	if err := r.db.GetContext(ctx, &card, query, id); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByNumber loads a card by its printed number.
func (r *RegistrationCardRepository) FindByNumber(ctx context.Context, number string) (*models.RegistrationCard, error) {
	query := "SELECT " + cardColumns + " FROM registration_cards WHERE card_number = $1"
	var card models.RegistrationCard
	if err := r.db.GetContext(ctx, &card, query, number); err != nil {
		return nil, err
	}
	return &card, nil
}

// NextSequence increments the semester's card counter and returns the new value. The upsert
// holds the counter row lock until exec commits, so concurrent issuers never share a value.
func (r *RegistrationCardRepository) NextSequence(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int64, error) {
	const query = `INSERT INTO card_sequences (semester_id, last_value) VALUES ($1, 1)
ON CONFLICT (semester_id) DO UPDATE SET last_value = card_sequences.last_value + 1
RETURNING last_value`
	var next int64
	if err := sqlx.GetContext(ctx, r.exec(exec), &next, query, semesterID); err != nil {
		return 0, fmt.Errorf("next card sequence: %w", err)
	}
	return next, nil
}

// Create inserts a card.
func (r *RegistrationCardRepository) Create(ctx context.Context, exec sqlx.ExtContext, card *models.RegistrationCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.IssuedDate.IsZero() {
		card.IssuedDate = time.Now().UTC()
	}
	const query = `INSERT INTO registration_cards (id, registration_id, user_id, semester_id, card_number, issued_date) VALUES (:id, :registration_id, :user_id, :semester_id, :card_number, :issued_date)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, card); err != nil {
		return fmt.Errorf("create registration card: %w", err)
	}
	return nil
}
