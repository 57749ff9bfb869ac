package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

func TestRegistrationCardRepositoryNextSequence(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewRegistrationCardRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO card_sequences (semester_id, last_value) VALUES ($1, 1)\nON CONFLICT (semester_id) DO UPDATE SET last_value = card_sequences.last_value + 1\nRETURNING last_value")).
		WithArgs("sem-1").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))

	next, err := repo.NextSequence(context.Background(), nil, "sem-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCardRepositoryCreate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewRegistrationCardRepository(db)
	regID := "reg-1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registration_cards")).
		WithArgs(sqlmock.AnyArg(), "reg-1", "user-1", "sem-1", "RC-2025A-000001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	card := &models.RegistrationCard{RegistrationID: &regID, UserID: "user-1", SemesterID: "sem-1", CardNumber: "RC-2025A-000001"}
	require.NoError(t, repo.Create(context.Background(), nil, card))
	assert.NotEmpty(t, card.ID)
	assert.False(t, card.IssuedDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationCardRepositoryFindByUserSemester(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewRegistrationCardRepository(db)

	rows := sqlmock.NewRows([]string{"id", "registration_id", "user_id", "semester_id", "card_number", "issued_date"}).
		AddRow("card-1", "reg-1", "user-1", "sem-1", "RC-2025A-000001", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, registration_id, user_id, semester_id, card_number, issued_date FROM registration_cards WHERE user_id = $1 AND semester_id = $2")).
		WithArgs("user-1", "sem-1").
		WillReturnRows(rows)

	card, err := repo.FindByUserSemester(context.Background(), nil, "user-1", "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "RC-2025A-000001", card.CardNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}
