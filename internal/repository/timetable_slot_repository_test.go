package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimetableSlotRepositoryListByDay(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableSlotRepository(db)

	rows := sqlmock.NewRows([]string{"id", "timetable_id", "course_id", "lecturer_course_id", "day_of_week", "start_time", "end_time", "room_number", "created_at"}).
		AddRow("slot-1", "tt-1", "C1", nil, 1, "09:00", "10:30", "A", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + slotColumns + " FROM timetable_slots WHERE timetable_id = $1 AND day_of_week = $2 ORDER BY start_time")).
		WithArgs("tt-1", 1).
		WillReturnRows(rows)

	slots, err := repo.ListByDay(context.Background(), nil, "tt-1", 1)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "10:30", slots[0].EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryLockByID(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "semester_id", "name", "is_published", "created_by", "created_at", "updated_at"}).
		AddRow("tt-1", "sem-1", "Draft", false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + timetableColumns + " FROM timetables WHERE id = $1 FOR UPDATE")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	tt, err := repo.LockByID(context.Background(), nil, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "sem-1", tt.SemesterID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
