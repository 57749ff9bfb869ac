package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type registrationRepoStub struct {
	byID      map[string]*models.Registration
	createErr error
}

func newRegistrationRepoStub(regs ...models.Registration) *registrationRepoStub {
	stub := &registrationRepoStub{byID: map[string]*models.Registration{}}
	for i := range regs {
		reg := regs[i]
		stub.byID[reg.ID] = &reg
	}
	return stub
}

func (s *registrationRepoStub) Create(_ context.Context, _ sqlx.ExtContext, reg *models.Registration) error {
	if s.createErr != nil {
		return s.createErr
	}
	clone := *reg
	s.byID[reg.ID] = &clone
	return nil
}

func (s *registrationRepoStub) FindByID(_ context.Context, id string) (*models.Registration, error) {
	reg, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *reg
	return &clone, nil
}

func (s *registrationRepoStub) LockByID(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Registration, error) {
	return s.FindByID(ctx, id)
}

func (s *registrationRepoStub) FindByUserSemester(_ context.Context, _ sqlx.ExtContext, userID, semesterID string) (*models.Registration, error) {
	for _, reg := range s.byID {
		if reg.UserID == userID && reg.SemesterID == semesterID {
			clone := *reg
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *registrationRepoStub) UpdateStatus(_ context.Context, _ sqlx.ExtContext, reg *models.Registration) error {
	if _, ok := s.byID[reg.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *reg
	s.byID[reg.ID] = &clone
	return nil
}

func (s *registrationRepoStub) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.byID, id)
	return nil
}

func (s *registrationRepoStub) List(_ context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	var out []models.Registration
	for _, reg := range s.byID {
		if filter.SemesterID != "" && reg.SemesterID != filter.SemesterID {
			continue
		}
		if filter.Status != nil && reg.Status != *filter.Status {
			continue
		}
		out = append(out, *reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *registrationRepoStub) ListAll(ctx context.Context, semesterID string) ([]models.Registration, error) {
	out, _, err := s.List(ctx, models.RegistrationFilter{SemesterID: semesterID})
	return out, err
}

// courseUploadRepoStub keeps insertion order so listings are deterministic.
type courseUploadRepoStub struct {
	order []string
	byID  map[string]*models.CourseUpload
}

func newCourseUploadRepoStub(uploads ...models.CourseUpload) *courseUploadRepoStub {
	stub := &courseUploadRepoStub{byID: map[string]*models.CourseUpload{}}
	_ = stub.CreateBatch(context.Background(), nil, uploads)
	return stub
}

func (s *courseUploadRepoStub) CreateBatch(_ context.Context, _ sqlx.ExtContext, uploads []models.CourseUpload) error {
	for i := range uploads {
		upload := uploads[i]
		s.order = append(s.order, upload.ID)
		s.byID[upload.ID] = &upload
	}
	return nil
}

func (s *courseUploadRepoStub) FindByID(_ context.Context, id string) (*models.CourseUpload, error) {
	upload, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *upload
	return &clone, nil
}

func (s *courseUploadRepoStub) LockByID(ctx context.Context, _ sqlx.ExtContext, id string) (*models.CourseUpload, error) {
	return s.FindByID(ctx, id)
}

func (s *courseUploadRepoStub) ListByRegistration(_ context.Context, _ sqlx.ExtContext, registrationID string) ([]models.CourseUpload, error) {
	var out []models.CourseUpload
	for _, id := range s.order {
		if upload, ok := s.byID[id]; ok && upload.RegistrationID == registrationID {
			out = append(out, *upload)
		}
	}
	return out, nil
}

func (s *courseUploadRepoStub) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.ApprovalStatus) error {
	upload, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	upload.Status = status
	return nil
}

func (s *courseUploadRepoStub) CascadeStatus(_ context.Context, _ sqlx.ExtContext, registrationID string, status models.ApprovalStatus) ([]string, error) {
	var changed []string
	for _, id := range s.order {
		upload, ok := s.byID[id]
		if !ok || upload.RegistrationID != registrationID || upload.Status == status {
			continue
		}
		upload.Status = status
		changed = append(changed, id)
	}
	return changed, nil
}

func (s *courseUploadRepoStub) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.byID, id)
	return nil
}

func (s *courseUploadRepoStub) DeleteByRegistration(_ context.Context, _ sqlx.ExtContext, registrationID string) error {
	for id, upload := range s.byID {
		if upload.RegistrationID == registrationID {
			delete(s.byID, id)
		}
	}
	return nil
}

func (s *courseUploadRepoStub) CountByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (int, error) {
	uploads, err := s.ListByRegistration(ctx, exec, registrationID)
	return len(uploads), err
}

func (s *courseUploadRepoStub) ListApprovedCourseIDs(_ context.Context, userID, semesterID string) ([]string, error) {
	var out []string
	for _, id := range s.order {
		upload, ok := s.byID[id]
		if ok && upload.UserID == userID && upload.SemesterID == semesterID && upload.Status == models.StatusApproved {
			out = append(out, upload.CourseID)
		}
	}
	return out, nil
}

type approvalLogStub struct {
	records []models.Approval
}

func (s *approvalLogStub) Append(_ context.Context, _ sqlx.ExtContext, approvals ...models.Approval) error {
	s.records = append(s.records, approvals...)
	return nil
}

func (s *approvalLogStub) ListByCourseUpload(_ context.Context, courseUploadID string) ([]models.Approval, error) {
	var out []models.Approval
	for _, record := range s.records {
		if record.CourseUploadID == courseUploadID {
			out = append(out, record)
		}
	}
	return out, nil
}

type cardRepoStub struct {
	cards    []models.RegistrationCard
	sequence map[string]int64
}

func newCardRepoStub() *cardRepoStub {
	return &cardRepoStub{sequence: map[string]int64{}}
}

func (s *cardRepoStub) FindByUserSemester(_ context.Context, _ sqlx.ExtContext, userID, semesterID string) (*models.RegistrationCard, error) {
	for i := range s.cards {
		if s.cards[i].UserID == userID && s.cards[i].SemesterID == semesterID {
			card := s.cards[i]
			return &card, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *cardRepoStub) FindByID(_ context.Context, id string) (*models.RegistrationCard, error) {
	for i := range s.cards {
		if s.cards[i].ID == id {
			card := s.cards[i]
			return &card, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *cardRepoStub) FindByNumber(_ context.Context, number string) (*models.RegistrationCard, error) {
	for i := range s.cards {
		if s.cards[i].CardNumber == number {
			card := s.cards[i]
			return &card, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *cardRepoStub) NextSequence(_ context.Context, _ sqlx.ExtContext, semesterID string) (int64, error) {
	s.sequence[semesterID]++
	return s.sequence[semesterID], nil
}

func (s *cardRepoStub) Create(_ context.Context, _ sqlx.ExtContext, card *models.RegistrationCard) error {
	s.cards = append(s.cards, *card)
	return nil
}

type semesterRepoStub struct {
	byID               map[string]*models.Semester
	activeID           string
	registrationCounts map[string]int
	created            []models.Semester
	createErr          error
}

func newSemesterRepoStub(active models.Semester, others ...models.Semester) *semesterRepoStub {
	stub := &semesterRepoStub{byID: map[string]*models.Semester{}, activeID: active.ID, registrationCounts: map[string]int{}}
	for _, sem := range append([]models.Semester{active}, others...) {
		sem := sem
		stub.byID[sem.ID] = &sem
	}
	return stub
}

func (s *semesterRepoStub) List(_ context.Context, _ string) ([]models.Semester, error) {
	var out []models.Semester
	for _, sem := range s.byID {
		out = append(out, *sem)
	}
	return out, nil
}

func (s *semesterRepoStub) FindByID(_ context.Context, id string) (*models.Semester, error) {
	sem, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *sem
	return &clone, nil
}

func (s *semesterRepoStub) FindActive(ctx context.Context) (*models.Semester, error) {
	if s.activeID == "" {
		return nil, sql.ErrNoRows
	}
	return s.FindByID(ctx, s.activeID)
}

func (s *semesterRepoStub) Create(_ context.Context, semester *models.Semester) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *semester)
	clone := *semester
	s.byID[semester.ID] = &clone
	return nil
}

func (s *semesterRepoStub) CountRegistrations(_ context.Context, id string) (int, error) {
	return s.registrationCounts[id], nil
}

func (s *semesterRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.byID, id)
	return nil
}

type sentNotification struct {
	UserID string
	Role   models.UserRole
	Title  string
}

type notifierStub struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *notifierStub) Notify(_ context.Context, userID, title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Title: title})
}

func (n *notifierStub) NotifyRole(_ context.Context, role models.UserRole, title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Role: role, Title: title})
}

type auditStub struct {
	entries []models.AuditLog
	err     error
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *log)
	return nil
}

func (a *auditStub) actions() []string {
	out := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		out = append(out, entry.Action)
	}
	return out
}

type flagCall struct {
	Spec  repository.FlagSpec
	ID    string
	Value bool
}

type flagStub struct {
	calls []flagCall
	err   error
	count int
}

func (f *flagStub) Set(_ context.Context, _ sqlx.ExtContext, spec repository.FlagSpec, id string, value bool) error {
	f.calls = append(f.calls, flagCall{Spec: spec, ID: id, Value: value})
	return f.err
}

func (f *flagStub) Count(context.Context, sqlx.ExtContext, repository.FlagSpec, string) (int, error) {
	return f.count, nil
}

type lecturerStub struct {
	assignments map[string][]string
}

func (l *lecturerStub) IsAssigned(_ context.Context, lecturerID, courseID, _ string) (bool, error) {
	for _, id := range l.assignments[lecturerID] {
		if id == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (l *lecturerStub) ListCourseIDs(_ context.Context, lecturerID, _ string) ([]string, error) {
	return l.assignments[lecturerID], nil
}

func activeSemester() models.Semester {
	return models.Semester{
		ID:        "sem-1",
		Name:      "2025 Odd",
		Code:      "2025A",
		StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func registrar() models.Actor { return models.Actor{UserID: "registrar-1", Role: models.RoleRegistrar} }
func student(id string) models.Actor {
	return models.Actor{UserID: id, Role: models.RoleStudent}
}
