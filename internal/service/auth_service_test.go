package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findByEmailErr   error
	lastLoginErr     error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	m.lastLoginUpdated = true
	return m.lastLoginErr
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *mockAuthRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{user: &models.User{
		ID:           "stu-1",
		Email:        "ada@example.edu",
		PasswordHash: string(hash),
		FullName:     "Ada Lovelace",
		Role:         models.RoleStudent,
		Active:       active,
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: 15 * time.Minute, Issuer: "registrar-api"})
	return svc, repo
}

func TestAuthLoginIssuesValidToken(t *testing.T) {
	svc, repo := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, "stu-1", claims.Subject)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthLoginFailures(t *testing.T) {
	svc, repo := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "ada@example.edu", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.edu", Password: "s3cret!"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "s3cret!"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	repo.findByEmailErr = errors.New("connection reset")
	_, err = svc.Login(ctx, models.LoginRequest{Email: "ada@example.edu", Password: "s3cret!"})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, repo.auditLogs)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t, false)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "s3cret!"})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthLoginSurvivesLastLoginFailure(t *testing.T) {
	svc, repo := newAuthFixture(t, true)
	repo.lastLoginErr = errors.New("timeout")

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "s3cret!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthValidateTokenRejectsForeignTokens(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	user := &models.User{ID: "stu-1", Role: models.RoleStudent}

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other-secret", Issuer: "registrar-api"})
	foreign, err := other.generateAccessToken(user, time.Now())
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", Issuer: "elsewhere"})
	token, err := wrongIssuer.generateAccessToken(user, time.Now())
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	expired, err := svc.generateAccessToken(user, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "stu-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
