package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/handler"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/config"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

// newTestEngine mounts handlers without services; every request in these tests is stopped by
// middleware or input checks before a service would be called.
func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	return New(Deps{
		Config: cfg,
		Logger: zap.NewNop(),
		Tokens: tokenStub{
			"student": {UserID: "stu-1", Role: models.RoleStudent},
			"staff":   {UserID: "staff-1", Role: models.RoleStaff},
		},
	}, Handlers{
		Auth:          handler.NewAuthHandler(nil),
		Semesters:     handler.NewSemesterHandler(nil, nil),
		Registrations: handler.NewRegistrationHandler(nil),
		CourseUploads: handler.NewCourseUploadHandler(nil),
		Cards:         handler.NewCardHandler(nil),
		Timetables:    handler.NewTimetableHandler(nil),
		Notifications: handler.NewNotificationHandler(nil),
		Metrics:       handler.NewMetricsHandler(nil, nil),
	})
}

func do(r http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRouterRegistersRouteTable(t *testing.T) {
	routes := map[string]bool{}
	for _, route := range newTestEngine().Routes() {
		routes[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/auth/login",
		"GET /api/v1/registration-cards/verify",
		"POST /api/v1/registrations",
		"GET /api/v1/registrations/export",
		"GET /api/v1/registrations/me",
		"POST /api/v1/registrations/:id/approve",
		"POST /api/v1/course-uploads/:id/reject",
		"DELETE /api/v1/course-uploads/:id",
		"GET /api/v1/registration-cards/:id/pdf",
		"POST /api/v1/timetables/:id/slots",
		"DELETE /api/v1/timetables/:id/slots/:slotId",
		"POST /api/v1/timetables/:id/publish",
		"GET /api/v1/semesters/:id/published-timetable",
		"GET /api/v1/timetables/me",
		"POST /api/v1/notifications/:id/read",
		"GET /metrics",
		"GET /docs/*any",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestRouterEnforcesAuthenticationAndRoles(t *testing.T) {
	r := newTestEngine()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"missing token", http.MethodGet, "/api/v1/registrations/me", "", http.StatusUnauthorized},
		{"student cannot approve", http.MethodPost, "/api/v1/registrations/reg-1/approve", "student", http.StatusForbidden},
		{"student cannot export", http.MethodGet, "/api/v1/registrations/export", "student", http.StatusForbidden},
		{"staff cannot submit", http.MethodPost, "/api/v1/registrations", "staff", http.StatusForbidden},
		{"staff cannot withdraw", http.MethodDelete, "/api/v1/course-uploads/cu-1", "staff", http.StatusForbidden},
		{"staff cannot publish", http.MethodPost, "/api/v1/timetables/tt-1/publish", "staff", http.StatusForbidden},
		{"student cannot book slots", http.MethodPost, "/api/v1/timetables/tt-1/slots", "student", http.StatusForbidden},
		{"verify is public but needs a token", http.MethodGet, "/api/v1/registration-cards/verify", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/nowhere", "student", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, do(r, tc.method, tc.path, tc.token))
		})
	}
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New(Deps{
		Config: &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"},
		Logger: zap.NewNop(),
		Tokens: tokenStub{},
	}, Handlers{
		Auth:          handler.NewAuthHandler(nil),
		Semesters:     handler.NewSemesterHandler(nil, nil),
		Registrations: handler.NewRegistrationHandler(nil),
		CourseUploads: handler.NewCourseUploadHandler(nil),
		Cards:         handler.NewCardHandler(nil),
		Timetables:    handler.NewTimetableHandler(nil),
		Notifications: handler.NewNotificationHandler(nil),
		Metrics:       handler.NewMetricsHandler(nil, nil),
	})
	gin.SetMode(gin.TestMode)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/docs/index.html", ""))
}
