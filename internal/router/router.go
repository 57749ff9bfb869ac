package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/handler"
	"github.com/noah-isme/registrar-api/internal/middleware"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/registrar-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth          *handler.AuthHandler
	Semesters     *handler.SemesterHandler
	Registrations *handler.RegistrationHandler
	CourseUploads *handler.CourseUploadHandler
	Cards         *handler.CardHandler
	Timetables    *handler.TimetableHandler
	Notifications *handler.NotificationHandler
	Metrics       *handler.MetricsHandler
}

// Deps carries the cross-cutting collaborators of the middleware chain.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Tokens   middleware.TokenValidator
	Observer middleware.RequestObserver
	Audit    middleware.AuditWriter
}

// New builds the gin engine with the full route table.
func New(deps Deps, h Handlers) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Observer))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	approvers := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar)
	reviewers := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin, models.RoleRegistrar)
	editors := middleware.RequireRoles(models.RoleStaff, models.RoleRegistrar, models.RoleAdmin)
	students := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/registration-cards/verify", h.Cards.Verify)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))
	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/metrics/summary", approvers, h.Metrics.Snapshot)

	years := secured.Group("/academic-years")
	years.GET("", h.Semesters.ListYears)
	years.POST("", approvers, h.Semesters.CreateYear)
	years.POST("/:id/activate", approvers, h.Semesters.ActivateYear)

	semesters := secured.Group("/semesters")
	semesters.GET("", h.Semesters.List)
	semesters.GET("/active", h.Semesters.Active)
	semesters.GET("/:id", h.Semesters.Get)
	semesters.GET("/:id/published-timetable", h.Timetables.Published)
	semesters.POST("", approvers, h.Semesters.Create)
	semesters.POST("/:id/activate", approvers, h.Semesters.Activate)
	semesters.DELETE("/:id", approvers, h.Semesters.Delete)

	registrations := secured.Group("/registrations")
	registrations.POST("", students, h.Registrations.Submit)
	registrations.GET("", approvers, h.Registrations.List)
	registrations.GET("/export", approvers,
		middleware.Audit(deps.Audit, deps.Logger, models.AuditActionRegistrationExport, "registration"),
		h.Registrations.Export)
	registrations.GET("/me", students, h.Registrations.Mine)
	registrations.GET("/:id", h.Registrations.Get)
	registrations.POST("/:id/approve", approvers, h.Registrations.Approve)
	registrations.POST("/:id/reject", approvers, h.Registrations.Reject)

	uploads := secured.Group("/course-uploads")
	uploads.POST("/:id/approve", reviewers, h.CourseUploads.Approve)
	uploads.POST("/:id/reject", reviewers, h.CourseUploads.Reject)
	uploads.DELETE("/:id", middleware.RequireRoles(models.RoleStudent, models.RoleRegistrar), h.CourseUploads.Withdraw)
	uploads.GET("/:id/approvals", reviewers, h.CourseUploads.Approvals)

	cards := secured.Group("/registration-cards")
	cards.GET("/me", students, h.Cards.Mine)
	cards.GET("/:id/pdf",
		middleware.Audit(deps.Audit, deps.Logger, models.AuditActionCardDownload, "registration_card"),
		h.Cards.PDF)

	timetables := secured.Group("/timetables")
	timetables.GET("", h.Timetables.List)
	timetables.GET("/me", middleware.RequireRoles(models.RoleStudent, models.RoleStaff), h.Timetables.Mine)
	timetables.GET("/:id", h.Timetables.Get)
	timetables.GET("/:id/slots", editors, h.Timetables.Slots)
	timetables.POST("", editors, h.Timetables.Create)
	timetables.POST("/:id/slots", editors, h.Timetables.AddSlot)
	timetables.DELETE("/:id/slots/:slotId", editors, h.Timetables.DeleteSlot)
	timetables.POST("/:id/publish", approvers, h.Timetables.Publish)
	timetables.POST("/:id/unpublish", approvers, h.Timetables.Unpublish)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	return r
}
