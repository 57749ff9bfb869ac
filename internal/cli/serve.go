package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/noah-isme/registrar-api/api/swagger"
	"github.com/noah-isme/registrar-api/internal/handler"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/router"
	"github.com/noah-isme/registrar-api/internal/service"
	"github.com/noah-isme/registrar-api/pkg/cache"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/database"
	"github.com/noah-isme/registrar-api/pkg/jobs"
	"github.com/noah-isme/registrar-api/pkg/signing"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

// @title Registrar API
// @version 1.0.0
// @description Semester course registration, registration cards and timetables.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logr, err := bootstrap()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Migrations.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()
	cacheRepo, closeCache, err := newCacheRepository(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeCache()

	app := wire(db, cfg, logr, metrics, service.NewCacheService(cacheRepo, metrics, cfg.Timetable.CacheTTL, logr))
	app.notifications.Start(ctx)
	defer app.notifications.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newCacheRepository selects the published timetable cache backend. The returned closer is never nil.
func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func(), error) {
	switch cfg.Timetable.CacheBackend {
	case config.CacheBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		return repository.NewRedisCacheRepository(client, "", logr), func() { _ = client.Close() }, nil
	case config.CacheBackendMemory:
		return repository.NewMemoryCacheRepository(cache.NewMemory(cfg.Timetable.CacheTTL)), func() {}, nil
	default:
		logr.Info("timetable cache disabled", zap.String("backend", cfg.Timetable.CacheBackend))
		return nil, func() {}, nil
	}
}

type application struct {
	engine        http.Handler
	notifications *service.NotificationService
}

func wire(db *sqlx.DB, cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, cacheSvc *service.CacheService) application {
	validate := validator.New()

	users := repository.NewUserRepository(db)
	years := repository.NewAcademicYearRepository(db)
	semesters := repository.NewSemesterRepository(db)
	flags := repository.NewExclusiveFlag(db)
	registrations := repository.NewRegistrationRepository(db)
	uploads := repository.NewCourseUploadRepository(db)
	approvals := repository.NewApprovalRepository(db)
	cardsRepo := repository.NewRegistrationCardRepository(db)
	lecturers := repository.NewLecturerCourseRepository(db)
	timetables := repository.NewTimetableRepository(db)
	slots := repository.NewTimetableSlotRepository(db)
	notificationsRepo := repository.NewNotificationRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	notifications := service.NewNotificationService(notificationsRepo, users, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	yearSvc := service.NewAcademicYearService(years, flags, db, users, validate, logr)
	semesterSvc := service.NewSemesterService(semesters, years, flags, db, users, validate, logr)
	cardSvc := service.NewCardService(cardsRepo, semesters, users, uploads,
		signing.NewSigner(cfg.Cards.VerifySecret, cfg.Cards.VerifyTTL), logr)
	registrationSvc := service.NewRegistrationService(service.RegistrationServiceDeps{
		Registrations: registrations,
		Uploads:       uploads,
		Approvals:     approvals,
		Cards:         cardSvc,
		Semesters:     semesters,
		Tx:            db,
		Notifier:      notifications,
		Audit:         users,
		Metrics:       metrics,
		Validator:     validate,
		Logger:        logr,
		Config:        cfg.Registration,
	})
	uploadSvc := service.NewCourseUploadService(service.CourseUploadServiceDeps{
		Uploads:       uploads,
		Registrations: registrations,
		Approvals:     approvals,
		Lecturers:     lecturers,
		Semesters:     semesters,
		Tx:            db,
		Notifier:      notifications,
		Audit:         users,
		Metrics:       metrics,
		Validator:     validate,
		Logger:        logr,
		Config:        cfg.Registration,
	})
	timetableSvc := service.NewTimetableService(service.TimetableServiceDeps{
		Timetables: timetables,
		Slots:      slots,
		Semesters:  semesters,
		Flags:      flags,
		Tx:         db,
		Cache:      cacheSvc,
		Approved:   uploads,
		Lecturers:  lecturers,
		Audit:      users,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logr,
		CacheTTL:   cfg.Timetable.CacheTTL,
	})

	engine := router.New(router.Deps{
		Config:   cfg,
		Logger:   logr,
		Tokens:   authSvc,
		Observer: metrics,
		Audit:    users,
	}, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Semesters:     handler.NewSemesterHandler(semesterSvc, yearSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc),
		CourseUploads: handler.NewCourseUploadHandler(uploadSvc),
		Cards:         handler.NewCardHandler(cardSvc),
		Timetables:    handler.NewTimetableHandler(timetableSvc),
		Notifications: handler.NewNotificationHandler(notifications),
		Metrics:       handler.NewMetricsHandler(metrics, db),
	})

	return application{engine: engine, notifications: notifications}
}
