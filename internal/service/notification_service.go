package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/jobs"
)

const jobTypeNotify = "notify"

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type roleDirectory interface {
	ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

// notificationPayload addresses either one user or every user holding a role.
type notificationPayload struct {
	UserID  string
	Role    models.UserRole
	Title   string
	Message string
}

// NotificationService fans notifications out through a background queue and persists them
// to each recipient's inbox. Enqueue failures are logged and never reach the caller.
type NotificationService struct {
	repo    notificationRepository
	users   roleDirectory
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService wires the delivery queue. Call Start before notifying.
func NewNotificationService(repo notificationRepository, users roleDirectory, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, users: users, metrics: metrics, logger: logger}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.deliver, cfg)
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues a notification for one user.
func (s *NotificationService) Notify(_ context.Context, userID, title, message string) {
	s.enqueue(notificationPayload{UserID: userID, Title: title, Message: message})
}

// NotifyRole queues a notification for every user with role. Recipients are resolved at delivery.
func (s *NotificationService) NotifyRole(_ context.Context, role models.UserRole, title, message string) {
	s.enqueue(notificationPayload{Role: role, Title: title, Message: message})
}

func (s *NotificationService) enqueue(payload notificationPayload) {
	if err := s.queue.Enqueue(jobs.Job{Type: jobTypeNotify, Payload: payload}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("notification dropped",
			zap.String("user_id", payload.UserID),
			zap.String("role", string(payload.Role)),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	recipients := []string{payload.UserID}
	if payload.Role != "" {
		ids, err := s.users.ListIDsByRole(ctx, payload.Role)
		if err != nil {
			s.metrics.RecordNotification("failed")
			return fmt.Errorf("resolve role recipients: %w", err)
		}
		recipients = ids
	}

	var pending []string
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		err := s.repo.Create(ctx, &models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     payload.Title,
			Message:   payload.Message,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn("notification write failed", zap.String("user_id", userID), zap.Error(err))
			pending = append(pending, userID)
			continue
		}
		s.metrics.RecordNotification("delivered")
	}
	if len(pending) > 0 {
		s.metrics.RecordNotification("failed")
		if payload.Role != "" {
			// Retry as per-user jobs so delivered recipients are not duplicated.
			for _, userID := range pending {
				s.enqueue(notificationPayload{UserID: userID, Title: payload.Title, Message: payload.Message})
			}
			return nil
		}
		return fmt.Errorf("deliver notification to %s failed", payload.UserID)
	}
	return nil
}

// List returns the caller's inbox.
func (s *NotificationService) List(ctx context.Context, actor models.Actor, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	filter.UserID = actor.UserID
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	if err := s.repo.MarkRead(ctx, actor.UserID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}
