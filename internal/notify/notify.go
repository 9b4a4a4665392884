// Package notify records owner notifications and pushes them to live dashboards.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"qrintake/internal/database"
	"qrintake/internal/errcode"
)

// Message is the push payload forwarded to WebSocket clients.
// Field names are shared with the dashboard.
type Message struct {
	ID        uint      `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	ErrorCode int       `json:"error_code"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is the redis pub/sub channel an owner's dashboard listens on.
func Channel(ownerID uint) string {
	return fmt.Sprintf("user_notify:%d", ownerID)
}

// Publisher is the subset of redis used for pushes.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Service struct {
	db        *gorm.DB
	publisher Publisher
	logger    *slog.Logger
}

// NewService wires the sink. publisher may be nil when no push channel exists.
func NewService(db *gorm.DB, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, publisher: publisher, logger: logger}
}

// Enqueue appends an unread notification and pushes it. A failed push is
// logged only; the row is the durable record.
func (s *Service) Enqueue(ctx context.Context, ownerID uint, notificationType, message string) error {
	payload, err := json.Marshal(map[string]any{"owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	n := database.Notification{
		OwnerID: ownerID,
		Type:    notificationType,
		Message: message,
		Status:  database.NotificationUnread,
		Payload: datatypes.JSON(payload),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return errcode.Infra("insert notification", err)
	}

	if err := s.publish(ctx, n); err != nil {
		s.logger.Warn("publish notification failed",
			slog.Uint64("owner_id", uint64(ownerID)),
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.Any("error", err),
		)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, n database.Notification) error {
	if s.publisher == nil {
		return nil
	}
	data, err := json.Marshal(Message{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Status:    n.Status,
		ErrorCode: errcode.OK,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification message: %w", err)
	}
	channel := Channel(n.OwnerID)
	if err := s.publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

// List returns the owner's notifications, newest first. status filters when set.
func (s *Service) List(ctx context.Context, ownerID uint, status string, limit int) ([]database.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	switch status = strings.TrimSpace(status); status {
	case "":
	case database.NotificationRead, database.NotificationUnread:
		query = query.Where("status = ?", status)
	default:
		return nil, errcode.Validation("unknown status %q", status)
	}

	items := make([]database.Notification, 0)
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, errcode.Infra("list notifications", err)
	}
	return items, nil
}

// MarkRead flips one of the owner's notifications to read.
func (s *Service) MarkRead(ctx context.Context, id, ownerID uint) error {
	var n database.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errcode.NotFound("notification not found")
		}
		return errcode.Infra("query notification", err)
	}
	if n.Status == database.NotificationRead {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&n).Update("status", database.NotificationRead).Error; err != nil {
		return errcode.Infra("mark notification read", err)
	}
	return nil
}
