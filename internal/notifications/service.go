package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// NotificationList wraps a page of notifications plus the next cursor.
type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	NextCursor    string                `json:"next_cursor,omitempty"`
}

// CreateNotificationInput carries a new feed entry. A nil UserID targets the
// admin feed.
type CreateNotificationInput struct {
	UserID  *uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

// Service manages the in-app notification feed.
type Service interface {
	Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*NotificationList, error)
	MarkRead(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID *uuid.UUID) error
	CountUnread(ctx context.Context, userID *uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// NewService wires a notifications service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", input.Type))
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	notification := &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
		Link:    input.Link,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *service) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*NotificationList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, err
	}

	list := &NotificationList{Notifications: rows}
	if len(rows) > limit {
		list.Notifications = rows[:limit]
		last := rows[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func (s *service) MarkRead(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) error {
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
	}
	updated, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found or already read")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID *uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) CountUnread(ctx context.Context, userID *uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
