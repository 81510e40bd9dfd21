package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, notification *models.Notification) error
	listFn        func(ctx context.Context, userID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error)
	markReadFn    func(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) (bool, error)
	markAllReadFn func(ctx context.Context, userID *uuid.UUID) error
	countUnreadFn func(ctx context.Context, userID *uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, notification)
	}
	return nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID, limit, cursor)
	}
	return nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) (bool, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID)
	}
	return false, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID *uuid.UUID) error {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID)
	}
	return nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID *uuid.UUID) (int64, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestService_CreateValidatesInput(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	cases := []struct {
		name  string
		input CreateNotificationInput
	}{
		{"invalid type", CreateNotificationInput{Type: "bogus", Title: "t", Message: "m"}},
		{"missing title", CreateNotificationInput{Type: enums.NotificationTypeOrder, Message: "m"}},
		{"missing message", CreateNotificationInput{Type: enums.NotificationTypeOrder, Title: "t"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_CreateAdminFeedRow(t *testing.T) {
	var stored *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			stored = notification
			return nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	created, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID:  nil,
		Type:    enums.NotificationTypeOrder,
		Title:   "New order submitted",
		Message: "Order awaiting review.",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if stored == nil || created != stored {
		t.Fatal("expected notification persisted through repository")
	}
	if stored.UserID != nil {
		t.Fatalf("expected admin feed row (nil user), got %v", stored.UserID)
	}
}

func TestService_ListPaginates(t *testing.T) {
	userID := uuid.New()
	now := time.Now()
	rows := make([]models.Notification, 3)
	for i := range rows {
		rows[i] = models.Notification{
			ID:        uuid.New(),
			UserID:    &userID,
			Type:      enums.NotificationTypeOrder,
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		}
	}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, gotUser *uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error) {
			if gotUser == nil || *gotUser != userID {
				t.Fatalf("unexpected user scope %v", gotUser)
			}
			return rows, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	list, err := svc.List(context.Background(), &userID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(list.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list.Notifications))
	}
	if list.NextCursor == "" {
		t.Fatal("expected next cursor")
	}
	decoded, err := pagination.ParseCursor(list.NextCursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", list.NextCursor, err)
	}
	if decoded.ID != rows[1].ID {
		t.Fatalf("cursor should point at last returned row, got %s", decoded.ID)
	}
}

func TestService_ListRejectsBadCursor(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})
	_, err := svc.List(context.Background(), nil, pagination.Params{Cursor: "not-a-cursor"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) (bool, error) {
			return false, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	err := svc.MarkRead(context.Background(), nil, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_MarkRead(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) (bool, error) {
			return true, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	if err := svc.MarkRead(context.Background(), nil, uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
}
