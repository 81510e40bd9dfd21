package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Repository manages persistence for in-app notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	// ListByUser returns the user's feed; a nil userID selects the admin feed.
	ListByUser(ctx context.Context, userID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID *uuid.UUID) error
	CountUnread(ctx context.Context, userID *uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func scopeUser(query *gorm.DB, userID *uuid.UUID) *gorm.DB {
	if userID == nil {
		return query.Where("user_id IS NULL")
	}
	return query.Where("user_id = ?", *userID)
}

func (r *repository) ListByUser(ctx context.Context, userID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error) {
	query := scopeUser(r.db.WithContext(ctx), userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit))

	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkRead(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) (bool, error) {
	result := scopeUser(r.db.WithContext(ctx).Model(&models.Notification{}), userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		Update("read_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID *uuid.UUID) error {
	return scopeUser(r.db.WithContext(ctx).Model(&models.Notification{}), userID).
		Where("read_at IS NULL").
		Update("read_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *repository) CountUnread(ctx context.Context, userID *uuid.UUID) (int64, error) {
	var count int64
	err := scopeUser(r.db.WithContext(ctx).Model(&models.Notification{}), userID).
		Where("read_at IS NULL").
		Count(&count).Error
	return count, err
}
