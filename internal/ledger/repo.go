package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Repository manages persistence for the points ledger and the cached
// balance counter on users.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.PointsTransaction) error
	HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error)
	// AdjustBalance applies delta to the user's cached counter. The guard
	// clause refuses updates that would take the balance negative; the bool
	// reports whether a row was updated.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (bool, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointsTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, entry *models.PointsTransaction) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PointsTransaction{}).
		Where("order_id = ? AND kind = ?", orderID, kind).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND points_balance + ? >= 0", userID, delta).
		UpdateColumn("points_balance", gorm.Expr("points_balance + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Select("points_balance").
		First(&user, "id = ?", userID).Error; err != nil {
		return 0, err
	}
	return user.PointsBalance, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointsTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit))

	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.PointsTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
