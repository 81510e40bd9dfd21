package receipts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
)

// Repository manages persistence for points receipts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, receipt *models.PointsReceipt) error
	FindByNumber(ctx context.Context, number string) (*models.PointsReceipt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PointsReceipt, error)
	SetVerified(ctx context.Context, number string) (bool, error)
	// ClaimForOrder links the receipt to an order. The claim is single-use:
	// it only succeeds while order_id is still NULL.
	ClaimForOrder(ctx context.Context, number string, orderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a receipts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, receipt *models.PointsReceipt) error {
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.PointsReceipt, error) {
	var receipt models.PointsReceipt
	if err := r.db.WithContext(ctx).
		Where("receipt_number = ?", number).
		First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PointsReceipt, error) {
	var receipts []models.PointsReceipt
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repository) SetVerified(ctx context.Context, number string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PointsReceipt{}).
		Where("receipt_number = ? AND verified = ?", number, false).
		Update("verified", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ClaimForOrder(ctx context.Context, number string, orderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PointsReceipt{}).
		Where("receipt_number = ? AND order_id IS NULL", number).
		Update("order_id", orderID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
