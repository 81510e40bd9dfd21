package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	CreatePaymentSubmission(ctx context.Context, submission *models.PaymentSubmission) (*models.PaymentSubmission, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLineItem(ctx context.Context, orderID, lineItemID uuid.UUID) (*models.OrderLineItem, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	UpdateLineItemCodes(ctx context.Context, lineItemID uuid.UUID, codes []string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
}
