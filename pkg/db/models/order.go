package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// Order is the aggregate root of the order lifecycle. Totals are fixed at
// creation; status is the only mutable column after that.
type Order struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Status    enums.OrderStatus  `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	Currency  enums.Currency     `gorm:"column:currency;type:text;not null;default:'MXN'"`
	Total     decimal.Decimal    `gorm:"column:total;type:numeric(12,2);not null"`
	TotalUSD  decimal.Decimal    `gorm:"column:total_usd;type:numeric(12,2);not null"`
	Items     []OrderLineItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment   *PaymentSubmission `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Receipt   *PointsReceipt     `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
