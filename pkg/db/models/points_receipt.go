package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PointsReceipt is a user-asserted claim of redeemed points pending admin
// verification. ReceiptNumber is caller-supplied and globally unique; OrderID
// is set at most once, when the receipt funds an order at creation time.
type PointsReceipt struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	ReceiptNumber string          `gorm:"column:receipt_number;type:text;not null;uniqueIndex"`
	Points        int64           `gorm:"column:points;not null"`
	ValueUSD      decimal.Decimal `gorm:"column:value_usd;type:numeric(12,2);not null"`
	Verified      bool            `gorm:"column:verified;not null;default:false"`
	OrderID       *uuid.UUID      `gorm:"column:order_id;type:uuid;uniqueIndex"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
