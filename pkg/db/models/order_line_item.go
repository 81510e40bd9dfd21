package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineItem captures the immutable product snapshot taken at order time.
// RedemptionCodes is the single post-creation mutation, assigned by an admin
// fulfillment step.
type OrderLineItem struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Name            string            `gorm:"column:name;not null"`
	ProductType     string            `gorm:"column:product_type;not null"`
	Category        string            `gorm:"column:category;not null"`
	UnitPrice       decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Qty             int               `gorm:"column:qty;not null"`
	Metadata        map[string]string `gorm:"column:metadata;type:jsonb;serializer:json"`
	RedemptionCodes []string          `gorm:"column:redemption_codes;type:jsonb;serializer:json"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
