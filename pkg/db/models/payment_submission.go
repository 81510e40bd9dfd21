package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// PaymentSubmission records how an order was (or will be) paid. Exactly one
// exists per order, created with it and never recreated. The shape is a
// tagged variant: bank fields are set for bank/mixed, PointsAmount for
// points/mixed.
type PaymentSubmission struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method_enum;not null;default:'bank'"`
	BankReference *string             `gorm:"column:bank_reference"`
	ProofURL      *string             `gorm:"column:proof_url"`
	PointsAmount  int64               `gorm:"column:points_amount;not null;default:0"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
