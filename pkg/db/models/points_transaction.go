package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// PointsTransaction is an immutable signed ledger entry. Rows are only ever
// inserted. The ux_points_transactions_order_kind unique index allows at most
// one entry per (order, kind), which is what makes settlement idempotent
// under concurrent transition calls.
type PointsTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid;uniqueIndex:ux_points_transactions_order_kind"`
	Delta       int64                 `gorm:"column:delta;not null"`
	Kind        enums.PointsEntryKind `gorm:"column:kind;type:points_entry_kind_enum;not null;uniqueIndex:ux_points_transactions_order_kind"`
	Description string                `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
