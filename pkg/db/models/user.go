package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. PointsBalance is the
// denormalized running counter; points_transactions is the audit of record
// and the two must agree at every observation point.
type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash  string     `gorm:"column:password_hash;not null"`
	FirstName     string     `gorm:"column:first_name"`
	LastName      string     `gorm:"column:last_name"`
	IsGuest       bool       `gorm:"column:is_guest;not null;default:false"`
	IsAdmin       bool       `gorm:"column:is_admin;not null;default:false"`
	PointsBalance int64      `gorm:"column:points_balance;not null;default:0"`
	LastLoginAt   *time.Time `gorm:"column:last_login_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
