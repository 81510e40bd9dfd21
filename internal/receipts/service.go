package receipts

import (
	"errors"
	"fmt"
	"strings"

	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
)

// CreateReceiptInput captures a user-asserted redemption claim.
type CreateReceiptInput struct {
	UserID        uuid.UUID
	ReceiptNumber string
	Points        int64
	ValueUSD      decimal.Decimal
}

// Service manages the points receipt lifecycle: creation, admin verification,
// and the one-time claim that ties a receipt to the order it funded.
type Service interface {
	Create(ctx context.Context, input CreateReceiptInput) (*models.PointsReceipt, error)
	Get(ctx context.Context, number string) (*models.PointsReceipt, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PointsReceipt, error)
	Verify(ctx context.Context, number string) (*models.PointsReceipt, error)
	// ClaimForOrder links the receipt to orderID inside the caller's
	// transaction and returns the claimed receipt. Fails with CONFLICT
	// when the receipt already funded another order.
	ClaimForOrder(ctx context.Context, tx *gorm.DB, number string, orderID uuid.UUID) (*models.PointsReceipt, error)
}

type service struct {
	repo Repository
}

// NewService wires a receipts service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateReceiptInput) (*models.PointsReceipt, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	number := strings.TrimSpace(input.ReceiptNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required")
	}
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	if input.ValueUSD.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usd value must be non-negative")
	}

	receipt := &models.PointsReceipt{
		UserID:        input.UserID,
		ReceiptNumber: number,
		Points:        input.Points,
		ValueUSD:      input.ValueUSD,
	}
	if err := s.repo.Create(ctx, receipt); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_points_receipts_receipt_number") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("receipt %q already exists", number))
		}
		return nil, err
	}
	return receipt, nil
}

func (s *service) Get(ctx context.Context, number string) (*models.PointsReceipt, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required")
	}
	receipt, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, err
	}
	return receipt, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PointsReceipt, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Verify(ctx context.Context, number string) (*models.PointsReceipt, error) {
	receipt, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if receipt.Verified {
		return receipt, nil
	}

	if _, err := s.repo.SetVerified(ctx, receipt.ReceiptNumber); err != nil {
		return nil, err
	}
	receipt.Verified = true
	return receipt, nil
}

func (s *service) ClaimForOrder(ctx context.Context, tx *gorm.DB, number string, orderID uuid.UUID) (*models.PointsReceipt, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	repo := s.repo.WithTx(tx)
	receipt, err := repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, err
	}

	claimed, err := repo.ClaimForOrder(ctx, number, orderID)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_points_receipts_order_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "receipt already funded an order")
		}
		return nil, err
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "receipt already funded an order")
	}

	receipt.OrderID = &orderID
	return receipt, nil
}
