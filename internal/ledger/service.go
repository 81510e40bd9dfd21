package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

const orderKindConstraint = "ux_points_transactions_order_kind"

// TxRunner executes fn inside a database transaction. *db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Publisher queues domain events inside the posting transaction.
type Publisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Option configures optional service collaborators.
type Option func(*service)

// WithPublisher emits a points.adjusted event for every manual adjustment.
func WithPublisher(pub Publisher) Option {
	return func(s *service) {
		s.outbox = pub
	}
}

// PointsAdjustedEvent is the outbox payload for a manual ledger adjustment.
type PointsAdjustedEvent struct {
	EntryID uuid.UUID `json:"entry_id"`
	UserID  uuid.UUID `json:"user_id"`
	Delta   int64     `json:"delta"`
	Reason  string    `json:"reason"`
}

// PostEntryInput captures the immutable data a ledger entry requires.
type PostEntryInput struct {
	UserID      uuid.UUID
	OrderID     *uuid.UUID
	Delta       int64
	Kind        enums.PointsEntryKind
	Description string
}

// AdjustInput is an admin-initiated manual posting.
type AdjustInput struct {
	UserID uuid.UUID
	Delta  int64
	Reason string
}

// Service owns the append-only points ledger and the cached balance counter.
// Every posting adjusts both in a single transaction so the counter always
// equals the sum of entry deltas.
type Service interface {
	// Post appends an entry and adjusts the balance. For order-bound entries
	// the (order, kind) unique index makes concurrent duplicates collapse:
	// applied=false with a nil error means another posting already won.
	Post(ctx context.Context, input PostEntryInput) (entry *models.PointsTransaction, applied bool, err error)
	HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error)
	BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error)
	// EnsureBalance verifies the user can cover amount points. Shared by the
	// order-creation pre-check and the settlement re-check.
	EnsureBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	Adjust(ctx context.Context, input AdjustInput) (*models.PointsTransaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsTransaction, string, error)
}

type service struct {
	runner TxRunner
	repo   Repository
	outbox Publisher
}

// NewService wires a ledger service with the provided transaction runner and repository.
func NewService(runner TxRunner, repo Repository, opts ...Option) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	s := &service{runner: runner, repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Post(ctx context.Context, input PostEntryInput) (*models.PointsTransaction, bool, error) {
	if err := validatePostInput(input); err != nil {
		return nil, false, err
	}

	entry := &models.PointsTransaction{
		UserID:      input.UserID,
		OrderID:     input.OrderID,
		Delta:       input.Delta,
		Kind:        input.Kind,
		Description: input.Description,
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		updated, err := repo.AdjustBalance(ctx, input.UserID, input.Delta)
		if err != nil {
			return err
		}
		if !updated {
			return s.classifyBalanceFailure(ctx, repo, input)
		}

		if err := repo.Insert(ctx, entry); err != nil {
			return err
		}

		// Manual adjustments surface to the notification pipeline; settlement
		// entries are covered by the order status events.
		if s.outbox != nil && input.OrderID == nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPointsAdjusted,
				AggregateType: enums.AggregatePointsTransaction,
				AggregateID:   entry.ID,
				Version:       1,
				Data: PointsAdjustedEvent{
					EntryID: entry.ID,
					UserID:  entry.UserID,
					Delta:   entry.Delta,
					Reason:  entry.Description,
				},
			})
		}
		return nil
	})
	if err != nil {
		if input.OrderID != nil && dbpkg.IsUniqueViolation(err, orderKindConstraint) {
			// Another settlement attempt already posted this (order, kind);
			// the whole transaction rolled back, so the balance is untouched.
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry, true, nil
}

// classifyBalanceFailure distinguishes a missing user from an underflow. Both
// present as zero rows updated by the guarded balance adjustment.
func (s *service) classifyBalanceFailure(ctx context.Context, repo Repository, input PostEntryInput) error {
	if input.Delta >= 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if _, err := repo.Balance(ctx, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "points balance cannot go negative")
}

func (s *service) HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !kind.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entry kind %q", kind))
	}
	return s.repo.HasEntry(ctx, orderID, kind)
}

func (s *service) BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return 0, err
	}
	return balance, nil
}

func (s *service) EnsureBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	balance, err := s.BalanceOf(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("balance %d cannot cover %d points", balance, amount))
	}
	return nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.PointsTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	kind := enums.PointsEntryKindEarned
	if input.Delta < 0 {
		kind = enums.PointsEntryKindRedeemed
	}

	entry, _, err := s.Post(ctx, PostEntryInput{
		UserID:      input.UserID,
		Delta:       input.Delta,
		Kind:        kind,
		Description: input.Reason,
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsTransaction, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}

func validatePostInput(input PostEntryInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entry kind %q", input.Kind))
	}
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.OrderID != nil && *input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id must be set or nil")
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	return nil
}
