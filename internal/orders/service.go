package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/internal/ledger"
	"github.com/tiendly/tiendly-backend/internal/receipts"
	"github.com/tiendly/tiendly-backend/internal/users"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Settler applies the points consequence after a status change commits.
type Settler interface {
	Settle(ctx context.Context, order *models.Order, from, to enums.OrderStatus) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// Transition moves the order through the state machine. The settlement
	// outcome never fails a committed transition; its errors are logged and
	// metered instead.
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	AssignRedemptionCodes(ctx context.Context, input AssignCodesInput) (*models.OrderLineItem, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	users    users.Service
	ledger   ledger.Service
	receipts receipts.Service
	settler  Settler
	logg     *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	ob outboxPublisher,
	usersSvc users.Service,
	ledgerSvc ledger.Service,
	receiptsSvc receipts.Service,
	settler Settler,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if usersSvc == nil {
		return nil, fmt.Errorf("users service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if receiptsSvc == nil {
		return nil, fmt.Errorf("receipts service required")
	}
	if settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   ob,
		users:    usersSvc,
		ledger:   ledgerSvc,
		receipts: receiptsSvc,
		settler:  settler,
		logg:     logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	owner, err := s.resolveOwner(ctx, input)
	if err != nil {
		return nil, err
	}

	// Points-funded orders are refused up front when the balance cannot
	// cover them; settlement re-checks under the transaction later.
	if input.Payment.Method.UsesPoints() {
		if err := s.ledger.EnsureBalance(ctx, owner.ID, input.Payment.PointsAmount); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		UserID:   owner.ID,
		Status:   enums.OrderStatusPending,
		Currency: input.Currency,
		Total:    input.Total,
		TotalUSD: input.TotalUSD,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderLineItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, models.OrderLineItem{
				OrderID:     order.ID,
				Name:        item.Name,
				ProductType: item.ProductType,
				Category:    item.Category,
				UnitPrice:   item.UnitPrice,
				Qty:         item.Qty,
				Metadata:    item.Metadata,
			})
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}
		order.Items = items

		submission := &models.PaymentSubmission{
			OrderID:       order.ID,
			Method:        input.Payment.Method,
			BankReference: input.Payment.BankReference,
			ProofURL:      input.Payment.ProofURL,
			PointsAmount:  input.Payment.PointsAmount,
		}
		if _, err := repo.CreatePaymentSubmission(ctx, submission); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment submission")
		}
		order.Payment = submission

		if number := strings.TrimSpace(input.ReceiptNumber); number != "" {
			receipt, err := s.receipts.ClaimForOrder(ctx, tx, number, order.ID)
			if err != nil {
				return err
			}
			order.Receipt = receipt
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.Actor),
			Data: OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        owner.ID,
				Total:         order.Total,
				Currency:      order.Currency,
				PaymentMethod: submission.Method,
				ItemCount:     len(items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.NewStatus))
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.Admin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin capability required")
	}

	var order *models.Order
	var previous enums.OrderStatus
	var changed bool

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		order = loaded
		previous = loaded.Status

		// Same-status call succeeds without side effects.
		if previous == input.NewStatus {
			return nil
		}
		if !previous.CanTransitionTo(input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition %s order to %s", previous, input.NewStatus))
		}

		if err := repo.UpdateStatus(ctx, order.ID, input.NewStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = input.NewStatus
		changed = true

		eventType, ok := enums.EventForOrderStatus(input.NewStatus)
		if !ok {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.Actor),
			Data: OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    previous,
				To:      input.NewStatus,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		// The transition is committed; settlement runs on its own fate.
		if err := s.settler.Settle(ctx, order, previous, order.Status); err != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Error(logCtx, "points settlement failed", err)
		}
	}
	return order, nil
}

func (s *service) AssignRedemptionCodes(ctx context.Context, input AssignCodesInput) (*models.OrderLineItem, error) {
	if input.OrderID == uuid.Nil || input.LineItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and line item id required")
	}
	if len(input.Codes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one code required")
	}
	if !input.Actor.Admin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin capability required")
	}

	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusApproved && order.Status != enums.OrderStatusFulfilled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "codes can only be assigned to approved orders")
	}

	item, err := s.repo.FindLineItem(ctx, input.OrderID, input.LineItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
		}
		return nil, err
	}

	if err := s.repo.UpdateLineItemCodes(ctx, item.ID, input.Codes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign redemption codes")
	}
	item.RedemptionCodes = input.Codes
	return item, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, err
	}

	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for i := range rows {
		list.Orders = append(list.Orders, *FromModel(&rows[i]))
	}
	return list, nil
}

func (s *service) resolveOwner(ctx context.Context, input CreateOrderInput) (*models.User, error) {
	if input.Actor.UserID != uuid.Nil {
		return s.users.GetByID(ctx, input.Actor.UserID)
	}
	return s.users.GetOrCreateByEmail(ctx, input.GuestEmail, input.GuestFirstName, input.GuestLastName)
}

func buildActor(actor ActorIdentity) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Admin: actor.Admin}
}

func validateCreateInput(input CreateOrderInput) error {
	if input.Actor.UserID == uuid.Nil && strings.TrimSpace(input.GuestEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "caller identity or guest email required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item required")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: name required", i))
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: unit price must be non-negative", i))
		}
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
	}
	if input.Total.IsNegative() || input.TotalUSD.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "totals must be non-negative")
	}
	return validatePayment(input.Payment)
}

func validatePayment(payment PaymentInput) error {
	if !payment.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", payment.Method))
	}
	if payment.PointsAmount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points amount must be non-negative")
	}

	switch payment.Method {
	case enums.PaymentMethodPoints:
		if payment.PointsAmount == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "points payment requires a points amount")
		}
	case enums.PaymentMethodMixed:
		if payment.PointsAmount == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "mixed payment requires a points amount")
		}
		if !hasBankHalf(payment) {
			return pkgerrors.New(pkgerrors.CodeValidation, "mixed payment requires a bank reference or proof")
		}
	case enums.PaymentMethodBank:
		if payment.PointsAmount != 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "bank payment must not carry points")
		}
		if !hasBankHalf(payment) {
			return pkgerrors.New(pkgerrors.CodeValidation, "bank payment requires a bank reference or proof")
		}
	}
	return nil
}

func hasBankHalf(payment PaymentInput) bool {
	if payment.BankReference != nil && strings.TrimSpace(*payment.BankReference) != "" {
		return true
	}
	return payment.ProofURL != nil && strings.TrimSpace(*payment.ProofURL) != ""
}
