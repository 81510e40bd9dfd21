package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/internal/ledger"
	"github.com/tiendly/tiendly-backend/internal/receipts"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	order         *models.Order
	lineItems     map[uuid.UUID]*models.OrderLineItem
	updatedStatus enums.OrderStatus
	updatedCodes  []string
	createOrder   func(ctx context.Context, order *models.Order) (*models.Order, error)
	createItems   func(ctx context.Context, items []models.OrderLineItem) error
	createPayment func(ctx context.Context, submission *models.PaymentSubmission) (*models.PaymentSubmission, error)
	updateStatus  func(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createOrder != nil {
		return s.createOrder(ctx, order)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return order, nil
}

func (s *stubOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if s.createItems != nil {
		return s.createItems(ctx, items)
	}
	if s.lineItems == nil {
		s.lineItems = make(map[uuid.UUID]*models.OrderLineItem)
	}
	for i := range items {
		item := items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		s.lineItems[item.ID] = &item
	}
	return nil
}

func (s *stubOrdersRepo) CreatePaymentSubmission(ctx context.Context, submission *models.PaymentSubmission) (*models.PaymentSubmission, error) {
	if s.createPayment != nil {
		return s.createPayment(ctx, submission)
	}
	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	return submission, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *s.order
	return &copy, nil
}

func (s *stubOrdersRepo) FindLineItem(ctx context.Context, orderID, lineItemID uuid.UUID) (*models.OrderLineItem, error) {
	if item, ok := s.lineItems[lineItemID]; ok && item.OrderID == orderID {
		return item, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	if s.updateStatus != nil {
		return s.updateStatus(ctx, orderID, status)
	}
	s.updatedStatus = status
	if s.order != nil && s.order.ID == orderID {
		s.order.Status = status
	}
	return nil
}

func (s *stubOrdersRepo) UpdateLineItemCodes(ctx context.Context, lineItemID uuid.UUID, codes []string) error {
	s.updatedCodes = codes
	return nil
}

func (s *stubOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	return nil, nil
}

type stubRunner struct{}

func (s *stubRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	emitted []outbox.DomainEvent
	emitErr error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.emitErr != nil {
		return s.emitErr
	}
	s.emitted = append(s.emitted, event)
	return nil
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return s.Emit(ctx, tx, event)
}

type stubUsers struct {
	byID      map[uuid.UUID]*models.User
	byEmail   map[string]*models.User
	provision func(email string) (*models.User, error)
}

func (s *stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func (s *stubUsers) GetOrCreateByEmail(ctx context.Context, email, firstName, lastName string) (*models.User, error) {
	if s.provision != nil {
		return s.provision(email)
	}
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	user := &models.User{ID: uuid.New(), Email: email, IsGuest: true}
	return user, nil
}

func (s *stubUsers) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

type stubLedger struct {
	balance    int64
	balanceErr error
}

func (s *stubLedger) Post(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
	return nil, true, nil
}

func (s *stubLedger) HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
	return false, nil
}

func (s *stubLedger) BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.balance, s.balanceErr
}

func (s *stubLedger) EnsureBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	if s.balanceErr != nil {
		return s.balanceErr
	}
	if s.balance < amount {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance too low")
	}
	return nil
}

func (s *stubLedger) Adjust(ctx context.Context, input ledger.AdjustInput) (*models.PointsTransaction, error) {
	return nil, nil
}

func (s *stubLedger) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsTransaction, string, error) {
	return nil, "", nil
}

type stubReceipts struct {
	claimed  []string
	claimErr error
}

func (s *stubReceipts) Create(ctx context.Context, input receipts.CreateReceiptInput) (*models.PointsReceipt, error) {
	return nil, nil
}

func (s *stubReceipts) Get(ctx context.Context, number string) (*models.PointsReceipt, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
}

func (s *stubReceipts) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PointsReceipt, error) {
	return nil, nil
}

func (s *stubReceipts) Verify(ctx context.Context, number string) (*models.PointsReceipt, error) {
	return nil, nil
}

func (s *stubReceipts) ClaimForOrder(ctx context.Context, tx *gorm.DB, number string, orderID uuid.UUID) (*models.PointsReceipt, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	s.claimed = append(s.claimed, number)
	return &models.PointsReceipt{ReceiptNumber: number, Points: 150, OrderID: &orderID}, nil
}

type stubSettler struct {
	calls     int
	lastFrom  enums.OrderStatus
	lastTo    enums.OrderStatus
	settleErr error
}

func (s *stubSettler) Settle(ctx context.Context, order *models.Order, from, to enums.OrderStatus) error {
	s.calls++
	s.lastFrom = from
	s.lastTo = to
	return s.settleErr
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
}

func strPtr(v string) *string {
	return &v
}

func bankPayment() PaymentInput {
	return PaymentInput{
		Method:        enums.PaymentMethodBank,
		BankReference: strPtr("SPEI-123"),
	}
}

func validCreateInput(actor ActorIdentity) CreateOrderInput {
	return CreateOrderInput{
		Actor:    actor,
		Currency: enums.CurrencyMXN,
		Total:    decimal.RequireFromString("100.00"),
		TotalUSD: decimal.RequireFromString("5.40"),
		Items: []LineItemInput{
			{Name: "Gift card", ProductType: "digital", Category: "cards", UnitPrice: decimal.RequireFromString("100.00"), Qty: 1},
		},
		Payment: bankPayment(),
	}
}

func newTestOrderService(t *testing.T, repo Repository, ob outboxPublisher, us *stubUsers, lg *stubLedger, rc *stubReceipts, st *stubSettler) Service {
	t.Helper()

	if us == nil {
		us = &stubUsers{}
	}
	if lg == nil {
		lg = &stubLedger{}
	}
	if rc == nil {
		rc = &stubReceipts{}
	}
	if st == nil {
		st = &stubSettler{}
	}
	svc, err := NewService(repo, &stubRunner{}, ob, us, lg, rc, st, testLogger())
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestCreate_PersistsOrderGraph(t *testing.T) {
	userID := uuid.New()
	repo := &stubOrdersRepo{}
	ob := &stubOutbox{}
	us := &stubUsers{byID: map[uuid.UUID]*models.User{userID: {ID: userID, Email: "buyer@example.com"}}}

	svc := newTestOrderService(t, repo, ob, us, nil, nil, nil)

	order, err := svc.Create(context.Background(), validCreateInput(ActorIdentity{UserID: userID}))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("new orders must start pending, got %q", order.Status)
	}
	if order.UserID != userID {
		t.Fatalf("expected owner %s, got %s", userID, order.UserID)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.Items))
	}
	if order.Payment == nil || order.Payment.Method != enums.PaymentMethodBank {
		t.Fatalf("expected bank payment submission, got %+v", order.Payment)
	}
	if len(ob.emitted) != 1 || ob.emitted[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order.created event, got %+v", ob.emitted)
	}
}

func TestCreate_ProvisionsGuestByEmail(t *testing.T) {
	repo := &stubOrdersRepo{}
	ob := &stubOutbox{}

	var provisioned string
	us := &stubUsers{provision: func(email string) (*models.User, error) {
		provisioned = email
		return &models.User{ID: uuid.New(), Email: email, IsGuest: true}, nil
	}}

	svc := newTestOrderService(t, repo, ob, us, nil, nil, nil)

	input := validCreateInput(ActorIdentity{})
	input.GuestEmail = "guest@example.com"
	order, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if provisioned != "guest@example.com" {
		t.Fatalf("expected guest provisioning for guest@example.com, got %q", provisioned)
	}
	if order.UserID == uuid.Nil {
		t.Fatalf("expected resolved owner id")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestOrderService(t, &stubOrdersRepo{}, &stubOutbox{}, nil, nil, nil, nil)

	base := func() CreateOrderInput {
		return validCreateInput(ActorIdentity{UserID: uuid.New()})
	}

	cases := []struct {
		name   string
		mutate func(input *CreateOrderInput)
	}{
		{"no identity", func(in *CreateOrderInput) { in.Actor = ActorIdentity{}; in.GuestEmail = "" }},
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"zero qty", func(in *CreateOrderInput) { in.Items[0].Qty = 0 }},
		{"negative price", func(in *CreateOrderInput) { in.Items[0].UnitPrice = decimal.RequireFromString("-1") }},
		{"negative total", func(in *CreateOrderInput) { in.Total = decimal.RequireFromString("-10") }},
		{"bad currency", func(in *CreateOrderInput) { in.Currency = enums.Currency("GBP") }},
		{"bad method", func(in *CreateOrderInput) { in.Payment.Method = enums.PaymentMethod("crypto") }},
		{"points without amount", func(in *CreateOrderInput) {
			in.Payment = PaymentInput{Method: enums.PaymentMethodPoints}
		}},
		{"bank with points", func(in *CreateOrderInput) {
			in.Payment = PaymentInput{Method: enums.PaymentMethodBank, BankReference: strPtr("x"), PointsAmount: 10}
		}},
		{"bank without reference", func(in *CreateOrderInput) {
			in.Payment = PaymentInput{Method: enums.PaymentMethodBank}
		}},
		{"mixed without bank half", func(in *CreateOrderInput) {
			in.Payment = PaymentInput{Method: enums.PaymentMethodMixed, PointsAmount: 10}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := base()
			tc.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestCreate_PointsOrderChecksBalanceBeforePersisting(t *testing.T) {
	userID := uuid.New()
	repo := &stubOrdersRepo{}
	repo.createOrder = func(ctx context.Context, order *models.Order) (*models.Order, error) {
		t.Fatalf("no row may be written when the balance check fails")
		return nil, nil
	}
	us := &stubUsers{byID: map[uuid.UUID]*models.User{userID: {ID: userID}}}
	lg := &stubLedger{balance: 50}

	svc := newTestOrderService(t, repo, &stubOutbox{}, us, lg, nil, nil)

	input := validCreateInput(ActorIdentity{UserID: userID})
	input.Payment = PaymentInput{Method: enums.PaymentMethodPoints, PointsAmount: 120}
	_, err := svc.Create(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}
}

func TestCreate_ClaimsReceipt(t *testing.T) {
	userID := uuid.New()
	us := &stubUsers{byID: map[uuid.UUID]*models.User{userID: {ID: userID}}}
	rc := &stubReceipts{}
	lg := &stubLedger{balance: 1000}

	svc := newTestOrderService(t, &stubOrdersRepo{}, &stubOutbox{}, us, lg, rc, nil)

	input := validCreateInput(ActorIdentity{UserID: userID})
	input.Payment = PaymentInput{Method: enums.PaymentMethodPoints, PointsAmount: 100}
	input.ReceiptNumber = "RCP-55"
	created, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(rc.claimed) != 1 || rc.claimed[0] != "RCP-55" {
		t.Fatalf("expected receipt RCP-55 claimed, got %v", rc.claimed)
	}
	if created.Receipt == nil {
		t.Fatal("expected created order to carry the claimed receipt")
	}
	if created.Receipt.ReceiptNumber != "RCP-55" || created.Receipt.Points != 150 {
		t.Fatalf("unexpected receipt on order: %+v", created.Receipt)
	}

	dto := FromModel(created)
	if dto.Receipt == nil || dto.Receipt.ReceiptNumber != "RCP-55" {
		t.Fatalf("expected receipt in transport shape, got %+v", dto.Receipt)
	}
}

func TestTransition_RequiresAdmin(t *testing.T) {
	svc := newTestOrderService(t, &stubOrdersRepo{}, &stubOutbox{}, nil, nil, nil, nil)

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   uuid.New(),
		NewStatus: enums.OrderStatusApproved,
		Actor:     ActorIdentity{UserID: uuid.New()},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestTransition_MissingOrder(t *testing.T) {
	svc := newTestOrderService(t, &stubOrdersRepo{}, &stubOutbox{}, nil, nil, nil, nil)

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   uuid.New(),
		NewStatus: enums.OrderStatusApproved,
		Actor:     ActorIdentity{UserID: uuid.New(), Admin: true},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestTransition_ApprovesAndSettles(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{ID: orderID, UserID: uuid.New(), Status: enums.OrderStatusPending}}
	ob := &stubOutbox{}
	st := &stubSettler{}

	svc := newTestOrderService(t, repo, ob, nil, nil, nil, st)

	order, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusApproved,
		Actor:     ActorIdentity{UserID: uuid.New(), Admin: true},
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if order.Status != enums.OrderStatusApproved {
		t.Fatalf("expected approved, got %q", order.Status)
	}
	if repo.updatedStatus != enums.OrderStatusApproved {
		t.Fatalf("expected persisted status update")
	}
	if st.calls != 1 || st.lastFrom != enums.OrderStatusPending || st.lastTo != enums.OrderStatusApproved {
		t.Fatalf("expected one settlement pending->approved, got calls=%d from=%q to=%q", st.calls, st.lastFrom, st.lastTo)
	}
	if len(ob.emitted) != 1 || ob.emitted[0].EventType != enums.EventOrderApproved {
		t.Fatalf("expected order.approved event, got %+v", ob.emitted)
	}
}

func TestTransition_SameStatusIsNoOp(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{ID: orderID, Status: enums.OrderStatusApproved}}
	repo.updateStatus = func(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
		t.Fatalf("same-status transition must not write")
		return nil
	}
	st := &stubSettler{}

	svc := newTestOrderService(t, repo, &stubOutbox{}, nil, nil, nil, st)

	order, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusApproved,
		Actor:     ActorIdentity{UserID: uuid.New(), Admin: true},
	})
	if err != nil {
		t.Fatalf("same-status transition must succeed: %v", err)
	}
	if order.Status != enums.OrderStatusApproved {
		t.Fatalf("unexpected status %q", order.Status)
	}
	if st.calls != 0 {
		t.Fatalf("same-status transition must not settle")
	}
}

func TestTransition_IllegalEdges(t *testing.T) {
	cases := []struct {
		name string
		from enums.OrderStatus
		to   enums.OrderStatus
	}{
		{"pending to fulfilled", enums.OrderStatusPending, enums.OrderStatusFulfilled},
		{"rejected to approved", enums.OrderStatusRejected, enums.OrderStatusApproved},
		{"fulfilled to pending", enums.OrderStatusFulfilled, enums.OrderStatusPending},
		{"approved to rejected", enums.OrderStatusApproved, enums.OrderStatusRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orderID := uuid.New()
			repo := &stubOrdersRepo{order: &models.Order{ID: orderID, Status: tc.from}}
			svc := newTestOrderService(t, repo, &stubOutbox{}, nil, nil, nil, nil)

			_, err := svc.Transition(context.Background(), TransitionInput{
				OrderID:   orderID,
				NewStatus: tc.to,
				Actor:     ActorIdentity{UserID: uuid.New(), Admin: true},
			})
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("expected STATE_CONFLICT, got %v", err)
			}
		})
	}
}

func TestTransition_SettlementFailureDoesNotFailTransition(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{ID: orderID, Status: enums.OrderStatusPending}}
	st := &stubSettler{settleErr: pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance too low")}

	svc := newTestOrderService(t, repo, &stubOutbox{}, nil, nil, nil, st)

	order, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusApproved,
		Actor:     ActorIdentity{UserID: uuid.New(), Admin: true},
	})
	if err != nil {
		t.Fatalf("settlement failure must not fail the transition: %v", err)
	}
	if order.Status != enums.OrderStatusApproved {
		t.Fatalf("expected committed approval, got %q", order.Status)
	}
	if st.calls != 1 {
		t.Fatalf("expected settlement attempt")
	}
}

func TestAssignRedemptionCodes(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusApproved},
		lineItems: map[uuid.UUID]*models.OrderLineItem{
			itemID: {ID: itemID, OrderID: orderID, Name: "Gift card"},
		},
	}

	svc := newTestOrderService(t, repo, &stubOutbox{}, nil, nil, nil, nil)
	admin := ActorIdentity{UserID: uuid.New(), Admin: true}

	item, err := svc.AssignRedemptionCodes(context.Background(), AssignCodesInput{
		OrderID:    orderID,
		LineItemID: itemID,
		Codes:      []string{"CODE-1", "CODE-2"},
		Actor:      admin,
	})
	if err != nil {
		t.Fatalf("AssignRedemptionCodes error: %v", err)
	}
	if len(item.RedemptionCodes) != 2 {
		t.Fatalf("expected 2 codes on item, got %v", item.RedemptionCodes)
	}
	if len(repo.updatedCodes) != 2 {
		t.Fatalf("expected persisted codes, got %v", repo.updatedCodes)
	}

	// Non-admin callers are rejected.
	_, err = svc.AssignRedemptionCodes(context.Background(), AssignCodesInput{
		OrderID: orderID, LineItemID: itemID, Codes: []string{"C"}, Actor: ActorIdentity{UserID: uuid.New()},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	// Pending orders cannot receive codes.
	repo.order.Status = enums.OrderStatusPending
	_, err = svc.AssignRedemptionCodes(context.Background(), AssignCodesInput{
		OrderID: orderID, LineItemID: itemID, Codes: []string{"C"}, Actor: admin,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}
