package settlement

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/internal/ledger"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type fakeLedger struct {
	postFn     func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error)
	hasEntryFn func(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error)
}

func (f *fakeLedger) Post(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
	if f.postFn != nil {
		return f.postFn(ctx, input)
	}
	return &models.PointsTransaction{
		UserID: input.UserID,
		Delta:  input.Delta,
		Kind:   input.Kind,
	}, true, nil
}

func (f *fakeLedger) HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
	if f.hasEntryFn != nil {
		return f.hasEntryFn(ctx, orderID, kind)
	}
	return false, nil
}

func (f *fakeLedger) BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) EnsureBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	return nil
}

func (f *fakeLedger) Adjust(ctx context.Context, input ledger.AdjustInput) (*models.PointsTransaction, error) {
	return nil, nil
}

func (f *fakeLedger) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsTransaction, string, error) {
	return nil, "", nil
}

func newTestCoordinator(t *testing.T, fl *fakeLedger) *Coordinator {
	t.Helper()

	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	coord, err := NewCoordinator(fl, nil, logg)
	if err != nil {
		t.Fatalf("unexpected coordinator error: %v", err)
	}
	return coord
}

func bankOrder(total string) *models.Order {
	return &models.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Total:  decimal.RequireFromString(total),
		Payment: &models.PaymentSubmission{
			Method: enums.PaymentMethodBank,
		},
	}
}

func pointsOrder(amount int64) *models.Order {
	return &models.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Total:  decimal.RequireFromString("100.00"),
		Payment: &models.PaymentSubmission{
			Method:       enums.PaymentMethodPoints,
			PointsAmount: amount,
		},
	}
}

func TestSettle_BankOrderAwardsFloor(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	var posted *ledger.PostEntryInput
	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		posted = &input
		return &models.PointsTransaction{Delta: input.Delta, Kind: input.Kind}, true, nil
	}

	order := bankOrder("157.49")
	err := coord.Settle(context.Background(), order, enums.OrderStatusPending, enums.OrderStatusApproved)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if posted == nil {
		t.Fatalf("expected a posted entry")
	}
	if posted.Delta != 31 {
		t.Fatalf("expected floor(157.49*0.2)=31 points, got %d", posted.Delta)
	}
	if posted.Kind != enums.PointsEntryKindEarned {
		t.Fatalf("expected earned entry, got %q", posted.Kind)
	}
	if posted.OrderID == nil || *posted.OrderID != order.ID {
		t.Fatalf("expected entry bound to order %s", order.ID)
	}
}

func TestSettle_SmallTotalAwardsNothing(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		t.Fatalf("no entry should be posted for total below 5, got %+v", input)
		return nil, false, nil
	}

	err := coord.Settle(context.Background(), bankOrder("4.99"), enums.OrderStatusPending, enums.OrderStatusApproved)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
}

func TestSettle_PointsOrderRedeems(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	var posted *ledger.PostEntryInput
	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		posted = &input
		return &models.PointsTransaction{Delta: input.Delta, Kind: input.Kind}, true, nil
	}

	err := coord.Settle(context.Background(), pointsOrder(120), enums.OrderStatusPending, enums.OrderStatusApproved)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if posted == nil {
		t.Fatalf("expected a posted entry")
	}
	if posted.Delta != -120 {
		t.Fatalf("expected -120 delta, got %d", posted.Delta)
	}
	if posted.Kind != enums.PointsEntryKindRedeemed {
		t.Fatalf("expected redeemed entry, got %q", posted.Kind)
	}
}

func TestSettle_PointsOrderNeverEarns(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		if input.Kind == enums.PointsEntryKindEarned {
			t.Fatalf("points-funded order must not earn")
		}
		return &models.PointsTransaction{Delta: input.Delta, Kind: input.Kind}, true, nil
	}

	err := coord.Settle(context.Background(), pointsOrder(50), enums.OrderStatusPending, enums.OrderStatusApproved)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
}

func TestSettle_ReentryIsNoOp(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		t.Fatalf("approved to fulfilled must not settle again")
		return nil, false, nil
	}
	fl.hasEntryFn = func(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
		t.Fatalf("approved to fulfilled must not consult the ledger")
		return false, nil
	}

	err := coord.Settle(context.Background(), bankOrder("100.00"), enums.OrderStatusApproved, enums.OrderStatusFulfilled)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
}

func TestSettle_RejectionDoesNotSettle(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		t.Fatalf("rejection must not settle")
		return nil, false, nil
	}

	err := coord.Settle(context.Background(), bankOrder("100.00"), enums.OrderStatusPending, enums.OrderStatusRejected)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
}

func TestSettle_ExistingEntrySkips(t *testing.T) {
	fl := &fakeLedger{}
	coord := newTestCoordinator(t, fl)

	fl.hasEntryFn = func(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
		return true, nil
	}
	fl.postFn = func(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
		t.Fatalf("existing entry must short-circuit the post")
		return nil, false, nil
	}

	err := coord.Settle(context.Background(), bankOrder("100.00"), enums.OrderStatusPending, enums.OrderStatusApproved)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
}

func TestAwardForTotal(t *testing.T) {
	cases := []struct {
		total string
		want  int64
	}{
		{"0", 0},
		{"4.99", 0},
		{"5.00", 1},
		{"10.00", 2},
		{"157.49", 31},
		{"-20.00", 0},
	}

	for _, tc := range cases {
		got := AwardForTotal(decimal.RequireFromString(tc.total))
		if got != tc.want {
			t.Errorf("AwardForTotal(%s) = %d, want %d", tc.total, got, tc.want)
		}
	}
}
