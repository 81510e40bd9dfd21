package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/internal/ledger"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/metrics"
)

// earnRate awards 2 points per 10 units of the order total.
var earnRate = decimal.NewFromFloat(0.2)

// Coordinator applies the points consequence of an order reaching a completed
// status. It runs after the status change has committed; its failures are the
// caller's to report, never to roll back.
type Coordinator struct {
	ledger  ledger.Service
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
}

// NewCoordinator wires a settlement coordinator.
func NewCoordinator(ledgerSvc ledger.Service, m *metrics.SettlementMetrics, logg *logger.Logger) (*Coordinator, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Coordinator{ledger: ledgerSvc, metrics: m, logg: logg}, nil
}

// Settle posts the order's points outcome exactly once. Re-entry into a later
// completed status (approved to fulfilled) is a no-op, as is any transition
// that does not complete the order.
func (c *Coordinator) Settle(ctx context.Context, order *models.Order, from, to enums.OrderStatus) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	if !to.IsCompleted() || from.IsCompleted() {
		return nil
	}

	ctx = c.logg.WithOrderID(ctx, order.ID.String())

	if order.Payment != nil && order.Payment.Method.UsesPoints() {
		return c.redeem(ctx, order)
	}
	return c.award(ctx, order)
}

func (c *Coordinator) redeem(ctx context.Context, order *models.Order) error {
	amount := order.Payment.PointsAmount
	if amount <= 0 {
		return nil
	}

	kind := enums.PointsEntryKindRedeemed
	has, err := c.ledger.HasEntry(ctx, order.ID, kind)
	if err != nil {
		c.metrics.IncFailure(string(kind))
		return err
	}
	if has {
		c.metrics.IncSkipped(string(kind))
		return nil
	}

	orderID := order.ID
	entry, applied, err := c.ledger.Post(ctx, ledger.PostEntryInput{
		UserID:      order.UserID,
		OrderID:     &orderID,
		Delta:       -amount,
		Kind:        kind,
		Description: fmt.Sprintf("points redeemed on order %s", order.ID),
	})
	if err != nil {
		c.metrics.IncFailure(string(kind))
		return err
	}
	if !applied {
		c.metrics.IncSkipped(string(kind))
		return nil
	}

	c.metrics.IncApplied(string(kind))
	c.logg.Info(c.logg.WithField(ctx, "delta", entry.Delta), "points redeemed")
	return nil
}

func (c *Coordinator) award(ctx context.Context, order *models.Order) error {
	points := AwardForTotal(order.Total)
	if points <= 0 {
		return nil
	}

	kind := enums.PointsEntryKindEarned
	has, err := c.ledger.HasEntry(ctx, order.ID, kind)
	if err != nil {
		c.metrics.IncFailure(string(kind))
		return err
	}
	if has {
		c.metrics.IncSkipped(string(kind))
		return nil
	}

	orderID := order.ID
	entry, applied, err := c.ledger.Post(ctx, ledger.PostEntryInput{
		UserID:      order.UserID,
		OrderID:     &orderID,
		Delta:       points,
		Kind:        kind,
		Description: fmt.Sprintf("points earned on order %s", order.ID),
	})
	if err != nil {
		c.metrics.IncFailure(string(kind))
		return err
	}
	if !applied {
		c.metrics.IncSkipped(string(kind))
		return nil
	}

	c.metrics.IncApplied(string(kind))
	c.logg.Info(c.logg.WithField(ctx, "delta", entry.Delta), "points earned")
	return nil
}

// AwardForTotal computes the earn award for a bank-paid order total:
// floor(total * 0.2), so 2 points per 10 currency units and zero below 5.
func AwardForTotal(total decimal.Decimal) int64 {
	if total.IsNegative() {
		return 0
	}
	return total.Mul(earnRate).Floor().IntPart()
}
