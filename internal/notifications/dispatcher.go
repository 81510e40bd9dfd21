package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/tiendly/tiendly-backend/internal/settlement"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/mailer"
	"github.com/tiendly/tiendly-backend/pkg/outbox"
)

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type userLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Dispatcher turns published domain events into feed notifications and
// transactional emails. Delivery is best effort per channel: a failed email
// does not suppress the feed row, and the combined error drives the worker's
// retry budget.
type Dispatcher struct {
	notifications Service
	orders        orderLoader
	users         userLoader
	mail          mailer.Sender
	logg          *logger.Logger
}

// NewDispatcher builds the event-to-notification fan-out.
func NewDispatcher(svc Service, orders orderLoader, users userLoader, mail mailer.Sender, logg *logger.Logger) (*Dispatcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		notifications: svc,
		orders:        orders,
		users:         users,
		mail:          mail,
		logg:          logg,
	}, nil
}

// Dispatch routes one outbox row to its handlers. Unknown event types are
// acknowledged with a log line so a stale row can never wedge the worker.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("outbox event required")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decoding envelope for event %s: %w", event.ID, err)
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": string(event.EventType),
	})

	switch event.EventType {
	case enums.EventOrderCreated:
		return d.handleOrderCreated(logCtx, envelope.Data)
	case enums.EventOrderApproved, enums.EventOrderRejected, enums.EventOrderFulfilled:
		return d.handleOrderDecision(logCtx, event.EventType, envelope.Data)
	case enums.EventPointsAdjusted:
		return d.handlePointsAdjusted(logCtx, envelope.Data)
	default:
		d.logg.Info(logCtx, "skipping unhandled event type")
		return nil
	}
}

type orderCreatedPayload struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Total         decimal.Decimal     `json:"total"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

type orderStatusPayload struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

type pointsAdjustedPayload struct {
	EntryID uuid.UUID `json:"entry_id"`
	UserID  uuid.UUID `json:"user_id"`
	Delta   int64     `json:"delta"`
	Reason  string    `json:"reason"`
}

// handleOrderCreated feeds the admin review queue. New orders always start
// pending, so the only audience is whoever approves them.
func (d *Dispatcher) handleOrderCreated(ctx context.Context, data json.RawMessage) error {
	var payload orderCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parsing order.created payload: %w", err)
	}
	if payload.OrderID == uuid.Nil {
		return fmt.Errorf("order id missing")
	}

	link := fmt.Sprintf("/admin/orders/%s", payload.OrderID)
	message := fmt.Sprintf("Order %s (%s %s, %s) is awaiting review.",
		payload.OrderID, payload.Total.StringFixed(2), payload.Currency, payload.PaymentMethod)

	_, err := d.notifications.Create(ctx, CreateNotificationInput{
		UserID:  nil,
		Type:    enums.NotificationTypeOrder,
		Title:   "New order submitted",
		Message: message,
		Link:    &link,
	})
	if err != nil {
		return err
	}
	d.logg.Info(ctx, "admin notified of new order")
	return nil
}

// handleOrderDecision notifies the order's owner in-app and by email. The
// snapshot is reloaded rather than trusted from the payload so the email shows
// the current line items and totals.
func (d *Dispatcher) handleOrderDecision(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	var payload orderStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parsing order status payload: %w", err)
	}
	if payload.OrderID == uuid.Nil {
		return fmt.Errorf("order id missing")
	}

	order, err := d.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("loading order %s: %w", payload.OrderID, err)
	}
	user, err := d.users.GetByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("loading user %s: %w", order.UserID, err)
	}

	logCtx := d.logg.WithOrderID(ctx, order.ID.String())

	var errs error
	if eventType != enums.EventOrderFulfilled {
		if err := d.createDecisionNotification(logCtx, eventType, order); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if err := d.mail.SendOrderEmail(ctx, mailKindForEvent(eventType), buildOrderEmail(order, user)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sending %s email: %w", eventType, err))
	}
	if errs != nil {
		return errs
	}
	d.logg.Info(logCtx, "customer notified of order decision")
	return nil
}

func (d *Dispatcher) createDecisionNotification(ctx context.Context, eventType enums.OutboxEventType, order *models.Order) error {
	link := fmt.Sprintf("/orders/%s", order.ID)
	title := "Order approved"
	message := fmt.Sprintf("Your order %s has been approved.", order.ID)
	if eventType == enums.EventOrderRejected {
		title = "Order rejected"
		message = fmt.Sprintf("Your order %s was rejected. Contact support if you already paid.", order.ID)
	}

	_, err := d.notifications.Create(ctx, CreateNotificationInput{
		UserID:  &order.UserID,
		Type:    enums.NotificationTypeOrder,
		Title:   title,
		Message: message,
		Link:    &link,
	})
	return err
}

func (d *Dispatcher) handlePointsAdjusted(ctx context.Context, data json.RawMessage) error {
	var payload pointsAdjustedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parsing points.adjusted payload: %w", err)
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}

	verb := "added to"
	amount := payload.Delta
	if amount < 0 {
		verb = "deducted from"
		amount = -amount
	}
	link := "/points/history"

	_, err := d.notifications.Create(ctx, CreateNotificationInput{
		UserID:  &payload.UserID,
		Type:    enums.NotificationTypePoints,
		Title:   "Points balance updated",
		Message: fmt.Sprintf("%d points were %s your balance: %s", amount, verb, payload.Reason),
		Link:    &link,
	})
	if err != nil {
		return err
	}
	d.logg.Info(d.logg.WithUserID(ctx, payload.UserID.String()), "user notified of points adjustment")
	return nil
}

func mailKindForEvent(eventType enums.OutboxEventType) mailer.Kind {
	switch eventType {
	case enums.EventOrderApproved:
		return mailer.KindOrderApproved
	case enums.EventOrderRejected:
		return mailer.KindOrderRejected
	case enums.EventOrderFulfilled:
		return mailer.KindOrderFulfilled
	default:
		return mailer.KindOrderReceived
	}
}

func buildOrderEmail(order *models.Order, user *models.User) mailer.OrderEmail {
	email := mailer.OrderEmail{
		To:       user.Email,
		OrderID:  order.ID.String(),
		Status:   string(order.Status),
		Total:    order.Total.StringFixed(2),
		Currency: string(order.Currency),
	}
	if order.Payment != nil && order.Payment.Method.UsesPoints() {
		email.PointsSpent = order.Payment.PointsAmount
	} else if order.Status.IsCompleted() {
		email.PointsEarned = settlement.AwardForTotal(order.Total)
	}
	for _, item := range order.Items {
		email.LineItems = append(email.LineItems, formatLineItem(item))
	}
	return email
}

// formatLineItem renders a line item for the email body, carrying any
// redemption codes assigned during fulfillment.
func formatLineItem(item models.OrderLineItem) string {
	line := fmt.Sprintf("%s x%d", item.Name, item.Qty)
	if len(item.RedemptionCodes) > 0 {
		line += fmt.Sprintf(" (codes: %s)", strings.Join(item.RedemptionCodes, ", "))
	}
	return line
}
