package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
)

// ActorIdentity describes who is calling into the order service.
type ActorIdentity struct {
	UserID uuid.UUID
	Email  string
	Admin  bool
}

// LineItemInput is the product snapshot captured at order time.
type LineItemInput struct {
	Name        string
	ProductType string
	Category    string
	UnitPrice   decimal.Decimal
	Qty         int
	Metadata    map[string]string
}

// PaymentInput is the tagged payment shape submitted with the order.
type PaymentInput struct {
	Method        enums.PaymentMethod
	BankReference *string
	ProofURL      *string
	PointsAmount  int64
}

// CreateOrderInput carries everything required to persist a new order graph.
type CreateOrderInput struct {
	Actor ActorIdentity
	// GuestEmail resolves the owner when the caller is not authenticated.
	GuestEmail     string
	GuestFirstName string
	GuestLastName  string
	Currency       enums.Currency
	Total          decimal.Decimal
	TotalUSD       decimal.Decimal
	Items          []LineItemInput
	Payment        PaymentInput
	// ReceiptNumber optionally ties a points receipt to this order.
	ReceiptNumber string
}

// TransitionInput captures an admin-driven status change.
type TransitionInput struct {
	OrderID   uuid.UUID
	NewStatus enums.OrderStatus
	Actor     ActorIdentity
}

// AssignCodesInput carries the fulfillment codes for a line item.
type AssignCodesInput struct {
	OrderID    uuid.UUID
	LineItemID uuid.UUID
	Codes      []string
	Actor      ActorIdentity
}

// OrderCreatedEvent is the outbox payload emitted when an order is placed.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Total         decimal.Decimal     `json:"total"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent is the outbox payload emitted on a transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// LineItemDTO is the transport shape of a line item snapshot.
type LineItemDTO struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	ProductType     string            `json:"product_type"`
	Category        string            `json:"category"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	Qty             int               `json:"qty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	RedemptionCodes []string          `json:"redemption_codes,omitempty"`
}

// PaymentDTO is the transport shape of the payment submission.
type PaymentDTO struct {
	Method        enums.PaymentMethod `json:"method"`
	BankReference *string             `json:"bank_reference,omitempty"`
	ProofURL      *string             `json:"proof_url,omitempty"`
	PointsAmount  int64               `json:"points_amount,omitempty"`
}

// ReceiptDTO is the transport shape of the points receipt funding the order.
type ReceiptDTO struct {
	ID            uuid.UUID       `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	Points        int64           `json:"points"`
	ValueUSD      decimal.Decimal `json:"value_usd"`
	Verified      bool            `json:"verified"`
}

// OrderDTO is the full order graph returned by the API.
type OrderDTO struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    enums.OrderStatus `json:"status"`
	Currency  enums.Currency    `json:"currency"`
	Total     decimal.Decimal   `json:"total"`
	TotalUSD  decimal.Decimal   `json:"total_usd"`
	Items     []LineItemDTO     `json:"items"`
	Payment   *PaymentDTO       `json:"payment,omitempty"`
	Receipt   *ReceiptDTO       `json:"receipt,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FromModel converts the persisted order graph into its transport shape.
func FromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}

	dto := &OrderDTO{
		ID:        order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Currency:  order.Currency,
		Total:     order.Total,
		TotalUSD:  order.TotalUSD,
		Items:     make([]LineItemDTO, 0, len(order.Items)),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:              item.ID,
			Name:            item.Name,
			ProductType:     item.ProductType,
			Category:        item.Category,
			UnitPrice:       item.UnitPrice,
			Qty:             item.Qty,
			Metadata:        item.Metadata,
			RedemptionCodes: item.RedemptionCodes,
		})
	}
	if order.Payment != nil {
		dto.Payment = &PaymentDTO{
			Method:        order.Payment.Method,
			BankReference: order.Payment.BankReference,
			ProofURL:      order.Payment.ProofURL,
			PointsAmount:  order.Payment.PointsAmount,
		}
	}
	if order.Receipt != nil {
		dto.Receipt = &ReceiptDTO{
			ID:            order.Receipt.ID,
			ReceiptNumber: order.Receipt.ReceiptNumber,
			Points:        order.Receipt.Points,
			ValueUSD:      order.Receipt.ValueUSD,
			Verified:      order.Receipt.Verified,
		}
	}
	return dto
}
