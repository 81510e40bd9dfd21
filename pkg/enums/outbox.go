package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderApproved  OutboxEventType = "order.approved"
	EventOrderRejected  OutboxEventType = "order.rejected"
	EventOrderFulfilled OutboxEventType = "order.fulfilled"
	EventPointsAdjusted OutboxEventType = "points.adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderApproved,
	EventOrderRejected,
	EventOrderFulfilled,
	EventPointsAdjusted,
}

// IsValid reports whether the value matches a known event type.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder             OutboxAggregateType = "order"
	AggregateUser              OutboxAggregateType = "user"
	AggregatePointsTransaction OutboxAggregateType = "points_transaction"
)

// EventForOrderStatus maps a completed/decided order status to its event type.
func EventForOrderStatus(status OrderStatus) (OutboxEventType, bool) {
	switch status {
	case OrderStatusApproved:
		return EventOrderApproved, true
	case OrderStatusRejected:
		return EventOrderRejected, true
	case OrderStatusFulfilled:
		return EventOrderFulfilled, true
	default:
		return "", false
	}
}
