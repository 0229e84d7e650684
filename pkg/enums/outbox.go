package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateAbandonedCart   OutboxAggregateType = "abandoned_cart"
	AggregateDrinkingSession OutboxAggregateType = "drinking_session"
)

var validAggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateAbandonedCart, AggregateDrinkingSession}

func (a OutboxAggregateType) IsValid() bool {
	_, err := parse(string(a), validAggregateTypes, "aggregate type")
	return err == nil
}

// OutboxEventType names a domain event published to Pub/Sub.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventCartConverted      OutboxEventType = "cart_converted"
	EventSobrietyAlert      OutboxEventType = "sobriety_alert_raised"
)

var validOutboxEventTypes = []OutboxEventType{EventOrderCreated, EventOrderStatusChanged, EventCartConverted, EventSobrietyAlert}

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool {
	_, err := ParseOutboxEventType(string(e))
	return err == nil
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}

// OutboxDLQErrorReason classifies terminal publish failures.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	DLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
