package enums

// Provider webhook event types. Only the checkout lifecycle events are
// interpreted; everything else is acknowledged and dropped.
type EventType string

const (
	EventTypeCheckoutCompleted EventType = "checkout.completed"
	EventTypeCheckoutFailed    EventType = "checkout.failed"
	EventTypeCheckoutExpired   EventType = "checkout.expired"
)
