package enums

// EventType names a domain event stored in the outbox.
type EventType string

const (
	EventCheckoutSucceeded     EventType = "checkout.succeeded"
	EventCheckoutFailed        EventType = "checkout.failed"
	EventEntitlementGranted    EventType = "entitlement.granted"
	EventSubscriptionActivated EventType = "subscription.activated"
	EventSubscriptionExpired   EventType = "subscription.expired"
)

// AggregateType names the aggregate an outbox event belongs to.
type AggregateType string

const (
	AggregateTransaction  AggregateType = "checkout_transaction"
	AggregateSubscription AggregateType = "subscription"
	AggregateUser         AggregateType = "user"
)
