package event

type EventKind int16

//go:generate stringer -type=EventKind
const (
	UserJoined    EventKind = iota + 1 // [SYSTEM]
	ChatMessage                        // [BUSINESS]
	ErrorReply                         // [SENDER_ONLY]
	DirectReply                        // [SENDER_ONLY]
	CatalogNotice                      // [SYSTEM]
)

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetGroup() string
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// GetRoutingKey returns the bus topic for the event. An empty string
	// tells the dispatcher to skip publishing.
	GetRoutingKey() string
}
