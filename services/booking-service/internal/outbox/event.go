package outbox

// Event is a domain event staged in the outbox table inside the same
// transaction as the state change it describes. The publisher moves it to
// Kafka afterwards, so delivery is at-least-once.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateBooking = "booking"

	EventBookingCreated  = "clinic.booking.created.v1"
	EventBookingReleased = "clinic.booking.released.v1"
)
