package outbox

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the state change it reports. The Kafka topic name
// equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
