package worker

import (
	"github.com/spec-kit/maintenance-escrow/internal/events"
)

// StartEventRelay attaches the Kafka relay to the dispatcher so every
// domain event is also published to the broker. A nil relay keeps events
// in-process only.
func StartEventRelay(dispatcher events.Dispatcher, relay *events.KafkaRelay) {
	if dispatcher == nil || relay == nil {
		return
	}
	relay.Register(dispatcher)
}
