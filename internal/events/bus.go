package events

import (
	platformevents "jobflow_backend/platform/events"
	"jobflow_backend/platform/logger"
)

// InMemoryBus is the bus both binaries run; the API publishes domain events on
// it and the scheduler re-publishes task payloads on it.
type InMemoryBus = platformevents.InMemoryBus

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// SubscribeAll registers handler for each listed event.
func SubscribeAll(bus Bus, handler Handler, evts ...Event) {
	platformevents.SubscribeAll(bus, handler, evts...)
}
