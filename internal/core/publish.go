package core

import "github.com/dkeye/Rendezvous/internal/domain"

// Delivery is a frame addressed to one registered channel. Deliveries are
// collected under the registry lock and sent after it is released.
type Delivery struct {
	To    domain.Identity
	Conn  SignalConnection
	Frame Frame
}

// PublishResult reports fan-out delivery stats to the orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []Delivery
}
