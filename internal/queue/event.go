// Package queue defines the lease lifecycle messages exchanged over the
// message broker and the background consumer that records them.
package queue

// Event kinds carried by LeaseEvent.
const (
	KindInterrupted = "interrupted" // hold torn down because inventory ran out
	KindConfirmed   = "confirmed"   // hold's reservations confirmed at checkout
)

// LeaseQueueName is the broker queue carrying lease lifecycle events.
const LeaseQueueName = "lease.events"

// LeaseEvent is published when a lease is interrupted or confirmed.  It
// carries enough for downstream consumers to log or notify without
// querying the ledger.
type LeaseEvent struct {
	Kind             string `json:"kind"`
	Token            string `json:"token"`
	ObjectID         uint64 `json:"object_id"`
	ReservationCount int    `json:"reservation_count"`
	OccurredAt       string `json:"occurred_at"`
}
