package model

import (
	"sort"
	"time"
)

// SessionRecord is the server-side ledger entry for one hold token.  A
// record exists exactly as long as a hold is believed live for that
// token.  Reservations groups the remote reservation UUIDs by the ticket
// they were picked for; the reservation content itself lives in the
// remote inventory service and is referenced here by UUID only.
//
// ExpiresAt may be extended (sync, pause-for-checkout) but replacing the
// reservation map never touches it; restarting seat picking must not
// restart the countdown.
type SessionRecord struct {
	Token        string              // seat_sessions.token
	ObjectID     uint64              // seat_sessions.object_id
	ExpiresAt    time.Time           // seat_sessions.expires_at (UTC)
	Reservations map[string][]string // seat_sessions.reservations, ticket id -> reservation UUIDs
}

// SecondsLeft returns the seconds remaining until expiration, clamped
// at zero.  Rounded up: expirations land on whole DATETIME seconds while
// now carries sub-second precision, and a hold granted 23s ago must
// report 23 until a full second has actually passed.
func (r *SessionRecord) SecondsLeft(now time.Time) int64 {
	d := r.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// ReservationUUIDs flattens the reservation map into a single slice.
// Ticket ids are visited in sorted order so the result is deterministic.
func (r *SessionRecord) ReservationUUIDs() []string {
	if len(r.Reservations) == 0 {
		return []string{}
	}
	ticketIDs := make([]string, 0, len(r.Reservations))
	for id := range r.Reservations {
		ticketIDs = append(ticketIDs, id)
	}
	sort.Strings(ticketIDs)
	uuids := make([]string, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		uuids = append(uuids, r.Reservations[id]...)
	}
	return uuids
}
