// Package registry tracks the browser's hold entries, the cookie-held
// `{objectId: token}` pairs, and implements the ownership hand-off that
// guarantees at most one live lease per object.  A Registry is built per
// request from the decoded cookie; the caller writes the (possibly
// mutated) entries back into the cookie afterwards.
package registry

import (
	"context"
	"errors"
	"time"
)

// Ledger is the slice of the session ledger the registry and the lease
// coordinator depend on.  Implemented by repository.SessionLedgerRepo.
type Ledger interface {
	Upsert(ctx context.Context, token string, objectID uint64, expiresAt time.Time) error
	UpdateReservations(ctx context.Context, token string, reservations map[string][]string) error
	ReservationsForToken(ctx context.Context, token string) (map[string][]string, error)
	ReservationUUIDsForToken(ctx context.Context, token string) ([]string, error)
	SetExpiration(ctx context.Context, token string, expiresAt time.Time) error
	SecondsLeft(ctx context.Context, token string) (int64, error)
	Delete(ctx context.Context, token string) error
}

// Inventory is the remote confirm/cancel surface. Implemented by inventory.Client.
type Inventory interface {
	Cancel(ctx context.Context, objectUUID string, reservationIDs []string) error
	Confirm(ctx context.Context, objectUUID string, reservationIDs []string) error
}

// ObjectResolver translates local object ids into the remote service's
// UUID space. Implemented by repository.ObjectRepo.
type ObjectResolver interface {
	GetOrCreateUUID(ctx context.Context, objectID uint64) (string, error)
}

// ErrConfirmFailed reports that at least one entry's confirmation failed.
// All entries are still attempted before this is returned.
var ErrConfirmFailed = errors.New("one or more reservations failed to confirm")

// Registry holds the current browser's entries together with the
// collaborators needed to reconcile them against the ledger and the
// remote service.
type Registry struct {
	entries   map[uint64]string
	ledger    Ledger
	inventory Inventory
	objects   ObjectResolver
	resolver  Resolver
}

// Option customises a Registry.
type Option func(*Registry)

// WithResolver overrides the strategy that picks the single "current"
// hold out of several concurrent entries.
func WithResolver(res Resolver) Option {
	return func(r *Registry) {
		if res != nil {
			r.resolver = res
		}
	}
}

// New builds a Registry over the given entries.  The entries map is
// copied, so the caller's map is never mutated behind its back.
func New(entries map[uint64]string, ledger Ledger, inv Inventory, objects ObjectResolver, opts ...Option) *Registry {
	own := make(map[uint64]string, len(entries))
	for objectID, token := range entries {
		own[objectID] = token
	}
	r := &Registry{
		entries:   own,
		ledger:    ledger,
		inventory: inv,
		objects:   objects,
	}
	r.resolver = &EarliestExpiring{Ledger: ledger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entries returns a copy of the current `{objectId: token}` set.
func (r *Registry) Entries() map[uint64]string {
	out := make(map[uint64]string, len(r.entries))
	for objectID, token := range r.entries {
		out[objectID] = token
	}
	return out
}

// AddEntry records a hold for an object, overwriting any entry already
// present for that object.
func (r *Registry) AddEntry(objectID uint64, token string) {
	r.entries[objectID] = token
}

// RemoveEntry deletes the entry only when the stored token matches.  A
// mismatch is a no-op success: a stale tab must not be able to delete a
// newer hold it does not own.
func (r *Registry) RemoveEntry(objectID uint64, token string) {
	if current, ok := r.entries[objectID]; ok && current == token {
		delete(r.entries, objectID)
	}
}

// Current resolves the single active hold shown to the user, delegating
// to the configured resolution strategy (earliest expiring by default).
func (r *Registry) Current(ctx context.Context) (token string, objectID uint64, ok bool, err error) {
	return r.resolver.Resolve(ctx, r.entries)
}

// CancelPreviousForObject transfers ownership of an object to newToken.
//
// Any reservations recorded for the loser are cancelled remotely first;
// only when the remote cancel succeeds is local state touched.  That
// ordering is the whole correctness story: a crash mid-operation can
// leave an orphaned remote cancellation but never a lease that looks
// live locally while its reservations are gone, or vice versa.
//
// When the object is already bound to newToken (the same browser
// restarting seat picking), only the reservation map is cleared and the
// expiration is preserved; re-entering the seat map does not restart
// the countdown.  When a different token held the object, its ledger
// record and registry entry are torn down completely; the caller adds
// the new entry afterwards.
func (r *Registry) CancelPreviousForObject(ctx context.Context, objectID uint64, newToken string) error {
	oldToken, hadEntry := r.entries[objectID]
	token := newToken
	if hadEntry {
		token = oldToken
	}
	reservationIDs, err := r.ledger.ReservationUUIDsForToken(ctx, token)
	if err != nil {
		return err
	}
	if len(reservationIDs) > 0 {
		objectUUID, err := r.objects.GetOrCreateUUID(ctx, objectID)
		if err != nil {
			return err
		}
		if err := r.inventory.Cancel(ctx, objectUUID, reservationIDs); err != nil {
			return err
		}
	}
	if hadEntry && oldToken != newToken {
		if err := r.ledger.Delete(ctx, oldToken); err != nil {
			return err
		}
		r.RemoveEntry(objectID, oldToken)
		return nil
	}
	return r.ledger.UpdateReservations(ctx, token, map[string][]string{})
}

// ConfirmAll confirms the full reservation set of every entry.  Every
// entry is attempted unconditionally (a failure on one must not leave
// later entries unconfirmed) and ErrConfirmFailed is returned when any
// single confirmation failed.
func (r *Registry) ConfirmAll(ctx context.Context) error {
	failed := false
	for objectID, token := range r.entries {
		reservationIDs, err := r.ledger.ReservationUUIDsForToken(ctx, token)
		if err != nil {
			failed = true
			continue
		}
		if len(reservationIDs) == 0 {
			continue
		}
		objectUUID, err := r.objects.GetOrCreateUUID(ctx, objectID)
		if err != nil {
			failed = true
			continue
		}
		if err := r.inventory.Confirm(ctx, objectUUID, reservationIDs); err != nil {
			failed = true
		}
	}
	if failed {
		return ErrConfirmFailed
	}
	return nil
}

// TicketReservations returns the reservation UUIDs held for one ticket
// of the entry bound to objectID, or nil when no entry, record or ticket
// matches.
func (r *Registry) TicketReservations(ctx context.Context, objectID uint64, ticketID string) ([]string, error) {
	token, ok := r.entries[objectID]
	if !ok {
		return nil, nil
	}
	reservations, err := r.ledger.ReservationsForToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return reservations[ticketID], nil
}
