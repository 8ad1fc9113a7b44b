package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/seat-lease/internal/model"
)

// SessionLedgerRepo provides data access to the seat_sessions table, the
// authoritative record of which hold tokens are live, which object each
// one holds and when it expires.  All timestamps are stored and compared
// in UTC.  A row exists iff a hold is currently believed live for that
// token; teardown deletes the row entirely.
type SessionLedgerRepo struct {
	db *sql.DB
}

// NewSessionLedgerRepo returns a SessionLedgerRepo bound to the provided database.
func NewSessionLedgerRepo(db *sql.DB) *SessionLedgerRepo { return &SessionLedgerRepo{db: db} }

// Get loads the full session record for a token.  A missing record is
// not an error: it returns (nil, nil) so callers can treat absence as
// the idempotent case it usually is.
func (r *SessionLedgerRepo) Get(ctx context.Context, token string) (*model.SessionRecord, error) {
	const q = `SELECT token, object_id, expires_at, reservations FROM seat_sessions WHERE token = ?`
	var (
		rec model.SessionRecord
		raw sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, token).Scan(&rec.Token, &rec.ObjectID, &rec.ExpiresAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Reservations = map[string][]string{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &rec.Reservations); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// Upsert creates or replaces the (token, object, expiration) triple.  It
// deliberately leaves the reservations column alone so that re-upserting
// an existing token does not discard the reservation map.
func (r *SessionLedgerRepo) Upsert(ctx context.Context, token string, objectID uint64, expiresAt time.Time) error {
	const q = `INSERT INTO seat_sessions (token, object_id, expires_at)
	           VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE object_id = VALUES(object_id), expires_at = VALUES(expires_at)`
	_, err := r.db.ExecContext(ctx, q, token, objectID, expiresAt.UTC())
	return err
}

// UpdateReservations replaces the token's reservation map wholesale.  It
// never touches expires_at: clearing or re-writing the map is how a
// restarted seat-picking round is recorded, and the countdown must keep
// running across it.  Updating a token with no row affects nothing and
// is a success.
func (r *SessionLedgerRepo) UpdateReservations(ctx context.Context, token string, reservations map[string][]string) error {
	if reservations == nil {
		reservations = map[string][]string{}
	}
	raw, err := json.Marshal(reservations)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE seat_sessions SET reservations = ? WHERE token = ?`,
		string(raw), token)
	return err
}

// ReservationsForToken returns the reservation map for a token, or an
// empty map when the token has no record.
func (r *SessionLedgerRepo) ReservationsForToken(ctx context.Context, token string) (map[string][]string, error) {
	rec, err := r.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return map[string][]string{}, nil
	}
	return rec.Reservations, nil
}

// ReservationUUIDsForToken returns every reservation UUID held under the
// token as a flat slice, in deterministic (ticket id sorted) order.
func (r *SessionLedgerRepo) ReservationUUIDsForToken(ctx context.Context, token string) ([]string, error) {
	rec, err := r.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []string{}, nil
	}
	return rec.ReservationUUIDs(), nil
}

// SetExpiration overwrites the token's expiration timestamp.  This is
// the only path that extends a lease; it is used by pause-for-checkout
// to grant the grace window.
func (r *SessionLedgerRepo) SetExpiration(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seat_sessions SET expires_at = ? WHERE token = ?`,
		expiresAt.UTC(), token)
	return err
}

// SecondsLeft returns max(0, expiresAt-now) in whole seconds, or 0 when
// no record exists for the token.
func (r *SessionLedgerRepo) SecondsLeft(ctx context.Context, token string) (int64, error) {
	rec, err := r.Get(ctx, token)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.SecondsLeft(time.Now().UTC()), nil
}

// Delete removes the token's record entirely.  Deleting a token that
// has no record is a success, which lets clients retry teardown without
// special-casing "already gone".
func (r *SessionLedgerRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM seat_sessions WHERE token = ?`, token)
	return err
}
