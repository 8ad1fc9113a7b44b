package repository

import (
	"context"
	"database/sql"
	"strings"
)

// AttendeeRepo provides data access to the attendees table.  Attendees
// reference remote reservations by UUID (0..1 on each side); when the
// inventory service reports that reservations no longer exist, the
// references here must be scrubbed so downstream reads do not chase
// dangling UUIDs.
type AttendeeRepo struct {
	db *sql.DB
}

// NewAttendeeRepo returns an AttendeeRepo bound to the provided database.
func NewAttendeeRepo(db *sql.DB) *AttendeeRepo { return &AttendeeRepo{db: db} }

// DeleteReservationReferences clears the reservation reference (and the
// seat fields that only make sense alongside it) from every attendee
// pointing at one of the given reservation UUIDs.  It returns the number
// of attendees updated.  Running it twice over the same UUIDs changes
// nothing the second time: the WHERE clause no longer matches.
func (r *AttendeeRepo) DeleteReservationReferences(ctx context.Context, reservationUUIDs []string) (int64, error) {
	if len(reservationUUIDs) == 0 {
		return 0, nil
	}
	q := `UPDATE attendees
	      SET reservation_uuid = NULL, seat_type_id = NULL, seat_label = NULL
	      WHERE reservation_uuid IN (` + placeholders(len(reservationUUIDs)) + `)`
	res, err := r.db.ExecContext(ctx, q, toArgs(reservationUUIDs)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateSeatTypeByReservation retags with seatTypeID every attendee whose
// reservation UUID is in the given set.  Reservations with no matching
// attendee simply do not match the WHERE clause and are skipped.  It
// returns the number of attendees updated.
func (r *AttendeeRepo) UpdateSeatTypeByReservation(ctx context.Context, seatTypeID string, reservationUUIDs []string) (int64, error) {
	if len(reservationUUIDs) == 0 {
		return 0, nil
	}
	q := `UPDATE attendees SET seat_type_id = ?
	      WHERE reservation_uuid IN (` + placeholders(len(reservationUUIDs)) + `)`
	args := append([]interface{}{seatTypeID}, toArgs(reservationUUIDs)...)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// placeholders builds "?, ?, ..." for an IN clause with n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(vals []string) []interface{} {
	args := make([]interface{}, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
