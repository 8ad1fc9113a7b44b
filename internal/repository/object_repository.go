package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// ObjectRepo maps local object ids to the remote inventory service's
// identifier space via the seat_objects table.  The remote service only
// understands UUIDs, so every confirm/cancel call goes through this
// translation first.
type ObjectRepo struct {
	db *sql.DB
}

// NewObjectRepo returns an ObjectRepo bound to the provided database.
func NewObjectRepo(db *sql.DB) *ObjectRepo { return &ObjectRepo{db: db} }

// GetOrCreateUUID returns the remote UUID for a local object id, minting
// and storing one when the object exists but has no UUID yet.  An
// unknown object id yields ErrObjectNotFound; callers must treat that as
// "cannot operate on this object" and fail before any network call.
func (r *ObjectRepo) GetOrCreateUUID(ctx context.Context, objectID uint64) (string, error) {
	var remote sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT remote_uuid FROM seat_objects WHERE id = ?`, objectID).Scan(&remote)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrObjectNotFound
	}
	if err != nil {
		return "", err
	}
	if remote.Valid && remote.String != "" {
		return remote.String, nil
	}
	minted := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`UPDATE seat_objects SET remote_uuid = ? WHERE id = ?`, minted, objectID); err != nil {
		return "", err
	}
	return minted, nil
}
