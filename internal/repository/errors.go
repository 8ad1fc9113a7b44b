// Package repository defines the data access layer and the sentinel
// errors shared by its repositories. Sentinels let callers separate
// "this thing does not exist" (often an idempotent success at a higher
// layer) from "the operation itself failed" (must propagate).
package repository

import "errors"

// ErrObjectNotFound is returned when a local object id has no row in
// seat_objects. Hand-off and teardown must fail fast on this error
// before issuing any network call, because without a remote UUID there
// is nothing the inventory service could act on.
var ErrObjectNotFound = errors.New("object not found")
