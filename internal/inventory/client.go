// Package inventory implements the synchronous HTTP client for the
// remote inventory service.  The remote side owns all reservation
// content; this client only confirms or cancels sets of reservation
// UUIDs for one object, and cleans up local attendee references when
// reservations vanish remotely.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Remote endpoints, relative to the configured base URL.
const (
	cancelPath  = "/v1/reservations/cancel"
	confirmPath = "/v1/reservations/confirm"
)

// DefaultAttendeeBatchSize bounds how many reservation UUIDs a single
// attendee-cleanup query may name, respecting downstream query-size
// limits.
const DefaultAttendeeBatchSize = 100

// maxLoggedBody truncates upstream response bodies in log lines.
const maxLoggedBody = 512

// AttendeeStore is the slice of the attendee repository the client needs
// for reference cleanup and seat-type retagging.
type AttendeeStore interface {
	DeleteReservationReferences(ctx context.Context, reservationUUIDs []string) (int64, error)
	UpdateSeatTypeByReservation(ctx context.Context, seatTypeID string, reservationUUIDs []string) (int64, error)
}

// Client talks to the remote inventory service with a bearer credential.
// Calls are blocking, have no automatic retry, and either fully succeed
// or report an error; callers must treat an error as "no state change
// occurred" and decide themselves whether to abort or keep stale state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	attendees  AttendeeStore
	batchSize  int

	// BeforeBatch and AfterBatch, when set, run around every attendee
	// cleanup batch so dependents can react without being handed the
	// whole id set at once.  AfterBatch additionally receives the number
	// of attendees the batch actually touched.
	BeforeBatch func(reservationUUIDs []string)
	AfterBatch  func(reservationUUIDs []string, updated int64)
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAttendeeBatchSize overrides the attendee cleanup batch size.
// Values below 1 are ignored.
func WithAttendeeBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// New constructs a Client for the given base URL and bearer token.  The
// attendee store may be nil when the attendee cleanup paths are unused.
func New(baseURL, token string, attendees AttendeeStore, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		token:      token,
		attendees:  attendees,
		batchSize:  DefaultAttendeeBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cancel asks the remote service to release the given reservations for
// one object.  An empty id list is a success and never touches the
// network.
func (c *Client) Cancel(ctx context.Context, objectUUID string, reservationIDs []string) error {
	return c.post(ctx, "cancel", cancelPath, objectUUID, reservationIDs)
}

// Confirm marks the given reservations as purchased on the remote
// service.  Same contract as Cancel: empty list is a no-op success,
// anything but a 200 with {"success": true} is an error.
func (c *Client) Confirm(ctx context.Context, objectUUID string, reservationIDs []string) error {
	return c.post(ctx, "confirm", confirmPath, objectUUID, reservationIDs)
}

func (c *Client) post(ctx context.Context, op, path, objectUUID string, reservationIDs []string) error {
	if len(reservationIDs) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"eventId": objectUUID,
		"ids":     reservationIDs,
	})
	if err != nil {
		return fmt.Errorf("inventory %s: marshal request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("inventory %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("inventory: %s failed: %v", op, err)
		return fmt.Errorf("inventory %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if resp.StatusCode != http.StatusOK {
		log.Printf("inventory: %s returned status %d body=%q", op, resp.StatusCode, body)
		return fmt.Errorf("inventory %s: unexpected status %d", op, resp.StatusCode)
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("inventory: %s returned malformed body=%q: %v", op, body, err)
		return fmt.Errorf("inventory %s: malformed response: %w", op, err)
	}
	if !out.Success {
		log.Printf("inventory: %s reported failure body=%q", op, body)
		return fmt.Errorf("inventory %s: remote reported failure", op)
	}
	return nil
}

// DeleteReservationsFromAttendees scrubs references to reservation UUIDs
// that the remote service reports as gone.  It works through the ids in
// fixed-size batches; each batch is idempotent, so a crashed run can be
// repeated safely.  Returns the total number of attendees updated.
func (c *Client) DeleteReservationsFromAttendees(ctx context.Context, reservationUUIDs []string) (int64, error) {
	if len(reservationUUIDs) == 0 || c.attendees == nil {
		return 0, nil
	}
	var total int64
	for start := 0; start < len(reservationUUIDs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(reservationUUIDs) {
			end = len(reservationUUIDs)
		}
		batch := reservationUUIDs[start:end]
		if c.BeforeBatch != nil {
			c.BeforeBatch(batch)
		}
		updated, err := c.attendees.DeleteReservationReferences(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("attendee cleanup batch starting at %d: %w", start, err)
		}
		total += updated
		if c.AfterBatch != nil {
			c.AfterBatch(batch, updated)
		}
	}
	return total, nil
}

// UpdateAttendeesSeatType retags attendees after seats moved to a
// different seat type, keyed seat type id -> reservation UUIDs.  Each
// reservation has at most one attendee; reservations without one are
// silently skipped.  Returns the number of attendees updated.
func (c *Client) UpdateAttendeesSeatType(ctx context.Context, byType map[string][]string) (int64, error) {
	if len(byType) == 0 || c.attendees == nil {
		return 0, nil
	}
	var total int64
	for seatTypeID, ids := range byType {
		if len(ids) == 0 {
			continue
		}
		updated, err := c.attendees.UpdateSeatTypeByReservation(ctx, seatTypeID, ids)
		if err != nil {
			return total, fmt.Errorf("seat type %s: %w", seatTypeID, err)
		}
		total += updated
	}
	return total, nil
}
