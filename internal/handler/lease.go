// Package handler defines the HTTP handlers for the lease API.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-lease/internal/capacity"
	"github.com/iliyamo/seat-lease/internal/queue"
	"github.com/iliyamo/seat-lease/internal/registry"
)

// EventPublisher emits lease lifecycle events to the broker.  Publishing
// is best effort; a lost event never fails the request that caused it.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.LeaseEvent) error
}

// LeaseConfig carries the timing knobs of the lease coordinator.
type LeaseConfig struct {
	HoldTTL       time.Duration // lifetime of a fresh hold
	CheckoutGrace time.Duration // expiration window granted when pausing for checkout
	CookieTTL     time.Duration // hold cookie lifetime, longer than any lease
	CookieSecure  bool
}

// LeaseHandler is the coordinator behind the four lease actions (start,
// sync, interrupt, pause) plus the checkout-completion confirm.  Each
// action is a short-lived stateless request: it authenticates (via
// middleware), validates parameters, reconciles the cookie registry and
// the session ledger, and calls the remote inventory service for any
// ownership transfer or teardown.  Every remote call happens strictly
// before the local commit it justifies.
type LeaseHandler struct {
	Ledger    registry.Ledger
	Inventory registry.Inventory
	Objects   registry.ObjectResolver
	Capacity  capacity.Provider
	Events    EventPublisher    // optional
	Resolver  registry.Resolver // optional override of the current-hold strategy

	cfg LeaseConfig
	now func() time.Time
}

// NewLeaseHandler constructs a LeaseHandler.  All four core
// collaborators must be non-nil.
func NewLeaseHandler(ledger registry.Ledger, inv registry.Inventory, objects registry.ObjectResolver, capProvider capacity.Provider, cfg LeaseConfig) *LeaseHandler {
	if ledger == nil || inv == nil || objects == nil || capProvider == nil {
		panic("nil dependency passed to NewLeaseHandler")
	}
	return &LeaseHandler{
		Ledger:    ledger,
		Inventory: inv,
		Objects:   objects,
		Capacity:  capProvider,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// leaseParams binds and validates the common request body.  The bool
// reports whether both parameters were present and valid.
func leaseParams(c echo.Context) (token string, objectID uint64, ok bool) {
	var body struct {
		Token    string `json:"token" form:"token"`
		ObjectID uint64 `json:"object_id" form:"object_id"`
	}
	if err := c.Bind(&body); err != nil {
		return "", 0, false
	}
	if body.Token == "" || body.ObjectID == 0 {
		return "", 0, false
	}
	return body.Token, body.ObjectID, true
}

// holdRegistry builds the per-request registry from the hold cookie.
func (h *LeaseHandler) holdRegistry(c echo.Context) *registry.Registry {
	var opts []registry.Option
	if h.Resolver != nil {
		opts = append(opts, registry.WithResolver(h.Resolver))
	}
	return registry.New(registry.ReadEntries(c), h.Ledger, h.Inventory, h.Objects, opts...)
}

func (h *LeaseHandler) writeCookie(c echo.Context, reg *registry.Registry) {
	registry.WriteEntries(c, reg.Entries(), h.cfg.CookieTTL, h.cfg.CookieSecure)
}

func (h *LeaseHandler) publish(ctx context.Context, kind, token string, objectID uint64, reservations int) {
	if h.Events == nil {
		return
	}
	ev := queue.LeaseEvent{
		Kind:             kind,
		Token:            token,
		ObjectID:         objectID,
		ReservationCount: reservations,
		OccurredAt:       h.now().Format(time.RFC3339),
	}
	if err := h.Events.Publish(ctx, ev); err != nil {
		log.Printf("lease: publish %s event failed: %v", kind, err)
	}
}

// Start handles POST /v1/lease/start.  It transfers ownership of the
// object to the request's token (tearing down any previous lease, see
// Registry.CancelPreviousForObject), creates the ledger record with the
// full hold duration and records the entry in the hold cookie.
func (h *LeaseHandler) Start(c echo.Context) error {
	token, objectID, ok := leaseParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token or object id"})
	}
	ctx := c.Request().Context()
	reg := h.holdRegistry(c)
	if err := reg.CancelPreviousForObject(ctx, objectID, token); err != nil {
		log.Printf("lease: start hand-off failed for object %d: %v", objectID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start"})
	}
	now := h.now()
	if err := h.Ledger.Upsert(ctx, token, objectID, now.Add(h.cfg.HoldTTL)); err != nil {
		log.Printf("lease: start upsert failed for object %d: %v", objectID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start"})
	}
	reg.AddEntry(objectID, token)
	h.writeCookie(c, reg)
	return c.JSON(http.StatusOK, echo.Map{
		"seconds_left": int64(h.cfg.HoldTTL / time.Second),
		"timestamp":    now.Unix(),
	})
}

// Sync handles POST /v1/lease/sync, the browser heartbeat.  When the
// remote capacity for the object is exhausted it answers zero seconds
// (the client's signal to treat the hold as void) without touching any
// state; inventory exhaustion is detected reactively here, never
// prevented.  Otherwise it reports the ledger's remaining time.
func (h *LeaseHandler) Sync(c echo.Context) error {
	token, objectID, ok := leaseParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token or object id"})
	}
	ctx := c.Request().Context()
	avail, err := h.Capacity.Available(ctx, objectID)
	if err != nil {
		log.Printf("lease: sync capacity check failed for object %d: %v", objectID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check capacity"})
	}
	now := h.now()
	if avail == 0 {
		return c.JSON(http.StatusOK, echo.Map{"seconds_left": int64(0), "timestamp": now.Unix()})
	}
	left, err := h.Ledger.SecondsLeft(ctx, token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read the session"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seconds_left": left, "timestamp": now.Unix()})
}

// Interrupt handles POST /v1/lease/interrupt, invoked when capacity hit
// zero for the held object.  It cancels the token's reservations
// remotely, and only then deletes the ledger record and the cookie
// entry.  Failure at either point leaves everything in place; the two
// points report distinct errors so operators can tell which side broke.
func (h *LeaseHandler) Interrupt(c echo.Context) error {
	token, objectID, ok := leaseParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token or object id"})
	}
	ctx := c.Request().Context()
	reservationIDs, err := h.Ledger.ReservationUUIDsForToken(ctx, token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel the reservations"})
	}
	if len(reservationIDs) > 0 {
		objectUUID, err := h.Objects.GetOrCreateUUID(ctx, objectID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel the reservations"})
		}
		if err := h.Inventory.Cancel(ctx, objectUUID, reservationIDs); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel the reservations"})
		}
	}
	if err := h.Ledger.Delete(ctx, token); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release the session"})
	}
	reg := h.holdRegistry(c)
	reg.RemoveEntry(objectID, token)
	h.writeCookie(c, reg)
	h.publish(ctx, queue.KindInterrupted, token, objectID, len(reservationIDs))
	return c.JSON(http.StatusOK, echo.Map{
		"seconds_left": int64(0),
		"timestamp":    h.now().Unix(),
		"reason":       "sold_out",
	})
}

// Pause handles POST /v1/lease/pause, called when the buyer proceeds
// toward payment.  It swaps the remaining hold time for the configured
// grace window so the hold survives payment processing.  Every failure
// mode past the capacity check answers zero seconds rather than an
// error: the client then treats the hold as void, which is the safe
// direction when the extension cannot be guaranteed.
func (h *LeaseHandler) Pause(c echo.Context) error {
	token, objectID, ok := leaseParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token or object id"})
	}
	ctx := c.Request().Context()
	avail, err := h.Capacity.Available(ctx, objectID)
	if err != nil {
		log.Printf("lease: pause capacity check failed for object %d: %v", objectID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check capacity"})
	}
	now := h.now()
	if avail == 0 {
		return c.JSON(http.StatusOK, echo.Map{"seconds_left": int64(0), "timestamp": now.Unix()})
	}
	if err := h.Ledger.SetExpiration(ctx, token, now.Add(h.cfg.CheckoutGrace)); err != nil {
		log.Printf("lease: pause expiration write failed for token: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"seconds_left": int64(0), "timestamp": now.Unix()})
	}
	left, err := h.Ledger.SecondsLeft(ctx, token)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"seconds_left": int64(0), "timestamp": now.Unix()})
	}
	return c.JSON(http.StatusOK, echo.Map{"seconds_left": left, "timestamp": now.Unix()})
}

// Confirm handles POST /v1/lease/confirm, the seam checkout calls once
// the order completed.  Every entry's reservation set is confirmed
// remotely (all attempted, no short-circuit); only when all succeeded
// are the ledger records dropped and the cookie cleared.
func (h *LeaseHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	reg := h.holdRegistry(c)
	if err := reg.ConfirmAll(ctx); err != nil {
		log.Printf("lease: confirm failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm the reservations"})
	}
	for objectID, token := range reg.Entries() {
		reservationIDs, err := h.Ledger.ReservationUUIDsForToken(ctx, token)
		if err != nil {
			reservationIDs = nil
		}
		// Already confirmed remotely; a failed local delete is logged,
		// not rolled back.
		if err := h.Ledger.Delete(ctx, token); err != nil {
			log.Printf("lease: confirm cleanup failed for object %d: %v", objectID, err)
		}
		reg.RemoveEntry(objectID, token)
		h.publish(ctx, queue.KindConfirmed, token, objectID, len(reservationIDs))
	}
	h.writeCookie(c, reg)
	return c.JSON(http.StatusOK, echo.Map{
		"seconds_left": int64(0),
		"timestamp":    h.now().Unix(),
	})
}
