package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-lease/internal/model"
	"github.com/iliyamo/seat-lease/internal/queue"
	"github.com/iliyamo/seat-lease/internal/registry"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type ledgerRec struct {
	objectID     uint64
	expiresAt    time.Time
	reservations map[string][]string
}

type fakeLedger struct {
	recs       map[string]*ledgerRec
	failUpsert bool
	failSetExp bool
	failDelete bool
	setExps    []string
}

func newFakeLedger() *fakeLedger { return &fakeLedger{recs: map[string]*ledgerRec{}} }

func (f *fakeLedger) put(token string, objectID uint64, expiresAt time.Time, res map[string][]string) {
	f.recs[token] = &ledgerRec{objectID: objectID, expiresAt: expiresAt, reservations: res}
}

func (f *fakeLedger) Upsert(_ context.Context, token string, objectID uint64, expiresAt time.Time) error {
	if f.failUpsert {
		return errors.New("ledger write failed")
	}
	if rec, ok := f.recs[token]; ok {
		rec.objectID, rec.expiresAt = objectID, expiresAt
		return nil
	}
	f.put(token, objectID, expiresAt, map[string][]string{})
	return nil
}

func (f *fakeLedger) UpdateReservations(_ context.Context, token string, res map[string][]string) error {
	if rec, ok := f.recs[token]; ok {
		rec.reservations = res
	}
	return nil
}

func (f *fakeLedger) ReservationsForToken(_ context.Context, token string) (map[string][]string, error) {
	if rec, ok := f.recs[token]; ok {
		return rec.reservations, nil
	}
	return map[string][]string{}, nil
}

func (f *fakeLedger) ReservationUUIDsForToken(_ context.Context, token string) ([]string, error) {
	rec, ok := f.recs[token]
	if !ok {
		return []string{}, nil
	}
	m := model.SessionRecord{Reservations: rec.reservations}
	return m.ReservationUUIDs(), nil
}

func (f *fakeLedger) SetExpiration(_ context.Context, token string, expiresAt time.Time) error {
	if f.failSetExp {
		return errors.New("ledger write failed")
	}
	f.setExps = append(f.setExps, token)
	if rec, ok := f.recs[token]; ok {
		rec.expiresAt = expiresAt
	}
	return nil
}

func (f *fakeLedger) SecondsLeft(_ context.Context, token string) (int64, error) {
	rec, ok := f.recs[token]
	if !ok {
		return 0, nil
	}
	m := model.SessionRecord{ExpiresAt: rec.expiresAt}
	return m.SecondsLeft(testNow), nil
}

func (f *fakeLedger) Delete(_ context.Context, token string) error {
	if f.failDelete {
		return errors.New("ledger delete failed")
	}
	delete(f.recs, token)
	return nil
}

type fakeInventory struct {
	cancels    int
	confirms   int
	cancelErr  error
	confirmErr error
}

func (f *fakeInventory) Cancel(_ context.Context, _ string, _ []string) error {
	f.cancels++
	return f.cancelErr
}

func (f *fakeInventory) Confirm(_ context.Context, _ string, _ []string) error {
	f.confirms++
	return f.confirmErr
}

type fakeObjects struct{}

func (fakeObjects) GetOrCreateUUID(_ context.Context, objectID uint64) (string, error) {
	if objectID == 404 {
		return "", errors.New("object not found")
	}
	return "uuid-obj", nil
}

type fakeCapacity struct {
	avail int
	err   error
}

func (f *fakeCapacity) Available(_ context.Context, _ uint64) (int, error) { return f.avail, f.err }

type fakePublisher struct {
	events []queue.LeaseEvent
}

func (f *fakePublisher) Publish(_ context.Context, ev queue.LeaseEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type deps struct {
	ledger    *fakeLedger
	inv       *fakeInventory
	capacity  *fakeCapacity
	publisher *fakePublisher
}

func newTestHandler() (*LeaseHandler, *deps) {
	d := &deps{
		ledger:    newFakeLedger(),
		inv:       &fakeInventory{},
		capacity:  &fakeCapacity{avail: 10},
		publisher: &fakePublisher{},
	}
	h := NewLeaseHandler(d.ledger, d.inv, fakeObjects{}, d.capacity, LeaseConfig{
		HoldTTL:       300 * time.Second,
		CheckoutGrace: 23 * time.Second,
		CookieTTL:     24 * time.Hour,
		CookieSecure:  true,
	})
	h.Events = d.publisher
	h.now = func() time.Time { return testNow }
	return h, d
}

func holdCookie(t *testing.T, entries map[uint64]string) *http.Cookie {
	t.Helper()
	held := make([]model.HoldEntry, 0, len(entries))
	for objectID, token := range entries {
		held = append(held, model.HoldEntry{ObjectID: objectID, Token: token})
	}
	raw, err := json.Marshal(held)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: registry.CookieName, Value: base64.RawURLEncoding.EncodeToString(raw)}
}

func doLease(t *testing.T, fn echo.HandlerFunc, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	if err := fn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %s", rec.Body.String())
	}
	return rec, out
}

func writtenEntries(t *testing.T, rec *httptest.ResponseRecorder) map[uint64]string {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name != registry.CookieName {
			continue
		}
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		return registry.ReadEntries(e.NewContext(req, httptest.NewRecorder()))
	}
	return nil
}

func TestStartCreatesSession(t *testing.T) {
	h, d := newTestHandler()
	rec, out := doLease(t, h.Start, `{"token":"t1","object_id":23}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if out["seconds_left"].(float64) != 300 {
		t.Fatalf("seconds_left = %v, want 300", out["seconds_left"])
	}
	if int64(out["timestamp"].(float64)) != testNow.Unix() {
		t.Fatalf("timestamp = %v", out["timestamp"])
	}
	lrec := d.ledger.recs["t1"]
	if lrec == nil || lrec.objectID != 23 {
		t.Fatalf("ledger record = %+v", lrec)
	}
	if !lrec.expiresAt.Equal(testNow.Add(300 * time.Second)) {
		t.Fatalf("expiresAt = %v", lrec.expiresAt)
	}
	if got := writtenEntries(t, rec); got[23] != "t1" {
		t.Fatalf("cookie entries = %v", got)
	}
}

func TestStartTakesOverPreviousToken(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.put("old", 23, testNow.Add(100*time.Second), map[string][]string{"tk": {"uuid-1"}})

	rec, _ := doLease(t, h.Start, `{"token":"new","object_id":23}`, holdCookie(t, map[uint64]string{23: "old"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if d.inv.cancels != 1 {
		t.Fatalf("cancels = %d, want old reservations cancelled", d.inv.cancels)
	}
	if _, ok := d.ledger.recs["old"]; ok {
		t.Fatal("old session survived takeover")
	}
	if got := writtenEntries(t, rec); got[23] != "new" {
		t.Fatalf("cookie entries = %v", got)
	}
}

func TestStartHandOffFailure(t *testing.T) {
	h, d := newTestHandler()
	d.inv.cancelErr = errors.New("upstream 500")
	d.ledger.put("old", 23, testNow.Add(100*time.Second), map[string][]string{"tk": {"uuid-1"}})

	rec, out := doLease(t, h.Start, `{"token":"new","object_id":23}`, holdCookie(t, map[uint64]string{23: "old"}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["error"] != "failed to start" {
		t.Fatalf("error = %v", out["error"])
	}
	if _, ok := d.ledger.recs["old"]; !ok {
		t.Fatal("old session mutated despite failed hand-off")
	}
}

func TestStartValidation(t *testing.T) {
	h, _ := newTestHandler()
	for _, body := range []string{`{}`, `{"token":"t1"}`, `{"object_id":23}`, `{"token":"","object_id":0}`} {
		rec, _ := doLease(t, h.Start, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSyncSoldOut(t *testing.T) {
	h, d := newTestHandler()
	d.capacity.avail = 0
	res := map[string][]string{"tk": {"uuid-1"}}
	exp := testNow.Add(100 * time.Second)
	d.ledger.put("t1", 23, exp, res)

	rec, out := doLease(t, h.Sync, `{"token":"t1","object_id":23}`)
	if rec.Code != http.StatusOK || out["seconds_left"].(float64) != 0 {
		t.Fatalf("status=%d seconds_left=%v", rec.Code, out["seconds_left"])
	}
	// sold-out sync reports zero but never mutates
	lrec := d.ledger.recs["t1"]
	if lrec == nil || !lrec.expiresAt.Equal(exp) || !reflect.DeepEqual(lrec.reservations, res) {
		t.Fatalf("ledger mutated: %+v", lrec)
	}
}

func TestSyncReportsRemainingTime(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), nil)

	_, out := doLease(t, h.Sync, `{"token":"t1","object_id":23}`)
	if out["seconds_left"].(float64) != 100 {
		t.Fatalf("seconds_left = %v, want 100", out["seconds_left"])
	}
}

func TestSyncCapacityError(t *testing.T) {
	h, d := newTestHandler()
	d.capacity.err = errors.New("capacity check: unexpected status 502")

	rec, out := doLease(t, h.Sync, `{"token":"t1","object_id":23}`)
	if rec.Code != http.StatusInternalServerError || out["error"] != "failed to check capacity" {
		t.Fatalf("status=%d error=%v", rec.Code, out["error"])
	}
}

func TestInterruptCancelsAndTearsDown(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), map[string][]string{"tk": {"uuid-1", "uuid-2"}})

	rec, out := doLease(t, h.Interrupt, `{"token":"t1","object_id":23}`, holdCookie(t, map[uint64]string{23: "t1"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if out["reason"] != "sold_out" || out["seconds_left"].(float64) != 0 {
		t.Fatalf("payload = %v", out)
	}
	if d.inv.cancels != 1 {
		t.Fatalf("cancels = %d", d.inv.cancels)
	}
	if _, ok := d.ledger.recs["t1"]; ok {
		t.Fatal("ledger record survived interrupt")
	}
	if got := writtenEntries(t, rec); len(got) != 0 {
		t.Fatalf("cookie entries = %v, want none", got)
	}
	if len(d.publisher.events) != 1 || d.publisher.events[0].Kind != queue.KindInterrupted {
		t.Fatalf("events = %+v", d.publisher.events)
	}
}

func TestInterruptCancelFailureLeavesReservations(t *testing.T) {
	h, d := newTestHandler()
	d.inv.cancelErr = errors.New("upstream 500")
	res := map[string][]string{"tk": {"uuid-1", "uuid-2", "uuid-3"}}
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), res)

	rec, out := doLease(t, h.Interrupt, `{"token":"t1","object_id":23}`, holdCookie(t, map[uint64]string{23: "t1"}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["error"] != "failed to cancel the reservations" {
		t.Fatalf("error = %v", out["error"])
	}
	lrec := d.ledger.recs["t1"]
	if lrec == nil || !reflect.DeepEqual(lrec.reservations, res) {
		t.Fatalf("reservations = %+v, want untouched", lrec)
	}
	if got := writtenEntries(t, rec); got != nil {
		t.Fatalf("cookie rewritten on failure: %v", got)
	}
	if len(d.publisher.events) != 0 {
		t.Fatalf("event published on failure: %+v", d.publisher.events)
	}
}

func TestInterruptLedgerDeleteFailure(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.failDelete = true
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), map[string][]string{"tk": {"uuid-1"}})

	rec, out := doLease(t, h.Interrupt, `{"token":"t1","object_id":23}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["error"] != "failed to release the session" {
		t.Fatalf("error = %v", out["error"])
	}
}

func TestPauseGrantsGraceWindow(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), nil)

	_, out := doLease(t, h.Pause, `{"token":"t1","object_id":23}`)
	// expiration swapped for the 23s grace even though ~100s remained
	if out["seconds_left"].(float64) != 23 {
		t.Fatalf("seconds_left = %v, want 23", out["seconds_left"])
	}
	if len(d.ledger.setExps) != 1 {
		t.Fatalf("setExps = %v", d.ledger.setExps)
	}
}

func TestPauseSoldOut(t *testing.T) {
	h, d := newTestHandler()
	d.capacity.avail = 0
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), nil)

	rec, out := doLease(t, h.Pause, `{"token":"t1","object_id":23}`)
	if rec.Code != http.StatusOK || out["seconds_left"].(float64) != 0 {
		t.Fatalf("status=%d seconds_left=%v", rec.Code, out["seconds_left"])
	}
	if len(d.ledger.setExps) != 0 {
		t.Fatal("expiration written despite sold-out")
	}
}

func TestPauseWriteFailureFailsSafe(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.failSetExp = true
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), nil)

	rec, out := doLease(t, h.Pause, `{"token":"t1","object_id":23}`)
	if rec.Code != http.StatusOK || out["seconds_left"].(float64) != 0 {
		t.Fatalf("status=%d seconds_left=%v, want 200 with 0", rec.Code, out["seconds_left"])
	}
}

func TestConfirmClearsHolds(t *testing.T) {
	h, d := newTestHandler()
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), map[string][]string{"tk": {"uuid-1"}})

	rec, _ := doLease(t, h.Confirm, `{}`, holdCookie(t, map[uint64]string{23: "t1"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if d.inv.confirms != 1 {
		t.Fatalf("confirms = %d", d.inv.confirms)
	}
	if _, ok := d.ledger.recs["t1"]; ok {
		t.Fatal("ledger record survived confirm")
	}
	if got := writtenEntries(t, rec); len(got) != 0 {
		t.Fatalf("cookie entries = %v, want none", got)
	}
	if len(d.publisher.events) != 1 || d.publisher.events[0].Kind != queue.KindConfirmed {
		t.Fatalf("events = %+v", d.publisher.events)
	}
}

func TestConfirmFailureKeepsState(t *testing.T) {
	h, d := newTestHandler()
	d.inv.confirmErr = errors.New("upstream 500")
	d.ledger.put("t1", 23, testNow.Add(100*time.Second), map[string][]string{"tk": {"uuid-1"}})

	rec, out := doLease(t, h.Confirm, `{}`, holdCookie(t, map[uint64]string{23: "t1"}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["error"] != "failed to confirm the reservations" {
		t.Fatalf("error = %v", out["error"])
	}
	if _, ok := d.ledger.recs["t1"]; !ok {
		t.Fatal("ledger record dropped despite failed confirm")
	}
}
