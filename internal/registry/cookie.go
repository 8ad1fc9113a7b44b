package registry

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-lease/internal/model"
)

// CookieName is the cookie carrying the serialized hold entry set.
const CookieName = "seat_lease_holds"

// ReadEntries decodes the hold cookie into an `{objectId: token}` map.
// A missing, malformed or undecodable cookie yields an empty map; the
// ledger is the source of truth, so a broken cookie just means no
// client-side holds are known.
func ReadEntries(c echo.Context) map[uint64]string {
	entries := map[uint64]string{}
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return entries
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return entries
	}
	var held []model.HoldEntry
	if err := json.Unmarshal(raw, &held); err != nil {
		return entries
	}
	for _, h := range held {
		if h.ObjectID != 0 && h.Token != "" {
			entries[h.ObjectID] = h.Token
		}
	}
	return entries
}

// WriteEntries serializes the entry set back into the hold cookie.  The
// cookie is secure and http-only and its lifetime is independent of,
// and longer than, any individual lease, so expiry judgements stay with
// the ledger.  An empty set removes the cookie.
func WriteEntries(c echo.Context, entries map[uint64]string, ttl time.Duration, secure bool) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if len(entries) == 0 {
		cookie.Value = ""
		cookie.MaxAge = -1
		c.SetCookie(cookie)
		return
	}
	held := make([]model.HoldEntry, 0, len(entries))
	for objectID, token := range entries {
		held = append(held, model.HoldEntry{ObjectID: objectID, Token: token})
	}
	raw, err := json.Marshal(held)
	if err != nil {
		return
	}
	cookie.Value = base64.RawURLEncoding.EncodeToString(raw)
	cookie.Expires = time.Now().UTC().Add(ttl)
	cookie.MaxAge = int(ttl / time.Second)
	c.SetCookie(cookie)
}
