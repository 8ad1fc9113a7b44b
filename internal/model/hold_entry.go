package model

// HoldEntry is one browser-held `{object, token}` pair.  A browser may
// carry several entries at once (one per tab picking seats for a
// different event); uniqueness is per ObjectID.  Entries are serialized
// into the hold cookie and never expire on the client side by
// themselves; staleness is judged against the session ledger.
type HoldEntry struct {
	ObjectID uint64 `json:"object_id"`
	Token    string `json:"token"`
}
