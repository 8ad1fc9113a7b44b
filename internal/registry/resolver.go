package registry

import "context"

// Resolver picks the single "current" hold out of the browser's
// concurrent entries.  The default consults the ledger's expirations,
// but collaborators may swap in a different strategy entirely.
type Resolver interface {
	Resolve(ctx context.Context, entries map[uint64]string) (token string, objectID uint64, ok bool, err error)
}

// EarliestExpiring resolves to the entry whose ledger record expires
// soonest.  Deterministic and side-effect free; entries whose token has
// no ledger record count as already expired (0 seconds left) and so win
// the tie-break, which surfaces the stalest hold for cleanup first.
type EarliestExpiring struct {
	Ledger Ledger
}

// Resolve implements Resolver.  When two entries carry the same
// remaining time, the lower object id wins so the result does not
// depend on map iteration order.
func (e *EarliestExpiring) Resolve(ctx context.Context, entries map[uint64]string) (string, uint64, bool, error) {
	var (
		bestToken    string
		bestObjectID uint64
		bestLeft     int64
		found        bool
	)
	for objectID, token := range entries {
		left, err := e.Ledger.SecondsLeft(ctx, token)
		if err != nil {
			return "", 0, false, err
		}
		if !found || left < bestLeft || (left == bestLeft && objectID < bestObjectID) {
			bestToken, bestObjectID, bestLeft, found = token, objectID, left, true
		}
	}
	if !found {
		return "", 0, false, nil
	}
	return bestToken, bestObjectID, true, nil
}
