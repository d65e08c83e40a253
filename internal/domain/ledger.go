package domain

import (
	"errors"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

const maxIdentityAttempts = 16

// Ledger is the in-memory cart. It guarantees unique identities, at most one
// plain entry per product and no entry with a quantity below one. Ledger is
// not safe for concurrent use; callers serialize access.
type Ledger struct {
	entries []CartEntry
	ids     IdentityGenerator
}

// NewLedger creates an empty ledger. A nil generator defaults to UUIDv7.
func NewLedger(ids IdentityGenerator) *Ledger {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Ledger{ids: ids}
}

func (l *Ledger) index(identity string) int {
	for i := range l.entries {
		if l.entries[i].Identity == identity {
			return i
		}
	}
	return -1
}

func (l *Ledger) plainIndex(productID int64) int {
	for i := range l.entries {
		if !l.entries[i].IsCustom() && l.entries[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddStandard increments the plain entry for p, or appends one with quantity 1.
func (l *Ledger) AddStandard(p Product) CartEntry {
	if i := l.plainIndex(p.ID); i >= 0 {
		l.entries[i].Quantity++
		return l.entries[i]
	}
	identity := PlainIdentity(p.ID)

	e := entryFromProduct(p)
	e.Identity = identity
	e.Quantity = 1
	l.entries = append(l.entries, e)
	return e
}

// AddCustom appends a new custom variant of p showing designRef.
func (l *Ledger) AddCustom(p Product, designRef string) (CartEntry, error) {
	if designRef == "" {
		return CartEntry{}, apperrors.InvalidInput("custom design reference is required")
	}

	identity := ""
	for attempt := 0; ; attempt++ {
		if attempt == maxIdentityAttempts {
			return CartEntry{}, apperrors.Internal(errors.New("identity generator keeps returning unusable identities"))
		}
		identity = l.ids.NewIdentity()
		// Numeric identities belong to plain entries.
		if identity != "" && !isPlainIdentity(identity) && l.index(identity) < 0 {
			break
		}
	}

	e := entryFromProduct(p)
	e.Identity = identity
	e.Name += CustomSuffix
	e.ImageURL = designRef
	e.CustomDesignRef = designRef
	e.Quantity = 1
	l.entries = append(l.entries, e)
	return e, nil
}

// SetQuantity sets the quantity of the entry with the given identity in
// place. A quantity of zero or less removes it. It reports whether the entry
// existed.
func (l *Ledger) SetQuantity(identity string, quantity int) bool {
	i := l.index(identity)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
		return true
	}
	l.entries[i].Quantity = quantity
	return true
}

// Total returns the cart total in cents.
func (l *Ledger) Total() int64 {
	var total int64
	for _, e := range l.entries {
		total += e.Subtotal()
	}
	return total
}

// ItemCount returns the sum of all quantities.
func (l *Ledger) ItemCount() int {
	var n int
	for _, e := range l.entries {
		n += e.Quantity
	}
	return n
}

// Len returns the number of distinct entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.entries = nil
}

// Entries returns a copy of the entries in insertion order.
func (l *Ledger) Entries() []CartEntry {
	out := make([]CartEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Find returns the entry with the given identity.
func (l *Ledger) Find(identity string) (CartEntry, bool) {
	if i := l.index(identity); i >= 0 {
		return l.entries[i], true
	}
	return CartEntry{}, false
}

// Restore replaces the ledger contents with previously persisted entries.
// Entries that would break the ledger's invariants are dropped; the number
// dropped is returned.
func (l *Ledger) Restore(entries []CartEntry) int {
	l.entries = make([]CartEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	dropped := 0

	for _, e := range entries {
		if e.Quantity < 1 || e.Identity == "" {
			dropped++
			continue
		}
		if !e.IsCustom() && e.Identity != PlainIdentity(e.ProductID) {
			dropped++
			continue
		}
		if _, dup := seen[e.Identity]; dup {
			dropped++
			continue
		}
		seen[e.Identity] = struct{}{}
		l.entries = append(l.entries, e)
	}
	return dropped
}
