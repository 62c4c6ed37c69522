package boundary

import "sync"

// Owned names the kind of value handed to a caller.
type Owned uint8

const (
	OwnedItem Owned = iota + 1
	OwnedItemArray
	OwnedString
	OwnedBytes
)

func (o Owned) String() string {
	switch o {
	case OwnedItem:
		return "item"
	case OwnedItemArray:
		return "item array"
	case OwnedString:
		return "string"
	case OwnedBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Ledger tracks values the caller owns. Each handoff must be matched by
// exactly one release of the same kind; releasing an unknown address, a
// mismatched kind, or the same address twice is refused so the matching
// free never runs twice.
type Ledger struct {
	mu    sync.Mutex
	owned map[uintptr]Owned
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{owned: make(map[uintptr]Owned)}
}

// Handoff records that addr now belongs to the caller.
func (l *Ledger) Handoff(addr uintptr, kind Owned) {
	if addr == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owned[addr] = kind
}

// Release reports whether addr was handed off as kind and forgets it.
// Only a true result allows the caller to free the memory.
func (l *Ledger) Release(addr uintptr, kind Owned) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	got, ok := l.owned[addr]
	if !ok || got != kind {
		return false
	}
	delete(l.owned, addr)
	return true
}

// Outstanding returns the number of values not yet released.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.owned)
}
