package domain

// KeySlot is a non-empty Key Manager slot: an opaque id indexing a private
// key in the Key Store and a public JWK in the Catalog, plus the key's
// expiry. A nil *KeySlot represents an empty slot.
type KeySlot struct {
	ID     string
	Expiry int64
}

// KeySlots is the Key Manager's three-slot rotation state.
// Invariant: Current is never nil; Next is nil outside the preparation
// window; Previous is nil outside the overlap window.
type KeySlots struct {
	Previous *KeySlot
	Current  *KeySlot
	Next     *KeySlot
}
