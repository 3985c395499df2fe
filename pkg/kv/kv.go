package kv

// Entry is a single stored key/value pair. The JSON field names are part of
// the wire contract.
type Entry struct {
	Key   string `json:"main_key"`
	Value string `json:"value"`
}

// Store defines the interface for a capacity-bounded key-value store.
// Implementations must run each mutating operation as one atomic step so that
// existence and capacity checks cannot race with the mutation itself.
type Store interface {
	// List returns a snapshot of every entry. Callers must not depend on
	// the order.
	List() []Entry

	// Get returns the entry for key, or ErrNotFound.
	Get(key string) (Entry, error)

	// Insert creates a new entry. Returns ErrDuplicateKey if the key is
	// already present and ErrQuotaExceeded if the store is full.
	Insert(key, value string) (Entry, error)

	// Upsert replaces the value of an existing key, or creates the entry if
	// it is absent. Only the create path can fail with ErrQuotaExceeded.
	Upsert(key, value string) (Entry, error)

	// Remove deletes the entry for key. Returns ErrNotFound if absent.
	Remove(key string) error

	// Len returns the current number of entries.
	Len() int

	// Capacity returns the maximum number of entries the store may hold.
	Capacity() int
}
