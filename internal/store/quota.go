package store

import (
	"fmt"

	"github.com/heysubinoy/quotakv/pkg/kv"
)

// DefaultCapacity is the number of entries a store holds unless configured
// otherwise.
const DefaultCapacity = 10

// Quota guards growth of a store past a fixed capacity. It holds no state of
// its own; the caller supplies the current count from within its critical
// section.
type Quota struct {
	capacity int
}

// NewQuota returns a Quota admitting up to capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func NewQuota(capacity int) Quota {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Quota{capacity: capacity}
}

// Admit reports whether a store currently holding count entries may grow by
// one.
func (q Quota) Admit(count int) error {
	if count >= q.capacity {
		return fmt.Errorf("%w: capacity of %d entries reached", kv.ErrQuotaExceeded, q.capacity)
	}
	return nil
}

func (q Quota) Capacity() int { return q.capacity }
