package deleteid

import (
	"pacadmin/internal/core/apperror"
)

// maxAttempts bounds the collision-retry loop. Exceeding it means the used-ID
// index no longer reflects reality.
const maxAttempts = 1000

// Allocator hands out delete-view IDs that are unique within one snapshot
// generation. It is rebuilt on every snapshot, seeded from the highest suffix
// observed during ingestion.
//
// Allocator is not safe for concurrent use; the owning engine serializes
// access.
type Allocator struct {
	format Format
	next   int
	used   map[string]struct{}
}

// NewAllocator creates an allocator seeded past maxObserved. The used set is
// shared with the caller: IDs allocated here become visible to later
// membership checks, which prevents intra-batch collisions.
func NewAllocator(format Format, maxObserved int, used map[string]struct{}) *Allocator {
	if used == nil {
		used = make(map[string]struct{})
	}
	return &Allocator{
		format: format,
		next:   maxObserved,
		used:   used,
	}
}

// Next returns a freshly reserved ID.
//
// Overflow of the fixed-width suffix is a hard error: wrapping or truncating
// would violate the wire format contract. Exhausting the retry ceiling
// signals index corruption and is likewise fatal to the caller's batch.
func (a *Allocator) Next() (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		a.next++
		if a.next > a.format.Max() {
			return "", apperror.NewIDOverflow(a.next, a.format.Pad)
		}
		id := a.format.Render(a.next)
		if _, taken := a.used[id]; taken {
			continue
		}
		a.used[id] = struct{}{}
		return id, nil
	}
	return "", apperror.NewIDExhausted(maxAttempts)
}
