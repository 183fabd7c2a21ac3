package pipeline

import (
	"context"
)

// Deduplicator checks the store before insert. Only stored alerts count:
// there is no in-process memory of ids between passes.
type Deduplicator struct {
	store AlertStore
}

// NewDeduplicator creates a Deduplicator over the store.
func NewDeduplicator(store AlertStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// IsDuplicate reports whether alertID is already stored. An error means the
// status is unknown and the caller must not insert.
func (d *Deduplicator) IsDuplicate(ctx context.Context, alertID string) (bool, error) {
	return d.store.Exists(ctx, alertID)
}
