package repository

import "context"

// KVStore is the small persisted key-value mechanism behind the email
// cooldown timestamps and the pending-email marker. Implementations must
// make Set and Delete idempotent; callers never increment, they only
// overwrite or remove.
type KVStore interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
