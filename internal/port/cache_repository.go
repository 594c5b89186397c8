package port

import "context"

type CacheRepository interface {
	// SetStock mirrors the available quantity of a book at the given book version.
	// A write with a lower version than the stored one is ignored.
	SetStock(ctx context.Context, bookID int64, quantity int, version int64) error

	// GetStock returns the mirrored quantity, ok is false on a cache miss
	GetStock(ctx context.Context, bookID int64) (quantity int, ok bool, err error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency forgets a key so a failed request can be resubmitted
	ReleaseIdempotency(ctx context.Context, key string) error
}
