package featureflags

import "context"

// Repository persists capability flags. Implementations return copies, so
// callers may keep what they read.
type Repository interface {
	// List returns every stored flag.
	List(ctx context.Context) ([]*Flag, error)

	// Upsert writes flags in one step, stamping them with the write time.
	Upsert(ctx context.Context, flags []*Flag) error
}
