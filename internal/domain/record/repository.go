package record

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Gateway when no record carries the key.
var ErrNotFound = errors.New("record not found")

// Gateway is the read path into the shared record store.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// FindByKey returns the record whose access_key equals key exactly.
	FindByKey(ctx context.Context, key string) (*Record, error)
}

// Pinger is implemented by gateways that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}
