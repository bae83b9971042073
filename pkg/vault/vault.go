package vault

import (
	"context"
	"time"
)

// Vault is the contract between credbox and a platform credential store.
//
// Implementations must be safe for concurrent use. Calls block until the
// underlying store answers; a context is passed through for backends whose
// client libraries accept one, but no call is guaranteed to be cancellable.
type Vault interface {
	// Name returns the backend identifier used in logs and metrics.
	Name() string

	// Put stores payload under fullKey, replacing any existing item.
	Put(ctx context.Context, fullKey string, payload []byte, access Accessibility) error

	// Get returns the item stored under fullKey. found is false and err is nil
	// when no item exists.
	Get(ctx context.Context, fullKey string) (item Item, found bool, err error)

	// Delete removes the item stored under fullKey. Removing an absent item
	// is not an error.
	Delete(ctx context.Context, fullKey string) error

	// Scan returns every fully-qualified key starting with prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)
}

// Item is a stored payload together with the attributes it was written with.
type Item struct {
	Payload       []byte
	Accessibility Accessibility
	// ModifiedAt is zero when the backend does not track modification time.
	ModifiedAt time.Time
}
