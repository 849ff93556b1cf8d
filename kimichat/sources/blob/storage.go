// Package blob is a small key-value store for named string blobs, the server
// side counterpart of a browser's localStorage.
package blob

import "context"

type Storage interface {
	// GetItem returns the value for key and whether it exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key; removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
}
