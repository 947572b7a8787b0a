// ABOUTME: Store interface and area definitions for the chatpilot storage substrate
// ABOUTME: Models a two-area key->document store with no transactions or CAS primitive

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("not found")

// Area selects one of the two storage areas.
type Area string

const (
	// AreaLocal is device-local and never replicated.
	AreaLocal Area = "local"
	// AreaSync is replicated across the user's devices, eventually consistent.
	AreaSync Area = "sync"
)

// Store defines the key->document substrate every higher layer is built on.
//
// There is no compare-and-swap and no transaction: callers that need a
// multi-step update must read a snapshot, compute the next value, and write
// the whole document back, accepting that a concurrent writer may win.
type Store interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, area Area, key string) ([]byte, error)
	// Set writes the whole document under key, replacing any previous value.
	Set(ctx context.Context, area Area, key string, value []byte) error
	// Delete removes the document under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, area Area, key string) error
	// Keys lists all keys in the area with the given prefix, sorted ascending.
	Keys(ctx context.Context, area Area, prefix string) ([]string, error)
	// Close releases any resources held by the store
	Close() error
}

// GetJSON reads the document under key and unmarshals it into out.
func GetJSON(ctx context.Context, s Store, area Area, key string, out any) error {
	data, err := s.Get(ctx, area, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding document %q: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and writes it as the whole document under key.
func SetJSON(ctx context.Context, s Store, area Area, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding document %q: %w", key, err)
	}
	return s.Set(ctx, area, key, data)
}
