// ABOUTME: API key records backing bearer authentication on the HTTP facade
// ABOUTME: One document per key; only a sha256 hash of the key is kept at rest

package facade

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
	"github.com/chatpilot-app/chatpilot/internal/vault"
)

// API key errors
var (
	// ErrKeyNotFound is returned for unknown key ids and failed authentication.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrInvalidKeyName is returned when a key name is empty after trimming.
	ErrInvalidKeyName = errors.New("api key name is empty")
)

const apiKeyPrefix = "apikeys/"

// APIKey is one issued credential record. The key is a capability, not a
// statement of tier: tier determination always comes from the entitlement
// cache, independent of which key a caller presents.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"keyHash"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
}

// KeyStore manages issued API keys.
type KeyStore struct {
	kv     kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewKeyStore creates an API key store.
func NewKeyStore(kv kvstore.Store) *KeyStore {
	return &KeyStore{
		kv:     kv,
		logger: slog.Default().With("component", "apikeys"),
		now:    time.Now,
	}
}

// Create issues a new API key. The plaintext is returned exactly once and
// never stored; only its hash is persisted.
func (s *KeyStore) Create(ctx context.Context, name string) (*APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrInvalidKeyName
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generating api key: %w", err)
	}
	plaintext := "cpk_" + hex.EncodeToString(raw)

	key := &APIKey{
		ID:        uuid.New().String(),
		Name:      name,
		KeyHash:   vault.Hash(plaintext),
		CreatedAt: s.now().UTC(),
	}
	if err := kvstore.SetJSON(ctx, s.kv, kvstore.AreaLocal, apiKeyPrefix+key.ID, key); err != nil {
		return nil, "", fmt.Errorf("storing api key: %w", err)
	}

	s.logger.Info("issued api key", "id", key.ID, "name", key.Name)
	return key, plaintext, nil
}

// List returns all issued keys ordered by creation time ascending.
func (s *KeyStore) List(ctx context.Context) ([]*APIKey, error) {
	ids, err := s.kv.Keys(ctx, kvstore.AreaLocal, apiKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}

	var keys []*APIKey
	for _, id := range ids {
		var key APIKey
		if err := kvstore.GetJSON(ctx, s.kv, kvstore.AreaLocal, id, &key); err != nil {
			s.logger.Warn("skipping unreadable api key record", "doc", id, "error", err)
			continue
		}
		keys = append(keys, &key)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

// Revoke deletes an issued key by id.
func (s *KeyStore) Revoke(ctx context.Context, id string) error {
	doc := apiKeyPrefix + id
	if _, err := s.kv.Get(ctx, kvstore.AreaLocal, doc); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("reading api key: %w", err)
	}
	if err := s.kv.Delete(ctx, kvstore.AreaLocal, doc); err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	s.logger.Info("revoked api key", "id", id)
	return nil
}

// Authenticate matches a presented bearer credential against the issued key
// records. On success LastUsed is updated best-effort.
func (s *KeyStore) Authenticate(ctx context.Context, presented string) (*APIKey, error) {
	keys, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	presentedHash := vault.Hash(presented)
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(presentedHash)) == 1 {
			used := s.now().UTC()
			key.LastUsed = &used
			if err := kvstore.SetJSON(ctx, s.kv, kvstore.AreaLocal, apiKeyPrefix+key.ID, key); err != nil {
				s.logger.Warn("updating api key last_used failed", "id", key.ID, "error", err)
			}
			return key, nil
		}
	}
	return nil, ErrKeyNotFound
}
