// ABOUTME: Tests for the API key store
// ABOUTME: Covers issuance, listing order, revocation, and authentication

package facade

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

func TestCreateKey(t *testing.T) {
	keys := NewKeyStore(kvstore.NewMemStore())

	key, plaintext, err := keys.Create(context.Background(), "  dashboard  ")
	require.NoError(t, err)

	assert.Equal(t, "dashboard", key.Name)
	assert.True(t, strings.HasPrefix(plaintext, "cpk_"))
	assert.NotContains(t, key.KeyHash, plaintext, "plaintext must never be stored")
	assert.Nil(t, key.LastUsed)
}

func TestCreateKey_EmptyName(t *testing.T) {
	keys := NewKeyStore(kvstore.NewMemStore())

	_, _, err := keys.Create(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidKeyName)
}

func TestListKeys_OrderedByCreation(t *testing.T) {
	keys := NewKeyStore(kvstore.NewMemStore())
	ctx := context.Background()

	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	keys.now = func() time.Time { return base }
	first, _, err := keys.Create(ctx, "first")
	require.NoError(t, err)
	keys.now = func() time.Time { return base.Add(time.Minute) }
	second, _, err := keys.Create(ctx, "second")
	require.NoError(t, err)

	list, err := keys.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestRevokeKey(t *testing.T) {
	keys := NewKeyStore(kvstore.NewMemStore())
	ctx := context.Background()

	key, plaintext, err := keys.Create(ctx, "short lived")
	require.NoError(t, err)

	require.NoError(t, keys.Revoke(ctx, key.ID))

	_, err = keys.Authenticate(ctx, plaintext)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	err = keys.Revoke(ctx, key.ID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestAuthenticate(t *testing.T) {
	keys := NewKeyStore(kvstore.NewMemStore())
	ctx := context.Background()

	key, plaintext, err := keys.Create(ctx, "bot")
	require.NoError(t, err)

	got, err := keys.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.NotNil(t, got.LastUsed)

	_, err = keys.Authenticate(ctx, "cpk_totally_wrong")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
