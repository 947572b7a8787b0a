// ABOUTME: Tests for the secret vault
// ABOUTME: Covers round trips, nonce uniqueness, tamper detection, and key persistence

package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

func newTestVault(t *testing.T) (*Vault, *kvstore.MemStore) {
	t.Helper()
	store := kvstore.NewMemStore()
	v, err := Open(context.Background(), store)
	require.NoError(t, err)
	return v, store
}

func randomPayload(t *testing.T, maxLen int) []byte {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(int64(maxLen+1)))
	require.NoError(t, err)
	payload := make([]byte, n.Int64())
	_, err = rand.Read(payload)
	require.NoError(t, err)
	return payload
}

func TestEncryptDecrypt_RoundTrips(t *testing.T) {
	v, _ := newTestVault(t)

	for i := 0; i < 1000; i++ {
		payload := randomPayload(t, 10000)

		encoded, err := v.Encrypt(payload)
		require.NoError(t, err)

		got, err := v.Decrypt(encoded)
		require.NoError(t, err)
		assert.Equal(t, payload, got, "round trip %d", i)
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	v, _ := newTestVault(t)
	payload := []byte("same plaintext every time")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		encoded, err := v.Encrypt(payload)
		require.NoError(t, err)
		require.False(t, seen[encoded], "ciphertext repeated on iteration %d", i)
		seen[encoded] = true

		sealed, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		nonce := string(sealed[:nonceSize])
		require.False(t, seen[nonce], "nonce repeated on iteration %d", i)
		seen[nonce] = true
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	v, _ := newTestVault(t)

	encoded, err := v.Encrypt([]byte("secret value"))
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(sealed)

	_, err = v.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrCipherCorrupt)
}

func TestDecrypt_Garbage(t *testing.T) {
	v, _ := newTestVault(t)

	cases := []string{
		"not base64 at all!!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		"",
	}
	for _, encoded := range cases {
		_, err := v.Decrypt(encoded)
		assert.ErrorIs(t, err, ErrCipherCorrupt, "input %q", encoded)
	}
}

func TestDecrypt_DifferentVaultFails(t *testing.T) {
	v1, _ := newTestVault(t)
	v2, _ := newTestVault(t)

	encoded, err := v1.Encrypt([]byte("for v1 only"))
	require.NoError(t, err)

	_, err = v2.Decrypt(encoded)
	assert.ErrorIs(t, err, ErrCipherCorrupt)
}

func TestOpen_KeyPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemStore()

	v1, err := Open(ctx, store)
	require.NoError(t, err)
	encoded, err := v1.Encrypt([]byte("survives reopen"))
	require.NoError(t, err)

	v2, err := Open(ctx, store)
	require.NoError(t, err)
	got, err := v2.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("survives reopen"), got)
}

func TestHash(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash("anything"), 64)
}

func TestSecure_RoundTrip(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	type creds struct {
		Token string `json:"token"`
		Scope []string
	}

	require.NoError(t, v.SetSecure(ctx, "bot-token", creds{Token: "xoxb-123", Scope: []string{"chat:write"}}))

	// The stored bytes must not contain the plaintext.
	raw, err := store.Get(ctx, kvstore.AreaLocal, "secure/bot-token")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "xoxb-123")

	var got creds
	require.NoError(t, v.GetSecure(ctx, "bot-token", &got))
	assert.Equal(t, "xoxb-123", got.Token)
	assert.Equal(t, []string{"chat:write"}, got.Scope)
}

func TestGetSecure_Missing(t *testing.T) {
	v, _ := newTestVault(t)

	var out string
	err := v.GetSecure(context.Background(), "never-stored", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSecure(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecure(ctx, "temp", "value"))
	require.NoError(t, v.DeleteSecure(ctx, "temp"))

	var out string
	err := v.GetSecure(ctx, "temp", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}
