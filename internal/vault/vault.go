// ABOUTME: Secret vault for encrypting values at rest with AES-256-GCM
// ABOUTME: Derives the cipher key from persisted random material via argon2id

package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/argon2"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

// Vault errors
var (
	// ErrNotFound is returned when a named secret was never stored.
	ErrNotFound = errors.New("secret not found")
	// ErrCipherCorrupt is returned when a payload cannot be decrypted: wrong
	// key, truncation and tampering are indistinguishable by design.
	ErrCipherCorrupt = errors.New("ciphertext corrupt or key mismatch")
)

// keyDoc is the persisted key material. The AES key is never stored directly;
// it is re-derived from material+salt on every open.
const keyDoc = "vault/key"

// securePrefix namespaces one document per secret name.
const securePrefix = "secure/"

// nonceSize is the GCM nonce length. A fresh random nonce is drawn for every
// encryption; reusing a nonce with the same key would break the cipher.
const nonceSize = 12

// keyMaterial is the document stored at keyDoc in the local area.
type keyMaterial struct {
	Salt     []byte `json:"salt"`
	Material []byte `json:"material"`
}

// Vault encrypts and decrypts small payloads with a per-installation key.
type Vault struct {
	store  kvstore.Store
	aead   cipher.AEAD
	logger *slog.Logger
}

// Open loads the installation key, generating and persisting it on first run.
// Open is the only code path that may create the key document; daemons call it
// once during startup before serving, so exactly one process owns first-run
// initialization and a duplicate-key race cannot occur in normal operation.
func Open(ctx context.Context, store kvstore.Store) (*Vault, error) {
	logger := slog.Default().With("component", "vault")

	var mat keyMaterial
	err := kvstore.GetJSON(ctx, store, kvstore.AreaLocal, keyDoc, &mat)
	if errors.Is(err, kvstore.ErrNotFound) {
		mat, err = generateKeyMaterial()
		if err != nil {
			return nil, err
		}
		if err := kvstore.SetJSON(ctx, store, kvstore.AreaLocal, keyDoc, mat); err != nil {
			return nil, fmt.Errorf("persisting key material: %w", err)
		}
		logger.Info("generated installation key")
	} else if err != nil {
		return nil, fmt.Errorf("reading key material: %w", err)
	}

	aead, err := deriveAEAD(mat)
	if err != nil {
		return nil, err
	}

	return &Vault{store: store, aead: aead, logger: logger}, nil
}

func generateKeyMaterial() (keyMaterial, error) {
	mat := keyMaterial{
		Salt:     make([]byte, 16),
		Material: make([]byte, 32),
	}
	if _, err := rand.Read(mat.Salt); err != nil {
		return keyMaterial{}, fmt.Errorf("generating salt: %w", err)
	}
	if _, err := rand.Read(mat.Material); err != nil {
		return keyMaterial{}, fmt.Errorf("generating key material: %w", err)
	}
	return mat, nil
}

func deriveAEAD(mat keyMaterial) (cipher.AEAD, error) {
	key := argon2.IDKey(mat.Material, mat.Salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}

// Encrypt seals plaintext under the installation key and returns
// base64(nonce || ciphertext) as a single storable string.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure (bad encoding, truncated payload,
// wrong key, tampered ciphertext) maps to ErrCipherCorrupt.
func (v *Vault) Decrypt(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCipherCorrupt
	}
	if len(sealed) < nonceSize {
		return nil, ErrCipherCorrupt
	}

	plaintext, err := v.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, ErrCipherCorrupt
	}
	return plaintext, nil
}

// Hash returns a hex sha256 digest for values only ever compared for
// equality, never round-tripped.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// SetSecure JSON-encodes v, encrypts it and stores it under name.
func (v *Vault) SetSecure(ctx context.Context, name string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding secret %q: %w", name, err)
	}
	encoded, err := v.Encrypt(plaintext)
	if err != nil {
		return err
	}
	if err := v.store.Set(ctx, kvstore.AreaLocal, securePrefix+name, []byte(encoded)); err != nil {
		return fmt.Errorf("storing secret %q: %w", name, err)
	}
	v.logger.Debug("stored secret", "name", name)
	return nil
}

// GetSecure loads, decrypts and JSON-decodes the secret stored under name.
// Returns ErrNotFound if the name was never stored, which callers must treat
// as "absent" rather than a zero-length value.
func (v *Vault) GetSecure(ctx context.Context, name string, out any) error {
	encoded, err := v.store.Get(ctx, kvstore.AreaLocal, securePrefix+name)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading secret %q: %w", name, err)
	}

	plaintext, err := v.Decrypt(string(encoded))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrCipherCorrupt
	}
	return nil
}

// DeleteSecure removes the secret stored under name.
func (v *Vault) DeleteSecure(ctx context.Context, name string) error {
	return v.store.Delete(ctx, kvstore.AreaLocal, securePrefix+name)
}
