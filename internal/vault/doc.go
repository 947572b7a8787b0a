// Package vault keeps one secret per installation encrypted at rest.
//
// A random 32-byte material plus 16-byte salt is generated on first run and
// persisted in the device-local storage area; the AES-256 key is re-derived
// from it with argon2id on every open and never stored. Payloads are sealed
// with AES-GCM under a fresh 12-byte nonce per call and stored as a single
// base64(nonce || ciphertext) string.
//
// Decryption failures return ErrCipherCorrupt regardless of cause; a secret
// that was never written returns ErrNotFound, so callers can tell "absent"
// apart from "corrupted".
package vault
