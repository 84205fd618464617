// Package externalsync implements External Sync: testing and pulling
// catalogs from external media-management services (Radarr/Sonarr-style
// catalog connections and Stash-style scene libraries), and receiving
// their push notifications over a webhook, funnelling every discovered or
// pushed file into the same candidate pipeline the Scan Pipeline and
// Folder Watcher use.
package externalsync

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// ErrEncryptionKeyNotConfigured is returned when no process secret is
// available to derive the API key encryption key from.
var ErrEncryptionKeyNotConfigured = errors.New("external sync encryption key is not configured")

// hkdfInfo binds the derived key to its one purpose so the same process
// secret can't be replayed to derive keys for anything else.
const hkdfInfo = "transcodarr external-sync api-key v1"

// keyCipher wraps an AES-256-GCM AEAD keyed by HKDF-SHA256 over a process
// secret. The secret itself is read from config/environment by the caller
// and never touches the database — only ciphertext is persisted, on
// ExternalConnection.EncryptedAPIKey.
type keyCipher struct {
	aead cipher.AEAD
}

// newKeyCipher derives a 32-byte AES-256-GCM key from secret via HKDF and
// returns a keyCipher ready to encrypt/decrypt API keys. secret must be
// non-empty; an empty secret would silently make every connection's API
// key recoverable by anyone who can read the ciphertext column.
func newKeyCipher(secret string) (*keyCipher, error) {
	if secret == "" {
		return nil, ErrEncryptionKeyNotConfigured
	}

	keyReader := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(keyReader, key); err != nil {
		return nil, fmt.Errorf("deriving encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("building AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building GCM AEAD: %w", err)
	}

	return &keyCipher{aead: aead}, nil
}

// encrypt seals plaintext, prefixing the result with a random nonce.
func (k *keyCipher) encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// decrypt opens ciphertext produced by encrypt.
func (k *keyCipher) decrypt(ciphertext []byte) (string, error) {
	nonceSize := k.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := k.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting api key: %w", err)
	}
	return string(plaintext), nil
}

// last4 returns the masked preview stored alongside the ciphertext
// (ExternalConnection.APIKeyLast4): the final four characters, or a fixed
// mask if the key is too short to preview safely.
func last4(apiKey string) string {
	const maskedLength = 4
	if len(apiKey) <= maskedLength {
		return "****"
	}
	return "****" + apiKey[len(apiKey)-maskedLength:]
}
