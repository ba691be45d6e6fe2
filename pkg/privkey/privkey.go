// Package privkey seals and unseals the serialized RSA private key that
// pkg/keypair produces, using the same PBKDF2 + AES-256-GCM construction as
// pkg/envelope but without an asymmetric wrap: the private-key password is
// the only secret protecting it.
package privkey

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/charonvid/charon/pkg/codecerr"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Magic is the 11-byte version identifier prefixing every sealed
	// private-key record.
	Magic = "PRIVKEY_AES"

	saltSize   = 16
	nonceSize  = 12
	keySize    = 32
	pbkdf2Iter = 100_000

	minLen = len(Magic) + saltSize + nonceSize
)

// Seal encrypts the PEM-encoded private key under a key derived from
// password via PBKDF2-HMAC-SHA256.
func Seal(privPEM []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, codecerr.Wrap("privkey", "seal", fmt.Errorf("salt: %w", err))
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, codecerr.Wrap("privkey", "seal", fmt.Errorf("nonce: %w", err))
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iter, keySize, sha256.New)
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, codecerr.Wrap("privkey", "seal", err)
	}
	ciphertext := gcm.Seal(nil, nonce, privPEM, nil)

	out := make([]byte, 0, len(Magic)+saltSize+nonceSize+len(ciphertext))
	out = append(out, Magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Unseal reverses Seal, returning the PEM-encoded private key.
func Unseal(sealed []byte, password string) ([]byte, error) {
	if len(sealed) < minLen || string(sealed[:len(Magic)]) != Magic {
		return nil, codecerr.Wrap("privkey", "unseal", fmt.Errorf("%w: bad magic or truncated record", codecerr.ErrFormat))
	}
	rest := sealed[len(Magic):]
	salt := rest[:saltSize]
	nonce := rest[saltSize : saltSize+nonceSize]
	ciphertext := rest[saltSize+nonceSize:]

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iter, keySize, sha256.New)
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, codecerr.Wrap("privkey", "unseal", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, codecerr.Wrap("privkey", "unseal", fmt.Errorf("%w: %w", codecerr.ErrCryptoAuth, err))
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
