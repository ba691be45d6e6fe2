// Package keypair generates the RSA key pair used to wrap the per-file
// session key, and serializes it to the PEM forms the rest of the pipeline
// carries on the wire (PKCS8 private key, SubjectPublicKeyInfo public key).
package keypair

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// keySizeBits is the RSA modulus size. 2048 bits matches the OAEP-SHA256
// wrap used by pkg/envelope: the modulus must be large enough to hold a
// 32-byte AES key plus OAEP padding overhead (2*hLen+2 = 66 bytes for
// SHA-256), which 2048 bits (256 bytes) comfortably accommodates.
const keySizeBits = 2048

// Generate produces a fresh RSA key pair and returns both halves already
// serialized to PEM: pub is SubjectPublicKeyInfo, priv is PKCS8 with no
// password (the private key is protected separately by pkg/privkey).
func Generate() (pub, priv []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keySizeBits)
	if err != nil {
		return nil, nil, fmt.Errorf("keypair: generate: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("keypair: marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("keypair: marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return pubPEM, privPEM, nil
}

// ParsePublic decodes a PEM-encoded SubjectPublicKeyInfo block produced by
// Generate (or carried in a META2 frame record) into an *rsa.PublicKey.
func ParsePublic(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("keypair: no PEM block in public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keypair: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keypair: public key is not RSA")
	}
	return rsaPub, nil
}

// ParsePrivate decodes a PEM-encoded PKCS8 private key block (recovered
// from an unsealed PRIVKEY_AES record) into an *rsa.PrivateKey.
func ParsePrivate(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("keypair: no PEM block in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keypair: parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keypair: private key is not RSA")
	}
	return rsaKey, nil
}

// Zeroize best-effort wipes a private key's primary secret material after
// use. Held only from generation through sealing, per the ownership model:
// no cyclic references, no lingering key material beyond the stage that
// needs it.
func Zeroize(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
