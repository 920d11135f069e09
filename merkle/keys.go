package merkle

import (
	"crypto/ed25519"
	"crypto/rand"
)

const (
	// PublicKeyBytes is the length of a feed key record.
	PublicKeyBytes = ed25519.PublicKeySize
	// SecretKeyBytes is the length of a feed secret key record.
	SecretKeyBytes = ed25519.PrivateKeySize
	// SignatureBytes is the length of a signature record.
	SignatureBytes = ed25519.SignatureSize
)

// KeyPair generates a fresh feed key pair.
func KeyPair() (publicKey, secretKey []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// Sign signs message with the feed secret key.
func Sign(message, secretKey []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(secretKey), message)
}

// Verify reports whether signature is a valid signature of message under
// the feed public key.
func Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != PublicKeyBytes || len(signature) != SignatureBytes {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
