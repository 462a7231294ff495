// Package ed25519 implements the signature scheme interfaces on top of the
// standard library ed25519 primitive.
package ed25519

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/ai4all-network/coordinator/shared/pqsig/iface"
)

// Sizes of the scheme's wire encodings in bytes.
const (
	SeedSize      = ed25519.SeedSize
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

type secretKey struct {
	p ed25519.PrivateKey
}

type publicKey struct {
	p ed25519.PublicKey
}

type signature struct {
	s []byte
}

// RandKey creates a new private key using a cryptographically secure source.
func RandKey() (iface.SecretKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate key")
	}
	return &secretKey{p: priv}, nil
}

// SecretKeyFromBytes creates a secret key from a 32 byte seed.
func SecretKeyFromBytes(seed []byte) (iface.SecretKey, error) {
	if len(seed) != SeedSize {
		return nil, errors.Errorf("secret key must be %d bytes, got %d", SeedSize, len(seed))
	}
	return &secretKey{p: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKeyFromBytes creates a public key from its 32 byte encoding.
func PublicKeyFromBytes(pub []byte) (iface.PublicKey, error) {
	if len(pub) != PublicKeySize {
		return nil, errors.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(pub))
	}
	p := make(ed25519.PublicKey, PublicKeySize)
	copy(p, pub)
	return &publicKey{p: p}, nil
}

// SignatureFromBytes creates a signature from its 64 byte encoding.
func SignatureFromBytes(sig []byte) (iface.Signature, error) {
	if len(sig) != SignatureSize {
		return nil, errors.Errorf("signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	s := make([]byte, SignatureSize)
	copy(s, sig)
	return &signature{s: s}, nil
}

// PublicKey obtains the public key corresponding to the secret key.
func (s *secretKey) PublicKey() iface.PublicKey {
	p := make(ed25519.PublicKey, PublicKeySize)
	copy(p, s.p.Public().(ed25519.PublicKey))
	return &publicKey{p: p}
}

// Sign a message using the secret key.
func (s *secretKey) Sign(msg []byte) iface.Signature {
	return &signature{s: ed25519.Sign(s.p, msg)}
}

// Marshal a secret key into its 32 byte seed form.
func (s *secretKey) Marshal() []byte {
	seed := make([]byte, SeedSize)
	copy(seed, s.p.Seed())
	return seed
}

// Marshal a public key into its 32 byte encoding.
func (p *publicKey) Marshal() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, p.p)
	return out
}

// Copy the public key to a new pointer reference.
func (p *publicKey) Copy() iface.PublicKey {
	out := make(ed25519.PublicKey, PublicKeySize)
	copy(out, p.p)
	return &publicKey{p: out}
}

// Verify a signature against a public key and message.
func (s *signature) Verify(pubKey iface.PublicKey, msg []byte) bool {
	pk, ok := pubKey.(*publicKey)
	if !ok {
		return false
	}
	return ed25519.Verify(pk.p, msg, s.s)
}

// Marshal a signature into its 64 byte encoding.
func (s *signature) Marshal() []byte {
	out := make([]byte, SignatureSize)
	copy(out, s.s)
	return out
}
