// Package iface defines the signature scheme interfaces the coordinator
// authenticates workers with. Concrete schemes live in sibling packages.
package iface

// SecretKey represents a worker signing key.
type SecretKey interface {
	PublicKey() PublicKey
	Sign(msg []byte) Signature
	Marshal() []byte
}

// PublicKey represents a worker identity key.
type PublicKey interface {
	Marshal() []byte
	Copy() PublicKey
}

// Signature represents a signature over an auth string.
type Signature interface {
	Verify(pubKey PublicKey, msg []byte) bool
	Marshal() []byte
}
