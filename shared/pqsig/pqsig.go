// Package pqsig exposes the signature scheme the coordinator authenticates
// workers with, together with the account address derivation bound to it.
// The wire format is scheme-agnostic: requests carry hex-encoded keys and
// signatures, and accounts are addressed by a digest of the public key.
//
// TODO: swap the backing scheme for the lattice-based primitive once the
// worker fleet ships it; the interfaces in pqsig/iface are the boundary.
package pqsig

import (
	"encoding/hex"

	"github.com/ai4all-network/coordinator/shared/hashutil"
	"github.com/ai4all-network/coordinator/shared/pqsig/ed25519"
	"github.com/ai4all-network/coordinator/shared/pqsig/iface"
)

// AddressPrefix starts every account identifier on the network.
const AddressPrefix = "ai4a"

// AddressLength is the total length of a textual account identifier:
// the prefix plus 20 hex-encoded digest bytes.
const AddressLength = len(AddressPrefix) + 40

// RandKey creates a new private key using a cryptographically secure source.
func RandKey() (iface.SecretKey, error) {
	return ed25519.RandKey()
}

// SecretKeyFromBytes creates a secret key from its byte encoding.
func SecretKeyFromBytes(b []byte) (iface.SecretKey, error) {
	return ed25519.SecretKeyFromBytes(b)
}

// PublicKeyFromBytes creates a public key from its byte encoding.
func PublicKeyFromBytes(b []byte) (iface.PublicKey, error) {
	return ed25519.PublicKeyFromBytes(b)
}

// SignatureFromBytes creates a signature from its byte encoding.
func SignatureFromBytes(b []byte) (iface.Signature, error) {
	return ed25519.SignatureFromBytes(b)
}

// AddressFromPublicKey derives the account identifier bound to a public
// key: the network prefix followed by the first 20 bytes of the key's
// sha256 digest, hex encoded.
func AddressFromPublicKey(pubKey []byte) string {
	digest := hashutil.Hash(pubKey)
	return AddressPrefix + hex.EncodeToString(digest[:20])
}

// ValidAddress reports whether addr is structurally a network address.
func ValidAddress(addr string) bool {
	if len(addr) != AddressLength {
		return false
	}
	if addr[:len(AddressPrefix)] != AddressPrefix {
		return false
	}
	_, err := hex.DecodeString(addr[len(AddressPrefix):])
	return err == nil
}
