// Package hashutil includes the canonical serialization and hashing
// primitives every hash in the coordinator is built from. Any object that
// ends up in an event hash, a state hash or a reward leaf goes through
// Canonical first so that replicas and replays produce identical digests.
package hashutil

import (
	"encoding/hex"

	"github.com/minio/sha256-simd"
)

// Hash defines a function that returns the sha256 checksum of the data passed in.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashHex returns the lowercase hex encoding of the sha256 checksum of data.
func HashHex(data []byte) string {
	h := Hash(data)
	return hex.EncodeToString(h[:])
}

// HashObject canonicalizes obj and returns the lowercase hex sha256 digest
// of the canonical form.
func HashObject(obj interface{}) (string, error) {
	b, err := Canonical(obj)
	if err != nil {
		return "", err
	}
	return HashHex(b), nil
}
