// Package db defines the coordinator's persistence surface and selects
// a backend for it.
package db

import (
	"github.com/ai4all-network/coordinator/coordinator/db/kv"
	"github.com/ai4all-network/coordinator/coordinator/db/memory"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/pkg/errors"
)

// NewDB initializes a database for the configured backend. The memory
// backend ignores dirPath.
func NewDB(backend, dirPath string) (Database, error) {
	switch backend {
	case params.StoreBackendMemory:
		return memory.NewStore(), nil
	case params.StoreBackendDurable:
		return kv.NewKVStore(dirPath)
	default:
		return nil, errors.Errorf("unknown store backend %q", backend)
	}
}
