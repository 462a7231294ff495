// Package testing spins up real database instances for unit tests
// throughout the coordinator repo.
package testing

import (
	"testing"

	"github.com/ai4all-network/coordinator/coordinator/db"
	"github.com/ai4all-network/coordinator/coordinator/db/kv"
	"github.com/ai4all-network/coordinator/coordinator/db/memory"
)

// SetupDB instantiates a bolt-backed database in a temp directory and
// returns it. Cleanup closes and clears the store.
func SetupDB(t testing.TB) db.Database {
	s, err := kv.NewKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to instantiate DB: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
		if err := s.ClearDB(); err != nil {
			t.Fatalf("Failed to clear database: %v", err)
		}
	})
	return s
}

// SetupMemoryDB instantiates the in-memory database.
func SetupMemoryDB(t testing.TB) db.Database {
	s := memory.NewStore()
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
	})
	return s
}
