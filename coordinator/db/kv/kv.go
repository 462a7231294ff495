// Package kv defines the durable bolt-backed persistence layer of the
// coordinator.
package kv

import (
	"os"
	"path"

	"github.com/ai4all-network/coordinator/coordinator/db/iface"
	"github.com/ai4all-network/coordinator/shared/fileutil"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// CoordinatorNodeDbDirName is the name of the directory containing the
// coordinator node database.
const CoordinatorNodeDbDirName = "coordinatornodedata"

// DatabaseFileName is the name of the coordinator node database.
const DatabaseFileName = "coordinator.db"

var _ = iface.Database(&Store{})

// Store defines an implementation of the coordinator Database interface
// using BoltDB as the underlying persistent kv-store.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// KVStoreDatafilePath is the canonical database file path under a data
// directory.
func KVStoreDatafilePath(dirPath string) string {
	return path.Join(dirPath, DatabaseFileName)
}

// NewKVStore initializes a new bolt kv-store at the directory path
// specified, creates the kv-buckets based on the schema, and stores an
// open connection db object as a property of the Store struct.
func NewKVStore(dirPath string) (*Store, error) {
	hasDir, err := fileutil.HasDir(dirPath)
	if err != nil {
		return nil, err
	}
	if !hasDir {
		if err := fileutil.MkdirAll(dirPath); err != nil {
			return nil, err
		}
	}
	datafile := KVStoreDatafilePath(dirPath)
	boltDB, err := bolt.Open(
		datafile,
		params.CoordinatorIoConfig().ReadWritePermissions,
		&bolt.Options{Timeout: params.CoordinatorIoConfig().BoltTimeout},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	kv := &Store{db: boltDB, databasePath: dirPath}
	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			eventsBucket,
			eventHashIndexBucket,
			chainMetaBucket,
			snapshotsBucket,
			statesBucket,
			assignmentsBucket,
			submissionsBucket,
			nodeKeysBucket,
			heartbeatsBucket,
			devicesBucket,
			lifecycleBucket,
			balancesBucket,
			ledgerEntriesBucket,
		)
	}); err != nil {
		return nil, err
	}
	return kv, nil
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if err := s.Close(); err != nil {
		return errors.Wrap(err, "failed to close db")
	}
	if !fileutil.FileExists(KVStoreDatafilePath(s.databasePath)) {
		return nil
	}
	return os.Remove(KVStoreDatafilePath(s.databasePath))
}

// Close closes the underlying boltdb database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// Size of the data stored in the underlying boltdb file.
func (s *Store) Size() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}
