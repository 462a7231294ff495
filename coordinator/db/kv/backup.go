package kv

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/ai4all-network/coordinator/shared/fileutil"
	"github.com/ai4all-network/coordinator/shared/params"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

const backupsDirectoryName = "backups"

// Backup the database to a timestamped file under
// <databasePath>/backups.
func (s *Store) Backup(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.Backup")
	defer span.End()

	backupsDir := path.Join(s.databasePath, backupsDirectoryName)
	if err := fileutil.MkdirAll(backupsDir); err != nil {
		return err
	}
	backupPath := path.Join(backupsDir, fmt.Sprintf("coordinator_%d.backup", time.Now().Unix()))
	log.WithField("backup", backupPath).Info("Writing backup database")
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(backupPath, params.CoordinatorIoConfig().ReadWritePermissions)
	})
}
