package storage

import (
	"fmt"
	"os"
)

// DatabaseSize returns the on-disk size of a SQLite database, including its
// WAL and shared-memory sidecar files. Missing files count as 0.
func DatabaseSize(dbPath string) (int64, error) {
	if dbPath == "" {
		return 0, nil
	}
	var total int64
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}

// DiskUsage returns the size of the store's database files.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	return DatabaseSize(s.path)
}
