package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// AtomicFileUpdate replaces filePath with content in a single rename so readers
// never observe a partial write. When createBackup is set and the file exists,
// the previous content is kept as a rotating backup.
func AtomicFileUpdate(filePath string, content []byte, createBackup bool) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	bm := NewBackupManager(DefaultBackupRetention)
	if createBackup && FileExists(filePath) {
		if _, err := bm.CreateBackup(filePath); err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmpFile.Name()) // no-op after a successful rename

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temporary file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tmpFile.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set permissions on temporary file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), filePath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	if createBackup {
		// Non-fatal, the update itself succeeded.
		_ = bm.CleanupOldBackups(filePath)
	}

	return nil
}

// MigrateConfig moves a config file from oldPath to newPath. The old file is
// kept as oldPath.backup.
func MigrateConfig(oldPath, newPath string) error {
	data, err := os.ReadFile(oldPath)
	if err != nil {
		return fmt.Errorf("failed to read old config file: %w", err)
	}

	if len(data) == 0 {
		return fmt.Errorf("old config file is empty")
	}

	var temp interface{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("old config file format is invalid: %w", err)
	}

	if err := AtomicFileUpdate(newPath, data, false); err != nil {
		return fmt.Errorf("failed to write new config file: %w", err)
	}

	if err := os.Rename(oldPath, oldPath+".backup"); err != nil {
		return fmt.Errorf("migrated, but failed to back up old config: %w", err)
	}

	return nil
}

// ShouldMigrateConfig reports whether oldPath exists and newPath does not
func ShouldMigrateConfig(oldPath, newPath string) bool {
	return FileExists(oldPath) && !FileExists(newPath)
}
