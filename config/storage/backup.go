package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultBackupRetention is how many previous config snapshots are kept
const DefaultBackupRetention = 3

// backupStamp sorts lexically in save order; the fractional seconds keep
// two saves within one second apart.
const backupStamp = "20060102150405.000000000"

// BackupManager keeps copies of the config snapshot a save is about to
// replace, named <config>.backup-<stamp>-<pid>.
type BackupManager struct {
	// MaxBackups is how many snapshots CleanupOldBackups leaves behind
	MaxBackups int
}

// NewBackupManager returns a manager keeping maxBackups snapshots, or
// DefaultBackupRetention when maxBackups is not positive.
func NewBackupManager(maxBackups int) *BackupManager {
	if maxBackups <= 0 {
		maxBackups = DefaultBackupRetention
	}
	return &BackupManager{MaxBackups: maxBackups}
}

func backupGlob(configPath string) string {
	return configPath + ".backup-*"
}

// CreateBackup copies the current config file next to itself before it is
// overwritten. The pid tells apart snapshots taken by the panel, the agent
// and CLI invocations saving at the same moment.
func (bm *BackupManager) CreateBackup(configPath string) (string, error) {
	name := fmt.Sprintf("%s.backup-%s-%d", configPath, time.Now().Format(backupStamp), os.Getpid())
	if err := copySnapshot(configPath, name); err != nil {
		return "", fmt.Errorf("failed to back up config: %w", err)
	}
	return name, nil
}

// ListBackups returns the snapshots kept for configPath, oldest first
func (bm *BackupManager) ListBackups(configPath string) ([]string, error) {
	names, err := filepath.Glob(backupGlob(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to list config backups: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// CleanupOldBackups drops the oldest snapshots beyond MaxBackups
func (bm *BackupManager) CleanupOldBackups(configPath string) error {
	names, err := bm.ListBackups(configPath)
	if err != nil {
		return err
	}
	if len(names) <= bm.MaxBackups {
		return nil
	}
	for _, name := range names[:len(names)-bm.MaxBackups] {
		if err := os.Remove(name); err != nil {
			return fmt.Errorf("failed to remove config backup %s: %w", name, err)
		}
	}
	return nil
}

// RestoreFromBackup puts snapshot backupPath back in place of configPath.
// Only backups of configPath itself are accepted.
func (bm *BackupManager) RestoreFromBackup(configPath, backupPath string) error {
	ok, err := filepath.Match(backupGlob(configPath), backupPath)
	if err != nil {
		return fmt.Errorf("invalid backup path: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s is not a backup of %s", backupPath, configPath)
	}
	if err := copySnapshot(backupPath, configPath); err != nil {
		return fmt.Errorf("failed to restore config: %w", err)
	}
	return nil
}

// RestoreFromLatestBackup rolls configPath back to the newest snapshot
func (bm *BackupManager) RestoreFromLatestBackup(configPath string) error {
	names, err := bm.ListBackups(configPath)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no config backups found for %s", configPath)
	}
	return bm.RestoreFromBackup(configPath, names[len(names)-1])
}

// copySnapshot copies src to dst with src's permissions. Config files
// hold API keys, so the mode must carry over.
func copySnapshot(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}
