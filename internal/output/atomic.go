package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// BackupThenWrite copies the current version of path (when one exists) into
// backupDir with a timestamp suffix, then atomically writes the new data.
// The backup keeps the previous feature file around for audit and recovery.
func BackupThenWrite(path, backupDir string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		if err := backupFile(path, backupDir); err != nil {
			return err
		}
	}
	return WriteFileAtomic(path, data)
}

func backupFile(path, backupDir string) error {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir %s: %w", backupDir, err)
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s for backup: %w", path, err)
	}
	defer src.Close()

	stamp := time.Now().Format("20060102T150405")
	base := filepath.Base(path)
	dstPath := filepath.Join(backupDir, fmt.Sprintf("%s.%s.bak", base, stamp))
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create backup %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy backup %s: %w", dstPath, err)
	}
	return nil
}
