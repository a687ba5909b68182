package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrExists is returned by CreateFile when the target already exists.
var ErrExists = errors.New("file already exists")

// AtomicWriter provides atomic file operations with optional backups
type AtomicWriter struct {
	locks     map[string]*sync.Mutex // per-file locks
	locksMu   sync.Mutex             // protects the locks map
	backupDir string
	now       func() time.Time
}

// NewAtomicWriter creates a new atomic writer. An empty backupDir disables backups.
func NewAtomicWriter(backupDir string) *AtomicWriter {
	return &AtomicWriter{
		locks:     make(map[string]*sync.Mutex),
		backupDir: backupDir,
		now:       time.Now,
	}
}

// WriteFile replaces filename atomically, keeping a backup of the previous content
func (w *AtomicWriter) WriteFile(filename string, data []byte, perm os.FileMode) error {
	fileLock := w.getFileLock(filename)
	fileLock.Lock()
	defer fileLock.Unlock()

	if err := w.createBackup(filename); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	tempFile, err := w.writeTemp(filename, data, perm)
	if err != nil {
		return err
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// CreateFile writes filename atomically but never replaces an existing file.
// Readers observe either no file or the complete content.
func (w *AtomicWriter) CreateFile(filename string, data []byte, perm os.FileMode) error {
	fileLock := w.getFileLock(filename)
	fileLock.Lock()
	defer fileLock.Unlock()

	if _, err := os.Lstat(filename); err == nil {
		return fmt.Errorf("%s: %w", filepath.Base(filename), ErrExists)
	}

	tempFile, err := w.writeTemp(filename, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tempFile)

	// link fails with EEXIST when another writer got there first
	if err := os.Link(tempFile, filename); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s: %w", filepath.Base(filename), ErrExists)
		}
		return fmt.Errorf("failed to publish file: %w", err)
	}

	return nil
}

// writeTemp writes data next to filename and verifies it
func (w *AtomicWriter) writeTemp(filename string, data []byte, perm os.FileMode) (string, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := filepath.Join(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp."+generateTempSuffix())
	if err := os.WriteFile(tempFile, data, perm); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := verifyFileIntegrity(tempFile, data); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("file integrity check failed: %w", err)
	}

	return tempFile, nil
}

// createBackup copies the existing file into the backup directory
func (w *AtomicWriter) createBackup(filename string) error {
	if w.backupDir == "" {
		return nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil
	}

	if err := os.MkdirAll(w.backupDir, 0o700); err != nil {
		return err
	}

	timestamp := w.now().Format("20060102-150405")
	backupName := fmt.Sprintf("%s.%s.backup", filepath.Base(filename), timestamp)
	return copyFile(filename, filepath.Join(w.backupDir, backupName))
}

// Backups returns the backup files kept for filename, oldest first
func (w *AtomicWriter) Backups(filename string) ([]string, error) {
	if w.backupDir == "" {
		return nil, nil
	}
	return filepath.Glob(filepath.Join(w.backupDir, filepath.Base(filename)+".*.backup"))
}

// getFileLock gets or creates a lock for a specific file
func (w *AtomicWriter) getFileLock(filename string) *sync.Mutex {
	w.locksMu.Lock()
	defer w.locksMu.Unlock()

	if lock, exists := w.locks[filename]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	w.locks[filename] = lock
	return lock
}

// verifyFileIntegrity verifies that written data matches expected data
func verifyFileIntegrity(filename string, expectedData []byte) error {
	actualData, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if sha256.Sum256(expectedData) != sha256.Sum256(actualData) {
		return fmt.Errorf("hash mismatch")
	}

	return nil
}

// copyFile copies a file from src to dst, preserving its permission bits
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// generateTempSuffix generates a unique suffix for temporary files
func generateTempSuffix() string {
	timestamp := time.Now().UnixNano()
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", timestamp, os.Getpid())))
	return hex.EncodeToString(hash[:4])
}
