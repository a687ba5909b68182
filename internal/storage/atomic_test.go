package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAtomicWriter_WriteFile(t *testing.T) {
	tempDir := t.TempDir()

	backupDir := filepath.Join(tempDir, "backups")
	writer := NewAtomicWriter(backupDir)

	testFile := filepath.Join(tempDir, "creds.csv")
	testData := []byte("Device,Hostname\n")

	if err := writer.WriteFile(testFile, testData, 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("File content mismatch. Expected: %s, Got: %s", testData, data)
	}

	// Overwriting keeps a backup of the previous content
	newData := []byte("Device,Hostname\n10.0.0.1,sw1\n")
	if err := writer.WriteFile(testFile, newData, 0o600); err != nil {
		t.Fatalf("Failed to overwrite file: %v", err)
	}

	data, err = os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read updated file: %v", err)
	}
	if string(data) != string(newData) {
		t.Errorf("Updated file content mismatch. Expected: %s, Got: %s", newData, data)
	}

	backups, err := writer.Backups(testFile)
	if err != nil {
		t.Fatalf("Failed to list backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("Expected 1 backup, got %d", len(backups))
	}
	backup, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if string(backup) != string(testData) {
		t.Errorf("Backup content mismatch. Expected: %s, Got: %s", testData, backup)
	}
}

func TestAtomicWriter_NoBackupDir(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewAtomicWriter("")

	testFile := filepath.Join(tempDir, "plain.txt")
	for i := 0; i < 2; i++ {
		if err := writer.WriteFile(testFile, []byte(fmt.Sprintf("v%d", i)), 0o644); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backups, err := writer.Backups(testFile)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("Expected no backups, got %v", backups)
	}
}

func TestAtomicWriter_CreateFileRefusesOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewAtomicWriter("")

	testFile := filepath.Join(tempDir, "r1_golden_20240101_120000.cfg")
	if err := writer.CreateFile(testFile, []byte("first\n"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	err := writer.CreateFile(testFile, []byte("second\n"), 0o644)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Expected ErrExists, got %v", err)
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "first\n" {
		t.Errorf("Existing file was modified: %q", data)
	}

	// No temp files are left behind
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the created file, found %d entries", len(entries))
	}
}

func TestAtomicWriter_ConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()

	writer := NewAtomicWriter("")
	testFile := filepath.Join(tempDir, "concurrent.txt")

	const numGoroutines = 10
	const numWrites = 5

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numWrites)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numWrites; j++ {
				data := []byte(fmt.Sprintf("Writer %d - Write %d", id, j))
				if err := writer.WriteFile(testFile, data, 0o644); err != nil {
					errs <- err
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent write error: %v", err)
	}

	if _, err := os.ReadFile(testFile); err != nil {
		t.Errorf("Failed to read file after concurrent writes: %v", err)
	}
}

func TestVerifyFileIntegrity(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "integrity-test.txt")
	testData := []byte("Integrity test data")

	if err := os.WriteFile(testFile, testData, 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := verifyFileIntegrity(testFile, testData); err != nil {
		t.Errorf("Integrity check failed for valid file: %v", err)
	}

	if err := verifyFileIntegrity(testFile, []byte("Wrong data")); err == nil {
		t.Error("Expected integrity check to fail with wrong data")
	}
}
