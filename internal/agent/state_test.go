// internal/agent/state_test.go
package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStateReadWrite(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "nested", "offset")

	// Initially should return zero
	off, err := ReadOffset(statePath)
	if err != nil {
		t.Fatalf("ReadOffset (missing file) error: %v", err)
	}
	if off != 0 {
		t.Errorf("expected 0 for missing file, got %d", off)
	}

	if err := WriteOffset(statePath, 123456); err != nil {
		t.Fatalf("WriteOffset error: %v", err)
	}

	off, err = ReadOffset(statePath)
	if err != nil {
		t.Fatalf("ReadOffset error: %v", err)
	}
	if off != 123456 {
		t.Errorf("ReadOffset = %d, want 123456", off)
	}
}

func TestStateCorruptFile(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "offset")

	for _, garbage := range []string{"not an offset", "-5"} {
		os.WriteFile(statePath, []byte(garbage), 0644)

		// Should return zero (fresh start)
		off, err := ReadOffset(statePath)
		if err != nil {
			t.Fatalf("ReadOffset (%q) error: %v", garbage, err)
		}
		if off != 0 {
			t.Errorf("expected 0 for %q, got %d", garbage, off)
		}
	}
}
