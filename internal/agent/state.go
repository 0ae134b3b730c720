// internal/agent/state.go
package agent

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadOffset reads the byte offset already shipped from the state file.
// Returns 0 if the file doesn't exist or is corrupt.
func ReadOffset(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	off, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || off < 0 {
		// Corrupt file - fresh start
		return 0, nil
	}
	return off, nil
}

// WriteOffset writes the offset to the state file.
// Creates parent directories if needed.
func WriteOffset(path string, offset int64) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// write then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(offset, 10)), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
