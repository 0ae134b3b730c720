// internal/agent/source.go
package agent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ErrNoLogFile is returned when the tailed file does not exist yet
var ErrNoLogFile = errors.New("log file not found")

// ReadNewLines returns the complete lines appended to path since offset and
// the offset just past the last newline read. A file shorter than offset
// was truncated or rotated, so reading restarts from the beginning. A
// trailing partial line is left for the next poll.
func ReadNewLines(path string, offset int64) ([]string, int64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, offset, fmt.Errorf("%w: %s", ErrNoLogFile, path)
	}
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, offset, err
	}
	size := info.Size()
	if offset < 0 || size < offset {
		offset = 0
	}
	if size == offset {
		return nil, offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}
	data, err := io.ReadAll(io.LimitReader(f, size-offset))
	if err != nil {
		return nil, offset, err
	}

	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return nil, offset, nil
	}
	complete := string(data[:last])

	lines := strings.Split(complete, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, offset + int64(last) + 1, nil
}

// CapLines returns at most max lines from the end of the slice (most recent)
// Returns true if lines were truncated
func CapLines(lines []string, max int) ([]string, bool) {
	if max <= 0 || len(lines) <= max {
		return lines, false
	}
	return lines[len(lines)-max:], true
}
