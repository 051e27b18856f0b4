// Package history keeps a JSON-lines record of iotz invocations.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxLine bounds one history record; longer lines fail the read.
const maxLine = 1024 * 1024

// Entry is one invocation.
type Entry struct {
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command"`
	Arg       string  `json:"arg,omitempty"`
	Path      string  `json:"path"`
	Image     string  `json:"image,omitempty"`
	Toolchain string  `json:"toolchain,omitempty"`
	ExitCode  int     `json:"exit_code"`
	Duration  float64 `json:"duration_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Recorder appends entries to the history file.
type Recorder struct {
	writer io.WriteCloser
	mu     sync.Mutex
}

// Open creates a Recorder appending to path. An empty path disables recording.
func Open(path string) (*Recorder, error) {
	if path == "" {
		return &Recorder{writer: nopWriteCloser{}}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return &Recorder{writer: file}, nil
}

// Record appends entry, stamping it with the current time if unset.
func (r *Recorder) Record(entry Entry) error {
	if r == nil || r.writer == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return nil
}

// Close closes the history file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != nil {
		return r.writer.Close()
	}
	return nil
}

// Read returns the entries in path, oldest first. A missing file yields no
// entries. Malformed lines are skipped. limit > 0 keeps only the newest limit.
func Read(path string, limit int) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
