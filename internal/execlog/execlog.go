// Package execlog keeps the durable, append-only record of every
// control plane operation: one line per action with start and end
// timestamps, the extracted identifier or status, the exit code and the
// raw output. The engine never reads it back; it exists for audit and
// post-hoc diagnosis.
package execlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Log appends operation records to a file. It is safe for use from the
// orchestration thread and the report ticker.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens (or creates) the log file in append-only mode.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open execution log: %w", err)
	}
	return &Log{f: f, path: path}, nil
}

// Record writes one operation line. Implements exec.Recorder.
func (l *Log) Record(started, ended time.Time, action string, code int, fields map[string]string, output string) {
	id := fields["id"]
	if id == "" {
		id = fields["status"]
	}
	line := fmt.Sprintf("%s %s code=%d id=%q action=%q output=%q\n",
		started.UTC().Format(time.RFC3339Nano),
		ended.UTC().Format(time.RFC3339Nano),
		code, id, action, strings.TrimSpace(output))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	_, _ = l.f.WriteString(line)
}

// Rotate closes the current file and renames it with the given suffix,
// then reopens a fresh file at the original path. Used at reporting
// boundaries; the rotated file is what the object store archiver
// uploads.
func (l *Log) Rotate(suffix string) (rotated string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.f.Close(); err != nil {
		return "", fmt.Errorf("failed to close execution log: %w", err)
	}
	rotated = l.path + "." + suffix
	if err := os.Rename(l.path, rotated); err != nil {
		return "", fmt.Errorf("failed to rotate execution log: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to reopen execution log: %w", err)
	}
	l.f = f
	return rotated, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.f.Close()
	l.f = nil
	return err
}
