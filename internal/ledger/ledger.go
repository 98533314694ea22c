// Package ledger keeps the local, append-only record of mail messages that
// have been fully resolved, plus a log of failed attempts per message.
//
// Files hold one message id per line. Both are read fully on Open and appended
// to in place; neither is safe for concurrent writers.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ledger is the set of message ids already resolved.
type Ledger struct {
	path string
	file *os.File
	ids  map[string]struct{}
}

// Open loads the ledger at path, creating the file if needed.
func Open(path string) (*Ledger, error) {
	ids, f, err := openLog(path)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return &Ledger{path: path, file: f, ids: set}, nil
}

// Contains reports whether id has been recorded.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Record appends id and syncs the file. Recording an id twice is a no-op.
func (l *Ledger) Record(id string) error {
	if l.Contains(id) {
		return nil
	}
	if err := appendLine(l.file, id); err != nil {
		return fmt.Errorf("ledger.Record %s: %w", id, err)
	}
	l.ids[id] = struct{}{}
	return nil
}

// Len returns the number of recorded ids.
func (l *Ledger) Len() int {
	return len(l.ids)
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the backing file.
func (l *Ledger) Close() error {
	return l.file.Close()
}

// AttemptLog counts failed processing attempts per message id.
type AttemptLog struct {
	path   string
	file   *os.File
	counts map[string]int
}

// OpenAttempts loads the attempt log at path, creating the file if needed.
func OpenAttempts(path string) (*AttemptLog, error) {
	ids, f, err := openLog(path)
	if err != nil {
		return nil, fmt.Errorf("ledger.OpenAttempts: %w", err)
	}

	counts := make(map[string]int)
	for _, id := range ids {
		counts[id]++
	}

	return &AttemptLog{path: path, file: f, counts: counts}, nil
}

// Failures returns how many failed attempts have been logged for id.
func (a *AttemptLog) Failures(id string) int {
	return a.counts[id]
}

// RecordFailure appends one failed attempt for id and returns the new count.
func (a *AttemptLog) RecordFailure(id string) (int, error) {
	if err := appendLine(a.file, id); err != nil {
		return a.counts[id], fmt.Errorf("ledger.RecordFailure %s: %w", id, err)
	}
	a.counts[id]++
	return a.counts[id], nil
}

// Close closes the backing file.
func (a *AttemptLog) Close() error {
	return a.file.Close()
}

func openLog(path string) ([]string, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	ids, unterminated, err := readIDs(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// A torn or hand-edited last line would otherwise swallow the next id.
	if unterminated {
		if _, err := f.WriteString("\n"); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("terminating %s: %w", path, err)
		}
	}

	return ids, f, nil
}

// readIDs returns the non-blank lines of path and whether the file ends
// without a newline.
func readIDs(path string) ([]string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	unterminated := len(data) > 0 && data[len(data)-1] != '\n'
	return ids, unterminated, nil
}

func appendLine(f *os.File, id string) error {
	if strings.ContainsAny(id, "\r\n") || strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid message id %q", id)
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		return err
	}
	return f.Sync()
}
