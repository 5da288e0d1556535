// Package history provides the append-only JSONL interaction log with
// short-window duplicate suppression.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// dedupWindow suppresses records identical to a recent one.
	dedupWindow = 5 * time.Second

	// dedupTailLines is how many trailing records are checked for
	// duplicates; the rest of the file is never scanned on write.
	dedupTailLines = 5

	// tailReadBytes is how much of the file end is read to find the last
	// few records.
	tailReadBytes = 16 * 1024

	// timestampLayout is ISO-8601 UTC with a trailing Z, seconds precision.
	timestampLayout = "2006-01-02T15:04:05Z"
)

// Record is one logged interaction.
type Record struct {
	Timestamp string         `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Mode      string         `json:"mode"`
	Prompt    string         `json:"prompt"`
	Snippets  []string       `json:"snippets"`
	Response  string         `json:"response"`
	Meta      map[string]any `json:"meta"`
}

// NewRecord creates a record stamped with the current UTC time.
func NewRecord(prompt string, snippets []string, response, sessionID, mode string) Record {
	if snippets == nil {
		snippets = []string{}
	}
	if mode == "" {
		mode = "chat"
	}
	return Record{
		Timestamp: time.Now().UTC().Format(timestampLayout),
		SessionID: sessionID,
		Mode:      mode,
		Prompt:    prompt,
		Snippets:  snippets,
		Response:  response,
		Meta:      map[string]any{},
	}
}

// Log is the append-only interaction log. Appends take a process mutex and a
// file lock so concurrent writers (including other processes) interleave
// whole lines.
type Log struct {
	path string

	mu  sync.Mutex
	flk *flock.Flock
}

// NewLog creates a log writing to path. The parent directory is created on
// first append.
func NewLog(path string) *Log {
	return &Log{
		path: path,
		flk:  flock.New(path + ".lock"),
	}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes the record unless an identical one (same prompt, response,
// session id, and mode) appears within the dedup window among the last few
// records. Dedup is best-effort; append failures are the caller's to
// swallow.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	if err := l.flk.Lock(); err != nil {
		return fmt.Errorf("lock interaction log: %w", err)
	}
	defer func() {
		if err := l.flk.Unlock(); err != nil {
			slog.Warn("history_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	if l.isRecentDuplicate(rec) {
		return nil
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open interaction log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append interaction log: %w", err)
	}
	return nil
}

// isRecentDuplicate checks the last few records for an identical one inside
// the dedup window. Any read or parse trouble means "not a duplicate".
func (l *Log) isRecentDuplicate(rec Record) bool {
	recTime, err := time.Parse(timestampLayout, rec.Timestamp)
	if err != nil {
		return false
	}

	for _, line := range l.tailLines(dedupTailLines) {
		var existing Record
		if err := json.Unmarshal([]byte(line), &existing); err != nil {
			continue
		}
		if strings.TrimSpace(existing.Prompt) != strings.TrimSpace(rec.Prompt) ||
			strings.TrimSpace(existing.Response) != strings.TrimSpace(rec.Response) ||
			existing.SessionID != rec.SessionID ||
			existing.Mode != rec.Mode {
			continue
		}

		existingTime, err := time.Parse(timestampLayout, existing.Timestamp)
		if err != nil {
			continue
		}
		diff := recTime.Sub(existingTime)
		if diff < 0 {
			diff = -diff
		}
		if diff < dedupWindow {
			return true
		}
	}
	return false
}

// tailLines returns up to n trailing non-empty lines without scanning the
// whole file.
func (l *Log) tailLines(n int) []string {
	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil
	}

	offset := info.Size() - tailReadBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil
	}

	lines := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	// The first line may be a partial record when we seeked mid-file; the
	// JSON parse in the caller rejects it.
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Read returns every parseable record with its line number.
func (l *Log) Read() ([]IndexedRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []IndexedRecord{}, nil
		}
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []IndexedRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err == nil {
			records = append(records, IndexedRecord{ID: line, Record: rec})
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan interaction log: %w", err)
	}
	return records, nil
}

// IndexedRecord pairs a record with its line number, the stable id used by
// the history endpoints.
type IndexedRecord struct {
	ID int
	Record
}
