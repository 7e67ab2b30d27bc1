package log

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"
)

const (
	maxRecentLogs   = 200
	maxLineBytes    = 16 << 10
	maxPartialBytes = 64 << 10
)

// LogEntry is one retained log line.
type LogEntry struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// BufferMetrics counts lines the recent-log buffer refused.
type BufferMetrics struct {
	DroppedPartialOverflow uint64 `json:"droppedPartialOverflow"`
	DroppedTooLargeLines   uint64 `json:"droppedTooLargeLines"`
	DroppedIrrelevant      uint64 `json:"droppedIrrelevant"`
	DroppedMalformed       uint64 `json:"droppedMalformed"`
}

var (
	recentMu      sync.Mutex
	recent        []LogEntry
	bufferMetrics BufferMetrics
)

// structuredBufferWriter keeps the last relevant JSON log lines in memory for
// the admin log endpoint. Writes may split or batch lines.
type structuredBufferWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *structuredBufferWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial.Write(p)
	for {
		data := w.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, data[:idx])
		w.partial.Next(idx + 1)
		retain(line)
	}
	if w.partial.Len() > maxPartialBytes {
		w.partial.Reset()
		recentMu.Lock()
		bufferMetrics.DroppedPartialOverflow++
		recentMu.Unlock()
	}
	return len(p), nil
}

func retain(line []byte) {
	recentMu.Lock()
	defer recentMu.Unlock()

	if len(line) > maxLineBytes {
		bufferMetrics.DroppedTooLargeLines++
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		bufferMetrics.DroppedMalformed++
		return
	}
	if !relevant(fields) {
		bufferMetrics.DroppedIrrelevant++
		return
	}

	e := LogEntry{}
	if v, ok := fields["level"].(string); ok {
		e.Level = v
	}
	if v, ok := fields["message"].(string); ok {
		e.Message = v
	}
	if v, ok := fields["time"].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339, v)
	}
	delete(fields, "level")
	delete(fields, "message")
	delete(fields, "time")
	e.Fields = fields

	recent = append(recent, e)
	if len(recent) > maxRecentLogs {
		recent = recent[len(recent)-maxRecentLogs:]
	}
}

// relevant keeps audit records, handled requests and anything at warn or above.
func relevant(fields map[string]any) bool {
	if fields[FieldComponent] == "audit" {
		return true
	}
	if fields[FieldEvent] == "request.handled" {
		return true
	}
	switch fields["level"] {
	case "warn", "error", "fatal", "panic":
		return true
	}
	return false
}

// GetRecentLogs returns a copy of the retained entries, oldest first.
func GetRecentLogs() []LogEntry {
	recentMu.Lock()
	defer recentMu.Unlock()
	out := make([]LogEntry, len(recent))
	copy(out, recent)
	return out
}

// ClearRecentLogs drops every retained entry.
func ClearRecentLogs() {
	recentMu.Lock()
	defer recentMu.Unlock()
	recent = nil
}

// GetBufferMetrics returns the drop counters.
func GetBufferMetrics() BufferMetrics {
	recentMu.Lock()
	defer recentMu.Unlock()
	return bufferMetrics
}
