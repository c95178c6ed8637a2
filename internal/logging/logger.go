// Package logging provides the two-tier logging used across the client:
// a structured operational logger (slog.go, structured.go) for connection
// lifecycle and protocol events, and the per-request OperationLog below for
// completed user operations (GET/STORE/ARITHMETIC/REMOVE); TAP stream
// events are not recorded there.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// OperationEntry represents a single completed user operation.
type OperationEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Opaque     uint32    `json:"opaque"`
	Opcode     string    `json:"opcode"`
	Server     int       `json:"server"`
	Key        string    `json:"key,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Synthetic  bool      `json:"synthetic,omitempty"`
}

// OperationLog records one entry per completed user operation, optionally
// to a console and/or an append-only JSON file.
type OperationLog struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultOperationLog = &OperationLog{enabled: true, console: false}

// Default returns the process-wide operation log.
func Default() *OperationLog {
	return defaultOperationLog
}

// SetOutput redirects JSON-line output to a file, closing any prior file.
func (l *OperationLog) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables or disables human-readable console output.
func (l *OperationLog) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// SetEnabled toggles logging entirely.
func (l *OperationLog) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Log writes one operation entry.
func (l *OperationLog) Log(entry OperationEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}
	entry.Timestamp = time.Now()

	if l.console {
		status := "ok"
		if !entry.Success {
			status = "err"
		}
		synth := ""
		if entry.Synthetic {
			synth = " [synthetic]"
		}
		fmt.Printf("[op] %s opaque=%d server=%d %s %dms%s\n",
			status, entry.Opaque, entry.Server, entry.Opcode, entry.DurationMs, synth)
		if entry.Error != "" {
			fmt.Printf("[op]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, err := json.Marshal(entry)
		if err == nil {
			l.file.Write(append(data, '\n'))
		}
	}
}

// Close releases the log file, if any.
func (l *OperationLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
