// Package logging provides session-scoped structured loggers. All
// components of one process append to the same file under
// ~/.pinpoint/logs/, named by a per-process session ID, so one automation
// run reads as one log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

var (
	sessionID     string
	sessionIDOnce sync.Once

	initOnce sync.Once
	initErr  error
	logFile  *os.File
	logPath  string
	handler  slog.Handler
	mu       sync.Mutex
)

// SessionID returns the identifier shared by all loggers in this process.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

func initSessionFile() error {
	initOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("logging: resolve home directory: %w", err)
			return
		}
		dir := filepath.Join(home, ".pinpoint", "logs")
		if err := os.MkdirAll(dir, 0o750); err != nil {
			initErr = fmt.Errorf("logging: create log directory: %w", err)
			return
		}
		path := filepath.Join(dir, SessionID()+"-pinpoint.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			initErr = fmt.Errorf("logging: open log file: %w", err)
			return
		}
		logFile = f
		logPath = path
		handler = slog.NewTextHandler(&syncWriter{w: f}, &slog.HandlerOptions{Level: slog.LevelDebug})
	})
	return initErr
}

// NewLogger returns a component-tagged logger writing to the session log
// file. If the file cannot be set up it falls back to stderr and reports
// the error alongside the still-usable logger.
func NewLogger(component string) (*slog.Logger, error) {
	if err := initSessionFile(); err != nil {
		fallback := slog.New(slog.NewTextHandler(os.Stderr, nil))
		return fallback.With("component", component, "session", SessionID()), err
	}
	return slog.New(handler).With("component", component, "session", SessionID()), nil
}

// Path returns the session log file path, or empty before the first
// NewLogger call (or after a fallback).
func Path() string {
	return logPath
}

// Close flushes and closes the session log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// syncWriter serializes writes from multiple component loggers sharing one
// file.
type syncWriter struct {
	w io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}
