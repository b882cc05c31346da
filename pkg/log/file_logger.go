package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a capture file. Safe for concurrent use.
//
// Log never blocks the caller on a failing disk: a write error is reported
// once through the error handler and later events are counted as dropped.
type FileLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *cbor.Encoder
	onError func(error)

	written int
	dropped int
	failed  bool
	closed  bool
}

// FileLoggerOption configures a FileLogger.
type FileLoggerOption func(*FileLogger)

// WithWriteErrorHandler sets fn to receive the first write error.
func WithWriteErrorHandler(fn func(error)) FileLoggerOption {
	return func(l *FileLogger) {
		l.onError = fn
	}
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string, opts ...FileLoggerOption) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &FileLogger{
		path:    path,
		file:    f,
		encoder: NewEncoder(f),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log appends event. Events after Close or after a write error are dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.failed {
		l.dropped++
		l.mu.Unlock()
		return
	}

	err := l.encoder.Encode(event)
	if err == nil {
		l.written++
		l.mu.Unlock()
		return
	}
	l.failed = true
	l.dropped++
	onError := l.onError
	l.mu.Unlock()

	if onError != nil {
		onError(err)
	}
}

// Path returns the capture file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Written returns the number of events written.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Dropped returns the number of events lost to write errors.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the file. Further calls are no-ops and later events are
// ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
