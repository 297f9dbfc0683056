// Package logger wraps the standard library logger with level-tagged
// output and a broadcast fan-out so operational log lines can be tailed
// by a diagnostics surface without coupling every caller to that surface.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger writes level-tagged lines to stdout (and, if configured, a file)
// and fans them out to any number of subscriber channels.
type Logger struct {
	file        *os.File
	logger      *log.Logger
	broadcast   chan string
	subscribers map[chan string]bool
	subMu       sync.RWMutex
	mu          sync.RWMutex
	closed      bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the process-wide default logger. Subsequent calls
// return the logger created by the first call.
func Init(logFile string) (*Logger, error) {
	var err error
	once.Do(func() {
		defaultLogger, err = New(logFile)
	})
	return defaultLogger, err
}

// New creates a standalone logger instance. If logFile is empty, output
// goes to stdout only.
func New(logFile string) (*Logger, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writer = io.MultiWriter(os.Stdout, f)
	}

	l := &Logger{
		file:        file,
		logger:      log.New(writer, "", log.LstdFlags),
		broadcast:   make(chan string, 256),
		subscribers: make(map[chan string]bool),
	}
	go l.broadcastLoop()
	return l, nil
}

// Default returns the process-wide logger, creating a stdout-only
// fallback if Init was never called.
func Default() *Logger {
	if defaultLogger == nil {
		l, _ := New("")
		defaultLogger = l
	}
	return defaultLogger
}

func (l *Logger) broadcastLoop() {
	defer func() {
		l.subMu.Lock()
		for ch := range l.subscribers {
			close(ch)
		}
		l.subscribers = make(map[chan string]bool)
		l.subMu.Unlock()
	}()

	for line := range l.broadcast {
		l.subMu.RLock()
		targets := make([]chan string, 0, len(l.subscribers))
		for ch := range l.subscribers {
			targets = append(targets, ch)
		}
		l.subMu.RUnlock()

		for _, ch := range targets {
			select {
			case ch <- line:
			default:
			}
		}
	}
}

// Subscribe returns a channel that receives every future log line. The
// caller must call Unsubscribe when done to release it.
func (l *Logger) Subscribe() chan string {
	ch := make(chan string, 32)
	l.subMu.Lock()
	l.subscribers[ch] = true
	l.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (l *Logger) Unsubscribe(ch chan string) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if l.subscribers[ch] {
		delete(l.subscribers, ch)
		close(ch)
	}
}

func (l *Logger) emit(level, format string, v ...interface{}) {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return
	}

	msg := fmt.Sprintf(format, v...)
	line := fmt.Sprintf("[%s] [%-5s] %s", time.Now().Format("2006-01-02T15:04:05Z07:00"), level, msg)
	l.logger.Output(3, line)

	select {
	case l.broadcast <- line:
	default:
	}
}

func (l *Logger) Infof(format string, v ...interface{})  { l.emit("INFO", format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.emit("WARN", format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.emit("ERROR", format, v...) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.emit("DEBUG", format, v...) }

// Close stops the broadcaster and closes the backing file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.broadcast)
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func Infof(format string, v ...interface{})  { Default().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { Default().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { Default().Errorf(format, v...) }
func Debugf(format string, v ...interface{}) { Default().Debugf(format, v...) }
