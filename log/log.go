// Package log provides the daemon's logging backend, built on go-logging.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/op/go-logging.v1"
)

const fileMode = 0o600

// nopCloser keeps Rotate from closing stdout or a discard sink.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Backend is a leveled log backend whose output can be reopened.
type Backend struct {
	sync.RWMutex

	inner logging.LeveledBackend
	w     io.WriteCloser

	file    string
	level   logging.Level
	disable bool
}

var _ logging.LeveledBackend = (*Backend)(nil)

// New creates a backend writing to file (stdout when empty) at level.
// disable discards all output.
func New(file, level string, disable bool) (*Backend, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	b := &Backend{file: file, level: lvl, disable: disable}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

// ParseLevel maps a level name (ERROR, WARNING, NOTICE, INFO, DEBUG) to a
// go-logging level.
func ParseLevel(s string) (logging.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "", "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return logging.CRITICAL, fmt.Errorf("log: invalid level %q", s)
	}
}

func (b *Backend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	b.RLock()
	defer b.RUnlock()
	return b.inner.Log(level, calldepth, rec)
}

func (b *Backend) GetLevel(module string) logging.Level {
	b.RLock()
	defer b.RUnlock()
	return b.inner.GetLevel(module)
}

func (b *Backend) SetLevel(level logging.Level, module string) {
	b.RLock()
	defer b.RUnlock()
	b.inner.SetLevel(level, module)
}

func (b *Backend) IsEnabledFor(level logging.Level, module string) bool {
	b.RLock()
	defer b.RUnlock()
	return b.inner.IsEnabledFor(level, module)
}

// GetLogger returns a per-module logger writing to b.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b)
	return l
}

// Rotate reopens the log file, typically on SIGHUP.
func (b *Backend) Rotate() error {
	b.Lock()
	defer b.Unlock()
	if err := b.w.Close(); err != nil {
		return err
	}
	return b.open()
}

func (b *Backend) open() error {
	switch {
	case b.disable:
		b.w = nopCloser{io.Discard}
	case b.file == "":
		b.w = nopCloser{os.Stdout}
	default:
		f, err := os.OpenFile(b.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
		if err != nil {
			return fmt.Errorf("log: failed to open log file: %w", err)
		}
		b.w = f
	}

	format := logging.MustStringFormatter("%{time:15:04:05.000} %{level:.4s} %{module}: %{message}")
	base := logging.NewBackendFormatter(logging.NewLogBackend(b.w, "", 0), format)
	b.inner = logging.AddModuleLevel(base)
	b.inner.SetLevel(b.level, "")
	return nil
}

// Discard returns a backend that drops every record, for tests and tools.
func Discard() *Backend {
	b, _ := New("", "ERROR", true)
	return b
}
