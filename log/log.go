// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a minimal leveled logger used across bwpak's decoders.
// It follows the same small surface the teacher package referenced
// (Logger, Helper, NewStdLogger, NewFilter/FilterLevel) so that decoders can
// log-and-continue on non-fatal problems instead of aborting construction.
package log

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level is a log severity.
type Level int8

// Severities, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal logging contract. keyvals is an alternating
// key/value list, following the same convention as structured loggers in
// the wider ecosystem (e.g. go-kit/kratos style).
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes to an io.Writer via the standard library logger.
type stdLogger struct {
	mu  sync.Mutex
	log *log.Logger
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{log: log.New(w, "", log.LstdFlags)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprint(keyvals...)
	l.log.Printf("[%s] %s", level, msg)
	return nil
}

// filter wraps a Logger and drops records below a minimum level.
type filter struct {
	logger Logger
	level  Level
}

// FilterOption configures a filter.
type FilterOption func(*filter)

// FilterLevel sets the minimum level that passes through the filter.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

// NewFilter returns a Logger that forwards to logger only records at or
// above the configured level.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper provides leveled, printf-style convenience methods over a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprint(args...))
}

func (h *Helper) logf(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprintf(format, args...))
}

// Debug logs at LevelDebug.
func (h *Helper) Debug(args ...interface{}) { h.log(LevelDebug, args...) }

// Debugf logs at LevelDebug with a format string.
func (h *Helper) Debugf(format string, args ...interface{}) { h.logf(LevelDebug, format, args...) }

// Info logs at LevelInfo.
func (h *Helper) Info(args ...interface{}) { h.log(LevelInfo, args...) }

// Infof logs at LevelInfo with a format string.
func (h *Helper) Infof(format string, args ...interface{}) { h.logf(LevelInfo, format, args...) }

// Warn logs at LevelWarn.
func (h *Helper) Warn(args ...interface{}) { h.log(LevelWarn, args...) }

// Warnf logs at LevelWarn with a format string.
func (h *Helper) Warnf(format string, args ...interface{}) { h.logf(LevelWarn, format, args...) }

// Error logs at LevelError.
func (h *Helper) Error(args ...interface{}) { h.log(LevelError, args...) }

// Errorf logs at LevelError with a format string.
func (h *Helper) Errorf(format string, args ...interface{}) { h.logf(LevelError, format, args...) }
