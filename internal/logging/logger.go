// Package logging provides a thin, component-tagged wrapper around
// logrus for the daemon, bridge and CLI to share.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a component-scoped logrus entry. Every log line carries a
// "component" field so daemon/bridge/session/cli output can be told apart
// once several sessions share a log file.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger that writes to out, tagging every line with
// component, at the given level ("debug", "info", "warn", "error").
func New(out io.Writer, component, level string) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
	return &Logger{entry: base.WithField("component", component)}
}

// NewStderr is a convenience constructor for short-lived CLI processes.
func NewStderr(component, level string) *Logger {
	return New(os.Stderr, component, level)
}

// WithSession returns a derived Logger tagged with the given session
// name, for use by a daemon handling one particular session.
func (l *Logger) WithSession(name string) *Logger {
	return &Logger{entry: l.entry.WithField("session", name)}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
