// Package gitlog provides the structured logger threaded through the
// runner, git driver and relocator packages.
//
// It is a thin adapter over logrus rather than a bespoke verbosity-gated
// fmt.Printf (the shape the teacher used): every caller that needs a
// logger accepts the small Logger interface below, so tests can
// substitute a recording fake for a configured logrus logger (the fake
// still names *logrus.Entry as WithField's result type).
package gitlog

import (
	"github.com/sirupsen/logrus"
)

// Logger is the minimal surface SubprocessRunner, GitDriver and
// BookmarkRelocator need: line-oriented leveled logging with structured
// fields. *logrus.Logger and *logrus.Entry both satisfy it.
type Logger interface {
	WithField(key string, value interface{}) *logrus.Entry
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// New returns a logrus logger preconfigured the way the rest of the
// module expects: text output, level driven by verbose.
func New(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Discard returns a logger that drops everything, for callers (and tests)
// that have no interest in diagnostics.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
