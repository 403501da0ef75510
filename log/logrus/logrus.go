// Package logrus adapts a logrus entry to servicetools.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/servicetools"
)

var _ servicetools.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger) LogrusLogger { return LogrusLogger{E: logrus.NewEntry(l)} }

func (l LogrusLogger) Debug(msg string, f servicetools.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f servicetools.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f servicetools.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f servicetools.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}

// Emergency logs at error level tagged severity=emergency. Panic and fatal
// levels are not used since they stop the caller.
func (l LogrusLogger) Emergency(msg string, f servicetools.Fields) {
	l.E.WithFields(logrus.Fields(f)).WithField("severity", "emergency").Error(msg)
}
