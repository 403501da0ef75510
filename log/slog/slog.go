//go:build go1.21

// Package slog adapts a log/slog logger to servicetools.Logger.
package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/servicetools"
)

// LevelEmergency sorts above error; handlers print it as "ERROR+4".
const LevelEmergency = stdslog.LevelError + 4

var _ servicetools.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f servicetools.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelDebug, msg, attrs(f)...)
}
func (s Logger) Info(msg string, f servicetools.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelInfo, msg, attrs(f)...)
}
func (s Logger) Warn(msg string, f servicetools.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelWarn, msg, attrs(f)...)
}
func (s Logger) Error(msg string, f servicetools.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelError, msg, attrs(f)...)
}
func (s Logger) Emergency(msg string, f servicetools.Fields) {
	s.L.LogAttrs(context.Background(), LevelEmergency, msg, attrs(f)...)
}

func attrs(f servicetools.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
