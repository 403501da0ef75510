// Package zap adapts a zap logger to servicetools.Logger.
package zap

import (
	"github.com/unkn0wn-root/servicetools"
	"go.uber.org/zap"
)

var _ servicetools.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f servicetools.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f servicetools.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f servicetools.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f servicetools.Fields) { z.L.Error(msg, zf(f)...) }

// Emergency logs at error level with severity=emergency; DPanic and Fatal
// would stop development builds or the process.
func (z ZapLogger) Emergency(msg string, f servicetools.Fields) {
	z.L.Error(msg, append(zf(f), zap.String("severity", "emergency"))...)
}

func zf(f servicetools.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f)+1)
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
