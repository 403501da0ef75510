package servicetools

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around logging stack.
// Emergency is used when the service cannot operate at all (e.g. it was never
// configured); adapters map it to their most severe non-terminating level.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
	Emergency(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields)     {}
func (NopLogger) Info(string, Fields)      {}
func (NopLogger) Warn(string, Fields)      {}
func (NopLogger) Error(string, Fields)     {}
func (NopLogger) Emergency(string, Fields) {}

func merge(a, b Fields) Fields {
	out := make(Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
