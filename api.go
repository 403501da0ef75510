package servicetools

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/servicetools/codec"
	pr "github.com/unkn0wn-root/servicetools/provider"
	"github.com/unkn0wn-root/servicetools/provider/ristretto"
	"github.com/unkn0wn-root/servicetools/timer"
)

type SetCostFunc func(key string, raw []byte) int64

// Backend performs the remote operations of a Service.
//
// Call returns a failed Response for expected remote failures and an error
// only when the call could not be attempted (unknown operation, bad arguments).
type Backend interface {
	// Name identifies the backend type, e.g. "directory" or "soap". It is the
	// default namespace of cache keys.
	Name() string
	// Configured reports whether the backend completed its configuration.
	Configured() bool
	Call(ctx context.Context, method string, args []any) (Response, error)
}

// ArgsPreparer is implemented by backends that rewrite arguments before they
// are fingerprinted and passed to Call.
type ArgsPreparer interface {
	PrepareArgs(method string, args []any) []any
}

// ArgsRedactor is implemented by backends whose arguments may carry secrets.
// RedactArgs returns the copy of args written to the log; it must not modify
// args, which are still fingerprinted and passed to Call.
type ArgsRedactor interface {
	RedactArgs(method string, args []any) []any
}

// Tagger is implemented by backends that contribute instrumentation tags
// (type, target) to every measurement.
type Tagger interface {
	TimerTags() map[string]string
}

// Expires holds cache lifetimes. A method without its own entry uses Default;
// zero means no explicit expiry.
type Expires struct {
	Default time.Duration
	Methods map[string]time.Duration
}

func (e Expires) For(method string) time.Duration {
	if d, ok := e.Methods[method]; ok {
		return d
	}
	return e.Default
}

// Options tune a Service. Every field is optional.
type Options struct {
	Namespace      string            // key prefix; "" => Backend.Name()
	Provider       pr.Provider       // nil => synchronous in-process ristretto
	Codec          c.Codec[Envelope] // nil => msgpack
	Expires        Expires
	Logger         Logger       // nil => NopLogger
	Hooks          Hooks        // nil => NopHooks
	Timer          *timer.Timer // nil => no instrumentation
	Disabled       bool         // bypass the cache entirely
	ComputeSetCost SetCostFunc  // default 1
	MaxEntryBytes  int          // > 0 rejects larger cached payloads on read
}

// withDefaults returns a copy of o with every unset field filled in.
func (o Options) withDefaults(backend Backend) (Options, error) {
	out := o
	out.Namespace = coalesce(o.Namespace, backend.Name())
	out.Logger = coalesce[Logger](o.Logger, NopLogger{})
	out.Hooks = coalesce[Hooks](o.Hooks, NopHooks{})
	if out.Timer == nil {
		out.Timer = timer.Disabled()
	}
	if out.Provider == nil {
		p, err := ristretto.New(ristretto.Config{Synchronous: true})
		if err != nil {
			return Options{}, err
		}
		out.Provider = p
	}
	if out.Codec == nil {
		out.Codec = c.Msgpack[Envelope]{}
	}
	if out.MaxEntryBytes > 0 {
		out.Codec = c.LimitCodec[Envelope]{Inner: out.Codec, MaxDecode: out.MaxEntryBytes}
	}
	if out.ComputeSetCost == nil {
		out.ComputeSetCost = func(string, []byte) int64 { return 1 }
	}
	return out, nil
}
