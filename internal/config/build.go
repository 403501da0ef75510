package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/servicetools"
	"github.com/unkn0wn-root/servicetools/codec"
	"github.com/unkn0wn-root/servicetools/directory"
	asynchook "github.com/unkn0wn-root/servicetools/hooks/async"
	stlogrus "github.com/unkn0wn-root/servicetools/log/logrus"
	stslog "github.com/unkn0wn-root/servicetools/log/slog"
	stzap "github.com/unkn0wn-root/servicetools/log/zap"
	pr "github.com/unkn0wn-root/servicetools/provider"
	"github.com/unkn0wn-root/servicetools/provider/bigcache"
	"github.com/unkn0wn-root/servicetools/provider/composite"
	"github.com/unkn0wn-root/servicetools/provider/memcache"
	"github.com/unkn0wn-root/servicetools/provider/memory"
	"github.com/unkn0wn-root/servicetools/provider/redis"
	"github.com/unkn0wn-root/servicetools/provider/ristretto"
	"github.com/unkn0wn-root/servicetools/provider/sturdyc"
	"github.com/unkn0wn-root/servicetools/sloghooks"
	"github.com/unkn0wn-root/servicetools/soap"
	"github.com/unkn0wn-root/servicetools/timer"
)

// Env carries process resources a Config cannot describe.
type Env struct {
	LogOutput       io.Writer             // nil => os.Stderr
	Registerer      prometheus.Registerer // nil => prometheus.DefaultRegisterer
	TracerProvider  trace.TracerProvider  // nil => otel global
	SOAPTypes       map[string]func() any // result types for soap mappings
	DirectoryDialer directory.Dialer      // nil => network dial
}

// Runtime is a built Service with the resources it owns.
type Runtime struct {
	Service  *servicetools.Service
	Provider pr.Provider
	Logger   servicetools.Logger

	closers []func()
}

// Close closes the service (provider and backend) and then the hooks.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.Service.Close(ctx)
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	return err
}

// Build configures the backend and assembles the Service. A backend that
// fails to configure fails the build.
func Build(ctx context.Context, cfg *Config, env Env) (*Runtime, error) {
	if env.LogOutput == nil {
		env.LogOutput = os.Stderr
	}
	rt := &Runtime{}

	log, err := cfg.Log.Build(env.LogOutput)
	if err != nil {
		return nil, err
	}
	rt.Logger = log

	backend, err := cfg.Backend(ctx, env)
	if err != nil {
		return nil, err
	}

	prov, err := cfg.Cache.Build(ctx)
	if err != nil {
		closeBackend(backend)
		return nil, err
	}
	rt.Provider = prov
	fail := func(err error) (*Runtime, error) {
		_ = prov.Close(ctx)
		closeBackend(backend)
		return nil, err
	}

	cdc, err := cfg.Cache.BuildCodec()
	if err != nil {
		return fail(err)
	}

	tm, err := cfg.Timer.Build(env)
	if err != nil {
		return fail(err)
	}

	hooks, closeHooks := cfg.Hooks.Build(cfg.Log, env.LogOutput)
	if closeHooks != nil {
		rt.closers = append(rt.closers, closeHooks)
	}

	svc, err := servicetools.New(backend, servicetools.Options{
		Namespace: cfg.Service.Namespace,
		Provider:  prov,
		Codec:     cdc,
		Expires: servicetools.Expires{
			Default: cfg.Service.Expires.Default,
			Methods: cfg.Service.Expires.Methods,
		},
		Logger:        log,
		Hooks:         hooks,
		Timer:         tm,
		Disabled:      cfg.Cache.Disabled,
		MaxEntryBytes: cfg.Cache.MaxEntryBytes,
	})
	if err != nil {
		for _, c := range rt.closers {
			c()
		}
		return fail(err)
	}
	rt.Service = svc
	return rt, nil
}

func closeBackend(b servicetools.Backend) {
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}
}

// Backend builds and configures the backend named by Service.Backend.
func (c *Config) Backend(ctx context.Context, env Env) (servicetools.Backend, error) {
	switch c.Service.Backend {
	case directory.Name:
		if c.Directory == nil {
			return nil, &servicetools.ConfigError{Field: "directory", Message: "directory section is missing"}
		}
		var opts []directory.Option
		if env.DirectoryDialer != nil {
			opts = append(opts, directory.WithDialer(env.DirectoryDialer))
		}
		b := directory.New(opts...)
		if err := b.Configure(ctx, *c.Directory); err != nil {
			return nil, err
		}
		return b, nil

	case soap.Name:
		if c.SOAP == nil {
			return nil, &servicetools.ConfigError{Field: "soap", Message: "soap section is missing"}
		}
		opts := make([]soap.Option, 0, len(env.SOAPTypes))
		for name, fn := range env.SOAPTypes {
			opts = append(opts, soap.WithType(name, fn))
		}
		b := soap.New(opts...)
		if err := b.Configure(*c.SOAP); err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, &servicetools.ConfigError{Field: "service.backend", Message: fmt.Sprintf("unknown backend %q", c.Service.Backend)}
}

// Build opens the configured provider.
func (c CacheConfig) Build(ctx context.Context) (pr.Provider, error) {
	if c.Provider != "composite" {
		return c.build(ctx, c.Provider)
	}
	layers := make([]pr.Provider, 0, len(c.Layers))
	for _, name := range c.Layers {
		p, err := c.build(ctx, name)
		if err != nil {
			for _, l := range layers {
				_ = l.Close(ctx)
			}
			return nil, err
		}
		layers = append(layers, p)
	}
	return composite.New(composite.Config{Layers: layers})
}

func (c CacheConfig) build(ctx context.Context, name string) (pr.Provider, error) {
	switch name {
	case "", "memory":
		return memory.New(memory.Options{MaxEntries: c.Memory.MaxEntries, CleanupInterval: c.Memory.CleanupInterval}), nil
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: c.Ristretto.NumCounters,
			MaxCost:     c.Ristretto.MaxCost,
			BufferItems: c.Ristretto.BufferItems,
			Metrics:     c.Ristretto.Metrics,
			Synchronous: c.Ristretto.Synchronous,
		})
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         c.BigCache.LifeWindow,
			Shards:             c.BigCache.Shards,
			HardMaxCacheSizeMB: c.BigCache.HardMaxCacheSizeMB,
		})
	case "sturdyc":
		return sturdyc.New(sturdyc.Config{
			Capacity:  c.Sturdyc.Capacity,
			NumShards: c.Sturdyc.NumShards,
			TTL:       c.Sturdyc.TTL,
		}), nil
	case "redis":
		return redis.Dial(c.Redis.Addrs, c.Redis.Password, c.Redis.DB, c.Redis.KeyPrefix)
	case "memcache":
		return memcache.New(memcache.Config{
			Servers:   c.Memcache.Servers,
			Timeout:   c.Memcache.Timeout,
			KeyPrefix: c.Memcache.KeyPrefix,
		})
	}
	return nil, &servicetools.ConfigError{Field: "cache.provider", Message: fmt.Sprintf("unknown provider %q", name)}
}

func (c CacheConfig) BuildCodec() (codec.Codec[servicetools.Envelope], error) {
	switch c.Codec {
	case "", "msgpack":
		return codec.Msgpack[servicetools.Envelope]{}, nil
	case "json":
		return codec.JSON[servicetools.Envelope]{}, nil
	case "cbor":
		return codec.NewCBOR[servicetools.Envelope](false)
	case "structpb":
		return codec.StructPB[servicetools.Envelope]{}, nil
	}
	return nil, &servicetools.ConfigError{Field: "cache.codec", Message: fmt.Sprintf("unknown codec %q", c.Codec)}
}

// Build returns the configured logger writing to w.
func (l LogConfig) Build(w io.Writer) (servicetools.Logger, error) {
	level := l.Level
	if level == "" {
		level = "info"
	}
	switch l.Backend {
	case "none":
		return servicetools.NopLogger{}, nil

	case "zap":
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc := zapcore.NewConsoleEncoder(ec)
		if l.Format == "json" {
			enc = zapcore.NewJSONEncoder(ec)
		}
		return stzap.ZapLogger{L: zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))}, nil

	case "logrus":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lg := logrus.New()
		lg.SetOutput(w)
		lg.SetLevel(lvl)
		if l.Format == "json" {
			lg.SetFormatter(&logrus.JSONFormatter{})
		}
		return stlogrus.New(lg), nil
	}
	return stslog.Logger{L: l.slog(w)}, nil
}

func (l LogConfig) slog(w io.Writer) *stdslog.Logger {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		lvl = stdslog.LevelInfo
	}
	opts := &stdslog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return stdslog.New(stdslog.NewJSONHandler(w, opts))
	}
	return stdslog.New(stdslog.NewTextHandler(w, opts))
}

// Build returns nil when timing is disabled.
func (t TimerConfig) Build(env Env) (*timer.Timer, error) {
	if !t.Enabled {
		return nil, nil
	}
	opts := timer.Options{Namespace: t.Namespace, Buckets: t.Buckets}
	if t.Prometheus {
		opts.Registerer = env.Registerer
		if opts.Registerer == nil {
			opts.Registerer = prometheus.DefaultRegisterer
		}
	}
	if t.Tracing {
		opts.TracerProvider = env.TracerProvider
		if opts.TracerProvider == nil {
			opts.TracerProvider = otel.GetTracerProvider()
		}
	}
	tm, err := timer.New(opts)
	if err != nil {
		return nil, fmt.Errorf("config: timer: %w", err)
	}
	return tm, nil
}

// Build returns nil hooks when event logging is off. The returned func, if
// any, stops async delivery.
func (h HooksConfig) Build(log LogConfig, w io.Writer) (servicetools.Hooks, func()) {
	if !h.Log {
		return nil, nil
	}
	var hooks servicetools.Hooks = sloghooks.New(log.slog(w), sloghooks.Options{
		HitEvery:  h.HitEvery,
		MissEvery: h.MissEvery,
	})
	if h.AsyncWorkers <= 0 {
		return hooks, nil
	}
	async := asynchook.New(hooks, h.AsyncWorkers, h.AsyncQueueLen)
	return async, async.Close
}

var errNoService = errors.New("config: runtime has no service")

// Ping checks the backend configuration and, when supported, the provider.
func (r *Runtime) Ping(ctx context.Context) error {
	if r == nil || r.Service == nil {
		return errNoService
	}
	if !r.Service.Configured() {
		return &servicetools.NotConfiguredError{Service: r.Service.Namespace()}
	}
	if p, ok := r.Provider.(pr.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
