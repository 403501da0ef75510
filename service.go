package servicetools

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/unkn0wn-root/servicetools/timer"
)

// Service dispatches named operations to its Backend through the cache.
// It is safe for concurrent use once the backend is configured. Concurrent
// identical calls on a cold key all reach the backend.
type Service struct {
	backend Backend
	ns      string
	cache   *Cache
	expires Expires
	log     Logger
	hooks   Hooks
	timer   *timer.Timer
}

func New(backend Backend, opts Options) (*Service, error) {
	if backend == nil {
		return nil, errors.New("servicetools: backend is required")
	}
	o, err := opts.withDefaults(backend)
	if err != nil {
		return nil, fmt.Errorf("servicetools: default provider: %w", err)
	}
	return &Service{
		backend: backend,
		ns:      o.Namespace,
		cache:   newCache(o),
		expires: o.Expires,
		log:     o.Logger,
		hooks:   o.Hooks,
		timer:   o.Timer,
	}, nil
}

func (s *Service) Namespace() string { return s.ns }
func (s *Service) Backend() Backend  { return s.backend }
func (s *Service) Cache() *Cache     { return s.cache }
func (s *Service) Logger() Logger    { return s.log }
func (s *Service) Configured() bool  { return s.backend.Configured() }

// Key returns the cache key Invoke uses for method and args.
func (s *Service) Key(method string, args ...any) string {
	return Fingerprint(s.ns, method, s.prepare(method, args)...)
}

// Close releases the cache provider and, when it holds resources, the backend.
func (s *Service) Close(ctx context.Context) error {
	err := s.cache.Close(ctx)
	if cl, ok := s.backend.(io.Closer); ok {
		err = errors.Join(err, cl.Close())
	}
	return err
}

// Invoke performs method through the cache.
//
// Errors are returned only when the call could not be made: the backend is not
// configured (*NotConfiguredError) or rejected the call itself. Remote failures
// come back as a failed Response.
func (s *Service) Invoke(ctx context.Context, method string, args ...any) (Response, error) {
	args = s.prepare(method, args)
	key := Fingerprint(s.ns, method, args...)
	call := s.ns + "->" + method
	tag := Fields{"_": shortTag(key), "call": call}

	h := s.timer.Start(ctx, s.timerTags(call))
	s.log.Info(call, merge(tag, Fields{"args": s.redact(method, args)}))

	if !s.backend.Configured() {
		err := &NotConfiguredError{Service: s.ns}
		s.log.Emergency(err.Error(), tag)
		s.finish(h, tag)
		return Response{}, err
	}

	resp, hit := s.lookup(ctx, key)
	if hit {
		s.hooks.CacheHit(s.ns, method)
		s.log.Info("item found in cache: yes", tag)
		s.log.Info("get from cache", tag)
	} else {
		s.hooks.CacheMiss(s.ns, method)
		s.log.Info("item found in cache: no", tag)
		s.log.Info("get from source", tag)

		var err error
		resp, err = s.backend.Call(ctx, method, args)
		if err != nil {
			s.log.Error("call failed", merge(tag, Fields{"err": err}))
			s.finish(h, tag)
			return Response{}, err
		}
		s.store(ctx, key, method, resp)
	}

	if resp.OK() {
		s.log.Info("successful response", tag)
	} else {
		s.log.Error("error response", merge(tag, Fields{"error": resp.ErrorMessage(), "code": resp.ErrorCode()}))
	}
	s.finish(h, tag)
	return resp, nil
}

func (s *Service) prepare(method string, args []any) []any {
	if p, ok := s.backend.(ArgsPreparer); ok {
		return p.PrepareArgs(method, args)
	}
	return args
}

// redact returns the copy of args that is safe to log.
func (s *Service) redact(method string, args []any) []any {
	if r, ok := s.backend.(ArgsRedactor); ok {
		return r.RedactArgs(method, args)
	}
	return args
}

func (s *Service) lookup(ctx context.Context, key string) (Response, bool) {
	resp, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.hooks.ProviderGetError(key, err)
		s.log.Warn("cache read failed; treating as miss", Fields{"key": key, "err": err})
		return Response{}, false
	}
	return resp, ok
}

func (s *Service) store(ctx context.Context, key, method string, resp Response) {
	if err := s.cache.Set(ctx, key, resp, s.expires.For(method)); err != nil {
		s.hooks.ProviderSetError(key, err)
		s.log.Warn("cache write failed", Fields{"key": key, "err": err})
	}
}

func (s *Service) timerTags(call string) map[string]string {
	tags := map[string]string{"call": call, "type": s.backend.Name()}
	if t, ok := s.backend.(Tagger); ok {
		for k, v := range t.TimerTags() {
			tags[k] = v
		}
	}
	return tags
}

// finish stops the measurement and logs its summary. A disabled timer logs
// the zero summary.
func (s *Service) finish(h *timer.Handle, tag Fields) {
	s.timer.Stop(h)
	info := s.timer.Info(h)
	s.log.Info("timer", merge(tag, Fields{"timer_ms": info.Value.Milliseconds(), "timer_id": info.ID}))
}
