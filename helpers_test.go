package servicetools

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/servicetools/provider"
)

type memEntry struct {
	v   []byte
	ttl time.Duration
}

// memProvider records TTLs and can be told to fail.
type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	getErr error
	setErr error
	reject bool
	dels   int
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return false, p.setErr
	}
	if p.reject {
		return false, nil
	}
	p.m[key] = memEntry{v: value, ttl: ttl}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dels++
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) ttl(key string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	return e.ttl, ok
}

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

type fakeBackend struct {
	mu         sync.Mutex
	name       string
	configured bool
	calls      int
	lastArgs   []any
	call       func(method string, args []any) (Response, error)
}

func newFakeBackend(call func(method string, args []any) (Response, error)) *fakeBackend {
	return &fakeBackend{name: "fake", configured: true, call: call}
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Configured() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configured
}

func (b *fakeBackend) setConfigured(v bool) {
	b.mu.Lock()
	b.configured = v
	b.mu.Unlock()
}

func (b *fakeBackend) Call(_ context.Context, method string, args []any) (Response, error) {
	b.mu.Lock()
	b.calls++
	b.lastArgs = args
	b.mu.Unlock()
	return b.call(method, args)
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// preparingBackend appends a marker argument to every call.
type preparingBackend struct {
	*fakeBackend
}

func (b preparingBackend) PrepareArgs(_ string, args []any) []any {
	out := append([]any(nil), args...)
	return append(out, "prepared")
}

func (b preparingBackend) TimerTags() map[string]string {
	return map[string]string{"target": "fake://host"}
}

// redactingBackend masks every argument after the first in log output.
type redactingBackend struct {
	*fakeBackend
}

func (b redactingBackend) RedactArgs(_ string, args []any) []any {
	out := append([]any(nil), args...)
	for i := 1; i < len(out); i++ {
		out[i] = "***"
	}
	return out
}

type logEntry struct {
	level string
	msg   string
	f     Fields
}

type recLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, f: f})
	l.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f Fields)     { l.add("debug", msg, f) }
func (l *recLogger) Info(msg string, f Fields)      { l.add("info", msg, f) }
func (l *recLogger) Warn(msg string, f Fields)      { l.add("warn", msg, f) }
func (l *recLogger) Error(msg string, f Fields)     { l.add("error", msg, f) }
func (l *recLogger) Emergency(msg string, f Fields) { l.add("emergency", msg, f) }

func (l *recLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.msg)
	}
	return out
}

func (l *recLogger) find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

type recHooks struct {
	NopHooks
	mu       sync.Mutex
	hits     int
	misses   int
	heals    []string
	getErrs  int
	setErrs  int
	rejected int
}

func (h *recHooks) CacheHit(string, string) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
}
func (h *recHooks) CacheMiss(string, string) {
	h.mu.Lock()
	h.misses++
	h.mu.Unlock()
}
func (h *recHooks) SelfHeal(_, reason string) {
	h.mu.Lock()
	h.heals = append(h.heals, reason)
	h.mu.Unlock()
}
func (h *recHooks) ProviderGetError(string, error) {
	h.mu.Lock()
	h.getErrs++
	h.mu.Unlock()
}
func (h *recHooks) ProviderSetError(string, error) {
	h.mu.Lock()
	h.setErrs++
	h.mu.Unlock()
}
func (h *recHooks) ProviderSetRejected(string) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}
