package servicetools

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/unkn0wn-root/servicetools/timer"
)

func echo(method string, args []any) (Response, error) {
	return Success(map[string]any{"method": method, "n": len(args)})
}

func echoArgs(_ string, args []any) (Response, error) {
	return Success(fmt.Sprint(args...))
}

func newTestService(t *testing.T, b Backend, mutate func(*Options)) (*Service, *memProvider, *recLogger, *recHooks) {
	t.Helper()
	mp := newMemProvider()
	log := &recLogger{}
	hooks := &recHooks{}
	opts := Options{Provider: mp, Logger: log, Hooks: hooks}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := New(b, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, mp, log, hooks
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil backend")
	}
}

func TestNotConfiguredRejectsEveryCall(t *testing.T) {
	b := newFakeBackend(echo)
	b.setConfigured(false)
	svc, mp, log, _ := newTestService(t, b, nil)

	_, err := svc.Invoke(context.Background(), "search", "dc=example")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	var nce *NotConfiguredError
	if !errors.As(err, &nce) || nce.Service != "fake" {
		t.Fatalf("expected NotConfiguredError for fake, got %#v", err)
	}
	if b.callCount() != 0 {
		t.Fatalf("backend must not be called")
	}
	if len(mp.m) != 0 {
		t.Fatalf("cache must not be touched")
	}
	if _, ok := log.find("emergency", `service "fake" is not configured`); !ok {
		t.Fatalf("missing emergency log, got %v", log.messages())
	}
	if svc.Configured() {
		t.Fatalf("Configured should report false")
	}
}

func TestIdenticalCallsHitCache(t *testing.T) {
	b := newFakeBackend(echo)
	svc, _, _, hooks := newTestService(t, b, nil)
	ctx := context.Background()

	first, err := svc.Invoke(ctx, "foo", "bar", "baz")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	second, err := svc.Invoke(ctx, "foo", "bar", "baz")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if b.callCount() != 1 {
		t.Fatalf("backend called %d times, want 1", b.callCount())
	}
	if !first.Equal(second) {
		t.Fatalf("cached response differs: %v vs %v", second, first)
	}
	m := second.Content().(map[string]any)
	if m["method"] != "foo" {
		t.Fatalf("cached content: %#v", m)
	}
	if hooks.hits != 1 || hooks.misses != 1 {
		t.Fatalf("hits=%d misses=%d", hooks.hits, hooks.misses)
	}

	if _, err := svc.Invoke(ctx, "foo", "bar", "qux"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if b.callCount() != 2 {
		t.Fatalf("different args must reach the backend")
	}
}

func TestFailureResponseIsReturnedAndCached(t *testing.T) {
	b := newFakeBackend(func(string, []any) (Response, error) {
		return Failure(nil, "boom", "")
	})
	svc, _, log, _ := newTestService(t, b, nil)
	ctx := context.Background()

	resp, err := svc.Invoke(ctx, "foo", "bar")
	if err != nil {
		t.Fatalf("remote failures are not errors: %v", err)
	}
	if resp.OK() || resp.ErrorMessage() != "boom" {
		t.Fatalf("unexpected response %v", resp)
	}
	e, ok := log.find("error", "error response")
	if !ok || e.f["error"] != "boom" {
		t.Fatalf("missing error response log: %v", log.messages())
	}

	again, _ := svc.Invoke(ctx, "foo", "bar")
	if b.callCount() != 1 || again.ErrorMessage() != "boom" {
		t.Fatalf("failure should be served from cache: calls=%d resp=%v", b.callCount(), again)
	}
}

func TestPrepopulatedCache(t *testing.T) {
	b := newFakeBackend(echo)
	svc, _, _, _ := newTestService(t, b, nil)
	ctx := context.Background()

	if err := svc.Cache().Set(ctx, svc.Key("foo", "bar", "baz"), MustSuccess("from cache"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	resp, err := svc.Invoke(ctx, "foo", "bar", "baz")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !resp.OK() || resp.Content() != "from cache" {
		t.Fatalf("expected cached response, got %v", resp)
	}
	if b.callCount() != 0 {
		t.Fatalf("backend must not be called on a hit")
	}
}

func TestBackendErrorIsNotCached(t *testing.T) {
	boom := errors.New("unsupported")
	b := newFakeBackend(func(string, []any) (Response, error) { return Response{}, boom })
	svc, mp, _, _ := newTestService(t, b, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Invoke(ctx, "nope"); !errors.Is(err, boom) {
			t.Fatalf("expected backend error, got %v", err)
		}
	}
	if b.callCount() != 2 || len(mp.m) != 0 {
		t.Fatalf("errors must not be cached: calls=%d entries=%d", b.callCount(), len(mp.m))
	}
}

func TestExpiresPerMethod(t *testing.T) {
	b := newFakeBackend(echo)
	svc, mp, _, _ := newTestService(t, b, func(o *Options) {
		o.Expires = Expires{
			Default: time.Minute,
			Methods: map[string]time.Duration{"search": 5 * time.Second},
		}
	})
	ctx := context.Background()

	_, _ = svc.Invoke(ctx, "search", "x")
	_, _ = svc.Invoke(ctx, "read", "x")

	if ttl, _ := mp.ttl(svc.Key("search", "x")); ttl != 5*time.Second {
		t.Fatalf("search ttl = %v", ttl)
	}
	if ttl, _ := mp.ttl(svc.Key("read", "x")); ttl != time.Minute {
		t.Fatalf("read ttl = %v", ttl)
	}

	if got := (Expires{}).For("anything"); got != 0 {
		t.Fatalf("zero Expires should give 0, got %v", got)
	}
}

func TestProviderErrorsNeverFailTheCall(t *testing.T) {
	b := newFakeBackend(echo)
	svc, mp, _, hooks := newTestService(t, b, nil)
	mp.getErr = errors.New("read down")
	mp.setErr = errors.New("write down")

	resp, err := svc.Invoke(context.Background(), "foo")
	if err != nil || !resp.OK() {
		t.Fatalf("Invoke: resp=%v err=%v", resp, err)
	}
	if b.callCount() != 1 || hooks.getErrs != 1 || hooks.setErrs != 1 {
		t.Fatalf("calls=%d getErrs=%d setErrs=%d", b.callCount(), hooks.getErrs, hooks.setErrs)
	}
}

func TestArgsPreparerRunsFirst(t *testing.T) {
	fb := newFakeBackend(echo)
	svc, mp, _, _ := newTestService(t, preparingBackend{fb}, nil)

	if _, err := svc.Invoke(context.Background(), "foo", "a"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !reflect.DeepEqual(fb.lastArgs, []any{"a", "prepared"}) {
		t.Fatalf("backend args = %v", fb.lastArgs)
	}
	key := Fingerprint("fake", "foo", "a", "prepared")
	if svc.Key("foo", "a") != key || !mp.has(key) {
		t.Fatalf("key must be computed over prepared args")
	}
}

func TestLogSequence(t *testing.T) {
	b := newFakeBackend(echo)
	svc, _, log, _ := newTestService(t, b, func(o *Options) { o.Namespace = "ldap" })
	ctx := context.Background()

	_, _ = svc.Invoke(ctx, "search", "x")
	want := []string{"ldap->search", "item found in cache: no", "get from source", "successful response", "timer"}
	if got := log.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("miss log = %v, want %v", got, want)
	}

	log.entries = nil
	_, _ = svc.Invoke(ctx, "search", "x")
	want = []string{"ldap->search", "item found in cache: yes", "get from cache", "successful response", "timer"}
	if got := log.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("hit log = %v, want %v", got, want)
	}
	if e, _ := log.find("info", "timer"); e.f["timer_ms"] != int64(0) || e.f["timer_id"] != "" {
		t.Fatalf("disabled timer should log a zero summary: %v", e.f)
	}
	tag, _ := log.entries[0].f["_"].(string)
	if len(tag) != 6 || log.entries[0].f["call"] != "ldap->search" {
		t.Fatalf("log tag fields: %v", log.entries[0].f)
	}
}

func TestDisabledCacheCallsEveryTime(t *testing.T) {
	b := newFakeBackend(echo)
	svc, _, _, _ := newTestService(t, b, func(o *Options) { o.Disabled = true })
	for i := 0; i < 3; i++ {
		_, _ = svc.Invoke(context.Background(), "foo")
	}
	if b.callCount() != 3 {
		t.Fatalf("calls = %d", b.callCount())
	}
}

func TestTimerStoppedOnEveryPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	tm, err := timer.New(timer.Options{Registerer: reg})
	if err != nil {
		t.Fatalf("timer.New: %v", err)
	}
	fb := newFakeBackend(echo)
	fb.setConfigured(false)
	svc, _, log, _ := newTestService(t, preparingBackend{fb}, func(o *Options) { o.Timer = tm })
	ctx := context.Background()

	_, _ = svc.Invoke(ctx, "foo")
	fb.setConfigured(true)
	_, _ = svc.Invoke(ctx, "foo")
	_, _ = svc.Invoke(ctx, "foo")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var count uint64
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			count += m.GetHistogram().GetSampleCount()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "target" && lp.GetValue() != "fake://host" {
					t.Fatalf("target label = %q", lp.GetValue())
				}
			}
		}
	}
	if count != 3 {
		t.Fatalf("observations = %d, want 3", count)
	}
	if _, ok := log.find("info", "timer"); !ok {
		t.Fatalf("timer summary not logged")
	}
}

func TestOpaqueArgsGetTheirOwnEntries(t *testing.T) {
	b := newFakeBackend(echoArgs)
	svc, _, _, _ := newTestService(t, b, nil)
	ctx := context.Background()

	one, err := svc.Invoke(ctx, "m", big.NewInt(1))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	two, err := svc.Invoke(ctx, "m", big.NewInt(2))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if b.callCount() != 2 || two.Content() != "2" || one.Content() != "1" {
		t.Fatalf("calls=%d one=%v two=%v", b.callCount(), one, two)
	}
}

func TestTimerSummaryOnNotConfigured(t *testing.T) {
	b := newFakeBackend(echo)
	b.setConfigured(false)
	svc, _, log, _ := newTestService(t, b, nil)

	_, _ = svc.Invoke(context.Background(), "foo")
	want := []string{"fake->foo", `service "fake" is not configured`, "timer"}
	if got := log.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
}

func TestArgsRedactorMasksLoggedArgs(t *testing.T) {
	fb := newFakeBackend(echo)
	svc, _, log, _ := newTestService(t, redactingBackend{fb}, nil)

	if _, err := svc.Invoke(context.Background(), "passwd", "uid=bob", "OldSecret1", "NewSecret2"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	e, ok := log.find("info", "fake->passwd")
	if !ok {
		t.Fatalf("missing call log: %v", log.messages())
	}
	if got := e.f["args"]; !reflect.DeepEqual(got, []any{"uid=bob", "***", "***"}) {
		t.Fatalf("logged args = %v", got)
	}
	if !reflect.DeepEqual(fb.lastArgs, []any{"uid=bob", "OldSecret1", "NewSecret2"}) {
		t.Fatalf("backend must receive the real args, got %v", fb.lastArgs)
	}
	if svc.Key("passwd", "uid=bob", "OldSecret1", "NewSecret2") == svc.Key("passwd", "uid=bob", "x", "y") {
		t.Fatalf("keys must be computed over the real args")
	}
}

func TestDefaultProviderServesRepeatedCalls(t *testing.T) {
	b := newFakeBackend(echo)
	svc, err := New(b, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close(context.Background())

	ctx := context.Background()
	first, _ := svc.Invoke(ctx, "foo", "bar")
	second, _ := svc.Invoke(ctx, "foo", "bar")
	if b.callCount() != 1 || !first.Equal(second) {
		t.Fatalf("calls=%d first=%v second=%v", b.callCount(), first, second)
	}
}
