package memory

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := New(Options{CleanupInterval: -1})
	defer p.Close(ctx)

	in := []byte("v1")
	if ok, err := p.Set(ctx, "k", in, 1, 0); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	in[0] = 'X' // stored bytes must not alias the caller's slice

	b, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(b, []byte("v1")) {
		t.Fatalf("Get: b=%q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del missing: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	p := New(Options{CleanupInterval: -1})
	defer p.Close(ctx)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	_, _ = p.Set(ctx, "short", []byte("a"), 1, time.Second)
	_, _ = p.Set(ctx, "forever", []byte("b"), 1, 0)

	now = now.Add(2 * time.Second)
	if _, ok, _ := p.Get(ctx, "short"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if _, ok, _ := p.Get(ctx, "forever"); !ok {
		t.Fatalf("zero ttl must not expire")
	}
	if p.Len() != 1 {
		t.Fatalf("expired entry should be removed on read, len=%d", p.Len())
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	p := New(Options{CleanupInterval: -1})
	defer p.Close(ctx)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }
	for _, k := range []string{"a", "b", "c"} {
		_, _ = p.Set(ctx, k, []byte(k), 1, time.Second)
	}
	now = now.Add(time.Minute)
	p.purge()
	if p.Len() != 0 {
		t.Fatalf("purge left %d entries", p.Len())
	}
}

func TestMaxEntriesRejects(t *testing.T) {
	ctx := context.Background()
	p := New(Options{CleanupInterval: -1, MaxEntries: 1})
	defer p.Close(ctx)

	if ok, _ := p.Set(ctx, "a", []byte("1"), 1, 0); !ok {
		t.Fatalf("first Set should succeed")
	}
	if ok, _ := p.Set(ctx, "b", []byte("2"), 1, 0); ok {
		t.Fatalf("Set beyond MaxEntries should be rejected")
	}
	if ok, _ := p.Set(ctx, "a", []byte("3"), 1, 0); !ok {
		t.Fatalf("overwrite of an existing key should succeed")
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := New(Options{CleanupInterval: time.Millisecond})
	_ = p.Close(context.Background())
	_ = p.Close(context.Background())
}
