package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/servicetools"
)

type recorder struct {
	servicetools.NopHooks
	mu   sync.Mutex
	hits int
	heal []string
}

func (r *recorder) CacheHit(string, string) {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

func (r *recorder) SelfHeal(_, reason string) {
	r.mu.Lock()
	r.heal = append(r.heal, reason)
	r.mu.Unlock()
}

func TestDeliversBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 64)
	for i := 0; i < 10; i++ {
		h.CacheHit("soap", "GetQuote")
	}
	h.SelfHeal("k", "corrupt")
	h.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.hits+int(h.Dropped()) != 10 {
		t.Fatalf("hits=%d dropped=%d", rec.hits, h.Dropped())
	}
	if h.Dropped() == 0 && len(rec.heal) != 1 {
		t.Fatalf("self-heal not delivered")
	}
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	h := New(servicetools.NopHooks{}, 1, 1)
	h.Close()
	h.Close()
	h.CacheMiss("soap", "x")
	if h.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", h.Dropped())
	}
}
