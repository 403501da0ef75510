// Package memory is the default in-process provider: a map with per-entry
// expiry, swept periodically.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/servicetools/provider"
)

var _ pr.Provider = (*Provider)(nil)

type Options struct {
	CleanupInterval time.Duration // 0 => 1m; < 0 disables the sweeper
	MaxEntries      int           // 0 => unlimited; Set is rejected when full
}

type entry struct {
	b   []byte
	exp time.Time // zero => no expiry
}

type Provider struct {
	mu   sync.RWMutex
	m    map[string]entry
	max  int
	now  func() time.Time
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func New(opts Options) *Provider {
	p := &Provider{
		m:    make(map[string]entry),
		max:  opts.MaxEntries,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	interval := opts.CleanupInterval
	if interval == 0 {
		interval = time.Minute
	}
	if interval > 0 {
		p.wg.Add(1)
		go p.sweep(interval)
	}
	return p
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		p.mu.Lock()
		if cur, ok := p.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{b: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = p.now().Add(ttl)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.m[key]; !exists && p.max > 0 && len(p.m) >= p.max {
		return false, nil
	}
	p.m[key] = e
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

// Len counts stored entries, expired ones not yet swept included.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Provider) Close(_ context.Context) error {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
	return nil
}

func (p *Provider) sweep(every time.Duration) {
	defer p.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.purge()
		}
	}
}

func (p *Provider) purge() {
	now := p.now()
	p.mu.Lock()
	for k, e := range p.m {
		if !e.exp.IsZero() && !now.Before(e.exp) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}
