package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/servicetools/provider"
)

var _ pr.Provider = (*Provider)(nil)

type Provider struct {
	c    *rc.Cache
	sync bool
}

type Config struct {
	NumCounters int64 // 0 => 1e5
	MaxCost     int64 // 0 => 1<<26; cost is whatever Service.ComputeSetCost returns
	BufferItems int64 // 0 => 64
	Metrics     bool
	// Synchronous waits for every Set to be applied, so a Get right after a
	// Set observes it. Ristretto buffers writes otherwise.
	Synchronous bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: orDefault(cfg.NumCounters, 1e5),
		MaxCost:     orDefault(cfg.MaxCost, 1<<26),
		BufferItems: orDefault(cfg.BufferItems, 64),
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, sync: cfg.Synchronous}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok := p.c.SetWithTTL(key, value, cost, ttl)
	if ok && p.sync {
		p.c.Wait()
	}
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics is nil unless Config.Metrics was set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

func orDefault(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}
