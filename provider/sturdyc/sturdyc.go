// Package sturdyc keeps entries in a sharded in-process viccon/sturdyc client.
package sturdyc

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"

	pr "github.com/unkn0wn-root/servicetools/provider"
)

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Capacity           int           // 0 => 10000
	NumShards          int           // 0 => 256
	TTL                time.Duration // upper bound of every entry; 0 => 1h
	EvictionPercentage int           // 0 => 10
	EvictionInterval   time.Duration // 0 => sturdyc default
}

// entry carries its own deadline since sturdyc only knows the client TTL.
type entry struct {
	b   []byte
	exp time.Time
}

type Provider struct {
	client *sturdyc.Client[entry]
	now    func() time.Time
}

func New(cfg Config) *Provider {
	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}
	client := sturdyc.New[entry](
		orDefault(cfg.Capacity, 10000),
		orDefault(cfg.NumShards, 256),
		orDefault(cfg.TTL, time.Hour),
		orDefault(cfg.EvictionPercentage, 10),
		opts...,
	)
	return &Provider{client: client, now: time.Now}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		p.client.Delete(key)
		return nil, false, nil
	}
	return e.b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{b: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = p.now().Add(ttl)
	}
	p.client.Set(key, e)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.client.Delete(key)
	return nil
}

func (p *Provider) Len() int { return p.client.Size() }

func (p *Provider) Close(context.Context) error { return nil }

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
