// Package composite chains providers, fastest first. Reads go down the chain
// and backfill the layers that missed; writes go to every layer.
package composite

import (
	"context"
	"errors"
	"time"

	pr "github.com/unkn0wn-root/servicetools/provider"
)

var _ pr.Provider = (*Provider)(nil)

type Provider struct {
	layers      []pr.Provider
	backfillTTL time.Duration
}

type Config struct {
	Layers []pr.Provider
	// BackfillTTL is the TTL of entries copied into faster layers on a hit in
	// a slower one. The remaining lifetime there is unknown. 0 => 1m.
	BackfillTTL time.Duration
}

func New(cfg Config) (*Provider, error) {
	if len(cfg.Layers) == 0 {
		return nil, errors.New("composite provider: no layers")
	}
	for _, l := range cfg.Layers {
		if l == nil {
			return nil, errors.New("composite provider: nil layer")
		}
	}
	ttl := cfg.BackfillTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Provider{layers: cfg.Layers, backfillTTL: ttl}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var errs []error
	for i, l := range p.layers {
		b, ok, err := l.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			_, _ = p.layers[j].Set(ctx, key, b, 1, p.backfillTTL)
		}
		return b, true, nil
	}
	return nil, false, errors.Join(errs...)
}

// Set reports ok when at least one layer accepted the entry.
func (p *Provider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	var (
		anyOK bool
		errs  []error
	)
	for _, l := range p.layers {
		ok, err := l.Set(ctx, key, value, cost, ttl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		anyOK = anyOK || ok
	}
	return anyOK, errors.Join(errs...)
}

func (p *Provider) Del(ctx context.Context, key string) error {
	var errs []error
	for _, l := range p.layers {
		if err := l.Del(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) Close(ctx context.Context) error {
	var errs []error
	for _, l := range p.layers {
		if err := l.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping checks every layer that supports it.
func (p *Provider) Ping(ctx context.Context) error {
	var errs []error
	for _, l := range p.layers {
		if pg, ok := l.(pr.Pinger); ok {
			if err := pg.Ping(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
