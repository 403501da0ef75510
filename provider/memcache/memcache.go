// Package memcache stores entries in Memcached through bradfitz/gomemcache.
package memcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"

	pr "github.com/unkn0wn-root/servicetools/provider"
)

const (
	maxKeyLen = 250
	// relative expirations above 30 days are read by memcached as unix times
	maxRelative = 30 * 24 * time.Hour
)

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Pinger   = (*Provider)(nil)
)

type Config struct {
	Servers      []string
	Timeout      time.Duration // 0 => client default
	MaxIdleConns int
	KeyPrefix    string
}

type Provider struct {
	c      *memcache.Client
	prefix string
	now    func() time.Time
}

func New(cfg Config) (*Provider, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("memcache provider: no servers")
	}
	c := memcache.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Provider{c: c, prefix: cfg.KeyPrefix, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(p.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	err := p.c.Set(&memcache.Item{
		Key:        p.key(key),
		Value:      value,
		Expiration: p.expiration(ttl),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(p.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (p *Provider) Ping(context.Context) error { return p.c.Ping() }

// Close is a no-op; idle connections are dropped by the server.
func (p *Provider) Close(context.Context) error { return nil }

// key maps cache keys onto memcached's key rules (<= 250 bytes, no spaces or
// control characters). Keys that break them are replaced by their hash.
func (p *Provider) key(k string) string {
	full := p.prefix + k
	if len(full) <= maxKeyLen && legal(full) {
		return full
	}
	return fmt.Sprintf("%sh:%016x", p.prefix, xxhash.Sum64String(k))
}

func legal(k string) bool {
	for i := 0; i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			return false
		}
	}
	return true
}

func (p *Provider) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelative {
		return int32(p.now().Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
