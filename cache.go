package servicetools

import (
	"context"
	"errors"
	"time"

	cdc "github.com/unkn0wn-root/servicetools/codec"
	"github.com/unkn0wn-root/servicetools/internal/wire"
	pr "github.com/unkn0wn-root/servicetools/provider"
)

// Cache stores Responses in a Provider. Entries are framed with the codec ID
// and the write time; entries that fail validation are deleted on read.
type Cache struct {
	provider       pr.Provider
	codec          cdc.Codec[Envelope]
	codecID        byte
	log            Logger
	hooks          Hooks
	enabled        bool
	computeSetCost SetCostFunc
	now            func() time.Time
}

func newCache(o Options) *Cache {
	return &Cache{
		provider:       o.Provider,
		codec:          o.Codec,
		codecID:        cdc.IDOf(o.Codec),
		log:            o.Logger,
		hooks:          o.Hooks,
		enabled:        !o.Disabled,
		computeSetCost: o.ComputeSetCost,
		now:            time.Now,
	}
}

func (c *Cache) Enabled() bool { return c.enabled }

func (c *Cache) Close(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

// Get returns the stored response for key. Provider errors are returned as is;
// undecodable entries are removed and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (Response, bool, error) {
	if !c.enabled {
		return Response{}, false, nil
	}
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil || !ok {
		return Response{}, false, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		c.heal(ctx, key, "corrupt")
		return Response{}, false, nil
	}
	if e.Codec != c.codecID && e.Codec != 0 && c.codecID != 0 {
		c.heal(ctx, key, "codec_mismatch")
		return Response{}, false, nil
	}
	env, err := c.codec.Decode(e.Payload)
	if err != nil {
		c.heal(ctx, key, "value_decode")
		return Response{}, false, nil
	}
	return FromEnvelope(env), true, nil
}

// Set stores resp under key for ttl. A zero ttl leaves expiry to the provider.
func (c *Cache) Set(ctx context.Context, key string, resp Response, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	payload, err := c.codec.Encode(resp.Envelope())
	if err != nil {
		return err
	}
	b := wire.Encode(c.codecID, c.now(), payload)
	ok, err := c.provider.Set(ctx, key, b, c.computeSetCost(key, b), ttl)
	if err != nil {
		return err
	}
	if !ok {
		c.hooks.ProviderSetRejected(key)
		c.log.Debug("cache set rejected by provider (pressure)", Fields{"key": key})
	}
	return nil
}

// Del removes key. Missing keys are not an error.
func (c *Cache) Del(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.provider.Del(ctx, key)
}

func (c *Cache) heal(ctx context.Context, key, reason string) {
	c.hooks.SelfHeal(key, reason)
	if err := c.provider.Del(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("self-heal delete failed", Fields{"key": key, "reason": reason, "err": err})
	}
}
