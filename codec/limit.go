package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by LimitCodec for payloads above its limit.
var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec refuses to decode payloads longer than MaxDecode bytes, so an
// oversized entry in a shared store is dropped instead of being decoded.
// MaxDecode <= 0 means no limit.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

// ID reports the inner codec: the limit does not change the bytes.
func (c LimitCodec[V]) ID() byte { return IDOf(c.Inner) }

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
