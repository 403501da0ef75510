package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR stores values as RFC 8949 CBOR. Build it with NewCBOR; the zero value
// has no modes and panics.
//
// Response content nested in interface{} comes back as map[string]any, the
// same shape msgpack and JSON produce, so callers see one content model
// whichever codec a deployment picks.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

var stringMap = reflect.TypeOf(map[string]any(nil))

// NewCBOR returns a CBOR codec. deterministic selects core deterministic
// encoding (sorted map keys), which makes equal envelopes byte-identical.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	enc, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dec, err := cbor.DecOptions{DefaultMapType: stringMap}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: enc, dec: dec}, nil
}

// MustCBOR panics when the options are rejected, which only a broken build of
// the cbor module does.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (CBOR[V]) ID() byte { return IDCBOR }

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }
func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
