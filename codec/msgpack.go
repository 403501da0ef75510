package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is a Codec that serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use.
//
// Values decoded into interface{} are loose: integers come back as int64 or
// uint64, floats as float64, binary as string. Use `msgpack:"name"` tags when
// the field names must be controlled.
type Msgpack[V any] struct{}

func (Msgpack[V]) ID() byte { return IDMsgpack }

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(&v)
	return v, err
}
