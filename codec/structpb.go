package codec

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// StructPB stores values as a protobuf google.protobuf.Struct, which lets
// non-Go readers of a shared cache decode entries with stock protobuf tooling.
// V must marshal to a JSON object. The zero value is ready to use.
type StructPB[V any] struct{}

func (StructPB[V]) ID() byte { return IDStructPB }

func (StructPB[V]) Encode(v V) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (StructPB[V]) Decode(b []byte) (V, error) {
	var v V
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return v, err
	}
	raw, err := protojson.Marshal(&s)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}
