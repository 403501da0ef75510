package codec

import "encoding/json"

// JSON serializes with encoding/json. Numbers inside interface{} values come
// back as float64.
type JSON[V any] struct{}

func (JSON[V]) ID() byte { return IDJSON }

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
