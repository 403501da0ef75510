// Package codec converts cached values to bytes and back.
//
// Every codec in this package reports a stable ID that is written into the
// cache frame, so entries written by one codec are never decoded by another.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Frame IDs. 0 is reserved for codecs that do not identify themselves; such
// entries are decoded by whichever codec reads them.
const (
	IDUnknown  byte = 0
	IDJSON     byte = 1
	IDMsgpack  byte = 2
	IDCBOR     byte = 3
	IDStructPB byte = 4
)

// IDOf returns c's frame ID, or IDUnknown when c does not report one.
func IDOf(c any) byte {
	if i, ok := c.(interface{ ID() byte }); ok {
		return i.ID()
	}
	return IDUnknown
}
