// Package wire frames cached responses before they reach a provider.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version  byte = 1
	kindResp byte = 1
	hdrLen        = 4 + 1 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("servicetools: corrupt cache entry")
	magic4     = [...]byte{'S', 'V', 'T', 'L'}
)

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	Codec    byte
	StoredAt time.Time
	Payload  []byte
}

// Encode frames a payload:
//
//	magic(4) | ver(1) | kind(1) | codec(1) | storedAt(unix nanos, u64 be) | vlen(u32 be) | payload(vlen)
func Encode(codec byte, storedAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindResp)
	buf.WriteByte(codec)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(storedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version || b[5] != kindResp {
		return Entry{}, ErrCorrupt
	}
	off := 6

	codec := b[off]
	off++

	nanos := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Codec:    codec,
		StoredAt: time.Unix(0, nanos),
		Payload:  b[off : off+vlen],
	}, nil
}
