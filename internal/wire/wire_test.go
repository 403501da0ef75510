package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Unix(1700000000, 123)
	cases := [][]byte{nil, []byte("hello"), {0, 1, 2, 3, 4}}
	for _, payload := range cases {
		e, err := Decode(Encode(2, at, payload))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if e.Codec != 2 {
			t.Fatalf("codec mismatch: got %d", e.Codec)
		}
		if !e.StoredAt.Equal(at) {
			t.Fatalf("storedAt mismatch: got %v want %v", e.StoredAt, at)
		}
		if !bytes.Equal(e.Payload, payload) {
			t.Fatalf("payload mismatch: got %x want %x", e.Payload, payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(1, time.Now(), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(1, time.Now(), []byte("abc"))

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), enc...))
	}

	cases := map[string][]byte{
		"bad magic":   mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"bad version": mutate(func(b []byte) []byte { b[4] = version + 1; return b }),
		"bad kind":    mutate(func(b []byte) []byte { b[5] = kindResp + 1; return b }),
		"truncated":   enc[:hdrLen-1],
		"short payload": mutate(func(b []byte) []byte {
			return b[:len(b)-1]
		}),
		"huge vlen": mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[hdrLen-4:hdrLen], 0xFFFFFFFF)
			return b
		}),
		"empty": {},
	}
	for name, b := range cases {
		if _, err := Decode(b); err == nil {
			t.Fatalf("%s: expected ErrCorrupt", name)
		}
	}
}
