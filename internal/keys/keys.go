// Package keys renders call arguments into a stable string for hashing.
package keys

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// maxDepth bounds recursion on self-referencing values.
const maxDepth = 32

// Serialize renders method and args deterministically. Every value is tagged
// with its kind, and strings carry their length, so 1 and "1" or ["a,b"] and
// ["a","b"] never render alike. Map entries are sorted. Functions and channels
// render by address, which is stable only within one process.
func Serialize(method string, args []any) string {
	var b strings.Builder
	writeString(&b, method)
	b.WriteString("a" + strconv.Itoa(len(args)) + "{")
	for _, a := range args {
		write(&b, reflect.ValueOf(a), 0)
		b.WriteByte(';')
	}
	b.WriteByte('}')
	return b.String()
}

var textMarshaler = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

func write(b *strings.Builder, rv reflect.Value, depth int) {
	if depth > maxDepth {
		b.WriteString("R")
		return
	}
	if !rv.IsValid() {
		b.WriteString("N")
		return
	}

	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			b.WriteString("b:1")
		} else {
			b.WriteString("b:0")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString("i:" + strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString("u:" + strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString("d:" + strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		fmt.Fprintf(b, "c:%v", rv.Complex())
	case reflect.String:
		writeString(b, rv.String())

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("N")
			return
		}
		write(b, rv.Elem(), depth+1)

	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("N")
			return
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			fmt.Fprintf(b, "y:%d:%x", rv.Len(), rv.Bytes())
			return
		}
		writeList(b, rv, depth)
	case reflect.Array:
		writeList(b, rv, depth)

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("N")
			return
		}
		pairs := make([]string, 0, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			var kv strings.Builder
			write(&kv, it.Key(), depth+1)
			kv.WriteByte('=')
			write(&kv, it.Value(), depth+1)
			pairs = append(pairs, kv.String())
		}
		sort.Strings(pairs)
		b.WriteString("m" + strconv.Itoa(len(pairs)) + "{")
		for _, p := range pairs {
			b.WriteString(p)
			b.WriteByte(';')
		}
		b.WriteByte('}')

	case reflect.Struct:
		writeStruct(b, rv, depth)

	default:
		// func, chan, unsafe pointer
		fmt.Fprintf(b, "p:%s:%x", rv.Type(), rv.Pointer())
	}
}

func writeString(b *strings.Builder, s string) {
	b.WriteString("s:" + strconv.Itoa(len(s)) + ":")
	b.WriteString(s)
}

func writeList(b *strings.Builder, rv reflect.Value, depth int) {
	b.WriteString("l" + strconv.Itoa(rv.Len()) + "{")
	for i := 0; i < rv.Len(); i++ {
		write(b, rv.Index(i), depth+1)
		b.WriteByte(';')
	}
	b.WriteByte('}')
}

func writeStruct(b *strings.Builder, rv reflect.Value, depth int) {
	rt := rv.Type()

	var exported int
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).IsExported() {
			exported++
		}
	}
	// Opaque structs such as time.Time or big.Int render through their text
	// form. Without one, every field counts so distinct values stay distinct.
	if exported == 0 {
		if txt, ok := marshalText(rv); ok {
			b.WriteString("x:" + rt.String() + ":")
			b.Write(txt)
			return
		}
	}

	b.WriteString("o:" + rt.String() + "{")
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if exported > 0 && !f.IsExported() {
			continue
		}
		b.WriteString(f.Name + "=")
		write(b, rv.Field(i), depth+1)
		b.WriteByte(';')
	}
	b.WriteByte('}')
}

// marshalText looks for MarshalText on the value and on its pointer. The
// pointer form runs on a copy when rv is not addressable.
func marshalText(rv reflect.Value) ([]byte, bool) {
	if !rv.CanInterface() {
		return nil, false
	}
	rt := rv.Type()
	var m encoding.TextMarshaler
	switch {
	case rt.Implements(textMarshaler):
		m = rv.Interface().(encoding.TextMarshaler)
	case reflect.PointerTo(rt).Implements(textMarshaler):
		if rv.CanAddr() {
			m = rv.Addr().Interface().(encoding.TextMarshaler)
		} else {
			cp := reflect.New(rt)
			cp.Elem().Set(rv)
			m = cp.Interface().(encoding.TextMarshaler)
		}
	default:
		return nil, false
	}
	txt, err := m.MarshalText()
	if err != nil {
		return nil, false
	}
	return txt, true
}
