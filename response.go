package servicetools

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Response is the outcome of one remote operation: a success with content, or
// a failure with content, a message and a code. Its content is always
// storable in a cache. Construct it with Success or Failure.
type Response struct {
	ok      bool
	content any
	message string
	code    string
}

// Success builds a successful response. It fails with a *SerializationError
// when content holds functions, channels or unsafe pointers.
func Success(content any) (Response, error) {
	if err := checkSerializable(content); err != nil {
		return Response{}, err
	}
	return Response{ok: true, content: content}, nil
}

// Failure builds a failed response. Content may carry partial results.
func Failure(content any, message, code string) (Response, error) {
	if err := checkSerializable(content); err != nil {
		return Response{}, err
	}
	return Response{content: content, message: message, code: code}, nil
}

// MustSuccess is like Success but panics on error.
func MustSuccess(content any) Response {
	r, err := Success(content)
	if err != nil {
		panic(err)
	}
	return r
}

// MustFailure is like Failure but panics on error.
func MustFailure(content any, message, code string) Response {
	r, err := Failure(content, message, code)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Response) OK() bool             { return r.ok }
func (r Response) Content() any         { return r.content }
func (r Response) ErrorMessage() string { return r.message }
func (r Response) ErrorCode() string    { return r.code }

// Equal reports whether both responses carry the same status, message, code
// and content. Content is compared in its msgpack form, so a response read
// back from the cache equals the one that was stored even though numbers and
// typed maps decode to wider generic types.
func (r Response) Equal(o Response) bool {
	if r.ok != o.ok || r.message != o.message || r.code != o.code {
		return false
	}
	if reflect.DeepEqual(r.content, o.content) {
		return true
	}
	a, errA := normalize(r.content)
	b, errB := normalize(o.content)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func normalize(v any) (any, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeContent copies the content into dst, which must be a non-nil pointer.
// It lets callers turn the generic content of a cached response back into a
// typed value.
func (r Response) DecodeContent(dst any) error {
	b, err := msgpack.Marshal(r.content)
	if err != nil {
		return fmt.Errorf("servicetools: encode content: %w", err)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("servicetools: decode content: %w", err)
	}
	return nil
}

func (r Response) String() string {
	if r.ok {
		return fmt.Sprintf("ok: %v", r.content)
	}
	return fmt.Sprintf("error %q (code %q): %v", r.message, r.code, r.content)
}

// Envelope is the storable form of a Response.
type Envelope struct {
	OK      bool   `json:"ok" msgpack:"ok" cbor:"ok"`
	Content any    `json:"content,omitempty" msgpack:"content,omitempty" cbor:"content,omitempty"`
	Error   string `json:"error,omitempty" msgpack:"error,omitempty" cbor:"error,omitempty"`
	Code    string `json:"code,omitempty" msgpack:"code,omitempty" cbor:"code,omitempty"`
}

func (r Response) Envelope() Envelope {
	return Envelope{OK: r.ok, Content: r.content, Error: r.message, Code: r.code}
}

// FromEnvelope rebuilds a response. Content produced by a codec is plain data
// and is not checked again.
func FromEnvelope(e Envelope) Response {
	return Response{ok: e.OK, content: e.Content, message: e.Error, code: e.Code}
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

func checkSerializable(v any) error {
	return walk(reflect.ValueOf(v), "$", map[visit]struct{}{})
}

func walk(rv reflect.Value, path string, seen map[visit]struct{}) error {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return &SerializationError{Path: path, Kind: rv.Kind().String()}

	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return walk(rv.Elem(), path, seen)

	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if !mark(rv, seen) {
			return nil
		}
		return walk(rv.Elem(), path, seen)

	case reflect.Map:
		if rv.IsNil() || !mark(rv, seen) {
			return nil
		}
		it := rv.MapRange()
		for it.Next() {
			p := fmt.Sprintf("%s[%v]", path, it.Key().Interface())
			if err := walk(it.Key(), p, seen); err != nil {
				return err
			}
			if err := walk(it.Value(), p, seen); err != nil {
				return err
			}
		}

	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 || !mark(rv, seen) {
			return nil
		}
		return walkElems(rv, path, seen)

	case reflect.Array:
		return walkElems(rv, path, seen)

	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := walk(rv.Field(i), path+"."+f.Name, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkElems(rv reflect.Value, path string, seen map[visit]struct{}) error {
	for i := 0; i < rv.Len(); i++ {
		if err := walk(rv.Index(i), fmt.Sprintf("%s[%d]", path, i), seen); err != nil {
			return err
		}
	}
	return nil
}

// mark records rv as visited and reports whether it was new.
func mark(rv reflect.Value, seen map[visit]struct{}) bool {
	v := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		v.n = rv.Len()
	}
	if _, ok := seen[v]; ok {
		return false
	}
	seen[v] = struct{}{}
	return true
}
