// Package soap is the SOAP backend of servicetools.
//
// Every method name is sent as-is: the request body is an element named after
// the method in Config.Namespace, built from the single map (or XML-tagged
// struct) argument. Faults become failed Responses coded with the faultcode;
// transport errors become failed Responses coded "transport".
package soap

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hooklift/gowsdl/soap"

	"github.com/unkn0wn-root/servicetools"
)

const Name = "soap"

const CodeTransport = "transport"

// ErrMapping reports a result that could not be shaped into its registered type.
var ErrMapping = errors.New("soap: result mapping failed")

type mode int

const (
	modeNone mode = iota
	modeMapper
	modeStrict
	modeArray
	modeArrayStrict
)

type Backend struct {
	types map[string]func() any

	mu       sync.RWMutex
	cfg      Config
	endpoint string
	defaults map[string]any
	client   *soap.Client
}

var (
	_ servicetools.Backend      = (*Backend)(nil)
	_ servicetools.ArgsPreparer = (*Backend)(nil)
	_ servicetools.Tagger       = (*Backend)(nil)
)

type Option func(*Backend)

// WithType registers a result type for Mapping.Mapper and Mapping.Strict.
// newFn returns a pointer to a fresh value.
func WithType(name string, newFn func() any) Option {
	return func(b *Backend) { b.types[name] = newFn }
}

func New(opts ...Option) *Backend {
	b := &Backend{types: make(map[string]func() any)}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Configure validates cfg and prepares the client. No request is sent.
func (b *Backend) Configure(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = nil

	if err := cfg.Validate(); err != nil {
		return err
	}
	for field, m := range map[string]map[string]string{"mapping.mapper": cfg.Mapping.Mapper, "mapping.strict": cfg.Mapping.Strict} {
		for method, typ := range m {
			if _, ok := b.types[typ]; !ok {
				return &servicetools.ConfigError{
					Field:   field + "." + method,
					Message: fmt.Sprintf("SOAP result type %q is not registered", typ),
				}
			}
		}
	}

	endpoint, _ := cfg.Endpoint()
	defaults, _ := defaultArgs(cfg.DefaultArgs)

	opts := []soap.Option{soap.WithHTTPHeaders(cfg.headers())}
	if cfg.Timeout > 0 {
		opts = append(opts, soap.WithTimeout(cfg.Timeout))
	}
	if cfg.BasicAuth != nil {
		opts = append(opts, soap.WithBasicAuth(cfg.BasicAuth.Login, cfg.BasicAuth.Password))
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, soap.WithTLS(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec // opt-in
	}

	b.cfg = cfg
	b.endpoint = endpoint
	b.defaults = defaults
	b.client = soap.NewClient(endpoint, opts...)
	return nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Configured() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client != nil
}

func (b *Backend) TimerTags() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]string{"type": "soap", "target": b.endpoint}
}

// PrepareArgs merges the configured default args under the first argument.
// With defaults configured the call carries exactly one argument; others are
// dropped.
func (b *Backend) PrepareArgs(_ string, args []any) []any {
	b.mu.RLock()
	defaults := b.defaults
	b.mu.RUnlock()
	if defaults == nil {
		return args
	}

	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	if len(args) > 0 && args[0] != nil {
		first, err := defaultArgs(args[0])
		if err != nil {
			return args
		}
		for k, v := range first {
			merged[k] = v
		}
	}
	return []any{merged}
}

func (b *Backend) Call(ctx context.Context, method string, args []any) (servicetools.Response, error) {
	b.mu.RLock()
	client, cfg := b.client, b.cfg
	b.mu.RUnlock()
	if client == nil {
		return servicetools.Response{}, &servicetools.NotConfiguredError{Service: Name}
	}
	if method == "" {
		return servicetools.Response{}, fmt.Errorf("%w: soap method name is empty", servicetools.ErrInvalidArgument)
	}
	if len(args) > 1 {
		return servicetools.Response{}, fmt.Errorf("%w: soap %s takes one argument, got %d", servicetools.ErrInvalidArgument, method, len(args))
	}

	req := request{name: method, ns: cfg.Namespace}
	if len(args) == 1 {
		req.value = args[0]
	}
	res := new(result)
	if err := client.CallContext(ctx, cfg.action(method), req, res); err != nil {
		var fault *soap.SOAPFault
		if errors.As(err, &fault) {
			return servicetools.Failure(nil, fault.String, fault.Code)
		}
		return servicetools.Failure(nil, err.Error(), CodeTransport)
	}

	content, err := b.shape(cfg.Mapping, method, res)
	if err != nil {
		return servicetools.Response{}, err
	}
	return servicetools.Success(content)
}

func (b *Backend) shape(m Mapping, method string, res *result) (any, error) {
	md, typ := modeFor(m, method)
	switch md {
	case modeArray:
		return res.root.Value(), nil
	case modeArrayStrict:
		return map[string]any{res.root.Name: res.root.Value()}, nil
	case modeMapper, modeStrict:
		dst := b.types[typ]()
		if md == modeStrict {
			if unknown := unknownElements(res.root, reflect.TypeOf(dst), res.root.Name); len(unknown) > 0 {
				return nil, fmt.Errorf("%w: %s into %s: unknown elements %s", ErrMapping, method, typ, strings.Join(unknown, ", "))
			}
		}
		if err := xml.Unmarshal(res.raw, dst); err != nil {
			return nil, fmt.Errorf("%w: %s into %s: %w", ErrMapping, method, typ, err)
		}
		if rv := reflect.ValueOf(dst); rv.Kind() == reflect.Pointer && !rv.IsNil() {
			return rv.Elem().Interface(), nil
		}
		return dst, nil
	}
	return res.root, nil
}

func modeFor(m Mapping, method string) (mode, string) {
	md, typ := modeNone, ""
	if t, ok := m.Mapper[method]; ok {
		md, typ = modeMapper, t
	}
	if t, ok := m.Strict[method]; ok {
		md, typ = modeStrict, t
	}
	if slices.Contains(m.Array, method) || slices.Contains(m.Array, "*") {
		md = modeArray
	}
	if slices.Contains(m.ArrayStrict, method) || slices.Contains(m.ArrayStrict, "*") {
		md = modeArrayStrict
	}
	return md, typ
}
