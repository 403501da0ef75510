package soap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/servicetools"
)

const (
	errURLRequired     = "SOAP wsdl url is not specified"
	errURLInvalid      = "SOAP wsdl url is not a valid absolute url"
	errDefaultArgsType = "SOAP default args must be a mapping"
)

type BasicAuth struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

// Mapping selects how results of a method are shaped. Array and ArrayStrict
// list method names ("*" for all); Mapper and Strict map a method to a type
// registered with WithType. When several apply, the later one in
// mapper, strict, array, array_strict order wins.
type Mapping struct {
	Mapper      map[string]string `yaml:"mapper"`
	Strict      map[string]string `yaml:"strict"`
	Array       []string          `yaml:"array"`
	ArrayStrict []string          `yaml:"arrayStrict"`
}

type Config struct {
	URL         string            `yaml:"url"` // WSDL or endpoint url; a ?wsdl query is dropped
	ContentType string            `yaml:"contentType"`
	Timeout     time.Duration     `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	BasicAuth   *BasicAuth        `yaml:"basicAuth"`

	// Namespace of the request element. SOAPAction is ActionPrefix+method,
	// or Namespace/method when ActionPrefix is empty.
	Namespace    string `yaml:"namespace"`
	ActionPrefix string `yaml:"actionPrefix"`

	// DefaultArgs are merged under the first argument of every call.
	DefaultArgs any     `yaml:"defaultArgs"`
	Mapping     Mapping `yaml:"mapping"`

	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return &servicetools.ConfigError{Field: "url", Message: errURLRequired}
	}
	if _, err := c.Endpoint(); err != nil {
		return &servicetools.ConfigError{Field: "url", Message: errURLInvalid}
	}
	if _, err := defaultArgs(c.DefaultArgs); err != nil {
		return &servicetools.ConfigError{Field: "defaultArgs", Message: errDefaultArgsType}
	}
	return nil
}

// Endpoint is URL without the wsdl query parameter.
func (c Config) Endpoint() (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("soap: %q is not absolute", c.URL)
	}
	q := u.Query()
	for k := range q {
		if strings.EqualFold(k, "wsdl") {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c Config) action(method string) string {
	switch {
	case c.ActionPrefix != "":
		return c.ActionPrefix + method
	case c.Namespace != "":
		return strings.TrimSuffix(c.Namespace, "/") + "/" + method
	}
	return method
}

func (c Config) headers() map[string]string {
	out := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		out[k] = v
	}
	if c.ContentType != "" {
		out["Content-Type"] = c.ContentType
	}
	return out
}

func defaultArgs(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("soap: default args: want mapping, got %T", v)
}
