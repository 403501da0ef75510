package directory

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/servicetools"
)

const (
	errHostRequired     = "LDAP host is not specified"
	errLoginRequired    = "LDAP login is not specified"
	errPasswordRequired = "LDAP password is not specified"
	errPortInvalid      = "LDAP port must be between 1 and 65535"
	errConnect          = "could not connect to Active Directory"
	errBind             = "could not bind to Active Directory"
)

// Config describes one directory server. Host may carry a scheme
// ("ldaps://dc1.example.org"); a bare host name means ldap://.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // 0 => 389, or 636 for ldaps
	ReadOnly bool   `yaml:"readOnly"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`

	Timeout            time.Duration `yaml:"timeout"` // dial and per-request; 0 => 10s
	StartTLS           bool          `yaml:"startTLS"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
}

// Validate checks required fields. Credentials are only required when the
// connection is not read-only.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &servicetools.ConfigError{Field: "host", Message: errHostRequired}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &servicetools.ConfigError{Field: "port", Message: errPortInvalid}
	}
	if !c.ReadOnly {
		if c.Login == "" {
			return &servicetools.ConfigError{Field: "login", Message: errLoginRequired}
		}
		if c.Password == "" {
			return &servicetools.ConfigError{Field: "password", Message: errPasswordRequired}
		}
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 10 * time.Second
}

// URL is the dial address of the server.
func (c Config) URL() string {
	scheme, host := "ldap", strings.TrimSpace(c.Host)
	if i := strings.Index(host, "://"); i >= 0 {
		scheme, host = strings.ToLower(host[:i]), host[i+3:]
	}
	host = strings.TrimSuffix(host, "/")

	if h, p, err := net.SplitHostPort(host); err == nil {
		return scheme + "://" + net.JoinHostPort(h, p)
	}
	port := c.Port
	if port == 0 {
		port = 389
		if scheme == "ldaps" {
			port = 636
		}
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func (c Config) serverName() string {
	u := strings.TrimPrefix(strings.TrimPrefix(c.URL(), "ldap://"), "ldaps://")
	if h, _, err := net.SplitHostPort(u); err == nil {
		return h
	}
	return u
}
