// Package directory is the LDAP backend of servicetools.
//
// The backend binds once at configuration time (anonymously when read-only)
// and forwards a fixed set of operations to that connection:
//
//	search  (baseDN, filter, [attributes], [sizeLimit], [timeLimit]) -> []Entry
//	list    (baseDN, filter, [attributes], [sizeLimit], [timeLimit]) -> []Entry  one level
//	read    (dn, [filter], [attributes])                              -> []Entry  base object
//	compare (dn, attribute, value)                                    -> bool
//	add     (dn, attributes)                                          -> true
//	delete  (dn)                                                      -> true
//	modify  (dn, attributes)                                          -> true      replaces values
//	mod_add / mod_del / mod_replace (dn, attributes)                  -> true
//	rename  (dn, newRDN, [newParent], [deleteOldRDN=true])            -> true
//	whoami  ()                                                        -> string
//	passwd  ([user], [oldPassword], [newPassword])                    -> string    generated password, if any
//
// LDAP result errors become failed Responses coded with the result name
// (e.g. "No Such Object").
//
// Every operation goes through the cache, writes included: repeating an
// identical add, modify, rename or passwd within its lifetime returns the
// stored Response without reaching the server. With no expiry that lifetime
// is unbounded, so give write operations short per-method lifetimes:
//
//	servicetools.Expires{
//		Default: 10 * time.Minute,
//		Methods: map[string]time.Duration{"add": time.Second, "passwd": time.Second},
//	}
//
// Passwords are masked in logged arguments (see RedactArgs).
package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"

	"github.com/go-ldap/ldap/v3"

	"github.com/unkn0wn-root/servicetools"
)

const Name = "directory"

// Ops lists the supported operation names.
var Ops = []string{
	"search", "list", "read", "compare", "add", "delete", "modify",
	"mod_add", "mod_del", "mod_replace", "rename", "whoami", "passwd",
}

// Conn is the part of an LDAP connection the backend uses; *ldap.Conn
// satisfies it.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	StartTLS(config *tls.Config) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Del(req *ldap.DelRequest) error
	Modify(req *ldap.ModifyRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Compare(dn, attribute, value string) (bool, error)
	PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error)
	WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error)
}

// Dialer opens a connection to cfg.URL().
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// Entry is one search result.
type Entry struct {
	DN         string              `json:"dn" msgpack:"dn" cbor:"dn"`
	Attributes map[string][]string `json:"attributes" msgpack:"attributes" cbor:"attributes"`
}

type Backend struct {
	dial Dialer

	mu   sync.RWMutex
	cfg  Config
	conn Conn
}

var (
	_ servicetools.Backend      = (*Backend)(nil)
	_ servicetools.Tagger       = (*Backend)(nil)
	_ servicetools.ArgsRedactor = (*Backend)(nil)
	_ io.Closer                 = (*Backend)(nil)
)

type Option func(*Backend)

// WithDialer replaces the network dialer, mostly for tests.
func WithDialer(d Dialer) Option { return func(b *Backend) { b.dial = d } }

func New(opts ...Option) *Backend {
	b := &Backend{dial: dialLDAP}
	for _, o := range opts {
		o(b)
	}
	return b
}

func dialLDAP(ctx context.Context, cfg Config) (Conn, error) {
	d := &net.Dialer{Timeout: cfg.timeout()}
	opts := []ldap.DialOpt{ldap.DialWithDialer(d)}
	if cfg.InsecureSkipVerify {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec // opt-in
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := ldap.DialURL(cfg.URL(), opts...)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(cfg.timeout())
	return conn, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Configured() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil
}

func (b *Backend) TimerTags() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]string{"type": "ldap", "target": b.cfg.URL()}
}

// Configure validates cfg, connects and binds. On any failure the backend is
// left unconfigured, with a previous connection closed.
func (b *Backend) Configure(ctx context.Context, cfg Config) error {
	b.reset()
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := b.dial(ctx, cfg)
	if err != nil {
		return &servicetools.ConnectionError{Op: "connect", Err: fmt.Errorf("%s: %w", errConnect, err)}
	}
	if cfg.StartTLS {
		tc := &tls.Config{ServerName: cfg.serverName(), InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // opt-in
		if err := conn.StartTLS(tc); err != nil {
			closeConn(conn)
			return &servicetools.ConnectionError{Op: "connect", Err: fmt.Errorf("%s: starttls: %w", errConnect, err)}
		}
	}

	if cfg.ReadOnly {
		err = conn.UnauthenticatedBind("")
	} else {
		err = conn.Bind(cfg.Login, cfg.Password)
	}
	if err != nil {
		closeConn(conn)
		return &servicetools.ConnectionError{Op: "bind", Err: fmt.Errorf("%s: %w", errBind, err)}
	}

	b.mu.Lock()
	b.cfg, b.conn = cfg, conn
	b.mu.Unlock()
	return nil
}

// Close drops the connection; the backend becomes unconfigured.
func (b *Backend) Close() error {
	b.reset()
	return nil
}

func (b *Backend) reset() {
	b.mu.Lock()
	old := b.conn
	b.conn = nil
	b.mu.Unlock()
	if old != nil {
		closeConn(old)
	}
}

func closeConn(c Conn) {
	switch cl := c.(type) {
	case io.Closer:
		_ = cl.Close()
	case interface{ Close() }:
		cl.Close()
	}
}

// Call runs op on the bound connection. Argument errors and unknown
// operations are returned as errors; LDAP errors as failed Responses.
func (b *Backend) Call(ctx context.Context, op string, args []any) (servicetools.Response, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return servicetools.Response{}, &servicetools.NotConfiguredError{Service: Name}
	}
	if err := ctx.Err(); err != nil {
		return servicetools.Failure(nil, err.Error(), "canceled")
	}

	var (
		content any
		err     error
	)
	switch op {
	case "search":
		content, err = search(conn, op, args, ldap.ScopeWholeSubtree)
	case "list":
		content, err = search(conn, op, args, ldap.ScopeSingleLevel)
	case "read":
		content, err = read(conn, args)
	case "compare":
		content, err = compare(conn, args)
	case "add":
		content, err = add(conn, args)
	case "delete":
		content, err = del(conn, args)
	case "modify", "mod_replace":
		content, err = modify(conn, op, args, ldap.ReplaceAttribute)
	case "mod_add":
		content, err = modify(conn, op, args, ldap.AddAttribute)
	case "mod_del":
		content, err = modify(conn, op, args, ldap.DeleteAttribute)
	case "rename":
		content, err = rename(conn, args)
	case "whoami":
		content, err = whoami(conn)
	case "passwd":
		content, err = passwd(conn, args)
	default:
		return servicetools.Response{}, fmt.Errorf("%w: %s %q", servicetools.ErrUnsupportedOperation, Name, op)
	}

	if err != nil {
		if errors.Is(err, servicetools.ErrInvalidArgument) {
			return servicetools.Response{}, err
		}
		return failure(err)
	}
	return servicetools.Success(content)
}

func failure(err error) (servicetools.Response, error) {
	var le *ldap.Error
	if errors.As(err, &le) {
		return servicetools.Failure(nil, err.Error(), resultName(le.ResultCode))
	}
	return servicetools.Failure(nil, err.Error(), "")
}

func resultName(code uint16) string {
	if name, ok := ldap.LDAPResultCodeMap[code]; ok {
		return name
	}
	return fmt.Sprintf("ldap result %d", code)
}

func search(conn Conn, op string, args []any, scope int) ([]Entry, error) {
	base, err := argString(op, args, 0, "baseDN")
	if err != nil {
		return nil, err
	}
	filter, err := argString(op, args, 1, "filter")
	if err != nil {
		return nil, err
	}
	attrs, err := optStrings(op, args, 2, "attributes")
	if err != nil {
		return nil, err
	}
	size, err := optInt(op, args, 3, "sizeLimit")
	if err != nil {
		return nil, err
	}
	limit, err := optInt(op, args, 4, "timeLimit")
	if err != nil {
		return nil, err
	}
	return runSearch(conn, ldap.NewSearchRequest(base, scope, ldap.NeverDerefAliases, size, limit, false, filter, attrs, nil))
}

func read(conn Conn, args []any) ([]Entry, error) {
	dn, err := argString("read", args, 0, "dn")
	if err != nil {
		return nil, err
	}
	filter, err := optString("read", args, 1, "filter", "(objectClass=*)")
	if err != nil {
		return nil, err
	}
	attrs, err := optStrings("read", args, 2, "attributes")
	if err != nil {
		return nil, err
	}
	return runSearch(conn, ldap.NewSearchRequest(dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false, filter, attrs, nil))
}

func runSearch(conn Conn, req *ldap.SearchRequest) ([]Entry, error) {
	res, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		attrs := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs[a.Name] = append([]string(nil), a.Values...)
		}
		out = append(out, Entry{DN: e.DN, Attributes: attrs})
	}
	return out, nil
}

func compare(conn Conn, args []any) (bool, error) {
	dn, err := argString("compare", args, 0, "dn")
	if err != nil {
		return false, err
	}
	attr, err := argString("compare", args, 1, "attribute")
	if err != nil {
		return false, err
	}
	val, err := argString("compare", args, 2, "value")
	if err != nil {
		return false, err
	}
	return conn.Compare(dn, attr, val)
}

func add(conn Conn, args []any) (bool, error) {
	dn, err := argString("add", args, 0, "dn")
	if err != nil {
		return false, err
	}
	attrs, err := argAttrs("add", args, 1, "attributes")
	if err != nil {
		return false, err
	}
	req := ldap.NewAddRequest(dn, nil)
	for _, name := range sortedKeys(attrs) {
		req.Attribute(name, attrs[name])
	}
	if err := conn.Add(req); err != nil {
		return false, err
	}
	return true, nil
}

func del(conn Conn, args []any) (bool, error) {
	dn, err := argString("delete", args, 0, "dn")
	if err != nil {
		return false, err
	}
	if err := conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return false, err
	}
	return true, nil
}

func modify(conn Conn, op string, args []any, kind uint) (bool, error) {
	dn, err := argString(op, args, 0, "dn")
	if err != nil {
		return false, err
	}
	attrs, err := argAttrs(op, args, 1, "attributes")
	if err != nil {
		return false, err
	}
	req := ldap.NewModifyRequest(dn, nil)
	for _, name := range sortedKeys(attrs) {
		switch kind {
		case ldap.AddAttribute:
			req.Add(name, attrs[name])
		case ldap.DeleteAttribute:
			req.Delete(name, attrs[name])
		default:
			req.Replace(name, attrs[name])
		}
	}
	if err := conn.Modify(req); err != nil {
		return false, err
	}
	return true, nil
}

func rename(conn Conn, args []any) (bool, error) {
	dn, err := argString("rename", args, 0, "dn")
	if err != nil {
		return false, err
	}
	rdn, err := argString("rename", args, 1, "newRDN")
	if err != nil {
		return false, err
	}
	parent, err := optString("rename", args, 2, "newParent", "")
	if err != nil {
		return false, err
	}
	deleteOld, err := optBool("rename", args, 3, "deleteOldRDN", true)
	if err != nil {
		return false, err
	}
	if err := conn.ModifyDN(ldap.NewModifyDNRequest(dn, rdn, deleteOld, parent)); err != nil {
		return false, err
	}
	return true, nil
}

func whoami(conn Conn) (string, error) {
	res, err := conn.WhoAmI(nil)
	if err != nil {
		return "", err
	}
	return res.AuthzID, nil
}

func passwd(conn Conn, args []any) (string, error) {
	user, err := optString("passwd", args, 0, "user", "")
	if err != nil {
		return "", err
	}
	oldPw, err := optString("passwd", args, 1, "oldPassword", "")
	if err != nil {
		return "", err
	}
	newPw, err := optString("passwd", args, 2, "newPassword", "")
	if err != nil {
		return "", err
	}
	res, err := conn.PasswordModify(ldap.NewPasswordModifyRequest(user, oldPw, newPw))
	if err != nil {
		return "", err
	}
	return res.GeneratedPassword, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
