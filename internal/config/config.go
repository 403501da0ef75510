// Package config loads a servicetools deployment from YAML and builds the
// Service it describes.
//
// Environment variables override the file (see ApplyEnv). Unknown YAML keys
// are ignored.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/servicetools/directory"
	"github.com/unkn0wn-root/servicetools/soap"
)

const EnvPrefix = "SERVICETOOLS_"

type Config struct {
	Service   ServiceConfig     `yaml:"service"`
	Cache     CacheConfig       `yaml:"cache"`
	Log       LogConfig         `yaml:"log"`
	Timer     TimerConfig       `yaml:"timer"`
	Hooks     HooksConfig       `yaml:"hooks"`
	Directory *directory.Config `yaml:"directory"`
	SOAP      *soap.Config      `yaml:"soap"`
}

type ServiceConfig struct {
	Backend   string        `yaml:"backend"` // directory | soap
	Namespace string        `yaml:"namespace"`
	Expires   ExpiresConfig `yaml:"expires"`
}

type ExpiresConfig struct {
	Default time.Duration            `yaml:"default"`
	Methods map[string]time.Duration `yaml:"methods"`
}

type CacheConfig struct {
	Disabled      bool   `yaml:"disabled"`
	Provider      string `yaml:"provider"` // memory | ristretto | bigcache | sturdyc | redis | memcache | composite
	Codec         string `yaml:"codec"`    // msgpack | json | cbor | structpb
	MaxEntryBytes int    `yaml:"maxEntryBytes"`

	Layers []string `yaml:"layers"` // composite only, fastest first

	Memory    MemoryConfig    `yaml:"memory"`
	Ristretto RistrettoConfig `yaml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache"`
	Sturdyc   SturdycConfig   `yaml:"sturdyc"`
	Redis     RedisConfig     `yaml:"redis"`
	Memcache  MemcacheConfig  `yaml:"memcache"`
}

type MemoryConfig struct {
	MaxEntries      int           `yaml:"maxEntries"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"numCounters"`
	MaxCost     int64 `yaml:"maxCost"`
	BufferItems int64 `yaml:"bufferItems"`
	Metrics     bool  `yaml:"metrics"`
	Synchronous bool  `yaml:"synchronous"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `yaml:"lifeWindow"`
	Shards             int           `yaml:"shards"`
	HardMaxCacheSizeMB int           `yaml:"hardMaxCacheSizeMB"`
}

type SturdycConfig struct {
	Capacity  int           `yaml:"capacity"`
	NumShards int           `yaml:"numShards"`
	TTL       time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"keyPrefix"`
}

type MemcacheConfig struct {
	Servers   []string      `yaml:"servers"`
	Timeout   time.Duration `yaml:"timeout"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // slog | zap | logrus | none
	Level   string `yaml:"level"`   // debug | info | warn | error
	Format  string `yaml:"format"`  // text | json
}

type TimerConfig struct {
	Enabled    bool      `yaml:"enabled"`
	Namespace  string    `yaml:"namespace"`
	Prometheus bool      `yaml:"prometheus"`
	Tracing    bool      `yaml:"tracing"`
	Buckets    []float64 `yaml:"buckets"`
}

type HooksConfig struct {
	Log           bool   `yaml:"log"`
	HitEvery      uint64 `yaml:"hitEvery"`
	MissEvery     uint64 `yaml:"missEvery"`
	AsyncWorkers  int    `yaml:"asyncWorkers"` // 0 => synchronous
	AsyncQueueLen int    `yaml:"asyncQueueLen"`
}

// Default is the configuration every file is decoded onto.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{Provider: "memory", Codec: "msgpack"},
		Log:   LogConfig{Backend: "slog", Level: "info", Format: "text"},
	}
}

// Load reads path over Default, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SERVICETOOLS_* variables:
//
//	SERVICETOOLS_BACKEND, SERVICETOOLS_NAMESPACE,
//	SERVICETOOLS_CACHE_PROVIDER, SERVICETOOLS_CACHE_CODEC, SERVICETOOLS_CACHE_DISABLED,
//	SERVICETOOLS_REDIS_ADDRS, SERVICETOOLS_REDIS_PASSWORD, SERVICETOOLS_MEMCACHE_SERVERS,
//	SERVICETOOLS_LOG_BACKEND, SERVICETOOLS_LOG_LEVEL, SERVICETOOLS_LOG_FORMAT,
//	SERVICETOOLS_LDAP_HOST, SERVICETOOLS_LDAP_LOGIN, SERVICETOOLS_LDAP_PASSWORD,
//	SERVICETOOLS_SOAP_URL
//
// Lists are comma separated.
func (c *Config) ApplyEnv() error {
	setString(&c.Service.Backend, "BACKEND")
	setString(&c.Service.Namespace, "NAMESPACE")
	setString(&c.Cache.Provider, "CACHE_PROVIDER")
	setString(&c.Cache.Codec, "CACHE_CODEC")
	if err := setBool(&c.Cache.Disabled, "CACHE_DISABLED"); err != nil {
		return err
	}
	setList(&c.Cache.Redis.Addrs, "REDIS_ADDRS")
	setString(&c.Cache.Redis.Password, "REDIS_PASSWORD")
	setList(&c.Cache.Memcache.Servers, "MEMCACHE_SERVERS")
	setString(&c.Log.Backend, "LOG_BACKEND")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if host, login, pw := env("LDAP_HOST"), env("LDAP_LOGIN"), env("LDAP_PASSWORD"); host != "" || login != "" || pw != "" {
		if c.Directory == nil {
			c.Directory = &directory.Config{}
		}
		setString(&c.Directory.Host, "LDAP_HOST")
		setString(&c.Directory.Login, "LDAP_LOGIN")
		setString(&c.Directory.Password, "LDAP_PASSWORD")
	}
	if u := env("SOAP_URL"); u != "" {
		if c.SOAP == nil {
			c.SOAP = &soap.Config{}
		}
		c.SOAP.URL = u
	}
	return nil
}

func env(name string) string { return os.Getenv(EnvPrefix + name) }

func setString(dst *string, name string) {
	if v := env(name); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, name string) {
	v := env(name)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func setBool(dst *bool, name string) error {
	v := env(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
	}
	*dst = b
	return nil
}

var providers = []any{"memory", "ristretto", "bigcache", "sturdyc", "redis", "memcache", "composite"}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Service),
		validation.Field(&c.Cache),
		validation.Field(&c.Log),
		validation.Field(&c.Timer),
		validation.Field(&c.Directory, validation.When(c.Service.Backend == directory.Name, validation.Required)),
		validation.Field(&c.SOAP, validation.When(c.Service.Backend == soap.Name, validation.Required)),
	)
}

func (s ServiceConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In(directory.Name, soap.Name)),
		validation.Field(&s.Expires),
	)
}

func (e ExpiresConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Default, validation.Min(time.Duration(0))),
		validation.Field(&e.Methods, validation.Each(validation.Min(time.Duration(0)))),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In(providers...)),
		validation.Field(&c.Codec, validation.Required, validation.In("msgpack", "json", "cbor", "structpb")),
		validation.Field(&c.MaxEntryBytes, validation.Min(0)),
		validation.Field(&c.Layers,
			validation.When(c.Provider == "composite", validation.Required, validation.Length(2, 0)),
			validation.Each(validation.In(providers[:len(providers)-1]...)),
		),
		validation.Field(&c.Redis, validation.When(c.uses("redis"), validation.By(func(any) error {
			return validation.Validate(c.Redis.Addrs, validation.Required)
		}))),
		validation.Field(&c.Memcache, validation.When(c.uses("memcache"), validation.By(func(any) error {
			return validation.Validate(c.Memcache.Servers, validation.Required)
		}))),
	)
}

func (c CacheConfig) uses(name string) bool {
	if c.Provider == name {
		return true
	}
	if c.Provider != "composite" {
		return false
	}
	for _, l := range c.Layers {
		if l == name {
			return true
		}
	}
	return false
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Backend, validation.In("slog", "zap", "logrus", "none")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

func (t TimerConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Buckets, validation.Each(validation.Min(0.0))),
	)
}
