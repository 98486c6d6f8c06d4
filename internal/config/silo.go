package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// SiloDescriptor is a named external-store connection descriptor, per
// spec.md §6: `{engine: mongo|redis, host, port, database, username?,
// password?, ...}`. Grounded on the original source's BaseSilo constructor
// fields; Extra carries engine-specific parameters the original passed
// through **extended_db_configuration (e.g. Mongo's maxPoolSize).
type SiloDescriptor struct {
	Name     string `mapstructure:"name"`
	Engine   string `mapstructure:"engine"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Extra    map[string]any `mapstructure:",remain"`
}

// SiloCatalog is the process-wide registry of named silo descriptors,
// looked up by task kinds and the chain driver's status publisher.
// Mirrors the original's module-level `_SILOS` dict plus `get_silo`, but as
// an explicit injectable type rather than a bare global.
type SiloCatalog struct {
	mu      sync.RWMutex
	entries map[string]SiloDescriptor
}

// NewSiloCatalog returns an empty catalog.
func NewSiloCatalog() *SiloCatalog {
	return &SiloCatalog{entries: map[string]SiloDescriptor{}}
}

// Register decodes raw (as loaded from a config file's "silos" mapping)
// into a SiloDescriptor and adds it under name.
func (c *SiloCatalog) Register(name string, raw map[string]any) error {
	desc := SiloDescriptor{Name: name}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &desc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	if err := decoder.Decode(raw); err != nil {
		return &ConfigError{Reason: fmt.Sprintf("decoding silo %q: %v", name, err)}
	}

	c.mu.Lock()
	c.entries[name] = desc
	c.mu.Unlock()
	return nil
}

// LoadCatalogFile reads a YAML file whose top-level mapping is
// `{name: {engine, host, port, database, username?, password?, ...}, ...}`
// (spec.md §6's silo catalog shape) and Registers each entry.
func (c *SiloCatalog) LoadCatalogFile(path string) error {
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		return &ConfigError{Reason: fmt.Sprintf("unsupported file format %q: only .yaml and .yml are supported", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &ConfigError{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	for name, entry := range raw {
		if err := c.Register(name, entry); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the descriptor registered under name, if any.
func (c *SiloCatalog) Get(name string) (SiloDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[name]
	return d, ok
}

// RedisClient builds a *redis.Client from a "redis"-engine descriptor
// registered under name, for wiring into internal/silo.New. Returns an
// error (rather than panicking or connecting lazily and silently) when the
// name is absent or its engine isn't "redis", since a caller that asked for
// a Redis client by name has a configuration error, not a runtime one —
// matching spec.md §7's "fatal at chain construction if the configured
// status silo is unreachable" policy by failing fast on a bad lookup too.
func (c *SiloCatalog) RedisClient(name string) (*redis.Client, error) {
	desc, ok := c.Get(name)
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("silo %q is not registered", name)}
	}
	if desc.Engine != "redis" {
		return nil, &ConfigError{Reason: fmt.Sprintf("silo %q has engine %q, want redis", name, desc.Engine)}
	}

	db := 0
	if desc.Database != "" {
		if _, err := fmt.Sscanf(desc.Database, "%d", &db); err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("silo %q has non-numeric database %q for redis", name, desc.Database)}
		}
	}

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", desc.Host, desc.Port),
		Username: desc.Username,
		Password: desc.Password,
		DB:       db,
	}), nil
}
