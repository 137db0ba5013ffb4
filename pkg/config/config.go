package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/crm"
	"github.com/goliatone/go-crm-repository/pestroutes"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

// DefaultTTLKey is the key of the fallback entry in a TTL table.
const DefaultTTLKey = "default"

// Config is the file level configuration of the portal repositories.
type Config struct {
	LogLevel  string                    `yaml:"log_level"`
	FailOpen  bool                      `yaml:"fail_open"`
	Cache     cache.Config              `yaml:"cache"`
	CRM       pestroutes.Config         `yaml:"crm"`
	Resources map[string]ResourceConfig `yaml:"resources"`
}

// ResourceConfig tunes one entity type.
type ResourceConfig struct {
	// TTL maps "default" or a method name (find, FindMany, ...) to a
	// duration such as "10m" or "30d".
	TTL map[string]string `yaml:"ttl"`
}

// Default returns the configuration used for absent keys.
func Default() Config {
	return Config{
		LogLevel: "info",
		Cache:    cache.DefaultConfig(),
		CRM:      pestroutes.DefaultConfig(),
	}
}

// Load reads a YAML file. Environment variables referenced as $NAME or
// ${NAME} are expanded before parsing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the log level, the cache and CRM sections and every TTL
// table.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.CRM.BaseURL != "" {
		if err := c.CRM.Validate(); err != nil {
			return err
		}
	}

	_, err = c.TTLPolicies()
	return err
}

// TTLPolicies converts the resource TTL tables into policies keyed by entity
// type name, ready for crm.Config.TTL. Types without a table keep their
// crm.DefaultTTLs entry.
func (c Config) TTLPolicies() (map[string]repositorycache.TTLPolicy, error) {
	known := crm.DefaultTTLs()
	out := make(map[string]repositorycache.TTLPolicy, len(c.Resources))

	for _, name := range sortedKeys(c.Resources) {
		if _, ok := known[name]; !ok {
			return nil, invalid("resources."+name, "unknown resource")
		}

		policy := crm.TTLFor(name, nil)
		for _, key := range sortedKeys(c.Resources[name].TTL) {
			field := "resources." + name + ".ttl." + key
			ttl, err := parseDuration(c.Resources[name].TTL[key])
			if err != nil || ttl <= 0 {
				return nil, invalid(field, "must be a positive duration")
			}

			if key == DefaultTTLKey {
				policy.Default = ttl
				continue
			}
			method, ok := repositorycache.ParseMethod(key)
			if !ok {
				return nil, invalid(field, "unknown method")
			}
			policy = policy.With(method, ttl)
		}
		out[name] = policy
	}
	return out, nil
}

// SlogLevel returns LogLevel as a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func invalid(field, message string) error {
	return goerrors.FromOzzoValidation(validation.Errors{
		field: validation.NewError("validation_invalid_"+strings.ReplaceAll(message, " ", "_"), message),
	}, "invalid configuration")
}

// parseDuration accepts time.ParseDuration strings plus whole days ("30d").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
