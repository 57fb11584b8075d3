// Package config loads the service configuration.
//
// Sources are layered with koanf, later ones overriding earlier ones:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables prefixed with ACCOUNTS_
//
// Environment keys are matched against the known keys ignoring case and
// underscores, so ACCOUNTS_AUTH_JWT_SECRET and ACCOUNTS_AUTH_JWTSECRET both
// set auth.jwtSecret.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sakif/accounts/internal/auth"
)

// EnvPrefix is the prefix every environment override must carry.
const EnvPrefix = "ACCOUNTS_"

// Supported values for Database.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Auth     Auth     `koanf:"auth"`
	Log      Log      `koanf:"log"`
}

type HTTP struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"readTimeout"`
	WriteTimeout time.Duration `koanf:"writeTimeout"`
	IdleTimeout  time.Duration `koanf:"idleTimeout"`
}

type Database struct {
	Driver string `koanf:"driver"`
	// Path is the SQLite file, or ":memory:".
	Path string `koanf:"path"`
	// DSN is the Postgres connection string.
	DSN string `koanf:"dsn"`
}

type Auth struct {
	JWTSecret  string        `koanf:"jwtSecret"`
	TokenTTL   time.Duration `koanf:"tokenTTL"`
	Issuer     string        `koanf:"issuer"`
	BcryptCost int           `koanf:"bcryptCost"`
}

type Log struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

var defaults = map[string]any{
	"http.port":         8080,
	"http.readTimeout":  "15s",
	"http.writeTimeout": "15s",
	"http.idleTimeout":  "60s",
	"database.driver":   DriverSQLite,
	"database.path":     "data/accounts.db",
	"database.dsn":      "",
	"auth.jwtSecret":    "",
	"auth.tokenTTL":     "24h",
	"auth.issuer":       auth.DefaultIssuer,
	"auth.bcryptCost":   auth.DefaultCost,
	"log.level":         "info",
	"log.pretty":        true,
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (*Config, error) {
	return load(path, os.Environ)
}

func load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("config: setting default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	known := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalKey(strings.TrimPrefix(key, EnvPrefix), known), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	return cfg, nil
}

// Validate reports every setting that would stop the service from starting.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of %s, %s", c.Database.Driver, DriverSQLite, DriverPostgres))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwtSecret is required (set %sAUTH_JWT_SECRET)", EnvPrefix))
	} else if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwtSecret must be at least %d characters", auth.MinSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.tokenTTL must be positive"))
	}
	if c.Auth.BcryptCost < auth.MinCost || c.Auth.BcryptCost > auth.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcryptCost %d out of range [%d, %d]", c.Auth.BcryptCost, auth.MinCost, auth.MaxCost))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// canonicalKey maps an env-style key (AUTH_JWT_SECRET) onto the dotted key
// that already exists in known (auth.jwtSecret). Runs of segments are joined
// greedily, longest first, so multi-word keys split by underscores still
// match. Segments with no match are kept lower-cased.
func canonicalKey(raw string, known map[string]any) string {
	var segments []string
	for _, s := range strings.Split(strings.ToLower(raw), "_") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	out := make([]string, 0, len(segments))
	current := known

	for i := 0; i < len(segments); {
		matched := false
		for j := len(segments); j > i; j-- {
			key, child, ok := lookup(current, strings.Join(segments[i:j], ""))
			if !ok {
				continue
			}
			out = append(out, key)
			current = child
			i = j
			matched = true
			break
		}
		if !matched {
			out = append(out, segments[i])
			current = nil
			i++
		}
	}

	return strings.Join(out, ".")
}

func lookup(current map[string]any, token string) (string, map[string]any, bool) {
	for key, value := range current {
		if normalize(key) != token {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
