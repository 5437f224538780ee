package devtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/devtools/lib/types"
)

const (
	// DefaultHost is the host of the browser's remote debugging endpoint.
	DefaultHost = "localhost"
	// DefaultPort is the port browsers use for --remote-debugging-port.
	DefaultPort = 9222
	// DefaultLegacySchemaHost serves protocol schemas for revisions up to
	// the repository migration.
	DefaultLegacySchemaHost = "https://src.chromium.org"
	// DefaultModernSchemaHost serves protocol schemas, base64 encoded, for
	// revisions after the repository migration.
	DefaultModernSchemaHost = "https://chromium.googlesource.com"
	// DefaultMaxResponseSize caps every response body read by the client.
	DefaultMaxResponseSize = 32 << 20
	// DefaultTimeout is the timeout the devtools command applies to a whole
	// operation. The client itself never imposes one.
	DefaultTimeout = 30 * time.Second
)

// Config is the configuration of a Client. Unset (invalid) fields fall back to
// the defaults returned by NewConfig.
type Config struct {
	Host             null.String        `json:"host" envconfig:"DEVTOOLS_HOST"`
	Port             null.Int           `json:"port" envconfig:"DEVTOOLS_PORT"`
	LegacySchemaHost null.String        `json:"legacySchemaHost" envconfig:"DEVTOOLS_LEGACY_SCHEMA_HOST"`
	ModernSchemaHost null.String        `json:"modernSchemaHost" envconfig:"DEVTOOLS_MODERN_SCHEMA_HOST"`
	MaxResponseSize  null.Int           `json:"maxResponseSize" envconfig:"DEVTOOLS_MAX_RESPONSE_SIZE"`
	Timeout          types.NullDuration `json:"timeout" envconfig:"DEVTOOLS_TIMEOUT"`
}

// NewConfig creates a new Config instance with the default values, all of
// them marked as not explicitly set.
func NewConfig() Config {
	return Config{
		Host:             null.NewString(DefaultHost, false),
		Port:             null.NewInt(DefaultPort, false),
		LegacySchemaHost: null.NewString(DefaultLegacySchemaHost, false),
		ModernSchemaHost: null.NewString(DefaultModernSchemaHost, false),
		MaxResponseSize:  null.NewInt(DefaultMaxResponseSize, false),
		Timeout:          types.NewNullDuration(DefaultTimeout, false),
	}
}

// Apply overrides the values of c with the valid values of cfg.
func (c Config) Apply(cfg Config) Config {
	if cfg.Host.Valid {
		c.Host = cfg.Host
	}
	if cfg.Port.Valid {
		c.Port = cfg.Port
	}
	if cfg.LegacySchemaHost.Valid {
		c.LegacySchemaHost = cfg.LegacySchemaHost
	}
	if cfg.ModernSchemaHost.Valid {
		c.ModernSchemaHost = cfg.ModernSchemaHost
	}
	if cfg.MaxResponseSize.Valid {
		c.MaxResponseSize = cfg.MaxResponseSize
	}
	if cfg.Timeout.Valid {
		c.Timeout = cfg.Timeout
	}
	return c
}

// Validate checks the values of a consolidated config.
func (c Config) Validate() error {
	var errs []error
	if c.Host.String == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port.Int64 < 1 || c.Port.Int64 > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, not %d", c.Port.Int64))
	}
	if err := validateSchemaHost(c.LegacySchemaHost.String); err != nil {
		errs = append(errs, fmt.Errorf("legacySchemaHost %w", err))
	}
	if err := validateSchemaHost(c.ModernSchemaHost.String); err != nil {
		errs = append(errs, fmt.Errorf("modernSchemaHost %w", err))
	}
	if c.MaxResponseSize.Int64 <= 0 {
		errs = append(errs, errors.New("maxResponseSize must be greater than 0"))
	}
	if c.Timeout.Valid && c.Timeout.Duration < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func validateSchemaHost(host string) error {
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, not %q", host)
	}
	return nil
}

// BaseURL returns the plain HTTP address of the browser's control endpoint.
func (c Config) BaseURL() string {
	return "http://" + net.JoinHostPort(c.Host.String, strconv.FormatInt(c.Port.Int64, 10))
}

// ParseJSON parses the supplied JSON into a Config.
func ParseJSON(data json.RawMessage) (Config, error) {
	conf := Config{}
	err := json.Unmarshal(data, &conf)
	return conf, err
}

// GetConsolidatedConfig combines {default config values + JSON config +
// environment vars + explicitly set values}, and returns the final result.
func GetConsolidatedConfig(jsonRawConf json.RawMessage, env map[string]string, explicit Config) (Config, error) {
	result := NewConfig()
	if len(jsonRawConf) > 0 {
		jsonConf, err := ParseJSON(jsonRawConf)
		if err != nil {
			return result, fmt.Errorf("parsing JSON config: %w", err)
		}
		result = result.Apply(jsonConf)
	}

	envConfig := Config{}
	if err := envconfig.Process("", &envConfig, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return result, fmt.Errorf("parsing environment config: %w", err)
	}
	result = result.Apply(envConfig)

	return result.Apply(explicit), nil
}
