package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from a YAML file
// (optional) with environment variables taking precedence, so a container
// deployment can run entirely from env.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
	} `yaml:"server"`

	// Issuer is the trust anchor: tokens must carry this "iss" and it is
	// recorded as component id on audit events.
	Issuer string `yaml:"issuer"`

	KMS struct {
		BaseURL         string `yaml:"base_url"`
		SigningKeyID    string `yaml:"signing_key_id"`
		EncryptionKeyID string `yaml:"encryption_key_id"`
		Timeout         string `yaml:"timeout"`
	} `yaml:"kms"`

	Registry struct {
		// postgres | static
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		// Static entries, used when driver is "static" (dev/test).
		Clients []StaticClient `yaml:"clients"`
	} `yaml:"registry"`

	Session struct {
		// redis | memory
		Driver string `yaml:"driver"`
		TTL    string `yaml:"ttl"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	Audit struct {
		// Stream is the redis stream audit events are appended to.
		Stream string `yaml:"stream"`
	} `yaml:"audit"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// StaticClient is a registry entry for the static driver.
type StaticClient struct {
	ClientID    string `yaml:"client_id"`
	Issuer      string `yaml:"issuer"`
	RedirectURI string `yaml:"redirect_uri"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), applies env overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	c := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c.applyEnv()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.App.Env = getenv("APP_ENV", c.App.Env)

	c.Server.Addr = getenv("SERVER_ADDR", c.Server.Addr)
	if v := os.Getenv("SERVER_CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitCSV(v)
	}

	c.Issuer = getenv("ISSUER", c.Issuer)

	c.KMS.BaseURL = getenv("KMS_BASE_URL", c.KMS.BaseURL)
	c.KMS.SigningKeyID = getenv("KMS_SIGNING_KEY_ID", c.KMS.SigningKeyID)
	c.KMS.EncryptionKeyID = getenv("KMS_ENCRYPTION_KEY_ID", c.KMS.EncryptionKeyID)
	c.KMS.Timeout = getenv("KMS_TIMEOUT", c.KMS.Timeout)

	c.Registry.Driver = getenv("REGISTRY_DRIVER", c.Registry.Driver)
	c.Registry.DSN = getenv("REGISTRY_DSN", c.Registry.DSN)

	c.Session.Driver = getenv("SESSION_DRIVER", c.Session.Driver)
	c.Session.TTL = getenv("SESSION_TTL", c.Session.TTL)
	c.Session.Redis.Addr = getenv("SESSION_REDIS_ADDR", c.Session.Redis.Addr)
	c.Session.Redis.Password = getenv("SESSION_REDIS_PASSWORD", c.Session.Redis.Password)
	c.Session.Redis.DB = getenvInt("SESSION_REDIS_DB", c.Session.Redis.DB)
	c.Session.Redis.Prefix = getenv("SESSION_REDIS_PREFIX", c.Session.Redis.Prefix)

	c.Audit.Stream = getenv("AUDIT_STREAM", c.Audit.Stream)

	c.Log.Env = getenv("LOG_ENV", c.Log.Env)
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.KMS.Timeout == "" {
		c.KMS.Timeout = "5s"
	}
	if c.Registry.Driver == "" {
		c.Registry.Driver = "static"
	}
	if c.Session.Driver == "" {
		c.Session.Driver = "memory"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "1h"
	}
	if c.Audit.Stream == "" {
		c.Audit.Stream = "audit-events"
	}
	if c.Log.Env == "" {
		c.Log.Env = c.App.Env
	}
}

// Validate checks that everything the pipeline depends on is present.
func (c *Config) Validate() error {
	var problems []string

	if c.Issuer == "" {
		problems = append(problems, "issuer is required")
	}
	if c.KMS.BaseURL == "" {
		problems = append(problems, "kms.base_url is required")
	}
	if c.KMS.SigningKeyID == "" {
		problems = append(problems, "kms.signing_key_id is required")
	}
	switch c.Registry.Driver {
	case "postgres":
		if c.Registry.DSN == "" {
			problems = append(problems, "registry.dsn is required for the postgres driver")
		}
	case "static":
	default:
		problems = append(problems, fmt.Sprintf("registry.driver %q is not supported", c.Registry.Driver))
	}
	switch c.Session.Driver {
	case "redis":
		if c.Session.Redis.Addr == "" {
			problems = append(problems, "session.redis.addr is required for the redis driver")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("session.driver %q is not supported", c.Session.Driver))
	}
	if _, err := time.ParseDuration(c.Session.TTL); err != nil {
		problems = append(problems, fmt.Sprintf("session.ttl %q is not a duration", c.Session.TTL))
	}
	if _, err := time.ParseDuration(c.Server.ReadTimeout); err != nil {
		problems = append(problems, fmt.Sprintf("server.read_timeout %q is not a duration", c.Server.ReadTimeout))
	}
	if _, err := time.ParseDuration(c.Server.WriteTimeout); err != nil {
		problems = append(problems, fmt.Sprintf("server.write_timeout %q is not a duration", c.Server.WriteTimeout))
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// SessionTTL returns the parsed session TTL. Validate guarantees it parses.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TTL)
	return d
}

// ReadTimeout returns the parsed server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ReadTimeout)
	return d
}

// WriteTimeout returns the parsed server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.WriteTimeout)
	return d
}

// KMSTimeout returns the parsed KMS client timeout.
func (c *Config) KMSTimeout() time.Duration {
	d, err := time.ParseDuration(c.KMS.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
