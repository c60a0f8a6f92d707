package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/validation"
)

// Defaults applied to zero-valued fields after parsing.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultTokenTTL        = time.Hour
	DefaultCodeTTL         = 5 * time.Minute
	DefaultSweepInterval   = 5 * time.Minute
	DefaultAuditMemorySize = 1000

	// minAdminSecretLen guards against trivially brute-forceable admin tokens.
	minAdminSecretLen = 32
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Audit backends.
const (
	AuditFile   = "file"
	AuditMemory = "memory"
	AuditNone   = "none"
)

var allowedAlgorithms = map[string]struct{}{
	"RS256": {}, "RS384": {}, "RS512": {},
	"ES256": {}, "ES384": {}, "ES512": {},
}

type Config struct {
	Server ServerConfig `yaml:"server"`

	// Issuer is the "iss" claim of every minted token. Must parse as an
	// absolute http(s) URL; anything else fails at startup, never at
	// request time.
	Issuer string `yaml:"issuer"`

	Token   TokenConfig             `yaml:"token"`
	Codes   CodeConfig              `yaml:"codes"`
	Clients []core.RegisteredClient `yaml:"clients"`
	Storage StorageConfig           `yaml:"storage"`
	Audit   AuditConfig             `yaml:"audit"`
	Admin   AdminConfig             `yaml:"admin"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type TokenConfig struct {
	// TTL is the lifetime of minted access tokens.
	TTL     time.Duration `yaml:"ttl"`
	Signing SigningConfig `yaml:"signing"`
}

type SigningConfig struct {
	// Algorithm is the JWS algorithm. Empty derives it from the key type.
	Algorithm string `yaml:"algorithm"`

	// KeyFile is a PEM private key (RSA or EC). Empty generates an
	// ephemeral RSA key at startup.
	KeyFile string `yaml:"key_file"`

	// KeyID overrides the derived key id.
	KeyID string `yaml:"key_id"`
}

type CodeConfig struct {
	// TTL is how long an issued code stays redeemable.
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is how often expired grants are purged.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type StorageConfig struct {
	Backend  string         `yaml:"backend"` // memory, postgres, redis
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Backend    string `yaml:"backend"` // file, memory, none
	Path       string `yaml:"path"`
	MemorySize int    `yaml:"memory_size"`
}

type AdminConfig struct {
	Enabled bool `yaml:"enabled"`

	// Secret signs admin bearer tokens. Min 32 bytes.
	Secret string `yaml:"secret"`
}

// Load reads, parses and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Token.TTL <= 0 {
		c.Token.TTL = DefaultTokenTTL
	}
	if c.Codes.TTL <= 0 {
		c.Codes.TTL = DefaultCodeTTL
	}
	if c.Codes.SweepInterval <= 0 {
		c.Codes.SweepInterval = DefaultSweepInterval
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageMemory
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = AuditMemory
	}
	if c.Audit.MemorySize <= 0 {
		c.Audit.MemorySize = DefaultAuditMemorySize
	}
}

func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	issuerURL, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("parsing issuer %q: %w", c.Issuer, err)
	}
	if (issuerURL.Scheme != "http" && issuerURL.Scheme != "https") || issuerURL.Host == "" {
		return fmt.Errorf("issuer %q must be an absolute http(s) URL", c.Issuer)
	}

	if alg := c.Token.Signing.Algorithm; alg != "" {
		if _, ok := allowedAlgorithms[alg]; !ok {
			return fmt.Errorf("unknown signing algorithm %q", alg)
		}
	}

	validClients, err := validation.ValidateClients(c.Clients)
	if err != nil {
		return fmt.Errorf("validating clients: %w", err)
	}
	c.Clients = validClients

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage backend %q requires postgres.dsn", StoragePostgres)
		}
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage backend %q requires redis.addr", StorageRedis)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Audit.Backend {
	case AuditMemory, AuditNone:
	case AuditFile:
		if c.Audit.Path == "" {
			return fmt.Errorf("audit backend %q requires a path", AuditFile)
		}
	default:
		return fmt.Errorf("unknown audit backend %q", c.Audit.Backend)
	}

	if c.Admin.Enabled && len(c.Admin.Secret) < minAdminSecretLen {
		return fmt.Errorf("admin.secret must be at least %d bytes", minAdminSecretLen)
	}

	return nil
}
