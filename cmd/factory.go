package cmd

import (
	"context"
	"crypto"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/grantd/grantd/internal/audit"
	"github.com/grantd/grantd/internal/cliconfig"
	"github.com/grantd/grantd/internal/clients"
	"github.com/grantd/grantd/internal/config"
	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/grant"
	"github.com/grantd/grantd/internal/signing"
	"github.com/grantd/grantd/internal/store"
	"github.com/grantd/grantd/pkg/client"
)

// Factory wires command inputs into clients and local service components.
type Factory struct {
	// RemoteAddr is the address of the grantd server to connect to.
	RemoteAddr string

	// ConfigPath is the server configuration file for local operation.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) GetRemoteAddr() (string, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(ServerAddrKey) // prio 2: config/env
	}
	if server == "" {
		return "", fmt.Errorf("server address not configured (use --server or set GRANTD_ADDR)")
	}
	return server, nil
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server, err := f.GetRemoteAddr()
	if err != nil {
		return nil, err
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(server); err == nil { // token prio 1: saved credential
			token = cred.Token
		}
	}

	if envToken := os.Getenv("GRANTD_TOKEN"); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	if f.ConfigPath == "" {
		return nil, fmt.Errorf("config file not specified (use -f)")
	}
	return config.Load(f.ConfigPath)
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "f", "", "The grantd config file to use")
}

// Components are the wired service parts shared by serve and the local CLI
// modes.
type Components struct {
	Store         core.AuthorizationStore
	Signer        *signing.Signer
	Registry      *clients.Registry
	Authenticator *clients.Authenticator
	Auditor       core.Auditor
	Grants        *grant.Service

	closers []func() error
}

// Close releases backend connections and flushes the auditor.
func (c *Components) Close() {
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			log.Warn().Err(err).Msg("closing component failed")
		}
	}
}

// BuildComponents assembles the authorization store, signer, client registry
// and exchange service from the validated configuration.
func BuildComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{}

	authStore, err := buildStore(ctx, cfg, c)
	if err != nil {
		return nil, err
	}
	c.Store = authStore

	signer, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}
	c.Signer = signer

	registry, err := clients.NewRegistry(cfg.Clients)
	if err != nil {
		return nil, fmt.Errorf("building client registry: %w", err)
	}
	c.Registry = registry
	c.Authenticator = clients.NewAuthenticator(registry)

	auditor, err := buildAuditor(cfg)
	if err != nil {
		return nil, err
	}
	c.Auditor = auditor
	c.closers = append(c.closers, auditor.Close)

	c.Grants = grant.NewService(authStore, signer, registry, auditor, grant.Options{
		Issuer:         cfg.Issuer,
		AccessTokenTTL: cfg.Token.TTL,
	})

	return c, nil
}

func buildStore(ctx context.Context, cfg *config.Config, c *Components) (core.AuthorizationStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return store.NewInMemoryStore(cfg.Codes.TTL), nil

	case config.StoragePostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Storage.Postgres.DSN, cfg.Codes.TTL)
		if err != nil {
			return nil, fmt.Errorf("building postgres store: %w", err)
		}
		if err := pg.InitSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("initializing postgres schema: %w", err)
		}
		c.closers = append(c.closers, func() error { pg.Close(); return nil })
		return pg, nil

	case config.StorageRedis:
		rs := store.NewRedisStore(store.RedisOptions{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
			CodeTTL:  cfg.Codes.TTL,
		})
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("building redis store: %w", err)
		}
		c.closers = append(c.closers, rs.Close)
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildSigner(cfg *config.Config) (*signing.Signer, error) {
	var (
		key crypto.Signer
		err error
	)
	if cfg.Token.Signing.KeyFile != "" {
		key, err = signing.LoadSigningKey(cfg.Token.Signing.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading signing key: %w", err)
		}
	} else {
		log.Warn().Msg("no signing key configured, generating an ephemeral RSA key; minted tokens will not survive a restart")
		key, err = signing.GenerateEphemeralKey()
		if err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
	}

	signer, err := signing.NewSigner(key, cfg.Token.Signing.Algorithm, cfg.Token.Signing.KeyID)
	if err != nil {
		return nil, fmt.Errorf("building signer: %w", err)
	}
	return signer, nil
}

func buildAuditor(cfg *config.Config) (core.Auditor, error) {
	switch cfg.Audit.Backend {
	case config.AuditFile:
		auditor, err := audit.NewFileAuditor(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("building file auditor: %w", err)
		}
		return auditor, nil
	case config.AuditMemory:
		return audit.NewInMemoryAuditor(cfg.Audit.MemorySize), nil
	case config.AuditNone:
		return audit.NewNoopAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}
