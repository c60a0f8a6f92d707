package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `
issuer: https://auth.example.com
clients:
  - id: C1
    client_id: app-client
    secret: s3cret
    redirect_uris:
      - https://app/cb
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grantd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Token.TTL != time.Hour {
		t.Errorf("token ttl = %v, want 1h", cfg.Token.TTL)
	}
	if cfg.Codes.TTL != 5*time.Minute {
		t.Errorf("code ttl = %v, want 5m", cfg.Codes.TTL)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Errorf("storage backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Audit.Backend != AuditMemory {
		t.Errorf("audit backend = %q, want memory", cfg.Audit.Backend)
	}
	if len(cfg.Clients) != 1 || cfg.Clients[0].ClientID != "app-client" {
		t.Errorf("clients not parsed: %+v", cfg.Clients)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
issuer: https://auth.example.com
server:
  addr: ":9000"
  shutdown_timeout: 30s
token:
  ttl: 15m
  signing:
    algorithm: ES256
codes:
  ttl: 90s
  sweep_interval: 1m
storage:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: myapp
audit:
  backend: file
  path: /var/log/grantd-audit.jsonl
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Token.TTL != 15*time.Minute {
		t.Errorf("token ttl = %v, want 15m", cfg.Token.TTL)
	}
	if cfg.Codes.TTL != 90*time.Second {
		t.Errorf("code ttl = %v, want 90s", cfg.Codes.TTL)
	}
	if cfg.Storage.Redis.Prefix != "myapp" {
		t.Errorf("redis prefix = %q, want myapp", cfg.Storage.Redis.Prefix)
	}
	if cfg.Audit.Path != "/var/log/grantd-audit.jsonl" {
		t.Errorf("audit path = %q", cfg.Audit.Path)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing issuer",
			content: `clients: []`,
			wantErr: "issuer is required",
		},
		{
			name:    "relative issuer",
			content: "issuer: auth.example.com",
			wantErr: "absolute http(s) URL",
		},
		{
			name: "unknown signing algorithm",
			content: minimalConfig + `
token:
  signing:
    algorithm: HS256
`,
			wantErr: "unknown signing algorithm",
		},
		{
			name: "confidential client without secret",
			content: `
issuer: https://auth.example.com
clients:
  - id: C1
    client_id: app-client
`,
			wantErr: "no secret",
		},
		{
			name: "duplicate client_id",
			content: `
issuer: https://auth.example.com
clients:
  - id: C1
    client_id: app-client
    public: true
  - id: C2
    client_id: app-client
    public: true
`,
			wantErr: "not unique",
		},
		{
			name: "relative redirect uri",
			content: `
issuer: https://auth.example.com
clients:
  - id: C1
    client_id: app-client
    public: true
    redirect_uris:
      - /cb
`,
			wantErr: "must be absolute",
		},
		{
			name: "postgres without dsn",
			content: minimalConfig + `
storage:
  backend: postgres
`,
			wantErr: "requires postgres.dsn",
		},
		{
			name: "unknown storage backend",
			content: minimalConfig + `
storage:
  backend: etcd
`,
			wantErr: "unknown storage backend",
		},
		{
			name: "file audit without path",
			content: minimalConfig + `
audit:
  backend: file
`,
			wantErr: "requires a path",
		},
		{
			name: "short admin secret",
			content: minimalConfig + `
admin:
  enabled: true
  secret: tooshort
`,
			wantErr: "at least 32 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("load of missing file succeeded")
	}
}
