package signing

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/grantd/grantd/internal/core"
)

func ecKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating EC key: %v", err)
	}
	return key
}

func testClaims(now time.Time) core.ClaimSet {
	return core.ClaimSet{
		Issuer:    "https://auth.example.com",
		Subject:   "alice",
		Audience:  []string{"app-client"},
		ID:        "jti-1",
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(time.Hour),
		Scopes:    []string{"read", "write"},
	}
}

func TestSignerSignAndVerify(t *testing.T) {
	signer, err := NewSigner(ecKey(t), "ES256", "test-key")
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}

	// verification applies the standard time-based validators, so the
	// claims must be current
	now := time.Now().Truncate(time.Second)
	signed, err := signer.Sign(context.Background(), testClaims(now))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if signed.Algorithm != "ES256" {
		t.Errorf("algorithm = %q, want ES256", signed.Algorithm)
	}
	if signed.KeyID != "test-key" {
		t.Errorf("key id = %q, want test-key", signed.KeyID)
	}
	// the artifact echoes the claims exactly as signed
	if diff := cmp.Diff(testClaims(now), signed.Claims); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}

	token, err := signer.VerifyToken(signed.Value)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if kid := token.Header["kid"]; kid != "test-key" {
		t.Errorf("header kid = %v, want test-key", kid)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("token claims are not a map")
	}
	if claims["iss"] != "https://auth.example.com" {
		t.Errorf("iss = %v, want issuer", claims["iss"])
	}
	if claims["sub"] != "alice" {
		t.Errorf("sub = %v, want alice", claims["sub"])
	}
	if exp, _ := claims["exp"].(float64); int64(exp) != now.Add(time.Hour).Unix() {
		t.Errorf("exp = %v, want %d", claims["exp"], now.Add(time.Hour).Unix())
	}
}

func TestSignerRejectsTamperedToken(t *testing.T) {
	signer, err := NewSigner(ecKey(t), "", "")
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}
	other, err := NewSigner(ecKey(t), "", "")
	if err != nil {
		t.Fatalf("building second signer: %v", err)
	}

	signed, err := signer.Sign(context.Background(), testClaims(time.Now()))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := other.VerifyToken(signed.Value); err == nil {
		t.Error("token verified against a foreign key")
	}
	if _, err := signer.VerifyToken(signed.Value + "x"); err == nil {
		t.Error("tampered token verified")
	}
}

func TestNewSignerDerivation(t *testing.T) {
	key := ecKey(t)

	signer, err := NewSigner(key, "", "")
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}
	if signer.Algorithm() != "ES256" {
		t.Errorf("derived algorithm = %q, want ES256", signer.Algorithm())
	}
	if signer.KeyID() == "" {
		t.Error("derived key id is empty")
	}

	// same key, same thumbprint
	again, err := NewSigner(key, "", "")
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}
	if signer.KeyID() != again.KeyID() {
		t.Errorf("thumbprint not stable: %q vs %q", signer.KeyID(), again.KeyID())
	}

	if _, err := NewSigner(key, "RS256", ""); err == nil {
		t.Error("RS256 accepted for an EC key")
	}
}

func TestDeriveAlgorithm(t *testing.T) {
	tests := []struct {
		name  string
		curve elliptic.Curve
		want  string
	}{
		{"P-256", elliptic.P256(), "ES256"},
		{"P-384", elliptic.P384(), "ES384"},
		{"P-521", elliptic.P521(), "ES512"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ecdsa.GenerateKey(tt.curve, rand.Reader)
			if err != nil {
				t.Fatalf("generating key: %v", err)
			}
			got, err := DeriveAlgorithm(key)
			if err != nil {
				t.Fatalf("derive failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("algorithm = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadSigningKey(t *testing.T) {
	dir := t.TempDir()

	t.Run("ec pkcs8", func(t *testing.T) {
		key := ecKey(t)
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("marshaling key: %v", err)
		}
		path := filepath.Join(dir, "ec.pem")
		writePEM(t, path, "PRIVATE KEY", der)

		loaded, err := LoadSigningKey(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if _, ok := loaded.(*ecdsa.PrivateKey); !ok {
			t.Errorf("loaded key type = %T, want *ecdsa.PrivateKey", loaded)
		}
	})

	t.Run("rsa pkcs1", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generating RSA key: %v", err)
		}
		path := filepath.Join(dir, "rsa.pem")
		writePEM(t, path, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))

		loaded, err := LoadSigningKey(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if _, ok := loaded.(*rsa.PrivateKey); !ok {
			t.Errorf("loaded key type = %T, want *rsa.PrivateKey", loaded)
		}
	})

	t.Run("garbage file", func(t *testing.T) {
		path := filepath.Join(dir, "junk.pem")
		if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		if _, err := LoadSigningKey(path); err == nil {
			t.Error("garbage file loaded without error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadSigningKey(filepath.Join(dir, "nope.pem")); err == nil {
			t.Error("missing file loaded without error")
		}
	})
}

func writePEM(t *testing.T, path, blockType string, der []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		t.Fatalf("encoding PEM: %v", err)
	}
}

func TestPublicJWKS(t *testing.T) {
	signer, err := NewSigner(ecKey(t), "ES256", "test-key")
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}

	jwks, err := signer.PublicJWKS()
	if err != nil {
		t.Fatalf("building JWKS: %v", err)
	}
	if len(jwks.Keys) != 1 {
		t.Fatalf("JWKS has %d keys, want 1", len(jwks.Keys))
	}

	jwk := jwks.Keys[0]
	if jwk.KeyID != "test-key" {
		t.Errorf("kid = %q, want test-key", jwk.KeyID)
	}
	if jwk.Use != "sig" {
		t.Errorf("use = %q, want sig", jwk.Use)
	}
	if !jwk.IsPublic() {
		t.Error("JWKS leaked private key material")
	}
}
