package soft

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"firmaflow/internal/domain"
)

func TestSignAndVerifyDigest(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m := NewManager()
	m.Put("cert-1", key)

	digest := sha256.Sum256([]byte("payload"))
	sig, err := m.Sign(context.Background(), "cert-1", digest[:], domain.HashSHA256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !ecdsa.VerifyASN1(&key.PublicKey, digest[:], sig) {
		t.Fatal("signature does not verify")
	}
}

func TestSignMissingKey(t *testing.T) {
	m := NewManager()
	digest := sha256.Sum256([]byte("payload"))
	_, err := m.Sign(context.Background(), "nope", digest[:], domain.HashSHA256)
	if !errors.Is(err, domain.ErrKeyUnavailable) {
		t.Fatalf("got %v, want ErrKeyUnavailable", err)
	}
}

func TestLoadDir(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "cert-abc.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Non-key files are skipped.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("keys"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if _, err := m.Signer("cert-abc"); err != nil {
		t.Fatalf("signer: %v", err)
	}
	if _, err := m.Signer("README"); err == nil {
		t.Fatal("readme loaded as a key")
	}
}
