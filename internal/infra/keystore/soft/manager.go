package soft

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"
)

// Manager is a file or memory backed keystore for deployments without an
// HSM. Keys are held per certificate reference and never leave the
// process; callers hand in a digest and get back a raw signature.
type Manager struct {
	mu   sync.RWMutex
	keys map[string]crypto.Signer
}

func NewManager() *Manager {
	return &Manager{keys: make(map[string]crypto.Signer)}
}

// LoadDir reads every *.pem / *.key file under dir. The file name minus
// the extension is the certificate reference the key is bound to.
func LoadDir(dir string) (*Manager, error) {
	m := NewManager()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read key dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".pem" && ext != ".key" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		signer, err := parsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		m.Put(strings.TrimSuffix(name, ext), signer)
	}
	return m, nil
}

func (m *Manager) Put(certRef string, key crypto.Signer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[certRef] = key
}

// Sign signs a precomputed digest with the key bound to certRef.
func (m *Manager) Sign(ctx context.Context, certRef string, digest []byte, hash domain.HashAlgorithm) ([]byte, error) {
	signer, err := m.Signer(certRef)
	if err != nil {
		return nil, err
	}
	return signer.Sign(rand.Reader, digest, hash.CryptoHash())
}

// Signer exposes the underlying crypto.Signer for container builders
// that need to drive signing themselves.
func (m *Manager) Signer(certRef string) (crypto.Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	signer, ok := m.keys[certRef]
	if !ok {
		return nil, fmt.Errorf("%w: no key for %s", domain.ErrKeyUnavailable, certRef)
	}
	return signer, nil
}

func parsePrivateKey(raw []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no pem block")
	}
	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", key)
		}
		return signer, nil
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported pem type %q", block.Type)
	}
}

var _ usecase.Keystore = (*Manager)(nil)
