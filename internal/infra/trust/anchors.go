package trust

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"firmaflow/internal/usecase"
)

// Anchors holds the configured root and intermediate CA certificates.
// Reload swaps the whole set atomically so a config refresh never leaves
// a half-loaded pool visible.
type Anchors struct {
	mu            sync.RWMutex
	rootDir       string
	interDir      string
	roots         []*x509.Certificate
	intermediates []*x509.Certificate
	rootPool      *x509.CertPool
	interPool     *x509.CertPool
}

func New() *Anchors {
	return &Anchors{
		rootPool:  x509.NewCertPool(),
		interPool: x509.NewCertPool(),
	}
}

// LoadDirs reads PEM bundles from the root and intermediate directories.
// The intermediate dir may be empty.
func LoadDirs(rootDir, intermediateDir string) (*Anchors, error) {
	a := New()
	roots, err := readPEMDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("load roots: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no root certificates in %s", rootDir)
	}
	var inters []*x509.Certificate
	if intermediateDir != "" {
		inters, err = readPEMDir(intermediateDir)
		if err != nil {
			return nil, fmt.Errorf("load intermediates: %w", err)
		}
	}
	a.rootDir = rootDir
	a.interDir = intermediateDir
	a.Replace(roots, inters)
	return a, nil
}

// Reload re-reads the directories the set was loaded from. A read error
// leaves the current set untouched.
func (a *Anchors) Reload() error {
	a.mu.RLock()
	rootDir, interDir := a.rootDir, a.interDir
	a.mu.RUnlock()
	if rootDir == "" {
		return nil
	}
	roots, err := readPEMDir(rootDir)
	if err != nil {
		return fmt.Errorf("reload roots: %w", err)
	}
	if len(roots) == 0 {
		return fmt.Errorf("no root certificates in %s", rootDir)
	}
	var inters []*x509.Certificate
	if interDir != "" {
		if inters, err = readPEMDir(interDir); err != nil {
			return fmt.Errorf("reload intermediates: %w", err)
		}
	}
	a.Replace(roots, inters)
	return nil
}

// Replace installs a new anchor set.
func (a *Anchors) Replace(roots, intermediates []*x509.Certificate) {
	rootPool := x509.NewCertPool()
	for _, c := range roots {
		rootPool.AddCert(c)
	}
	interPool := x509.NewCertPool()
	for _, c := range intermediates {
		interPool.AddCert(c)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roots = roots
	a.intermediates = intermediates
	a.rootPool = rootPool
	a.interPool = interPool
}

func (a *Anchors) Roots() *x509.CertPool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rootPool
}

func (a *Anchors) Intermediates() *x509.CertPool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.interPool
}

// IssuerOf finds the anchor that issued the certificate, preferring
// intermediates over roots. Signature is verified, not just the name.
func (a *Anchors) IssuerOf(cert *x509.Certificate) *x509.Certificate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, candidate := range a.intermediates {
		if isIssuer(candidate, cert) {
			return candidate
		}
	}
	for _, candidate := range a.roots {
		if isIssuer(candidate, cert) {
			return candidate
		}
	}
	return nil
}

func isIssuer(issuer, cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
		return false
	}
	return cert.CheckSignatureFrom(issuer) == nil
}

func readPEMDir(dir string) ([]*x509.Certificate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var certs []*x509.Certificate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".pem" && ext != ".crt" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		for {
			var block *pem.Block
			block, raw = pem.Decode(raw)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
			}
			certs = append(certs, cert)
		}
	}
	return certs, nil
}

var _ usecase.TrustAnchorSource = (*Anchors)(nil)
