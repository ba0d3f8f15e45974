package container

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	cryptorand "crypto/rand"

	"firmaflow/internal/domain"
	"firmaflow/internal/infra/keystore/soft"
	"firmaflow/internal/usecase"
)

func testSigner(t *testing.T) (*domain.Certificate, *soft.Manager) {
	t.Helper()
	key, err := rsa.GenerateKey(cryptorand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(99),
		Subject:      pkix.Name{CommonName: "signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(cryptorand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert := &domain.Certificate{ID: "cert-1", OwnerID: "alice", Raw: der}
	keys := soft.NewManager()
	keys.Put("cert-1", key)
	return cert, keys
}

func TestBuildAndVerifyAllContainerTypes(t *testing.T) {
	cert, keys := testSigner(t)
	b := NewBuilder(keys)
	digest := sha256.Sum256([]byte("content"))
	ctx := context.Background()

	for _, typ := range []domain.ContainerType{domain.ContainerCAdES, domain.ContainerPAdES, domain.ContainerXAdES} {
		artifact, err := b.Build(ctx, usecase.ContainerBuildInput{
			Type:          typ,
			Hash:          domain.HashSHA256,
			ContentDigest: digest[:],
			SigningTime:   time.Now(),
			Certificate:   cert,
			CertRef:       "cert-1",
		})
		if err != nil {
			t.Fatalf("%s build: %v", typ, err)
		}
		err = b.Verify(ctx, artifact.Bytes, usecase.ContainerVerifyInput{
			Type:          typ,
			Hash:          domain.HashSHA256,
			ContentDigest: digest[:],
			Certificate:   cert,
		})
		if err != nil {
			t.Fatalf("%s verify: %v", typ, err)
		}
	}
}

func TestVerifyRejectsDifferentDigest(t *testing.T) {
	cert, keys := testSigner(t)
	b := NewBuilder(keys)
	digest := sha256.Sum256([]byte("content"))
	other := sha256.Sum256([]byte("tampered"))
	ctx := context.Background()

	for _, typ := range []domain.ContainerType{domain.ContainerCAdES, domain.ContainerPAdES, domain.ContainerXAdES} {
		artifact, err := b.Build(ctx, usecase.ContainerBuildInput{
			Type:          typ,
			Hash:          domain.HashSHA256,
			ContentDigest: digest[:],
			SigningTime:   time.Now(),
			Certificate:   cert,
			CertRef:       "cert-1",
		})
		if err != nil {
			t.Fatalf("%s build: %v", typ, err)
		}
		err = b.Verify(ctx, artifact.Bytes, usecase.ContainerVerifyInput{
			Type:          typ,
			Hash:          domain.HashSHA256,
			ContentDigest: other[:],
			Certificate:   cert,
		})
		if !errors.Is(err, domain.ErrSignatureCorrupted) {
			t.Fatalf("%s: got %v, want ErrSignatureCorrupted", typ, err)
		}
	}
}

func TestVerifyRejectsForeignCertificate(t *testing.T) {
	cert, keys := testSigner(t)
	otherCert, _ := testSigner(t)
	b := NewBuilder(keys)
	digest := sha256.Sum256([]byte("content"))
	ctx := context.Background()

	artifact, err := b.Build(ctx, usecase.ContainerBuildInput{
		Type:          domain.ContainerCAdES,
		Hash:          domain.HashSHA256,
		ContentDigest: digest[:],
		SigningTime:   time.Now(),
		Certificate:   cert,
		CertRef:       "cert-1",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	err = b.Verify(ctx, artifact.Bytes, usecase.ContainerVerifyInput{
		Type:          domain.ContainerCAdES,
		Hash:          domain.HashSHA256,
		ContentDigest: digest[:],
		Certificate:   otherCert,
	})
	if !errors.Is(err, domain.ErrSignatureCorrupted) {
		t.Fatalf("got %v, want ErrSignatureCorrupted", err)
	}
}

func TestBuildWithoutKeyFails(t *testing.T) {
	cert, _ := testSigner(t)
	b := NewBuilder(soft.NewManager())
	digest := sha256.Sum256([]byte("content"))

	_, err := b.Build(context.Background(), usecase.ContainerBuildInput{
		Type:          domain.ContainerCAdES,
		Hash:          domain.HashSHA256,
		ContentDigest: digest[:],
		Certificate:   cert,
		CertRef:       "cert-1",
	})
	if !errors.Is(err, domain.ErrKeyUnavailable) {
		t.Fatalf("got %v, want ErrKeyUnavailable", err)
	}
}

func TestVerifyGarbageArtifact(t *testing.T) {
	cert, keys := testSigner(t)
	b := NewBuilder(keys)
	digest := sha256.Sum256([]byte("content"))

	err := b.Verify(context.Background(), []byte("not an envelope"), usecase.ContainerVerifyInput{
		Type:          domain.ContainerCAdES,
		Hash:          domain.HashSHA256,
		ContentDigest: digest[:],
		Certificate:   cert,
	})
	if !errors.Is(err, domain.ErrSignatureCorrupted) {
		t.Fatalf("got %v, want ErrSignatureCorrupted", err)
	}
}
