package container

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"
)

type xadesSignature struct {
	XMLName         xml.Name  `xml:"XAdESSignature"`
	DigestMethod    string    `xml:"SignedInfo>DigestMethod"`
	DigestValue     string    `xml:"SignedInfo>DigestValue"`
	SigningTime     time.Time `xml:"SignedProperties>SigningTime"`
	PolicyOID       string    `xml:"SignedProperties>SignaturePolicyIdentifier,omitempty"`
	X509Certificate string    `xml:"KeyInfo>X509Data>X509Certificate"`
	SignatureValue  string    `xml:"SignatureValue"`
}

// buildXAdES emits an XML signature element over the content digest. The
// signature value covers the digest bytes directly.
func buildXAdES(in usecase.ContainerBuildInput, cert *x509.Certificate, signer crypto.Signer) ([]byte, error) {
	sigValue, err := signer.Sign(rand.Reader, in.ContentDigest, in.Hash.CryptoHash())
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	doc := xadesSignature{
		DigestMethod:    string(in.Hash),
		DigestValue:     base64.StdEncoding.EncodeToString(in.ContentDigest),
		SigningTime:     in.SigningTime,
		PolicyOID:       in.PolicyOID,
		X509Certificate: base64.StdEncoding.EncodeToString(cert.Raw),
		SignatureValue:  base64.StdEncoding.EncodeToString(sigValue),
	}
	return xml.MarshalIndent(doc, "", "  ")
}

func verifyXAdES(payload []byte, in usecase.ContainerVerifyInput, cert *x509.Certificate) error {
	var doc xadesSignature
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignatureCorrupted, err)
	}
	digest, err := base64.StdEncoding.DecodeString(doc.DigestValue)
	if err != nil {
		return fmt.Errorf("%w: bad digest encoding", domain.ErrSignatureCorrupted)
	}
	if string(in.Hash) != doc.DigestMethod {
		return fmt.Errorf("%w: digest method mismatch", domain.ErrSignatureCorrupted)
	}
	if !bytes.Equal(digest, in.ContentDigest) {
		return fmt.Errorf("%w: digest mismatch", domain.ErrSignatureCorrupted)
	}
	sigValue, err := base64.StdEncoding.DecodeString(doc.SignatureValue)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", domain.ErrSignatureCorrupted)
	}

	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, in.ContentDigest, sigValue) {
			return fmt.Errorf("%w: ecdsa verification failed", domain.ErrSignatureCorrupted)
		}
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, in.Hash.CryptoHash(), in.ContentDigest, sigValue); err != nil {
			return fmt.Errorf("%w: rsa verification failed", domain.ErrSignatureCorrupted)
		}
	default:
		return fmt.Errorf("%w: unsupported public key %T", domain.ErrSignatureCorrupted, pub)
	}
	return nil
}
