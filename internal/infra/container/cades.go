package container

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"

	"firmaflow/internal/domain"

	"github.com/digitorus/pkcs7"
)

// buildCAdES produces a detached CMS SignedData over the content digest.
// The document bytes stay in the artifact store; the CMS carries only
// the digest as its signed content.
func buildCAdES(contentDigest []byte, cert *x509.Certificate, signer crypto.Signer) ([]byte, error) {
	signed, err := pkcs7.NewSignedData(contentDigest)
	if err != nil {
		return nil, fmt.Errorf("init signed data: %w", err)
	}
	if err := signed.AddSigner(cert, signer, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("add signer: %w", err)
	}
	signed.Detach()
	cms, err := signed.Finish()
	if err != nil {
		return nil, fmt.Errorf("finish signed data: %w", err)
	}
	return cms, nil
}

func verifyCAdES(cms, contentDigest []byte, cert *x509.Certificate) error {
	p7, err := pkcs7.Parse(cms)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignatureCorrupted, err)
	}
	p7.Content = contentDigest
	if err := p7.Verify(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignatureCorrupted, err)
	}
	signerCert := p7.GetOnlySigner()
	if signerCert == nil {
		return fmt.Errorf("%w: no signer certificate in cms", domain.ErrSignatureCorrupted)
	}
	if !bytes.Equal(signerCert.Raw, cert.Raw) {
		return fmt.Errorf("%w: cms signed by a different certificate", domain.ErrSignatureCorrupted)
	}
	return nil
}
