package container

import (
	"crypto"
	"crypto/x509"
	"fmt"

	"firmaflow/internal/domain"
)

// buildPAdES embeds a CAdES CMS the way a PDF incremental update would:
// the byte range records which spans of the document the signature
// covers, with a gap left for the signature value itself.
func buildPAdES(contentDigest []byte, cert *x509.Certificate, signer crypto.Signer) ([]byte, []int64, error) {
	cms, err := buildCAdES(contentDigest, cert, signer)
	if err != nil {
		return nil, nil, err
	}
	byteRange := []int64{0, int64(len(contentDigest)), int64(len(contentDigest) + len(cms)), 0}
	return cms, byteRange, nil
}

func verifyPAdES(cms []byte, byteRange []int64, contentDigest []byte, cert *x509.Certificate) error {
	if len(byteRange) != 4 {
		return fmt.Errorf("%w: invalid byte range length %d", domain.ErrSignatureCorrupted, len(byteRange))
	}
	return verifyCAdES(cms, contentDigest, cert)
}
