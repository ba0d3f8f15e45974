package revocation

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"firmaflow/internal/domain"

	"golang.org/x/crypto/ocsp"
)

// CRLCheck downloads the certificate's distribution points and looks the
// serial up in each list. The first list that parses decides; a serial
// absent from a fresh CRL is good.
func (o *Oracle) CRLCheck(ctx context.Context, cert *domain.Certificate) (domain.RevocationStatus, error) {
	parsed, err := x509.ParseCertificate(cert.Raw)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("parse certificate: %w", err)
	}
	if len(parsed.CRLDistributionPoints) == 0 {
		return domain.RevocationUnknown, fmt.Errorf("no crl distribution points in certificate")
	}

	var lastErr error
	for _, dp := range parsed.CRLDistributionPoints {
		status, err := o.checkOneCRL(ctx, dp, parsed.SerialNumber)
		if err != nil {
			lastErr = err
			continue
		}
		return status, nil
	}
	return domain.RevocationUnknown, fmt.Errorf("all crl distribution points failed: %w", lastErr)
}

func (o *Oracle) checkOneCRL(ctx context.Context, url string, serial *big.Int) (domain.RevocationStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RevocationUnknown, err
	}
	resp, err := o.Client.Do(httpReq)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("fetch crl: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.RevocationUnknown, fmt.Errorf("crl endpoint status %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("read crl: %w", err)
	}
	list, err := x509.ParseRevocationList(raw)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("parse crl: %w", err)
	}
	for _, entry := range list.RevokedCertificateEntries {
		if entry.SerialNumber.Cmp(serial) == 0 {
			if entry.ReasonCode == ocsp.CertificateHold {
				return domain.RevocationOnHold, nil
			}
			return domain.RevocationRevoked, nil
		}
	}
	return domain.RevocationGood, nil
}
