package revocation

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"

	"golang.org/x/crypto/ocsp"
)

// Oracle answers revocation queries against the OCSP responders and CRL
// distribution points named inside the certificate itself.
type Oracle struct {
	Client  *http.Client
	Anchors usecase.TrustAnchorSource
}

func NewOracle(anchors usecase.TrustAnchorSource, timeout time.Duration) *Oracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Oracle{
		Client:  &http.Client{Timeout: timeout},
		Anchors: anchors,
	}
}

func (o *Oracle) OCSPCheck(ctx context.Context, cert *domain.Certificate) (domain.RevocationStatus, error) {
	parsed, err := x509.ParseCertificate(cert.Raw)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("parse certificate: %w", err)
	}
	if len(parsed.OCSPServer) == 0 {
		return domain.RevocationUnknown, fmt.Errorf("no ocsp responder in certificate")
	}
	issuer := o.issuerOf(parsed)
	if issuer == nil {
		return domain.RevocationUnknown, fmt.Errorf("issuer not in trust anchors")
	}

	reqBytes, err := ocsp.CreateRequest(parsed, issuer, nil)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("create ocsp request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, parsed.OCSPServer[0], bytes.NewReader(reqBytes))
	if err != nil {
		return domain.RevocationUnknown, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := o.Client.Do(httpReq)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("ocsp request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.RevocationUnknown, fmt.Errorf("ocsp responder status %s", resp.Status)
	}
	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("read ocsp response: %w", err)
	}
	parsedResp, err := ocsp.ParseResponseForCert(respBytes, parsed, issuer)
	if err != nil {
		return domain.RevocationUnknown, fmt.Errorf("parse ocsp response: %w", err)
	}

	switch parsedResp.Status {
	case ocsp.Good:
		return domain.RevocationGood, nil
	case ocsp.Revoked:
		if parsedResp.RevocationReason == ocsp.CertificateHold {
			return domain.RevocationOnHold, nil
		}
		return domain.RevocationRevoked, nil
	default:
		return domain.RevocationUnknown, nil
	}
}

func (o *Oracle) issuerOf(cert *x509.Certificate) *x509.Certificate {
	if o.Anchors == nil {
		return nil
	}
	return o.Anchors.IssuerOf(cert)
}

var _ usecase.RevocationOracle = (*Oracle)(nil)
