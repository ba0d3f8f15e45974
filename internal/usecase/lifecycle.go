package usecase

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"time"

	"firmaflow/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"software.sslmate.com/src/go-pkcs12"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultCheckTimeout = 10 * time.Second
	defaultWorkers      = 8
)

// CertificateLifecycle owns every mutation of certificate state and the
// validity evaluation used by the signature engine.
type CertificateLifecycle struct {
	Certs      CertificateRepository
	Signatures SignatureRepository
	Oracle     RevocationOracle
	Anchors    TrustAnchorSource
	Cache      ValidationCache
	Notifier   NotificationGateway
	Audit      AuditLog
	Clock      Clock
	Log        *zap.Logger

	CacheTTL     time.Duration
	CheckTimeout time.Duration
	Workers      int
}

func (l *CertificateLifecycle) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

func (l *CertificateLifecycle) logger() *zap.Logger {
	if l.Log != nil {
		return l.Log
	}
	return zap.NewNop()
}

type IssueSpec struct {
	OwnerID string
	Raw     []byte
	Class   domain.CertificateClass
	Usages  []domain.KeyUsage
}

// Issue registers a certificate produced by an external CA for an owner.
func (l *CertificateLifecycle) Issue(ctx context.Context, spec IssueSpec) (*domain.Certificate, error) {
	if spec.OwnerID == "" || len(spec.Raw) == 0 {
		return nil, domain.ErrInvalidInput
	}
	parsed, der, err := parseCertificateMaterial(spec.Raw, "")
	if err != nil {
		return nil, err
	}
	cert := l.buildRecord(spec.OwnerID, parsed, der, spec.Class, spec.Usages)
	if existing, err := l.Certs.GetByFingerprint(ctx, cert.Fingerprint); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: fingerprint held by %s", domain.ErrAlreadyRegistered, existing.ID)
	}
	if err := l.Certs.Create(ctx, cert); err != nil {
		return nil, fmt.Errorf("store certificate: %w", err)
	}
	l.appendAudit(ctx, spec.OwnerID, "certificate.issue", cert.ID, nil)
	return &cert, nil
}

// Import registers externally supplied certificate material. PEM, raw
// DER and password-protected PKCS#12 are accepted. Unparseable material
// is retained in state Unknown and reported as MalformedCertificate so
// the record exists for audit.
func (l *CertificateLifecycle) Import(ctx context.Context, ownerID string, raw []byte, password string) (*domain.Certificate, error) {
	if ownerID == "" || len(raw) == 0 {
		return nil, domain.ErrInvalidInput
	}
	parsed, der, err := parseCertificateMaterial(raw, password)
	if err != nil {
		sum := sha256.Sum256(raw)
		rec := domain.Certificate{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			Fingerprint: hex.EncodeToString(sum[:]),
			Raw:         raw,
			State:       domain.CertStateUnknown,
			Class:       domain.CertClassUser,
			CreatedAt:   l.now(),
		}
		if storeErr := l.Certs.Create(ctx, rec); storeErr != nil {
			l.logger().Warn("failed to retain unparseable import", zap.Error(storeErr))
		}
		return nil, err
	}
	cert := l.buildRecord(ownerID, parsed, der, domain.CertClassUser, []domain.KeyUsage{domain.UsageSignDocument, domain.UsageAuthenticate})
	if existing, err := l.Certs.GetByFingerprint(ctx, cert.Fingerprint); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: fingerprint held by %s", domain.ErrAlreadyRegistered, existing.ID)
	}
	if err := l.Certs.Create(ctx, cert); err != nil {
		return nil, fmt.Errorf("store certificate: %w", err)
	}
	l.appendAudit(ctx, ownerID, "certificate.import", cert.ID, nil)
	return &cert, nil
}

func (l *CertificateLifecycle) buildRecord(ownerID string, parsed *x509.Certificate, der []byte, class domain.CertificateClass, usages []domain.KeyUsage) domain.Certificate {
	sum := sha256.Sum256(der)
	alg, bits := keyProfile(parsed)
	if class == "" {
		class = domain.CertClassUser
	}
	if len(usages) == 0 {
		usages = []domain.KeyUsage{domain.UsageSignDocument}
	}
	pub, err := x509.MarshalPKIXPublicKey(parsed.PublicKey)
	if err != nil {
		pub = nil
	}
	return domain.Certificate{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		SerialNumber: parsed.SerialNumber.String(),
		IssuerDN:     parsed.Issuer.String(),
		SubjectDN:    parsed.Subject.String(),
		Algorithm:    alg,
		KeyBits:      bits,
		Fingerprint:  hex.EncodeToString(sum[:]),
		Raw:          der,
		PublicKey:    pub,
		IssuedAt:     parsed.NotBefore,
		ExpiresAt:    parsed.NotAfter,
		State:        domain.CertStateActive,
		Class:        class,
		Usages:       usages,
		CreatedAt:    l.now(),
	}
}

// Revoke moves a certificate to its terminal revoked state. Revoking an
// already-revoked certificate is a no-op. Cached valid outcomes are
// dropped and every signature made with the certificate is flagged for
// re-verification.
func (l *CertificateLifecycle) Revoke(ctx context.Context, certID, reason string) error {
	cert, err := l.Certs.GetByID(ctx, certID)
	if err != nil {
		return err
	}
	if cert.State == domain.CertStateRevoked {
		return nil
	}
	if !cert.CanTransition(domain.CertStateRevoked) {
		return domain.ErrInvalidState
	}
	now := l.now()
	swapped, err := l.Certs.TransitionState(ctx, certID, cert.State, domain.CertStateRevoked, &now, reason)
	if err != nil {
		return err
	}
	if !swapped {
		current, err := l.Certs.GetByID(ctx, certID)
		if err != nil {
			return err
		}
		if current.State == domain.CertStateRevoked {
			return nil
		}
		return domain.ErrInvalidState
	}
	l.invalidateOutcomes(ctx, cert.Fingerprint)
	if l.Signatures != nil {
		flagged, err := l.Signatures.FlagForRecheck(ctx, certID)
		if err != nil {
			l.logger().Warn("failed to flag signatures for recheck", zap.String("certificate_id", certID), zap.Error(err))
		} else if flagged > 0 {
			l.notify(ctx, domain.Event{
				Type:       domain.EventSignatureRecheck,
				Recipients: []string{cert.OwnerID},
				Payload:    map[string]any{"certificate_id": certID, "signatures": flagged},
				OccurredAt: now,
			})
		}
	}
	l.notify(ctx, domain.Event{
		Type:       domain.EventCertificateRevoked,
		Recipients: []string{cert.OwnerID},
		Payload:    map[string]any{"certificate_id": certID, "reason": reason},
		OccurredAt: now,
	})
	l.appendAudit(ctx, cert.OwnerID, "certificate.revoke", certID, map[string]any{"reason": reason})
	return nil
}

// Suspend places an active certificate on hold; Reinstate lifts it.
func (l *CertificateLifecycle) Suspend(ctx context.Context, certID, reason string) error {
	return l.swapState(ctx, certID, domain.CertStateActive, domain.CertStateSuspended, reason)
}

func (l *CertificateLifecycle) Reinstate(ctx context.Context, certID string) error {
	return l.swapState(ctx, certID, domain.CertStateSuspended, domain.CertStateActive, "")
}

func (l *CertificateLifecycle) swapState(ctx context.Context, certID string, from, to domain.CertificateState, reason string) error {
	cert, err := l.Certs.GetByID(ctx, certID)
	if err != nil {
		return err
	}
	if cert.State != from {
		return domain.ErrInvalidState
	}
	swapped, err := l.Certs.TransitionState(ctx, certID, from, to, nil, reason)
	if err != nil {
		return err
	}
	if !swapped {
		return domain.ErrInvalidState
	}
	l.invalidateOutcomes(ctx, cert.Fingerprint)
	return nil
}

type RenewOptions struct {
	Raw       []byte
	NewExpiry time.Time
	Class     domain.CertificateClass
	Usages    []domain.KeyUsage
}

// Renew registers a successor certificate and expires the predecessor.
// Renewal is not a trust failure, so the predecessor is Expired rather
// than Revoked, and the successor keeps a link back for audit.
func (l *CertificateLifecycle) Renew(ctx context.Context, certID string, opts RenewOptions) (*domain.Certificate, error) {
	prev, err := l.Certs.GetByID(ctx, certID)
	if err != nil {
		return nil, err
	}
	if prev.State != domain.CertStateActive {
		return nil, domain.ErrInvalidState
	}

	successor := *prev
	successor.ID = uuid.NewString()
	successor.PredecessorID = prev.ID
	successor.State = domain.CertStateActive
	successor.RevokedAt = nil
	successor.RevocationReason = ""
	successor.CreatedAt = l.now()
	if len(opts.Raw) > 0 {
		parsed, der, err := parseCertificateMaterial(opts.Raw, "")
		if err != nil {
			return nil, err
		}
		rebuilt := l.buildRecord(prev.OwnerID, parsed, der, prev.Class, prev.Usages)
		rebuilt.ID = successor.ID
		rebuilt.PredecessorID = prev.ID
		successor = rebuilt
	} else if !opts.NewExpiry.IsZero() {
		successor.ExpiresAt = opts.NewExpiry
		successor.IssuedAt = l.now()
	} else {
		return nil, domain.ErrInvalidInput
	}
	if opts.Class != "" {
		successor.Class = opts.Class
	}
	if len(opts.Usages) > 0 {
		successor.Usages = opts.Usages
	}

	if err := l.Certs.Create(ctx, successor); err != nil {
		return nil, fmt.Errorf("store successor: %w", err)
	}
	swapped, err := l.Certs.TransitionState(ctx, prev.ID, domain.CertStateActive, domain.CertStateExpired, nil, "renewed")
	if err != nil {
		return nil, err
	}
	if !swapped {
		l.logger().Warn("predecessor state changed during renew", zap.String("certificate_id", prev.ID))
	}
	l.invalidateOutcomes(ctx, prev.Fingerprint)
	l.notify(ctx, domain.Event{
		Type:       domain.EventCertificateRenewed,
		Recipients: []string{prev.OwnerID},
		Payload:    map[string]any{"certificate_id": successor.ID, "predecessor_id": prev.ID},
		OccurredAt: l.now(),
	})
	l.appendAudit(ctx, prev.OwnerID, "certificate.renew", successor.ID, map[string]any{"predecessor_id": prev.ID})
	return &successor, nil
}

func (l *CertificateLifecycle) invalidateOutcomes(ctx context.Context, fingerprint string) {
	if l.Cache == nil || fingerprint == "" {
		return
	}
	if err := l.Cache.Delete(ctx, fingerprint); err != nil {
		l.logger().Warn("validation cache invalidation failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

func (l *CertificateLifecycle) notify(ctx context.Context, event domain.Event) {
	if l.Notifier == nil {
		return
	}
	if err := l.Notifier.Notify(ctx, event); err != nil {
		l.logger().Warn("notification dispatch failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func (l *CertificateLifecycle) appendAudit(ctx context.Context, actorID, action, entityID string, detail map[string]any) {
	if l.Audit == nil {
		return
	}
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: "certificate",
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  l.now(),
	}
	if err := l.Audit.Append(ctx, event); err != nil {
		l.logger().Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func parseCertificateMaterial(raw []byte, password string) (*x509.Certificate, []byte, error) {
	if block, _ := pem.Decode(raw); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, nil, domain.ErrMalformedCertificate
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedCertificate, err)
		}
		return cert, block.Bytes, nil
	}
	if cert, err := x509.ParseCertificate(raw); err == nil {
		return cert, raw, nil
	}
	if password != "" {
		_, cert, err := pkcs12.Decode(raw, password)
		if err != nil || cert == nil {
			return nil, nil, fmt.Errorf("%w: pkcs12 decode failed", domain.ErrMalformedCertificate)
		}
		return cert, cert.Raw, nil
	}
	return nil, nil, domain.ErrMalformedCertificate
}

func keyProfile(cert *x509.Certificate) (string, int) {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return "RSA", pub.N.BitLen()
	case *ecdsa.PublicKey:
		return "ECDSA", pub.Curve.Params().BitSize
	default:
		return cert.PublicKeyAlgorithm.String(), 0
	}
}
