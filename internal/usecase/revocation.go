package usecase

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"firmaflow/internal/domain"

	"go.uber.org/zap"
)

// CheckValidity evaluates one certificate at one instant: validity
// period, then revocation (OCSP first, CRL fallback, unknown when both
// are unreachable), then chain of trust. Outcomes are cached keyed by
// fingerprint and check-time bucket so burst signing does not hammer the
// external oracles.
func (l *CertificateLifecycle) CheckValidity(ctx context.Context, cert *domain.Certificate, at time.Time) domain.ValidationOutcome {
	now := l.now()
	outcome := domain.ValidationOutcome{Status: domain.StatusValid, CheckedAt: now}

	switch cert.State {
	case domain.CertStateRevoked:
		return domain.ValidationOutcome{Status: domain.StatusInvalid, Reasons: []domain.ValidationReason{domain.ReasonRevoked}, CheckedAt: now}
	case domain.CertStateSuspended:
		return domain.ValidationOutcome{Status: domain.StatusInvalid, Reasons: []domain.ValidationReason{domain.ReasonSuspended}, CheckedAt: now}
	}
	if at.Before(cert.IssuedAt) {
		return domain.ValidationOutcome{Status: domain.StatusInvalid, Reasons: []domain.ValidationReason{domain.ReasonNotYetValid}, CheckedAt: now}
	}
	if !at.Before(cert.ExpiresAt) {
		return domain.ValidationOutcome{Status: domain.StatusInvalid, Reasons: []domain.ValidationReason{domain.ReasonExpired}, CheckedAt: now}
	}

	if cached, ok := l.cachedOutcome(ctx, cert, at); ok {
		return *cached
	}

	status := l.checkRevocation(ctx, cert)
	switch status {
	case domain.RevocationRevoked:
		outcome.Status = domain.StatusInvalid
		outcome.Reasons = append(outcome.Reasons, domain.ReasonRevoked)
		l.applyDiscoveredRevocation(ctx, cert)
	case domain.RevocationOnHold:
		outcome.Status = domain.StatusInvalid
		outcome.Reasons = append(outcome.Reasons, domain.ReasonSuspended)
		l.applyDiscoveredHold(ctx, cert)
	case domain.RevocationUnknown:
		outcome.Status = domain.StatusUnknown
		outcome.Reasons = append(outcome.Reasons, domain.ReasonRevocationUnavailable)
	}

	if err := l.validateChain(cert, at); err != nil {
		outcome.Status = domain.StatusInvalid
		outcome.Reasons = append(outcome.Reasons, domain.ReasonChainFailed)
	}

	l.storeOutcome(ctx, cert, at, outcome)
	return outcome
}

// checkRevocation queries OCSP with one retry, then falls back to the
// CRL. Both unreachable yields unknown, never valid.
func (l *CertificateLifecycle) checkRevocation(ctx context.Context, cert *domain.Certificate) domain.RevocationStatus {
	if l.Oracle == nil {
		return domain.RevocationUnknown
	}
	timeout := l.CheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	attempt := func(check func(context.Context, *domain.Certificate) (domain.RevocationStatus, error)) (domain.RevocationStatus, error) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return check(cctx, cert)
	}

	status, err := attempt(l.Oracle.OCSPCheck)
	if err != nil {
		time.Sleep(retryBackoff)
		status, err = attempt(l.Oracle.OCSPCheck)
	}
	if err == nil {
		return status
	}
	l.logger().Debug("ocsp unreachable, falling back to crl", zap.String("serial", cert.SerialNumber), zap.Error(err))

	status, err = attempt(l.Oracle.CRLCheck)
	if err != nil {
		l.logger().Warn("revocation oracles unreachable", zap.String("serial", cert.SerialNumber), zap.Error(err))
		return domain.RevocationUnknown
	}
	return status
}

const retryBackoff = 200 * time.Millisecond

// applyDiscoveredRevocation persists a revocation learned from the
// oracle. The CAS keyed on the observed state keeps a delayed async
// result from clobbering a newer manual transition.
func (l *CertificateLifecycle) applyDiscoveredRevocation(ctx context.Context, cert *domain.Certificate) {
	if !cert.CanTransition(domain.CertStateRevoked) {
		return
	}
	now := l.now()
	swapped, err := l.Certs.TransitionState(ctx, cert.ID, cert.State, domain.CertStateRevoked, &now, "reported by revocation oracle")
	if err != nil {
		l.logger().Warn("failed to persist discovered revocation", zap.String("certificate_id", cert.ID), zap.Error(err))
		return
	}
	if !swapped {
		return
	}
	l.invalidateOutcomes(ctx, cert.Fingerprint)
	if l.Signatures != nil {
		if _, err := l.Signatures.FlagForRecheck(ctx, cert.ID); err != nil {
			l.logger().Warn("failed to flag signatures after discovered revocation", zap.Error(err))
		}
	}
	l.notify(ctx, domain.Event{
		Type:       domain.EventCertificateRevoked,
		Recipients: []string{cert.OwnerID},
		Payload:    map[string]any{"certificate_id": cert.ID, "reason": "revocation oracle"},
		OccurredAt: now,
	})
}

// applyDiscoveredHold maps an OCSP certificateHold onto Suspended.
func (l *CertificateLifecycle) applyDiscoveredHold(ctx context.Context, cert *domain.Certificate) {
	if cert.State != domain.CertStateActive {
		return
	}
	if _, err := l.Certs.TransitionState(ctx, cert.ID, domain.CertStateActive, domain.CertStateSuspended, nil, "certificate hold"); err != nil {
		l.logger().Warn("failed to persist certificate hold", zap.String("certificate_id", cert.ID), zap.Error(err))
		return
	}
	l.invalidateOutcomes(ctx, cert.Fingerprint)
}

func (l *CertificateLifecycle) validateChain(cert *domain.Certificate, at time.Time) error {
	if l.Anchors == nil {
		return nil
	}
	parsed, err := x509.ParseCertificate(cert.Raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChainValidationFailed, err)
	}
	opts := x509.VerifyOptions{
		Roots:         l.Anchors.Roots(),
		Intermediates: l.Anchors.Intermediates(),
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := parsed.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChainValidationFailed, err)
	}
	return nil
}

func (l *CertificateLifecycle) cachedOutcome(ctx context.Context, cert *domain.Certificate, at time.Time) (*domain.ValidationOutcome, bool) {
	if l.Cache == nil {
		return nil, false
	}
	outcome, ok, err := l.Cache.Get(ctx, l.outcomeKey(cert, at))
	if err != nil {
		l.logger().Warn("validation cache read failed", zap.Error(err))
		return nil, false
	}
	return outcome, ok
}

func (l *CertificateLifecycle) storeOutcome(ctx context.Context, cert *domain.Certificate, at time.Time, outcome domain.ValidationOutcome) {
	if l.Cache == nil {
		return
	}
	ttl := l.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := l.Cache.Put(ctx, l.outcomeKey(cert, at), outcome, ttl); err != nil {
		l.logger().Warn("validation cache write failed", zap.Error(err))
	}
}

// outcomeKey buckets the check time by the cache TTL so repeated checks
// within one bucket share an entry. The fingerprint prefix is what
// Revoke deletes by.
func (l *CertificateLifecycle) outcomeKey(cert *domain.Certificate, at time.Time) string {
	ttl := l.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return fmt.Sprintf("%s:%d", cert.Fingerprint, at.Truncate(ttl).Unix())
}

// CheckBatch runs validity checks for many certificates through a
// bounded worker pool. External calls dominate latency, and one slow
// oracle must not stall the rest of the batch.
func (l *CertificateLifecycle) CheckBatch(ctx context.Context, certs []domain.Certificate, at time.Time) map[string]domain.ValidationOutcome {
	workers := l.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(certs) {
		workers = len(certs)
	}

	type job struct {
		idx  int
		cert domain.Certificate
	}
	jobs := make(chan job)
	results := make([]domain.ValidationOutcome, len(certs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				cert := j.cert
				results[j.idx] = l.CheckValidity(ctx, &cert, at)
			}
		}()
	}
feed:
	for i, cert := range certs {
		select {
		case jobs <- job{idx: i, cert: cert}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	out := make(map[string]domain.ValidationOutcome, len(certs))
	for i, cert := range certs {
		if ctx.Err() != nil && results[i].CheckedAt.IsZero() {
			continue
		}
		out[cert.ID] = results[i]
	}
	return out
}
