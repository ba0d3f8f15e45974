package usecase

import (
	"context"
	"time"

	"firmaflow/internal/domain"

	"go.uber.org/zap"
)

// DefaultExpiryWarnDays are the notification thresholds for certificates
// approaching expiry.
var DefaultExpiryWarnDays = []int{30, 15, 7}

// Sweep runs one pass of the periodic certificate maintenance: expire
// certificates past their validity window, warn owners at the configured
// thresholds, and re-check revocation for certificates nearing expiry.
// The expiry transition is CAS-guarded so concurrent sweeps are
// idempotent.
func (l *CertificateLifecycle) Sweep(ctx context.Context, warnDays []int) error {
	now := l.now()
	if len(warnDays) == 0 {
		warnDays = DefaultExpiryWarnDays
	}

	expired, err := l.Certs.ListActivePastExpiry(ctx, now)
	if err != nil {
		return err
	}
	for _, cert := range expired {
		swapped, err := l.Certs.TransitionState(ctx, cert.ID, domain.CertStateActive, domain.CertStateExpired, nil, "expired")
		if err != nil {
			l.logger().Warn("expiry transition failed", zap.String("certificate_id", cert.ID), zap.Error(err))
			continue
		}
		if !swapped {
			continue
		}
		l.invalidateOutcomes(ctx, cert.Fingerprint)
		l.notify(ctx, domain.Event{
			Type:       domain.EventCertificateExpired,
			Recipients: []string{cert.OwnerID},
			Payload:    map[string]any{"certificate_id": cert.ID},
			OccurredAt: now,
		})
	}

	maxDays := 0
	for _, d := range warnDays {
		if d > maxDays {
			maxDays = d
		}
	}
	expiring, err := l.Certs.ListExpiring(ctx, now.AddDate(0, 0, maxDays))
	if err != nil {
		return err
	}
	for _, cert := range expiring {
		daysLeft := int(cert.ExpiresAt.Sub(now).Hours() / 24)
		threshold, ok := matchThreshold(daysLeft, warnDays)
		if !ok {
			continue
		}
		// One warning per crossed threshold; a tighter threshold re-arms
		// it, hourly sweeps inside the same window stay quiet.
		if cert.ExpiryWarnedDays > 0 && cert.ExpiryWarnedDays <= threshold {
			continue
		}
		l.notify(ctx, domain.Event{
			Type:       domain.EventCertificateExpiring,
			Recipients: []string{cert.OwnerID},
			Payload: map[string]any{
				"certificate_id": cert.ID,
				"days_left":      daysLeft,
				"threshold":      threshold,
				"expires_at":     cert.ExpiresAt,
			},
			OccurredAt: now,
		})
		if err := l.Certs.MarkExpiryWarned(ctx, cert.ID, threshold); err != nil {
			l.logger().Warn("failed to record expiry warning", zap.String("certificate_id", cert.ID), zap.Error(err))
		}
	}

	if len(expiring) > 0 {
		l.CheckBatch(ctx, expiring, now)
	}
	return nil
}

// matchThreshold picks the tightest configured threshold the remaining
// lifetime has crossed, so a certificate 14 days out warns at the 15-day
// threshold, not the 30.
func matchThreshold(daysLeft int, warnDays []int) (int, bool) {
	best := -1
	for _, d := range warnDays {
		if daysLeft <= d && (best == -1 || d < best) {
			best = d
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// RunSweeper loops Sweep on the given interval until the context ends.
func (l *CertificateLifecycle) RunSweeper(ctx context.Context, interval time.Duration, warnDays []int) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Sweep(ctx, warnDays); err != nil {
				l.logger().Warn("certificate sweep failed", zap.Error(err))
			}
		}
	}
}
