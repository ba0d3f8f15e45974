package domain

import "time"

type ValidityStatus string

const (
	StatusValid   ValidityStatus = "valid"
	StatusInvalid ValidityStatus = "invalid"
	StatusUnknown ValidityStatus = "unknown"
)

type ValidationReason string

const (
	ReasonExpired               ValidationReason = "expired"
	ReasonNotYetValid           ValidationReason = "not_yet_valid"
	ReasonRevoked               ValidationReason = "revoked"
	ReasonSuspended             ValidationReason = "suspended"
	ReasonRevocationUnavailable ValidationReason = "revocation_check_unavailable"
	ReasonChainFailed           ValidationReason = "chain_validation_failed"
	ReasonUsageNotPermitted     ValidationReason = "usage_not_permitted"
	ReasonDigestMismatch        ValidationReason = "document_modified_after_signing"
	ReasonSignatureCorrupted    ValidationReason = "signature_corrupted"
)

// ValidationOutcome is the result of evaluating one certificate's
// validity at one instant. Unknown is never silently promoted to valid.
type ValidationOutcome struct {
	Status    ValidityStatus     `json:"status"`
	Reasons   []ValidationReason `json:"reasons,omitempty"`
	CheckedAt time.Time          `json:"checked_at"`
}

func (o ValidationOutcome) Valid() bool {
	return o.Status == StatusValid
}

type CheckResult struct {
	Name   string           `json:"name"`
	Status ValidityStatus   `json:"status"`
	Reason ValidationReason `json:"reason,omitempty"`
	Detail string           `json:"detail,omitempty"`
}

// ValidationResult aggregates the per-check results of verifying one
// signature. A cached result carries its verification timestamp and is
// never trusted indefinitely.
type ValidationResult struct {
	Overall    ValidityStatus `json:"overall"`
	Checks     []CheckResult  `json:"checks"`
	Warnings   []string       `json:"warnings,omitempty"`
	VerifiedAt time.Time      `json:"verified_at"`
}

// Aggregate folds per-check statuses into the overall verdict: any
// invalid check makes the result invalid, otherwise any unknown makes it
// unknown.
func (r *ValidationResult) Aggregate() {
	overall := StatusValid
	for _, c := range r.Checks {
		if c.Status == StatusInvalid {
			overall = StatusInvalid
			break
		}
		if c.Status == StatusUnknown {
			overall = StatusUnknown
		}
	}
	r.Overall = overall
}

type RevocationStatus string

const (
	RevocationGood    RevocationStatus = "good"
	RevocationRevoked RevocationStatus = "revoked"
	RevocationOnHold  RevocationStatus = "on_hold"
	RevocationUnknown RevocationStatus = "unknown"
)
