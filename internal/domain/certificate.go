package domain

import "time"

type CertificateState string

const (
	CertStateActive    CertificateState = "active"
	CertStateSuspended CertificateState = "suspended"
	CertStateRevoked   CertificateState = "revoked"
	CertStateExpired   CertificateState = "expired"
	CertStateUnknown   CertificateState = "unknown"
)

type CertificateClass string

const (
	CertClassUser               CertificateClass = "user"
	CertClassServer             CertificateClass = "server"
	CertClassCA                 CertificateClass = "ca"
	CertClassTimestampAuthority CertificateClass = "tsa"
)

type KeyUsage string

const (
	UsageSignDocument KeyUsage = "sign_document"
	UsageAuthenticate KeyUsage = "authenticate"
	UsageEncrypt      KeyUsage = "encrypt"
	UsageTimestamp    KeyUsage = "timestamp"
)

// Certificate is a trust credential bound to one owner. Rows are never
// deleted; revoked and expired certificates stay around so historical
// signatures remain verifiable.
type Certificate struct {
	ID               string
	OwnerID          string
	SerialNumber     string
	IssuerDN         string
	SubjectDN        string
	Algorithm        string
	KeyBits          int
	Fingerprint      string
	Raw              []byte
	PublicKey        []byte
	IssuedAt         time.Time
	ExpiresAt        time.Time
	State            CertificateState
	Class            CertificateClass
	Usages           []KeyUsage
	PredecessorID    string
	RevokedAt        *time.Time
	RevocationReason string
	// ExpiryWarnedDays is the tightest expiry-warning threshold already
	// notified for, zero when none has fired yet.
	ExpiryWarnedDays int
	CreatedAt        time.Time
}

// certTransitions is the only allowed state graph. Revoked is terminal,
// Expired is terminal for signing purposes, Suspended can go back to
// Active or forward to Revoked.
var certTransitions = map[CertificateState][]CertificateState{
	CertStateActive:    {CertStateRevoked, CertStateExpired, CertStateSuspended},
	CertStateSuspended: {CertStateActive, CertStateRevoked},
	CertStateUnknown:   {CertStateRevoked},
}

func (c Certificate) CanTransition(to CertificateState) bool {
	for _, allowed := range certTransitions[c.State] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (c Certificate) HasUsage(usage KeyUsage) bool {
	for _, u := range c.Usages {
		if u == usage {
			return true
		}
	}
	return false
}

func (c Certificate) InValidityPeriod(at time.Time) bool {
	return !at.Before(c.IssuedAt) && at.Before(c.ExpiresAt)
}

// CanSign reports whether the certificate may be used for a signing act
// at the given instant. Returns the sentinel explaining why not.
func (c Certificate) CanSign(at time.Time) error {
	switch c.State {
	case CertStateRevoked:
		return ErrCertificateRevoked
	case CertStateExpired:
		return ErrCertificateExpired
	case CertStateSuspended, CertStateUnknown:
		return ErrCertificateNotUsable
	}
	if at.Before(c.IssuedAt) {
		return ErrCertificateNotYetValid
	}
	if !at.Before(c.ExpiresAt) {
		return ErrCertificateExpired
	}
	if !c.HasUsage(UsageSignDocument) {
		return ErrUsageNotPermitted
	}
	return nil
}
