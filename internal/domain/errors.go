package domain

import "errors"

var (
	ErrMalformedCertificate   = errors.New("malformed certificate")
	ErrAlreadyRegistered      = errors.New("certificate already registered")
	ErrCertificateExpired     = errors.New("certificate expired")
	ErrCertificateRevoked     = errors.New("certificate revoked")
	ErrCertificateNotYetValid = errors.New("certificate not yet valid")
	ErrCertificateNotUsable   = errors.New("certificate not usable")
	ErrChainValidationFailed  = errors.New("chain validation failed")
	ErrRevocationUnavailable  = errors.New("revocation check unavailable")
	ErrUsageNotPermitted      = errors.New("usage not permitted")

	ErrKeyUnavailable       = errors.New("key unavailable")
	ErrTimestampUnavailable = errors.New("timestamp unavailable")
	ErrLevelUnattainable    = errors.New("required signature level unattainable")
	ErrSignatureCorrupted   = errors.New("signature corrupted")
	ErrDocumentModified     = errors.New("document modified after signing")

	ErrOutOfTurn            = errors.New("out of turn signing attempt")
	ErrDuplicateSignature   = errors.New("duplicate signature attempt")
	ErrInvalidDelegation    = errors.New("invalid delegation")
	ErrRequestNotInProgress = errors.New("request not in progress")
	ErrUnauthorizedSigner   = errors.New("unauthorized signer")
	ErrInvalidState         = errors.New("invalid state transition")

	ErrPolicyDenied = errors.New("signing policy denied")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)
