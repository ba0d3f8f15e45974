package usecase

import (
	"context"
	"crypto/x509"
	"time"

	"firmaflow/internal/domain"
)

type Clock func() time.Time

type CertificateRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Certificate, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Certificate, error)
	Create(ctx context.Context, cert domain.Certificate) error
	// TransitionState is a compare-and-swap on the state column: the row
	// is updated only if it is still in `from`, and the first return
	// reports whether the swap happened.
	TransitionState(ctx context.Context, id string, from, to domain.CertificateState, revokedAt *time.Time, reason string) (bool, error)
	ListExpiring(ctx context.Context, before time.Time) ([]domain.Certificate, error)
	ListActivePastExpiry(ctx context.Context, asOf time.Time) ([]domain.Certificate, error)
	// MarkExpiryWarned records the threshold an expiry warning was sent
	// at, so sweeps only warn once per crossed threshold.
	MarkExpiryWarned(ctx context.Context, id string, threshold int) error
}

type RequestRepository interface {
	Create(ctx context.Context, req domain.SignatureRequest) error
	GetByID(ctx context.Context, id string) (*domain.SignatureRequest, error)
	TransitionState(ctx context.Context, id string, from, to domain.RequestState) (bool, error)
	ListInProgressPastDeadline(ctx context.Context, asOf time.Time) ([]domain.SignatureRequest, error)
}

type SignerRepository interface {
	TransitionState(ctx context.Context, signerID string, from, to domain.SignerState, comment string, actedAt time.Time) (bool, error)
	// Reassign moves a still-pending slot to another user, preserving
	// order, role and the mandatory flag.
	Reassign(ctx context.Context, signerID, toUserID string) (bool, error)
}

type SignatureRepository interface {
	Create(ctx context.Context, sig domain.Signature) error
	// Delete removes a signature row; only used to back out a signature
	// whose signer-slot write lost a concurrent race.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Signature, error)
	// ListByDocument returns the document's direct signatures;
	// counter-signatures are reached through ListChildren.
	ListByDocument(ctx context.Context, documentID string) ([]domain.Signature, error)
	ListChildren(ctx context.Context, parentID string) ([]domain.Signature, error)
	SaveResult(ctx context.Context, signatureID string, result domain.ValidationResult, needsRecheck bool) error
	// FlagForRecheck marks every signature made with the certificate so
	// cached Valid results are re-evaluated; returns how many were hit.
	FlagForRecheck(ctx context.Context, certificateID string) (int64, error)
}

type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Create(ctx context.Context, doc domain.Document) error
	RecordSignature(ctx context.Context, documentID string) error
	// RemoveSignature undoes one RecordSignature increment, flooring at
	// zero.
	RemoveSignature(ctx context.Context, documentID string) error
	SetFullySigned(ctx context.Context, documentID string, fullySigned bool) error
}

// RevocationOracle wraps the external OCSP responder and CRL
// distribution points. Both checks may time out.
type RevocationOracle interface {
	OCSPCheck(ctx context.Context, cert *domain.Certificate) (domain.RevocationStatus, error)
	CRLCheck(ctx context.Context, cert *domain.Certificate) (domain.RevocationStatus, error)
}

// Keystore is the external HSM/keystore holding private keys. It signs
// a precomputed digest and never exposes key material.
type Keystore interface {
	Sign(ctx context.Context, certRef string, digest []byte, hash domain.HashAlgorithm) ([]byte, error)
}

type TimestampToken struct {
	Raw      []byte
	GenTime  time.Time
	SerialNo string
}

type TimestampAuthority interface {
	Timestamp(ctx context.Context, digest []byte, hash domain.HashAlgorithm) (*TimestampToken, error)
}

type ArtifactStore interface {
	Save(ctx context.Context, data []byte) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
}

type NotificationGateway interface {
	Notify(ctx context.Context, event domain.Event) error
}

type TrustAnchorSource interface {
	Roots() *x509.CertPool
	Intermediates() *x509.CertPool
	// IssuerOf resolves the issuing certificate from the configured
	// anchor set, or nil when unknown.
	IssuerOf(cert *x509.Certificate) *x509.Certificate
}

type ValidationCache interface {
	Get(ctx context.Context, key string) (*domain.ValidationOutcome, bool, error)
	Put(ctx context.Context, key string, outcome domain.ValidationOutcome, ttl time.Duration) error
	Delete(ctx context.Context, keyPrefix string) error
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

type AuditLog interface {
	Append(ctx context.Context, event domain.AuditEvent) error
}

type ContainerBuildInput struct {
	Type           domain.ContainerType
	Hash           domain.HashAlgorithm
	ContentDigest  []byte
	SigningTime    time.Time
	Certificate    *domain.Certificate
	CertRef        string
	PolicyOID      string
	TimestampToken []byte
}

type ContainerArtifact struct {
	Bytes          []byte
	SignatureValue []byte
}

type ContainerVerifyInput struct {
	Type          domain.ContainerType
	Hash          domain.HashAlgorithm
	ContentDigest []byte
	Certificate   *domain.Certificate
}

// ContainerBuilder assembles and verifies CAdES/PAdES/XAdES signature
// containers around the keystore's raw signature operation.
type ContainerBuilder interface {
	Build(ctx context.Context, in ContainerBuildInput) (*ContainerArtifact, error)
	Verify(ctx context.Context, artifact []byte, in ContainerVerifyInput) error
}
