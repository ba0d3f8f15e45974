package container

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"
)

// Builder assembles and verifies signature containers. Every artifact is
// a JSON envelope carrying the container type, signing metadata and the
// format-specific payload, so one blob round-trips through the artifact
// store without side tables.
type Builder struct {
	Keys usecase.Keystore
}

func NewBuilder(keys usecase.Keystore) *Builder {
	return &Builder{Keys: keys}
}

// keystoreSigner drives the CMS builders against the digest-level
// keystore contract, so private keys never leave the keystore.
type keystoreSigner struct {
	ctx     context.Context
	keys    usecase.Keystore
	certRef string
	public  crypto.PublicKey
	hash    domain.HashAlgorithm
	err     error
}

func (s *keystoreSigner) Public() crypto.PublicKey { return s.public }

func (s *keystoreSigner) Sign(_ io.Reader, digest []byte, _ crypto.SignerOpts) ([]byte, error) {
	value, err := s.keys.Sign(s.ctx, s.certRef, digest, s.hash)
	if err != nil {
		s.err = err
	}
	return value, err
}

type envelope struct {
	Type           string    `json:"type"`
	Hash           string    `json:"hash"`
	SigningTime    time.Time `json:"signing_time"`
	CertRef        string    `json:"cert_ref"`
	PolicyOID      string    `json:"policy_oid,omitempty"`
	TimestampToken []byte    `json:"timestamp_token,omitempty"`
	Payload        []byte    `json:"payload"`
	ByteRange      []int64   `json:"byte_range,omitempty"`
}

func (b *Builder) Build(ctx context.Context, in usecase.ContainerBuildInput) (*usecase.ContainerArtifact, error) {
	if in.Certificate == nil || len(in.Certificate.Raw) == 0 {
		return nil, domain.ErrMalformedCertificate
	}
	cert, err := x509.ParseCertificate(in.Certificate.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCertificate, err)
	}
	signer := &keystoreSigner{ctx: ctx, keys: b.Keys, certRef: in.CertRef, public: cert.PublicKey, hash: in.Hash}

	env := envelope{
		Type:           string(in.Type),
		Hash:           string(in.Hash),
		SigningTime:    in.SigningTime,
		CertRef:        in.CertRef,
		PolicyOID:      in.PolicyOID,
		TimestampToken: in.TimestampToken,
	}
	switch in.Type {
	case domain.ContainerCAdES:
		env.Payload, err = buildCAdES(in.ContentDigest, cert, signer)
	case domain.ContainerPAdES:
		env.Payload, env.ByteRange, err = buildPAdES(in.ContentDigest, cert, signer)
	case domain.ContainerXAdES:
		env.Payload, err = buildXAdES(in, cert, signer)
	default:
		return nil, fmt.Errorf("%w: unknown container type %q", domain.ErrInvalidInput, in.Type)
	}
	if err != nil {
		// Surface the keystore's own failure rather than whatever the
		// format builder wrapped it in.
		if signer.err != nil {
			return nil, signer.err
		}
		return nil, err
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return &usecase.ContainerArtifact{Bytes: raw, SignatureValue: env.Payload}, nil
}

func (b *Builder) Verify(ctx context.Context, artifact []byte, in usecase.ContainerVerifyInput) error {
	var env envelope
	if err := json.Unmarshal(artifact, &env); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignatureCorrupted, err)
	}
	if env.Type != string(in.Type) {
		return fmt.Errorf("%w: container type mismatch", domain.ErrSignatureCorrupted)
	}
	if in.Certificate == nil || len(in.Certificate.Raw) == 0 {
		return domain.ErrMalformedCertificate
	}
	cert, err := x509.ParseCertificate(in.Certificate.Raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedCertificate, err)
	}

	switch in.Type {
	case domain.ContainerCAdES:
		return verifyCAdES(env.Payload, in.ContentDigest, cert)
	case domain.ContainerPAdES:
		return verifyPAdES(env.Payload, env.ByteRange, in.ContentDigest, cert)
	case domain.ContainerXAdES:
		return verifyXAdES(env.Payload, in, cert)
	default:
		return fmt.Errorf("%w: unknown container type %q", domain.ErrInvalidInput, in.Type)
	}
}

var _ usecase.ContainerBuilder = (*Builder)(nil)
