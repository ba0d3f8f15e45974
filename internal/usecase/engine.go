package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"firmaflow/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SignOptions struct {
	Container        domain.ContainerType
	Level            domain.SignatureLevel
	Hash             domain.HashAlgorithm
	IncludeTimestamp bool
	// RequireLevel turns the usual timestamp-failure downgrade into a
	// hard error.
	RequireLevel bool
	PolicyOID    string
	Role         domain.SignerRole
	Mandatory    bool
}

func (o SignOptions) withDefaults() SignOptions {
	if o.Container == "" {
		o.Container = domain.ContainerCAdES
	}
	if o.Level == "" {
		o.Level = domain.LevelBES
	}
	if o.Hash == "" {
		o.Hash = domain.HashSHA256
	}
	return o
}

// ValidityChecker is the slice of the certificate lifecycle the engine
// needs: is this certificate usable right now / was it at that instant.
type ValidityChecker interface {
	CheckValidity(ctx context.Context, cert *domain.Certificate, at time.Time) domain.ValidationOutcome
}

// SignatureEngine produces and verifies signatures and
// counter-signatures. It never touches private keys itself; the
// container builder drives the external keystore.
type SignatureEngine struct {
	Certs      CertificateRepository
	Signatures SignatureRepository
	Documents  DocumentRepository
	Artifacts  ArtifactStore
	Containers ContainerBuilder
	TSA        TimestampAuthority
	Validity   ValidityChecker
	Policy     PolicyEngine
	Notifier   NotificationGateway
	Audit      AuditLog
	Clock      Clock
	Log        *zap.Logger

	TSATimeout time.Duration
	// ResultTTL bounds how long a cached Valid verification is trusted
	// before Verify re-runs the checks.
	ResultTTL time.Duration
}

func (e *SignatureEngine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *SignatureEngine) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

// Sign creates one signature over the document by the given user with
// the given certificate.
func (e *SignatureEngine) Sign(ctx context.Context, cmd SignCommand) (*domain.Signature, error) {
	doc, err := e.Documents.GetByID(ctx, cmd.DocumentID)
	if err != nil {
		return nil, err
	}
	content, err := e.Artifacts.Load(ctx, doc.ArtifactRef)
	if err != nil {
		return nil, fmt.Errorf("load document content: %w", err)
	}
	return e.sign(ctx, cmd, doc.ID, "", content)
}

// Countersign signs the parent signature's artifact instead of the raw
// document, expressing endorsement of that signature.
func (e *SignatureEngine) Countersign(ctx context.Context, parentID string, cmd SignCommand) (*domain.Signature, error) {
	parent, err := e.Signatures.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	// A signature over content that no longer matches its recorded
	// digest must not be endorsed.
	content, err := e.signedPayload(ctx, parent)
	if err != nil {
		return nil, err
	}
	hasher := parent.Hash.CryptoHash().New()
	hasher.Write(content)
	if hex.EncodeToString(hasher.Sum(nil)) != parent.Digest {
		return nil, domain.ErrDocumentModified
	}
	payload, err := e.Artifacts.Load(ctx, parent.ArtifactRef)
	if err != nil {
		return nil, fmt.Errorf("load parent signature artifact: %w", err)
	}
	return e.sign(ctx, cmd, parent.DocumentID, parent.ID, payload)
}

func (e *SignatureEngine) sign(ctx context.Context, cmd SignCommand, documentID, parentID string, content []byte) (*domain.Signature, error) {
	opts := cmd.Options.withDefaults()
	now := e.now()

	cert, err := e.Certs.GetByID(ctx, cmd.CertificateID)
	if err != nil {
		return nil, err
	}
	if cert.OwnerID != cmd.UserID {
		return nil, domain.ErrUnauthorizedSigner
	}
	if err := cert.CanSign(now); err != nil {
		return nil, err
	}
	if e.Validity != nil {
		outcome := e.Validity.CheckValidity(ctx, cert, now)
		if err := outcomeError(outcome); err != nil {
			return nil, err
		}
	}
	if e.Policy != nil {
		eval, err := e.Policy.Evaluate(ctx, domain.PolicyInput{
			Certificate: domain.PolicyCertificate{Class: cert.Class, Usages: cert.Usages, State: cert.State, KeyBits: cert.KeyBits},
			Signer:      domain.PolicySigner{UserID: cmd.UserID, Role: opts.Role, Mandatory: opts.Mandatory},
			Container:   opts.Container,
			Level:       opts.Level,
			Countersign: parentID != "",
		})
		if err != nil {
			return nil, fmt.Errorf("policy evaluation: %w", err)
		}
		if !eval.Result.Allow {
			return nil, domain.ErrPolicyDenied
		}
	}

	hasher := opts.Hash.CryptoHash().New()
	hasher.Write(content)
	digest := hasher.Sum(nil)

	level := opts.Level
	var warnings []string
	var tsToken *TimestampToken
	if opts.IncludeTimestamp || level.RequiresTimestamp() {
		tsToken, err = e.requestTimestamp(ctx, digest, opts.Hash)
		if err != nil {
			if opts.RequireLevel {
				return nil, fmt.Errorf("%w: %v", domain.ErrLevelUnattainable, err)
			}
			level = degradeLevel(level, opts.PolicyOID)
			warnings = append(warnings, fmt.Sprintf("timestamp unavailable, level degraded to %s: %v", level, err))
			e.logger().Warn("timestamp authority unavailable, degrading level",
				zap.String("document_id", documentID), zap.String("level", string(level)), zap.Error(err))
		}
	}

	buildIn := ContainerBuildInput{
		Type:          opts.Container,
		Hash:          opts.Hash,
		ContentDigest: digest,
		SigningTime:   now,
		Certificate:   cert,
		CertRef:       cert.ID,
		PolicyOID:     opts.PolicyOID,
	}
	if tsToken != nil {
		buildIn.TimestampToken = tsToken.Raw
	}
	artifact, err := e.Containers.Build(ctx, buildIn)
	if err != nil {
		return nil, err
	}

	ref, err := e.Artifacts.Save(ctx, artifact.Bytes)
	if err != nil {
		return nil, fmt.Errorf("save signature artifact: %w", err)
	}

	sig := domain.Signature{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		SignerID:      cmd.UserID,
		CertificateID: cert.ID,
		Container:     opts.Container,
		Level:         level,
		Hash:          opts.Hash,
		SignedAt:      now,
		Digest:        hex.EncodeToString(digest),
		ArtifactRef:   ref,
		ParentID:      parentID,
		CreatedAt:     now,
	}
	if tsToken != nil {
		sig.TimestampToken = tsToken.Raw
		genTime := tsToken.GenTime
		sig.TimestampAt = &genTime
	}
	if err := e.Signatures.Create(ctx, sig); err != nil {
		return nil, err
	}
	if err := e.Documents.RecordSignature(ctx, documentID); err != nil {
		e.logger().Warn("failed to bump document signature count", zap.String("document_id", documentID), zap.Error(err))
	}
	e.notify(ctx, domain.Event{
		Type:       domain.EventSignatureCreated,
		Recipients: []string{cmd.UserID},
		Payload:    map[string]any{"signature_id": sig.ID, "document_id": documentID, "level": level, "warnings": warnings},
		OccurredAt: now,
	})
	e.appendAudit(ctx, cmd.UserID, "signature.create", sig.ID, map[string]any{"document_id": documentID, "countersign": parentID != ""})
	return &sig, nil
}

func (e *SignatureEngine) requestTimestamp(ctx context.Context, digest []byte, hash domain.HashAlgorithm) (*TimestampToken, error) {
	if e.TSA == nil {
		return nil, domain.ErrTimestampUnavailable
	}
	timeout := e.TSATimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	token, err := e.TSA.Timestamp(tctx, digest, hash)
	if err != nil {
		// one retry with backoff, then degrade
		time.Sleep(retryBackoff)
		tctx2, cancel2 := context.WithTimeout(ctx, timeout)
		defer cancel2()
		token, err = e.TSA.Timestamp(tctx2, digest, hash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimestampUnavailable, err)
		}
	}
	return token, nil
}

// degradeLevel is the fallback when no timestamp token can be obtained:
// anything at T or above falls to EPES when a policy is bound, else BES.
func degradeLevel(level domain.SignatureLevel, policyOID string) domain.SignatureLevel {
	if !level.RequiresTimestamp() {
		return level
	}
	if policyOID != "" {
		return domain.LevelEPES
	}
	return domain.LevelBES
}

func outcomeError(outcome domain.ValidationOutcome) error {
	if outcome.Valid() {
		return nil
	}
	for _, r := range outcome.Reasons {
		switch r {
		case domain.ReasonRevoked:
			return domain.ErrCertificateRevoked
		case domain.ReasonExpired:
			return domain.ErrCertificateExpired
		case domain.ReasonNotYetValid:
			return domain.ErrCertificateNotYetValid
		case domain.ReasonSuspended:
			return domain.ErrCertificateNotUsable
		case domain.ReasonChainFailed:
			return domain.ErrChainValidationFailed
		case domain.ReasonRevocationUnavailable:
			return domain.ErrRevocationUnavailable
		}
	}
	if outcome.Status == domain.StatusUnknown {
		return domain.ErrRevocationUnavailable
	}
	return domain.ErrCertificateNotUsable
}

// Verify re-checks one signature: content digest, cryptographic
// signature value, and certificate validity at the relevant instant.
// A cached Valid is honored only within ResultTTL and only while the
// signature is not flagged for recheck.
func (e *SignatureEngine) Verify(ctx context.Context, signatureID string) (*domain.ValidationResult, error) {
	sig, err := e.Signatures.GetByID(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if sig.CachedResult != nil && !sig.NeedsRecheck && e.ResultTTL > 0 &&
		now.Sub(sig.CachedResult.VerifiedAt) < e.ResultTTL {
		return sig.CachedResult, nil
	}

	result := domain.ValidationResult{VerifiedAt: now}

	content, err := e.signedPayload(ctx, sig)
	if err != nil {
		return nil, err
	}
	hasher := sig.Hash.CryptoHash().New()
	hasher.Write(content)
	digest := hasher.Sum(nil)
	if hex.EncodeToString(digest) != sig.Digest {
		result.Checks = append(result.Checks, domain.CheckResult{
			Name:   "content_digest",
			Status: domain.StatusInvalid,
			Reason: domain.ReasonDigestMismatch,
		})
	} else {
		result.Checks = append(result.Checks, domain.CheckResult{Name: "content_digest", Status: domain.StatusValid})
	}

	cert, err := e.Certs.GetByID(ctx, sig.CertificateID)
	if err != nil {
		return nil, err
	}
	artifact, err := e.Artifacts.Load(ctx, sig.ArtifactRef)
	if err != nil {
		return nil, fmt.Errorf("load signature artifact: %w", err)
	}
	if err := e.Containers.Verify(ctx, artifact, ContainerVerifyInput{
		Type:          sig.Container,
		Hash:          sig.Hash,
		ContentDigest: digest,
		Certificate:   cert,
	}); err != nil {
		result.Checks = append(result.Checks, domain.CheckResult{
			Name:   "signature_value",
			Status: domain.StatusInvalid,
			Reason: domain.ReasonSignatureCorrupted,
			Detail: err.Error(),
		})
	} else {
		result.Checks = append(result.Checks, domain.CheckResult{Name: "signature_value", Status: domain.StatusValid})
	}

	instant := e.relevantInstant(sig, now)
	if e.Validity != nil {
		outcome := e.Validity.CheckValidity(ctx, cert, instant)
		check := domain.CheckResult{Name: "certificate_validity", Status: outcome.Status}
		if len(outcome.Reasons) > 0 {
			check.Reason = outcome.Reasons[0]
		}
		result.Checks = append(result.Checks, check)
	}

	result.Aggregate()
	if err := e.Signatures.SaveResult(ctx, sig.ID, result, false); err != nil {
		e.logger().Warn("failed to cache verification result", zap.String("signature_id", sig.ID), zap.Error(err))
	}
	if result.Overall == domain.StatusInvalid {
		e.notify(ctx, domain.Event{
			Type:       domain.EventValidationFailed,
			Recipients: []string{sig.SignerID},
			Payload:    map[string]any{"signature_id": sig.ID, "document_id": sig.DocumentID},
			OccurredAt: now,
		})
	}
	return &result, nil
}

// relevantInstant picks the point in time certificate validity must
// hold at: signing time for BES/EPES/T, the trusted timestamp for
// LT/LTA when one is embedded.
func (e *SignatureEngine) relevantInstant(sig *domain.Signature, now time.Time) time.Time {
	if sig.Level.AtLeast(domain.LevelLT) {
		if sig.TimestampAt != nil {
			return *sig.TimestampAt
		}
		return now
	}
	return sig.SignedAt
}

func (e *SignatureEngine) signedPayload(ctx context.Context, sig *domain.Signature) ([]byte, error) {
	if sig.IsCounterSignature() {
		parent, err := e.Signatures.GetByID(ctx, sig.ParentID)
		if err != nil {
			return nil, err
		}
		return e.Artifacts.Load(ctx, parent.ArtifactRef)
	}
	doc, err := e.Documents.GetByID(ctx, sig.DocumentID)
	if err != nil {
		return nil, err
	}
	return e.Artifacts.Load(ctx, doc.ArtifactRef)
}

type DocumentVerification struct {
	DocumentID string                             `json:"document_id"`
	FullyValid bool                               `json:"fully_valid"`
	Results    map[string]domain.ValidationResult `json:"results"`
}

// VerifyDocument verifies every signature attached to the document,
// walking counter-signature chains from each direct signature down.
// The document is fully valid only when every individual result is
// valid.
func (e *SignatureEngine) VerifyDocument(ctx context.Context, documentID string) (*DocumentVerification, error) {
	queue, err := e.Signatures.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := &DocumentVerification{
		DocumentID: documentID,
		FullyValid: len(queue) > 0,
		Results:    make(map[string]domain.ValidationResult, len(queue)),
	}
	for len(queue) > 0 {
		sig := queue[0]
		queue = queue[1:]
		result, err := e.Verify(ctx, sig.ID)
		if err != nil {
			return nil, err
		}
		out.Results[sig.ID] = *result
		if result.Overall != domain.StatusValid {
			out.FullyValid = false
		}
		children, err := e.Signatures.ListChildren(ctx, sig.ID)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}
	return out, nil
}

func (e *SignatureEngine) notify(ctx context.Context, event domain.Event) {
	if e.Notifier == nil {
		return
	}
	if err := e.Notifier.Notify(ctx, event); err != nil {
		e.logger().Warn("notification dispatch failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func (e *SignatureEngine) appendAudit(ctx context.Context, actorID, action, entityID string, detail map[string]any) {
	if e.Audit == nil {
		return
	}
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: "signature",
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  e.now(),
	}
	if err := e.Audit.Append(ctx, event); err != nil {
		e.logger().Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}
