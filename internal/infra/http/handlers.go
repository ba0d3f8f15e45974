package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CertificateReader interface {
	GetByID(ctx context.Context, id string) (*domain.Certificate, error)
}

type RequestReader interface {
	GetByID(ctx context.Context, id string) (*domain.SignatureRequest, error)
}

type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Create(ctx context.Context, doc domain.Document) error
}

type AuditReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditEvent, error)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type issueRequest struct {
	OwnerID           string   `json:"owner_id"`
	CertificateBase64 string   `json:"certificate_base64"`
	Class             string   `json:"class,omitempty"`
	Usages            []string `json:"usages,omitempty"`
}

type importRequest struct {
	OwnerID     string `json:"owner_id"`
	BytesBase64 string `json:"bytes_base64"`
	Password    string `json:"password,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type renewRequest struct {
	CertificateBase64 string   `json:"certificate_base64,omitempty"`
	NewExpiry         string   `json:"new_expiry,omitempty"`
	Class             string   `json:"class,omitempty"`
	Usages            []string `json:"usages,omitempty"`
}

type certificateResponse struct {
	ID               string   `json:"id"`
	OwnerID          string   `json:"owner_id"`
	SerialNumber     string   `json:"serial_number,omitempty"`
	IssuerDN         string   `json:"issuer_dn,omitempty"`
	SubjectDN        string   `json:"subject_dn,omitempty"`
	Algorithm        string   `json:"algorithm,omitempty"`
	KeyBits          int      `json:"key_bits,omitempty"`
	Fingerprint      string   `json:"fingerprint"`
	IssuedAt         string   `json:"issued_at,omitempty"`
	ExpiresAt        string   `json:"expires_at,omitempty"`
	State            string   `json:"state"`
	Class            string   `json:"class"`
	Usages           []string `json:"usages,omitempty"`
	PredecessorID    string   `json:"predecessor_id,omitempty"`
	RevokedAt        string   `json:"revoked_at,omitempty"`
	RevocationReason string   `json:"revocation_reason,omitempty"`
}

type documentRequest struct {
	BytesBase64 string `json:"bytes_base64"`
}

type documentResponse struct {
	ID          string `json:"id"`
	ArtifactRef string `json:"artifact_ref"`
	SignedCount int    `json:"signed_count"`
	FullySigned bool   `json:"fully_signed"`
}

type signerSpecRequest struct {
	UserID     string `json:"user_id"`
	OrderIndex int    `json:"order_index"`
	Mandatory  bool   `json:"mandatory"`
	Role       string `json:"role,omitempty"`
}

type createRequestRequest struct {
	DocumentID  string              `json:"document_id"`
	RequesterID string              `json:"requester_id"`
	Title       string              `json:"title,omitempty"`
	Flow        string              `json:"flow"`
	Priority    int                 `json:"priority,omitempty"`
	Deadline    string              `json:"deadline,omitempty"`
	Signers     []signerSpecRequest `json:"signers"`
}

type signOptionsRequest struct {
	Container        string `json:"container,omitempty"`
	Level            string `json:"level,omitempty"`
	Hash             string `json:"hash,omitempty"`
	IncludeTimestamp bool   `json:"include_timestamp,omitempty"`
	RequireLevel     bool   `json:"require_level,omitempty"`
	PolicyOID        string `json:"policy_oid,omitempty"`
}

type actRequest struct {
	UserID        string              `json:"user_id"`
	Decision      string              `json:"decision"`
	CertificateID string              `json:"certificate_id,omitempty"`
	Comment       string              `json:"comment,omitempty"`
	Options       *signOptionsRequest `json:"options,omitempty"`
}

type delegateRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

type cancelRequest struct {
	ActorID string `json:"actor_id"`
}

type countersignRequest struct {
	UserID        string              `json:"user_id"`
	CertificateID string              `json:"certificate_id"`
	Options       *signOptionsRequest `json:"options,omitempty"`
}

type signerResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	OrderIndex int    `json:"order_index"`
	Mandatory  bool   `json:"mandatory"`
	Role       string `json:"role,omitempty"`
	State      string `json:"state"`
	Comment    string `json:"comment,omitempty"`
	ActedAt    string `json:"acted_at,omitempty"`
}

type requestResponse struct {
	ID          string           `json:"id"`
	DocumentID  string           `json:"document_id"`
	RequesterID string           `json:"requester_id"`
	Title       string           `json:"title,omitempty"`
	Flow        string           `json:"flow"`
	Priority    int              `json:"priority,omitempty"`
	Deadline    string           `json:"deadline,omitempty"`
	State       string           `json:"state"`
	Signers     []signerResponse `json:"signers"`
}

type signatureResponse struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	SignerID      string `json:"signer_id"`
	CertificateID string `json:"certificate_id"`
	Container     string `json:"container"`
	Level         string `json:"level"`
	Hash          string `json:"hash"`
	SignedAt      string `json:"signed_at"`
	Digest        string `json:"digest"`
	ArtifactRef   string `json:"artifact_ref"`
	ParentID      string `json:"parent_id,omitempty"`
	TimestampAt   string `json:"timestamp_at,omitempty"`
}

type actResponse struct {
	RequestID string             `json:"request_id"`
	Decision  string             `json:"decision"`
	Signature *signatureResponse `json:"signature,omitempty"`
}

type auditEventResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

func (s *Server) handleIssueCertificate(c *gin.Context) {
	if s.lifecycle == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.CertificateBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid certificate encoding")
		return
	}
	cert, err := s.lifecycle.Issue(c.Request.Context(), usecase.IssueSpec{
		OwnerID: req.OwnerID,
		Raw:     raw,
		Class:   domain.CertificateClass(req.Class),
		Usages:  parseUsages(req.Usages),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildCertificateResponse(*cert))
}

func (s *Server) handleImportCertificate(c *gin.Context) {
	if s.lifecycle == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.BytesBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid certificate encoding")
		return
	}
	cert, err := s.lifecycle.Import(c.Request.Context(), req.OwnerID, raw, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildCertificateResponse(*cert))
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	if s.certs == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	cert, err := s.certs.GetByID(c.Request.Context(), c.Param("cert_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildCertificateResponse(*cert))
}

func (s *Server) handleCertificateValidity(c *gin.Context) {
	if s.lifecycle == nil || s.certs == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	cert, err := s.certs.GetByID(c.Request.Context(), c.Param("cert_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	outcome := s.lifecycle.CheckValidity(c.Request.Context(), cert, time.Now().UTC())
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleRevokeCertificate(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.lifecycle == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if err := s.lifecycle.Revoke(c.Request.Context(), c.Param("cert_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSuspendCertificate(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.lifecycle == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if err := s.lifecycle.Suspend(c.Request.Context(), c.Param("cert_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReinstateCertificate(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.lifecycle == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if err := s.lifecycle.Reinstate(c.Request.Context(), c.Param("cert_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRenewCertificate(c *gin.Context) {
	if s.lifecycle == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	opts := usecase.RenewOptions{
		Class:  domain.CertificateClass(req.Class),
		Usages: parseUsages(req.Usages),
	}
	if req.CertificateBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.CertificateBase64)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid certificate encoding")
			return
		}
		opts.Raw = raw
	}
	if req.NewExpiry != "" {
		parsed, err := time.Parse(time.RFC3339, req.NewExpiry)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid new expiry")
			return
		}
		opts.NewExpiry = parsed.UTC()
	}
	cert, err := s.lifecycle.Renew(c.Request.Context(), c.Param("cert_id"), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildCertificateResponse(*cert))
}

func (s *Server) handleCreateDocument(c *gin.Context) {
	if s.documents == nil || s.artifacts == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.BytesBase64)
	if err != nil || len(data) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid document encoding")
		return
	}
	ref, err := s.artifacts.Save(c.Request.Context(), data)
	if err != nil {
		writeError(c, err)
		return
	}
	doc := domain.Document{
		ID:          uuid.NewString(),
		ArtifactRef: ref,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.documents.Create(c.Request.Context(), doc); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildDocumentResponse(doc))
}

func (s *Server) handleGetDocument(c *gin.Context) {
	if s.documents == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	doc, err := s.documents.GetByID(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildDocumentResponse(*doc))
}

func (s *Server) handleCreateRequest(c *gin.Context) {
	if s.orchestrator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	var deadline *time.Time
	if req.Deadline != "" {
		parsed, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid deadline")
			return
		}
		parsed = parsed.UTC()
		deadline = &parsed
	}
	signers := make([]usecase.SignerSpec, 0, len(req.Signers))
	for _, sp := range req.Signers {
		signers = append(signers, usecase.SignerSpec{
			UserID:     sp.UserID,
			OrderIndex: sp.OrderIndex,
			Mandatory:  sp.Mandatory,
			Role:       domain.SignerRole(sp.Role),
		})
	}
	created, err := s.orchestrator.CreateRequest(c.Request.Context(), usecase.CreateRequestInput{
		DocumentID:  req.DocumentID,
		RequesterID: req.RequesterID,
		Title:       req.Title,
		Flow:        domain.FlowType(req.Flow),
		Priority:    req.Priority,
		Deadline:    deadline,
		Signers:     signers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRequestResponse(*created))
}

func (s *Server) handleGetRequest(c *gin.Context) {
	if s.requests == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	req, err := s.requests.GetByID(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRequestResponse(*req))
}

func (s *Server) handleStartRequest(c *gin.Context) {
	if s.orchestrator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if err := s.orchestrator.Start(c.Request.Context(), c.Param("request_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAct(c *gin.Context) {
	if s.orchestrator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req actRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	sig, err := s.orchestrator.Act(c.Request.Context(), usecase.ActInput{
		RequestID:     c.Param("request_id"),
		UserID:        req.UserID,
		Decision:      usecase.ActDecision(req.Decision),
		CertificateID: req.CertificateID,
		Comment:       req.Comment,
		Options:       parseSignOptions(req.Options),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := actResponse{
		RequestID: c.Param("request_id"),
		Decision:  req.Decision,
	}
	if sig != nil {
		resp := buildSignatureResponse(*sig)
		out.Signature = &resp
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDelegate(c *gin.Context) {
	if s.orchestrator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req delegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if err := s.orchestrator.Delegate(c.Request.Context(), c.Param("request_id"), req.FromUserID, req.ToUserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCancelRequest(c *gin.Context) {
	if s.orchestrator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if err := s.orchestrator.Cancel(c.Request.Context(), c.Param("request_id"), req.ActorID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCountersign(c *gin.Context) {
	if s.engine == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req countersignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	sig, err := s.engine.Countersign(c.Request.Context(), c.Param("signature_id"), usecase.SignCommand{
		UserID:        req.UserID,
		CertificateID: req.CertificateID,
		Options:       parseSignOptions(req.Options),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildSignatureResponse(*sig))
}

func (s *Server) handleVerifySignature(c *gin.Context) {
	if s.engine == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	result, err := s.engine.Verify(c.Request.Context(), c.Param("signature_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerifyDocument(c *gin.Context) {
	if s.engine == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	result, err := s.engine.VerifyDocument(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.audit == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid limit")
			return
		}
		limit = parsed
	}
	events, err := s.audit.ListByEntity(c.Request.Context(), c.Param("entity_type"), c.Param("entity_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventResponse{
			ID:         ev.ID,
			ActorID:    ev.ActorID,
			Action:     ev.Action,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Detail:     ev.Detail,
			CreatedAt:  ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func parseUsages(raw []string) []domain.KeyUsage {
	out := make([]domain.KeyUsage, 0, len(raw))
	for _, u := range raw {
		out = append(out, domain.KeyUsage(u))
	}
	return out
}

func parseSignOptions(raw *signOptionsRequest) usecase.SignOptions {
	if raw == nil {
		return usecase.SignOptions{}
	}
	return usecase.SignOptions{
		Container:        domain.ContainerType(raw.Container),
		Level:            domain.SignatureLevel(raw.Level),
		Hash:             domain.HashAlgorithm(raw.Hash),
		IncludeTimestamp: raw.IncludeTimestamp,
		RequireLevel:     raw.RequireLevel,
		PolicyOID:        raw.PolicyOID,
	}
}

func buildCertificateResponse(cert domain.Certificate) certificateResponse {
	out := certificateResponse{
		ID:               cert.ID,
		OwnerID:          cert.OwnerID,
		SerialNumber:     cert.SerialNumber,
		IssuerDN:         cert.IssuerDN,
		SubjectDN:        cert.SubjectDN,
		Algorithm:        cert.Algorithm,
		KeyBits:          cert.KeyBits,
		Fingerprint:      cert.Fingerprint,
		State:            string(cert.State),
		Class:            string(cert.Class),
		PredecessorID:    cert.PredecessorID,
		RevocationReason: cert.RevocationReason,
	}
	if !cert.IssuedAt.IsZero() {
		out.IssuedAt = cert.IssuedAt.UTC().Format(time.RFC3339)
	}
	if !cert.ExpiresAt.IsZero() {
		out.ExpiresAt = cert.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if cert.RevokedAt != nil {
		out.RevokedAt = cert.RevokedAt.UTC().Format(time.RFC3339)
	}
	for _, u := range cert.Usages {
		out.Usages = append(out.Usages, string(u))
	}
	return out
}

func buildDocumentResponse(doc domain.Document) documentResponse {
	return documentResponse{
		ID:          doc.ID,
		ArtifactRef: doc.ArtifactRef,
		SignedCount: doc.SignedCount,
		FullySigned: doc.FullySigned,
	}
}

func buildRequestResponse(req domain.SignatureRequest) requestResponse {
	out := requestResponse{
		ID:          req.ID,
		DocumentID:  req.DocumentID,
		RequesterID: req.RequesterID,
		Title:       req.Title,
		Flow:        string(req.Flow),
		Priority:    req.Priority,
		State:       string(req.State),
		Signers:     make([]signerResponse, 0, len(req.Signers)),
	}
	if req.Deadline != nil {
		out.Deadline = req.Deadline.UTC().Format(time.RFC3339)
	}
	for _, sg := range req.Signers {
		sr := signerResponse{
			ID:         sg.ID,
			UserID:     sg.UserID,
			OrderIndex: sg.OrderIndex,
			Mandatory:  sg.Mandatory,
			Role:       string(sg.Role),
			State:      string(sg.State),
			Comment:    sg.Comment,
		}
		if sg.ActedAt != nil {
			sr.ActedAt = sg.ActedAt.UTC().Format(time.RFC3339)
		}
		out.Signers = append(out.Signers, sr)
	}
	return out
}

func buildSignatureResponse(sig domain.Signature) signatureResponse {
	out := signatureResponse{
		ID:            sig.ID,
		DocumentID:    sig.DocumentID,
		SignerID:      sig.SignerID,
		CertificateID: sig.CertificateID,
		Container:     string(sig.Container),
		Level:         string(sig.Level),
		Hash:          string(sig.Hash),
		SignedAt:      sig.SignedAt.UTC().Format(time.RFC3339),
		Digest:        sig.Digest,
		ArtifactRef:   sig.ArtifactRef,
		ParentID:      sig.ParentID,
	}
	if sig.TimestampAt != nil {
		out.TimestampAt = sig.TimestampAt.UTC().Format(time.RFC3339)
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrMalformedCertificate):
		status, code = http.StatusBadRequest, "MALFORMED_CERTIFICATE"
	case errors.Is(err, domain.ErrInvalidDelegation):
		status, code = http.StatusBadRequest, "INVALID_DELEGATION"
	case errors.Is(err, domain.ErrAlreadyRegistered):
		status, code = http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrCertificateRevoked):
		status, code = http.StatusConflict, "CERTIFICATE_REVOKED"
	case errors.Is(err, domain.ErrCertificateExpired):
		status, code = http.StatusConflict, "CERTIFICATE_EXPIRED"
	case errors.Is(err, domain.ErrCertificateNotYetValid):
		status, code = http.StatusConflict, "CERTIFICATE_NOT_YET_VALID"
	case errors.Is(err, domain.ErrCertificateNotUsable):
		status, code = http.StatusConflict, "CERTIFICATE_NOT_USABLE"
	case errors.Is(err, domain.ErrUsageNotPermitted):
		status, code = http.StatusForbidden, "USAGE_NOT_PERMITTED"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrUnauthorizedSigner):
		status, code = http.StatusForbidden, "UNAUTHORIZED_SIGNER"
	case errors.Is(err, domain.ErrRevocationUnavailable):
		status, code = http.StatusConflict, "REVOCATION_UNAVAILABLE"
	case errors.Is(err, domain.ErrOutOfTurn):
		status, code = http.StatusConflict, "OUT_OF_TURN"
	case errors.Is(err, domain.ErrDuplicateSignature):
		status, code = http.StatusConflict, "DUPLICATE_SIGNATURE"
	case errors.Is(err, domain.ErrRequestNotInProgress):
		status, code = http.StatusConflict, "REQUEST_NOT_IN_PROGRESS"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrLevelUnattainable):
		status, code = http.StatusConflict, "LEVEL_UNATTAINABLE"
	case errors.Is(err, domain.ErrDocumentModified):
		status, code = http.StatusConflict, "DOCUMENT_MODIFIED"
	case errors.Is(err, domain.ErrSignatureCorrupted):
		status, code = http.StatusConflict, "SIGNATURE_CORRUPTED"
	case errors.Is(err, domain.ErrTimestampUnavailable):
		status, code = http.StatusServiceUnavailable, "TIMESTAMP_UNAVAILABLE"
	case errors.Is(err, domain.ErrKeyUnavailable):
		status, code = http.StatusServiceUnavailable, "KEY_UNAVAILABLE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
