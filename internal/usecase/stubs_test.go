package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"firmaflow/internal/domain"
)

type stubCertRepo struct {
	mu    sync.Mutex
	certs map[string]*domain.Certificate
}

func newStubCertRepo(certs ...*domain.Certificate) *stubCertRepo {
	r := &stubCertRepo{certs: map[string]*domain.Certificate{}}
	for _, c := range certs {
		cc := *c
		r.certs[c.ID] = &cc
	}
	return r
}

func (r *stubCertRepo) GetByID(_ context.Context, id string) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (r *stubCertRepo) GetByFingerprint(_ context.Context, fp string) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.Fingerprint == fp {
			cc := *c
			return &cc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubCertRepo) Create(_ context.Context, cert domain.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certs[cert.ID] = &cert
	return nil
}

func (r *stubCertRepo) TransitionState(_ context.Context, id string, from, to domain.CertificateState, revokedAt *time.Time, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.State != from {
		return false, nil
	}
	c.State = to
	c.RevokedAt = revokedAt
	if reason != "" {
		c.RevocationReason = reason
	}
	return true, nil
}

func (r *stubCertRepo) ListExpiring(_ context.Context, before time.Time) ([]domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Certificate
	for _, c := range r.certs {
		if c.State == domain.CertStateActive && c.ExpiresAt.Before(before) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubCertRepo) MarkExpiryWarned(_ context.Context, id string, threshold int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.ExpiryWarnedDays = threshold
	return nil
}

func (r *stubCertRepo) ListActivePastExpiry(_ context.Context, asOf time.Time) ([]domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Certificate
	for _, c := range r.certs {
		if c.State == domain.CertStateActive && !asOf.Before(c.ExpiresAt) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type stubSignatureRepo struct {
	mu      sync.Mutex
	sigs    map[string]*domain.Signature
	flagged []string
}

func newStubSignatureRepo() *stubSignatureRepo {
	return &stubSignatureRepo{sigs: map[string]*domain.Signature{}}
}

func (r *stubSignatureRepo) Create(_ context.Context, sig domain.Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs[sig.ID] = &sig
	return nil
}

func (r *stubSignatureRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sigs, id)
	return nil
}

func (r *stubSignatureRepo) GetByID(_ context.Context, id string) (*domain.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sigs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ss := *s
	return &ss, nil
}

func (r *stubSignatureRepo) ListByDocument(_ context.Context, documentID string) ([]domain.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Signature
	for _, s := range r.sigs {
		if s.DocumentID == documentID && s.ParentID == "" {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *stubSignatureRepo) ListChildren(_ context.Context, parentID string) ([]domain.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Signature
	for _, s := range r.sigs {
		if s.ParentID == parentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *stubSignatureRepo) SaveResult(_ context.Context, signatureID string, result domain.ValidationResult, needsRecheck bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sigs[signatureID]
	if !ok {
		return domain.ErrNotFound
	}
	res := result
	s.CachedResult = &res
	s.NeedsRecheck = needsRecheck
	return nil
}

func (r *stubSignatureRepo) FlagForRecheck(_ context.Context, certificateID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flagged = append(r.flagged, certificateID)
	var n int64
	for _, s := range r.sigs {
		if s.CertificateID == certificateID {
			s.NeedsRecheck = true
			n++
		}
	}
	return n, nil
}

type stubRequestStore struct {
	mu   sync.Mutex
	reqs map[string]*domain.SignatureRequest
}

func newStubRequestStore(reqs ...*domain.SignatureRequest) *stubRequestStore {
	s := &stubRequestStore{reqs: map[string]*domain.SignatureRequest{}}
	for _, r := range reqs {
		rr := *r
		rr.Signers = append([]domain.Signer(nil), r.Signers...)
		s.reqs[r.ID] = &rr
	}
	return s
}

func (s *stubRequestStore) Create(_ context.Context, req domain.SignatureRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs[req.ID] = &req
	return nil
}

func (s *stubRequestStore) GetByID(_ context.Context, id string) (*domain.SignatureRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rr := *r
	rr.Signers = append([]domain.Signer(nil), r.Signers...)
	return &rr, nil
}

func (s *stubRequestStore) TransitionState(_ context.Context, id string, from, to domain.RequestState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reqs[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if r.State != from {
		return false, nil
	}
	r.State = to
	return true, nil
}

func (s *stubRequestStore) ListInProgressPastDeadline(_ context.Context, asOf time.Time) ([]domain.SignatureRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SignatureRequest
	for _, r := range s.reqs {
		if r.State == domain.RequestInProgress && r.Deadline != nil && asOf.After(*r.Deadline) {
			rr := *r
			rr.Signers = append([]domain.Signer(nil), r.Signers...)
			out = append(out, rr)
		}
	}
	return out, nil
}

// TransitionState / Reassign of the SignerRepository interface operate
// on the signer rows held inside the request store.
func (s *stubRequestStore) SignerTransition(signerID string, from, to domain.SignerState, comment string, actedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reqs {
		for i := range r.Signers {
			if r.Signers[i].ID != signerID {
				continue
			}
			if r.Signers[i].State != from {
				return false, nil
			}
			r.Signers[i].State = to
			r.Signers[i].Comment = comment
			at := actedAt
			r.Signers[i].ActedAt = &at
			return true, nil
		}
	}
	return false, domain.ErrNotFound
}

type stubSignerRepo struct {
	store *stubRequestStore
}

func (r *stubSignerRepo) TransitionState(_ context.Context, signerID string, from, to domain.SignerState, comment string, actedAt time.Time) (bool, error) {
	return r.store.SignerTransition(signerID, from, to, comment, actedAt)
}

func (r *stubSignerRepo) Reassign(_ context.Context, signerID, toUserID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, req := range r.store.reqs {
		for i := range req.Signers {
			if req.Signers[i].ID != signerID {
				continue
			}
			if req.Signers[i].State != domain.SignerPending {
				return false, nil
			}
			req.Signers[i].UserID = toUserID
			return true, nil
		}
	}
	return false, domain.ErrNotFound
}

type stubDocRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newStubDocRepo(docs ...*domain.Document) *stubDocRepo {
	r := &stubDocRepo{docs: map[string]*domain.Document{}}
	for _, d := range docs {
		dd := *d
		r.docs[d.ID] = &dd
	}
	return r
}

func (r *stubDocRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	dd := *d
	return &dd, nil
}

func (r *stubDocRepo) Create(_ context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = &doc
	return nil
}

func (r *stubDocRepo) RecordSignature(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	d.SignedCount++
	return nil
}

func (r *stubDocRepo) RemoveSignature(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.SignedCount > 0 {
		d.SignedCount--
	}
	return nil
}

func (r *stubDocRepo) SetFullySigned(_ context.Context, documentID string, fullySigned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	d.FullySigned = fullySigned
	return nil
}

type stubOracle struct {
	mu        sync.Mutex
	ocsp      domain.RevocationStatus
	ocspErr   error
	ocspDelay time.Duration
	crl       domain.RevocationStatus
	crlErr    error
	ocspCalls int
	crlCalls  int
}

func (o *stubOracle) OCSPCheck(ctx context.Context, _ *domain.Certificate) (domain.RevocationStatus, error) {
	o.mu.Lock()
	o.ocspCalls++
	delay := o.ocspDelay
	status, err := o.ocsp, o.ocspErr
	o.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.RevocationUnknown, ctx.Err()
		}
	}
	return status, err
}

func (o *stubOracle) CRLCheck(_ context.Context, _ *domain.Certificate) (domain.RevocationStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.crlCalls++
	return o.crl, o.crlErr
}

type stubCache struct {
	mu      sync.Mutex
	entries map[string]domain.ValidationOutcome
	deletes []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string]domain.ValidationOutcome{}}
}

func (c *stubCache) Get(_ context.Context, key string) (*domain.ValidationOutcome, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &o, true, nil
}

func (c *stubCache) Put(_ context.Context, key string, outcome domain.ValidationOutcome, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = outcome
	return nil
}

func (c *stubCache) Delete(_ context.Context, keyPrefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, keyPrefix)
	for k := range c.entries {
		if strings.HasPrefix(k, keyPrefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

type stubNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *stubNotifier) Notify(_ context.Context, event domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *stubNotifier) byType(t domain.EventType) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *stubAudit) Append(_ context.Context, event domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

type stubArtifacts struct {
	mu    sync.Mutex
	blobs map[string][]byte
	next  int
}

func newStubArtifacts() *stubArtifacts {
	return &stubArtifacts{blobs: map[string][]byte{}}
}

func (a *stubArtifacts) Save(_ context.Context, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	ref := fmt.Sprintf("ref-%d", a.next)
	a.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (a *stubArtifacts) Load(_ context.Context, ref string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blobs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (a *stubArtifacts) put(ref string, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[ref] = append([]byte(nil), data...)
}

type stubContainers struct {
	buildErr  error
	verifyErr error
	built     []ContainerBuildInput
}

func (c *stubContainers) Build(_ context.Context, in ContainerBuildInput) (*ContainerArtifact, error) {
	if c.buildErr != nil {
		return nil, c.buildErr
	}
	c.built = append(c.built, in)
	value := append([]byte("sig:"), in.ContentDigest...)
	return &ContainerArtifact{Bytes: value, SignatureValue: value}, nil
}

func (c *stubContainers) Verify(_ context.Context, _ []byte, _ ContainerVerifyInput) error {
	return c.verifyErr
}

type stubTSA struct {
	err   error
	calls int
	when  time.Time
}

func (t *stubTSA) Timestamp(_ context.Context, digest []byte, _ domain.HashAlgorithm) (*TimestampToken, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return &TimestampToken{Raw: append([]byte("tst:"), digest...), GenTime: t.when, SerialNo: "1"}, nil
}

type stubValidity struct {
	outcome domain.ValidationOutcome
	fn      func(cert *domain.Certificate, at time.Time) domain.ValidationOutcome
}

func (v *stubValidity) CheckValidity(_ context.Context, cert *domain.Certificate, at time.Time) domain.ValidationOutcome {
	if v.fn != nil {
		return v.fn(cert, at)
	}
	return v.outcome
}

type stubPolicy struct {
	allow bool
	calls int
}

func (p *stubPolicy) Evaluate(_ context.Context, _ domain.PolicyInput) (domain.PolicyEvaluation, error) {
	p.calls++
	return domain.PolicyEvaluation{Result: domain.PolicyResult{Allow: p.allow}}, nil
}

type stubEngine struct {
	mu   sync.Mutex
	err  error
	sigs []SignCommand
}

func (e *stubEngine) Sign(_ context.Context, cmd SignCommand) (*domain.Signature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.sigs = append(e.sigs, cmd)
	return &domain.Signature{ID: fmt.Sprintf("sig-%d", len(e.sigs)), DocumentID: cmd.DocumentID, SignerID: cmd.UserID}, nil
}
