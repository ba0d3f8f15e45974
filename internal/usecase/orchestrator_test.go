package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"firmaflow/internal/domain"
)

func testClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func buildOrchestrator(reqs *stubRequestStore, docs *stubDocRepo, engine *stubEngine, notifier *stubNotifier) *RequestOrchestrator {
	return &RequestOrchestrator{
		Requests:  reqs,
		Signers:   &stubSignerRepo{store: reqs},
		Documents: docs,
		Engine:    engine,
		Notifier:  notifier,
		Audit:     &stubAudit{},
		Clock:     testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func sequentialRequest() *domain.SignatureRequest {
	return &domain.SignatureRequest{
		ID:          "req-1",
		DocumentID:  "doc-1",
		RequesterID: "owner",
		Flow:        domain.FlowSequential,
		State:       domain.RequestInProgress,
		Signers: []domain.Signer{
			{ID: "s-1", RequestID: "req-1", UserID: "alice", OrderIndex: 1, Mandatory: true, Role: domain.RoleApprover, State: domain.SignerPending},
			{ID: "s-2", RequestID: "req-1", UserID: "bob", OrderIndex: 2, Mandatory: true, Role: domain.RoleApprover, State: domain.SignerPending},
			{ID: "s-3", RequestID: "req-1", UserID: "carol", OrderIndex: 3, Mandatory: false, Role: domain.RoleWitness, State: domain.SignerPending},
		},
	}
}

func TestCreateRequestRejectsBadInput(t *testing.T) {
	o := buildOrchestrator(newStubRequestStore(), newStubDocRepo(), &stubEngine{}, &stubNotifier{})
	cases := []CreateRequestInput{
		{RequesterID: "owner", Flow: domain.FlowParallel, Signers: []SignerSpec{{UserID: "a"}}},
		{DocumentID: "doc-1", Flow: domain.FlowParallel, Signers: []SignerSpec{{UserID: "a"}}},
		{DocumentID: "doc-1", RequesterID: "owner", Flow: domain.FlowParallel},
		{DocumentID: "doc-1", RequesterID: "owner", Flow: "roundrobin", Signers: []SignerSpec{{UserID: "a"}}},
		{DocumentID: "doc-1", RequesterID: "owner", Flow: domain.FlowParallel, Signers: []SignerSpec{{UserID: "a"}, {UserID: "a"}}},
	}
	for i, in := range cases {
		if _, err := o.CreateRequest(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestStartOnlyFromPending(t *testing.T) {
	req := sequentialRequest()
	req.State = domain.RequestPending
	reqs := newStubRequestStore(req)
	notifier := &stubNotifier{}
	o := buildOrchestrator(reqs, newStubDocRepo(), &stubEngine{}, notifier)

	if err := o.Start(context.Background(), "req-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, _ := reqs.GetByID(context.Background(), "req-1")
	if got.State != domain.RequestInProgress {
		t.Fatalf("state = %s, want in_progress", got.State)
	}
	if len(notifier.byType(domain.EventRequestStarted)) != 1 {
		t.Fatalf("expected one request.started event")
	}
	if err := o.Start(context.Background(), "req-1"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second start: got %v, want ErrInvalidState", err)
	}
}

func TestSequentialOutOfTurn(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	o := buildOrchestrator(reqs, newStubDocRepo(), &stubEngine{}, &stubNotifier{})

	_, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "bob", Decision: DecisionSign, CertificateID: "cert-bob"})
	if !errors.Is(err, domain.ErrOutOfTurn) {
		t.Fatalf("got %v, want ErrOutOfTurn", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionSign, CertificateID: "cert-alice"}); err != nil {
		t.Fatalf("first-in-order act: %v", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "bob", Decision: DecisionSign, CertificateID: "cert-bob"}); err != nil {
		t.Fatalf("second-in-order act: %v", err)
	}
}

func TestSequentialCompletesWithoutOptionalSigner(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	docs := newStubDocRepo(&domain.Document{ID: "doc-1", ArtifactRef: "ref-doc"})
	notifier := &stubNotifier{}
	o := buildOrchestrator(reqs, docs, &stubEngine{}, notifier)

	for _, user := range []string{"alice", "bob"} {
		if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: user, Decision: DecisionSign, CertificateID: "cert-" + user}); err != nil {
			t.Fatalf("act %s: %v", user, err)
		}
	}
	got, _ := reqs.GetByID(context.Background(), "req-1")
	if got.State != domain.RequestCompleted {
		t.Fatalf("state = %s, want completed", got.State)
	}
	doc, _ := docs.GetByID(context.Background(), "doc-1")
	if !doc.FullySigned {
		t.Fatalf("document not flagged fully signed")
	}
	if len(notifier.byType(domain.EventRequestCompleted)) != 1 {
		t.Fatalf("expected one request.completed event")
	}
}

func TestParallelSignsInAnyOrder(t *testing.T) {
	req := sequentialRequest()
	req.Flow = domain.FlowParallel
	reqs := newStubRequestStore(req)
	o := buildOrchestrator(reqs, newStubDocRepo(&domain.Document{ID: "doc-1"}), &stubEngine{}, &stubNotifier{})

	for _, user := range []string{"carol", "bob", "alice"} {
		if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: user, Decision: DecisionSign, CertificateID: "cert-" + user}); err != nil {
			t.Fatalf("act %s: %v", user, err)
		}
	}
	got, _ := reqs.GetByID(context.Background(), "req-1")
	if got.State != domain.RequestCompleted {
		t.Fatalf("state = %s, want completed", got.State)
	}
}

func TestMixedGroupsGate(t *testing.T) {
	req := &domain.SignatureRequest{
		ID:          "req-m",
		DocumentID:  "doc-1",
		RequesterID: "owner",
		Flow:        domain.FlowMixed,
		State:       domain.RequestInProgress,
		Signers: []domain.Signer{
			{ID: "m-1", UserID: "alice", OrderIndex: 1, Mandatory: true, State: domain.SignerPending},
			{ID: "m-2", UserID: "bob", OrderIndex: 1, Mandatory: true, State: domain.SignerPending},
			{ID: "m-3", UserID: "carol", OrderIndex: 2, Mandatory: true, State: domain.SignerPending},
		},
	}
	reqs := newStubRequestStore(req)
	o := buildOrchestrator(reqs, newStubDocRepo(&domain.Document{ID: "doc-1"}), &stubEngine{}, &stubNotifier{})

	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-m", UserID: "carol", Decision: DecisionSign, CertificateID: "c"}); !errors.Is(err, domain.ErrOutOfTurn) {
		t.Fatalf("later group acted early: got %v, want ErrOutOfTurn", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-m", UserID: "bob", Decision: DecisionSign, CertificateID: "c"}); err != nil {
		t.Fatalf("group-one bob: %v", err)
	}
	// One of group one still pending keeps group two gated.
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-m", UserID: "carol", Decision: DecisionSign, CertificateID: "c"}); !errors.Is(err, domain.ErrOutOfTurn) {
		t.Fatalf("got %v, want ErrOutOfTurn", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-m", UserID: "alice", Decision: DecisionSign, CertificateID: "c"}); err != nil {
		t.Fatalf("group-one alice: %v", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-m", UserID: "carol", Decision: DecisionSign, CertificateID: "c"}); err != nil {
		t.Fatalf("group-two carol: %v", err)
	}
	got, _ := reqs.GetByID(context.Background(), "req-m")
	if got.State != domain.RequestCompleted {
		t.Fatalf("state = %s, want completed", got.State)
	}
}

func TestMandatoryRejectionCancelsRequest(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	notifier := &stubNotifier{}
	o := buildOrchestrator(reqs, newStubDocRepo(), &stubEngine{}, notifier)

	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionReject, Comment: "wrong figures"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, _ := reqs.GetByID(context.Background(), "req-1")
	if got.State != domain.RequestCancelled {
		t.Fatalf("state = %s, want cancelled", got.State)
	}
	slot := got.SignerForUser("alice")
	if slot.State != domain.SignerRejected || slot.Comment != "wrong figures" {
		t.Fatalf("slot = %+v, want rejected with comment", slot)
	}
	if len(notifier.byType(domain.EventRequestCancelled)) != 1 {
		t.Fatalf("expected one request.cancelled event")
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "bob", Decision: DecisionSign}); !errors.Is(err, domain.ErrRequestNotInProgress) {
		t.Fatalf("act after cancel: got %v, want ErrRequestNotInProgress", err)
	}
}

func TestOptionalRejectionKeepsRequestOpen(t *testing.T) {
	req := sequentialRequest()
	req.Flow = domain.FlowParallel
	reqs := newStubRequestStore(req)
	o := buildOrchestrator(reqs, newStubDocRepo(&domain.Document{ID: "doc-1"}), &stubEngine{}, &stubNotifier{})

	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "carol", Decision: DecisionReject}); err != nil {
		t.Fatalf("optional reject: %v", err)
	}
	got, _ := reqs.GetByID(context.Background(), "req-1")
	if got.State != domain.RequestInProgress {
		t.Fatalf("state = %s, want in_progress", got.State)
	}
	for _, user := range []string{"alice", "bob"} {
		if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: user, Decision: DecisionSign, CertificateID: "c"}); err != nil {
			t.Fatalf("act %s: %v", user, err)
		}
	}
	got, _ = reqs.GetByID(context.Background(), "req-1")
	if got.State != domain.RequestCompleted {
		t.Fatalf("state = %s, want completed after mandatory signers", got.State)
	}
}

func TestActDuplicateAndUnknownSigner(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	o := buildOrchestrator(reqs, newStubDocRepo(&domain.Document{ID: "doc-1"}), &stubEngine{}, &stubNotifier{})

	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "mallory", Decision: DecisionSign}); !errors.Is(err, domain.ErrUnauthorizedSigner) {
		t.Fatalf("unknown signer: got %v, want ErrUnauthorizedSigner", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionSign, CertificateID: "c"}); err != nil {
		t.Fatalf("first act: %v", err)
	}
	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionSign, CertificateID: "c"}); !errors.Is(err, domain.ErrDuplicateSignature) {
		t.Fatalf("second act: got %v, want ErrDuplicateSignature", err)
	}
}

// persistingEngine writes its signatures the way the real engine does,
// so the loser-cleanup path has rows to back out.
type persistingEngine struct {
	sigs *stubSignatureRepo
	docs *stubDocRepo
}

func (e *persistingEngine) Sign(ctx context.Context, cmd SignCommand) (*domain.Signature, error) {
	sig := domain.Signature{ID: "sig-" + cmd.UserID, DocumentID: cmd.DocumentID, SignerID: cmd.UserID}
	if err := e.sigs.Create(ctx, sig); err != nil {
		return nil, err
	}
	if err := e.docs.RecordSignature(ctx, cmd.DocumentID); err != nil {
		return nil, err
	}
	return &sig, nil
}

// contendedSignerRepo hands the slot to a concurrent winner the first
// time a transition is attempted.
type contendedSignerRepo struct {
	inner   SignerRepository
	claimed bool
}

func (r *contendedSignerRepo) TransitionState(ctx context.Context, signerID string, from, to domain.SignerState, comment string, actedAt time.Time) (bool, error) {
	if !r.claimed {
		r.claimed = true
		if _, err := r.inner.TransitionState(ctx, signerID, from, to, "winner", actedAt); err != nil {
			return false, err
		}
		return false, nil
	}
	return r.inner.TransitionState(ctx, signerID, from, to, comment, actedAt)
}

func (r *contendedSignerRepo) Reassign(ctx context.Context, signerID, toUserID string) (bool, error) {
	return r.inner.Reassign(ctx, signerID, toUserID)
}

func TestActLostSlotRaceLeavesNoOrphanSignature(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	docs := newStubDocRepo(&domain.Document{ID: "doc-1", ArtifactRef: "ref-doc"})
	sigs := newStubSignatureRepo()
	o := buildOrchestrator(reqs, docs, &stubEngine{}, &stubNotifier{})
	o.Engine = &persistingEngine{sigs: sigs, docs: docs}
	o.Signatures = sigs
	o.Signers = &contendedSignerRepo{inner: &stubSignerRepo{store: reqs}}

	_, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionSign, CertificateID: "cert-alice"})
	if !errors.Is(err, domain.ErrDuplicateSignature) {
		t.Fatalf("got %v, want ErrDuplicateSignature", err)
	}
	if _, err := sigs.GetByID(context.Background(), "sig-alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("losing signature survived: %v", err)
	}
	doc, _ := docs.GetByID(context.Background(), "doc-1")
	if doc.SignedCount != 0 {
		t.Fatalf("signed count = %d, want 0", doc.SignedCount)
	}
}

func TestActEngineFailureLeavesSlotPending(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	engine := &stubEngine{err: domain.ErrCertificateRevoked}
	o := buildOrchestrator(reqs, newStubDocRepo(), engine, &stubNotifier{})

	if _, err := o.Act(context.Background(), ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionSign, CertificateID: "c"}); !errors.Is(err, domain.ErrCertificateRevoked) {
		t.Fatalf("got %v, want ErrCertificateRevoked", err)
	}
	got, _ := reqs.GetByID(context.Background(), "req-1")
	if got.SignerForUser("alice").State != domain.SignerPending {
		t.Fatalf("failed sign must leave the slot pending")
	}
}

func TestDelegateRules(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	o := buildOrchestrator(reqs, newStubDocRepo(), &stubEngine{}, &stubNotifier{})
	ctx := context.Background()

	if err := o.Delegate(ctx, "req-1", "alice", "alice"); !errors.Is(err, domain.ErrInvalidDelegation) {
		t.Fatalf("self delegation: got %v", err)
	}
	if err := o.Delegate(ctx, "req-1", "alice", "bob"); !errors.Is(err, domain.ErrInvalidDelegation) {
		t.Fatalf("delegation to existing signer: got %v", err)
	}
	if err := o.Delegate(ctx, "req-1", "mallory", "dave"); !errors.Is(err, domain.ErrUnauthorizedSigner) {
		t.Fatalf("delegation by non-signer: got %v", err)
	}
	if err := o.Delegate(ctx, "req-1", "alice", "dave"); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	got, _ := reqs.GetByID(ctx, "req-1")
	slot := got.SignerForUser("dave")
	if slot == nil || slot.OrderIndex != 1 || !slot.Mandatory {
		t.Fatalf("delegated slot lost order or mandatory flag: %+v", slot)
	}
	if _, err := o.Act(ctx, ActInput{RequestID: "req-1", UserID: "dave", Decision: DecisionSign, CertificateID: "c"}); err != nil {
		t.Fatalf("delegate then act: %v", err)
	}
	// Signed slots cannot be delegated.
	if err := o.Delegate(ctx, "req-1", "dave", "erin"); !errors.Is(err, domain.ErrInvalidDelegation) {
		t.Fatalf("delegation of signed slot: got %v", err)
	}
}

func TestCancelRequesterOnlyAndIdempotent(t *testing.T) {
	reqs := newStubRequestStore(sequentialRequest())
	o := buildOrchestrator(reqs, newStubDocRepo(), &stubEngine{}, &stubNotifier{})
	ctx := context.Background()

	if err := o.Cancel(ctx, "req-1", "alice"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-requester cancel: got %v", err)
	}
	if err := o.Cancel(ctx, "req-1", "owner"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := o.Cancel(ctx, "req-1", "owner"); err != nil {
		t.Fatalf("repeated cancel must be a no-op, got %v", err)
	}
	got, _ := reqs.GetByID(ctx, "req-1")
	if got.State != domain.RequestCancelled {
		t.Fatalf("state = %s, want cancelled", got.State)
	}
}

func TestCancelCompletedRequestFails(t *testing.T) {
	req := sequentialRequest()
	req.State = domain.RequestCompleted
	o := buildOrchestrator(newStubRequestStore(req), newStubDocRepo(), &stubEngine{}, &stubNotifier{})
	if err := o.Cancel(context.Background(), "req-1", "owner"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestExpireSweep(t *testing.T) {
	deadline := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	req := sequentialRequest()
	req.Deadline = &deadline
	reqs := newStubRequestStore(req)
	notifier := &stubNotifier{}
	o := buildOrchestrator(reqs, newStubDocRepo(), &stubEngine{}, notifier)
	ctx := context.Background()

	if err := o.ExpireSweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := reqs.GetByID(ctx, "req-1")
	if got.State != domain.RequestExpired {
		t.Fatalf("state = %s, want expired", got.State)
	}
	if _, err := o.Act(ctx, ActInput{RequestID: "req-1", UserID: "alice", Decision: DecisionSign}); !errors.Is(err, domain.ErrRequestNotInProgress) {
		t.Fatalf("act on expired: got %v", err)
	}
	// Second sweep finds nothing in progress and emits nothing new.
	if err := o.ExpireSweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n := len(notifier.byType(domain.EventRequestExpired)); n != 1 {
		t.Fatalf("expired events = %d, want 1", n)
	}
}
