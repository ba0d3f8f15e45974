package usecase

import (
	"context"
	"time"

	"firmaflow/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ActDecision string

const (
	DecisionSign   ActDecision = "sign"
	DecisionReject ActDecision = "reject"
)

// SignCommand is what the orchestrator hands to the signature engine
// when an eligible signer signs.
type SignCommand struct {
	DocumentID    string
	UserID        string
	CertificateID string
	Options       SignOptions
}

type SignerEngine interface {
	Sign(ctx context.Context, cmd SignCommand) (*domain.Signature, error)
}

// RequestOrchestrator drives the multi-signer request state machine:
// turn order per flow type, completion, rejection, cancellation and
// deadline expiration. Every state write is a CAS on the previously
// observed state.
type RequestOrchestrator struct {
	Requests   RequestRepository
	Signers    SignerRepository
	Documents  DocumentRepository
	Signatures SignatureRepository
	Engine     SignerEngine
	Notifier   NotificationGateway
	Audit      AuditLog
	Clock      Clock
	Log        *zap.Logger
}

func (o *RequestOrchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o *RequestOrchestrator) logger() *zap.Logger {
	if o.Log != nil {
		return o.Log
	}
	return zap.NewNop()
}

type SignerSpec struct {
	UserID     string
	OrderIndex int
	Mandatory  bool
	Role       domain.SignerRole
}

type CreateRequestInput struct {
	DocumentID  string
	RequesterID string
	Title       string
	Flow        domain.FlowType
	Priority    int
	Deadline    *time.Time
	Signers     []SignerSpec
}

func (o *RequestOrchestrator) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.SignatureRequest, error) {
	if in.DocumentID == "" || in.RequesterID == "" || len(in.Signers) == 0 {
		return nil, domain.ErrInvalidInput
	}
	switch in.Flow {
	case domain.FlowSequential, domain.FlowParallel, domain.FlowMixed:
	default:
		return nil, domain.ErrInvalidInput
	}
	seen := map[string]struct{}{}
	for _, s := range in.Signers {
		if s.UserID == "" {
			return nil, domain.ErrInvalidInput
		}
		if _, dup := seen[s.UserID]; dup {
			return nil, domain.ErrInvalidInput
		}
		seen[s.UserID] = struct{}{}
	}

	now := o.now()
	req := domain.SignatureRequest{
		ID:          uuid.NewString(),
		DocumentID:  in.DocumentID,
		RequesterID: in.RequesterID,
		Title:       in.Title,
		Flow:        in.Flow,
		Priority:    in.Priority,
		Deadline:    in.Deadline,
		State:       domain.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, s := range in.Signers {
		role := s.Role
		if role == "" {
			role = domain.RoleApprover
		}
		req.Signers = append(req.Signers, domain.Signer{
			ID:         uuid.NewString(),
			RequestID:  req.ID,
			UserID:     s.UserID,
			OrderIndex: s.OrderIndex,
			Mandatory:  s.Mandatory,
			Role:       role,
			State:      domain.SignerPending,
		})
	}
	if err := o.Requests.Create(ctx, req); err != nil {
		return nil, err
	}
	o.appendAudit(ctx, in.RequesterID, "request.create", req.ID, map[string]any{"flow": in.Flow, "signers": len(req.Signers)})
	return &req, nil
}

// Start moves a pending request into progress.
func (o *RequestOrchestrator) Start(ctx context.Context, requestID string) error {
	req, err := o.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.State != domain.RequestPending {
		return domain.ErrInvalidState
	}
	swapped, err := o.Requests.TransitionState(ctx, requestID, domain.RequestPending, domain.RequestInProgress)
	if err != nil {
		return err
	}
	if !swapped {
		return domain.ErrInvalidState
	}
	o.notify(ctx, domain.Event{
		Type:       domain.EventRequestStarted,
		Recipients: signerUserIDs(req.Signers),
		Payload:    map[string]any{"request_id": requestID},
		OccurredAt: o.now(),
	})
	o.appendAudit(ctx, req.RequesterID, "request.start", requestID, nil)
	return nil
}

type ActInput struct {
	RequestID     string
	UserID        string
	Decision      ActDecision
	CertificateID string
	Comment       string
	Options       SignOptions
}

// Act executes one signer's decision. Eligibility is evaluated against
// freshly read state, and the signer slot write is a CAS that must find
// the slot still pending, so two racing acts resolve to exactly one
// winner.
func (o *RequestOrchestrator) Act(ctx context.Context, in ActInput) (*domain.Signature, error) {
	req, err := o.Requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.State != domain.RequestInProgress {
		return nil, domain.ErrRequestNotInProgress
	}
	slot := req.SignerForUser(in.UserID)
	if slot == nil {
		return nil, domain.ErrUnauthorizedSigner
	}
	if slot.State != domain.SignerPending {
		return nil, domain.ErrDuplicateSignature
	}
	if !req.EligibleToAct(*slot) {
		return nil, domain.ErrOutOfTurn
	}

	now := o.now()
	switch in.Decision {
	case DecisionReject:
		swapped, err := o.Signers.TransitionState(ctx, slot.ID, domain.SignerPending, domain.SignerRejected, in.Comment, now)
		if err != nil {
			return nil, err
		}
		if !swapped {
			return nil, domain.ErrDuplicateSignature
		}
		o.appendAudit(ctx, in.UserID, "request.reject", req.ID, map[string]any{"signer_id": slot.ID})
		if slot.Mandatory {
			if swapped, err := o.Requests.TransitionState(ctx, req.ID, domain.RequestInProgress, domain.RequestCancelled); err == nil && swapped {
				o.notify(ctx, domain.Event{
					Type:       domain.EventRequestCancelled,
					Recipients: append(signerUserIDs(req.Signers), req.RequesterID),
					Payload:    map[string]any{"request_id": req.ID, "rejected_by": in.UserID, "comment": in.Comment},
					OccurredAt: now,
				})
			}
		}
		return nil, nil

	case DecisionSign:
		if o.Engine == nil {
			return nil, domain.ErrKeyUnavailable
		}
		opts := in.Options
		opts.Role = slot.Role
		opts.Mandatory = slot.Mandatory
		sig, err := o.Engine.Sign(ctx, SignCommand{
			DocumentID:    req.DocumentID,
			UserID:        in.UserID,
			CertificateID: in.CertificateID,
			Options:       opts,
		})
		if err != nil {
			return nil, err
		}
		swapped, err := o.Signers.TransitionState(ctx, slot.ID, domain.SignerPending, domain.SignerSigned, in.Comment, now)
		if err != nil {
			return nil, err
		}
		if !swapped {
			// The slot was claimed while the engine was signing. The
			// losing signature must not survive, so back out the row
			// and the document's signed-count before rejecting.
			o.logger().Warn("signer slot lost race after signing", zap.String("signer_id", slot.ID), zap.String("signature_id", sig.ID))
			if o.Signatures != nil {
				if err := o.Signatures.Delete(ctx, sig.ID); err != nil {
					o.logger().Warn("failed to back out losing signature", zap.String("signature_id", sig.ID), zap.Error(err))
				}
			}
			if o.Documents != nil {
				if err := o.Documents.RemoveSignature(ctx, req.DocumentID); err != nil {
					o.logger().Warn("failed to revert document signed count", zap.String("document_id", req.DocumentID), zap.Error(err))
				}
			}
			return nil, domain.ErrDuplicateSignature
		}
		o.appendAudit(ctx, in.UserID, "request.sign", req.ID, map[string]any{"signer_id": slot.ID, "signature_id": sig.ID})
		if err := o.evaluateCompletion(ctx, req.ID); err != nil {
			o.logger().Warn("completion evaluation failed", zap.String("request_id", req.ID), zap.Error(err))
		}
		return sig, nil

	default:
		return nil, domain.ErrInvalidInput
	}
}

// evaluateCompletion re-reads the request and completes it once every
// mandatory signer has signed. Idempotent under concurrent callers: the
// CAS only fires for the first.
func (o *RequestOrchestrator) evaluateCompletion(ctx context.Context, requestID string) error {
	req, err := o.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.State != domain.RequestInProgress || !req.AllMandatorySigned() {
		return nil
	}
	swapped, err := o.Requests.TransitionState(ctx, requestID, domain.RequestInProgress, domain.RequestCompleted)
	if err != nil {
		return err
	}
	if !swapped {
		return nil
	}
	if o.Documents != nil {
		if err := o.Documents.SetFullySigned(ctx, req.DocumentID, true); err != nil {
			o.logger().Warn("failed to flag document fully signed", zap.String("document_id", req.DocumentID), zap.Error(err))
		}
	}
	o.notify(ctx, domain.Event{
		Type:       domain.EventRequestCompleted,
		Recipients: append(signerUserIDs(req.Signers), req.RequesterID),
		Payload:    map[string]any{"request_id": requestID, "document_id": req.DocumentID},
		OccurredAt: o.now(),
	})
	return nil
}

// Delegate reassigns a still-pending slot to another user, keeping its
// order, role and mandatory flag.
func (o *RequestOrchestrator) Delegate(ctx context.Context, requestID, fromUserID, toUserID string) error {
	if toUserID == "" || toUserID == fromUserID {
		return domain.ErrInvalidDelegation
	}
	req, err := o.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.State.Terminal() {
		return domain.ErrInvalidDelegation
	}
	slot := req.SignerForUser(fromUserID)
	if slot == nil {
		return domain.ErrUnauthorizedSigner
	}
	if slot.State != domain.SignerPending {
		return domain.ErrInvalidDelegation
	}
	if existing := req.SignerForUser(toUserID); existing != nil {
		return domain.ErrInvalidDelegation
	}
	swapped, err := o.Signers.Reassign(ctx, slot.ID, toUserID)
	if err != nil {
		return err
	}
	if !swapped {
		return domain.ErrInvalidDelegation
	}
	o.appendAudit(ctx, fromUserID, "request.delegate", requestID, map[string]any{"to": toUserID, "signer_id": slot.ID})
	return nil
}

// Cancel aborts a request before completion. Requester only.
func (o *RequestOrchestrator) Cancel(ctx context.Context, requestID, actorID string) error {
	req, err := o.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequesterID != actorID {
		return domain.ErrUnauthorized
	}
	if req.State == domain.RequestCancelled {
		return nil
	}
	if req.State.Terminal() {
		return domain.ErrInvalidState
	}
	swapped, err := o.Requests.TransitionState(ctx, requestID, req.State, domain.RequestCancelled)
	if err != nil {
		return err
	}
	if !swapped {
		return domain.ErrInvalidState
	}
	o.notify(ctx, domain.Event{
		Type:       domain.EventRequestCancelled,
		Recipients: append(signerUserIDs(req.Signers), req.RequesterID),
		Payload:    map[string]any{"request_id": requestID, "cancelled_by": actorID},
		OccurredAt: o.now(),
	})
	o.appendAudit(ctx, actorID, "request.cancel", requestID, nil)
	return nil
}

// ExpireSweep transitions every in-progress request past its deadline to
// Expired. Pending signers become ineligible through the state check in
// Act; their rows are left untouched. Concurrent sweeps are idempotent
// because the transition is a CAS.
func (o *RequestOrchestrator) ExpireSweep(ctx context.Context) error {
	now := o.now()
	overdue, err := o.Requests.ListInProgressPastDeadline(ctx, now)
	if err != nil {
		return err
	}
	for _, req := range overdue {
		swapped, err := o.Requests.TransitionState(ctx, req.ID, domain.RequestInProgress, domain.RequestExpired)
		if err != nil {
			o.logger().Warn("expire transition failed", zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		if !swapped {
			continue
		}
		o.notify(ctx, domain.Event{
			Type:       domain.EventRequestExpired,
			Recipients: append(signerUserIDs(req.Signers), req.RequesterID),
			Payload:    map[string]any{"request_id": req.ID, "deadline": req.Deadline},
			OccurredAt: now,
		})
	}
	return nil
}

// RunExpirySweeper loops ExpireSweep until the context ends.
func (o *RequestOrchestrator) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.ExpireSweep(ctx); err != nil {
				o.logger().Warn("request expiry sweep failed", zap.Error(err))
			}
		}
	}
}

func (o *RequestOrchestrator) notify(ctx context.Context, event domain.Event) {
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Notify(ctx, event); err != nil {
		o.logger().Warn("notification dispatch failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func (o *RequestOrchestrator) appendAudit(ctx context.Context, actorID, action, entityID string, detail map[string]any) {
	if o.Audit == nil {
		return
	}
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: "signature_request",
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  o.now(),
	}
	if err := o.Audit.Append(ctx, event); err != nil {
		o.logger().Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func signerUserIDs(signers []domain.Signer) []string {
	out := make([]string, 0, len(signers))
	for _, s := range signers {
		out = append(out, s.UserID)
	}
	return out
}
