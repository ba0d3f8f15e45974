package db

import (
	"context"
	"errors"
	"time"

	"firmaflow/internal/domain"

	"gorm.io/gorm"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create stores the request and its signer rows in one transaction.
func (r *RequestRepository) Create(ctx context.Context, req domain.SignatureRequest) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := requestToModel(req)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		for _, s := range req.Signers {
			sm := signerToModel(s)
			if err := tx.Create(&sm).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.SignatureRequest, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignatureRequestModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var signers []SignerModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		Order("order_index asc, user_id asc").
		Find(&signers).Error; err != nil {
		return nil, err
	}
	req := requestFromModel(model)
	for _, s := range signers {
		req.Signers = append(req.Signers, signerFromModel(s))
	}
	return req, nil
}

func (r *RequestRepository) TransitionState(ctx context.Context, id string, from, to domain.RequestState) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	tx := r.db.WithContext(ctx).
		Model(&SignatureRequestModel{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(map[string]any{"state": string(to), "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *RequestRepository) ListInProgressPastDeadline(ctx context.Context, asOf time.Time) ([]domain.SignatureRequest, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SignatureRequestModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND deadline IS NOT NULL AND deadline < ?", string(domain.RequestInProgress), asOf).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SignatureRequest, 0, len(models))
	for _, m := range models {
		req, err := r.GetByID(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

func requestToModel(req domain.SignatureRequest) SignatureRequestModel {
	return SignatureRequestModel{
		ID:          req.ID,
		DocumentID:  req.DocumentID,
		RequesterID: req.RequesterID,
		Title:       req.Title,
		Flow:        string(req.Flow),
		Priority:    req.Priority,
		Deadline:    req.Deadline,
		State:       string(req.State),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func requestFromModel(model SignatureRequestModel) *domain.SignatureRequest {
	return &domain.SignatureRequest{
		ID:          model.ID,
		DocumentID:  model.DocumentID,
		RequesterID: model.RequesterID,
		Title:       model.Title,
		Flow:        domain.FlowType(model.Flow),
		Priority:    model.Priority,
		Deadline:    model.Deadline,
		State:       domain.RequestState(model.State),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func signerToModel(s domain.Signer) SignerModel {
	return SignerModel{
		ID:         s.ID,
		RequestID:  s.RequestID,
		UserID:     s.UserID,
		OrderIndex: s.OrderIndex,
		Mandatory:  s.Mandatory,
		Role:       string(s.Role),
		State:      string(s.State),
		Comment:    s.Comment,
		ActedAt:    s.ActedAt,
	}
}

func signerFromModel(model SignerModel) domain.Signer {
	return domain.Signer{
		ID:         model.ID,
		RequestID:  model.RequestID,
		UserID:     model.UserID,
		OrderIndex: model.OrderIndex,
		Mandatory:  model.Mandatory,
		Role:       domain.SignerRole(model.Role),
		State:      domain.SignerState(model.State),
		Comment:    model.Comment,
		ActedAt:    model.ActedAt,
	}
}
