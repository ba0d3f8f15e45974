package db

import (
	"context"
	"encoding/json"
	"errors"

	"firmaflow/internal/domain"

	"gorm.io/gorm"
)

type SignatureRepository struct {
	db *gorm.DB
}

func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

func (r *SignatureRepository) Create(ctx context.Context, sig domain.Signature) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := signatureToModel(sig)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// Delete backs out a signature whose signer-slot write lost a
// concurrent race.
func (r *SignatureRepository) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Delete(&SignatureModel{}, "id = ?", id).Error
}

func (r *SignatureRepository) GetByID(ctx context.Context, id string) (*domain.Signature, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignatureModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return signatureFromModel(model), nil
}

// ListByDocument returns the document's direct signatures; the
// counter-signature forest hangs off ListChildren.
func (r *SignatureRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Signature, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SignatureModel
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND parent_id IS NULL", documentID).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Signature, 0, len(models))
	for _, m := range models {
		out = append(out, *signatureFromModel(m))
	}
	return out, nil
}

func (r *SignatureRepository) ListChildren(ctx context.Context, parentID string) ([]domain.Signature, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SignatureModel
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Signature, 0, len(models))
	for _, m := range models {
		out = append(out, *signatureFromModel(m))
	}
	return out, nil
}

func (r *SignatureRepository) SaveResult(ctx context.Context, signatureID string, result domain.ValidationResult, needsRecheck bool) error {
	if r.db == nil {
		return errDBUnavailable
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	tx := r.db.WithContext(ctx).
		Model(&SignatureModel{}).
		Where("id = ?", signatureID).
		Updates(map[string]any{"cached_result": payload, "needs_recheck": needsRecheck})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SignatureRepository) FlagForRecheck(ctx context.Context, certificateID string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	tx := r.db.WithContext(ctx).
		Model(&SignatureModel{}).
		Where("certificate_id = ? AND needs_recheck = ?", certificateID, false).
		Update("needs_recheck", true)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

func signatureToModel(sig domain.Signature) (SignatureModel, error) {
	model := SignatureModel{
		ID:             sig.ID,
		DocumentID:     sig.DocumentID,
		SignerID:       sig.SignerID,
		CertificateID:  sig.CertificateID,
		Container:      string(sig.Container),
		Level:          string(sig.Level),
		Hash:           string(sig.Hash),
		SignedAt:       sig.SignedAt,
		Digest:         sig.Digest,
		ArtifactRef:    sig.ArtifactRef,
		TimestampToken: sig.TimestampToken,
		TimestampAt:    sig.TimestampAt,
		NeedsRecheck:   sig.NeedsRecheck,
		CreatedAt:      sig.CreatedAt,
	}
	if sig.ParentID != "" {
		parent := sig.ParentID
		model.ParentID = &parent
	}
	if sig.CachedResult != nil {
		payload, err := json.Marshal(sig.CachedResult)
		if err != nil {
			return SignatureModel{}, err
		}
		model.CachedResult = payload
	}
	return model, nil
}

func signatureFromModel(model SignatureModel) *domain.Signature {
	sig := &domain.Signature{
		ID:             model.ID,
		DocumentID:     model.DocumentID,
		SignerID:       model.SignerID,
		CertificateID:  model.CertificateID,
		Container:      domain.ContainerType(model.Container),
		Level:          domain.SignatureLevel(model.Level),
		Hash:           domain.HashAlgorithm(model.Hash),
		SignedAt:       model.SignedAt,
		Digest:         model.Digest,
		ArtifactRef:    model.ArtifactRef,
		TimestampToken: model.TimestampToken,
		TimestampAt:    model.TimestampAt,
		NeedsRecheck:   model.NeedsRecheck,
		CreatedAt:      model.CreatedAt,
	}
	if model.ParentID != nil {
		sig.ParentID = *model.ParentID
	}
	if len(model.CachedResult) > 0 {
		var result domain.ValidationResult
		if err := json.Unmarshal(model.CachedResult, &result); err == nil {
			sig.CachedResult = &result
		}
	}
	return sig
}
