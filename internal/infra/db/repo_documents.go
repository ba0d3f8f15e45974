package db

import (
	"context"
	"errors"
	"time"

	"firmaflow/internal/domain"

	"gorm.io/gorm"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model DocumentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:          model.ID,
		ArtifactRef: model.ArtifactRef,
		SignedCount: model.SignedCount,
		FullySigned: model.FullySigned,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := DocumentModel{
		ID:          doc.ID,
		ArtifactRef: doc.ArtifactRef,
		SignedCount: doc.SignedCount,
		FullySigned: doc.FullySigned,
		UpdatedAt:   doc.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *DocumentRepository) RecordSignature(ctx context.Context, documentID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	tx := r.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ?", documentID).
		Updates(map[string]any{
			"signed_count": gorm.Expr("signed_count + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RemoveSignature undoes one RecordSignature increment, flooring at
// zero.
func (r *DocumentRepository) RemoveSignature(ctx context.Context, documentID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ? AND signed_count > 0", documentID).
		Updates(map[string]any{
			"signed_count": gorm.Expr("signed_count - 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *DocumentRepository) SetFullySigned(ctx context.Context, documentID string, fullySigned bool) error {
	if r.db == nil {
		return errDBUnavailable
	}
	tx := r.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ?", documentID).
		Updates(map[string]any{"fully_signed": fullySigned, "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
