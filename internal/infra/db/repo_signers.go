package db

import (
	"context"
	"time"

	"firmaflow/internal/domain"

	"gorm.io/gorm"
)

type SignerRepository struct {
	db *gorm.DB
}

func NewSignerRepository(db *gorm.DB) *SignerRepository {
	return &SignerRepository{db: db}
}

// TransitionState flips one signer slot, guarded by its previous state.
func (r *SignerRepository) TransitionState(ctx context.Context, signerID string, from, to domain.SignerState, comment string, actedAt time.Time) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	updates := map[string]any{
		"state":    string(to),
		"acted_at": actedAt,
	}
	if comment != "" {
		updates["comment"] = comment
	}
	tx := r.db.WithContext(ctx).
		Model(&SignerModel{}).
		Where("id = ? AND state = ?", signerID, string(from)).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Reassign moves a still-pending slot to another user. Order, role and
// the mandatory flag stay with the slot.
func (r *SignerRepository) Reassign(ctx context.Context, signerID, toUserID string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	tx := r.db.WithContext(ctx).
		Model(&SignerModel{}).
		Where("id = ? AND state = ?", signerID, string(domain.SignerPending)).
		Update("user_id", toUserID)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
