package db

import (
	"context"
	"encoding/json"

	"firmaflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit row. The log is append-only; nothing here
// updates or deletes.
func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	if r.db == nil {
		return errDBUnavailable
	}
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	var detail []byte
	if event.Detail != nil {
		payload, err := json.Marshal(event.Detail)
		if err != nil {
			return err
		}
		detail = payload
	}
	model := AuditEventModel{
		ID:         id,
		ActorID:    event.ActorID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Detail:     detail,
		CreatedAt:  event.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	var models []AuditEventModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at desc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, m := range models {
		event := domain.AuditEvent{
			ID:         m.ID,
			ActorID:    m.ActorID,
			Action:     m.Action,
			EntityType: m.EntityType,
			EntityID:   m.EntityID,
			CreatedAt:  m.CreatedAt,
		}
		if len(m.Detail) > 0 {
			_ = json.Unmarshal(m.Detail, &event.Detail)
		}
		out = append(out, event)
	}
	return out, nil
}
