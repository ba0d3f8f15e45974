package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"firmaflow/internal/domain"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return certFromModel(model), nil
}

func (r *CertificateRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).First(&model, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return certFromModel(model), nil
}

func (r *CertificateRepository) Create(ctx context.Context, cert domain.Certificate) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := certToModel(cert)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// TransitionState updates the state column only when the row still holds
// the expected previous state; RowsAffected tells the caller whether the
// swap happened.
func (r *CertificateRepository) TransitionState(ctx context.Context, id string, from, to domain.CertificateState, revokedAt *time.Time, reason string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	updates := map[string]any{"state": string(to)}
	if revokedAt != nil {
		updates["revoked_at"] = *revokedAt
	}
	if reason != "" {
		updates["revocation_reason"] = reason
	}
	tx := r.db.WithContext(ctx).
		Model(&CertificateModel{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *CertificateRepository) ListExpiring(ctx context.Context, before time.Time) ([]domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CertificateModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at < ?", string(domain.CertStateActive), before).
		Order("expires_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return certsFromModels(models), nil
}

func (r *CertificateRepository) ListActivePastExpiry(ctx context.Context, asOf time.Time) ([]domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CertificateModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at <= ?", string(domain.CertStateActive), asOf).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return certsFromModels(models), nil
}

func (r *CertificateRepository) MarkExpiryWarned(ctx context.Context, id string, threshold int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	tx := r.db.WithContext(ctx).
		Model(&CertificateModel{}).
		Where("id = ?", id).
		Update("expiry_warned_days", threshold)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func certToModel(cert domain.Certificate) (CertificateModel, error) {
	usages, err := json.Marshal(cert.Usages)
	if err != nil {
		return CertificateModel{}, err
	}
	model := CertificateModel{
		ID:               cert.ID,
		OwnerID:          cert.OwnerID,
		SerialNumber:     cert.SerialNumber,
		IssuerDN:         cert.IssuerDN,
		SubjectDN:        cert.SubjectDN,
		Algorithm:        cert.Algorithm,
		KeyBits:          cert.KeyBits,
		Fingerprint:      cert.Fingerprint,
		Raw:              cert.Raw,
		PublicKey:        cert.PublicKey,
		IssuedAt:         cert.IssuedAt,
		ExpiresAt:        cert.ExpiresAt,
		State:            string(cert.State),
		Class:            string(cert.Class),
		Usages:           usages,
		RevokedAt:        cert.RevokedAt,
		RevocationReason: cert.RevocationReason,
		ExpiryWarnedDays: cert.ExpiryWarnedDays,
		CreatedAt:        cert.CreatedAt,
	}
	if cert.PredecessorID != "" {
		pred := cert.PredecessorID
		model.PredecessorID = &pred
	}
	return model, nil
}

func certFromModel(model CertificateModel) *domain.Certificate {
	var usages []domain.KeyUsage
	if len(model.Usages) > 0 {
		_ = json.Unmarshal(model.Usages, &usages)
	}
	cert := &domain.Certificate{
		ID:               model.ID,
		OwnerID:          model.OwnerID,
		SerialNumber:     model.SerialNumber,
		IssuerDN:         model.IssuerDN,
		SubjectDN:        model.SubjectDN,
		Algorithm:        model.Algorithm,
		KeyBits:          model.KeyBits,
		Fingerprint:      model.Fingerprint,
		Raw:              model.Raw,
		PublicKey:        model.PublicKey,
		IssuedAt:         model.IssuedAt,
		ExpiresAt:        model.ExpiresAt,
		State:            domain.CertificateState(model.State),
		Class:            domain.CertificateClass(model.Class),
		Usages:           usages,
		RevokedAt:        model.RevokedAt,
		RevocationReason: model.RevocationReason,
		ExpiryWarnedDays: model.ExpiryWarnedDays,
		CreatedAt:        model.CreatedAt,
	}
	if model.PredecessorID != nil {
		cert.PredecessorID = *model.PredecessorID
	}
	return cert
}

func certsFromModels(models []CertificateModel) []domain.Certificate {
	out := make([]domain.Certificate, 0, len(models))
	for _, m := range models {
		out = append(out, *certFromModel(m))
	}
	return out
}
