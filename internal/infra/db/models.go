package db

import "time"

type CertificateModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	OwnerID          string `gorm:"index;not null"`
	SerialNumber     string `gorm:"index"`
	IssuerDN         string
	SubjectDN        string
	Algorithm        string
	KeyBits          int
	// Renewal successors share their predecessor's key material, so the
	// fingerprint is indexed but not unique.
	Fingerprint      string `gorm:"index;not null"`
	Raw              []byte `gorm:"type:bytea"`
	PublicKey        []byte `gorm:"type:bytea"`
	IssuedAt         time.Time
	ExpiresAt        time.Time `gorm:"index"`
	State            string    `gorm:"index;not null"`
	Class            string    `gorm:"not null"`
	Usages           []byte    `gorm:"type:jsonb"`
	PredecessorID    *string   `gorm:"type:uuid;index"`
	RevokedAt        *time.Time
	RevocationReason string
	ExpiryWarnedDays int
	CreatedAt        time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string { return "certificates" }

type SignatureRequestModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	DocumentID  string `gorm:"type:uuid;index;not null"`
	RequesterID string `gorm:"index;not null"`
	Title       string
	Flow        string `gorm:"not null"`
	Priority    int
	Deadline    *time.Time `gorm:"index"`
	State       string     `gorm:"index;not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

func (SignatureRequestModel) TableName() string { return "signature_requests" }

type SignerModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	RequestID  string `gorm:"type:uuid;index;not null"`
	UserID     string `gorm:"index;not null"`
	OrderIndex int    `gorm:"not null"`
	Mandatory  bool   `gorm:"not null"`
	Role       string `gorm:"not null"`
	State      string `gorm:"index;not null"`
	Comment    string
	ActedAt    *time.Time
}

func (SignerModel) TableName() string { return "signers" }

type SignatureModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	DocumentID     string `gorm:"type:uuid;index;not null"`
	SignerID       string `gorm:"index;not null"`
	CertificateID  string `gorm:"type:uuid;index;not null"`
	Container      string `gorm:"not null"`
	Level          string `gorm:"not null"`
	Hash           string `gorm:"not null"`
	SignedAt       time.Time
	Digest         string `gorm:"index;not null"`
	ArtifactRef    string `gorm:"not null"`
	TimestampToken []byte `gorm:"type:bytea"`
	TimestampAt    *time.Time
	ParentID       *string   `gorm:"type:uuid;index"`
	CachedResult   []byte    `gorm:"type:jsonb"`
	NeedsRecheck   bool      `gorm:"index;not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (SignatureModel) TableName() string { return "signatures" }

type DocumentModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	ArtifactRef string `gorm:"not null"`
	SignedCount int    `gorm:"not null;default:0"`
	FullySigned bool   `gorm:"not null;default:false"`
	UpdatedAt   time.Time
}

func (DocumentModel) TableName() string { return "documents" }

type AuditEventModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	ActorID    string    `gorm:"index"`
	Action     string    `gorm:"index;not null"`
	EntityType string    `gorm:"not null"`
	EntityID   string    `gorm:"index"`
	Detail     []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"index;not null"`
}

func (AuditEventModel) TableName() string { return "audit_events" }
