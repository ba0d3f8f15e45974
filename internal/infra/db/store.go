package db

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

type Store struct {
	DB *gorm.DB
}

func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

// Migrate creates or updates the schema for every model.
func (s *Store) Migrate() error {
	return s.DB.AutoMigrate(
		&CertificateModel{},
		&SignatureRequestModel{},
		&SignerModel{},
		&SignatureModel{},
		&DocumentModel{},
		&AuditEventModel{},
	)
}
