package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"
)

// FSStore is a content-addressed blob store on the local filesystem.
// The reference is the hex sha256 of the content, so saves are
// idempotent and references double as integrity checks.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Save(ctx context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	dir := filepath.Join(s.root, ref[:2])
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return ref, nil
}

func (s *FSStore) Load(ctx context.Context, ref string) ([]byte, error) {
	if len(ref) < 3 {
		return nil, domain.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.root, ref[:2], ref))
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != ref {
		return nil, fmt.Errorf("artifact %s failed integrity check", ref)
	}
	return data, nil
}

var _ usecase.ArtifactStore = (*FSStore)(nil)
