package domain

import (
	"crypto"
	"time"
)

type ContainerType string

const (
	ContainerCAdES ContainerType = "cades"
	ContainerPAdES ContainerType = "pades"
	ContainerXAdES ContainerType = "xades"
)

type SignatureLevel string

const (
	LevelBES  SignatureLevel = "BES"
	LevelEPES SignatureLevel = "EPES"
	LevelT    SignatureLevel = "T"
	LevelLT   SignatureLevel = "LT"
	LevelLTA  SignatureLevel = "LTA"
)

// levelRank orders the advanced-signature levels so downgrades on TSA
// failure are well defined.
var levelRank = map[SignatureLevel]int{
	LevelBES:  0,
	LevelEPES: 1,
	LevelT:    2,
	LevelLT:   3,
	LevelLTA:  4,
}

func (l SignatureLevel) AtLeast(other SignatureLevel) bool {
	return levelRank[l] >= levelRank[other]
}

// RequiresTimestamp reports whether a trusted timestamp token is part of
// the level's definition.
func (l SignatureLevel) RequiresTimestamp() bool {
	return levelRank[l] >= levelRank[LevelT]
}

type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA384 HashAlgorithm = "sha384"
	HashSHA512 HashAlgorithm = "sha512"
)

func (h HashAlgorithm) CryptoHash() crypto.Hash {
	switch h {
	case HashSHA384:
		return crypto.SHA384
	case HashSHA512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

// Signature is the immutable result of one signing act. ParentID forms a
// forest: a counter-signature points at the signature it endorses, and
// may itself be counter-signed.
type Signature struct {
	ID             string
	DocumentID     string
	SignerID       string
	CertificateID  string
	Container      ContainerType
	Level          SignatureLevel
	Hash           HashAlgorithm
	SignedAt       time.Time
	Digest         string
	ArtifactRef    string
	TimestampToken []byte
	TimestampAt    *time.Time
	ParentID       string
	CachedResult   *ValidationResult
	NeedsRecheck   bool
	CreatedAt      time.Time
}

func (s Signature) IsCounterSignature() bool {
	return s.ParentID != ""
}

// Document is the signed-artifact aggregate the engine maintains. The
// document bytes themselves live in the artifact store.
type Document struct {
	ID          string
	ArtifactRef string
	SignedCount int
	FullySigned bool
	UpdatedAt   time.Time
}
