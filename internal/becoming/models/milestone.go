package models

import (
	"strings"
	"time"

	dErrors "becoming/pkg/domain-errors"
)

const proofHashLength = 64

// Milestone is an immutable achievement entry.
type Milestone struct {
	ID          uint32    `json:"id"`
	Title       string    `json:"title"`
	ProofHash   string    `json:"proof_hash"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewMilestone validates the proof hash and builds an unnumbered milestone.
// The proof hash is kept exactly as supplied; no case folding or prefix
// stripping is applied to the stored value.
func NewMilestone(title, proofHash string, description, category *string, now time.Time) (Milestone, error) {
	if err := ValidateProofHash(proofHash); err != nil {
		return Milestone{}, err
	}
	return Milestone{
		Title:       title,
		ProofHash:   proofHash,
		Description: copyString(description),
		Category:    copyString(category),
		Timestamp:   now,
	}, nil
}

// ValidateProofHash accepts 64 hex digits of either case, optionally behind a
// single "0x" prefix.
func ValidateProofHash(proofHash string) error {
	digits := strings.TrimPrefix(proofHash, "0x")
	if len(digits) != proofHashLength {
		return dErrors.New(dErrors.CodeInvalidProofHash, "proof hash must be 64 hex characters")
	}
	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return dErrors.New(dErrors.CodeInvalidProofHash, "proof hash must be 64 hex characters")
		}
	}
	return nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func (m Milestone) clone() Milestone {
	m.Description = copyString(m.Description)
	m.Category = copyString(m.Category)
	return m
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
