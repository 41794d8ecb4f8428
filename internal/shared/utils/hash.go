package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case SHA256:
		hash := sha256.Sum256(data)
		return hex.EncodeToString(hash[:])
	default:
		hash := sha256.Sum256(data)
		return hex.EncodeToString(hash[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFields computes a hash from multiple fields.
// Fields are sorted, then joined with a delimiter.
func (h *Hasher) HashFields(fields ...string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	combined := strings.Join(sorted, "|")
	return h.HashString(combined)
}

// ShortHash returns the first 8 characters of a hash for display
func ShortHash(fullHash string) string {
	if len(fullHash) < 8 {
		return fullHash
	}
	return fullHash[:8]
}

// StrategyIdentifier derives deterministic names for learned strategies, so
// two learning passes proposing the same parameters for the same pattern
// produce the same name.
type StrategyIdentifier struct {
	hasher *Hasher
}

// NewStrategyIdentifier creates a new strategy identifier
func NewStrategyIdentifier(hasher *Hasher) *StrategyIdentifier {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &StrategyIdentifier{hasher: hasher}
}

// Name returns "<executor>@<pattern>#<short hash of the canonical parameters>"
func (si *StrategyIdentifier) Name(executor, pattern string, canonicalParams []string) string {
	fields := append([]string{"executor:" + executor, "pattern:" + pattern}, canonicalParams...)
	return fmt.Sprintf("%s@%s#%s", executor, pattern, ShortHash(si.hasher.HashFields(fields...)))
}
