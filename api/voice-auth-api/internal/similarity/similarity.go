package internal_similarity

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/vocalisai/vocalis/pkg/utils"
)

// DefaultThreshold is the accept threshold for a verification decision.
const DefaultThreshold = 0.82

var (
	// ErrDimensionMismatch marks vectors of unequal length.
	ErrDimensionMismatch = errors.New("similarity: dimension mismatch")
	// ErrZeroVector marks a vector with zero norm.
	ErrZeroVector = errors.New("similarity: zero-norm vector")
)

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1] to
// absorb floating-point drift at the boundaries.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}
	return utils.Clamp(floats.Dot(a, b)/(normA*normB), -1, 1), nil
}

// Judge turns a similarity score into an accept/reject decision.
type Judge struct {
	threshold float64
}

// NewJudge builds a judge with the given accept threshold. Out-of-range
// values fall back to the default.
func NewJudge(threshold float64) *Judge {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Judge{threshold: threshold}
}

func (j *Judge) Threshold() float64 {
	return j.threshold
}

// Decide compares the stored and live embeddings and returns the score plus
// the accept decision. The score meets the threshold inclusively.
func (j *Judge) Decide(stored, live []float64) (score float64, accepted bool, err error) {
	score, err = Cosine(stored, live)
	if err != nil {
		return 0, false, err
	}
	return score, score >= j.threshold, nil
}
