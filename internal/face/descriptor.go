package face

import (
	"fmt"
	"math"
)

// DescriptorLength is the fixed embedding size produced by the face model.
const DescriptorLength = 128

// Descriptor is a face embedding. Descriptors are compared by cosine
// similarity, never equality.
type Descriptor []float64

// Validate rejects descriptors of the wrong length or containing
// non-finite values.
func (d Descriptor) Validate() error {
	if len(d) != DescriptorLength {
		return fmt.Errorf("descriptor length %d, want %d", len(d), DescriptorLength)
	}
	for i, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("descriptor element %d is not finite", i)
		}
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. A zero vector yields 0.
func CosineSimilarity(a, b Descriptor) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MatchScore normalizes cosine similarity from [-1, 1] to [0, 1].
func MatchScore(similarity float64) float64 {
	return (similarity + 1) / 2
}
