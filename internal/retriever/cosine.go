package retriever

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// It is 0 when the lengths differ or either vector has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push parallel vectors slightly past the bounds.
	return math.Max(-1, math.Min(1, sim))
}
