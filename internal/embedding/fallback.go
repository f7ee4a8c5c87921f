package embedding

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/spigell/resume-rag/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}+#]*`)

// Fallback builds a deterministic embedding of text by hashing its tokens into dim buckets.
// Equal texts always give equal vectors, and texts sharing words get a positive similarity.
// Text without any token gives the zero vector.
func Fallback(text string, dim int) domain.Vector {
	if dim <= 0 {
		dim = DefaultDimension
	}

	vec := make(domain.Vector, dim)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[sum%uint64(dim)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
