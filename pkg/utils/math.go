package utils

import "math"

// NormalizeL2 scales x in place to unit L2 norm, so that Dot of two
// normalized vectors is their cosine similarity. A zero vector is unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
}

// Dot returns the inner product of a and b accumulated in float64, or 0 when
// the lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
