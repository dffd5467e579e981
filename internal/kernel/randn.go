package kernel

import "math/rand"

// Randn fills data with i.i.d. samples from N(0, 1). Seeding is the
// caller's concern; pass a rank-specific source for distributed fills.
func Randn[T Float](data []T, rng *rand.Rand) {
	for i := range data {
		data[i] = T(rng.NormFloat64())
	}
}
