// Package sampling implements the weighted-draw, random-payload, and
// Bernoulli-trial primitives the scenario runner samples from.
package sampling

import (
	"math/rand"

	"github.com/SAM-Research/test-client/internal/data"
)

// WeightedPick performs discrete inverse-CDF sampling over items/weights.
// It returns false iff items is empty, items and weights differ in length,
// or no weight is positive (non-positive weights are never picked).
func WeightedPick[T any](rng *rand.Rand, items []T, weights []float64) (T, bool) {
	var zero T
	if len(items) == 0 || len(items) != len(weights) {
		return zero, false
	}

	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return zero, false
	}

	target := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if target < cumulative {
			return items[i], true
		}
	}
	// Floating point edge case: fall back to the last positively-weighted
	// item rather than report failure.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return items[i], true
		}
	}
	return zero, false
}

// RandomPayload returns a byte slice of a length drawn uniformly from
// [min, max] inclusive, with uniformly random contents.
func RandomPayload(rng *rand.Rand, min, max uint32) []byte {
	if max < min {
		min, max = max, min
	}
	length := min
	if max > min {
		length = min + uint32(rng.Intn(int(max-min+1)))
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = byte(rng.Intn(256))
	}
	return buf
}

// Bernoulli returns true with probability clamp(p, 0, 1).
func Bernoulli(rng *rand.Rand, p float32) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float32() < p
}

// PartitionFriends splits friends into the regular-only and covert-capable
// subsets. For a plain client (deniable=false) every friend is regular and
// the covert set is always empty.
func PartitionFriends(friends map[string]data.Friend, deniable bool) (regular, covert map[string]data.Friend) {
	regular = make(map[string]data.Friend)
	covert = make(map[string]data.Friend)
	for name, f := range friends {
		if deniable && f.Deniable {
			covert[name] = f
		} else {
			regular[name] = f
		}
	}
	return regular, covert
}

// InverseAccountIDs builds the account-id -> username map from the
// dispatcher's username -> account-id start info.
func InverseAccountIDs(friends map[string]string) map[string]string {
	out := make(map[string]string, len(friends))
	for username, id := range friends {
		out[id] = username
	}
	return out
}
