package mathx

import "golang.org/x/exp/constraints"

// ModDelta returns (b - a) mod n for counters that live in [0, n).
// Inputs outside the range are reduced first. n == 0 yields 0.
// Computed in uint64 so no intermediate can overflow.
func ModDelta[T constraints.Unsigned](a, b, n T) T {
	if n == 0 {
		return 0
	}
	m := uint64(n)
	return T((uint64(b)%m + m - uint64(a)%m) % m)
}

// Centered maps d in [0, n) onto the signed window [-n/2, n/2).
// For odd n the window is [-(n-1)/2, (n-1)/2].
func Centered[T constraints.Unsigned](d, n T) int64 {
	half := uint64(n) / 2
	v := uint64(d) % uint64(max(n, 1))
	if v >= uint64(n)-half {
		return int64(v) - int64(n)
	}
	return int64(v)
}
