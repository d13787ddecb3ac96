package psz

import "math"

// statisticalSecurity is λ, the statistical security parameter bounding
// collision probability across n PRF evaluations.
const statisticalSecurity = 40

// computeMaskSize returns the truncated PRF output width σ, in bytes,
// that keeps the probability of a spurious match among n evaluations
// below 2^-statisticalSecurity. It fails for n == 0, which has no
// meaningful mask width.
func computeMaskSize(n int) (int, error) {
	if n <= 0 {
		return 0, ErrBadInputSize
	}
	bits := 2*math.Log2(float64(n)) + statisticalSecurity
	return int(math.Ceil(bits / 8)), nil
}
