package resilience

import "cmp"

// Clamp forces v into [lo, hi]. A NaN input maps to lo.
func Clamp[N cmp.Ordered](v, lo, hi N) N {
	if v != v { //nolint:gocritic // NaN check
		return lo
	}
	return min(max(v, lo), hi)
}

// ExpectCount fails validation unless got equals want. Partial results are
// never accepted: a short or long collection is retried as a whole.
func ExpectCount(want, got int) error {
	if want != got {
		return Validation("expected %d items, got %d", want, got)
	}
	return nil
}

// ExpectNonEmpty fails validation when s is empty.
func ExpectNonEmpty(field, s string) error {
	if s == "" {
		return Validation("%s is empty", field)
	}
	return nil
}

// ExpectRange fails validation when v is outside [lo, hi].
// Use it for values that must not be clamped silently.
func ExpectRange[N cmp.Ordered](field string, v, lo, hi N) error {
	if v != v || v < lo || v > hi { //nolint:gocritic // NaN check
		return Validation("%s=%v outside [%v, %v]", field, v, lo, hi)
	}
	return nil
}
