package utils

import "golang.org/x/exp/constraints"

// Min returns the smaller value between two numbers.
func Min[T constraints.Ordered](x, y T) T {
	if x < y {
		return x
	}
	return y
}

// Max returns the bigger value between two numbers.
func Max[T constraints.Ordered](x, y T) T {
	if x > y {
		return x
	}
	return y
}

// MinN returns the smallest value of a non-empty slice.
func MinN[T constraints.Ordered](vals ...T) T {
	m := vals[0]
	for _, v := range vals[1:] {
		m = Min(m, v)
	}
	return m
}

// MaxN returns the biggest value of a non-empty slice.
func MaxN[T constraints.Ordered](vals ...T) T {
	m := vals[0]
	for _, v := range vals[1:] {
		m = Max(m, v)
	}
	return m
}

// Abs returns the absolut value of x.
func Abs[T constraints.Signed | constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Clamp restricts x to the [lo, hi] interval.
func Clamp[T constraints.Ordered](x, lo, hi T) T {
	return Max(lo, Min(x, hi))
}
