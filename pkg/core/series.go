package core

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Series is a time series of ordered values
// It provides methods for analyzing time series data
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Crossover detects when this series crosses above the reference series
func (s Series[T]) Crossover(ref Series[T]) bool {
	if len(s) < 2 || len(ref) < 2 {
		return false
	}
	return s.Last(0) > ref.Last(0) && s.Last(1) <= ref.Last(1)
}

// Highest returns the maximum of the last 'size' values.
func (s Series[T]) Highest(size int) T {
	window := s.LastValues(size)
	var best T
	for i, v := range window {
		if i == 0 || v > best {
			best = v
		}
	}
	return best
}

// Lowest returns the minimum of the last 'size' values.
func (s Series[T]) Lowest(size int) T {
	window := s.LastValues(size)
	var best T
	for i, v := range window {
		if i == 0 || v < best {
			best = v
		}
	}
	return best
}

// Defined reports whether v is a usable number (not NaN or infinite).
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
