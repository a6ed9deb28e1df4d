package engine

import (
	"gonum.org/v1/gonum/floats"
)

// newMatrix allocates a width x height matrix backed by one slice.
func newMatrix[T any](width, height int) [][]T {
	backing := make([]T, width*height)
	m := make([][]T, width)
	for x := range m {
		m[x] = backing[x*height : (x+1)*height : (x+1)*height]
	}
	return m
}

// copyMatrix returns a deep copy of m.
func copyMatrix[T any](m [][]T) [][]T {
	if len(m) == 0 {
		return nil
	}
	out := newMatrix[T](len(m), len(m[0]))
	for x := range m {
		copy(out[x], m[x])
	}
	return out
}

// foldMatrices combines matrices cell by cell.
// Every cell starts at zero and fold is applied once per input matrix, in order.
func foldMatrices[T, A any](width, height int, mats [][][]T, zero A, fold func(acc A, v T) A) [][]A {
	out := newMatrix[A](width, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			acc := zero
			for _, m := range mats {
				acc = fold(acc, m[x][y])
			}
			out[x][y] = acc
		}
	}
	return out
}

// sumInts is the fold used for exact placement counts.
func sumInts(acc, v int) int {
	return acc + v
}

// unionIndependent folds probabilities as if the events were independent:
// P(A or B) = P(A) + P(B) - P(A)P(B).
func unionIndependent(acc, p float64) float64 {
	return acc + p - acc*p
}

// probabilityOf converts a count matrix into the fraction of total placements.
func probabilityOf(counts [][]int, total int) [][]float64 {
	width := len(counts)
	height := 0
	if width > 0 {
		height = len(counts[0])
	}
	probs := newMatrix[float64](width, height)
	if total <= 0 {
		return probs
	}
	for x := range counts {
		row := probs[x]
		for y, c := range counts[x] {
			row[y] = float64(c)
		}
		floats.Scale(1/float64(total), row)
	}
	return probs
}

// Normalize scales a count matrix to [0, 1] relative to its largest entry.
// An all-zero matrix normalizes to all zeros.
func Normalize(counts [][]int) [][]float64 {
	width := len(counts)
	height := 0
	if width > 0 {
		height = len(counts[0])
	}
	out := newMatrix[float64](width, height)
	peak := 0.0
	for x := range counts {
		for y, c := range counts[x] {
			out[x][y] = float64(c)
		}
		if height > 0 {
			peak = max(peak, floats.Max(out[x]))
		}
	}
	if peak == 0 {
		return out
	}
	for x := range out {
		floats.Scale(1/peak, out[x])
	}
	return out
}
