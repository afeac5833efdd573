package optimize

import "gonum.org/v1/gonum/blas/blas32"

// vec wraps a float32 slice for the BLAS kernels.
func vec(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}

// Axpy computes y += alpha*x. The meta step builds its displacement update
// from this same kernel, so an interpolation and an optimizer step produce
// identical floats.
func Axpy(alpha float32, x, y []float32) {
	blas32.Axpy(alpha, vec(x), vec(y))
}

// Copy overwrites dst with src.
func Copy(dst, src []float32) {
	blas32.Copy(vec(src), vec(dst))
}

func scal(alpha float32, x []float32) {
	blas32.Scal(alpha, vec(x))
}
