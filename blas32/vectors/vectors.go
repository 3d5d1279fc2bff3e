package vectors

import (
	"errors"
	"fmt"

	"github.com/sw965/pgcrow/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

var ErrLengthMismatch = errors.New("vectors: 長さが一致しません")

func NewZerosLike(vs []blas32.Vector) []blas32.Vector {
	zeros := make([]blas32.Vector, len(vs))
	for i, v := range vs {
		zeros[i] = vector.NewZerosLike(v)
	}
	return zeros
}

// Axpy は ys[i] += alpha * xs[i] を全ての i について行う。
func Axpy(alpha float32, xs, ys []blas32.Vector) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: len(xs) = %d, len(ys) = %d", ErrLengthMismatch, len(xs), len(ys))
	}
	for i, x := range xs {
		if x.N != ys[i].N {
			return fmt.Errorf("%w: xs[%d].N = %d, ys[%d].N = %d", ErrLengthMismatch, i, x.N, i, ys[i].N)
		}
	}
	for i, x := range xs {
		blas32.Axpy(alpha, x, ys[i])
	}
	return nil
}
