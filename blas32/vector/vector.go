package vector

import (
	"slices"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
)

func NewZeros(n int) blas32.Vector {
	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: make([]float32, n),
	}
}

func NewZerosLike(vec blas32.Vector) blas32.Vector {
	return NewZeros(vec.N)
}

// New は data をコピーせずに包む。
func New(data []float32) blas32.Vector {
	return blas32.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

func NewOneHot(n, idx int, v float32) blas32.Vector {
	vec := NewZeros(n)
	vec.Data[idx] = v
	return vec
}

func Clone(vec blas32.Vector) blas32.Vector {
	return blas32.Vector{
		N:    vec.N,
		Inc:  vec.Inc,
		Data: slices.Clone(vec.Data),
	}
}

// Equal は Inc を考慮して、論理的な要素が全て等しいかを返す。
func Equal(a, b blas32.Vector) bool {
	if a.N != b.N {
		return false
	}
	for i := 0; i < a.N; i++ {
		if a.Data[i*a.Inc] != b.Data[i*b.Inc] {
			return false
		}
	}
	return true
}

func ToFloat64(vec blas32.Vector) []float64 {
	y := make([]float64, vec.N)
	for i := range y {
		y[i] = float64(vec.Data[i*vec.Inc])
	}
	return y
}

// MaxIndex は最大要素のインデックスを返す。同値の場合は先頭を優先する。
func MaxIndex(vec blas32.Vector) int {
	return floats.MaxIdx(ToFloat64(vec))
}

// Complement は 1 - vec を返す。
func Complement(vec blas32.Vector) blas32.Vector {
	y := NewZeros(vec.N)
	for i := range y.Data {
		y.Data[i] = 1.0 - vec.Data[i*vec.Inc]
	}
	return y
}

func Affine(x blas32.Vector, w blas32.General, b blas32.Vector) blas32.Vector {
	yn := b.N
	y := NewZeros(yn)
	blas32.Copy(b, y)
	blas32.Gemv(blas.Trans, 1.0, w, x, 1.0, y)
	return y
}
