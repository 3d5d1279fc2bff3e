package mathx

import (
	"golang.org/x/exp/constraints"
)

// Sign は x の符号を -1, 0, 1 のいずれかで返す。NaN は 0 として扱う。
func Sign[X constraints.Float](x X) X {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func Signs[X constraints.Float](xs []X) []X {
	y := make([]X, len(xs))
	for i, x := range xs {
		y[i] = Sign(x)
	}
	return y
}

func Clamp[X constraints.Ordered](x, lower, upper X) X {
	if x < lower {
		return lower
	}
	if x > upper {
		return upper
	}
	return x
}

func CentralDifference[X constraints.Float](plusY, minusY, h X) X {
	return (plusY - minusY) / (2.0 * h)
}
